package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/infra/logger"
	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
	"github.com/arklim/chat-account-api/internal/transport/http/sitekey"
	"github.com/arklim/chat-account-api/internal/usecase"
)

const logoutMessage = "User logged out successfully"

// AuthFlows is the subset of the auth service the HTTP layer drives.
type AuthFlows interface {
	Register(ctx context.Context, in usecase.RegisterInput) (usecase.AuthResult, error)
	Login(ctx context.Context, in usecase.LoginInput) (usecase.AuthResult, error)
	ConfirmLoginTwoFactor(ctx context.Context, in usecase.ConfirmInput) (usecase.AuthResult, error)
	ConfirmRegistrationTwoFactor(ctx context.Context, in usecase.ConfirmInput) (usecase.AuthResult, error)
	Refresh(ctx context.Context, raw string) (domain.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) (string, error)
	Current(ctx context.Context, accountID string) (domain.Profile, error)
}

// AuthHandler exposes the authentication flows and manages the token cookies.
type AuthHandler struct {
	flows        AuthFlows
	sites        *sitekey.Resolver
	deviceHeader string
	logger       *zap.Logger
}

// NewAuthHandler builds an AuthHandler. The device fingerprint is read from
// deviceHeader, falling back to the User-Agent.
func NewAuthHandler(flows AuthFlows, sites *sitekey.Resolver, deviceHeader string, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		flows:        flows,
		sites:        sites,
		deviceHeader: deviceHeader,
		logger:       log.Named("auth_handler"),
	}
}

// Register creates an unverified account and mails the first code.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.flows.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.logFailure(c, "register", err, zap.String("email", logger.MaskEmail(req.Email)))
		respondFlowError(c, err)
		return
	}

	h.sites.SetTokens(c.Writer, c.Request, result.Tokens)
	c.JSON(http.StatusCreated, MessageResponse{Message: result.Message})
}

// Login checks credentials. The message tells the client whether a second
// factor is still required.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.flows.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   h.device(c),
	})
	if err != nil {
		h.logFailure(c, "login", err, zap.String("email", logger.MaskEmail(req.Email)))
		respondFlowError(c, err)
		return
	}

	h.sites.SetTokens(c.Writer, c.Request, result.Tokens)
	c.JSON(http.StatusOK, MessageResponse{Message: result.Message})
}

// ConfirmTwoFactor completes a login challenge.
func (h *AuthHandler) ConfirmTwoFactor(c *gin.Context) {
	h.confirm(c, "confirm_login", h.flows.ConfirmLoginTwoFactor)
}

// ConfirmRegistrationTwoFactor completes a registration challenge. A failure
// on a never-verified account removes it.
func (h *AuthHandler) ConfirmRegistrationTwoFactor(c *gin.Context) {
	h.confirm(c, "confirm_registration", h.flows.ConfirmRegistrationTwoFactor)
}

func (h *AuthHandler) confirm(c *gin.Context, op string, flow func(context.Context, usecase.ConfirmInput) (usecase.AuthResult, error)) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ConfirmTwoFactorRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := flow(c.Request.Context(), usecase.ConfirmInput{
		AccountID: principal.AccountID,
		Code:      req.Code,
		Device:    h.device(c),
	})
	if err != nil {
		h.logFailure(c, op, err, zap.String("account_id", principal.AccountID))
		respondFlowError(c, err)
		return
	}

	h.sites.SetTokens(c.Writer, c.Request, result.Tokens)
	c.JSON(http.StatusOK, MessageResponse{Message: result.Message})
}

// RefreshToken exchanges the site's refresh cookie, or the refreshToken body
// field when no cookie is present, for a new pair.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	raw := h.sites.RefreshToken(c.Request)
	if raw == "" && c.Request.ContentLength != 0 {
		var req RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		raw = strings.TrimSpace(req.RefreshToken)
	}

	pair, err := h.flows.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.logFailure(c, "refresh", err)
		respondFlowError(c, err)
		return
	}

	h.sites.SetTokens(c.Writer, c.Request, pair)
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.flows.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.logFailure(c, "forgot_password", err, zap.String("email", logger.MaskEmail(req.Email)))
		respondFlowError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.flows.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Password: req.Password,
		Code:     req.Code,
		Device:   h.device(c),
	})
	if err != nil {
		h.logFailure(c, "reset_password", err)
		respondFlowError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// Current returns the caller's profile.
func (h *AuthHandler) Current(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.flows.Current(c.Request.Context(), principal.AccountID)
	if err != nil {
		respondFlowError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Logout clears the site's cookies. Issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sites.Clear(c.Writer, c.Request)
	c.JSON(http.StatusOK, MessageResponse{Message: logoutMessage})
}

func (h *AuthHandler) device(c *gin.Context) string {
	if h.deviceHeader != "" {
		if v := strings.TrimSpace(c.GetHeader(h.deviceHeader)); v != "" {
			return v
		}
	}
	return c.Request.UserAgent()
}

func (h *AuthHandler) logFailure(c *gin.Context, op string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.String("trace_id", middleware.GetTraceID(c)),
		zap.Error(err),
	)
	h.logger.Debug("auth flow rejected", fields...)
}
