package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/authz"
	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/transport/http/sitekey"
	"github.com/arklim/chat-account-api/internal/usecase"
)

const (
	messageUnauthorized      = "Unauthorized"
	messageTokenExpired      = "Token expired"
	messageForbidden         = "Forbidden"
	messageTwoFactorRequired = "Two-factor verification required"
)

// Authenticator resolves the caller behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.Principal, error)
}

// RequireAuth resolves the access token from the site cookie, falling back to
// an Authorization: Bearer header, and stores the principal on the request.
func RequireAuth(auth Authenticator, sites *sitekey.Resolver, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token := ""
		if sites != nil {
			token = sites.AccessToken(c.Request)
		}
		if token == "" {
			token = bearerToken(c.GetHeader("Authorization"))
		}
		if token == "" {
			AbortWithError(c, http.StatusUnauthorized, messageUnauthorized)
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				AbortWithError(c, http.StatusUnauthorized, messageTokenExpired)
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				AbortWithError(c, http.StatusUnauthorized, messageUnauthorized)
			default:
				log.Error("authenticate request", zap.Error(err))
				AbortWithError(c, http.StatusInternalServerError, GenericErrorMessage)
			}
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// Authorize enforces rule against the principal set by RequireAuth.
func Authorize(rule authz.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		var principal *domain.Principal
		if p, ok := CurrentPrincipal(c); ok {
			principal = p
		}

		switch decision := authz.Check(rule, principal); decision {
		case authz.Allow:
			c.Next()
		case authz.DenyUnauthenticated:
			AbortWithError(c, decision.Status(), messageUnauthorized)
		case authz.DenyUnverified:
			AbortWithError(c, decision.Status(), messageTwoFactorRequired)
		default:
			AbortWithError(c, decision.Status(), messageForbidden)
		}
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetAuthenticatedAccountID returns the account ID of the authenticated caller.
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return "", false
	}
	return principal.AccountID, true
}
