package handlers

import (
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
)

// ErrorResponse is the error body shared with the middleware.
type ErrorResponse = middleware.ErrorResponse

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=255"`
	Password string `json:"password" binding:"required,min=6,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ConfirmTwoFactorRequest carries the one-time code from the mail.
type ConfirmTwoFactorRequest struct {
	Code string `json:"code" binding:"required,numeric,min=4,max=10"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest requires confirmPassword to equal password before the
// service is called.
type ResetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=6,max=255"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
	Code            string `json:"code" binding:"required"`
}

// RefreshTokenRequest is the body fallback when no refresh cookie is present.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LabelRequest struct {
	Name string `json:"name" binding:"required,max=50"`
}

type LabelListResponse struct {
	Labels []domain.Label `json:"labels"`
}

type SyncResponse struct {
	Message  string `json:"message"`
	Inserted int    `json:"inserted"`
	Total    int    `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness results per dependency.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newTokenResponse(pair domain.TokenPair) TokenResponse {
	return TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
}
