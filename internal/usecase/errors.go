package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAccountExists indicates the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("wrong email or password")
	// ErrUserNotFound indicates the authenticated account no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCode indicates a one-time code mismatch or an expired code.
	ErrInvalidCode = errors.New("invalid code")
	// ErrAccountDoesNotExist is returned by forgot-password for unknown or inactive emails.
	ErrAccountDoesNotExist = errors.New("account does not exist")
	// ErrInvalidResetCode indicates no ACTIVE account holds the code or it expired.
	ErrInvalidResetCode = errors.New("invalid or expired verification code")
	// ErrAccountDisabled indicates an INACTIVE caller.
	ErrAccountDisabled = errors.New("account is disabled")

	ErrRefreshTokenRequired   = errors.New("refresh token is required")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrRefreshAccountInactive = errors.New("refresh token invalid or account inactive")
	// ErrRefreshTokenReused indicates a refresh token from an older generation was presented.
	ErrRefreshTokenReused = errors.New("refresh token has been superseded")

	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrExpiredAccessToken = errors.New("access token expired")

	// ErrConcurrentUpdate indicates the account changed between read and write.
	ErrConcurrentUpdate = errors.New("account was modified concurrently")

	ErrLabelNotFound    = errors.New("label not found")
	ErrInvalidLabelName = errors.New("label name must be between 1 and 50 characters")
)

// RateLimitExceededError reports that a flow exhausted its attempt budget.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
}
