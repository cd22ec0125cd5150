package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/chat-account-api/internal/infra/security"
	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
	"github.com/arklim/chat-account-api/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

var flowErrorCases = []ErrorCase{
	{Err: usecase.ErrAccountExists, Status: http.StatusConflict, Message: "Account with this email already exists."},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Wrong email or password"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Err: usecase.ErrInvalidCode, Status: http.StatusBadRequest, Message: "Invalid code"},
	{Err: usecase.ErrAccountDoesNotExist, Status: http.StatusNotFound, Message: "Account does not exist"},
	{Err: usecase.ErrInvalidResetCode, Status: http.StatusBadRequest, Message: "Invalid or expired verification code."},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusBadRequest, Message: "Account is disabled"},
	{Err: usecase.ErrRefreshTokenRequired, Status: http.StatusUnauthorized, Message: "Refresh token is required"},
	{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "Invalid refresh token"},
	{Err: usecase.ErrRefreshAccountInactive, Status: http.StatusUnauthorized, Message: "Refresh token is invalid or account status INACTIVE"},
	{Err: usecase.ErrRefreshTokenReused, Status: http.StatusUnauthorized, Message: "Refresh token has been superseded"},
	{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "Unauthorized"},
	{Err: usecase.ErrExpiredAccessToken, Status: http.StatusUnauthorized, Message: "Token expired"},
	{Err: usecase.ErrConcurrentUpdate, Status: http.StatusConflict, Message: "Account was modified concurrently, please retry"},
	{Err: usecase.ErrLabelNotFound, Status: http.StatusNotFound, Message: "Label not found"},
	{Err: usecase.ErrInvalidLabelName, Status: http.StatusBadRequest, Message: "Label name must be between 1 and 50 characters"},
}

// RespondWithMappedError writes the taxonomy entry matching err. Password
// policy violations and rate limits carry their own detail. Anything else is
// recorded on the context and answered with the generic 500.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var limited *usecase.RateLimitExceededError
	if errors.As(err, &limited) {
		seconds := int(limited.RetryAfter.Round(time.Second) / time.Second)
		c.Header("Retry-After", strconv.Itoa(seconds))
		middleware.AbortWithError(c, http.StatusTooManyRequests, "Too many attempts. Try again in "+strconv.Itoa(seconds)+" seconds.")
		return
	}

	var policy *security.PasswordValidationError
	if errors.As(err, &policy) {
		body := middleware.NewErrorResponse(c, http.StatusBadRequest, policy.Message)
		body.Errors = map[string]string{"password": policy.Message}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return
	}

	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			middleware.AbortWithError(c, cs.Status, cs.Message)
			return
		}
	}

	_ = c.Error(err)
	middleware.AbortWithError(c, http.StatusInternalServerError, middleware.GenericErrorMessage)
}

func respondFlowError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, flowErrorCases)
}
