package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GenericErrorMessage is the only message an unexpected failure exposes.
const GenericErrorMessage = "Something went wrong"

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode"`
	Timestamp  string            `json:"timestamp"`
	Path       string            `json:"path"`
	TraceID    string            `json:"traceId,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// NewErrorResponse builds the error body for the current request.
func NewErrorResponse(c *gin.Context, status int, message string) ErrorResponse {
	return ErrorResponse{
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       c.Request.URL.RequestURI(),
		TraceID:    GetTraceID(c),
	}
}

// AbortWithError writes the error body and stops the handler chain.
func AbortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(c, status, message))
}
