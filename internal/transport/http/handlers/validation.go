package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
)

const (
	msgRequired        = "This field cannot be blank"
	msgInvalidEmail    = "Please enter a valid email address"
	msgNotSamePassword = "The password and password confirmation do not match"
	msgInvalidCode     = "The format of the 2FA code is incorrect"
	msgInvalidBody     = "Invalid request body"
	msgValidation      = "Validation failed"
)

var configureValidator sync.Once

// ConfigureValidator makes validation errors report JSON field names.
func ConfigureValidator() {
	configureValidator.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
}

// bindJSON decodes the body into req and answers 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondValidationError(c, err)
		return false
	}
	return true
}

func respondValidationError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		middleware.AbortWithError(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	body := middleware.NewErrorResponse(c, http.StatusBadRequest, msgValidation)
	body.Errors = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := body.Errors[fe.Field()]; !seen {
			body.Errors[fe.Field()] = fieldMessage(fe)
		}
	}
	if len(verrs) == 1 {
		body.Message = body.Errors[verrs[0].Field()]
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return msgInvalidEmail
	case "eqfield":
		return msgNotSamePassword
	case "numeric":
		return msgInvalidCode
	case "min":
		if fe.Field() == "code" {
			return msgInvalidCode
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		if fe.Field() == "code" {
			return msgInvalidCode
		}
		return fmt.Sprintf("Exceeds the maximum of %s characters", fe.Param())
	default:
		return fmt.Sprintf("Invalid value for %s", fe.Field())
	}
}
