package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/interfaces/http/dto"
)

var setupOnce sync.Once

// SetupValidator makes gin report JSON field names and registers the load
// specific tags: telco and botsource.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("telco", func(fl validator.FieldLevel) bool {
			_, ok := load.ParseTelco(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("botsource", func(fl validator.FieldLevel) bool {
			_, err := load.ParseBotSource(fl.Field().String())
			return err == nil
		})
	})
}

// FormatValidationErrors converts binding errors into a validation response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	}
	message := "Request validation failed"
	if len(details) == 0 {
		message = "Malformed request body"
	}
	return dto.NewValidationErrorResponse(message, requestID, details)
}

// HandleValidationError aborts with a 400 describing err
func HandleValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, c.GetString(RequestIDKey)))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "telco":
		return "Unknown network"
	case "botsource":
		return "Unknown source channel"
	default:
		return "Invalid value"
	}
}
