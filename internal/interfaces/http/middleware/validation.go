package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
)

// SetupValidator makes binding errors name fields the way clients send them:
// the json name for bodies, the form name for query parameters.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
}

// messages by validator tag; %s is replaced with the tag parameter
var validationMessages = map[string]string{
	"required": "This field is required",
	"oneof":    "Must be one of: %s",
	"gte":      "Must be greater than or equal to %s",
	"lte":      "Must be less than or equal to %s",
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		msg := "Must be " + bound + " " + fe.Param()
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	}
	if tmpl, ok := validationMessages[fe.Tag()]; ok {
		return strings.Replace(tmpl, "%s", fe.Param(), 1)
	}
	return "Invalid value"
}

// FormatValidationErrors lists each failed field with a readable message.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details = make([]dto.ValidationDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: validationMessage(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError answers a failed bind: 400 with field details for tag
// violations, 413 for an oversized body, 400 for anything undecodable.
func HandleValidationError(c *gin.Context, err error) {
	requestID := GetRequestID(c)

	var (
		verrs    validator.ValidationErrors
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
	case errors.As(err, &tooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", requestID))
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidJSON, "Request body is not valid JSON for this endpoint", requestID))
	}
}
