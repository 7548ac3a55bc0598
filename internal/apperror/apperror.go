package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskboard/pkg/logger"
)

// FieldError is one per-field validation failure, serialized into the
// errors array of a 400 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the API error taxonomy. Handlers return it and the central
// Handler maps it to a status code and JSON body.
type Error struct {
	Status  int          `json:"-"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func BadRequest(message string) *Error {
	return &Error{Status: fiber.StatusBadRequest, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Status: fiber.StatusUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Status: fiber.StatusForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Status: fiber.StatusNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Status: fiber.StatusConflict, Message: message}
}

func Internal(message string) *Error {
	return &Error{Status: fiber.StatusInternalServerError, Message: message}
}

// Validation converts a validator error into a 400 with per-field failures.
func Validation(err error) *Error {
	apiErr := &Error{Status: fiber.StatusBadRequest, Message: "Validation failed"}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			apiErr.Errors = append(apiErr.Errors, FieldError{
				Field:   fe.Field(),
				Message: messageFor(fe),
			})
		}
	}
	return apiErr
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Valid email is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Handler is the central error responder wired into fiber.Config. Any
// non-taxonomy error becomes a 500 with a generic message.
func Handler(c *fiber.Ctx, err error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			apiErr = &Error{Status: fiberErr.Code, Message: fiberErr.Message}
		} else {
			logger.ErrorLogger.Error("Unhandled error", zap.Error(err))
			apiErr = Internal("Server error")
		}
	}
	return c.Status(apiErr.Status).JSON(apiErr)
}
