package api

import (
	"net/http"

	"example.com/backstage/services/warehouse/internal/search"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidRequest     = &Error{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound           = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternalServer     = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrUnauthorized       = &Error{Message: "Unauthorized", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrForbidden          = &Error{Message: "Forbidden", StatusCode: http.StatusForbidden, Code: "FORBIDDEN"}
	ErrServiceUnavailable = &Error{Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"}
)

// NewValidationError creates a new validation error with a custom message
func NewValidationError(message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
	}
}

// NewError creates a new API error with custom details
func NewError(message string, statusCode int, code string) *Error {
	return &Error{
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

// FromServiceError maps a service error kind onto its HTTP form
func FromServiceError(err error) *Error {
	var apiError *Error
	if errors.As(err, &apiError) {
		return apiError
	}

	msg := services.Message(err)
	switch {
	case errors.Is(err, services.ErrValidation):
		return NewValidationError(msg)
	case errors.Is(err, services.ErrInvalidTransition):
		return NewError(msg, http.StatusBadRequest, "INVALID_TRANSITION")
	case errors.Is(err, services.ErrNotFound):
		return NewError(msg, http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, services.ErrNoTruckAvailable):
		return NewError(msg, http.StatusConflict, "NO_TRUCK_AVAILABLE")
	case errors.Is(err, services.ErrConflict):
		return NewError(msg, http.StatusConflict, "CONFLICT")
	case errors.Is(err, services.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, search.ErrDisabled):
		return NewError("Search is not enabled", http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
	}
	return nil
}

// WriteError writes an error response and aborts the chain
func WriteError(c *gin.Context, err error) {
	apiError := FromServiceError(err)
	if apiError == nil {
		requestID, _ := c.Get(requestIDKey)
		log.Error().Err(err).Interface("request_id", requestID).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		apiError = ErrInternalServer
	}

	c.AbortWithStatusJSON(apiError.StatusCode, ErrorResponse{
		Error: apiError.Message,
		Code:  apiError.Code,
	})
}
