package api

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypePermission     ErrorType = "permission_error"
	ErrorTypeNotFound       ErrorType = "not_found_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
	ErrorTypeAPI            ErrorType = "api_error"
	ErrorTypeOverloaded     ErrorType = "overloaded_error"
)

// APIError represents a structured API error with type and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatus maps the error type to its HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError in the top-level error envelope:
// {"type":"error","error":{...}}.
type ErrorResponse struct {
	Type  string    `json:"type"` // always "error"
	Error *APIError `json:"error"`
}

// NewErrorResponse wraps an APIError in its envelope.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Type: "error", Error: err}
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewAuthenticationError creates an APIError for missing or bad credentials.
func NewAuthenticationError(message string) *APIError {
	return &APIError{Type: ErrorTypeAuthentication, Message: message}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewRateLimitError creates an APIError for rate limiting.
func NewRateLimitError(message string) *APIError {
	return &APIError{Type: ErrorTypeRateLimit, Message: message}
}

// NewAPIErrorf creates an internal api_error with a formatted message.
func NewAPIErrorf(format string, args ...any) *APIError {
	return &APIError{Type: ErrorTypeAPI, Message: fmt.Sprintf(format, args...)}
}

// NewOverloadedError creates an APIError for an overloaded backend.
func NewOverloadedError(message string) *APIError {
	return &APIError{Type: ErrorTypeOverloaded, Message: message}
}

// AsAPIError converts any error to an *APIError, preserving it if it already
// is one and wrapping it as an api_error otherwise.
func AsAPIError(err error) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return &APIError{Type: ErrorTypeAPI, Message: err.Error()}
}
