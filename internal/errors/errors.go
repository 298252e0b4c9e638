// Package errors provides the structured error taxonomy used by the action
// pipeline. Errors carry a stable code, a client-safe message and the HTTP
// status they surface as.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a stable, machine readable error identifier.
type ErrorCode string

const (
	CodeBadRequest           ErrorCode = "BAD_REQUEST"
	CodeValidation           ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken         ErrorCode = "INVALID_TOKEN"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeActionNotFound       ErrorCode = "ACTION_NOT_FOUND"
	CodeAmbiguousAction      ErrorCode = "AMBIGUOUS_ACTION"
	CodeNotAcceptable        ErrorCode = "NOT_ACCEPTABLE"
	CodeUnsupportedMediaType ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
	CodePanic                ErrorCode = "HANDLER_PANIC"
)

// Sentinel errors for errors.Is checks.
var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous match")
	ErrInternal  = errors.New("internal error")
)

// ServiceError is an error with an HTTP mapping.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements error.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns the error with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsClientError reports whether the error is caused by the request.
func (e *ServiceError) IsClientError() bool {
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

// New creates a ServiceError.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap creates a ServiceError around an underlying error.
func Wrap(err error, code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus returns the status an error should surface as.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// =============================================================================
// Constructors
// =============================================================================

// BadRequest creates a 400 error.
func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

// Validation creates a 400 error for failed model validation.
func Validation(message string) *ServiceError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Unauthorized"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// InvalidToken creates a 401 error for a rejected bearer token.
func InvalidToken(err error) *ServiceError {
	return Wrap(err, CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *ServiceError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound creates a 404 error for a resource.
func NotFound(resource, id string) *ServiceError {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s %q not found", resource, id)
	}
	return Wrap(ErrNotFound, CodeNotFound, msg, http.StatusNotFound)
}

// ActionNotFound is returned when no action matches a request.
func ActionNotFound(method, path string) *ServiceError {
	return Wrap(ErrNotFound, CodeActionNotFound, "No action matches the request", http.StatusNotFound).
		WithDetails("method", method).
		WithDetails("path", path)
}

// AmbiguousAction is returned when more than one action matches a request.
// The candidate names are kept in Details for logging and never rendered.
func AmbiguousAction(candidates []string) *ServiceError {
	err := fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(candidates, ", "))
	return Wrap(err, CodeAmbiguousAction, "Multiple actions matched the request", http.StatusInternalServerError).
		WithDetails("candidates", candidates)
}

// NotAcceptable creates a 406 error.
func NotAcceptable(accept string) *ServiceError {
	return New(CodeNotAcceptable, "No formatter can produce an acceptable response", http.StatusNotAcceptable).
		WithDetails("accept", accept)
}

// UnsupportedMediaType creates a 415 error.
func UnsupportedMediaType(contentType string) *ServiceError {
	return New(CodeUnsupportedMediaType, fmt.Sprintf("Unsupported content type '%s'", contentType), http.StatusUnsupportedMediaType)
}

// RateLimitExceeded creates a 429 error. Fractional limits such as 0.5
// requests per window are reported as given.
func RateLimitExceeded(limit float64, window string) *ServiceError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Internal creates a 500 error.
func Internal(message string, err error) *ServiceError {
	if err == nil {
		err = ErrInternal
	}
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

// Panic wraps a value recovered from a handler panic.
func Panic(value interface{}, stack []byte) *ServiceError {
	return Wrap(fmt.Errorf("%w: panic: %v", ErrInternal, value), CodePanic, "Handler panicked", http.StatusInternalServerError).
		WithDetails("stack", string(stack))
}

// =============================================================================
// Predicates
// =============================================================================

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAmbiguous reports whether err is an ambiguous-match error.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguous)
}
