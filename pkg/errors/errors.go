package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable identifier rendered to UI clients.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeProtocol           ErrorCode = "PROTOCOL_ERROR"
	ErrCodeMedia              ErrorCode = "MEDIA_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeTransport          ErrorCode = "TRANSPORT_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeRateLimit:          http.StatusTooManyRequests,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeInvalidState:       http.StatusConflict,
	ErrCodeProtocol:           http.StatusBadRequest,
	ErrCodeMedia:              http.StatusBadGateway,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeTransport:          http.StatusServiceUnavailable,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
}

// HTTPStatus maps a code to its response status; unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError carries a code, a client-safe message and the underlying cause.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a detail rendered to the client under "details".
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: code.HTTPStatus()}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func NewInvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

func NewUnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded")
}

func NewInternalError(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func NewServiceUnavailableError(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message)
}

// NewInvalidStateError reports a user intent that the current call state forbids.
func NewInvalidStateError(cause error, state string) *AppError {
	return Wrap(cause, ErrCodeInvalidState, fmt.Sprintf("not allowed while %s", state)).
		WithContext("state", state)
}

// NewProtocolError reports a malformed, unknown or unauthorized signal message.
// It is recoverable: the message is dropped and processing continues.
func NewProtocolError(cause error, message string) *AppError {
	return Wrap(cause, ErrCodeProtocol, message)
}

func NewMediaError(cause error, message string) *AppError {
	return Wrap(cause, ErrCodeMedia, message)
}

func NewTimeoutError(message string) *AppError {
	return New(ErrCodeTimeout, message)
}

func NewTransportError(cause error, message string) *AppError {
	return Wrap(cause, ErrCodeTransport, message)
}

// GetAppError extracts the first AppError from err's chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}
