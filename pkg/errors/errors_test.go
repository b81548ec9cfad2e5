package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "INVALID_INPUT: target is required", New(ErrCodeInvalidInput, "target is required").Error())

	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeTransport, "publish failed")
	assert.Equal(t, "TRANSPORT_ERROR: publish failed (caused by: connection refused)", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad target").
		WithContext("field", "target").
		WithContext("count", 2)

	assert.Equal(t, map[string]interface{}{"field": "target", "count": 2}, err.Context)
}

func TestConstructors_Status(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"invalid input", NewInvalidInputError("bad"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no token"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("wrong user"), ErrCodeForbidden, http.StatusForbidden},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"internal", NewInternalError("oops"), ErrCodeInternal, http.StatusInternalServerError},
		{"unavailable", NewServiceUnavailableError("stopped"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"invalid state", NewInvalidStateError(cause, "calling"), ErrCodeInvalidState, http.StatusConflict},
		{"protocol", NewProtocolError(cause, "bad payload"), ErrCodeProtocol, http.StatusBadRequest},
		{"media", NewMediaError(cause, "no camera"), ErrCodeMedia, http.StatusBadGateway},
		{"timeout", NewTimeoutError("no answer"), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"transport", NewTransportError(cause, "publish failed"), ErrCodeTransport, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}

	assert.Equal(t, "calling", NewInvalidStateError(cause, "calling").Context["state"])
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("SOMETHING_ELSE").HTTPStatus())
}

func TestGetAppError(t *testing.T) {
	appErr := NewTimeoutError("no offer")
	wrapped := fmt.Errorf("negotiation: %w", appErr)

	got := GetAppError(wrapped)
	require.NotNil(t, got)
	assert.Same(t, appErr, got)
	assert.True(t, HasCode(wrapped, ErrCodeTimeout))
	assert.False(t, HasCode(wrapped, ErrCodeMedia))

	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.False(t, HasCode(nil, ErrCodeTimeout))
}
