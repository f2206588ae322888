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
	err := InvalidInput("postal code is required")
	assert.Equal(t, "INVALID_INPUT: postal code is required", err.Error())

	wrapped := Internal(errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestAppError_Unwrap(t *testing.T) {
	err := NotFound("checkout_draft", "d-123")
	assert.True(t, errors.Is(err, ErrNotFound))

	gone := Gone("checkout draft has expired")
	assert.True(t, errors.Is(gone, ErrGone))
}

func TestSettlementUnreconciled(t *testing.T) {
	cause := errors.New("commerce backend returned 502")
	err := SettlementUnreconciled("pi_789", cause)

	assert.Equal(t, "SETTLEMENT_UNRECONCILED", err.Code)
	assert.Equal(t, "pi_789", err.SettlementRef)
	assert.Contains(t, err.Message, "pi_789")
	assert.True(t, errors.Is(err, ErrSettlementUnreconciled))
	assert.True(t, errors.Is(err, cause))
}

func TestSettlementUnreconciled_NotPaymentFailed(t *testing.T) {
	// The unreconciled class must never be confusable with the retryable
	// payment-failed class.
	err := SettlementUnreconciled("pi_001", errors.New("timeout"))
	assert.False(t, errors.Is(err, ErrPaymentFailed))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", NotFound("coupon", "c-1"), http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("outer: %w", Conflict("draft already ordered")), http.StatusConflict},
		{"sentinel invalid input", fmt.Errorf("ctx: %w", ErrInvalidInput), http.StatusBadRequest},
		{"sentinel gone", fmt.Errorf("ctx: %w", ErrGone), http.StatusGone},
		{"sentinel payment failed", fmt.Errorf("ctx: %w", ErrPaymentFailed), http.StatusUnprocessableEntity},
		{"sentinel service unavailable", fmt.Errorf("ctx: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{"unknown error", errors.New("mystery"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	base := ErrNotFound
	wrapped := Wrap(base, "load draft")
	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Contains(t, wrapped.Error(), "load draft")
}
