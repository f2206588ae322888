// Package client holds the HTTP clients for the services checkout talks to:
// the cart store, catalog, inventory, shipping rates, the payment gateway and
// the commerce backend that owns orders.
package client

import (
	"context"
	"net/http"

	apperrors "github.com/hazelmarket/checkout/pkg/errors"
)

// CircuitOpenFallback is a fallback function for the downstream circuit
// breaker. When the circuit is open, it returns a structured error with a
// retry hint instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("downstream service is temporarily unavailable, please retry after 30 seconds")
}

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
