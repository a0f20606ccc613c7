// Package providers adapts the PSP APIs to one charge call returning a
// normalized routing.Result.
package providers

import (
	"context"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/vault"
)

const (
	DefaultTimeout = 10 * time.Second

	DefaultCheckoutBaseURL = "https://api.checkout.com"
	DefaultPayPalBaseURL   = "https://api-m.paypal.com"

	DefaultBreakerConsecutiveFailures = 5
	DefaultBreakerOpenTimeout         = 30 * time.Second
	DefaultBreakerInterval            = 60 * time.Second
	DefaultBreakerHalfOpenRequests    = 1
)

// Reason codes produced by the adapters themselves rather than a provider.
const (
	ReasonTimeout        = "timeout"
	ReasonNetwork        = "network_error"
	ReasonCircuitOpen    = "circuit_open"
	ReasonUnauthorized   = "provider_unauthorized"
	ReasonBadResponse    = "invalid_provider_response"
	ReasonAuthRequired   = "authentication_required"
	ReasonNoAdapter      = "no_adapter"
	ReasonCanceled       = "canceled"
	ReasonUnknownDecline = "declined"
)

// ChargeRequest is one attempt against one provider. IntentID doubles as
// the provider idempotency key.
type ChargeRequest struct {
	IntentID string
	OrderID  string
	Amount   int64
	Currency string
	Customer routing.CustomerContext
}

// Provider charges through one PSP family. Implementations never return
// a Go error: every failure is folded into the Result.
type Provider interface {
	Type() models.ProviderType
	Charge(ctx context.Context, creds vault.Credentials, req ChargeRequest) routing.Result
}

// Call is one reserved provider call. Exactly one of Charge or Release is
// called on it.
type Call interface {
	Charge(ctx context.Context, creds vault.Credentials, req ChargeRequest) routing.Result
	Release()
}

type Config struct {
	Timeout                    time.Duration
	BreakerConsecutiveFailures uint32
	BreakerOpenTimeout         time.Duration
	BreakerInterval            time.Duration
	BreakerHalfOpenRequests    uint32
}
