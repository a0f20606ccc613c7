package providers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/vault"

	"github.com/sony/gobreaker"
)

// Registry dispatches charges to the adapter of a PSP's provider type and
// keeps one circuit breaker per PSP row.
type Registry struct {
	config   Config
	adapters map[models.ProviderType]Provider

	mu       sync.Mutex
	breakers map[uint]*gobreaker.TwoStepCircuitBreaker
}

func NewRegistry(config Config, adapters ...Provider) *Registry {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BreakerConsecutiveFailures == 0 {
		config.BreakerConsecutiveFailures = DefaultBreakerConsecutiveFailures
	}
	if config.BreakerOpenTimeout <= 0 {
		config.BreakerOpenTimeout = DefaultBreakerOpenTimeout
	}
	if config.BreakerInterval <= 0 {
		config.BreakerInterval = DefaultBreakerInterval
	}
	if config.BreakerHalfOpenRequests == 0 {
		config.BreakerHalfOpenRequests = DefaultBreakerHalfOpenRequests
	}

	r := &Registry{
		config:   config,
		adapters: make(map[models.ProviderType]Provider, len(adapters)),
		breakers: make(map[uint]*gobreaker.TwoStepCircuitBreaker),
	}
	for _, a := range adapters {
		r.adapters[a.Type()] = a
	}
	return r
}

func (r *Registry) breaker(pspID uint) *gobreaker.TwoStepCircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[pspID]
	if !ok {
		threshold := r.config.BreakerConsecutiveFailures
		cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("psp-%d", pspID),
			MaxRequests: r.config.BreakerHalfOpenRequests,
			Interval:    r.config.BreakerInterval,
			Timeout:     r.config.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("⚠️ Circuit %s: %s -> %s", name, from, to)
			},
		})
		r.breakers[pspID] = cb
	}
	return cb
}

// Available reports whether a PSP can be charged right now. A half-open
// breaker whose trial slots are all taken counts as unavailable.
func (r *Registry) Available(psp *models.PSP) error {
	if _, ok := r.adapters[psp.Provider]; !ok {
		return fmt.Errorf("%w: %s", ErrNoAdapter, psp.Provider)
	}
	cb := r.breaker(psp.ID)
	switch cb.State() {
	case gobreaker.StateOpen:
		return ErrCircuitOpen
	case gobreaker.StateHalfOpen:
		if cb.Counts().Requests >= r.config.BreakerHalfOpenRequests {
			return ErrCircuitOpen
		}
	}
	return nil
}

// BreakerState returns the breaker state name of a PSP.
func (r *Registry) BreakerState(pspID uint) string {
	return r.breaker(pspID).State().String()
}

// Reserve claims a breaker slot for one call to the PSP. It fails with
// ErrNoAdapter or ErrCircuitOpen before anything reaches the provider.
// The returned Call must be either charged or released.
func (r *Registry) Reserve(psp *models.PSP) (Call, error) {
	adapter, ok := r.adapters[psp.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, psp.Provider)
	}

	cb := r.breaker(psp.ID)
	done, err := cb.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: psp %d: %v", ErrCircuitOpen, psp.ID, err)
	}
	return &reservedCall{
		adapter:  adapter,
		timeout:  r.config.Timeout,
		done:     done,
		halfOpen: cb.State() == gobreaker.StateHalfOpen,
	}, nil
}

// Charge reserves and runs one provider call. A call the breaker refuses
// comes back as an error outcome with ReasonCircuitOpen.
func (r *Registry) Charge(ctx context.Context, psp *models.PSP, creds vault.Credentials, req ChargeRequest) routing.Result {
	call, err := r.Reserve(psp)
	switch {
	case errors.Is(err, ErrNoAdapter):
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonNoAdapter}
	case err != nil:
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonCircuitOpen}
	}
	return call.Charge(ctx, creds, req)
}

type reservedCall struct {
	adapter  Provider
	timeout  time.Duration
	done     func(success bool)
	halfOpen bool
	finished bool
}

// Charge runs the provider call. The call gets its own deadline and is
// not cut short when ctx is canceled, so the outcome can be recorded.
// Only transport-class outcomes count against the breaker.
func (c *reservedCall) Charge(ctx context.Context, creds vault.Credentials, req ChargeRequest) routing.Result {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	result := c.adapter.Charge(callCtx, creds, req)
	c.finish(result.Outcome != routing.OutcomeError)
	return result
}

// Release hands back an unused slot. A half-open trial slot that was never
// used reopens the breaker; a closed breaker is left untouched.
func (c *reservedCall) Release() {
	if c.halfOpen {
		c.finish(false)
		return
	}
	c.finished = true
}

func (c *reservedCall) finish(success bool) {
	if c.finished {
		return
	}
	c.finished = true
	c.done(success)
}
