package providers

import (
	"context"
	"testing"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	kind    models.ProviderType
	results []routing.Result
	calls   int
	ctxErr  error
}

func (p *scriptedProvider) Type() models.ProviderType { return p.kind }

func (p *scriptedProvider) Charge(ctx context.Context, _ vault.Credentials, _ ChargeRequest) routing.Result {
	p.ctxErr = ctx.Err()
	r := p.results[p.calls%len(p.results)]
	p.calls++
	return r
}

func TestRegistry_Dispatch(t *testing.T) {
	stripeP := &scriptedProvider{kind: models.ProviderStripe, results: []routing.Result{{Outcome: routing.OutcomeSuccess, Reference: "pi_1"}}}
	r := NewRegistry(Config{}, stripeP)

	got := r.Charge(context.Background(), &models.PSP{ID: 1, Provider: models.ProviderStripe}, vault.Credentials{}, ChargeRequest{})
	assert.Equal(t, "pi_1", got.Reference)

	assert.NoError(t, r.Available(&models.PSP{ID: 1, Provider: models.ProviderStripe}))
	assert.ErrorIs(t, r.Available(&models.PSP{ID: 2, Provider: models.ProviderPayPal}), ErrNoAdapter)

	got = r.Charge(context.Background(), &models.PSP{ID: 2, Provider: models.ProviderPayPal}, vault.Credentials{}, ChargeRequest{})
	assert.Equal(t, routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonNoAdapter}, got)
}

func TestRegistry_BreakerTripsOnTransportErrorsOnly(t *testing.T) {
	declines := &scriptedProvider{kind: models.ProviderStripe, results: []routing.Result{{Outcome: routing.OutcomeDeclined, ReasonCode: "card_declined"}}}
	r := NewRegistry(Config{BreakerConsecutiveFailures: 2, BreakerOpenTimeout: time.Hour}, declines)
	psp := &models.PSP{ID: 1, Provider: models.ProviderStripe}

	for i := 0; i < 5; i++ {
		r.Charge(context.Background(), psp, vault.Credentials{}, ChargeRequest{})
	}
	assert.NoError(t, r.Available(psp))

	failing := &scriptedProvider{kind: models.ProviderCheckout, results: []routing.Result{{Outcome: routing.OutcomeError, ReasonCode: "http_503"}}}
	r = NewRegistry(Config{BreakerConsecutiveFailures: 2, BreakerOpenTimeout: time.Hour}, failing)
	psp = &models.PSP{ID: 7, Provider: models.ProviderCheckout}

	r.Charge(context.Background(), psp, vault.Credentials{}, ChargeRequest{})
	r.Charge(context.Background(), psp, vault.Credentials{}, ChargeRequest{})
	assert.ErrorIs(t, r.Available(psp), ErrCircuitOpen)
	assert.Equal(t, "open", r.BreakerState(7))

	got := r.Charge(context.Background(), psp, vault.Credentials{}, ChargeRequest{})
	assert.Equal(t, ReasonCircuitOpen, got.ReasonCode)
	assert.Equal(t, 2, failing.calls)

	// other PSPs of the same provider keep their own breaker
	assert.NoError(t, r.Available(&models.PSP{ID: 8, Provider: models.ProviderCheckout}))
}

func TestRegistry_CallOutlivesCallerCancel(t *testing.T) {
	p := &scriptedProvider{kind: models.ProviderStripe, results: []routing.Result{{Outcome: routing.OutcomeSuccess}}}
	r := NewRegistry(Config{}, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := r.Charge(ctx, &models.PSP{ID: 1, Provider: models.ProviderStripe}, vault.Credentials{}, ChargeRequest{})
	require.True(t, got.Succeeded())
	assert.NoError(t, p.ctxErr)
}

func tripAndWait(t *testing.T, r *Registry, psp *models.PSP) {
	t.Helper()
	r.Charge(context.Background(), psp, vault.Credentials{}, ChargeRequest{})
	require.Equal(t, "open", r.BreakerState(psp.ID))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, "half-open", r.BreakerState(psp.ID))
}

func TestRegistry_HalfOpenSlotIsExclusive(t *testing.T) {
	p := &scriptedProvider{kind: models.ProviderCheckout, results: []routing.Result{
		{Outcome: routing.OutcomeError, ReasonCode: "http_503"},
		{Outcome: routing.OutcomeSuccess},
	}}
	r := NewRegistry(Config{BreakerConsecutiveFailures: 1, BreakerOpenTimeout: 20 * time.Millisecond}, p)
	psp := &models.PSP{ID: 3, Provider: models.ProviderCheckout}
	tripAndWait(t, r, psp)

	trial, err := r.Reserve(psp)
	require.NoError(t, err)

	// the only trial slot is taken: the gate and a second reservation both refuse
	assert.ErrorIs(t, r.Available(psp), ErrCircuitOpen)
	_, err = r.Reserve(psp)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, p.calls)

	got := trial.Charge(context.Background(), vault.Credentials{}, ChargeRequest{})
	assert.True(t, got.Succeeded())
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, "closed", r.BreakerState(3))
	assert.NoError(t, r.Available(psp))
}

func TestRegistry_ReleaseUnusedSlot(t *testing.T) {
	tests := []struct {
		name      string
		trip      bool
		wantState string
	}{
		{name: "closed breaker is untouched", wantState: "closed"},
		{name: "unused trial slot reopens", trip: true, wantState: "open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{kind: models.ProviderPayPal, results: []routing.Result{{Outcome: routing.OutcomeError, ReasonCode: "timeout"}}}
			r := NewRegistry(Config{BreakerConsecutiveFailures: 1, BreakerOpenTimeout: 20 * time.Millisecond}, p)
			psp := &models.PSP{ID: 4, Provider: models.ProviderPayPal}
			if tt.trip {
				tripAndWait(t, r, psp)
			}
			calls := p.calls

			call, err := r.Reserve(psp)
			require.NoError(t, err)
			call.Release()
			call.Release()

			assert.Equal(t, tt.wantState, r.BreakerState(4))
			assert.Equal(t, calls, p.calls)
		})
	}
}

func TestRegistry_ReserveUnknownProvider(t *testing.T) {
	r := NewRegistry(Config{})
	_, err := r.Reserve(&models.PSP{ID: 1, Provider: models.ProviderStripe})
	assert.ErrorIs(t, err, ErrNoAdapter)
}
