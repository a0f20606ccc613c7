package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"payroute/internal/domain/routing"
	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/capacity"
	"payroute/internal/services/providers"
	"payroute/internal/services/recorder"
	"payroute/internal/services/selector"
	"payroute/internal/services/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const storeID = uint(1)

// scriptedCharger answers each PSP with a fixed result and records calls.
// PSPs in refuse fail the reservation, as an open breaker would.
type scriptedCharger struct {
	mu       sync.Mutex
	results  map[uint]routing.Result
	refuse   map[uint]bool
	calls    []providers.ChargeRequest
	psps     []uint
	released int
	during   func()
}

func (c *scriptedCharger) Reserve(psp *models.PSP) (providers.Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse[psp.ID] {
		return nil, providers.ErrCircuitOpen
	}
	return &scriptedCall{charger: c, pspID: psp.ID}, nil
}

type scriptedCall struct {
	charger *scriptedCharger
	pspID   uint
}

func (s *scriptedCall) Charge(_ context.Context, _ vault.Credentials, req providers.ChargeRequest) routing.Result {
	c := s.charger
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	c.psps = append(c.psps, s.pspID)
	if c.during != nil {
		c.during()
	}
	if r, ok := c.results[s.pspID]; ok {
		return r
	}
	return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: "do_not_honor"}
}

func (s *scriptedCall) Release() {
	s.charger.mu.Lock()
	s.charger.released++
	s.charger.mu.Unlock()
}

type allowAll struct{}

func (allowAll) Available(*models.PSP) error { return nil }

type harness struct {
	db       *gorm.DB
	payments repositories.PaymentRepository
	psps     repositories.PSPRepository
	configs  repositories.RoutingConfigRepository
	vault    vault.Vault
	charger  *scriptedCharger
	recorder recorder.Recorder
	svc      Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repositories.AutoMigrate(db))

	v, err := vault.New(bytes.Repeat([]byte{3}, 32))
	require.NoError(t, err)

	h := &harness{
		db:       db,
		payments: repositories.NewPaymentRepository(db),
		psps:     repositories.NewPSPRepository(db),
		configs:  repositories.NewRoutingConfigRepository(db),
		vault:    v,
		charger:  &scriptedCharger{results: map[uint]routing.Result{}, refuse: map[uint]bool{}},
	}
	h.recorder = recorder.New(h.payments, nil, recorder.Config{Backoff: time.Millisecond})
	h.build(h.recorder)
	return h
}

func (h *harness) build(rec recorder.Recorder) {
	ledger := capacity.NewLedger(h.payments, capacity.Config{})
	checker := selector.NewEligibilityChecker(ledger, h.vault, allowAll{})
	sel := selector.New(checker, h.payments, nil, selector.Config{})
	loader := NewSnapshotLoader(h.configs, h.psps, nil)
	h.svc = NewService(loader, sel, checker, h.charger, rec, ledger, h.psps, Config{}, nil)
}

func (h *harness) addPSP(t *testing.T, name string, active bool, daily *int64) uint {
	t.Helper()
	secret, err := h.vault.Encrypt("sk_" + name)
	require.NoError(t, err)
	psp := &models.PSP{
		Name:               name,
		Provider:           models.ProviderStripe,
		EncryptedSecretKey: secret,
		DailyCapacity:      daily,
		IsActive:           active,
	}
	ctx := context.Background()
	require.NoError(t, h.psps.Create(ctx, psp))
	require.NoError(t, h.psps.LinkStore(ctx, storeID, psp.ID))
	return psp.ID
}

// configure pins the primary through a single manual weight so the
// fallback path is deterministic.
func (h *harness) configure(t *testing.T, primary uint, fallbackEnabled bool, maxRetries int, chain ...uint) {
	t.Helper()
	cfg := &models.RoutingConfig{
		StoreID:         storeID,
		Mode:            models.RoutingModeManual,
		FallbackEnabled: fallbackEnabled,
		MaxRetries:      maxRetries,
		Weights:         []models.PSPWeight{{PSPID: primary, Weight: 100}},
	}
	for i, id := range chain {
		cfg.Fallbacks = append(cfg.Fallbacks, models.FallbackSequence{PSPID: id, Position: i + 1})
	}
	require.NoError(t, h.configs.Save(context.Background(), cfg))
}

func (h *harness) rows(t *testing.T, orderID string) []models.Payment {
	t.Helper()
	rows, err := h.payments.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return rows
}

func request(amount int64) RouteRequest {
	return RouteRequest{
		StoreID:  storeID,
		Amount:   amount,
		Currency: "eur",
		Customer: routing.CustomerContext{PaymentMethod: "pm_card_visa", Metadata: map[string]string{"cart": "42"}},
	}
}

func declinedWith(code string) routing.Result {
	return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: code}
}

func TestRoutePayment_FallbackDisabledRecordsOneRow(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	p2 := h.addPSP(t, "p2", true, nil)
	h.configure(t, p1, false, 3, p2)
	h.charger.results[p1] = declinedWith("insufficient_funds")

	res, err := h.svc.RoutePayment(context.Background(), request(1000))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.AttemptsMade)
	assert.Equal(t, "insufficient_funds", res.FinalFailureReason)
	require.NotNil(t, res.PSPUsed)
	assert.Equal(t, p1, *res.PSPUsed)

	rows := h.rows(t, res.OrderID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentStatusFailed, rows[0].Status)
	assert.Equal(t, "insufficient_funds", rows[0].FailureReason)
	assert.False(t, rows[0].IsFallback)
	assert.Equal(t, []uint{p1}, h.charger.psps)
}

func TestRoutePayment_DeclineThenFallbackSucceeds(t *testing.T) {
	h := newHarness(t)
	checkout := h.addPSP(t, "checkout", true, nil)
	stripeA := h.addPSP(t, "stripe-a", true, nil)
	h.configure(t, checkout, true, 2, stripeA)
	h.charger.results[checkout] = declinedWith("20051")
	h.charger.results[stripeA] = routing.Result{Outcome: routing.OutcomeSuccess, Reference: "pi_ok"}

	res, err := h.svc.RoutePayment(context.Background(), request(2500))
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.NotNil(t, res.PSPUsed)
	assert.Equal(t, stripeA, *res.PSPUsed)
	assert.Equal(t, 2, res.AttemptsMade)
	assert.Empty(t, res.FinalFailureReason)

	rows := h.rows(t, res.OrderID)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].AttemptNumber)
	assert.Equal(t, checkout, rows[0].PSPID)
	assert.Equal(t, models.PaymentStatusFailed, rows[0].Status)
	assert.False(t, rows[0].IsFallback)

	assert.Equal(t, 2, rows[1].AttemptNumber)
	assert.Equal(t, stripeA, rows[1].PSPID)
	assert.Equal(t, models.PaymentStatusSuccess, rows[1].Status)
	assert.Equal(t, "pi_ok", rows[1].ProviderReference)
	assert.True(t, rows[1].IsFallback)
	assert.Equal(t, "42", rows[1].Metadata["cart"])
}

func TestRoutePayment_MaxRetriesBoundsAttempts(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	p2 := h.addPSP(t, "p2", true, nil)
	p3 := h.addPSP(t, "p3", true, nil)
	p4 := h.addPSP(t, "p4", true, nil)
	h.configure(t, p1, true, 3, p2, p3, p4)

	res, err := h.svc.RoutePayment(context.Background(), request(700))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.AttemptsMade)
	assert.Equal(t, []uint{p1, p2, p3}, h.charger.psps)

	rows := h.rows(t, res.OrderID)
	require.Len(t, rows, 3)
	intents := map[string]bool{}
	for i, row := range rows {
		assert.Equal(t, i+1, row.AttemptNumber)
		assert.Equal(t, models.PaymentStatusFailed, row.Status)
		assert.Equal(t, h.charger.calls[i].IntentID, row.IntentID)
		intents[row.IntentID] = true
	}
	assert.Len(t, intents, 3)
}

func TestRoutePayment_IneligibleFallbackDoesNotConsumeSlot(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	p2 := h.addPSP(t, "p2", false, nil)
	p3 := h.addPSP(t, "p3", true, nil)
	h.configure(t, p1, true, 2, p2, p3)
	h.charger.results[p3] = routing.Result{Outcome: routing.OutcomeSuccess}

	res, err := h.svc.RoutePayment(context.Background(), request(700))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, p3, *res.PSPUsed)
	assert.Equal(t, 2, res.AttemptsMade)
	assert.Equal(t, []uint{p1, p3}, h.charger.psps)
}

func TestRoutePayment_NoEligiblePSP(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", false, nil)
	h.configure(t, p1, true, 3)

	res, err := h.svc.RoutePayment(context.Background(), request(700))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.PSPUsed)
	assert.Zero(t, res.AttemptsMade)
	assert.Equal(t, apperrors.ErrNoEligiblePSP.Code, res.FinalFailureReason)
	assert.Empty(t, h.charger.calls)

	_, total, err := h.payments.List(context.Background(), models.PaymentFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRoutePayment_ManualWeightsSkipExhaustedPSP(t *testing.T) {
	h := newHarness(t)
	zero := int64(0)
	a := h.addPSP(t, "a", true, nil)
	b := h.addPSP(t, "b", true, &zero)
	require.NoError(t, h.configs.Save(context.Background(), &models.RoutingConfig{
		StoreID: storeID,
		Mode:    models.RoutingModeManual,
		Weights: []models.PSPWeight{{PSPID: a, Weight: 50}, {PSPID: b, Weight: 50}},
	}))
	h.charger.results[a] = routing.Result{Outcome: routing.OutcomeSuccess}

	for i := 0; i < 50; i++ {
		res, err := h.svc.RoutePayment(context.Background(), request(100))
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, a, *res.PSPUsed)
	}
}

func TestRoutePayment_NoConfigUsesDefaults(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	h.addPSP(t, "p2", true, nil)

	res, err := h.svc.RoutePayment(context.Background(), request(100))
	require.NoError(t, err)

	// automatic with neutral stats and no usage ties on lowest id
	assert.Equal(t, p1, *res.PSPUsed)
	assert.Equal(t, 1, res.AttemptsMade)
}

func TestRoutePayment_CallerCancelDuringAttempt(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	p2 := h.addPSP(t, "p2", true, nil)
	h.configure(t, p1, true, 3, p2)

	ctx, cancel := context.WithCancel(context.Background())
	h.charger.during = cancel

	res, err := h.svc.RoutePayment(ctx, request(300))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.AttemptsMade)
	assert.Equal(t, []uint{p1}, h.charger.psps)

	rows := h.rows(t, res.OrderID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentStatusFailed, rows[0].Status)
}

type failingRecorder struct {
	recorder.Recorder
	failBegin    int
	failComplete int
	begins       int
	completes    int
}

func (f *failingRecorder) Begin(ctx context.Context, p *models.Payment) error {
	f.begins++
	if f.begins == f.failBegin {
		return apperrors.ErrRecorderWriteFailure.WithCause(errors.New("disk full"))
	}
	return f.Recorder.Begin(ctx, p)
}

func (f *failingRecorder) Complete(ctx context.Context, p *models.Payment, r routing.Result, d time.Duration) error {
	f.completes++
	if f.completes == f.failComplete {
		return apperrors.ErrRecorderWriteFailure.WithCause(errors.New("disk full"))
	}
	return f.Recorder.Complete(ctx, p, r, d)
}

func TestRoutePayment_RecorderFailureStopsFallback(t *testing.T) {
	tests := []struct {
		name         string
		failBegin    int
		failComplete int
		wantCalls    int
		wantAttempts int
		wantReleased int
	}{
		{name: "primary row not written", failBegin: 1, wantCalls: 0, wantAttempts: 0, wantReleased: 1},
		{name: "primary result not written", failComplete: 1, wantCalls: 1, wantAttempts: 1},
		{name: "fallback row not written", failBegin: 2, wantCalls: 1, wantAttempts: 1, wantReleased: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p1 := h.addPSP(t, "p1", true, nil)
			p2 := h.addPSP(t, "p2", true, nil)
			h.configure(t, p1, true, 3, p2)
			h.build(&failingRecorder{Recorder: h.recorder, failBegin: tt.failBegin, failComplete: tt.failComplete})

			res, err := h.svc.RoutePayment(context.Background(), request(300))
			assert.ErrorIs(t, err, apperrors.ErrRecorderWriteFailure)
			require.NotNil(t, res)
			assert.False(t, res.Success)
			assert.Equal(t, apperrors.ErrRecorderWriteFailure.Code, res.FinalFailureReason)
			assert.Equal(t, tt.wantAttempts, res.AttemptsMade)
			assert.Len(t, h.charger.calls, tt.wantCalls)
			assert.Equal(t, tt.wantReleased, h.charger.released)
		})
	}
}

func TestRoutePayment_CapturedPaymentSurvivesRecorderFailure(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	p2 := h.addPSP(t, "p2", true, nil)
	h.configure(t, p1, true, 3, p2)
	h.charger.results[p1] = routing.Result{Outcome: routing.OutcomeSuccess, Reference: "pi_captured"}
	h.build(&failingRecorder{Recorder: h.recorder, failComplete: 1})

	res, err := h.svc.RoutePayment(context.Background(), request(300))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.RecordingFailed)
	require.NotNil(t, res.PSPUsed)
	assert.Equal(t, p1, *res.PSPUsed)
	assert.Equal(t, "p1", res.PSPName)
	assert.Equal(t, 1, res.AttemptsMade)
	assert.Empty(t, res.FinalFailureReason)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, routing.OutcomeSuccess, res.Attempts[0].Outcome)

	// no fallback after a capture, and the row is left for reconciliation
	assert.Equal(t, []uint{p1}, h.charger.psps)
	rows := h.rows(t, res.OrderID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentStatusProcessing, rows[0].Status)
	assert.Equal(t, res.Attempts[0].IntentID, rows[0].IntentID)
}

func TestRoutePayment_RefusedCallDoesNotConsumeAttempt(t *testing.T) {
	tests := []struct {
		name      string
		refuse    []string
		chain     []string
		primary   string
		wantPSPs  []string
		wantUsed  string
		wantTotal int
	}{
		{
			name:      "refused fallback is skipped",
			primary:   "p1",
			chain:     []string{"p2", "p3"},
			refuse:    []string{"p2"},
			wantPSPs:  []string{"p1", "p3"},
			wantUsed:  "p3",
			wantTotal: 2,
		},
		{
			name:      "refused primary is chosen again",
			primary:   "p1",
			chain:     []string{"p2"},
			refuse:    []string{"p1"},
			wantPSPs:  []string{"p2"},
			wantUsed:  "p2",
			wantTotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ids := map[string]uint{}
			for _, name := range []string{"p1", "p2", "p3"} {
				ids[name] = h.addPSP(t, name, true, nil)
			}
			var chain []uint
			for _, name := range tt.chain {
				chain = append(chain, ids[name])
			}
			h.configure(t, ids[tt.primary], true, 2, chain...)
			for _, name := range tt.refuse {
				h.charger.refuse[ids[name]] = true
			}
			h.charger.results[ids[tt.wantUsed]] = routing.Result{Outcome: routing.OutcomeSuccess}

			res, err := h.svc.RoutePayment(context.Background(), request(500))
			require.NoError(t, err)
			require.True(t, res.Success)
			assert.Equal(t, ids[tt.wantUsed], *res.PSPUsed)
			assert.Equal(t, tt.wantTotal, res.AttemptsMade)

			var want []uint
			for _, name := range tt.wantPSPs {
				want = append(want, ids[name])
			}
			assert.Equal(t, want, h.charger.psps)

			rows := h.rows(t, res.OrderID)
			require.Len(t, rows, tt.wantTotal)
			for i, row := range rows {
				assert.Equal(t, i+1, row.AttemptNumber)
				assert.Equal(t, want[i], row.PSPID)
			}
		})
	}
}

func TestRoutePayment_OnlyPSPRefused(t *testing.T) {
	h := newHarness(t)
	p1 := h.addPSP(t, "p1", true, nil)
	h.configure(t, p1, false, 1)
	h.charger.refuse[p1] = true

	res, err := h.svc.RoutePayment(context.Background(), request(500))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.PSPUsed)
	assert.Zero(t, res.AttemptsMade)
	assert.Equal(t, apperrors.ErrNoEligiblePSP.Code, res.FinalFailureReason)
	assert.Empty(t, h.rows(t, res.OrderID))
}

func TestRoutePayment_InvalidRequest(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  RouteRequest
	}{
		{"missing store", RouteRequest{Amount: 1, Currency: "EUR", Customer: routing.CustomerContext{PaymentMethod: "pm"}}},
		{"zero amount", RouteRequest{StoreID: 1, Currency: "EUR", Customer: routing.CustomerContext{PaymentMethod: "pm"}}},
		{"bad currency", RouteRequest{StoreID: 1, Amount: 1, Currency: "EURO", Customer: routing.CustomerContext{PaymentMethod: "pm"}}},
		{"no payment method", RouteRequest{StoreID: 1, Amount: 1, Currency: "EUR"}},
		{"bad email", RouteRequest{StoreID: 1, Amount: 1, Currency: "EUR", Customer: routing.CustomerContext{PaymentMethod: "pm", Email: "nope"}}},
		{"digits in currency", RouteRequest{StoreID: 1, Amount: 1, Currency: "E1R", Customer: routing.CustomerContext{PaymentMethod: "pm"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.RoutePayment(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidRouteRequest)
		})
	}
}

func TestGetRemainingCapacity(t *testing.T) {
	h := newHarness(t)
	daily := int64(10000)
	p1 := h.addPSP(t, "p1", true, &daily)
	h.configure(t, p1, false, 1)
	h.charger.results[p1] = routing.Result{Outcome: routing.OutcomeSuccess}

	for i := 0; i < 3; i++ {
		res, err := h.svc.RoutePayment(context.Background(), request(1999))
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	view, err := h.svc.GetRemainingCapacity(context.Background(), p1)
	require.NoError(t, err)
	assert.Equal(t, int64(3*1999), view.DailyUsed)
	require.NotNil(t, view.DailyRemaining)
	assert.Equal(t, int64(10000-3*1999), *view.DailyRemaining)
	assert.Nil(t, view.MonthlyRemaining)

	_, err = h.svc.GetRemainingCapacity(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrPSPNotFound)
}

func TestRoutePayment_CapacityStopsRouting(t *testing.T) {
	h := newHarness(t)
	daily := int64(5000)
	p1 := h.addPSP(t, "p1", true, &daily)
	h.configure(t, p1, false, 1)
	h.charger.results[p1] = routing.Result{Outcome: routing.OutcomeSuccess}

	for i := 0; i < 2; i++ {
		res, err := h.svc.RoutePayment(context.Background(), request(2000))
		require.NoError(t, err)
		require.True(t, res.Success, fmt.Sprintf("route %d", i))
	}

	res, err := h.svc.RoutePayment(context.Background(), request(2000))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrNoEligiblePSP.Code, res.FinalFailureReason)
}

func TestCounters(t *testing.T) {
	c := NewCounters()
	c.RecordRoute(true, 2, 100*time.Millisecond)
	c.RecordRoute(false, 1, 300*time.Millisecond)
	c.RecordAttempt(1, routing.OutcomeDeclined, 40*time.Millisecond)
	c.RecordAttempt(2, routing.OutcomeSuccess, 60*time.Millisecond)
	c.RecordAttempt(1, routing.OutcomeError, 20*time.Millisecond)
	c.RecordNoEligible(1)
	c.RecordError("record")

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Routes)
	assert.Equal(t, int64(1), snap.Succeeded)
	assert.Equal(t, int64(1), snap.WithFallback)
	assert.Equal(t, int64(1), snap.NoEligiblePSP)
	assert.Equal(t, 200.0, snap.AvgRouteMs)
	assert.Equal(t, PSPCounters{Declined: 1, Error: 1, AvgLatencyMs: 30}, snap.PSPs[1])
	assert.Equal(t, int64(1), snap.Errors["record"])
}
