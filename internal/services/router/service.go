package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"payroute/internal/domain/routing"
	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/capacity"
	"payroute/internal/services/fallback"
	"payroute/internal/services/providers"
	"payroute/internal/services/recorder"
	"payroute/internal/services/selector"
	"payroute/internal/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type service struct {
	loader   SnapshotLoader
	selector selector.Selector
	checker  selector.EligibilityChecker
	charger  Charger
	recorder recorder.Recorder
	ledger   capacity.Ledger
	psps     PSPReader
	config   Config
	metrics  MetricsCollector
}

// NewService creates the routing orchestrator.
func NewService(
	loader SnapshotLoader,
	sel selector.Selector,
	checker selector.EligibilityChecker,
	charger Charger,
	rec recorder.Recorder,
	ledger capacity.Ledger,
	psps PSPReader,
	config Config,
	metrics MetricsCollector,
) Service {
	if loader == nil {
		panic("snapshot loader is required")
	}
	if sel == nil {
		panic("selector is required")
	}
	if checker == nil {
		panic("eligibility checker is required")
	}
	if charger == nil {
		panic("charger is required")
	}
	if rec == nil {
		panic("recorder is required")
	}
	if ledger == nil {
		panic("capacity ledger is required")
	}
	if psps == nil {
		panic("psp reader is required")
	}

	if config.NewIntentID == nil {
		config.NewIntentID = uuid.NewString
	}
	if config.NewOrderID == nil {
		config.NewOrderID = uuid.NewString
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		loader:   loader,
		selector: sel,
		checker:  checker,
		charger:  charger,
		recorder: rec,
		ledger:   ledger,
		psps:     psps,
		config:   config,
		metrics:  metrics,
	}
}

func (s *service) RoutePayment(ctx context.Context, req RouteRequest) (*RouteResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.Currency = strings.ToUpper(req.Currency)

	start := s.config.Now()
	snap, err := s.loader.Load(ctx, req.StoreID, start)
	if err != nil {
		s.metrics.RecordError("snapshot")
		return nil, err
	}

	result := &RouteResult{OrderID: req.OrderID}
	if result.OrderID == "" {
		result.OrderID = s.config.NewOrderID()
	}
	defer func() {
		s.metrics.RecordRoute(result.Success, result.AttemptsMade, s.config.Now().Sub(start))
	}()

	candidate, err := s.selector.SelectPrimary(ctx, snap, req.Amount, start)
	if errors.Is(err, apperrors.ErrNoEligiblePSP) {
		s.noEligible(req, result)
		return result, nil
	}
	if err != nil {
		s.metrics.RecordError("select")
		return nil, err
	}

	seq := fallback.New(snap, s.checker)
	for {
		attemptNumber := seq.NextAttemptNumber()
		pspID := candidate.PSP.ID
		outcome, err := s.attempt(ctx, req, result.OrderID, candidate, attemptNumber)

		if outcome.charged {
			result.PSPUsed = &pspID
			result.PSPName = candidate.PSP.Name
			result.AttemptsMade = attemptNumber
			result.Attempts = append(result.Attempts, AttemptSummary{
				AttemptNumber: attemptNumber,
				PSPID:         pspID,
				IsFallback:    attemptNumber > 1,
				Outcome:       outcome.result.Outcome,
				ReasonCode:    outcome.result.ReasonCode,
				IntentID:      outcome.intentID,
			})
		}
		if err != nil {
			s.metrics.RecordError("record")
			if outcome.charged && outcome.result.Succeeded() {
				// funds are captured; only the attempt row is behind
				result.Success = true
				result.RecordingFailed = true
				result.FinalFailureReason = ""
				log.Printf("🚨 Order %s captured by psp %d (intent %s, reference %s) but its attempt row was not finalized: %v",
					result.OrderID, pspID, outcome.intentID, outcome.result.Reference, err)
				return result, nil
			}
			result.FinalFailureReason = apperrors.ErrRecorderWriteFailure.Code
			return result, err
		}

		var next *selector.Candidate
		if outcome.skipped {
			snap, next, err = s.skip(ctx, snap, seq, req, pspID)
		} else {
			if err := seq.Record(pspID, outcome.result); err != nil {
				return result, fmt.Errorf("fallback sequence: %w", err)
			}
			if outcome.result.Succeeded() {
				result.Success = true
				result.FinalFailureReason = ""
				log.Printf("✅ Order %s paid via psp %d on attempt %d", result.OrderID, pspID, attemptNumber)
				return result, nil
			}
			result.FinalFailureReason = outcome.result.ReasonCode
			next, err = seq.Next(ctx, req.Amount, s.config.Now())
		}

		switch {
		case errors.Is(err, fallback.ErrExhausted):
			if result.AttemptsMade == 0 {
				s.noEligible(req, result)
				return result, nil
			}
			log.Printf("⚠️ Order %s failed after %d attempt(s): %s", result.OrderID, result.AttemptsMade, result.FinalFailureReason)
			return result, nil
		case errors.Is(err, apperrors.ErrNoEligiblePSP):
			s.noEligible(req, result)
			return result, nil
		case err != nil:
			// caller went away between attempts; everything made so far is recorded
			return result, err
		}
		candidate = next
	}
}

func (s *service) noEligible(req RouteRequest, result *RouteResult) {
	log.Printf("⚠️ Store %d: no eligible psp for order %s (%d %s)", req.StoreID, result.OrderID, req.Amount, req.Currency)
	s.metrics.RecordNoEligible(req.StoreID)
	result.FinalFailureReason = apperrors.ErrNoEligiblePSP.Code
}

// skip moves past a PSP that refused the call before any provider request.
// Before the first real attempt the primary is chosen again without it.
func (s *service) skip(ctx context.Context, snap *routing.Snapshot, seq *fallback.Sequencer, req RouteRequest, pspID uint) (*routing.Snapshot, *selector.Candidate, error) {
	if err := seq.Skip(pspID); err != nil {
		return snap, nil, fmt.Errorf("fallback sequence: %w", err)
	}
	if seq.AttemptsMade() > 0 {
		next, err := seq.Next(ctx, req.Amount, s.config.Now())
		return snap, next, err
	}

	snap = snap.Without(pspID)
	next, err := s.selector.SelectPrimary(ctx, snap, req.Amount, s.config.Now())
	if err != nil && !errors.Is(err, apperrors.ErrNoEligiblePSP) {
		s.metrics.RecordError("select")
	}
	return snap, next, err
}

type attemptOutcome struct {
	result   routing.Result
	intentID string
	charged  bool
	skipped  bool
}

// attempt records, charges and finalizes one attempt. A PSP whose breaker
// refuses the call is reported as skipped and leaves no row. A non-nil
// error means the attempt row is not durable and the purchase must stop.
func (s *service) attempt(ctx context.Context, req RouteRequest, orderID string, c *selector.Candidate, attemptNumber int) (attemptOutcome, error) {
	call, err := s.charger.Reserve(&c.PSP)
	if err != nil {
		log.Printf("⚠️ Order %s: psp %d skipped before attempt %d: %v", orderID, c.PSP.ID, attemptNumber, err)
		return attemptOutcome{skipped: true}, nil
	}

	payment := &models.Payment{
		OrderID:       orderID,
		StoreID:       req.StoreID,
		PSPID:         c.PSP.ID,
		AttemptNumber: attemptNumber,
		IsFallback:    attemptNumber > 1,
		IntentID:      s.config.NewIntentID(),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Metadata:      attemptMetadata(req.Customer.Metadata),
		CreatedAt:     s.config.Now().UTC(),
	}
	out := attemptOutcome{intentID: payment.IntentID}

	if err := s.recorder.Begin(ctx, payment); err != nil {
		call.Release()
		return out, err
	}

	started := s.config.Now()
	out.result = call.Charge(ctx, c.Credentials, providers.ChargeRequest{
		IntentID: payment.IntentID,
		OrderID:  orderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Customer: req.Customer,
	})
	elapsed := s.config.Now().Sub(started)
	out.charged = true
	s.metrics.RecordAttempt(c.PSP.ID, out.result.Outcome, elapsed)

	if err := s.recorder.Complete(ctx, payment, out.result, elapsed); err != nil {
		return out, err
	}
	return out, nil
}

func attemptMetadata(in map[string]string) datatypes.JSONMap {
	if len(in) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func validateRequest(req RouteRequest) error {
	v := validation.New()
	v.Struct(req)
	if !v.Valid() {
		return apperrors.ErrInvalidRouteRequest.WithCause(errors.New(v.Summary()))
	}
	return nil
}

func (s *service) GetRemainingCapacity(ctx context.Context, pspID uint) (*models.CapacityView, error) {
	psp, err := s.psps.GetByID(ctx, pspID)
	if err != nil {
		if errors.Is(err, repositories.ErrPSPNotFound) {
			return nil, apperrors.ErrPSPNotFound
		}
		return nil, fmt.Errorf("failed to get psp: %w", err)
	}
	return s.ledger.Remaining(ctx, psp, s.config.Now())
}
