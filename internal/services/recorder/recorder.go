package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payroute/internal/domain/routing"
	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/repositories"
)

type recorder struct {
	store    Store
	notifier Notifier
	config   Config
	sleep    func(time.Duration)
}

// New returns a Recorder. notifier may be nil.
func New(store Store, notifier Notifier, config Config) Recorder {
	if store == nil {
		panic("recorder store cannot be nil")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	return &recorder{store: store, notifier: notifier, config: config, sleep: time.Sleep}
}

func (r *recorder) Begin(ctx context.Context, attempt *models.Payment) error {
	if attempt.IntentID == "" {
		return apperrors.ErrRecorderWriteFailure.WithCause(errors.New("attempt has no intent id"))
	}
	attempt.Status = models.PaymentStatusProcessing

	return r.retry(ctx, "begin", attempt, func(ctx context.Context, try int) error {
		if try > 1 {
			// a previous try may have committed before its error surfaced
			existing, err := r.store.GetByIntentID(ctx, attempt.IntentID)
			if err == nil {
				attempt.ID = existing.ID
				attempt.CreatedAt = existing.CreatedAt
				return nil
			}
			if !errors.Is(err, repositories.ErrPaymentNotFound) {
				return err
			}
		}
		return r.store.Create(ctx, attempt)
	})
}

func (r *recorder) Complete(ctx context.Context, attempt *models.Payment, result routing.Result, elapsed time.Duration) error {
	if attempt.ID == 0 {
		return apperrors.ErrRecorderWriteFailure.WithCause(errors.New("attempt was never begun"))
	}

	attempt.Outcome = string(result.Outcome)
	attempt.ProcessingTimeMs = elapsed.Milliseconds()
	attempt.ProviderReference = result.Reference
	if result.Succeeded() {
		attempt.Status = models.PaymentStatusSuccess
		attempt.FailureReason = ""
	} else {
		attempt.Status = models.PaymentStatusFailed
		attempt.FailureReason = result.ReasonCode
	}

	err := r.retry(ctx, "complete", attempt, func(ctx context.Context, try int) error {
		err := r.store.Finalize(ctx, attempt)
		if !errors.Is(err, repositories.ErrAttemptAlreadyFinal) || try == 1 {
			return err
		}
		existing, getErr := r.store.GetByID(ctx, attempt.ID)
		if getErr != nil {
			return getErr
		}
		if existing.Status == attempt.Status {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	if r.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.WriteTimeout)
		defer cancel()
		if err := r.notifier.AttemptRecorded(nctx, attempt); err != nil {
			log.Printf("⚠️ Attempt %s recorded but not announced: %v", attempt.IntentID, err)
		}
	}
	return nil
}

// retry runs op until it succeeds or MaxAttempts is spent. Writes are
// detached from ctx cancellation so a caller leaving does not lose a row.
func (r *recorder) retry(ctx context.Context, stage string, attempt *models.Payment, op func(context.Context, int) error) error {
	base := context.WithoutCancel(ctx)

	var err error
	for try := 1; try <= r.config.MaxAttempts; try++ {
		wctx, cancel := context.WithTimeout(base, r.config.WriteTimeout)
		err = op(wctx, try)
		cancel()
		if err == nil {
			return nil
		}

		log.Printf("⚠️ Recorder %s failed for attempt %s (try %d/%d): %v",
			stage, attempt.IntentID, try, r.config.MaxAttempts, err)
		if try < r.config.MaxAttempts {
			r.sleep(time.Duration(try) * r.config.Backoff)
		}
	}

	log.Printf("🚨 Recorder gave up on %s of attempt %s (order %s, psp %d, status %s)",
		stage, attempt.IntentID, attempt.OrderID, attempt.PSPID, attempt.Status)
	return apperrors.ErrRecorderWriteFailure.WithCause(fmt.Errorf("%s: %w", stage, err))
}
