package capacity

import (
	"context"
	"fmt"
	"time"

	apperrors "payroute/internal/errors"
	"payroute/internal/models"
)

type ledger struct {
	reader UsageReader
	config Config
}

// NewLedger creates a capacity ledger over recorded payment attempts.
func NewLedger(reader UsageReader, config Config) Ledger {
	if reader == nil {
		panic("usage reader is required")
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.CutoverHour <= 0 || config.CutoverHour > 23 {
		config.CutoverHour = DefaultCutoverHour
	}
	if config.MonthlyWindow <= 0 {
		config.MonthlyWindow = DefaultMonthlyWindow
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultQueryTimeout
	}

	return &ledger{reader: reader, config: config}
}

func (l *ledger) statuses() []models.PaymentStatus {
	if l.config.ExcludeProcessing {
		return []models.PaymentStatus{models.PaymentStatusSuccess}
	}
	return []models.PaymentStatus{models.PaymentStatusSuccess, models.PaymentStatusProcessing}
}

func (l *ledger) Usage(ctx context.Context, psp *models.PSP, now time.Time) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.QueryTimeout)
	defer cancel()

	statuses := l.statuses()
	var usage Usage
	var err error

	usage.Daily, err = l.reader.SumAmount(ctx, psp.ID, statuses, DailyWindowStart(now, l.config.Location, l.config.CutoverHour))
	if err != nil {
		return Usage{}, fmt.Errorf("psp %d daily usage: %w", psp.ID, apperrors.ErrCapacityLedgerUnavailable.WithCause(err))
	}

	usage.Monthly, err = l.reader.SumAmount(ctx, psp.ID, statuses, MonthlyWindowStart(now, l.config.MonthlyWindow))
	if err != nil {
		return Usage{}, fmt.Errorf("psp %d monthly usage: %w", psp.ID, apperrors.ErrCapacityLedgerUnavailable.WithCause(err))
	}

	return usage, nil
}

// HasCapacity fails closed: when usage cannot be read it returns false
// together with the error.
func (l *ledger) HasCapacity(ctx context.Context, psp *models.PSP, amount int64, now time.Time) (bool, error) {
	if psp.DailyCapacity == nil && psp.MonthlyCapacity == nil {
		return true, nil
	}

	usage, err := l.Usage(ctx, psp, now)
	if err != nil {
		return false, err
	}
	return Fits(usage, psp, amount), nil
}

func (l *ledger) Remaining(ctx context.Context, psp *models.PSP, now time.Time) (*models.CapacityView, error) {
	usage, err := l.Usage(ctx, psp, now)
	if err != nil {
		return nil, err
	}

	return &models.CapacityView{
		PSPID:            psp.ID,
		DailyUsed:        usage.Daily,
		MonthlyUsed:      usage.Monthly,
		DailyRemaining:   remaining(psp.DailyCapacity, usage.Daily),
		MonthlyRemaining: remaining(psp.MonthlyCapacity, usage.Monthly),
	}, nil
}

func remaining(ceiling *int64, used int64) *int64 {
	if ceiling == nil {
		return nil
	}
	left := *ceiling - used
	if left < 0 {
		left = 0
	}
	return &left
}
