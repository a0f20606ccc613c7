package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository persists payment attempts. Rows are inserted once and
// finalized once; nothing here rewrites a terminal attempt.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	// Finalize moves a PROCESSING attempt to its terminal status.
	Finalize(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter, limit, offset int) ([]models.Payment, int64, error)
	// ListStaleProcessing returns PROCESSING attempts created before cutoff, oldest first.
	ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]models.Payment, error)

	// SumAmount totals attempts of the given statuses created at or after since.
	SumAmount(ctx context.Context, pspID uint, statuses []models.PaymentStatus, since time.Time) (int64, error)
	// RecentStats aggregates the last window terminal attempts of a PSP.
	RecentStats(ctx context.Context, pspID uint, window int) (*models.PSPStats, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Finalize(ctx context.Context, payment *models.Payment) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusProcessing).
		Updates(map[string]interface{}{
			"status":             payment.Status,
			"outcome":            payment.Outcome,
			"failure_reason":     payment.FailureReason,
			"processing_time_ms": payment.ProcessingTimeMs,
			"provider_reference": payment.ProviderReference,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAttemptAlreadyFinal
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for order: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.PaymentStatusProcessing, before).
		Order("created_at").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) List(ctx context.Context, filter models.PaymentFilter, limit, offset int) ([]models.Payment, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.StoreID != nil {
			db = db.Where("store_id = ?", *filter.StoreID)
		}
		if filter.PSPID != nil {
			db = db.Where("psp_id = ?", *filter.PSPID)
		}
		if filter.OrderID != "" {
			db = db.Where("order_id = ?", filter.OrderID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}

func (r *paymentRepository) SumAmount(ctx context.Context, pspID uint, statuses []models.PaymentStatus, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("psp_id = ? AND status IN ? AND created_at >= ?", pspID, statuses, since).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments for psp %d: %w", pspID, err)
	}
	return total, nil
}

func (r *paymentRepository) RecentStats(ctx context.Context, pspID uint, window int) (*models.PSPStats, error) {
	var recent []models.Payment
	err := r.db.WithContext(ctx).
		Select("status", "outcome", "processing_time_ms").
		Where("psp_id = ? AND status IN ?", pspID, []models.PaymentStatus{models.PaymentStatusSuccess, models.PaymentStatusFailed}).
		Order("created_at DESC, id DESC").
		Limit(window).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for psp %d: %w", pspID, err)
	}

	stats := &models.PSPStats{PSPID: pspID, Samples: len(recent)}
	if len(recent) == 0 {
		return stats, nil
	}

	var latency int64
	for _, p := range recent {
		if p.Status == models.PaymentStatusSuccess {
			stats.Successes++
		}
		if p.Outcome == string(routing.OutcomeError) {
			stats.TransportErrs++
		}
		latency += p.ProcessingTimeMs
	}
	stats.ApprovalRate = float64(stats.Successes) / float64(stats.Samples)
	stats.AvgLatencyMs = float64(latency) / float64(stats.Samples)
	return stats, nil
}
