package repositories

import (
	"context"
	"errors"
	"fmt"

	"payroute/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoutingConfigRepository persists per-store routing policy together with
// its weights and fallback sequence.
type RoutingConfigRepository interface {
	GetByStoreID(ctx context.Context, storeID uint) (*models.RoutingConfig, error)
	// Save replaces the store's config, weights and fallbacks in one transaction.
	Save(ctx context.Context, cfg *models.RoutingConfig) error
}

type routingConfigRepository struct {
	db *gorm.DB
}

func NewRoutingConfigRepository(db *gorm.DB) RoutingConfigRepository {
	return &routingConfigRepository{db: db}
}

func (r *routingConfigRepository) GetByStoreID(ctx context.Context, storeID uint) (*models.RoutingConfig, error) {
	var cfg models.RoutingConfig
	err := r.db.WithContext(ctx).
		Preload("Weights", func(db *gorm.DB) *gorm.DB { return db.Order("psp_id") }).
		Preload("Fallbacks", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("store_id = ?", storeID).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoutingConfigNotFound
		}
		return nil, fmt.Errorf("failed to get routing config: %w", err)
	}
	return &cfg, nil
}

func (r *routingConfigRepository) Save(ctx context.Context, cfg *models.RoutingConfig) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.RoutingConfig
		err := tx.Where("store_id = ?", cfg.StoreID).First(&existing).Error
		switch {
		case err == nil:
			cfg.ID = existing.ID
			cfg.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			cfg.ID = 0
		default:
			return fmt.Errorf("failed to load routing config: %w", err)
		}

		if err := tx.Omit(clause.Associations).Save(cfg).Error; err != nil {
			return fmt.Errorf("failed to save routing config: %w", err)
		}

		if err := tx.Where("routing_config_id = ?", cfg.ID).Delete(&models.PSPWeight{}).Error; err != nil {
			return fmt.Errorf("failed to clear weights: %w", err)
		}
		if err := tx.Where("routing_config_id = ?", cfg.ID).Delete(&models.FallbackSequence{}).Error; err != nil {
			return fmt.Errorf("failed to clear fallbacks: %w", err)
		}

		for i := range cfg.Weights {
			cfg.Weights[i].ID = 0
			cfg.Weights[i].RoutingConfigID = cfg.ID
		}
		for i := range cfg.Fallbacks {
			cfg.Fallbacks[i].ID = 0
			cfg.Fallbacks[i].RoutingConfigID = cfg.ID
		}

		if len(cfg.Weights) > 0 {
			if err := tx.Create(&cfg.Weights).Error; err != nil {
				return fmt.Errorf("failed to save weights: %w", err)
			}
		}
		if len(cfg.Fallbacks) > 0 {
			if err := tx.Create(&cfg.Fallbacks).Error; err != nil {
				return fmt.Errorf("failed to save fallbacks: %w", err)
			}
		}
		return nil
	})
}
