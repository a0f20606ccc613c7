package repositories

import (
	"context"
	"errors"
	"fmt"

	"payroute/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PSPRepository defines the interface for PSP and store link persistence.
type PSPRepository interface {
	Create(ctx context.Context, psp *models.PSP) error
	Update(ctx context.Context, psp *models.PSP) error
	GetByID(ctx context.Context, id uint) (*models.PSP, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]models.PSP, error)

	// ListForStore returns the non-deleted PSPs linked to a store.
	ListForStore(ctx context.Context, storeID uint) ([]models.PSP, error)
	LinkStore(ctx context.Context, storeID, pspID uint) error
	UnlinkStore(ctx context.Context, storeID, pspID uint) error
}

type pspRepository struct {
	db *gorm.DB
}

func NewPSPRepository(db *gorm.DB) PSPRepository {
	return &pspRepository{db: db}
}

func (r *pspRepository) Create(ctx context.Context, psp *models.PSP) error {
	if err := r.db.WithContext(ctx).Create(psp).Error; err != nil {
		return fmt.Errorf("failed to create psp: %w", err)
	}
	return nil
}

func (r *pspRepository) Update(ctx context.Context, psp *models.PSP) error {
	result := r.db.WithContext(ctx).Save(psp)
	if result.Error != nil {
		return fmt.Errorf("failed to update psp: %w", result.Error)
	}
	return nil
}

func (r *pspRepository) GetByID(ctx context.Context, id uint) (*models.PSP, error) {
	var psp models.PSP
	if err := r.db.WithContext(ctx).First(&psp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPSPNotFound
		}
		return nil, fmt.Errorf("failed to get psp: %w", err)
	}
	return &psp, nil
}

// Delete soft-deletes the PSP. Store links and attempt history stay.
func (r *pspRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.PSP{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete psp: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPSPNotFound
	}
	return nil
}

func (r *pspRepository) List(ctx context.Context) ([]models.PSP, error) {
	var psps []models.PSP
	if err := r.db.WithContext(ctx).Order("id").Find(&psps).Error; err != nil {
		return nil, fmt.Errorf("failed to list psps: %w", err)
	}
	return psps, nil
}

func (r *pspRepository) ListForStore(ctx context.Context, storeID uint) ([]models.PSP, error) {
	var psps []models.PSP
	err := r.db.WithContext(ctx).
		Joins("JOIN store_psps ON store_psps.psp_id = psps.id").
		Where("store_psps.store_id = ?", storeID).
		Order("psps.id").
		Find(&psps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list psps for store %d: %w", storeID, err)
	}
	return psps, nil
}

func (r *pspRepository) LinkStore(ctx context.Context, storeID, pspID uint) error {
	if _, err := r.GetByID(ctx, pspID); err != nil {
		return err
	}

	link := models.StorePSP{StoreID: storeID, PSPID: pspID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	if err != nil {
		return fmt.Errorf("failed to link psp %d to store %d: %w", pspID, storeID, err)
	}
	return nil
}

func (r *pspRepository) UnlinkStore(ctx context.Context, storeID, pspID uint) error {
	result := r.db.WithContext(ctx).
		Where("store_id = ? AND psp_id = ?", storeID, pspID).
		Delete(&models.StorePSP{})
	if result.Error != nil {
		return fmt.Errorf("failed to unlink psp %d from store %d: %w", pspID, storeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPSPNotFound
	}
	return nil
}
