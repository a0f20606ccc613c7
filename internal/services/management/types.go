package management

import (
	"context"
	"time"

	"payroute/internal/models"
)

const (
	// StaleReason is the failure reason written by SweepStaleAttempts.
	StaleReason       = "stale_processing"
	DefaultSweepLimit = 500
)

type Service interface {
	CreatePSP(ctx context.Context, in PSPInput) (*models.PSP, error)
	// UpdatePSP keeps the stored keys when the input leaves them empty.
	UpdatePSP(ctx context.Context, id uint, in PSPInput) (*models.PSP, error)
	DeletePSP(ctx context.Context, id uint) error
	GetPSP(ctx context.Context, id uint) (*models.PSP, error)
	ListPSPs(ctx context.Context) ([]models.PSP, error)

	LinkStore(ctx context.Context, storeID, pspID uint) error
	UnlinkStore(ctx context.Context, storeID, pspID uint) error
	ListStorePSPs(ctx context.Context, storeID uint) ([]models.PSP, error)

	GetRoutingConfig(ctx context.Context, storeID uint) (*models.RoutingConfig, error)
	SaveRoutingConfig(ctx context.Context, storeID uint, in RoutingConfigInput) (*models.RoutingConfig, error)

	ListPayments(ctx context.Context, filter models.PaymentFilter, limit, offset int) ([]models.Payment, int64, error)
	ListOrderAttempts(ctx context.Context, orderID string) ([]models.Payment, error)

	// SweepStaleAttempts fails PROCESSING attempts created before cutoff so
	// they stop holding capacity. With dryRun nothing is written.
	SweepStaleAttempts(ctx context.Context, before time.Time, dryRun bool) ([]models.Payment, error)
	// ResolveAttempt settles one PROCESSING attempt after the operator
	// checked its outcome with the provider.
	ResolveAttempt(ctx context.Context, intentID string, in ResolveInput) (*models.Payment, error)
}

// ConfigInvalidator drops cached routing configs after a write.
type ConfigInvalidator interface {
	InvalidateRoutingConfig(ctx context.Context, storeID uint) error
}

// PSPInput carries plaintext keys; they are encrypted before persistence.
type PSPInput struct {
	Name            string              `json:"name" validate:"required,max=100"`
	Provider        models.ProviderType `json:"provider" validate:"required,oneof=stripe checkout paypal"`
	PublicKey       string              `json:"public_key"`
	SecretKey       string              `json:"secret_key"`
	DailyCapacity   *int64              `json:"daily_capacity" validate:"omitempty,gte=0"`
	MonthlyCapacity *int64              `json:"monthly_capacity" validate:"omitempty,gte=0"`
	IsActive        *bool               `json:"is_active"`
}

type WeightInput struct {
	PSPID  uint `json:"psp_id" validate:"required"`
	Weight int  `json:"weight" validate:"gte=0,lte=100"`
}

type RoutingConfigInput struct {
	Mode            models.RoutingMode `json:"mode" validate:"required,oneof=AUTOMATIC MANUAL"`
	FallbackEnabled bool               `json:"fallback_enabled"`
	MaxRetries      int                `json:"max_retries" validate:"gte=1,lte=10"`
	Weights         []WeightInput      `json:"weights" validate:"dive"`
	// Fallbacks lists PSP ids in the order they are tried.
	Fallbacks []uint `json:"fallbacks"`
}

// ResolveInput is the provider-side outcome of a PROCESSING attempt.
type ResolveInput struct {
	Status    models.PaymentStatus `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	Reference string               `json:"reference" validate:"max=255"`
	Reason    string               `json:"reason" validate:"max=255"`
}
