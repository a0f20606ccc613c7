package capacity

import (
	"context"
	"time"

	"payroute/internal/models"
)

const (
	DefaultCutoverHour   = 6
	DefaultMonthlyWindow = 30 * 24 * time.Hour
	DefaultQueryTimeout  = 2 * time.Second
)

// Ledger answers how much volume a PSP has processed and whether it can
// take more.
type Ledger interface {
	Usage(ctx context.Context, psp *models.PSP, now time.Time) (Usage, error)
	HasCapacity(ctx context.Context, psp *models.PSP, amount int64, now time.Time) (bool, error)
	Remaining(ctx context.Context, psp *models.PSP, now time.Time) (*models.CapacityView, error)
}

// UsageReader is the slice of the payment repository the ledger needs.
type UsageReader interface {
	SumAmount(ctx context.Context, pspID uint, statuses []models.PaymentStatus, since time.Time) (int64, error)
}

// Usage is processed volume in minor units.
type Usage struct {
	Daily   int64
	Monthly int64
}

type Config struct {
	// Location defines where the business day cutover happens.
	Location *time.Location
	// CutoverHour is the local hour the business day starts; zero selects
	// DefaultCutoverHour.
	CutoverHour int
	// ExcludeProcessing stops in-flight attempts from counting as usage.
	ExcludeProcessing bool
	MonthlyWindow     time.Duration
	QueryTimeout      time.Duration
}
