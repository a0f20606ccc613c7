package router

import (
	"context"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/providers"
)

// Service routes purchases across a store's PSPs.
type Service interface {
	// RoutePayment runs the primary attempt and any fallbacks. A purchase
	// that no PSP can take is reported as an unsuccessful result, not an
	// error; errors are reserved for failures the caller must act on.
	RoutePayment(ctx context.Context, req RouteRequest) (*RouteResult, error)
	GetRemainingCapacity(ctx context.Context, pspID uint) (*models.CapacityView, error)
}

type RouteRequest struct {
	StoreID  uint                    `json:"store_id" validate:"required"`
	Amount   int64                   `json:"amount" validate:"required,gt=0"`
	Currency string                  `json:"currency" validate:"required,len=3,alpha"`
	OrderID  string                  `json:"order_id,omitempty" validate:"omitempty,max=64"`
	Customer routing.CustomerContext `json:"customer"`
}

type AttemptSummary struct {
	AttemptNumber int             `json:"attempt_number"`
	PSPID         uint            `json:"psp_id"`
	IsFallback    bool            `json:"is_fallback"`
	Outcome       routing.Outcome `json:"outcome"`
	ReasonCode    string          `json:"reason_code,omitempty"`
	IntentID      string          `json:"intent_id"`
}

// RouteResult is the outcome of one purchase. RecordingFailed is set when
// the provider captured the payment but its attempt row could not be
// finalized; the payment still counts as successful.
type RouteResult struct {
	Success            bool             `json:"success"`
	PSPUsed            *uint            `json:"psp_used"`
	PSPName            string           `json:"psp_name,omitempty"`
	OrderID            string           `json:"order_id,omitempty"`
	FinalFailureReason string           `json:"final_failure_reason,omitempty"`
	AttemptsMade       int              `json:"attempts_made"`
	RecordingFailed    bool             `json:"recording_failed,omitempty"`
	Attempts           []AttemptSummary `json:"attempts"`
}

// SnapshotLoader reads a store's routing state once per request.
type SnapshotLoader interface {
	Load(ctx context.Context, storeID uint, now time.Time) (*routing.Snapshot, error)
}

// Charger reserves one provider call for a PSP. Reserve fails when the
// PSP cannot be called right now, before anything reaches the provider.
type Charger interface {
	Reserve(psp *models.PSP) (providers.Call, error)
}

// PSPReader looks up a single PSP.
type PSPReader interface {
	GetByID(ctx context.Context, id uint) (*models.PSP, error)
}

// MetricsCollector receives routing telemetry.
type MetricsCollector interface {
	RecordRoute(success bool, attempts int, duration time.Duration)
	RecordAttempt(pspID uint, outcome routing.Outcome, duration time.Duration)
	RecordNoEligible(storeID uint)
	RecordError(stage string)
}

type Config struct {
	NewIntentID func() string
	NewOrderID  func() string
	Now         func() time.Time
}
