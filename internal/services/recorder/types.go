package recorder

import (
	"context"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBackoff      = 200 * time.Millisecond
	DefaultWriteTimeout = 3 * time.Second
)

// Recorder persists one row per provider attempt. Begin writes the row in
// PROCESSING before the provider is called; Complete moves it to its
// terminal status exactly once.
type Recorder interface {
	Begin(ctx context.Context, attempt *models.Payment) error
	Complete(ctx context.Context, attempt *models.Payment, result routing.Result, elapsed time.Duration) error
}

// Store is the subset of the payment repository the recorder writes through.
type Store interface {
	Create(ctx context.Context, payment *models.Payment) error
	Finalize(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
}

// Notifier is told about each finalized attempt. Its errors are logged only.
type Notifier interface {
	AttemptRecorded(ctx context.Context, p *models.Payment) error
}

type Config struct {
	MaxAttempts  int
	Backoff      time.Duration
	WriteTimeout time.Duration
}
