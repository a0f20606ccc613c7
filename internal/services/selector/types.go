package selector

import (
	"context"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/capacity"
	"payroute/internal/services/vault"
)

// Candidate is a PSP that passed eligibility for the current request.
// Credentials live only as long as the request.
type Candidate struct {
	PSP         models.PSP
	Credentials vault.Credentials
	Usage       capacity.Usage
	Stats       models.PSPStats
}

// Selector picks the PSP for the first attempt of a purchase.
type Selector interface {
	SelectPrimary(ctx context.Context, snap *routing.Snapshot, amount int64, now time.Time) (*Candidate, error)
}

// EligibilityChecker decides whether one PSP may take an attempt right now.
type EligibilityChecker interface {
	Evaluate(ctx context.Context, psp models.PSP, amount int64, now time.Time) (*Candidate, error)
}

// ProviderGate reports whether a PSP's adapter can currently be called,
// e.g. adapter registered and circuit breaker closed.
type ProviderGate interface {
	Available(psp *models.PSP) error
}

// StatsReader loads recent performance of a PSP for automatic scoring.
type StatsReader interface {
	RecentStats(ctx context.Context, pspID uint, window int) (*models.PSPStats, error)
}

// Scorer ranks eligible candidates in automatic mode. Higher is better.
type Scorer interface {
	Score(c *Candidate) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(c *Candidate) float64

func (f ScorerFunc) Score(c *Candidate) float64 {
	return f(c)
}

type Config struct {
	// StatsWindow is the number of recent terminal attempts scored.
	StatsWindow int
	// RandIntN returns a uniform int in [0, n). Must be safe for
	// concurrent use.
	RandIntN func(n int) int
}
