package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/capacity"
)

const DefaultStatsWindow = 100

type Service interface {
	GetPSPOverview(ctx context.Context, pspID uint) (*PSPOverview, error)
	ListPSPOverviews(ctx context.Context) ([]PSPOverview, error)
}

// PSPReader is the slice of the PSP repository the dashboard reads.
type PSPReader interface {
	GetByID(ctx context.Context, id uint) (*models.PSP, error)
	List(ctx context.Context) ([]models.PSP, error)
}

type StatsReader interface {
	RecentStats(ctx context.Context, pspID uint, window int) (*models.PSPStats, error)
}

// BreakerReader exposes circuit state; nil means breakers are not tracked.
type BreakerReader interface {
	BreakerState(pspID uint) string
}

type PSPOverview struct {
	PSP      models.PSP           `json:"psp"`
	Capacity *models.CapacityView `json:"capacity"`
	Stats    *models.PSPStats     `json:"stats"`
	Breaker  string               `json:"breaker,omitempty"`
}

type service struct {
	psps     PSPReader
	ledger   capacity.Ledger
	stats    StatsReader
	breakers BreakerReader
	window   int
	now      func() time.Time
}

func NewService(psps PSPReader, ledger capacity.Ledger, stats StatsReader, breakers BreakerReader, window int) Service {
	if psps == nil || ledger == nil || stats == nil {
		panic("dashboard: psps, ledger and stats are required")
	}
	if window <= 0 {
		window = DefaultStatsWindow
	}
	return &service{
		psps:     psps,
		ledger:   ledger,
		stats:    stats,
		breakers: breakers,
		window:   window,
		now:      time.Now,
	}
}

func (s *service) GetPSPOverview(ctx context.Context, pspID uint) (*PSPOverview, error) {
	psp, err := s.psps.GetByID(ctx, pspID)
	if err != nil {
		if errors.Is(err, repositories.ErrPSPNotFound) {
			return nil, apperrors.ErrPSPNotFound
		}
		return nil, err
	}
	return s.overview(ctx, psp, s.now())
}

func (s *service) ListPSPOverviews(ctx context.Context) ([]PSPOverview, error) {
	psps, err := s.psps.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]PSPOverview, 0, len(psps))
	for i := range psps {
		o, err := s.overview(ctx, &psps[i], now)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *service) overview(ctx context.Context, psp *models.PSP, now time.Time) (*PSPOverview, error) {
	view, err := s.ledger.Remaining(ctx, psp, now)
	if err != nil {
		return nil, fmt.Errorf("psp %d capacity: %w", psp.ID, err)
	}
	stats, err := s.stats.RecentStats(ctx, psp.ID, s.window)
	if err != nil {
		return nil, fmt.Errorf("psp %d stats: %w", psp.ID, err)
	}

	o := &PSPOverview{PSP: *psp, Capacity: view, Stats: stats}
	if s.breakers != nil {
		o.Breaker = s.breakers.BreakerState(psp.ID)
	}
	return o, nil
}
