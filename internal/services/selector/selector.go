package selector

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"payroute/internal/domain/routing"
	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/services/capacity"
)

type selector struct {
	checker EligibilityChecker
	stats   StatsReader
	scorer  Scorer
	config  Config
}

// New creates a Selector. stats may be nil, in which case every candidate
// is scored with neutral performance.
func New(checker EligibilityChecker, stats StatsReader, scorer Scorer, config Config) Selector {
	if checker == nil {
		panic("eligibility checker is required")
	}
	if scorer == nil {
		scorer = DefaultScorer()
	}
	if config.StatsWindow <= 0 {
		config.StatsWindow = DefaultStatsWindow
	}
	if config.RandIntN == nil {
		config.RandIntN = rand.IntN
	}

	return &selector{
		checker: checker,
		stats:   stats,
		scorer:  scorer,
		config:  config,
	}
}

func (s *selector) SelectPrimary(ctx context.Context, snap *routing.Snapshot, amount int64, now time.Time) (*Candidate, error) {
	candidates := s.eligible(ctx, snap, amount, now)
	if len(candidates) == 0 {
		return nil, apperrors.ErrNoEligiblePSP
	}

	if snap.Mode == models.RoutingModeManual {
		if c := s.drawWeighted(snap, candidates); c != nil {
			return c, nil
		}
		log.Printf("⚠️ store %d: no weighted psp eligible, using automatic selection", snap.StoreID)
	}

	return s.bestScored(ctx, candidates), nil
}

func (s *selector) eligible(ctx context.Context, snap *routing.Snapshot, amount int64, now time.Time) []*Candidate {
	var out []*Candidate
	for _, psp := range snap.PSPs() {
		c, err := s.checker.Evaluate(ctx, psp, amount, now)
		if err != nil {
			log.Printf("store %d: psp %d not eligible: %v", snap.StoreID, psp.ID, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// drawWeighted draws proportionally to the weights of eligible candidates
// only, so an excluded PSP's share is spread over the rest.
func (s *selector) drawWeighted(snap *routing.Snapshot, candidates []*Candidate) *Candidate {
	total := 0
	for _, c := range candidates {
		total += snap.Weight(c.PSP.ID)
	}
	if total <= 0 {
		return nil
	}

	r := s.config.RandIntN(total)
	for _, c := range candidates {
		w := snap.Weight(c.PSP.ID)
		if r < w {
			return c
		}
		r -= w
	}
	return nil
}

func (s *selector) bestScored(ctx context.Context, candidates []*Candidate) *Candidate {
	var best *Candidate
	var bestScore float64

	for _, c := range candidates {
		s.loadStats(ctx, c)
		score := s.scorer.Score(c)

		if best == nil || score > bestScore+scoreEpsilon {
			best, bestScore = c, score
			continue
		}
		if score < bestScore-scoreEpsilon {
			continue
		}

		// tie: spread load to the least used PSP, then lowest id
		cu := capacity.DailyUsageFraction(c.Usage, &c.PSP)
		bu := capacity.DailyUsageFraction(best.Usage, &best.PSP)
		if cu < bu || (cu == bu && c.PSP.ID < best.PSP.ID) {
			best, bestScore = c, score
		}
	}
	return best
}

func (s *selector) loadStats(ctx context.Context, c *Candidate) {
	c.Stats = models.PSPStats{PSPID: c.PSP.ID}
	if s.stats == nil {
		return
	}
	stats, err := s.stats.RecentStats(ctx, c.PSP.ID, s.config.StatsWindow)
	if err != nil {
		log.Printf("⚠️ psp %d: stats unavailable, scoring neutral: %v", c.PSP.ID, err)
		return
	}
	c.Stats = *stats
}
