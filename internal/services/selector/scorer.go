package selector

import (
	"time"

	"payroute/internal/services/capacity"
)

// WeightedScorer is a linear blend of approval rate, capacity headroom and
// latency, each normalized to [0, 1].
type WeightedScorer struct {
	ApprovalWeight float64
	HeadroomWeight float64
	LatencyWeight  float64
	// LatencyBudget maps average latency onto [0, 1]; at or above the
	// budget the latency term is zero.
	LatencyBudget time.Duration
	// Below MinSamples recorded attempts the approval and latency terms
	// use NeutralScore.
	MinSamples   int
	NeutralScore float64
}

// DefaultScorer returns the scorer used when none is configured.
func DefaultScorer() *WeightedScorer {
	return &WeightedScorer{
		ApprovalWeight: DefaultApprovalWeight,
		HeadroomWeight: DefaultHeadroomWeight,
		LatencyWeight:  DefaultLatencyWeight,
		LatencyBudget:  DefaultLatencyBudget,
		MinSamples:     DefaultMinSamples,
		NeutralScore:   DefaultNeutralScore,
	}
}

func (s *WeightedScorer) Score(c *Candidate) float64 {
	approval, latency := s.NeutralScore, s.NeutralScore
	if c.Stats.Samples >= s.MinSamples && c.Stats.Samples > 0 {
		approval = c.Stats.ApprovalRate
		latency = s.latencyScore(c.Stats.AvgLatencyMs)
	}
	headroom := capacity.HeadroomFraction(c.Usage, &c.PSP)

	return s.ApprovalWeight*approval + s.HeadroomWeight*headroom + s.LatencyWeight*latency
}

func (s *WeightedScorer) latencyScore(avgMs float64) float64 {
	budget := float64(s.LatencyBudget.Milliseconds())
	if budget <= 0 {
		return s.NeutralScore
	}
	ratio := avgMs / budget
	if ratio >= 1 {
		return 0
	}
	if ratio < 0 {
		return 1
	}
	return 1 - ratio
}
