// Package routing holds the value types shared by the selector, the
// fallback sequencer and the orchestrator.
package routing

import (
	"sort"
	"time"

	"payroute/internal/models"
)

// Outcome is the normalized result class of a provider call.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDeclined Outcome = "declined"
	OutcomeError    Outcome = "error"
)

// Result is what every provider adapter reduces its native response to.
type Result struct {
	Outcome    Outcome
	ReasonCode string
	Reference  string
}

func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// CustomerContext is the payer data forwarded to the provider. It is never
// persisted beyond what the attempt row records.
type CustomerContext struct {
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Email         string            `json:"email,omitempty" validate:"omitempty,email"`
	IPAddress     string            `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// MaxAttempts bounds attempts per purchase, primary included.
const MaxAttempts = 10

// Snapshot is the routing configuration of one store as read at the start
// of a RoutePayment call. It is never mutated after construction.
type Snapshot struct {
	StoreID         uint
	Mode            models.RoutingMode
	FallbackEnabled bool
	MaxRetries      int
	LoadedAt        time.Time

	psps     []models.PSP
	index    map[uint]int
	weights  map[uint]int
	fallback []uint
}

// NewSnapshot copies cfg and the store's linked PSPs into a Snapshot.
// A nil cfg yields the default policy: automatic, no fallback, one attempt.
func NewSnapshot(storeID uint, cfg *models.RoutingConfig, psps []models.PSP, now time.Time) *Snapshot {
	s := &Snapshot{
		StoreID:    storeID,
		Mode:       models.RoutingModeAutomatic,
		MaxRetries: 1,
		LoadedAt:   now,
		index:      make(map[uint]int, len(psps)),
		weights:    make(map[uint]int),
	}

	s.psps = make([]models.PSP, len(psps))
	copy(s.psps, psps)
	sort.Slice(s.psps, func(i, j int) bool { return s.psps[i].ID < s.psps[j].ID })
	for i, p := range s.psps {
		s.index[p.ID] = i
	}

	if cfg == nil {
		return s
	}

	if cfg.Mode == models.RoutingModeManual {
		s.Mode = models.RoutingModeManual
	}
	s.FallbackEnabled = cfg.FallbackEnabled
	switch {
	case cfg.MaxRetries > MaxAttempts:
		s.MaxRetries = MaxAttempts
	case cfg.MaxRetries > 1:
		s.MaxRetries = cfg.MaxRetries
	}

	for _, w := range cfg.Weights {
		if w.Weight > 0 {
			s.weights[w.PSPID] += w.Weight
		}
	}

	seq := make([]models.FallbackSequence, len(cfg.Fallbacks))
	copy(seq, cfg.Fallbacks)
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].Position < seq[j].Position })
	for _, f := range seq {
		s.fallback = append(s.fallback, f.PSPID)
	}

	return s
}

// PSPs returns the linked PSPs ordered by id.
func (s *Snapshot) PSPs() []models.PSP {
	out := make([]models.PSP, len(s.psps))
	copy(out, s.psps)
	return out
}

// PSP looks up a linked PSP.
func (s *Snapshot) PSP(id uint) (models.PSP, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.PSP{}, false
	}
	return s.psps[i], true
}

// Weight returns the manual weight of a PSP, zero when unset or negative.
func (s *Snapshot) Weight(id uint) int {
	return s.weights[id]
}

// FallbackOrder returns PSP ids in fallback order.
func (s *Snapshot) FallbackOrder() []uint {
	out := make([]uint, len(s.fallback))
	copy(out, s.fallback)
	return out
}

// Without returns a copy of the snapshot with the given PSPs unlinked.
func (s *Snapshot) Without(ids ...uint) *Snapshot {
	drop := make(map[uint]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	out := *s
	out.psps = make([]models.PSP, 0, len(s.psps))
	out.index = make(map[uint]int, len(s.psps))
	for _, p := range s.psps {
		if drop[p.ID] {
			continue
		}
		out.index[p.ID] = len(out.psps)
		out.psps = append(out.psps, p)
	}
	return &out
}
