package fallback

import (
	"context"
	"fmt"
	"log"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/services/selector"
)

// Sequencer walks one purchase through its primary attempt and fallback
// chain. It is not safe for concurrent use; one purchase owns one
// Sequencer and attempts are strictly sequential.
type Sequencer struct {
	snap      *routing.Snapshot
	checker   selector.EligibilityChecker
	order     []uint
	cursor    int
	attempted map[uint]bool

	state        State
	attemptsMade int
	lastPSP      uint
	lastResult   routing.Result
}

// New starts a sequence in the PRIMARY state.
func New(snap *routing.Snapshot, checker selector.EligibilityChecker) *Sequencer {
	return &Sequencer{
		snap:      snap,
		checker:   checker,
		order:     snap.FallbackOrder(),
		attempted: make(map[uint]bool),
		state:     StatePrimary,
	}
}

func (s *Sequencer) State() State {
	return s.state
}

// FallbackIndex is k in FALLBACK(k), zero outside that state.
func (s *Sequencer) FallbackIndex() int {
	if s.state != StateFallback {
		return 0
	}
	return s.attemptsMade
}

func (s *Sequencer) AttemptsMade() int {
	return s.attemptsMade
}

// NextAttemptNumber is the attempt number the next provider call carries.
func (s *Sequencer) NextAttemptNumber() int {
	return s.attemptsMade + 1
}

func (s *Sequencer) LastResult() routing.Result {
	return s.lastResult
}

func (s *Sequencer) LastPSP() uint {
	return s.lastPSP
}

// Record registers the terminal result of the attempt just made.
func (s *Sequencer) Record(pspID uint, result routing.Result) error {
	if s.state.Terminal() {
		return fmt.Errorf("%w: %s", ErrSequenceFinished, s.state)
	}
	if s.attempted[pspID] {
		return fmt.Errorf("%w: psp %d", ErrAlreadyAttempted, pspID)
	}

	s.attempted[pspID] = true
	s.attemptsMade++
	s.lastPSP = pspID
	s.lastResult = result

	if result.Succeeded() {
		s.state = StateSucceeded
	}
	return nil
}

// Skip drops a PSP that turned out not to be callable before any provider
// call was made. It is never offered again and consumes no attempt.
func (s *Sequencer) Skip(pspID uint) error {
	if s.state.Terminal() {
		return fmt.Errorf("%w: %s", ErrSequenceFinished, s.state)
	}
	s.attempted[pspID] = true
	return nil
}

// Next returns the next fallback candidate after a failed attempt, or
// ErrExhausted. Ineligible entries are skipped without consuming a retry.
func (s *Sequencer) Next(ctx context.Context, amount int64, now time.Time) (*selector.Candidate, error) {
	switch {
	case s.state.Terminal():
		return nil, ErrExhausted
	case s.attemptsMade == 0:
		return nil, ErrNoAttemptYet
	}

	if !s.snap.FallbackEnabled || s.attemptsMade >= s.snap.MaxRetries || len(s.order) == 0 {
		s.state = StateExhausted
		return nil, ErrExhausted
	}

	for s.cursor < len(s.order) {
		if err := ctx.Err(); err != nil {
			s.state = StateExhausted
			return nil, err
		}

		pspID := s.order[s.cursor]
		s.cursor++

		if s.attempted[pspID] {
			continue
		}
		psp, ok := s.snap.PSP(pspID)
		if !ok {
			log.Printf("store %d: fallback psp %d is not linked, skipping", s.snap.StoreID, pspID)
			continue
		}

		c, err := s.checker.Evaluate(ctx, psp, amount, now)
		if err != nil {
			log.Printf("store %d: fallback psp %d skipped: %v", s.snap.StoreID, pspID, err)
			continue
		}

		s.state = StateFallback
		return c, nil
	}

	s.state = StateExhausted
	return nil, ErrExhausted
}
