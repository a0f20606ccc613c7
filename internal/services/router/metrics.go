package router

import (
	"sync"
	"time"

	"payroute/internal/domain/routing"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordRoute(bool, int, time.Duration)               {}
func (n *NoopMetricsCollector) RecordAttempt(uint, routing.Outcome, time.Duration) {}
func (n *NoopMetricsCollector) RecordNoEligible(uint)                              {}
func (n *NoopMetricsCollector) RecordError(string)                                 {}

// Counters keeps in-process routing counters for the admin API.
type Counters struct {
	mu        sync.Mutex
	started   time.Time
	routes    int64
	succeeded int64
	fellBack  int64
	noPSP     int64
	routeTime time.Duration
	attempts  map[uint]map[routing.Outcome]int64
	pspTime   map[uint]time.Duration
	errors    map[string]int64
}

func NewCounters() *Counters {
	return &Counters{
		started:  time.Now(),
		attempts: make(map[uint]map[routing.Outcome]int64),
		pspTime:  make(map[uint]time.Duration),
		errors:   make(map[string]int64),
	}
}

func (c *Counters) RecordRoute(success bool, attempts int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes++
	if success {
		c.succeeded++
	}
	if attempts > 1 {
		c.fellBack++
	}
	c.routeTime += duration
}

func (c *Counters) RecordAttempt(pspID uint, outcome routing.Outcome, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byOutcome, ok := c.attempts[pspID]
	if !ok {
		byOutcome = make(map[routing.Outcome]int64)
		c.attempts[pspID] = byOutcome
	}
	byOutcome[outcome]++
	c.pspTime[pspID] += duration
}

func (c *Counters) RecordNoEligible(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noPSP++
}

func (c *Counters) RecordError(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[stage]++
}

type PSPCounters struct {
	Success      int64   `json:"success"`
	Declined     int64   `json:"declined"`
	Error        int64   `json:"error"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

type MetricsSnapshot struct {
	Since         time.Time            `json:"since"`
	Routes        int64                `json:"routes"`
	Succeeded     int64                `json:"succeeded"`
	WithFallback  int64                `json:"with_fallback"`
	NoEligiblePSP int64                `json:"no_eligible_psp"`
	AvgRouteMs    float64              `json:"avg_route_ms"`
	PSPs          map[uint]PSPCounters `json:"psps"`
	Errors        map[string]int64     `json:"errors"`
}

func (c *Counters) Snapshot() MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := MetricsSnapshot{
		Since:         c.started,
		Routes:        c.routes,
		Succeeded:     c.succeeded,
		WithFallback:  c.fellBack,
		NoEligiblePSP: c.noPSP,
		PSPs:          make(map[uint]PSPCounters, len(c.attempts)),
		Errors:        make(map[string]int64, len(c.errors)),
	}
	if c.routes > 0 {
		out.AvgRouteMs = float64(c.routeTime.Milliseconds()) / float64(c.routes)
	}
	for id, byOutcome := range c.attempts {
		pc := PSPCounters{
			Success:  byOutcome[routing.OutcomeSuccess],
			Declined: byOutcome[routing.OutcomeDeclined],
			Error:    byOutcome[routing.OutcomeError],
		}
		if n := pc.Success + pc.Declined + pc.Error; n > 0 {
			pc.AvgLatencyMs = float64(c.pspTime[id].Milliseconds()) / float64(n)
		}
		out.PSPs[id] = pc
	}
	for k, v := range c.errors {
		out.Errors[k] = v
	}
	return out
}
