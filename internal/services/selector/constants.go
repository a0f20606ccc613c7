package selector

import "time"

// Default scoring policy
const (
	DefaultApprovalWeight = 0.5
	DefaultHeadroomWeight = 0.3
	DefaultLatencyWeight  = 0.2
	DefaultLatencyBudget  = 3 * time.Second
	DefaultMinSamples     = 5
	DefaultNeutralScore   = 0.5
)

const (
	DefaultStatsWindow = 20
	scoreEpsilon       = 1e-9
)
