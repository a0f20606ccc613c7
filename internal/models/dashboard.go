package models

// PSPStats summarises recent terminal attempts for one PSP.
type PSPStats struct {
	PSPID         uint    `json:"psp_id"`
	Samples       int     `json:"samples"`
	Successes     int     `json:"successes"`
	ApprovalRate  float64 `json:"approval_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	TransportErrs int     `json:"transport_errors"`
}

// CapacityView is the dashboard representation of a PSP's headroom.
// Nil fields mean the axis has no ceiling.
type CapacityView struct {
	PSPID            uint   `json:"psp_id"`
	DailyUsed        int64  `json:"daily_used"`
	MonthlyUsed      int64  `json:"monthly_used"`
	DailyRemaining   *int64 `json:"daily_remaining"`
	MonthlyRemaining *int64 `json:"monthly_remaining"`
}
