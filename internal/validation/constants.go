package validation

import "payroute/internal/domain/routing"

const (
	MaxRetriesLimit = routing.MaxAttempts

	MaxWeight = 100

	MaxNameLength    = 100
	MaxOrderIDLength = 64
)
