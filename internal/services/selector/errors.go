package selector

import "errors"

// Eligibility rejections
var (
	ErrInactive         = errors.New("psp is inactive or deleted")
	ErrProviderDown     = errors.New("provider unavailable")
	ErrCapacityExceeded = errors.New("psp capacity exceeded")
)
