package providers

import "errors"

var (
	ErrNoAdapter   = errors.New("no adapter registered for provider")
	ErrCircuitOpen = errors.New("provider circuit open")
)
