package management

import "errors"

var (
	ErrSecretRequired = errors.New("secret key is required")
	ErrPSPInUse       = errors.New("psp is referenced by a routing config")

	ErrInvalidResolution    = errors.New("invalid attempt resolution")
	ErrAttemptNotFound      = errors.New("payment attempt not found")
	ErrAttemptNotProcessing = errors.New("payment attempt is not processing")
)
