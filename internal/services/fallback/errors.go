package fallback

import "errors"

var (
	ErrExhausted        = errors.New("fallback sequence exhausted")
	ErrSequenceFinished = errors.New("sequence already finished")
	ErrAlreadyAttempted = errors.New("psp already attempted for this purchase")
	ErrNoAttemptYet     = errors.New("primary attempt not recorded")
)
