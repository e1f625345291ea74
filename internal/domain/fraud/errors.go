package fraud

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidWindow     = errors.New("invalid activity window")
	ErrInvalidTransition = errors.New("invalid alert status transition")
)
