package matching

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrInvalidJob       = errors.New("invalid job")
	ErrInvalidWeights   = errors.New("invalid match weights")
)
