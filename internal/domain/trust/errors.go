package trust

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidFacts    = errors.New("invalid trust facts")
	ErrInvalidPrevious = errors.New("invalid previous score")
)
