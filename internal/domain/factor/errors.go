package factor

import "errors"

// Sentinel error kinds for this package.
var (
	ErrEmptyName  = errors.New("factor name must not be empty")
	ErrDuplicate  = errors.New("factor already recorded")
	ErrOutOfRange = errors.New("factor value out of range")
)
