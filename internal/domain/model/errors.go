package model

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrInvalidActivity = errors.New("invalid activity")
)
