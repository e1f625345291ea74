package notify

import "errors"

var (
	// ErrPublish wraps transport failures.
	ErrPublish = errors.New("publish notification")
	// ErrInvalidConfig is returned for a publisher without brokers or topic.
	ErrInvalidConfig = errors.New("invalid notify config")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("publisher closed")
)
