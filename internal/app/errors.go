package service

import "errors"

var (
	// ErrInvalidRequest marks input the service cannot act on.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBackpressure is returned when the activity queue is full.
	ErrBackpressure = errors.New("activity queue full")
	// ErrNotStarted is returned by asynchronous intake before Start.
	ErrNotStarted = errors.New("service not started")
)
