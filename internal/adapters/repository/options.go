package repository

import "time"

const defaultMetricsUpdateInterval = 5 * time.Second

// Option applies a configuration option to a store.
type Option func(*storeOptions)

type storeOptions struct {
	metricsUpdateInterval time.Duration
	openTimeout           time.Duration
}

func newStoreOptions(opts []Option) storeOptions {
	o := storeOptions{
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		openTimeout:           time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMetricsUpdateInterval sets the interval for background record-count
// gauges. A negative interval disables the updater.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *storeOptions) {
		if interval != 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithOpenTimeout bounds how long BoltStore waits for the file lock.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *storeOptions) {
		if d > 0 {
			o.openTimeout = d
		}
	}
}

// metricsUpdater runs fn every interval until stop is closed.
func metricsUpdater(interval time.Duration, stop <-chan struct{}, done func(), fn func()) {
	defer done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}
