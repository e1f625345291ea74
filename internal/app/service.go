// Package service ties the scoring engines to storage, the activity pipeline
// and notifications. It implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/trustmatch/internal/adapters/mq/queue"
	"github.com/okian/trustmatch/internal/adapters/mq/worker"
	"github.com/okian/trustmatch/internal/adapters/notify"
	"github.com/okian/trustmatch/internal/adapters/repository"
	"github.com/okian/trustmatch/internal/domain/dedupe"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/matching"
	"github.com/okian/trustmatch/internal/domain/recommend"
	"github.com/okian/trustmatch/internal/domain/trust"
	"github.com/okian/trustmatch/pkg/logger"
)

// Default service configuration.
const (
	DefaultQueueSize            = 10000
	DefaultFraudWindow          = 7 * 24 * time.Hour
	DefaultRecentActivityWindow = 30 * 24 * time.Hour
	DefaultHistoryLimit         = 100
)

// Ledger reasons recorded by the service.
const (
	ReasonInitial            = "initial"
	ReasonProfileUpdated     = "profile_updated"
	ReasonFraudAlertRaised   = "fraud_alert_raised"
	ReasonAlertStatusChanged = "alert_status_changed"
)

// Service owns the per-subject read-modify-write cycle around the engines.
type Service struct {
	mu      sync.RWMutex
	started bool

	store     repository.Store
	publisher notify.Publisher
	deduper   dedupe.Deduper
	queue     queue.Queue
	pool      *worker.Pool
	locks     *subjectLocks

	calculator *trust.Calculator
	detector   *fraud.Detector
	engine     *matching.Engine
	aggregator *recommend.Aggregator

	workerCount  int
	queueSize    int
	dedupeSize   int
	lockStripes  int
	fraudWindow  time.Duration
	recentWindow time.Duration
	historyLimit int
	maxPageSize  int
	weights      matching.Weights
	detectorOpts []fraud.Option
	now          func() time.Time
	logger       logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the storage backend. The service closes it on Stop.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithPublisher sets the notification publisher. The service closes it on Stop.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for every engine the service builds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWorkerCount sets the number of activity workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the activity queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered for idempotent intake.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLockStripes sets the number of per-subject mutex stripes.
func WithLockStripes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lockStripes = n
		}
	}
}

// WithFraudWindow sets how far back fraud detection looks.
func WithFraudWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fraudWindow = d
		}
	}
}

// WithRecentActivityWindow sets the window counted as recent activity for
// trust scoring.
func WithRecentActivityWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recentWindow = d
		}
	}
}

// WithHistoryLimit caps ledger entries returned by History.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithMaxPageSize caps recommendation page sizes.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithMatchWeights sets the match weighting. New rejects weights that do
// not sum to 1.
func WithMatchWeights(w matching.Weights) Option {
	return func(s *Service) {
		s.weights = w
	}
}

// WithDetectorOptions passes options to the fraud detector.
func WithDetectorOptions(opts ...fraud.Option) Option {
	return func(s *Service) {
		s.detectorOpts = append(s.detectorOpts, opts...)
	}
}

// New constructs a Service. Without WithStore it keeps everything in memory;
// without WithPublisher notifications are dropped.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		workerCount:  runtime.NumCPU() * 2,
		queueSize:    DefaultQueueSize,
		dedupeSize:   dedupe.DefaultMaxSize,
		lockStripes:  defaultLockStripes,
		fraudWindow:  DefaultFraudWindow,
		recentWindow: DefaultRecentActivityWindow,
		historyLimit: DefaultHistoryLimit,
		maxPageSize:  recommend.DefaultMaxPageSize,
		weights:      matching.DefaultWeights(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.publisher == nil {
		s.publisher = notify.NopPublisher{}
	}

	engine, err := matching.NewEngine(matching.WithWeights(s.weights))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	s.engine = engine
	s.aggregator = recommend.NewAggregator(engine, recommend.WithMaxPageSize(s.maxPageSize))
	s.calculator = trust.NewCalculator(trust.WithClock(s.now))
	s.detector = fraud.NewDetector(append([]fraud.Option{fraud.WithClock(s.now)}, s.detectorOpts...)...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.locks = newSubjectLocks(s.lockStripes)

	return s, nil
}

// Start launches the activity worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.pool = worker.NewPool(s.workerCount, s.queue, s, worker.WithLogger(s.logger))
	// Workers stop through Stop, which drains the queue; cancelling the
	// start context must not drop accepted activity.
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "trust service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Any("detector_patterns", s.detector.Patterns()),
	)
	return nil
}

// Stop drains the activity queue, then closes the publisher and the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("worker pool: %w", err))
		}
		s.started = false
	} else if err := s.queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	s.logger.Info(ctx, "trust service stopped")
	return errors.Join(errs...)
}

// Started reports whether the worker pool is running.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// publish sends notifications without failing the caller.
func (s *Service) publish(ctx context.Context, ns ...notify.Notification) {
	if len(ns) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, ns...); err != nil {
		s.logger.Warn(ctx, "notification publish failed",
			logger.Int("count", len(ns)),
			logger.String("kind", string(ns[0].Kind)),
			logger.Error(err),
		)
	}
}
