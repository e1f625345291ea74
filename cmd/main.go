package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/trustmatch/internal/adapters/http/api"
	"github.com/okian/trustmatch/internal/adapters/http/swagger"
	"github.com/okian/trustmatch/internal/adapters/notify"
	"github.com/okian/trustmatch/internal/adapters/repository"
	service "github.com/okian/trustmatch/internal/app"
	"github.com/okian/trustmatch/internal/config"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/pkg/logger"
	"github.com/okian/trustmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Re-initialise with the configured format; fall back to info on a bad level.
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "trustmatch exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains the server and the service.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		_ = svc.Stop(context.Background())
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("stop service: %w", err))
	}

	log.Info(ctx, "server stopped")
	return runErr
}

// buildService wires storage, notifications and engine settings from cfg.
func buildService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	var store repository.Store
	switch cfg.Storage {
	case config.StorageBolt:
		bs, err := repository.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		store = bs
	default:
		store = repository.NewMemoryStore()
	}

	var pub notify.Publisher = notify.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		pub = kp
	}

	svc, err := service.New(
		service.WithLogger(log),
		service.WithStore(store),
		service.WithPublisher(pub),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithFraudWindow(cfg.FraudWindow()),
		service.WithRecentActivityWindow(cfg.RecentActivityWindow()),
		service.WithHistoryLimit(cfg.HistoryLimit),
		service.WithMaxPageSize(cfg.MaxPageSize),
		service.WithMatchWeights(cfg.MatchWeights),
		service.WithDetectorOptions(
			fraud.WithDuplicateTargetThreshold(cfg.DuplicateTargetThreshold),
			fraud.WithBurstThresholds(cfg.BurstMaxAccountAge(), cfg.BurstActivityThreshold),
		),
	)
	if err != nil {
		_ = pub.Close()
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// newRouter registers the docs and business API routes.
func newRouter(ctx context.Context, svc *service.Service) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc).Register(ctx, r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the dashboard and stats gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics relies on Stats and Dashboard updating their gauges.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	st, err := svc.Stats(ctx)
	if err != nil {
		return
	}
	metrics.UpdateQueueSize(st.QueueLength)
	_, _ = svc.Dashboard(ctx)
}
