package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/trust"
	"github.com/okian/trustmatch/pkg/logger"
)

// ErrVerification is returned when the server's alerts differ from the
// generated population's expectations.
var ErrVerification = errors.New("simulation verification failed")

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type statsResponse struct {
	QueueLength int `json:"queue_length"`
	Store       struct {
		Activity int `json:"activity"`
	} `json:"store"`
}

type alertList struct {
	Items []fraud.Alert `json:"items"`
	Count int           `json:"count"`
}

// Run executes a complete simulation and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}

	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("subjects", cfg.Subjects),
		logger.Int("spammers", cfg.Spammers),
		logger.Int("bursters", cfg.Bursters),
		logger.Int("workers", cfg.Workers))

	if _, err := client.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	pop := generate(cfg, time.Now())
	stats.EventsGenerated = len(pop.Activity)
	stats.AlertsExpected = len(pop.Expected)

	if err := seedProfiles(ctx, client, pop.Profiles, stats); err != nil {
		return stats, err
	}
	submitActivity(ctx, cfg, client, pop.Activity, stats)

	if err := waitDrained(ctx, cfg, client, stats.EventsAccepted); err != nil {
		return stats, err
	}

	verifyErr := verify(ctx, cfg, client, pop, stats)

	if cfg.OutputFile != "" {
		if err := saveActivity(cfg.OutputFile, pop.Activity); err != nil {
			log.Warn(ctx, "failed to save activity", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, verifyErr
}

func seedProfiles(ctx context.Context, client *HTTPClient, profiles []model.Profile, stats *Stats) error {
	for _, p := range profiles {
		if _, err := client.do(ctx, http.MethodPut, "/subjects/"+url.PathEscape(p.SubjectID), p, nil); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.SubjectID, err)
		}
		stats.SubjectsSeeded++
	}
	return nil
}

// submitActivity posts events from cfg.Workers goroutines, retrying on
// backpressure.
func submitActivity(ctx context.Context, cfg *Config, client *HTTPClient, events []model.Activity, stats *Stats) {
	var accepted, duplicate, retried, failed atomic.Int64

	ch := make(chan model.Activity, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range ch {
				switch submitOne(ctx, client, a, &retried) {
				case "accepted":
					accepted.Add(1)
				case "duplicate":
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, a := range events {
			select {
			case <-ctx.Done():
				return
			case ch <- a:
			}
		}
	}()
	wg.Wait()

	stats.EventsAccepted = int(accepted.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsRetried = int(retried.Load())
	stats.EventsFailed = int(failed.Load())
}

func submitOne(ctx context.Context, client *HTTPClient, a model.Activity, retried *atomic.Int64) string {
	for attempt := range maxSubmitAttempts {
		var ack ackResponse
		status, err := client.do(ctx, http.MethodPost, "/activity", a, &ack)
		switch {
		case err == nil && status == http.StatusAccepted:
			return "accepted"
		case err == nil && ack.Duplicate:
			return "duplicate"
		case status == http.StatusTooManyRequests:
			retried.Add(1)
			select {
			case <-ctx.Done():
				return "failed"
			case <-time.After(retryBackoff * time.Duration(attempt+1)):
			}
		default:
			return "failed"
		}
	}
	return "failed"
}

// waitDrained polls /stats until every accepted event has been stored.
func waitDrained(ctx context.Context, cfg *Config, client *HTTPClient, accepted int) error {
	deadline := time.Now().Add(cfg.DrainTimeout)
	for {
		var st statsResponse
		if _, err := client.do(ctx, http.MethodGet, "/stats", nil, &st); err != nil {
			return fmt.Errorf("read stats: %w", err)
		}
		if st.QueueLength == 0 && st.Store.Activity >= accepted {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("activity not drained after %s: queue=%d stored=%d accepted=%d",
				cfg.DrainTimeout, st.QueueLength, st.Store.Activity, accepted)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}
}

// verify checks every seeded subject's alerts and trust level.
func verify(ctx context.Context, cfg *Config, client *HTTPClient, pop Population, stats *Stats) error {
	log := logger.Get().Named("simulate")
	var mismatches int

	for _, p := range pop.Profiles {
		want, flagged := pop.Expected[p.SubjectID]
		alerts, err := fetchAlerts(ctx, cfg, client, p.SubjectID, flagged)
		if err != nil {
			return err
		}

		found := false
		for _, a := range alerts.Items {
			if flagged && a.Pattern == want {
				found = true
			} else {
				stats.UnexpectedAlerts++
			}
		}
		if found {
			stats.AlertsFound++
		}
		if flagged != found || (!flagged && alerts.Count > 0) {
			mismatches++
			if cfg.Verbose {
				log.Warn(ctx, "alert mismatch",
					logger.String("subject_id", p.SubjectID),
					logger.String("expected", string(want)),
					logger.Int("alerts", alerts.Count))
			}
		}

		var score trust.Score
		if _, err := client.do(ctx, http.MethodGet, "/trust/"+url.PathEscape(p.SubjectID), nil, &score); err != nil {
			return fmt.Errorf("read trust for %s: %w", p.SubjectID, err)
		}
		switch score.Level {
		case trust.LevelHigh:
			stats.HighTrustSubjects++
		case trust.LevelLow:
			stats.LowTrustSubjects++
		}
	}

	if mismatches > 0 {
		return fmt.Errorf("%w: %d of %d subjects", ErrVerification, mismatches, len(pop.Profiles))
	}
	return nil
}

// fetchAlerts lists a subject's alerts. The last stored event of a subject
// may still be in detection when the queue reports drained, so flagged
// subjects are polled until an alert shows up or the drain timeout passes.
func fetchAlerts(ctx context.Context, cfg *Config, client *HTTPClient, subjectID string, flagged bool) (alertList, error) {
	path := "/alerts?subject_id=" + url.QueryEscape(subjectID)
	deadline := time.Now().Add(cfg.DrainTimeout)
	for {
		var alerts alertList
		if _, err := client.do(ctx, http.MethodGet, path, nil, &alerts); err != nil {
			return alerts, fmt.Errorf("list alerts for %s: %w", subjectID, err)
		}
		if !flagged || alerts.Count > 0 || time.Now().After(deadline) {
			return alerts, nil
		}
		select {
		case <-ctx.Done():
			return alerts, ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}
}

func saveActivity(filename string, events []model.Activity) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var detectionRate, eventsPerSecond float64
	if stats.AlertsExpected > 0 {
		detectionRate = float64(stats.AlertsFound) / float64(stats.AlertsExpected) * percentage
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsAccepted+stats.EventsDuplicate) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("subjects_seeded", stats.SubjectsSeeded),
		logger.Int("events_generated", stats.EventsGenerated),
		logger.Int("events_accepted", stats.EventsAccepted),
		logger.Int("events_duplicate", stats.EventsDuplicate),
		logger.Int("events_retried", stats.EventsRetried),
		logger.Int("events_failed", stats.EventsFailed),
		logger.Int("alerts_expected", stats.AlertsExpected),
		logger.Int("alerts_found", stats.AlertsFound),
		logger.Int("unexpected_alerts", stats.UnexpectedAlerts),
		logger.Int("high_trust_subjects", stats.HighTrustSubjects),
		logger.Int("low_trust_subjects", stats.LowTrustSubjects),
		logger.Duration("duration", stats.Duration),
		logger.Float64("detection_rate", detectionRate),
		logger.Float64("events_per_second", eventsPerSecond))
}
