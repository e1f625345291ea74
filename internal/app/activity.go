package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/trustmatch/internal/adapters/notify"
	"github.com/okian/trustmatch/internal/adapters/repository"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/pkg/logger"
	"github.com/okian/trustmatch/pkg/metrics"
)

// Ingest accepts an activity event for asynchronous processing. It reports
// duplicate=true, with no error, for an event id it has already accepted.
// A full queue forgets the id again so the client can retry.
func (s *Service) Ingest(ctx context.Context, a model.Activity) (duplicate bool, err error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	if !s.Started() {
		return false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, a.EventID) {
		metrics.RecordActivityDuplicate()
		s.logger.Debug(ctx, "duplicate activity skipped",
			logger.String("event_id", a.EventID),
			logger.String("subject_id", a.SubjectID),
		)
		return true, nil
	}

	if !s.queue.Enqueue(ctx, a) {
		s.deduper.Unrecord(ctx, a.EventID)
		return false, fmt.Errorf("%w: event %s", ErrBackpressure, a.EventID)
	}
	return false, nil
}

// ProcessActivity records a and runs fraud detection for its subject. Newly
// raised alerts are stored, published, and fed back into the trust score.
func (s *Service) ProcessActivity(ctx context.Context, a model.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}

	unlock := s.locks.lock(a.SubjectID)
	defer unlock()

	if err := s.store.AppendActivity(ctx, a); err != nil {
		return fmt.Errorf("append activity %s: %w", a.EventID, err)
	}
	metrics.RecordActivityEvent(string(a.Kind))

	profile, err := s.store.GetProfile(ctx, a.SubjectID)
	hasProfile := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	raised, err := s.detectLocked(ctx, a.SubjectID, profile)
	if err != nil {
		return err
	}
	if len(raised) == 0 || !hasProfile {
		return nil
	}
	_, err = s.recalculateLocked(ctx, profile, ReasonFraudAlertRaised)
	return err
}

// detectLocked runs the detector over the fraud window and persists what it
// raises. The caller holds the subject lock.
func (s *Service) detectLocked(ctx context.Context, subjectID string, p model.Profile) ([]fraud.Alert, error) {
	now := s.now()
	since := now.Add(-s.fraudWindow)

	acts, err := s.store.ListActivity(ctx, subjectID, since)
	if err != nil {
		return nil, fmt.Errorf("list activity %s: %w", subjectID, err)
	}
	existing, err := s.store.ListAlerts(ctx, repository.AlertFilter{SubjectID: subjectID, Statuses: activeStatuses})
	if err != nil {
		return nil, fmt.Errorf("list alerts %s: %w", subjectID, err)
	}

	report, err := s.detector.Run(subjectID, fraud.Window{
		SubjectID:        subjectID,
		AccountCreatedAt: p.CreatedAt,
		Since:            since,
		Until:            now,
		Actions:          model.Actions(acts),
	}, existing)
	if err != nil {
		return nil, err
	}
	for pattern, n := range report.Suppressed {
		metrics.RecordFraudAlertSuppressed(string(pattern), n)
	}
	if len(report.Raised) == 0 {
		return nil, nil
	}

	if err := s.store.InsertAlerts(ctx, report.Raised...); err != nil {
		return nil, fmt.Errorf("insert alerts %s: %w", subjectID, err)
	}

	ns := make([]notify.Notification, 0, len(report.Raised))
	for _, alert := range report.Raised {
		metrics.RecordFraudAlertRaised(string(alert.Pattern), string(alert.RiskLevel))
		s.logger.Info(ctx, "fraud alert raised",
			logger.String("alert_id", alert.ID),
			logger.String("subject_id", subjectID),
			logger.String("pattern", string(alert.Pattern)),
			logger.String("risk_level", string(alert.RiskLevel)),
		)
		ns = append(ns, notify.AlertRaised(alert))
	}
	s.publish(ctx, ns...)
	return report.Raised, nil
}
