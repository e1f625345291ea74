package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/trustmatch/internal/adapters/notify"
	"github.com/okian/trustmatch/internal/adapters/repository"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/pkg/logger"
	"github.com/okian/trustmatch/pkg/metrics"
)

// Alerts lists alerts matching f.
func (s *Service) Alerts(ctx context.Context, f repository.AlertFilter) ([]fraud.Alert, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, st)
		}
	}
	return s.store.ListAlerts(ctx, f)
}

// Alert returns one alert.
func (s *Service) Alert(ctx context.Context, id string) (fraud.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// TransitionAlert moves an alert to status to on behalf of actor. Closing an
// alert lowers the subject's open-alert count, so the subject is rescored.
func (s *Service) TransitionAlert(ctx context.Context, id string, to fraud.Status, actor string) (fraud.Alert, error) {
	if strings.TrimSpace(actor) == "" {
		return fraud.Alert{}, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}

	peek, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return fraud.Alert{}, err
	}

	unlock := s.locks.lock(peek.SubjectID)
	defer unlock()

	current, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return fraud.Alert{}, err
	}
	next, err := current.Transition(to, actor, s.now())
	if err != nil {
		return fraud.Alert{}, err
	}
	if err := s.store.UpdateAlert(ctx, next); err != nil {
		return fraud.Alert{}, fmt.Errorf("update alert %s: %w", id, err)
	}

	metrics.RecordAlertTransition(string(current.Status), string(next.Status))
	s.logger.Info(ctx, "fraud alert transitioned",
		logger.String("alert_id", id),
		logger.String("subject_id", next.SubjectID),
		logger.String("from", string(current.Status)),
		logger.String("to", string(next.Status)),
		logger.String("actor", actor),
	)
	s.publish(ctx, notify.AlertStatusChanged(next))

	if current.Status.Active() && !next.Status.Active() {
		p, err := s.store.GetProfile(ctx, next.SubjectID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return next, err
		default:
			if _, err := s.recalculateLocked(ctx, p, ReasonAlertStatusChanged); err != nil {
				return next, err
			}
		}
	}
	return next, nil
}
