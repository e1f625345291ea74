package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/trustmatch/internal/adapters/notify"
	"github.com/okian/trustmatch/internal/adapters/repository"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/trust"
	"github.com/okian/trustmatch/pkg/logger"
	"github.com/okian/trustmatch/pkg/metrics"
)

var activeStatuses = []fraud.Status{fraud.StatusOpen, fraud.StatusInvestigating}

// Subject is a stored profile with its current trust score.
type Subject struct {
	Profile model.Profile `json:"profile"`
	Trust   trust.Score   `json:"trust"`
}

// PutProfile stores p and rescores the subject.
func (s *Service) PutProfile(ctx context.Context, p model.Profile) (Subject, error) {
	if err := p.Validate(); err != nil {
		return Subject{}, err
	}

	unlock := s.locks.lock(p.SubjectID)
	defer unlock()

	reason := ReasonProfileUpdated
	if _, err := s.store.CurrentTrust(ctx, p.SubjectID); errors.Is(err, repository.ErrNotFound) {
		reason = ReasonInitial
	} else if err != nil {
		return Subject{}, err
	}

	if err := s.store.PutProfile(ctx, p); err != nil {
		return Subject{}, fmt.Errorf("store profile %s: %w", p.SubjectID, err)
	}
	score, err := s.recalculateLocked(ctx, p, reason)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Profile: p, Trust: score}, nil
}

// GetProfile returns the stored profile with its trust score, scoring the
// subject first if it never was.
func (s *Service) GetProfile(ctx context.Context, subjectID string) (Subject, error) {
	p, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		return Subject{}, err
	}
	score, err := s.Trust(ctx, subjectID)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Profile: p, Trust: score}, nil
}

// Trust returns the current score, computing it with reason "initial" on
// first access.
func (s *Service) Trust(ctx context.Context, subjectID string) (trust.Score, error) {
	if cur, err := s.store.CurrentTrust(ctx, subjectID); err == nil {
		return cur, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return trust.Score{}, err
	}

	unlock := s.locks.lock(subjectID)
	defer unlock()

	// Another caller may have scored the subject while we waited.
	if cur, err := s.store.CurrentTrust(ctx, subjectID); err == nil {
		return cur, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return trust.Score{}, err
	}
	p, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		return trust.Score{}, err
	}
	return s.recalculateLocked(ctx, p, ReasonInitial)
}

// Recalculate rescores the subject from its current facts.
func (s *Service) Recalculate(ctx context.Context, subjectID, reason string) (trust.Score, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = trust.DefaultReason
	}

	unlock := s.locks.lock(subjectID)
	defer unlock()

	p, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		return trust.Score{}, err
	}
	return s.recalculateLocked(ctx, p, reason)
}

// History returns ledger entries newest first. A limit outside
// (0, historyLimit] is replaced by historyLimit.
func (s *Service) History(ctx context.Context, subjectID string, limit int) ([]trust.HistoryEntry, error) {
	if _, err := s.store.GetProfile(ctx, subjectID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.store.History(ctx, subjectID, limit)
}

// recalculateLocked gathers facts, scores, and persists. The caller holds
// the subject lock.
func (s *Service) recalculateLocked(ctx context.Context, p model.Profile, reason string) (trust.Score, error) {
	now := s.now()

	recent, err := s.store.ListActivity(ctx, p.SubjectID, now.Add(-s.recentWindow))
	if err != nil {
		return trust.Score{}, fmt.Errorf("list activity %s: %w", p.SubjectID, err)
	}
	open, err := s.store.ListAlerts(ctx, repository.AlertFilter{SubjectID: p.SubjectID, Statuses: activeStatuses})
	if err != nil {
		return trust.Score{}, fmt.Errorf("list alerts %s: %w", p.SubjectID, err)
	}

	var previous *trust.Score
	cur, err := s.store.CurrentTrust(ctx, p.SubjectID)
	switch {
	case err == nil:
		previous = &cur
	case !errors.Is(err, repository.ErrNotFound):
		return trust.Score{}, err
	}

	var prevScore *int
	if previous != nil {
		prevScore = &previous.Score
	}
	result, err := s.calculator.Calculate(p.Facts(now, len(recent), len(open)), prevScore, reason)
	if err != nil {
		return trust.Score{}, err
	}
	if err := s.store.SaveTrust(ctx, result); err != nil {
		return trust.Score{}, fmt.Errorf("save trust %s: %w", p.SubjectID, err)
	}

	score := result.Score
	metrics.RecordTrustCalculation(string(score.Level), reason, score.Score)
	s.logger.Debug(ctx, "trust score computed",
		logger.String("subject_id", p.SubjectID),
		logger.Int("score", score.Score),
		logger.String("level", string(score.Level)),
		logger.Int("delta", result.History.Delta),
		logger.String("reason", reason),
	)

	if previous != nil && previous.Level != score.Level {
		metrics.RecordTrustLevelChange(string(previous.Level), string(score.Level))
		s.publish(ctx, notify.TrustLevelChanged(previous.Level, score))
	}
	return score, nil
}
