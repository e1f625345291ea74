// Package repository persists subject profiles, activity, trust scores and
// fraud alerts for the service layer.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/trust"
	"github.com/okian/trustmatch/pkg/metrics"
)

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	SubjectID string
	Statuses  []fraud.Status
}

func (f AlertFilter) match(a fraud.Alert) bool {
	if f.SubjectID != "" && a.SubjectID != f.SubjectID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// Counts is a size summary of the store.
type Counts struct {
	Profiles int `json:"profiles"`
	Activity int `json:"activity"`
	Scores   int `json:"scores"`
	History  int `json:"history"`
	Alerts   int `json:"alerts"`
}

// Store provides read/write access to everything the engines are fed from
// and everything they produce.
type Store interface {
	PutProfile(ctx context.Context, p model.Profile) error
	// GetProfile returns ErrNotFound for an unknown subject.
	GetProfile(ctx context.Context, subjectID string) (model.Profile, error)

	// AppendActivity stores a once per (subject, event id); a repeat is a no-op.
	AppendActivity(ctx context.Context, a model.Activity) error
	// ListActivity returns the subject's activity at or after since, oldest first.
	ListActivity(ctx context.Context, subjectID string, since time.Time) ([]model.Activity, error)

	// CurrentTrust returns ErrNotFound until a score was saved.
	CurrentTrust(ctx context.Context, subjectID string) (trust.Score, error)
	// SaveTrust overwrites the current score and appends the history entry
	// as one atomic step.
	SaveTrust(ctx context.Context, r trust.Result) error
	// History returns up to limit ledger entries, newest first. limit <= 0
	// returns all of them.
	History(ctx context.Context, subjectID string, limit int) ([]trust.HistoryEntry, error)
	// ListTrust returns every current score ordered by subject id.
	ListTrust(ctx context.Context) ([]trust.Score, error)

	// InsertAlerts stores new alerts. An existing id is ErrConflict.
	InsertAlerts(ctx context.Context, alerts ...fraud.Alert) error
	GetAlert(ctx context.Context, id string) (fraud.Alert, error)
	// UpdateAlert replaces a stored alert; ErrNotFound when it is missing.
	UpdateAlert(ctx context.Context, a fraud.Alert) error
	// ListAlerts returns matching alerts ordered by creation time, then id.
	ListAlerts(ctx context.Context, f AlertFilter) ([]fraud.Alert, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}

func sortAlerts(alerts []fraud.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})
}

// observe records the latency of one store operation.
func observe(backend, op string, start time.Time) {
	metrics.RecordRepositoryLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}

// publishCounts pushes record gauges.
func publishCounts(c Counts) {
	metrics.UpdateRepositoryRecords("profiles", c.Profiles)
	metrics.UpdateRepositoryRecords("activity", c.Activity)
	metrics.UpdateRepositoryRecords("scores", c.Scores)
	metrics.UpdateRepositoryRecords("history", c.History)
	metrics.UpdateRepositoryRecords("alerts", c.Alerts)
	metrics.UpdateSubjectsTotal(c.Profiles)
}
