package service

import (
	"context"
	"fmt"
	"runtime"

	"github.com/okian/trustmatch/internal/adapters/repository"
	"github.com/okian/trustmatch/internal/domain/types"
	"github.com/okian/trustmatch/pkg/metrics"
)

// Dashboard summarizes trust levels and active alerts across all subjects.
func (s *Service) Dashboard(ctx context.Context) (types.Dashboard, error) {
	d := types.NewDashboard(s.now())

	counts, err := s.store.Counts(ctx)
	if err != nil {
		return types.Dashboard{}, fmt.Errorf("store counts: %w", err)
	}
	d.Subjects = counts.Profiles

	scores, err := s.store.ListTrust(ctx)
	if err != nil {
		return types.Dashboard{}, fmt.Errorf("list trust: %w", err)
	}
	total := 0
	for _, sc := range scores {
		d.SubjectsByLevel[string(sc.Level)]++
		total += sc.Score
	}
	d.ScoredSubjects = len(scores)
	if len(scores) > 0 {
		d.AverageTrustScore = float64(total) / float64(len(scores))
	}

	active, err := s.store.ListAlerts(ctx, repository.AlertFilter{Statuses: activeStatuses})
	if err != nil {
		return types.Dashboard{}, fmt.Errorf("list alerts: %w", err)
	}
	for _, a := range active {
		d.ActiveAlertsByRisk[string(a.RiskLevel)]++
		d.ActiveAlertsByPattern[string(a.Pattern)]++
	}
	d.ActiveAlerts = len(active)

	metrics.UpdateActiveAlerts(d.ActiveAlerts)
	metrics.UpdateSubjectsTotal(d.Subjects)
	return d, nil
}

// Stats is the runtime snapshot served on /stats.
type Stats struct {
	Started       bool              `json:"started"`
	Workers       int               `json:"workers"`
	QueueLength   int               `json:"queue_length"`
	QueueCapacity int               `json:"queue_capacity"`
	DedupeSize    int64             `json:"dedupe_size"`
	Goroutines    int               `json:"goroutines"`
	Store         repository.Counts `json:"store"`
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("store counts: %w", err)
	}
	st := Stats{
		Started:       s.Started(),
		Workers:       s.workerCount,
		QueueLength:   s.queue.Len(ctx),
		QueueCapacity: s.queue.Capacity(),
		DedupeSize:    s.deduper.Size(),
		Goroutines:    runtime.NumGoroutine(),
		Store:         counts,
	}
	metrics.UpdateWorkerCount(st.Workers)
	return st, nil
}
