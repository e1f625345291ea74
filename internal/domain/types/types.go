// Package types contains response envelopes shared across the application.
package types

import "time"

// List wraps a collection with its size.
type List[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewList never returns a nil Items slice so empty lists encode as [].
func NewList[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Count: len(items)}
}

// Dashboard is the admin overview of trust levels and active fraud alerts.
type Dashboard struct {
	Subjects              int            `json:"subjects"`
	ScoredSubjects        int            `json:"scored_subjects"`
	SubjectsByLevel       map[string]int `json:"subjects_by_level"`
	AverageTrustScore     float64        `json:"average_trust_score"`
	ActiveAlerts          int            `json:"active_alerts"`
	ActiveAlertsByRisk    map[string]int `json:"active_alerts_by_risk"`
	ActiveAlertsByPattern map[string]int `json:"active_alerts_by_pattern"`
	GeneratedAt           time.Time      `json:"generated_at"`
}

// NewDashboard returns a dashboard with every map initialised.
func NewDashboard(at time.Time) Dashboard {
	return Dashboard{
		SubjectsByLevel:       map[string]int{},
		ActiveAlertsByRisk:    map[string]int{},
		ActiveAlertsByPattern: map[string]int{},
		GeneratedAt:           at,
	}
}
