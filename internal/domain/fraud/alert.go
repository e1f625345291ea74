// Package fraud scans a subject's recent activity for abuse heuristics and
// models the lifecycle of the alerts they raise.
package fraud

import (
	"encoding/json"
	"fmt"
	"time"
)

// Pattern names a heuristic.
type Pattern string

const (
	PatternDuplicateTargetSpam     Pattern = "duplicate_target_spam"
	PatternBurstActivityNewAccount Pattern = "burst_activity_new_account"
)

// RiskLevel ranks how urgently an alert needs review.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Status is an alert's position in its review lifecycle.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// transitions lists the allowed moves. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusOpen:          {StatusInvestigating, StatusResolved, StatusFalsePositive},
	StatusInvestigating: {StatusResolved, StatusFalsePositive},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInvestigating, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Active reports whether the alert still needs attention.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusInvestigating
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Evidence is the structured payload a heuristic attaches to an alert.
type Evidence map[string]any

// Alert is a fact about a subject at a point in time.
type Alert struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Pattern     Pattern    `json:"pattern"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	Description string     `json:"description"`
	Evidence    Evidence   `json:"evidence"`
	WindowKey   string     `json:"window_key"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
}

// Transition returns a copy of a moved to status to. Reaching a terminal
// status stamps ResolvedAt and ResolvedBy.
func (a Alert) Transition(to Status, actor string, at time.Time) (Alert, error) {
	if !to.Valid() {
		return Alert{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(a.Status, to) {
		return Alert{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	out := a
	out.Evidence = cloneEvidence(a.Evidence)
	out.Status = to
	out.UpdatedAt = at
	if to.Terminal() {
		resolved := at
		out.ResolvedAt = &resolved
		out.ResolvedBy = actor
	}
	return out, nil
}

// Fingerprint identifies the (subject, pattern, window) triple used for
// suppression of duplicate alerts.
func Fingerprint(subjectID string, pattern Pattern, windowKey string) string {
	return subjectID + "|" + string(pattern) + "|" + windowKey
}

// Fingerprint returns the alert's suppression key.
func (a Alert) Fingerprint() string {
	return Fingerprint(a.SubjectID, a.Pattern, a.WindowKey)
}

// windowKey renders the identifying subset of evidence canonically. JSON
// encoding sorts map keys and prints 4 and 4.0 the same way, so keys survive
// a storage round trip.
func windowKey(evidence Evidence, keys ...string) string {
	if len(keys) == 0 {
		return ""
	}
	subset := make(map[string]any, len(keys))
	for _, k := range keys {
		subset[k] = evidence[k]
	}
	b, err := json.Marshal(subset)
	if err != nil {
		return fmt.Sprint(subset)
	}
	return string(b)
}

func cloneEvidence(e Evidence) Evidence {
	if e == nil {
		return nil
	}
	out := make(Evidence, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
