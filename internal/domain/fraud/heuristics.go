package fraud

import (
	"fmt"
	"sort"
	"time"
)

// Default heuristic thresholds.
const (
	DefaultDuplicateTargetThreshold = 3
	DefaultBurstMaxAccountAge       = 24 * time.Hour
	DefaultBurstActivityThreshold   = 5
)

// ActionKind classifies an entry in the activity window.
type ActionKind string

// ActionReferralRequest is the only outbound referral action the built-in
// heuristics look at.
const ActionReferralRequest ActionKind = "referral_request"

// Action is one thing the subject did.
type Action struct {
	ID       string     `json:"id"`
	Kind     ActionKind `json:"kind"`
	TargetID string     `json:"target_id"`
	At       time.Time  `json:"at"`
}

// Window is the slice of activity a detection run looks at.
type Window struct {
	SubjectID string `json:"subject_id"`

	// AccountCreatedAt is zero when unknown; age-based heuristics then skip.
	AccountCreatedAt time.Time `json:"account_created_at"`

	// Since and Until bound the window. A zero Since is unbounded; a zero
	// Until means "as of detection time".
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`

	Actions []Action `json:"actions"`
}

func (w Window) contains(t time.Time, asOf time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	return !t.After(asOf)
}

// Finding is what a heuristic reports before it becomes an Alert.
type Finding struct {
	Pattern     Pattern
	RiskLevel   RiskLevel
	Description string
	Evidence    Evidence
	// WindowKey identifies the window the finding belongs to; two findings
	// with equal keys are the same alert.
	WindowKey string
}

// Heuristic is an independent predicate over a window. Implementations must
// be pure.
type Heuristic interface {
	Pattern() Pattern
	Evaluate(w Window, asOf time.Time) []Finding
}

// DuplicateTargetSpam flags a subject that sends more than Threshold
// referral requests to the same job inside the window.
type DuplicateTargetSpam struct {
	Threshold int
}

// Pattern implements Heuristic.
func (DuplicateTargetSpam) Pattern() Pattern { return PatternDuplicateTargetSpam }

// Evaluate implements Heuristic.
func (h DuplicateTargetSpam) Evaluate(w Window, asOf time.Time) []Finding {
	counts := make(map[string]int)
	for _, a := range w.Actions {
		if a.Kind != ActionReferralRequest || a.TargetID == "" || !w.contains(a.At, asOf) {
			continue
		}
		counts[a.TargetID]++
	}

	targets := make([]string, 0, len(counts))
	for target, n := range counts {
		if n > h.Threshold {
			targets = append(targets, target)
		}
	}
	sort.Strings(targets)

	out := make([]Finding, 0, len(targets))
	for _, target := range targets {
		ev := Evidence{"target_id": target, "count": counts[target]}
		out = append(out, Finding{
			Pattern:     PatternDuplicateTargetSpam,
			RiskLevel:   RiskMedium,
			Description: fmt.Sprintf("%d referral requests to job %s", counts[target], target),
			Evidence:    ev,
			WindowKey:   windowKey(ev, "target_id"),
		})
	}
	return out
}

// BurstActivityNewAccount flags an account younger than MaxAccountAge that
// has already sent more than Threshold referral requests.
type BurstActivityNewAccount struct {
	MaxAccountAge time.Duration
	Threshold     int
}

// Pattern implements Heuristic.
func (BurstActivityNewAccount) Pattern() Pattern { return PatternBurstActivityNewAccount }

// Evaluate implements Heuristic.
func (h BurstActivityNewAccount) Evaluate(w Window, asOf time.Time) []Finding {
	if w.AccountCreatedAt.IsZero() {
		return nil
	}
	age := asOf.Sub(w.AccountCreatedAt)
	if age < 0 || age >= h.MaxAccountAge {
		return nil
	}

	count := 0
	for _, a := range w.Actions {
		if a.Kind == ActionReferralRequest && !a.At.Before(w.AccountCreatedAt) && !a.At.After(asOf) {
			count++
		}
	}
	if count <= h.Threshold {
		return nil
	}

	hours := int(age / time.Hour)
	return []Finding{{
		Pattern:     PatternBurstActivityNewAccount,
		RiskLevel:   RiskHigh,
		Description: fmt.Sprintf("%d referral requests within %dh of account creation", count, hours),
		Evidence:    Evidence{"account_age_hours": hours, "activity_count": count},
		// One account has one creation window.
		WindowKey: "",
	}}
}
