// Package trust derives a bounded reputation score for a subject from plain
// behavioral facts.
//
// The calculator is a pure function of its inputs plus the previously stored
// score. Persisting the result (overwrite the current score, append one
// history entry) belongs to the caller.
package trust

import (
	"time"

	"github.com/okian/trustmatch/internal/domain/factor"
)

// Level buckets a score for display and policy decisions.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Trend compares a score with the one it replaces.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Factor names, in the order they are recorded.
const (
	FactorBase                factor.Name = "base"
	FactorAccountAge          factor.Name = "account_age"
	FactorEmailVerified       factor.Name = "email_verified"
	FactorProfileCompleteness factor.Name = "profile_completeness"
	FactorReferralSuccess     factor.Name = "referral_success_rate"
	FactorRecentActivity      factor.Name = "recent_activity"
	FactorFraudPenalty        factor.Name = "fraud_penalty"
)

// Facts are everything the calculator knows about a subject. The zero value
// is valid and scores as the most conservative subject.
type Facts struct {
	SubjectID string `json:"subject_id"`

	AccountAgeDays int  `json:"account_age_days"`
	EmailVerified  bool `json:"email_verified"`

	// ProfileSignals are role-specific completeness checks; only the count
	// of true values matters.
	ProfileSignals []bool `json:"profile_signals"`

	// ReferralSuccessRate is nil when the subject has made no referrals.
	ReferralSuccessRate *float64 `json:"referral_success_rate"`

	RecentActivityCount30d int `json:"recent_activity_count_30d"`
	OpenFraudAlertCount    int `json:"open_fraud_alert_count"`
}

// Score is the current trust record for a subject.
type Score struct {
	SubjectID     string                `json:"subject_id"`
	Score         int                   `json:"score"`
	Level         Level                 `json:"level"`
	Factors       []factor.Contribution `json:"factors"`
	PreviousScore *int                  `json:"previous_score"`
	Trend         Trend                 `json:"trend"`
	ComputedAt    time.Time             `json:"computed_at"`
}

// HistoryEntry is one immutable line in a subject's ledger.
type HistoryEntry struct {
	SubjectID     string                `json:"subject_id"`
	Score         int                   `json:"score"`
	PreviousScore *int                  `json:"previous_score"`
	Delta         int                   `json:"delta"`
	Reason        string                `json:"reason"`
	Factors       []factor.Contribution `json:"factors"`
	ComputedAt    time.Time             `json:"computed_at"`
}

// Result pairs the new current score with the ledger entry to append.
type Result struct {
	Score   Score        `json:"score"`
	History HistoryEntry `json:"history"`
}

// LevelFor classifies a clamped score.
func LevelFor(score int) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// TrendFor compares score with previous using a +/-5 dead band.
func TrendFor(score int, previous *int) Trend {
	if previous == nil {
		return TrendStable
	}
	switch {
	case score > *previous+trendBand:
		return TrendUp
	case score < *previous-trendBand:
		return TrendDown
	default:
		return TrendStable
	}
}
