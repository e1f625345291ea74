// Package notify delivers domain notifications (raised alerts, trust level
// changes, alert status changes) to downstream consumers.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/trust"
)

// Kind names a notification type.
type Kind string

const (
	KindFraudAlertRaised   Kind = "fraud_alert_raised"
	KindTrustLevelChanged  Kind = "trust_level_changed"
	KindAlertStatusChanged Kind = "alert_status_changed"
)

// Notification is the message published for every kind. Fields that do not
// apply to a kind are left empty.
type Notification struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`

	AlertID   string          `json:"alert_id,omitempty"`
	Pattern   fraud.Pattern   `json:"pattern,omitempty"`
	RiskLevel fraud.RiskLevel `json:"risk_level,omitempty"`
	Status    fraud.Status    `json:"status,omitempty"`

	PreviousLevel trust.Level `json:"previous_level,omitempty"`
	Level         trust.Level `json:"level,omitempty"`
	Score         *int        `json:"score,omitempty"`
}

// AlertRaised builds the notification for a freshly raised alert.
func AlertRaised(a fraud.Alert) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Kind:       KindFraudAlertRaised,
		SubjectID:  a.SubjectID,
		OccurredAt: a.CreatedAt,
		AlertID:    a.ID,
		Pattern:    a.Pattern,
		RiskLevel:  a.RiskLevel,
		Status:     a.Status,
	}
}

// AlertStatusChanged builds the notification for an alert transition.
func AlertStatusChanged(a fraud.Alert) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Kind:       KindAlertStatusChanged,
		SubjectID:  a.SubjectID,
		OccurredAt: a.UpdatedAt,
		AlertID:    a.ID,
		Pattern:    a.Pattern,
		RiskLevel:  a.RiskLevel,
		Status:     a.Status,
	}
}

// TrustLevelChanged builds the notification for a score crossing a level
// boundary.
func TrustLevelChanged(previous trust.Level, s trust.Score) Notification {
	score := s.Score
	return Notification{
		ID:            uuid.NewString(),
		Kind:          KindTrustLevelChanged,
		SubjectID:     s.SubjectID,
		OccurredAt:    s.ComputedAt,
		PreviousLevel: previous,
		Level:         s.Level,
		Score:         &score,
	}
}
