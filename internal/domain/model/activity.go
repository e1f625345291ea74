package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/trustmatch/internal/domain/fraud"
)

// ActivityKind classifies an activity event.
type ActivityKind string

const (
	KindReferralRequest ActivityKind = "referral_request"
	KindProfileUpdate   ActivityKind = "profile_update"
	KindLogin           ActivityKind = "login"
	KindJobPost         ActivityKind = "job_post"
)

// Valid reports whether k is a known kind.
func (k ActivityKind) Valid() bool {
	switch k {
	case KindReferralRequest, KindProfileUpdate, KindLogin, KindJobPost:
		return true
	}
	return false
}

// Activity is one event submitted by clients on POST /activity.
type Activity struct {
	// EventID is the idempotency key.
	EventID   string       `json:"event_id"`
	SubjectID string       `json:"subject_id"`
	Kind      ActivityKind `json:"kind"`
	// TargetID is the job a referral request is aimed at.
	TargetID string    `json:"target_id,omitempty"`
	At       time.Time `json:"at"`
}

// Validate checks the fields every kind needs.
func (a Activity) Validate() error {
	switch {
	case strings.TrimSpace(a.EventID) == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidActivity)
	case strings.TrimSpace(a.SubjectID) == "":
		return fmt.Errorf("%w: subject_id is required", ErrInvalidActivity)
	case !a.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidActivity, a.Kind)
	case a.At.IsZero():
		return fmt.Errorf("%w: at is required", ErrInvalidActivity)
	case a.Kind == KindReferralRequest && strings.TrimSpace(a.TargetID) == "":
		return fmt.Errorf("%w: referral_request needs target_id", ErrInvalidActivity)
	}
	return nil
}

// Action projects a onto the fraud detector's input.
func (a Activity) Action() fraud.Action {
	return fraud.Action{
		ID:       a.EventID,
		Kind:     fraud.ActionKind(a.Kind),
		TargetID: a.TargetID,
		At:       a.At,
	}
}

// Actions projects a list of activities.
func Actions(in []Activity) []fraud.Action {
	out := make([]fraud.Action, len(in))
	for i, a := range in {
		out[i] = a.Action()
	}
	return out
}
