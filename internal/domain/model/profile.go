// Package model holds the collaborator-side facts the engines are fed from:
// subject profiles and their activity.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/trustmatch/internal/domain/factor"
	"github.com/okian/trustmatch/internal/domain/matching"
	"github.com/okian/trustmatch/internal/domain/trust"
)

// Role is the side of the marketplace a subject acts on.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleEmployer  Role = "employer"
)

// Profile is everything stored about a subject that feeds scoring.
type Profile struct {
	SubjectID     string    `json:"subject_id"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	EmailVerified bool      `json:"email_verified"`

	// Candidate fields.
	Skills            []string `json:"skills,omitempty"`
	YearsExperience   *int     `json:"years_experience,omitempty"`
	CurrentEmployer   string   `json:"current_employer,omitempty"`
	PreferredJobTypes []string `json:"preferred_job_types,omitempty"`
	Location          string   `json:"location,omitempty"`
	WillingToRelocate bool     `json:"willing_to_relocate"`

	// Employer fields.
	Title               string   `json:"title,omitempty"`
	ReferralPreferences []string `json:"referral_preferences,omitempty"`
	CompanyID           string   `json:"company_id,omitempty"`

	ReferralsMade      int `json:"referrals_made"`
	ReferralsSucceeded int `json:"referrals_succeeded"`
}

// Validate rejects profiles that cannot be scored.
func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.SubjectID) == "":
		return fmt.Errorf("%w: subject_id is required", ErrInvalidProfile)
	case p.Role != RoleCandidate && p.Role != RoleEmployer:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidProfile, p.Role)
	case p.YearsExperience != nil && *p.YearsExperience < 0:
		return fmt.Errorf("%w: years_experience is negative", ErrInvalidProfile)
	case p.ReferralsMade < 0 || p.ReferralsSucceeded < 0:
		return fmt.Errorf("%w: referral counts are negative", ErrInvalidProfile)
	case p.ReferralsSucceeded > p.ReferralsMade:
		return fmt.Errorf("%w: %d referrals succeeded out of %d made", ErrInvalidProfile, p.ReferralsSucceeded, p.ReferralsMade)
	}
	return nil
}

// CompletenessSignals returns the role-specific profile checks.
func (p Profile) CompletenessSignals() []bool {
	if p.Role == RoleEmployer {
		return []bool{
			strings.TrimSpace(p.Title) != "",
			len(p.ReferralPreferences) > 0,
			strings.TrimSpace(p.CompanyID) != "",
		}
	}
	return []bool{
		len(p.Skills) > 0,
		p.YearsExperience != nil,
		strings.TrimSpace(p.CurrentEmployer) != "",
	}
}

// ReferralSuccessRate is nil until the subject has made a referral.
func (p Profile) ReferralSuccessRate() *float64 {
	if p.ReferralsMade <= 0 {
		return nil
	}
	rate := factor.Clamp(float64(p.ReferralsSucceeded)/float64(p.ReferralsMade), 0, 1)
	return &rate
}

// AccountAgeDays counts whole days since creation. Unknown or future
// creation times count as 0.
func (p Profile) AccountAgeDays(now time.Time) int {
	if p.CreatedAt.IsZero() || now.Before(p.CreatedAt) {
		return 0
	}
	return int(now.Sub(p.CreatedAt) / (24 * time.Hour))
}

// Facts derives the trust calculator input.
func (p Profile) Facts(now time.Time, recentActivity, openAlerts int) trust.Facts {
	return trust.Facts{
		SubjectID:              p.SubjectID,
		AccountAgeDays:         p.AccountAgeDays(now),
		EmailVerified:          p.EmailVerified,
		ProfileSignals:         p.CompletenessSignals(),
		ReferralSuccessRate:    p.ReferralSuccessRate(),
		RecentActivityCount30d: max(recentActivity, 0),
		OpenFraudAlertCount:    max(openAlerts, 0),
	}
}

// Candidate projects the profile onto the match engine's candidate side.
func (p Profile) Candidate() matching.Candidate {
	return matching.Candidate{
		ID:                p.SubjectID,
		Skills:            p.Skills,
		YearsExperience:   p.YearsExperience,
		PreferredJobTypes: p.PreferredJobTypes,
		Location:          p.Location,
		WillingToRelocate: p.WillingToRelocate,
	}
}
