package trust

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/trustmatch/internal/domain/factor"
)

// Scoring constants. Each factor is clamped to its own max before the sum.
const (
	baseScore = 50
	minScore  = 0
	maxScore  = 100

	ageMax          = 20
	emailMax        = 10
	profilePerCheck = 5
	profileMaxCount = 3
	profileMax      = profilePerCheck * profileMaxCount
	referralMax     = 25
	activityMax     = 10
	penaltyPerAlert = -10

	highThreshold   = 71
	mediumThreshold = 31
	trendBand       = 5

	// DefaultReason is recorded in the ledger when the caller gives none.
	DefaultReason = "recalculation"
)

// ageSteps and the other step tables are checked top-down; the first
// threshold met wins.
var ageSteps = []step{
	{atLeast: 365, award: 20},
	{atLeast: 180, award: 15},
	{atLeast: 90, award: 10},
	{atLeast: 30, award: 5},
}

var referralSteps = []step{
	{atLeast: 0.50, award: 25},
	{atLeast: 0.25, award: 15},
	{atLeast: 0.10, award: 10},
	{atLeast: 0, award: 5},
}

var activitySteps = []step{
	{atLeast: 5, award: 10},
	{atLeast: 2, award: 5},
}

type step struct {
	atLeast float64
	award   float64
}

func stepAward(steps []step, v float64) float64 {
	for _, s := range steps {
		if v >= s.atLeast {
			return s.award
		}
	}
	return 0
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithClock overrides the time source used for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// Calculator turns Facts into a Score. It holds no mutable state and is safe
// for concurrent use.
type Calculator struct {
	now func() time.Time
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate scores facts against the previously stored score (nil when the
// subject has never been scored) and returns the new current record together
// with the ledger entry to append.
func (c *Calculator) Calculate(facts Facts, previous *int, reason string) (Result, error) {
	if err := validate(facts); err != nil {
		return Result{}, err
	}
	if previous != nil && (*previous < minScore || *previous > maxScore) {
		return Result{}, fmt.Errorf("%w: %d outside [%d,%d]", ErrInvalidPrevious, *previous, minScore, maxScore)
	}

	set, err := buildFactors(facts)
	if err != nil {
		return Result{}, err
	}

	score := factor.ClampInt(int(math.Round(set.Sum())), minScore, maxScore)
	computedAt := c.now()
	factors := set.Items()

	var prev *int
	delta := 0
	if previous != nil {
		p := *previous
		prev = &p
		delta = score - p
	}
	if reason == "" {
		reason = DefaultReason
	}

	return Result{
		Score: Score{
			SubjectID:     facts.SubjectID,
			Score:         score,
			Level:         LevelFor(score),
			Factors:       factors,
			PreviousScore: prev,
			Trend:         TrendFor(score, prev),
			ComputedAt:    computedAt,
		},
		History: HistoryEntry{
			SubjectID:     facts.SubjectID,
			Score:         score,
			PreviousScore: copyInt(prev),
			Delta:         delta,
			Reason:        reason,
			Factors:       set.Items(),
			ComputedAt:    computedAt,
		},
	}, nil
}

func buildFactors(f Facts) (*factor.Set, error) {
	set := &factor.Set{}
	if err := set.Base(FactorBase, baseScore); err != nil {
		return nil, err
	}

	if err := set.Additive(FactorAccountAge, f.AccountAgeDays, stepAward(ageSteps, float64(f.AccountAgeDays)), ageMax); err != nil {
		return nil, err
	}

	email := 0.0
	if f.EmailVerified {
		email = emailMax
	}
	if err := set.Additive(FactorEmailVerified, f.EmailVerified, email, emailMax); err != nil {
		return nil, err
	}

	checks := 0
	for _, ok := range f.ProfileSignals {
		if ok {
			checks++
		}
	}
	checks = factor.ClampInt(checks, 0, profileMaxCount)
	if err := set.Additive(FactorProfileCompleteness, checks, float64(profilePerCheck*checks), profileMax); err != nil {
		return nil, err
	}

	// No referrals is not the same as zero successes: it earns nothing and
	// costs nothing.
	var referralRaw any
	referral := 0.0
	if f.ReferralSuccessRate != nil {
		referralRaw = *f.ReferralSuccessRate
		referral = stepAward(referralSteps, *f.ReferralSuccessRate)
	}
	if err := set.Additive(FactorReferralSuccess, referralRaw, referral, referralMax); err != nil {
		return nil, err
	}

	if err := set.Additive(FactorRecentActivity, f.RecentActivityCount30d, stepAward(activitySteps, float64(f.RecentActivityCount30d)), activityMax); err != nil {
		return nil, err
	}

	if err := set.Penalty(FactorFraudPenalty, f.OpenFraudAlertCount, float64(penaltyPerAlert*f.OpenFraudAlertCount)); err != nil {
		return nil, err
	}
	return set, nil
}

func validate(f Facts) error {
	switch {
	case f.AccountAgeDays < 0:
		return fmt.Errorf("%w: account_age_days %d is negative", ErrInvalidFacts, f.AccountAgeDays)
	case f.RecentActivityCount30d < 0:
		return fmt.Errorf("%w: recent_activity_count_30d %d is negative", ErrInvalidFacts, f.RecentActivityCount30d)
	case f.OpenFraudAlertCount < 0:
		return fmt.Errorf("%w: open_fraud_alert_count %d is negative", ErrInvalidFacts, f.OpenFraudAlertCount)
	}
	if r := f.ReferralSuccessRate; r != nil && (math.IsNaN(*r) || *r < 0 || *r > 1) {
		return fmt.Errorf("%w: referral_success_rate %v outside [0,1]", ErrInvalidFacts, *r)
	}
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
