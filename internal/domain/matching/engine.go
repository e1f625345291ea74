// Package matching scores how well one candidate fits one job opening.
package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/trustmatch/internal/domain/factor"
)

// Sub-score constants.
const (
	neutralScore = 0.5

	experienceJobUnscoped = 0.8
	experiencePerYear     = 0.15
	experienceFloor       = 0.3

	jobTypeMismatch = 0.2

	locationRemote   = 0.9
	locationRelocate = 0.6
	locationFixed    = 0.2

	salaryPlaceholder = neutralScore

	// totalPrecision rounds away float error so min_score comparisons
	// stay inclusive.
	totalPrecision = 1e9
)

// Thresholds at which a sub-score earns a reason line.
const (
	skillReasonAt      = 0.5
	experienceReasonAt = 0.7
	jobTypeReasonAt    = 0.7
	locationReasonAt   = 0.7
)

// Candidate is the candidate side of a match.
type Candidate struct {
	ID                string   `json:"id"`
	Skills            []string `json:"skills"`
	YearsExperience   *int     `json:"years_experience,omitempty"`
	PreferredJobTypes []string `json:"preferred_job_types"`
	Location          string   `json:"location,omitempty"`
	WillingToRelocate bool     `json:"willing_to_relocate"`
}

// Job is the opening side of a match.
type Job struct {
	ID             string   `json:"id"`
	Title          string   `json:"title,omitempty"`
	RequiredSkills []string `json:"required_skills"`
	MinExperience  *int     `json:"min_experience,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	Location       string   `json:"location,omitempty"`
}

// Breakdown holds each sub-score in [0,1].
type Breakdown struct {
	Skill      float64 `json:"skill"`
	Experience float64 `json:"experience"`
	JobType    float64 `json:"job_type"`
	Location   float64 `json:"location"`
	Salary     float64 `json:"salary"`
}

// Result is one scored candidate/job pair.
type Result struct {
	CandidateID   string    `json:"candidate_id"`
	JobID         string    `json:"job_id"`
	Score         float64   `json:"score"`
	MatchedSkills []string  `json:"matched_skills"`
	Reasons       []string  `json:"reasons"`
	Breakdown     Breakdown `json:"breakdown"`
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights replaces the default weighting. Invalid weights are reported
// by NewEngine.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// Engine computes weighted match scores. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with configuration options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Weights returns the weighting in use.
func (e *Engine) Weights() Weights { return e.weights }

// Score rates c against j.
func (e *Engine) Score(c Candidate, j Job) (Result, error) {
	if c.YearsExperience != nil && *c.YearsExperience < 0 {
		return Result{}, fmt.Errorf("%w: years_experience %d is negative", ErrInvalidCandidate, *c.YearsExperience)
	}
	if j.MinExperience != nil && *j.MinExperience < 0 {
		return Result{}, fmt.Errorf("%w: min_experience %d is negative", ErrInvalidJob, *j.MinExperience)
	}

	skill, matched := SkillScore(c.Skills, j.RequiredSkills)
	b := Breakdown{
		Skill:      skill,
		Experience: ExperienceScore(c.YearsExperience, j.MinExperience),
		JobType:    JobTypeScore(c.PreferredJobTypes, j.EmploymentType),
		Location:   LocationScore(c.Location, c.WillingToRelocate, j.Location),
		Salary:     salaryPlaceholder,
	}

	w := e.weights
	total := w.Skill*b.Skill +
		w.Experience*b.Experience +
		w.JobType*b.JobType +
		w.Location*b.Location +
		w.Salary*b.Salary

	return Result{
		CandidateID:   c.ID,
		JobID:         j.ID,
		Score:         factor.Clamp(math.Round(total*totalPrecision)/totalPrecision, 0, 1),
		MatchedSkills: matched,
		Reasons:       reasons(b),
		Breakdown:     b,
	}, nil
}

// SkillScore is the share of required skills found in the candidate's
// skills. A required skill matches when it contains, or is contained in, a
// candidate skill, ignoring case and surrounding space. A job without
// required skills scores 0.
func SkillScore(candidate, required []string) (float64, []string) {
	have := normalizeAll(candidate)
	want := normalizeAll(required)
	if len(want) == 0 {
		return 0, []string{}
	}

	matched := make([]string, 0, len(want))
	for _, r := range want {
		for _, s := range have {
			if strings.Contains(s, r) || strings.Contains(r, s) {
				matched = append(matched, r)
				break
			}
		}
	}
	return float64(len(matched)) / float64(len(want)), matched
}

// ExperienceScore compares candidate years to the job minimum. Nil means
// unknown. Meeting the minimum is full credit; each missing year costs
// 0.15 down to a floor of 0.3.
func ExperienceScore(years, minimum *int) float64 {
	switch {
	case years == nil:
		return neutralScore
	case minimum == nil:
		return experienceJobUnscoped
	case *years >= *minimum:
		return 1
	}
	deficit := float64(*minimum - *years)
	return math.Max(experienceFloor, 1-experiencePerYear*deficit)
}

// JobTypeScore rates the job's employment type against the candidate's
// preferences.
func JobTypeScore(preferred []string, employmentType string) float64 {
	prefs := make(map[string]struct{}, len(preferred))
	for _, p := range preferred {
		if n := normalizeJobType(p); n != "" {
			prefs[n] = struct{}{}
		}
	}
	if len(prefs) == 0 {
		return neutralScore
	}
	if _, ok := prefs[normalizeJobType(employmentType)]; ok {
		return 1
	}
	return jobTypeMismatch
}

// LocationScore rates the job location against where the candidate is and
// whether they would move.
func LocationScore(candidate string, willingToRelocate bool, job string) float64 {
	jl := normalize(job)
	if jl == "" {
		return neutralScore
	}
	if cl := normalize(candidate); cl != "" && (strings.Contains(jl, cl) || strings.Contains(cl, jl)) {
		return 1
	}
	if strings.Contains(jl, "remote") {
		return locationRemote
	}
	if willingToRelocate {
		return locationRelocate
	}
	return locationFixed
}

func reasons(b Breakdown) []string {
	out := make([]string, 0, 4)
	if b.Skill >= skillReasonAt {
		out = append(out, fmt.Sprintf("%d%% skill match", int(math.Round(b.Skill*100))))
	}
	if b.Experience >= experienceReasonAt {
		out = append(out, "meets experience requirement")
	}
	if b.JobType >= jobTypeReasonAt {
		out = append(out, "matches preferred job type")
	}
	if b.Location >= locationReasonAt {
		out = append(out, "good location fit")
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAll lowercases and trims, dropping blanks and repeats while
// keeping first-seen order.
func normalizeAll(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := normalize(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// normalizeJobType maps "Full-Time" and "full time" to "full_time".
func normalizeJobType(s string) string {
	return strings.NewReplacer("-", "_", " ", "_").Replace(normalize(s))
}
