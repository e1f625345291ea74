package fraud

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithDuplicateTargetThreshold sets how many requests to one job are tolerated.
func WithDuplicateTargetThreshold(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.duplicateThreshold = n
		}
	}
}

// WithBurstThresholds sets the new-account age limit and referral threshold.
func WithBurstThresholds(maxAge time.Duration, n int) Option {
	return func(d *Detector) {
		if maxAge > 0 {
			d.burstMaxAge = maxAge
		}
		if n > 0 {
			d.burstThreshold = n
		}
	}
}

// WithHeuristics appends extra heuristics after the built-in ones.
func WithHeuristics(h ...Heuristic) Option {
	return func(d *Detector) {
		d.extra = append(d.extra, h...)
	}
}

// WithClock overrides the detection time source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(gen func() string) Option {
	return func(d *Detector) {
		if gen != nil {
			d.newID = gen
		}
	}
}

// Detector runs every heuristic over a window and turns new findings into
// open alerts. It never touches existing alerts.
type Detector struct {
	duplicateThreshold int
	burstMaxAge        time.Duration
	burstThreshold     int
	extra              []Heuristic
	heuristics         []Heuristic

	now   func() time.Time
	newID func() string
}

// NewDetector creates a detector with configuration options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		duplicateThreshold: DefaultDuplicateTargetThreshold,
		burstMaxAge:        DefaultBurstMaxAccountAge,
		burstThreshold:     DefaultBurstActivityThreshold,
		now:                func() time.Time { return time.Now().UTC() },
		newID:              uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.heuristics = append([]Heuristic{
		DuplicateTargetSpam{Threshold: d.duplicateThreshold},
		BurstActivityNewAccount{MaxAccountAge: d.burstMaxAge, Threshold: d.burstThreshold},
	}, d.extra...)
	return d
}

// Patterns lists the patterns this detector can raise, in evaluation order.
func (d *Detector) Patterns() []Pattern {
	out := make([]Pattern, len(d.heuristics))
	for i, h := range d.heuristics {
		out[i] = h.Pattern()
	}
	return out
}

// Report is the outcome of one detection run.
type Report struct {
	Raised []Alert
	// Suppressed counts findings per pattern that an active alert already covers.
	Suppressed map[Pattern]int
}

// Detect evaluates w for subjectID and returns only newly raised alerts.
// existing should hold the subject's open and investigating alerts; any
// finding whose (subject, pattern, window) matches one of them is dropped.
func (d *Detector) Detect(subjectID string, w Window, existing []Alert) ([]Alert, error) {
	r, err := d.Run(subjectID, w, existing)
	if err != nil {
		return nil, err
	}
	return r.Raised, nil
}

// Run is Detect plus suppression counts.
func (d *Detector) Run(subjectID string, w Window, existing []Alert) (Report, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Report{}, fmt.Errorf("%w: subject id is empty", ErrInvalidWindow)
	}
	if w.SubjectID != "" && w.SubjectID != subjectID {
		return Report{}, fmt.Errorf("%w: window belongs to %q, not %q", ErrInvalidWindow, w.SubjectID, subjectID)
	}
	if !w.Since.IsZero() && !w.Until.IsZero() && w.Until.Before(w.Since) {
		return Report{}, fmt.Errorf("%w: until precedes since", ErrInvalidWindow)
	}

	now := d.now()
	asOf := w.Until
	if asOf.IsZero() {
		asOf = now
	}

	active := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		if a.SubjectID == subjectID && a.Status.Active() {
			active[a.Fingerprint()] = struct{}{}
		}
	}

	report := Report{Suppressed: make(map[Pattern]int)}
	raisedNow := make(map[string]struct{})
	for _, h := range d.heuristics {
		for _, f := range h.Evaluate(w, asOf) {
			fp := Fingerprint(subjectID, f.Pattern, f.WindowKey)
			if _, dup := active[fp]; dup {
				report.Suppressed[f.Pattern]++
				continue
			}
			if _, dup := raisedNow[fp]; dup {
				continue
			}
			raisedNow[fp] = struct{}{}
			report.Raised = append(report.Raised, Alert{
				ID:          d.newID(),
				SubjectID:   subjectID,
				Pattern:     f.Pattern,
				RiskLevel:   f.RiskLevel,
				Description: f.Description,
				Evidence:    f.Evidence,
				WindowKey:   f.WindowKey,
				Status:      StatusOpen,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	return report, nil
}
