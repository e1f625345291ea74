// Package recommend ranks a pool of jobs or candidates with the match engine.
package recommend

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/trustmatch/internal/domain/matching"
)

// Pagination defaults.
const (
	DefaultPageSize    = 20
	DefaultMaxPageSize = 100
)

// Scorer is the subset of matching.Engine the aggregator needs.
type Scorer interface {
	Score(c matching.Candidate, j matching.Job) (matching.Result, error)
}

// Query selects a page of results at or above MinScore. Page is 1-based.
type Query struct {
	MinScore float64 `json:"min_score"`
	Page     int     `json:"page"`
	Size     int     `json:"size"`
}

// Page is one slice of the ranked, filtered results. Total counts every
// result that passed the threshold.
type Page struct {
	Results []matching.Result `json:"results"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Size    int               `json:"size"`
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMaxPageSize caps Query.Size.
func WithMaxPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxPageSize = n
		}
	}
}

// Aggregator scores a pool, filters, ranks and pages it.
type Aggregator struct {
	scorer      Scorer
	maxPageSize int
}

// NewAggregator creates an aggregator over scorer.
func NewAggregator(scorer Scorer, opts ...Option) *Aggregator {
	a := &Aggregator{scorer: scorer, maxPageSize: DefaultMaxPageSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecommendJobs ranks jobs for one candidate.
func (a *Aggregator) RecommendJobs(c matching.Candidate, jobs []matching.Job, q Query) (Page, error) {
	q, err := a.normalize(q)
	if err != nil {
		return Page{}, err
	}
	results := make([]matching.Result, 0, len(jobs))
	for _, j := range jobs {
		r, err := a.scorer.Score(c, j)
		if err != nil {
			return Page{}, fmt.Errorf("score job %q: %w", j.ID, err)
		}
		results = append(results, r)
	}
	return paginate(rank(results, q.MinScore), q), nil
}

// RankCandidates ranks candidates for one job.
func (a *Aggregator) RankCandidates(j matching.Job, candidates []matching.Candidate, q Query) (Page, error) {
	q, err := a.normalize(q)
	if err != nil {
		return Page{}, err
	}
	results := make([]matching.Result, 0, len(candidates))
	for _, c := range candidates {
		r, err := a.scorer.Score(c, j)
		if err != nil {
			return Page{}, fmt.Errorf("score candidate %q: %w", c.ID, err)
		}
		results = append(results, r)
	}
	return paginate(rank(results, q.MinScore), q), nil
}

// normalize fills defaults and rejects values that cannot be served.
func (a *Aggregator) normalize(q Query) (Query, error) {
	if math.IsNaN(q.MinScore) || q.MinScore < 0 || q.MinScore > 1 {
		return q, fmt.Errorf("%w: min_score %v out of [0,1]", ErrInvalidQuery, q.MinScore)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Size == 0 {
		q.Size = min(DefaultPageSize, a.maxPageSize)
	}
	if q.Page < 1 {
		return q, fmt.Errorf("%w: page %d must be >= 1", ErrInvalidQuery, q.Page)
	}
	if q.Size < 1 || q.Size > a.maxPageSize {
		return q, fmt.Errorf("%w: size %d must be in [1,%d]", ErrInvalidQuery, q.Size, a.maxPageSize)
	}
	return q, nil
}

// rank keeps results with score >= minScore and orders them by score,
// highest first. Equal scores keep pool order.
func rank(results []matching.Result, minScore float64) []matching.Result {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	return kept
}

func paginate(ranked []matching.Result, q Query) Page {
	p := Page{Results: []matching.Result{}, Total: len(ranked), Page: q.Page, Size: q.Size}
	// Compare page counts first; (Page-1)*Size overflows for huge pages.
	if pages := (len(ranked) + q.Size - 1) / q.Size; q.Page > pages {
		return p
	}
	offset := (q.Page - 1) * q.Size
	end := min(offset+q.Size, len(ranked))
	p.Results = append(p.Results, ranked[offset:end]...)
	return p
}
