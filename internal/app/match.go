package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/trustmatch/internal/domain/matching"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/recommend"
	"github.com/okian/trustmatch/pkg/metrics"
)

// CandidateRef names a candidate either inline or by a stored subject id.
// An inline candidate wins; its id defaults to SubjectID.
type CandidateRef struct {
	SubjectID string              `json:"subject_id,omitempty"`
	Candidate *matching.Candidate `json:"candidate,omitempty"`
}

func (s *Service) resolveCandidate(ctx context.Context, ref CandidateRef) (matching.Candidate, error) {
	if ref.Candidate != nil {
		c := *ref.Candidate
		if c.ID == "" {
			c.ID = ref.SubjectID
		}
		return c, nil
	}
	if strings.TrimSpace(ref.SubjectID) == "" {
		return matching.Candidate{}, fmt.Errorf("%w: candidate or subject_id is required", ErrInvalidRequest)
	}
	p, err := s.store.GetProfile(ctx, ref.SubjectID)
	if err != nil {
		return matching.Candidate{}, err
	}
	if p.Role != model.RoleCandidate {
		return matching.Candidate{}, fmt.Errorf("%w: subject %s is not a candidate", ErrInvalidRequest, ref.SubjectID)
	}
	return p.Candidate(), nil
}

// Match scores one candidate against one job.
func (s *Service) Match(ctx context.Context, ref CandidateRef, j matching.Job) (matching.Result, error) {
	c, err := s.resolveCandidate(ctx, ref)
	if err != nil {
		return matching.Result{}, err
	}
	r, err := s.engine.Score(c, j)
	if err != nil {
		return matching.Result{}, err
	}
	metrics.RecordMatchScore(r.Score)
	return r, nil
}

// RecommendJobs ranks jobs for one candidate.
func (s *Service) RecommendJobs(ctx context.Context, ref CandidateRef, jobs []matching.Job, q recommend.Query) (recommend.Page, error) {
	start := time.Now()
	c, err := s.resolveCandidate(ctx, ref)
	if err != nil {
		return recommend.Page{}, err
	}
	page, err := s.aggregator.RecommendJobs(c, jobs, q)
	if err != nil {
		return recommend.Page{}, err
	}
	metrics.RecordRecommendation("jobs", len(jobs), float64(time.Since(start).Microseconds())/1000)
	return page, nil
}

// RankCandidates ranks candidates for one job.
func (s *Service) RankCandidates(ctx context.Context, j matching.Job, pool []CandidateRef, q recommend.Query) (recommend.Page, error) {
	start := time.Now()
	candidates := make([]matching.Candidate, 0, len(pool))
	for _, ref := range pool {
		c, err := s.resolveCandidate(ctx, ref)
		if err != nil {
			return recommend.Page{}, err
		}
		candidates = append(candidates, c)
	}
	page, err := s.aggregator.RankCandidates(j, candidates, q)
	if err != nil {
		return recommend.Page{}, err
	}
	metrics.RecordRecommendation("candidates", len(pool), float64(time.Since(start).Microseconds())/1000)
	return page, nil
}
