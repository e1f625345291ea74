package api

import (
	"context"
	"net/http"

	service "github.com/okian/trustmatch/internal/app"
	"github.com/okian/trustmatch/internal/domain/matching"
	"github.com/okian/trustmatch/internal/domain/recommend"
)

// MatchDependencies scores and ranks candidates against jobs.
type MatchDependencies interface {
	Match(ctx context.Context, ref service.CandidateRef, j matching.Job) (matching.Result, error)
	RecommendJobs(ctx context.Context, ref service.CandidateRef, jobs []matching.Job, q recommend.Query) (recommend.Page, error)
	RankCandidates(ctx context.Context, j matching.Job, pool []service.CandidateRef, q recommend.Query) (recommend.Page, error)
}

// MatchHandler handles /match routes.
type MatchHandler struct {
	deps MatchDependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

type scoreRequest struct {
	service.CandidateRef
	Job matching.Job `json:"job"`
}

type jobsRequest struct {
	service.CandidateRef
	recommend.Query
	Jobs []matching.Job `json:"jobs"`
}

type candidatesRequest struct {
	recommend.Query
	Job        matching.Job           `json:"job"`
	Candidates []service.CandidateRef `json:"candidates"`
}

// HandleScore handles POST /match/score.
func (h *MatchHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	res, err := h.deps.Match(r.Context(), req.CandidateRef, req.Job)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleJobs handles POST /match/jobs.
func (h *MatchHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	var req jobsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	page, err := h.deps.RecommendJobs(r.Context(), req.CandidateRef, req.Jobs, req.Query)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleCandidates handles POST /match/candidates.
func (h *MatchHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	var req candidatesRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	page, err := h.deps.RankCandidates(r.Context(), req.Job, req.Candidates, req.Query)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
