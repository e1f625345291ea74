// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/trustmatch/internal/adapters/repository"
	service "github.com/okian/trustmatch/internal/app"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/matching"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/recommend"
	"github.com/okian/trustmatch/internal/domain/trust"
	"github.com/okian/trustmatch/pkg/logger"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	SubjectDependencies
	ActivityDependencies
	TrustDependencies
	AlertDependencies
	MatchDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	subjectsHandler *SubjectsHandler
	activityHandler *ActivityHandler
	trustHandler    *TrustHandler
	alertsHandler   *AlertsHandler
	matchHandler    *MatchHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		subjectsHandler: NewSubjectsHandler(deps),
		activityHandler: NewActivityHandler(deps),
		trustHandler:    NewTrustHandler(deps),
		alertsHandler:   NewAlertsHandler(deps),
		matchHandler:    NewMatchHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}

	route := func(path, endpoint string, h http.HandlerFunc, methods ...string) {
		r.HandleFunc(path, MetricsMiddleware(h, endpoint)).Methods(methods...)
	}

	route("/healthz", "healthz", s.healthHandler.HandleHealth, http.MethodGet)
	route("/metrics", "metrics", s.healthHandler.HandleMetrics, http.MethodGet)
	route("/stats", "stats", s.statsHandler.HandleStats, http.MethodGet)
	route("/admin/dashboard", "dashboard", s.statsHandler.HandleDashboard, http.MethodGet)

	route("/subjects/{id}", "subjects", s.subjectsHandler.HandlePut, http.MethodPut)
	route("/subjects/{id}", "subjects", s.subjectsHandler.HandleGet, http.MethodGet)

	route("/activity", "activity", s.activityHandler.HandlePost, http.MethodPost)

	route("/trust/{id}", "trust", s.trustHandler.HandleGet, http.MethodGet)
	route("/trust/{id}/recalculate", "trust_recalculate", s.trustHandler.HandleRecalculate, http.MethodPost)
	route("/trust/{id}/history", "trust_history", s.trustHandler.HandleHistory, http.MethodGet)

	route("/alerts", "alerts", s.alertsHandler.HandleList, http.MethodGet)
	route("/alerts/{id}", "alert", s.alertsHandler.HandleGet, http.MethodGet)
	route("/alerts/{id}", "alert", s.alertsHandler.HandlePatch, http.MethodPatch)

	route("/match/score", "match_score", s.matchHandler.HandleScore, http.MethodPost)
	route("/match/jobs", "match_jobs", s.matchHandler.HandleJobs, http.MethodPost)
	route("/match/candidates", "match_candidates", s.matchHandler.HandleCandidates, http.MethodPost)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v. An empty body is accepted
// only when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// respondError maps domain and service errors onto status codes.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidProfile),
		errors.Is(err, model.ErrInvalidActivity),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, matching.ErrInvalidCandidate),
		errors.Is(err, matching.ErrInvalidJob),
		errors.Is(err, recommend.ErrInvalidQuery),
		errors.Is(err, trust.ErrInvalidFacts),
		errors.Is(err, fraud.ErrInvalidWindow),
		errors.Is(err, repository.ErrInvalidArgument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, fraud.ErrInvalidTransition),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure),
		errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, repository.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
