package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/okian/trustmatch/internal/adapters/repository"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/types"
)

// AlertDependencies lists, reads and transitions fraud alerts.
type AlertDependencies interface {
	Alerts(ctx context.Context, f repository.AlertFilter) ([]fraud.Alert, error)
	Alert(ctx context.Context, id string) (fraud.Alert, error)
	TransitionAlert(ctx context.Context, id string, to fraud.Status, actor string) (fraud.Alert, error)
}

// AlertsHandler handles /alerts routes.
type AlertsHandler struct {
	deps AlertDependencies
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps AlertDependencies) *AlertsHandler {
	return &AlertsHandler{deps: deps}
}

type transitionRequest struct {
	Status fraud.Status `json:"status"`
	Actor  string       `json:"actor"`
}

// HandleList handles GET /alerts?status=&subject_id=. status may repeat or
// carry a comma separated list.
func (h *AlertsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.AlertFilter{SubjectID: strings.TrimSpace(q.Get("subject_id"))}
	for _, raw := range q["status"] {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				f.Statuses = append(f.Statuses, fraud.Status(st))
			}
		}
	}

	alerts, err := h.deps.Alerts(r.Context(), f)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewList(alerts))
}

// HandleGet handles GET /alerts/{id}.
func (h *AlertsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Alert(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandlePatch handles PATCH /alerts/{id} with body {status, actor}.
func (h *AlertsHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	a, err := h.deps.TransitionAlert(r.Context(), mux.Vars(r)["id"], req.Status, req.Actor)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
