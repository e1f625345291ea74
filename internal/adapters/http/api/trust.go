package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/trustmatch/internal/domain/trust"
	"github.com/okian/trustmatch/internal/domain/types"
)

// TrustDependencies reads and recomputes trust scores.
type TrustDependencies interface {
	Trust(ctx context.Context, subjectID string) (trust.Score, error)
	Recalculate(ctx context.Context, subjectID, reason string) (trust.Score, error)
	History(ctx context.Context, subjectID string, limit int) ([]trust.HistoryEntry, error)
}

// TrustHandler handles /trust/{id} routes.
type TrustHandler struct {
	deps TrustDependencies
}

// NewTrustHandler creates a new trust handler.
func NewTrustHandler(deps TrustDependencies) *TrustHandler {
	return &TrustHandler{deps: deps}
}

type recalculateRequest struct {
	Reason string `json:"reason"`
}

// HandleGet handles GET /trust/{id}.
func (h *TrustHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	score, err := h.deps.Trust(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleRecalculate handles POST /trust/{id}/recalculate. The body is optional.
func (h *TrustHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	score, err := h.deps.Recalculate(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleHistory handles GET /trust/{id}/history?limit=.
func (h *TrustHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(r.Context(), w, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, raw))
			return
		}
		limit = n
	}
	hist, err := h.deps.History(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewList(hist))
}
