package api

import (
	"context"
	"net/http"

	"github.com/okian/trustmatch/internal/domain/model"
)

// ActivityDependencies accepts activity for async processing.
type ActivityDependencies interface {
	// Ingest reports duplicates, and fails with a backpressure error when
	// the queue is full.
	Ingest(ctx context.Context, a model.Activity) (bool, error)
}

// ActivityHandler handles activity intake.
type ActivityHandler struct {
	deps ActivityDependencies
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(deps ActivityDependencies) *ActivityHandler {
	return &ActivityHandler{deps: deps}
}

// HandlePost handles POST /activity requests.
func (h *ActivityHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var a model.Activity
	if err := decodeJSON(r, &a, false); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	dup, err := h.deps.Ingest(r.Context(), a)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
