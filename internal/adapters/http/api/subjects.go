package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	service "github.com/okian/trustmatch/internal/app"
	"github.com/okian/trustmatch/internal/domain/model"
)

// SubjectDependencies stores and reads subject profiles.
type SubjectDependencies interface {
	PutProfile(ctx context.Context, p model.Profile) (service.Subject, error)
	GetProfile(ctx context.Context, subjectID string) (service.Subject, error)
}

// SubjectsHandler handles /subjects/{id}.
type SubjectsHandler struct {
	deps SubjectDependencies
}

// NewSubjectsHandler creates a new subjects handler.
func NewSubjectsHandler(deps SubjectDependencies) *SubjectsHandler {
	return &SubjectsHandler{deps: deps}
}

// HandlePut handles PUT /subjects/{id}. The path id wins over an empty body
// id; a conflicting body id is rejected.
func (h *SubjectsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var p model.Profile
	if err := decodeJSON(r, &p, false); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	switch p.SubjectID {
	case "":
		p.SubjectID = id
	case id:
	default:
		respondError(r.Context(), w, fmt.Errorf("%w: body subject_id %q does not match path", ErrBadRequest, p.SubjectID))
		return
	}

	sub, err := h.deps.PutProfile(r.Context(), p)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleGet handles GET /subjects/{id}.
func (h *SubjectsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.deps.GetProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
