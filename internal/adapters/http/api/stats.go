package api

import (
	"context"
	"net/http"

	service "github.com/okian/trustmatch/internal/app"
	"github.com/okian/trustmatch/internal/domain/types"
)

// StatsProvider supplies runtime and admin snapshots.
type StatsProvider interface {
	Stats(ctx context.Context) (service.Stats, error)
	Dashboard(ctx context.Context) (types.Dashboard, error)
}

// StatsHandler handles stats and dashboard requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsProvider.Stats(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleDashboard handles GET /admin/dashboard requests.
func (h *StatsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.statsProvider.Dashboard(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
