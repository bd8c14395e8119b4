package http

import (
	"net/http"

	"github.com/atinyakov/silicabot/internal/notify"
)

// StatsSource exposes the notifier's delivery counters.
type StatsSource interface {
	Snapshot() notify.StatsSnapshot
}

// HealthHandler reports liveness and notification counters.
type HealthHandler struct {
	Stats StatsSource
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string               `json:"status"`
	Notifications notify.StatsSnapshot `json:"notifications"`
}

// Health answers with status "ok" and the delivered, failed and swallowed counts.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Notifications: h.Stats.Snapshot(),
	})
}
