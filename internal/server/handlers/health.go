package handlers

import (
	"net/http"

	"github.com/agentstation/worldfeed/internal/server/response"
)

// HandleHealth handles GET /api/v1/health (liveness probe).
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "worldfeed-api",
		"version": "v1",
	})
}

// HandleReady handles GET /api/v1/ready. The service is ready once at
// least one region has accepted a snapshot.
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	statuses, err := h.feed.Status()
	if err != nil {
		h.logger.Error().Err(err).Msg("Reading region status failed")
		response.ServiceUnavailable(w, "Region state not available")
		return
	}

	accepted := 0
	for _, st := range statuses {
		if st.Checkpoint.LastFeedTime > 0 {
			accepted++
		}
	}
	if accepted == 0 {
		response.ServiceUnavailable(w, "No region has accepted a snapshot yet")
		return
	}

	response.OK(w, map[string]any{
		"status":            "ready",
		"regions":           len(statuses),
		"regions_ready":     accepted,
		"cache":             h.cache.GetStats(),
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}
