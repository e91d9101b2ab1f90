package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/agentstation/worldfeed/internal/server/response"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// tickRequest is the body of PUT /api/v1/admin/tick.
type tickRequest struct {
	Tick *int `json:"tick"`
}

// HandleGetTick handles GET /api/v1/admin/tick.
func (h *Handlers) HandleGetTick(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{"tick": h.admin.Tick()})
}

// HandleSetTick handles PUT /api/v1/admin/tick.
func (h *Handlers) HandleSetTick(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}
	if req.Tick == nil {
		response.ErrorFromType(w, errors.NewValidationError("tick", nil, "tick is required"))
		return
	}
	if err := h.admin.SetTick(*req.Tick); err != nil {
		response.ErrorFromType(w, err)
		return
	}
	h.logger.Info().Int("tick", *req.Tick).Msg("Tick counter set over HTTP")
	response.OK(w, map[string]any{"tick": h.admin.Tick()})
}

// HandleReload handles POST /api/v1/admin/reload. Configuration errors
// leave the running settings in place.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Reload(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Reload over HTTP failed")
		response.ErrorFromType(w, err)
		return
	}
	dropped := h.cache.GetStats().ItemCount
	h.cache.Clear()
	response.OK(w, map[string]any{
		"status":        "reloaded",
		"regions":       h.feed.Regions(),
		"cache_cleared": dropped,
	})
}

// HandleStats handles GET /api/v1/admin/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response.OK(w, map[string]any{
		"runtime": map[string]any{
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"memory_mb":      mem.Alloc / 1024 / 1024,
			"memory_sys_mb":  mem.Sys / 1024 / 1024,
		},
		"scheduler": map[string]any{
			"tick":    h.admin.Tick(),
			"regions": h.feed.Regions(),
		},
		"realtime": map[string]any{
			"websocket_clients": h.wsHub.ClientCount(),
			"sse_clients":       h.sseBroadcaster.ClientCount(),
		},
		"cache": h.cache.GetStats(),
	})
}
