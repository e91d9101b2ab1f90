package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentstation/worldfeed/internal/server/response"
	ws "github.com/agentstation/worldfeed/internal/server/websocket"
)

// HandleWebSocket handles GET /api/v1/updates/ws. The optional region
// query parameter limits the stream to one region.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	region, ok := h.streamRegion(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), region, h.wsHub, conn)
	h.wsHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HandleSSE handles GET /api/v1/updates/sse.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	region, ok := h.streamRegion(w, r)
	if !ok {
		return
	}
	if region != "" {
		q := r.URL.Query()
		q.Set("region", region)
		r.URL.RawQuery = q.Encode()
	}
	h.sseBroadcaster.ServeHTTP(w, r)
}

// streamRegion validates the region filter of a stream request.
func (h *Handlers) streamRegion(w http.ResponseWriter, r *http.Request) (string, bool) {
	value := r.URL.Query().Get("region")
	if value == "" {
		return "", true
	}
	region, err := h.region(value)
	if err != nil {
		response.ErrorFromType(w, err)
		return "", false
	}
	return region.String(), true
}
