package server

import (
	"net/http"

	"github.com/agentstation/worldfeed/internal/server/handlers"
	"github.com/agentstation/worldfeed/internal/server/middleware"
	"github.com/agentstation/worldfeed/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(
		s.feed,
		s.admin,
		s.cache,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.logger,
	)

	s.registerRoutes(mux, h)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/ready", h.HandleReady)

	mux.HandleFunc("GET "+prefix+"/regions", h.HandleListRegions)
	mux.HandleFunc("GET "+prefix+"/regions/{region}", h.HandleGetRegion)
	mux.HandleFunc("GET "+prefix+"/regions/{region}/versions", h.HandleListVersions)
	mux.HandleFunc("GET "+prefix+"/regions/{region}/artifacts/{name}", h.HandleGetArtifact)

	mux.HandleFunc("GET "+prefix+"/updates/ws", h.HandleWebSocket)
	mux.HandleFunc("GET "+prefix+"/updates/sse", h.HandleSSE)

	// Admin routes exist only with a scheduler and a key.
	if s.admin != nil && s.config.AdminKey != "" {
		auth := middleware.Auth(middleware.AuthConfig{
			APIKey:     s.config.AdminKey,
			HeaderName: s.config.AdminHeader,
		}, s.logger)
		mux.Handle("GET "+prefix+"/admin/tick", auth(http.HandlerFunc(h.HandleGetTick)))
		mux.Handle("PUT "+prefix+"/admin/tick", auth(http.HandlerFunc(h.HandleSetTick)))
		mux.Handle("POST "+prefix+"/admin/reload", auth(http.HandlerFunc(h.HandleReload)))
		mux.Handle("GET "+prefix+"/admin/stats", auth(http.HandlerFunc(h.HandleStats)))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Not found", r.URL.Path)
	})
}

// applyMiddleware wraps handler with the middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config
	var chain []func(http.Handler) http.Handler

	chain = append(chain, middleware.Recovery(s.logger), middleware.Logger(s.logger))
	if len(cfg.CORSOrigins) > 0 {
		chain = append(chain, middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins...)))
	}
	if cfg.RateLimit > 0 {
		chain = append(chain, middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit, s.logger)))
	}
	return middleware.Chain(chain...)(handler)
}
