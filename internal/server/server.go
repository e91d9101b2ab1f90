// Package server provides the HTTP surface of worldfeed: rendered
// artifacts, region status, admin operations and live update streams.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed"
	"github.com/agentstation/worldfeed/internal/server/cache"
	"github.com/agentstation/worldfeed/internal/server/events"
	"github.com/agentstation/worldfeed/internal/server/events/adapters"
	"github.com/agentstation/worldfeed/internal/server/handlers"
	"github.com/agentstation/worldfeed/internal/server/sse"
	ws "github.com/agentstation/worldfeed/internal/server/websocket"
)

// Feed is the polling engine served over HTTP.
type Feed interface {
	handlers.Feed
	OnCycle(fn worldfeed.CycleHook)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	feed           Feed
	admin          handlers.Admin
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithBroker shares an event broker with the engine. The engine publishes,
// the server fans out.
func WithBroker(b *events.Broker) Option {
	return func(s *Server) { s.broker = b }
}

// WithAdmin enables the admin endpoints when an admin key is configured.
func WithAdmin(a handlers.Admin) Option {
	return func(s *Server) { s.admin = a }
}

// WithLogger sets the server logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new server instance with the given configuration.
func New(feed Feed, cfg Config, opts ...Option) *Server {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.AdminHeader == "" {
		cfg.AdminHeader = DefaultConfig().AdminHeader
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		feed:   feed,
		cache:  cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	if s.broker == nil {
		s.broker = events.NewBroker(s.logger)
	}

	s.wsHub = ws.NewHub(s.logger)
	s.sseBroadcaster = sse.NewBroadcaster(s.logger)
	s.broker.Subscribe(adapters.NewWebSocketSubscriber(s.wsHub))
	s.broker.Subscribe(adapters.NewSSESubscriber(s.sseBroadcaster))

	s.connectHooks()
	return s
}

// connectHooks drops cached artifacts of a region once a cycle rewrote them.
func (s *Server) connectHooks() {
	s.feed.OnCycle(func(report *worldfeed.CycleReport) {
		if len(report.Written) == 0 {
			return
		}
		n := s.cache.InvalidateRegion(report.Region.String())
		s.logger.Debug().
			Str("region", report.Region.String()).
			Int("dropped", n).
			Msg("Artifact cache invalidated")
	})
}

// Start starts background services (broker, WebSocket hub, SSE broadcaster).
func (s *Server) Start() {
	go s.broker.Run(s.ctx)
	go s.wsHub.Run(s.ctx)
	go s.sseBroadcaster.Run(s.ctx)
	s.logger.Debug().Msg("Server background services started")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// HTTPServer returns an http.Server for the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
}

// Shutdown stops the background services and closes live streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}
	s.logger.Info().Msg("Server background services shut down")
	return nil
}

// Cache returns the artifact cache.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Broker returns the event broker.
func (s *Server) Broker() *events.Broker {
	return s.broker
}
