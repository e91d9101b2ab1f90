// Package handlers provides the HTTP handlers of the world state API.
package handlers

import (
	"context"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed"
	"github.com/agentstation/worldfeed/internal/server/cache"
	"github.com/agentstation/worldfeed/internal/server/sse"
	ws "github.com/agentstation/worldfeed/internal/server/websocket"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Feed is the read side of the polling engine.
type Feed interface {
	Regions() []worldstate.Region
	Status() ([]worldfeed.RegionStatus, error)
	Artifact(region worldstate.Region, name string) ([]byte, error)
	Versions(region worldstate.Region) ([]worldstate.VersionRecord, error)
}

// Admin operates the running scheduler.
type Admin interface {
	Tick() int
	SetTick(tick int) error
	Reload(ctx context.Context) error
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	feed           Feed
	admin          Admin
	cache          *cache.Cache
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	startTime      time.Time
}

// New creates a new Handlers instance. admin may be nil when the process
// does not run a scheduler.
func New(
	feed Feed,
	admin Admin,
	cache *cache.Cache,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		feed:           feed,
		admin:          admin,
		cache:          cache,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		logger:         logger,
		startTime:      time.Now(),
	}
}

// region resolves a region path value. Regions without a feed are not
// served.
func (h *Handlers) region(value string) (worldstate.Region, error) {
	region, err := worldstate.ParseRegion(value)
	if err != nil {
		return "", errors.NewNotFoundError("region", value)
	}
	if !slices.Contains(h.feed.Regions(), region) {
		return "", errors.NewNotFoundError("region", value)
	}
	return region, nil
}
