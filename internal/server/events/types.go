// Package events fans world state updates out to live subscribers.
//
// The cycle controller and the notification dispatcher publish to a Broker,
// which forwards every event to the registered transports (WebSocket, SSE).
package events

import (
	"fmt"
	"time"
)

// EventType represents the type of a world state event.
type EventType string

// Event types published during polling cycles.
const (
	// RegionUpdated is published for every dispatched cycle decision.
	RegionUpdated EventType = "region.updated"
	// BuildChanged is published when a region reports a new build label.
	BuildChanged EventType = "build.changed"

	// CycleSkipped is published when a stale feed was ignored.
	CycleSkipped EventType = "cycle.skipped"
	// CycleFailed is published when a cycle aborted.
	CycleFailed EventType = "cycle.failed"

	// ClientConnected is published by transport layers.
	ClientConnected EventType = "client.connected"
)

// Event represents a world state event with type, timestamp, and data.
// Region is empty for events that do not belong to one region.
type Event struct {
	Type      EventType `json:"type"`
	Region    string    `json:"region,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Regional is implemented by payloads that carry their region.
type Regional interface {
	EventRegion() string
}

// regionOf extracts the region of an event payload.
func regionOf(data any) string {
	switch v := data.(type) {
	case Regional:
		return v.EventRegion()
	case map[string]any:
		switch r := v["region"].(type) {
		case string:
			return r
		case fmt.Stringer:
			return r.String()
		}
	}
	return ""
}

// Matches reports whether the event should reach a client filtering on
// region. An empty filter matches everything.
func (e Event) Matches(region string) bool {
	return region == "" || e.Region == "" || e.Region == region
}
