package adapters

import (
	"strconv"

	"github.com/agentstation/worldfeed/internal/server/events"
	"github.com/agentstation/worldfeed/internal/server/sse"
)

// SSESubscriber adapts the SSE broadcaster to the Subscriber interface.
type SSESubscriber struct {
	broadcaster *sse.Broadcaster
}

// NewSSESubscriber creates a new SSE subscriber.
func NewSSESubscriber(broadcaster *sse.Broadcaster) *SSESubscriber {
	return &SSESubscriber{broadcaster: broadcaster}
}

// Send delivers an event to all SSE clients following its region.
func (s *SSESubscriber) Send(event events.Event) error {
	s.broadcaster.Broadcast(sse.Event{
		Event:  string(event.Type),
		ID:     strconv.FormatInt(event.Timestamp.UnixNano(), 10),
		Region: event.Region,
		Data:   event.Data,
	})
	return nil
}

// Close is a no-op; the broadcaster manages its own lifecycle.
func (s *SSESubscriber) Close() error {
	return nil
}
