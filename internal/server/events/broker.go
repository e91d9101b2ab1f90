package events

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Subscriber is a live transport fed by the broker. Send is called from
// the broker loop and must hand the event off quickly.
type Subscriber interface {
	Send(Event) error
	Close() error
}

const (
	eventQueue    = 256
	registerQueue = 16
)

// Broker distributes world state events to every registered subscriber.
// Each subscriber sees events in publish order.
type Broker struct {
	events     chan Event
	register   chan Subscriber
	unregister chan Subscriber
	logger     *zerolog.Logger
	now        func() time.Time

	mu   sync.RWMutex
	subs []Subscriber
}

// NewBroker creates a broker. Subscribe works before Run starts.
func NewBroker(logger *zerolog.Logger) *Broker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broker{
		events:     make(chan Event, eventQueue),
		register:   make(chan Subscriber, registerQueue),
		unregister: make(chan Subscriber, registerQueue),
		logger:     logger,
		now:        time.Now,
	}
}

// Run delivers events until ctx is cancelled, then closes every subscriber.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			subs := b.subs
			b.subs = nil
			b.mu.Unlock()
			for _, sub := range subs {
				_ = sub.Close()
			}
			b.logger.Info().Int("subscribers", len(subs)).Msg("Event broker stopped")
			return

		case sub := <-b.register:
			b.mu.Lock()
			b.subs = append(b.subs, sub)
			n := len(b.subs)
			b.mu.Unlock()
			b.logger.Debug().Int("subscribers", n).Msg("Subscriber registered")

		case sub := <-b.unregister:
			b.remove(sub)

		case event := <-b.events:
			b.deliver(event)
		}
	}
}

func (b *Broker) remove(sub Subscriber) {
	b.mu.Lock()
	i := slices.Index(b.subs, sub)
	if i >= 0 {
		b.subs = slices.Delete(b.subs, i, i+1)
	}
	n := len(b.subs)
	b.mu.Unlock()

	if i >= 0 {
		_ = sub.Close()
	}
	b.logger.Debug().Int("subscribers", n).Msg("Subscriber unregistered")
}

// deliver sends one event to all subscribers concurrently and waits, so
// the next event never overtakes it.
func (b *Broker) deliver(event Event) {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	var wg conc.WaitGroup
	for _, sub := range subs {
		wg.Go(func() {
			if err := sub.Send(event); err != nil {
				b.logger.Warn().Err(err).
					Str("event_type", string(event.Type)).
					Str("region", event.Region).
					Msg("Subscriber rejected event")
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		b.logger.Error().Str("panic", r.String()).Str("event_type", string(event.Type)).Msg("Subscriber panicked")
	}
}

// Publish queues an event. A full queue drops it so a cycle never blocks
// on slow clients.
func (b *Broker) Publish(eventType EventType, data any) {
	event := Event{
		Type:      eventType,
		Region:    regionOf(data),
		Timestamp: b.now(),
		Data:      data,
	}
	select {
	case b.events <- event:
	default:
		b.logger.Warn().Str("event_type", string(eventType)).Msg("Event queue full, event dropped")
	}
}

// Subscribe registers a subscriber.
func (b *Broker) Subscribe(sub Subscriber) {
	b.register <- sub
}

// Unsubscribe removes and closes a subscriber.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.unregister <- sub
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
