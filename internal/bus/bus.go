// Package bus fans the listener's event stream out to consumers while
// preserving its ordering contract: one event at a time, every subscriber
// done before the next event is taken.
package bus

import (
	"context"
	"log/slog"

	"github.com/sealbot/sealbot/internal/listener"
)

// Handler consumes one domain event. A handler error is logged, never
// propagated: business reactions must not stall the polling loop for long,
// but they may rely on strict ordering.
type Handler func(ctx context.Context, ev listener.Event) error

type subscriber struct {
	name    string
	kinds   map[listener.Kind]bool // nil: all kinds
	handler Handler
}

// EventBus dispatches listener events to subscribers synchronously, in
// subscription order.
type EventBus struct {
	subscribers []subscriber
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a handler for the given event kinds. An empty kind
// list subscribes to everything. Not safe to call once Dispatch runs.
func (b *EventBus) Subscribe(name string, handler Handler, kinds ...listener.Kind) {
	sub := subscriber{name: name, handler: handler}
	if len(kinds) > 0 {
		sub.kinds = make(map[listener.Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	b.subscribers = append(b.subscribers, sub)
}

// Dispatch drains the event channel until it closes or ctx is cancelled.
// Because the listener publishes on an unbuffered channel, a slow handler
// exerts backpressure on the polling loop by design.
func (b *EventBus) Dispatch(ctx context.Context, events <-chan listener.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.deliver(ctx, ev)
		}
	}
}

func (b *EventBus) deliver(ctx context.Context, ev listener.Event) {
	for _, sub := range b.subscribers {
		if sub.kinds != nil && !sub.kinds[ev.Kind()] {
			continue
		}
		if err := sub.handler(ctx, ev); err != nil {
			slog.Warn("event handler failed", "subscriber", sub.name, "event", ev.Kind(), "chat", ev.ChatID(), "err", err)
		}
	}
}
