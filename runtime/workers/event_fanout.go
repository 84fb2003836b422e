package workers

import (
	"adoption-chat/contract"
	"adoption-chat/domain/event"
	"context"
	"log/slog"
	"time"
)

// EventFanout broadcasts every event published to a room to all the room's
// sinks, the publisher's own connection included.
//
// Delivery is best effort. A sink that does not accept an event within
// sinkTimeout misses it, and nothing is retried or replayed later.
// Sinks are served one after the other so each connection sees the room's
// events in publication order.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	events      <-chan event.DomainEvent
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	events <-chan event.DomainEvent, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{log: log, registry: registry, events: events, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout returns how many sinks accepted the event.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) int {
	sinks := w.registry.GetSinksForRoom(evt.RoomID())
	accepted := 0
	for _, sink := range sinks {
		if w.consume(ctx, sink, evt) {
			accepted++
		}
	}
	if accepted < len(sinks) {
		w.log.Debug("Event not delivered to every sink", "room", evt.RoomID(), "sinks", len(sinks), "accepted", accepted)
	}
	return accepted
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) bool {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("Sink dropped event", "room", evt.RoomID(), "error", err)
		return false
	}
	return true
}
