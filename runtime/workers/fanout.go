package workers

import (
	"context"
	"log/slog"
	"time"

	"rentchat/contract"
	"rentchat/domain/event"
)

// EventFanout broadcasts engine events to permanent sinks and to the UI
// surfaces watching the event's room.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	registry    contract.IRegistry
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.DomainEvent,
	registry contract.IRegistry, sinks []contract.EventSink, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      events,
		registry:    registry,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// fanout delivers one event: permanent sinks always, surface sinks by
// room. Surface-wide events (room zero) reach every registered surface.
func (w *EventFanout) fanout(ctx context.Context, evt event.DomainEvent) {
	targets := make([]contract.EventSink, 0, len(w.sinks)+2)
	targets = append(targets, w.sinks...)
	if room := evt.RoomID(); room == 0 {
		targets = append(targets, w.registry.AllSinks()...)
	} else {
		targets = append(targets, w.registry.GetSinksForRoom(room)...)
	}

	for _, sink := range targets {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink rejected event", "room", evt.RoomID(), "error", err)
		}
		cancel()
	}
}
