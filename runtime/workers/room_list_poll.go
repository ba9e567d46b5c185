package workers

import (
	"context"
	"log/slog"
	"time"

	"rentchat/domain"
	"rentchat/observability"
)

// RoomListPollWorker periodically fetches the room summaries. In LIVE mode
// it is the slow background check that catches badge-count drift; in
// DEGRADED mode it tightens up and becomes a primary update source. A
// message refetch only happens when a summary actually changed.
type RoomListPollWorker struct {
	log              *slog.Logger
	mode             func() domain.TransportMode
	syncRoomList     func(ctx context.Context) (domain.RoomID, bool)
	refreshRoom      func(ctx context.Context, room domain.RoomID)
	liveInterval     time.Duration
	degradedInterval time.Duration
	metrics          *observability.Metrics
}

func NewRoomListPollWorker(
	log *slog.Logger,
	mode func() domain.TransportMode,
	syncRoomList func(ctx context.Context) (domain.RoomID, bool),
	refreshRoom func(ctx context.Context, room domain.RoomID),
	liveInterval, degradedInterval time.Duration,
	metrics *observability.Metrics,
) *RoomListPollWorker {
	return &RoomListPollWorker{
		log:              log,
		mode:             mode,
		syncRoomList:     syncRoomList,
		refreshRoom:      refreshRoom,
		liveInterval:     liveInterval,
		degradedInterval: degradedInterval,
		metrics:          metrics,
	}
}

func (w *RoomListPollWorker) Run(ctx context.Context) error {
	w.log.Debug("Starting room list poll worker")
	for {
		interval := w.liveInterval
		if w.mode() == domain.Degraded {
			interval = w.degradedInterval
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}

		if w.mode() == domain.Disconnected {
			continue
		}

		w.metrics.Polls.WithLabelValues("room_list").Inc()
		room, changed := w.syncRoomList(ctx)
		if changed {
			w.refreshRoom(ctx, room)
		}
	}
}
