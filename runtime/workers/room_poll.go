package workers

import (
	"context"
	"log/slog"
	"time"

	"rentchat/domain"
	"rentchat/observability"
)

// RoomPollWorker refetches the open room's latest page on a fixed interval
// while the transport is DEGRADED. With the push channel LIVE the worker
// idles; increments arrive on their own.
type RoomPollWorker struct {
	log         *slog.Logger
	mode        func() domain.TransportMode
	openRoom    func() domain.RoomID
	refreshRoom func(ctx context.Context, room domain.RoomID)
	interval    time.Duration
	metrics     *observability.Metrics
}

func NewRoomPollWorker(
	log *slog.Logger,
	mode func() domain.TransportMode,
	openRoom func() domain.RoomID,
	refreshRoom func(ctx context.Context, room domain.RoomID),
	interval time.Duration,
	metrics *observability.Metrics,
) *RoomPollWorker {
	return &RoomPollWorker{
		log:         log,
		mode:        mode,
		openRoom:    openRoom,
		refreshRoom: refreshRoom,
		interval:    interval,
		metrics:     metrics,
	}
}

func (w *RoomPollWorker) Run(ctx context.Context) error {
	w.log.Debug("Starting room message poll worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.mode() != domain.Degraded {
				continue
			}
			room := w.openRoom()
			if room == 0 {
				continue
			}
			w.metrics.Polls.WithLabelValues("room_messages").Inc()
			w.refreshRoom(ctx, room)
		}
	}
}
