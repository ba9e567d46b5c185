// Package sink holds the permanent event consumers attached to the
// engine's fanout.
package sink

import (
	"context"
	"log/slog"

	"rentchat/contract"
	"rentchat/domain/event"
)

// CacheSink persists every reconciled timeline to the local snapshot
// cache. Write failures are logged and skipped; the cache is a render
// accelerator, never a source of truth.
type CacheSink struct {
	cache contract.TimelineCache
	log   *slog.Logger
}

func NewCacheSink(cache contract.TimelineCache, log *slog.Logger) CacheSink {
	return CacheSink{cache: cache, log: log}
}

func (s CacheSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.TimelineUpdated)
	if !ok {
		return nil
	}
	if err := s.cache.Store(evt.Room, evt.Messages); err != nil {
		s.log.Warn("Snapshot write failed", "room", evt.Room, "error", err)
	}
	return nil
}
