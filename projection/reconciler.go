package projection

import (
	"log/slog"
	"sort"
	"time"

	"rentchat/domain"
	"rentchat/domain/event"
)

const (
	// optimisticTTL bounds how long an unconfirmed local message survives
	// without a matching authoritative copy. Past it the entry is treated
	// as a potential send failure and pruned.
	optimisticTTL = 15 * time.Second
	// retainedTTL bounds how long a push- or cache-delivered message
	// survives while absent from newer authoritative batches. It bridges
	// the gap until the next fetched page catches up.
	retainedTTL = 30 * time.Second
)

// Reconciler merges authoritative message batches into a room timeline.
// The result always has unique ids and ascending SentAt, and never drops
// an entry younger than the retention thresholds above.
type Reconciler struct {
	resolver KeyResolver
	log      *slog.Logger
}

func NewReconciler(log *slog.Logger) *Reconciler {
	return &Reconciler{log: log}
}

// Reconcile replaces the timeline with a snapshot batch (a fetched page or
// a poll result). Entries absent from the batch are retained only while
// young enough: optimistic under 15s unless an incoming copy matches them,
// push/cache-delivered under 30s since first seen here. Empty incoming is
// a pure prune pass over retained entries.
func (r *Reconciler) Reconcile(t *Timeline, incoming []Entry, now time.Time) event.TimelineChange {
	return r.merge(t, incoming, now)
}

// Ingest merges an incremental batch (push events) without treating the
// absence of older messages as deletion: the existing authoritative set is
// carried into the merge unchanged. A nil batch is the periodic pass that
// expires stale optimistic entries.
func (r *Reconciler) Ingest(t *Timeline, events []Entry, now time.Time) event.TimelineChange {
	incoming := append(t.Authoritative(), events...)
	return r.merge(t, incoming, now)
}

func (r *Reconciler) merge(t *Timeline, incoming []Entry, now time.Time) event.TimelineChange {
	var change event.TimelineChange

	before := make(map[int64]struct{}, len(t.entries))
	for _, e := range t.entries {
		before[e.Message.ID] = struct{}{}
	}

	// Deduplicate by id as we go: on collision the copy with the later
	// SentAt wins, so a fresh edit supersedes a stale cached one.
	merged := make(map[int64]Entry, len(incoming)+len(t.entries))
	for _, in := range incoming {
		if cur, ok := merged[in.Message.ID]; ok && !cur.Message.SentAt.Before(in.Message.SentAt) {
			continue
		}
		merged[in.Message.ID] = in
	}

	for _, existing := range t.entries {
		if _, listed := merged[existing.Message.ID]; listed {
			continue
		}

		if existing.Message.IsOptimistic() {
			if replacedBy, ok := r.matchAuthoritative(existing.Message, incoming); ok {
				change.Replaced = append(change.Replaced, existing.Message.ID)
				r.log.Debug("Optimistic message replaced by authoritative copy",
					"room", existing.Message.Room,
					"optimisticId", existing.Message.ID,
					"serverId", replacedBy)
				continue
			}
			if now.Sub(existing.Message.SentAt) < optimisticTTL {
				merged[existing.Message.ID] = existing
				continue
			}
			change.Removed = append(change.Removed, existing.Message.ID)
			r.log.Warn("Optimistic message expired without confirmation",
				"room", existing.Message.Room, "id", existing.Message.ID)
			continue
		}

		if now.Sub(existing.ReceivedAt) < retainedTTL {
			merged[existing.Message.ID] = existing
			continue
		}
		change.Removed = append(change.Removed, existing.Message.ID)
	}

	entries := make([]Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Message, entries[j].Message
		if a.SentAt.Equal(b.SentAt) {
			return a.ID < b.ID
		}
		return a.SentAt.Before(b.SentAt)
	})
	t.entries = entries

	for _, e := range entries {
		if _, seen := before[e.Message.ID]; !seen {
			change.Added = append(change.Added, e.Message.ID)
		}
	}
	return change
}

// matchAuthoritative finds an incoming server copy for an optimistic entry.
func (r *Reconciler) matchAuthoritative(optimistic domain.Message, incoming []Entry) (int64, bool) {
	for _, in := range incoming {
		if r.resolver.Matches(in.Message, optimistic) {
			return in.Message.ID, true
		}
	}
	return 0, false
}
