// Package projection builds local room timelines from observed sources.
// Handles ordering, deduplication, and optimistic reconciliation.
// Does not emit events or interact with UI directly.
package projection

import (
	"time"

	"github.com/samber/lo"

	"rentchat/domain"
)

// Origin tells which source delivered a timeline entry. Retention rules
// differ per origin when a newer batch no longer lists the entry.
type Origin int

const (
	// OriginREST marks entries loaded from a paginated fetch.
	OriginREST Origin = iota
	// OriginPush marks entries delivered by the push channel.
	OriginPush
	// OriginLocal marks optimistic entries created at send time.
	OriginLocal
	// OriginCache marks entries restored from the local snapshot cache.
	OriginCache
)

// Entry is one timeline slot: the wire message plus local bookkeeping the
// reconciler needs. ReceivedAt is when this client first saw the record,
// not when the server accepted it.
type Entry struct {
	Message    domain.Message
	Origin     Origin
	ReceivedAt time.Time
}

// Timeline is the ordered, deduplicated message sequence of one room.
// After every reconciliation ids are unique and entries are sorted by
// SentAt ascending. Only the Reconciler mutates a timeline.
type Timeline struct {
	Room    domain.RoomID
	entries []Entry
}

func NewTimeline(room domain.RoomID) *Timeline {
	return &Timeline{Room: room}
}

// Restore seeds a timeline from previously persisted entries, re-tagged as
// cache-origin so the next reconciliation applies the retained-entry rule.
func Restore(room domain.RoomID, entries []Entry, now time.Time) *Timeline {
	restored := lo.Map(entries, func(e Entry, _ int) Entry {
		e.Origin = OriginCache
		e.ReceivedAt = now
		return e
	})
	return &Timeline{Room: room, entries: restored}
}

func (t *Timeline) Len() int {
	return len(t.entries)
}

// Entries returns a copy; callers never alias internal state.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Messages projects the bare wire messages in display order.
func (t *Timeline) Messages() []domain.Message {
	return lo.Map(t.entries, func(e Entry, _ int) domain.Message {
		return e.Message
	})
}

// Authoritative returns the server-confirmed subset, bookkeeping intact.
func (t *Timeline) Authoritative() []Entry {
	return lo.Filter(t.entries, func(e Entry, _ int) bool {
		return !e.Message.IsOptimistic()
	})
}

// Contains reports whether an id is present.
func (t *Timeline) Contains(id int64) bool {
	return lo.ContainsBy(t.entries, func(e Entry) bool {
		return e.Message.ID == id
	})
}

// Last returns the newest entry by display order, if any.
func (t *Timeline) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}
