// Package event defines the engine's outbound domain events. UI surfaces
// and permanent sinks consume these; they never mutate engine state.
package event

import (
	"rentchat/domain"
	"time"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// TimelineChange summarizes what one reconciliation did.
type TimelineChange struct {
	Added    []int64
	Replaced []int64
	Removed  []int64
}

func (c TimelineChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Replaced) == 0 && len(c.Removed) == 0
}

// TimelineUpdated carries the full reconciled timeline of one room plus the
// change summary. Consumers must not assume arrival order of the sources
// that produced it; Messages is always sorted by SentAt ascending.
type TimelineUpdated struct {
	Room     domain.RoomID
	Messages []domain.Message
	Change   TimelineChange
	At       time.Time
}

func (e TimelineUpdated) RoomID() domain.RoomID { return e.Room }

// TypingChanged carries the current set of typing peers for a room.
type TypingChanged struct {
	Room  domain.RoomID
	Users []string
}

func (e TypingChanged) RoomID() domain.RoomID { return e.Room }

// TransportChanged signals a LIVE/DEGRADED/DISCONNECTED transition.
// Transport mode is surface-wide; Room is always zero.
type TransportChanged struct {
	Mode domain.TransportMode
	At   time.Time
}

func (e TransportChanged) RoomID() domain.RoomID { return 0 }

// RoomActivity signals that the room list poll saw fresh server-side
// activity for a room the surface may want to badge.
type RoomActivity struct {
	Room    domain.RoomID
	Summary domain.RoomSummary
}

func (e RoomActivity) RoomID() domain.RoomID { return e.Room }

// Notification asks the platform layer to raise a user-visible
// notification for one message. Emitted at most once per message id.
type Notification struct {
	Room    domain.RoomID
	Message domain.Message
}

func (e Notification) RoomID() domain.RoomID { return e.Room }
