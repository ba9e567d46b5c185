// Package readstate decides when messages are reported as read.
// It owns per-room scan flags and per-message de-duplication; the actual
// read receipt call belongs to the transport layer.
package readstate

import (
	"log/slog"
	"sync"

	"rentchat/domain"
)

// View is the slice of UI state the tracker consumes. NearBottom is the
// viewport heuristic computed by the rendering surface; the tracker only
// sees the boolean.
type View struct {
	OpenRoom   domain.RoomID
	NearBottom bool
}

// Tracker emits mark-as-read commands with de-duplication: a given message
// id is emitted at most once per tracker instance, and a room's initial
// timeline is scanned at most once no matter how often it re-renders.
//
// Tracker is safe for concurrent use by multiple goroutines.
type Tracker struct {
	mu      sync.Mutex
	log     *slog.Logger
	userID  string
	marked  map[int64]struct{}
	scanned map[domain.RoomID]bool
}

func NewTracker(log *slog.Logger, userID string) *Tracker {
	return &Tracker{
		log:     log,
		userID:  userID,
		marked:  make(map[int64]struct{}),
		scanned: make(map[domain.RoomID]bool),
	}
}

// OnIncoming considers one freshly arrived message. It returns a command
// iff the message is from a peer, belongs to the room the user has open,
// the user is viewing the latest messages, and the id was never marked.
func (t *Tracker) OnIncoming(msg domain.Message, view View) (domain.MarkReadCommand, bool) {
	if msg.IsOptimistic() || msg.SenderID == t.userID || msg.IsReadByMe {
		return domain.MarkReadCommand{}, false
	}
	if msg.Room != view.OpenRoom || !view.NearBottom {
		return domain.MarkReadCommand{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, done := t.marked[msg.ID]; done {
		return domain.MarkReadCommand{}, false
	}
	t.marked[msg.ID] = struct{}{}
	return domain.MarkReadCommand{Room: msg.Room, MessageID: msg.ID}, true
}

// ScanTimeline walks a freshly loaded room once and returns one command per
// unread peer message. Subsequent calls for the same room return nothing
// until ResetRoom; a timeline re-render must not cause a re-scan.
func (t *Tracker) ScanTimeline(room domain.RoomID, msgs []domain.Message) []domain.MarkReadCommand {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scanned[room] {
		return nil
	}
	t.scanned[room] = true

	var commands []domain.MarkReadCommand
	for _, msg := range msgs {
		if msg.IsOptimistic() || msg.SenderID == t.userID || msg.IsReadByMe {
			continue
		}
		if _, done := t.marked[msg.ID]; done {
			continue
		}
		t.marked[msg.ID] = struct{}{}
		commands = append(commands, domain.MarkReadCommand{Room: room, MessageID: msg.ID})
	}
	if len(commands) > 0 {
		t.log.Debug("Initial read scan emitted commands", "room", room, "count", len(commands))
	}
	return commands
}

// ResetRoom clears the scan flag so the next room open triggers a fresh
// scan. Marked ids survive: a message is never re-marked.
func (t *Tracker) ResetRoom(room domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.scanned, room)
}
