// Package typing tracks which peers are currently typing per room.
// The aggregator is a membership set fed by push events; the sending side
// owns the idle timer and emits explicit stop events. ExpiresAt is only a
// safety net for peers that disconnect mid-typing.
package typing

import (
	"sort"
	"sync"
	"time"

	"rentchat/domain"
)

const peerTTL = 10 * time.Second

// Aggregator is safe for concurrent use by multiple goroutines.
type Aggregator struct {
	mu     sync.Mutex
	userID string
	rooms  map[domain.RoomID]map[string]time.Time
}

func NewAggregator(userID string) *Aggregator {
	return &Aggregator{
		userID: userID,
		rooms:  make(map[domain.RoomID]map[string]time.Time),
	}
}

// OnEvent applies one typing event. Events from the current user are
// ignored. It reports whether the room's typing set changed.
func (a *Aggregator) OnEvent(evt domain.TypingEvent, now time.Time) bool {
	if evt.UserID == a.userID {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	peers, ok := a.rooms[evt.Room]
	if !ok {
		if !evt.IsTyping {
			return false
		}
		peers = make(map[string]time.Time)
		a.rooms[evt.Room] = peers
	}

	if evt.IsTyping {
		_, present := peers[evt.UserID]
		peers[evt.UserID] = now.Add(peerTTL)
		return !present
	}

	if _, present := peers[evt.UserID]; !present {
		return false
	}
	delete(peers, evt.UserID)
	if len(peers) == 0 {
		delete(a.rooms, evt.Room)
	}
	return true
}

// Active returns the peers typing in a room right now, sorted for stable
// rendering. Expired peers are pruned on the way out.
func (a *Aggregator) Active(room domain.RoomID, now time.Time) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	peers, ok := a.rooms[room]
	if !ok {
		return nil
	}

	var active []string
	for userID, expiresAt := range peers {
		if now.After(expiresAt) {
			delete(peers, userID)
			continue
		}
		active = append(active, userID)
	}
	if len(peers) == 0 {
		delete(a.rooms, room)
	}
	sort.Strings(active)
	return active
}

// ClearRoom drops all typing state for a room on deselection.
func (a *Aggregator) ClearRoom(room domain.RoomID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.rooms, room)
}
