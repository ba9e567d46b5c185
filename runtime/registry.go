package runtime

import (
	"sync"

	"rentchat/contract"
	"rentchat/domain"
)

type Set map[string]struct{}

// Registry tracks which UI surfaces (chat dialog, chat sheet) currently
// watch which room. Several surfaces can share one engine; each gets its
// own sink and only sees events for rooms it subscribed to.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // map surface -> Sink
	roomWatches map[domain.RoomID]Set         // map room to surfaces
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomWatches: make(map[domain.RoomID]Set),
	}
}

// GetSinksForRoom resolves the active sinks watching a room. A two-step
// lookup keeps one sink per surface even when it watches several rooms.
// Returns nil if nothing watches the room.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers, ok := r.roomWatches[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for surfaceID := range watchers {
		if sink, exists := r.sessions[surfaceID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// AllSinks returns every registered surface sink once, regardless of room.
// Surface-wide events (transport transitions) go through here.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sink := range r.sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Subscribe registers a surface's sink and assigns it to a room.
// If the room is not watched yet, its watch set is initialized on the fly.
func (r *Registry) Subscribe(surfaceID string, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[surfaceID] = sink

	if _, ok := r.roomWatches[roomID]; !ok {
		r.roomWatches[roomID] = make(Set)
	}
	r.roomWatches[roomID][surfaceID] = struct{}{}
}

// Unsubscribe removes a surface from a room. The session itself is dropped
// once it watches no room, so closed surfaces do not leak.
func (r *Registry) Unsubscribe(surfaceID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if watchers, ok := r.roomWatches[roomID]; ok {
		delete(watchers, surfaceID)
		if len(watchers) == 0 {
			delete(r.roomWatches, roomID)
		}
	}

	for _, watchers := range r.roomWatches {
		if _, still := watchers[surfaceID]; still {
			return
		}
	}
	delete(r.sessions, surfaceID)
}
