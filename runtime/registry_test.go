package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rentchat/domain"
	"rentchat/domain/event"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Surface(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	surfaceID := uuid.NewString()
	roomID := domain.RoomID(1)
	sink := Sink{name: "dialog"}

	// Given no surface is registered
	req.Empty(registry.AllSinks())
	req.Empty(registry.GetSinksForRoom(roomID))

	// When a surface subscribes a room
	registry.Subscribe(surfaceID, roomID, sink)

	// Then
	req.Len(registry.AllSinks(), 1)
	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), Sink{name: "dialog"})
}

func TestRegistry_Subscribe_One_Room_Multiple_Surfaces(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	surfaceID1 := uuid.NewString()
	surfaceID2 := uuid.NewString()
	roomID := domain.RoomID(1)
	sink1 := Sink{name: "dialog"}
	sink2 := Sink{name: "sheet"}

	// When surfaces subscribe a room
	registry.Subscribe(surfaceID1, roomID, sink1)
	registry.Subscribe(surfaceID2, roomID, sink2)

	// Then
	req.Len(registry.AllSinks(), 2)
	req.Len(registry.GetSinksForRoom(roomID), 2)
	req.Contains(registry.GetSinksForRoom(roomID), sink1)
	req.Contains(registry.GetSinksForRoom(roomID), sink2)
}

func TestRegistry_Subscribe_One_Surface_Multiple_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	surfaceID := uuid.NewString()
	sink := Sink{name: "dialog"}

	// When one surface watches two rooms
	registry.Subscribe(surfaceID, domain.RoomID(1), sink)
	registry.Subscribe(surfaceID, domain.RoomID(2), sink)

	// Then the surface is registered once
	req.Len(registry.AllSinks(), 1)
	req.Len(registry.GetSinksForRoom(domain.RoomID(1)), 1)
	req.Len(registry.GetSinksForRoom(domain.RoomID(2)), 1)
}

func TestRegistry_Unsubscribe_One_Room_One_Surface(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	surfaceID := uuid.NewString()
	roomID := domain.RoomID(1)
	sink := Sink{name: "dialog"}

	// Given a surface subscribed a room
	registry.Subscribe(surfaceID, roomID, sink)

	// When the surface unsubscribes
	registry.Unsubscribe(surfaceID, roomID)

	// Then no surface is left
	req.Empty(registry.GetSinksForRoom(roomID))
	req.Empty(registry.AllSinks())
}

func TestRegistry_Unsubscribe_Keeps_Session_While_Other_Rooms_Watched(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	surfaceID := uuid.NewString()
	sink := Sink{name: "dialog"}

	// Given one surface watching two rooms
	registry.Subscribe(surfaceID, domain.RoomID(1), sink)
	registry.Subscribe(surfaceID, domain.RoomID(2), sink)

	// When it leaves only one of them
	registry.Unsubscribe(surfaceID, domain.RoomID(1))

	// Then the session survives for the other room
	req.Empty(registry.GetSinksForRoom(domain.RoomID(1)))
	req.Len(registry.GetSinksForRoom(domain.RoomID(2)), 1)
	req.Len(registry.AllSinks(), 1)
}

func TestRegistry_Unsubscribe_Unknown_Surface_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// When an unknown surface unsubscribes
	registry.Unsubscribe(uuid.NewString(), domain.RoomID(1))

	// Then nothing happens
	req.Empty(registry.AllSinks())
}
