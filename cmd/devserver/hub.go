package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rentchat/domain"
)

// Wire frames mirror what the client's push channel speaks.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type sendPayload struct {
	Room          domain.RoomID      `json:"roomId"`
	SenderID      string             `json:"senderId"`
	Type          domain.MessageType `json:"messageType"`
	Content       string             `json:"content"`
	AttachmentRef string             `json:"attachmentRef"`
	ReplyTo       *int64             `json:"replyToMessageId"`
}

type roomRef struct {
	Room domain.RoomID `json:"roomId"`
}

// Hub tracks WebSocket sessions and their room subscriptions, and
// broadcasts new messages and typing signals to everyone watching a room.
// The sender receives its own echo; the client relies on it to confirm
// optimistic messages.
type Hub struct {
	mu       sync.Mutex
	log      *slog.Logger
	store    *Store
	sessions map[*wsSession]struct{}
}

type wsSession struct {
	conn   *websocket.Conn
	userID string
	rooms  map[domain.RoomID]struct{}
}

func NewHub(log *slog.Logger, store *Store) *Hub {
	return &Hub{
		log:      log,
		store:    store,
		sessions: make(map[*wsSession]struct{}),
	}
}

// Serve owns one WebSocket connection until it drops.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket accept failed", "error", err)
		return
	}

	session := &wsSession{
		conn:   conn,
		userID: userID,
		rooms:  make(map[domain.RoomID]struct{}),
	}
	h.mu.Lock()
	h.sessions[session] = struct{}{}
	h.mu.Unlock()
	h.log.Info("Push session opened", "user", userID)

	defer func() {
		h.mu.Lock()
		delete(h.sessions, session)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		h.log.Info("Push session closed", "user", userID)
	}()

	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		h.handle(ctx, session, env)
	}
}

func (h *Hub) handle(ctx context.Context, session *wsSession, env envelope) {
	switch env.Type {
	case "subscribe":
		var ref roomRef
		if err := json.Unmarshal(env.Payload, &ref); err != nil {
			return
		}
		h.mu.Lock()
		session.rooms[ref.Room] = struct{}{}
		h.mu.Unlock()

	case "unsubscribe":
		var ref roomRef
		if err := json.Unmarshal(env.Payload, &ref); err != nil {
			return
		}
		h.mu.Lock()
		delete(session.rooms, ref.Room)
		h.mu.Unlock()

	case "message.send":
		var payload sendPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			h.log.Warn("Malformed send frame", "user", session.userID, "error", err)
			return
		}
		// The token identity wins over whatever the payload claims.
		msg, err := h.store.Append(payload.Room, session.userID, payload.Type,
			payload.Content, payload.AttachmentRef, payload.ReplyTo, time.Now())
		if err != nil {
			h.log.Warn("Send rejected", "user", session.userID, "error", err)
			return
		}
		h.BroadcastMessage(ctx, msg)

	case "typing":
		var evt domain.TypingEvent
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return
		}
		evt.UserID = session.userID
		h.BroadcastTyping(ctx, evt)

	default:
		h.log.Debug("Ignoring frame", "type", env.Type)
	}
}

// BroadcastMessage pushes a message.new frame to every session watching
// the room. REST-created messages go through here too.
func (h *Hub) BroadcastMessage(ctx context.Context, msg domain.Message) {
	h.broadcast(ctx, msg.Room, outbound{Type: "message.new", Payload: msg})
}

func (h *Hub) BroadcastTyping(ctx context.Context, evt domain.TypingEvent) {
	h.broadcast(ctx, evt.Room, outbound{Type: "typing", Payload: evt})
}

func (h *Hub) broadcast(ctx context.Context, room domain.RoomID, frame outbound) {
	h.mu.Lock()
	targets := make([]*wsSession, 0, len(h.sessions))
	for session := range h.sessions {
		if _, watching := session.rooms[room]; watching {
			targets = append(targets, session)
		}
	}
	h.mu.Unlock()

	for _, session := range targets {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := wsjson.Write(writeCtx, session.conn, frame); err != nil {
			h.log.Debug("Broadcast dropped", "user", session.userID, "error", err)
		}
		cancel()
	}
}
