package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rentchat/domain"
	apperrors "rentchat/errors"
)

// Envelope is the wire format of every push frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is a client-to-server push frame.
type Command struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

const (
	frameMessageNew  = "message.new"
	frameTyping      = "typing"
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameSend        = "message.send"

	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

type roomHandlers struct {
	id        string
	onMessage func(domain.Message)
	onTyping  func(domain.TypingEvent)
}

// PushClient maintains one WebSocket session against the chat gateway and
// fans incoming frames out to per-room handlers. It reconnects on its own
// with capped exponential backoff and reports connection transitions
// through OnStateChange; callers never see the handshake itself.
type PushClient struct {
	url   string
	token string
	log   *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	stateFns  []func(connected bool)
	rooms     map[domain.RoomID][]roomHandlers
}

func NewPushClient(log *slog.Logger, url, token string) *PushClient {
	return &PushClient{
		url:   url,
		token: token,
		log:   log,
		rooms: make(map[domain.RoomID][]roomHandlers),
	}
}

// Run dials and serves the session until ctx is cancelled, reconnecting
// after every drop. It implements contract.Worker so the supervisor owns
// its lifecycle.
func (c *PushClient) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := c.dial(ctx)
		if err != nil {
			delay := backoffDelay(attempt)
			attempt++
			c.log.Warn("Push handshake failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.setConnected(conn, true)
		c.resubscribe(ctx)

		err = c.readLoop(ctx, conn)
		c.setConnected(nil, false)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("Push channel dropped", "error", err)
	}
}

func (c *PushClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url+"?token="+c.token, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *PushClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *PushClient) dispatch(env Envelope) {
	switch env.Type {
	case frameMessageNew:
		var msg domain.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			c.log.Warn("Malformed message frame", "error", err)
			return
		}
		for _, h := range c.handlersFor(msg.Room) {
			h.onMessage(msg)
		}
	case frameTyping:
		var evt domain.TypingEvent
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			c.log.Warn("Malformed typing frame", "error", err)
			return
		}
		for _, h := range c.handlersFor(evt.Room) {
			h.onTyping(evt)
		}
	default:
		c.log.Debug("Ignoring push frame", "type", env.Type)
	}
}

func (c *PushClient) handlersFor(room domain.RoomID) []roomHandlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]roomHandlers, len(c.rooms[room]))
	copy(out, c.rooms[room])
	return out
}

// Subscribe registers handlers for one room and announces interest to the
// gateway when connected. The returned function undoes both.
func (c *PushClient) Subscribe(room domain.RoomID, onMessage func(domain.Message), onTyping func(domain.TypingEvent)) (func(), error) {
	h := roomHandlers{id: uuid.NewString(), onMessage: onMessage, onTyping: onTyping}

	c.mu.Lock()
	first := len(c.rooms[room]) == 0
	c.rooms[room] = append(c.rooms[room], h)
	conn := c.conn
	c.mu.Unlock()

	if first && conn != nil {
		c.send(conn, Command{Type: frameSubscribe, Payload: map[string]any{"roomId": room}})
	}

	return func() { c.unsubscribe(room, h.id) }, nil
}

func (c *PushClient) unsubscribe(room domain.RoomID, id string) {
	c.mu.Lock()
	kept := c.rooms[room][:0]
	for _, h := range c.rooms[room] {
		if h.id != id {
			kept = append(kept, h)
		}
	}
	var conn *websocket.Conn
	if len(kept) == 0 {
		delete(c.rooms, room)
		conn = c.conn
	} else {
		c.rooms[room] = kept
	}
	c.mu.Unlock()

	if conn != nil {
		c.send(conn, Command{Type: frameUnsubscribe, Payload: map[string]any{"roomId": room}})
	}
}

func (c *PushClient) resubscribe(ctx context.Context) {
	c.mu.RLock()
	rooms := make([]domain.RoomID, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	conn := c.conn
	c.mu.RUnlock()

	for _, room := range rooms {
		if ctx.Err() != nil {
			return
		}
		c.send(conn, Command{Type: frameSubscribe, Payload: map[string]any{"roomId": room}})
	}
}

// PublishMessage sends a message over the live channel. Callers fall back
// to REST when the channel is down.
func (c *PushClient) PublishMessage(ctx context.Context, cmd domain.SendMessageCommand) error {
	return c.publish(ctx, Command{
		Type:      frameSend,
		RequestID: uuid.NewString(),
		Payload: map[string]any{
			"roomId":           cmd.Room,
			"senderId":         cmd.SenderID,
			"messageType":      cmd.Type,
			"content":          cmd.Content,
			"attachmentRef":    cmd.AttachmentRef,
			"replyToMessageId": cmd.ReplyTo,
		},
	})
}

func (c *PushClient) PublishTyping(ctx context.Context, evt domain.TypingEvent) error {
	return c.publish(ctx, Command{Type: frameTyping, Payload: evt})
}

func (c *PushClient) publish(ctx context.Context, cmd Command) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return apperrors.ErrTransportClosed
	}
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransportClosed, err)
	}
	return nil
}

func (c *PushClient) send(conn *websocket.Conn, cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		c.log.Debug("Push command dropped", "type", cmd.Type, "error", err)
	}
}

func (c *PushClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// OnStateChange registers a connection transition callback. Callbacks run
// on the session goroutine and must not block.
func (c *PushClient) OnStateChange(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

func (c *PushClient) setConnected(conn *websocket.Conn, connected bool) {
	c.mu.Lock()
	c.conn = conn
	changed := c.connected != connected
	c.connected = connected
	fns := make([]func(bool), len(c.stateFns))
	copy(fns, c.stateFns)
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(connected)
	}
}

// backoffDelay doubles per attempt with jitter, capped at 30s.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(reconnectBaseDelay) * math.Pow(2, float64(attempt)))
	if d > reconnectMaxDelay {
		d = reconnectMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}
