// Package runtime wires the synchronization engine together: room
// lifecycle, transport coordination, and event propagation to UI surfaces.
// It orchestrates the projection, readstate, typing and notify packages
// without containing their domain rules.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/domain/event"
	apperrors "rentchat/errors"
	"rentchat/notify"
	"rentchat/observability"
	"rentchat/projection"
	"rentchat/readstate"
	"rentchat/typing"
)

const (
	firstPageSize  = 50
	pollPageSize   = 30
	markReadBudget = 10 * time.Second
)

// View is the visibility state a surface reports to the engine. The engine
// only ever consumes booleans; scroll geometry stays in the UI.
type View struct {
	SurfaceOpen    bool
	PageVisible    bool
	NearBottom     bool
	NotificationOK bool
}

type roomState struct {
	mu       sync.Mutex // serializes reconciliation for this room
	timeline *projection.Timeline
	summary  domain.RoomSummary
	unsub    func()
}

// Engine owns per-room timelines and applies every update source through
// the reconciler, one merge at a time per room. It emits domain events on
// an outbound channel drained by the fanout worker.
type Engine struct {
	log        *slog.Logger
	userID     string
	reconciler *projection.Reconciler
	tracker    *readstate.Tracker
	typing     *typing.Aggregator
	notifier   *notify.Notifier
	service    contract.RoomService
	push       contract.PushTransport
	uploader   contract.Uploader
	cache      contract.TimelineCache
	metrics    *observability.Metrics
	validate   *validator.Validate
	events     chan event.DomainEvent
	clock      func() time.Time

	mu        sync.Mutex
	rooms     map[domain.RoomID]*roomState
	openRoom  domain.RoomID
	view      View
	summaries map[domain.RoomID]domain.RoomSummary
	optimist  int64
}

type EngineOption func(*Engine)

// WithClock replaces the wall clock, for simulated time in tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

func WithCache(cache contract.TimelineCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

func WithNotifier(notifier *notify.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = notifier }
}

func NewEngine(
	log *slog.Logger,
	userID string,
	service contract.RoomService,
	push contract.PushTransport,
	uploader contract.Uploader,
	metrics *observability.Metrics,
	bufferSize int,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		log:        log,
		userID:     userID,
		reconciler: projection.NewReconciler(log),
		tracker:    readstate.NewTracker(log, userID),
		typing:     typing.NewAggregator(userID),
		service:    service,
		push:       push,
		uploader:   uploader,
		metrics:    metrics,
		validate:   validator.New(),
		events:     make(chan event.DomainEvent, bufferSize),
		clock:      time.Now,
		rooms:      make(map[domain.RoomID]*roomState),
		summaries:  make(map[domain.RoomID]domain.RoomSummary),
		optimist:   -time.Now().UnixMilli(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events is the outbound stream drained by the fanout worker.
func (e *Engine) Events() <-chan event.DomainEvent {
	return e.events
}

// SetView records the latest surface visibility report.
func (e *Engine) SetView(view View) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = view
}

// OpenRoomID returns the currently selected room, zero if none.
func (e *Engine) OpenRoomID() domain.RoomID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openRoom
}

// OpenRoom selects a room: restore the cached snapshot for an instant
// render, fetch the first page regardless of transport mode, subscribe to
// push increments, and run the one-shot read scan. Any previously open
// room is closed first.
func (e *Engine) OpenRoom(ctx context.Context, room domain.RoomID) error {
	e.mu.Lock()
	if prev := e.openRoom; prev != 0 && prev != room {
		e.mu.Unlock()
		e.CloseRoom(prev)
		e.mu.Lock()
	}
	rs, ok := e.rooms[room]
	if !ok {
		rs = &roomState{timeline: projection.NewTimeline(room)}
		e.rooms[room] = rs
	}
	e.openRoom = room
	e.mu.Unlock()

	if e.cache != nil {
		if cached, err := e.cache.Load(room); err == nil && len(cached) > 0 {
			now := e.clock()
			rs.mu.Lock()
			rs.timeline = projection.Restore(room, toEntries(cached, projection.OriginCache, now), now)
			snapshot := rs.timeline.Messages()
			rs.mu.Unlock()
			e.emit(event.TimelineUpdated{Room: room, Messages: snapshot, At: now})
		}
	}

	unsub, err := e.push.Subscribe(room,
		func(msg domain.Message) { e.onPushMessage(msg) },
		func(evt domain.TypingEvent) { e.onTyping(evt) },
	)
	if err != nil {
		e.log.Warn("Push subscribe failed, polling will cover the room", "room", room, "error", err)
	} else {
		rs.mu.Lock()
		rs.unsub = unsub
		rs.mu.Unlock()
	}

	if err := e.fetchPage(ctx, room, firstPageSize, "open"); err != nil {
		// A failed room open is user-initiated and must surface.
		return fmt.Errorf("open room %d: %w", room, err)
	}

	rs.mu.Lock()
	loaded := rs.timeline.Messages()
	rs.mu.Unlock()
	for _, cmd := range e.tracker.ScanTimeline(room, loaded) {
		e.dispatchMarkRead(cmd)
	}
	return nil
}

// CloseRoom deselects a room: push subscription, typing state and the
// timeline itself are dropped. The snapshot cache survives.
func (e *Engine) CloseRoom(room domain.RoomID) {
	e.mu.Lock()
	rs, ok := e.rooms[room]
	if ok {
		delete(e.rooms, room)
	}
	if e.openRoom == room {
		e.openRoom = 0
	}
	e.mu.Unlock()

	if !ok {
		return
	}
	rs.mu.Lock()
	unsub := rs.unsub
	rs.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	e.typing.ClearRoom(room)
	e.tracker.ResetRoom(room)
	e.log.Debug("Room closed", "room", room)
}

// Send validates and dispatches a user message. An attachment is uploaded
// first and blocks the send; on upload failure nothing is created. The
// optimistic entry is inserted before the network call, and a failed send
// leaves it in place to expire on its own.
func (e *Engine) Send(ctx context.Context, cmd domain.SendMessageCommand, attachment io.Reader, filename string) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = e.clock()
	}

	if attachment != nil {
		ref, err := e.uploader.Upload(ctx, filename, attachment, "chat")
		if err != nil {
			return err
		}
		cmd.AttachmentRef = ref
	}

	if err := e.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidSend, err)
	}

	optimistic := domain.Message{
		ID:            e.nextOptimisticID(),
		Room:          cmd.Room,
		SenderID:      cmd.SenderID,
		Type:          cmd.Type,
		Content:       cmd.Content,
		AttachmentRef: cmd.AttachmentRef,
		SentAt:        cmd.CreatedAt,
		ReplyTo:       cmd.ReplyTo,
	}
	e.applyIncrement(cmd.Room, []projection.Entry{{
		Message:    optimistic,
		Origin:     projection.OriginLocal,
		ReceivedAt: cmd.CreatedAt,
	}}, "local")

	if e.push.Connected() {
		if err := e.push.PublishMessage(ctx, cmd); err == nil {
			return nil
		}
		e.log.Warn("Push send failed, falling back to REST", "room", cmd.Room)
	}
	if err := e.service.PostMessage(ctx, cmd); err != nil {
		// The optimistic entry stays and expires if no copy ever arrives.
		return err
	}
	return nil
}

// SendTyping forwards the user's own typing signal over the live channel.
// Typing only flows over push; with the channel down it is dropped.
func (e *Engine) SendTyping(ctx context.Context, room domain.RoomID, isTyping bool) {
	evt := domain.TypingEvent{Room: room, UserID: e.userID, IsTyping: isTyping}
	if err := e.push.PublishTyping(ctx, evt); err != nil {
		e.log.Debug("Typing signal dropped", "room", room, "error", err)
	}
}

// RefreshRoom refetches the open room's latest page and reconciles it.
// Poll and room-activity triggers land here; failures are swallowed.
func (e *Engine) RefreshRoom(ctx context.Context, room domain.RoomID) {
	if err := e.fetchPage(ctx, room, pollPageSize, "poll"); err != nil {
		e.metrics.PollFailures.WithLabelValues("room_messages").Inc()
		e.log.Debug("Room refresh failed, next tick retries", "room", room, "error", err)
	}
}

// SyncRoomList fetches the room summaries, surfaces activity changes and
// returns the open room's id when its summary moved, so the caller can
// refetch messages. Nothing is refetched when nothing changed.
func (e *Engine) SyncRoomList(ctx context.Context) (domain.RoomID, bool) {
	summaries, err := e.service.ListRooms(ctx, 0, firstPageSize)
	if err != nil {
		e.metrics.PollFailures.WithLabelValues("room_list").Inc()
		e.log.Debug("Room list poll failed, next tick retries", "error", err)
		return 0, false
	}

	e.mu.Lock()
	open := e.openRoom
	var openChanged bool
	var changed []domain.RoomSummary
	for _, s := range summaries {
		if cached, seen := e.summaries[s.ID]; !seen || s.ActivityChangedSince(cached) {
			changed = append(changed, s)
			if s.ID == open && seen {
				openChanged = true
			}
		}
		e.summaries[s.ID] = s
	}
	e.mu.Unlock()

	for _, s := range changed {
		e.emit(event.RoomActivity{Room: s.ID, Summary: s})
	}
	return open, openChanged && open != 0
}

// Prune runs the periodic expiry pass over every open room.
func (e *Engine) Prune() {
	e.mu.Lock()
	states := make(map[domain.RoomID]*roomState, len(e.rooms))
	for id, rs := range e.rooms {
		states[id] = rs
	}
	e.mu.Unlock()

	for id, rs := range states {
		now := e.clock()
		rs.mu.Lock()
		change := e.reconciler.Ingest(rs.timeline, nil, now)
		snapshot := rs.timeline.Messages()
		rs.mu.Unlock()

		if change.Empty() {
			continue
		}
		e.metrics.OptimisticExpired.Add(float64(len(change.Removed)))
		e.emit(event.TimelineUpdated{Room: id, Messages: snapshot, Change: change, At: now})
	}
}

// TypingPeers exposes the currently typing peers of a room.
func (e *Engine) TypingPeers(room domain.RoomID) []string {
	return e.typing.Active(room, e.clock())
}

func (e *Engine) fetchPage(ctx context.Context, room domain.RoomID, size int, source string) error {
	msgs, err := e.service.ListMessages(ctx, room, 0, size)
	if err != nil {
		return err
	}
	// Pages arrive newest-first; the timeline wants oldest-first.
	reverse(msgs)

	now := e.clock()
	rs := e.state(room)
	if rs == nil {
		return apperrors.ErrRoomNotOpen
	}
	rs.mu.Lock()
	change := e.reconciler.Reconcile(rs.timeline, toEntries(msgs, projection.OriginREST, now), now)
	snapshot := rs.timeline.Messages()
	rs.mu.Unlock()

	e.metrics.Reconciliations.WithLabelValues(source).Inc()
	e.metrics.MessagesAdded.Add(float64(len(change.Added)))
	if source == "open" || !change.Empty() {
		e.emit(event.TimelineUpdated{Room: room, Messages: snapshot, Change: change, At: now})
	}
	return nil
}

func (e *Engine) onPushMessage(msg domain.Message) {
	e.applyIncrement(msg.Room, []projection.Entry{{
		Message:    msg,
		Origin:     projection.OriginPush,
		ReceivedAt: e.clock(),
	}}, "push")

	e.mu.Lock()
	view := e.view
	open := e.openRoom
	e.mu.Unlock()

	if cmd, ok := e.tracker.OnIncoming(msg, readstate.View{OpenRoom: open, NearBottom: view.NearBottom}); ok {
		e.dispatchMarkRead(cmd)
	}

	if e.notifier != nil {
		fired := e.notifier.Offer(msg, notify.Context{
			ChatSurfaceOpen: view.SurfaceOpen,
			PageVisible:     view.PageVisible,
			OpenRoom:        open,
			PermissionOK:    view.NotificationOK,
		})
		if fired {
			e.metrics.Notifications.Inc()
			e.emit(event.Notification{Room: msg.Room, Message: msg})
		}
	}
}

func (e *Engine) onTyping(evt domain.TypingEvent) {
	now := e.clock()
	if !e.typing.OnEvent(evt, now) {
		return
	}
	e.emit(event.TypingChanged{Room: evt.Room, Users: e.typing.Active(evt.Room, now)})
}

// applyIncrement merges an incremental batch into a room under its lock.
func (e *Engine) applyIncrement(room domain.RoomID, entries []projection.Entry, source string) {
	rs := e.state(room)
	if rs == nil {
		e.log.Debug("Dropping increment for unselected room", "room", room, "source", source)
		return
	}

	now := e.clock()
	rs.mu.Lock()
	change := e.reconciler.Ingest(rs.timeline, entries, now)
	snapshot := rs.timeline.Messages()
	rs.mu.Unlock()

	e.metrics.Reconciliations.WithLabelValues(source).Inc()
	e.metrics.MessagesAdded.Add(float64(len(change.Added)))
	if !change.Empty() {
		e.emit(event.TimelineUpdated{Room: room, Messages: snapshot, Change: change, At: now})
	}
}

func (e *Engine) dispatchMarkRead(cmd domain.MarkReadCommand) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), markReadBudget)
		defer cancel()
		if err := e.service.MarkRead(ctx, cmd); err != nil {
			e.log.Warn("Mark-as-read failed", "room", cmd.Room, "message", cmd.MessageID, "error", err)
		}
	}()
}

func (e *Engine) state(room domain.RoomID) *roomState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[room]
}

func (e *Engine) nextOptimisticID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.optimist--
	return e.optimist
}

func (e *Engine) emit(evt event.DomainEvent) {
	select {
	case e.events <- evt:
	default:
		e.log.Warn("Event channel full, dropping event", "room", evt.RoomID())
	}
}

func toEntries(msgs []domain.Message, origin projection.Origin, receivedAt time.Time) []projection.Entry {
	entries := make([]projection.Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, projection.Entry{Message: m, Origin: origin, ReceivedAt: receivedAt})
	}
	return entries
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
