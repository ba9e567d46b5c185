package runtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rentchat/domain"
	"rentchat/domain/event"
	apperrors "rentchat/errors"
	"rentchat/mocks"
	"rentchat/observability"
)

const testRoom = domain.RoomID(42)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engineFixture struct {
	engine   *Engine
	service  *mocks.MockRoomService
	push     *mocks.MockPushTransport
	uploader *mocks.MockUploader
	clock    *fakeClock
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &engineFixture{
		service:  mocks.NewMockRoomService(ctrl),
		push:     mocks.NewMockPushTransport(ctrl),
		uploader: mocks.NewMockUploader(ctrl),
		clock:    newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.engine = NewEngine(
		slog.Default(), "me",
		f.service, f.push, f.uploader,
		observability.NewMetrics(), 64,
		WithClock(f.clock.Now),
	)
	return f
}

func (f *engineFixture) serverMsg(id int64, sender string, sentAt time.Time) domain.Message {
	return domain.Message{
		ID:       id,
		Room:     testRoom,
		SenderID: sender,
		Type:     domain.TextMessage,
		Content:  "hello",
		SentAt:   sentAt,
	}
}

// nextEvent pops the next engine event, failing the test when none arrives.
func nextEvent(t *testing.T, f *engineFixture) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-f.engine.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("no engine event arrived")
		return nil
	}
}

func requireNoEvent(t *testing.T, f *engineFixture) {
	t.Helper()
	select {
	case evt := <-f.engine.Events():
		t.Fatalf("unexpected event %T for room %d", evt, evt.RoomID())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_OpenRoom(t *testing.T) {
	t.Run("should render the first page oldest first", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		now := f.clock.Now()

		// The backend pages newest first.
		page := []domain.Message{
			f.serverMsg(3, "me", now),
			f.serverMsg(2, "me", now.Add(-time.Minute)),
			f.serverMsg(1, "me", now.Add(-2*time.Minute)),
		}
		f.push.EXPECT().Subscribe(testRoom, gomock.Any(), gomock.Any()).Return(func() {}, nil)
		f.service.EXPECT().ListMessages(gomock.Any(), testRoom, 0, firstPageSize).Return(page, nil)

		req.NoError(f.engine.OpenRoom(context.Background(), testRoom))
		req.Equal(testRoom, f.engine.OpenRoomID())

		updated, ok := nextEvent(t, f).(event.TimelineUpdated)
		req.True(ok)
		req.Equal(testRoom, updated.Room)
		req.Len(updated.Messages, 3)
		req.Equal(int64(1), updated.Messages[0].ID)
		req.Equal(int64(3), updated.Messages[2].ID)
	})

	t.Run("should surface a failed first fetch", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)

		f.push.EXPECT().Subscribe(testRoom, gomock.Any(), gomock.Any()).Return(func() {}, nil)
		f.service.EXPECT().
			ListMessages(gomock.Any(), testRoom, 0, firstPageSize).
			Return(nil, apperrors.ErrFetchFailed)

		err := f.engine.OpenRoom(context.Background(), testRoom)
		req.ErrorIs(err, apperrors.ErrFetchFailed)
	})

	t.Run("should mark unread messages once after loading", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		now := f.clock.Now()

		unread := f.serverMsg(9, "landlord", now)
		f.push.EXPECT().Subscribe(testRoom, gomock.Any(), gomock.Any()).Return(func() {}, nil)
		f.service.EXPECT().
			ListMessages(gomock.Any(), testRoom, 0, firstPageSize).
			Return([]domain.Message{unread}, nil)

		marked := make(chan domain.MarkReadCommand, 1)
		f.service.EXPECT().
			MarkRead(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd domain.MarkReadCommand) error {
				marked <- cmd
				return nil
			})

		req.NoError(f.engine.OpenRoom(context.Background(), testRoom))

		select {
		case cmd := <-marked:
			req.Equal(testRoom, cmd.Room)
			req.Equal(int64(9), cmd.MessageID)
		case <-time.After(time.Second):
			req.Fail("mark-as-read was never dispatched")
		}
	})

	t.Run("should unsubscribe the previous room when switching", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		other := domain.RoomID(7)

		unsubscribed := false
		f.push.EXPECT().
			Subscribe(testRoom, gomock.Any(), gomock.Any()).
			Return(func() { unsubscribed = true }, nil)
		f.push.EXPECT().Subscribe(other, gomock.Any(), gomock.Any()).Return(func() {}, nil)
		f.service.EXPECT().
			ListMessages(gomock.Any(), gomock.Any(), 0, firstPageSize).
			Return(nil, nil).
			Times(2)

		req.NoError(f.engine.OpenRoom(context.Background(), testRoom))
		req.NoError(f.engine.OpenRoom(context.Background(), other))

		req.True(unsubscribed)
		req.Equal(other, f.engine.OpenRoomID())
	})
}

func TestEngine_Send(t *testing.T) {
	openRoom := func(t *testing.T, f *engineFixture) func(domain.Message) {
		t.Helper()
		var onMessage func(domain.Message)
		f.push.EXPECT().
			Subscribe(testRoom, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ domain.RoomID, onMsg func(domain.Message), _ func(domain.TypingEvent)) (func(), error) {
				onMessage = onMsg
				return func() {}, nil
			})
		f.service.EXPECT().ListMessages(gomock.Any(), testRoom, 0, firstPageSize).Return(nil, nil)
		require.NoError(t, f.engine.OpenRoom(context.Background(), testRoom))
		// Empty open emits once.
		nextEvent(t, f)
		return onMessage
	}

	t.Run("should insert an optimistic message and publish over push", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		openRoom(t, f)

		f.push.EXPECT().Connected().Return(true)
		f.push.EXPECT().PublishMessage(gomock.Any(), gomock.Any()).Return(nil)

		cmd := domain.SendMessageCommand{
			Room: testRoom, SenderID: "me",
			Type: domain.TextMessage, Content: "is the flat still free?",
		}
		req.NoError(f.engine.Send(context.Background(), cmd, nil, ""))

		updated, ok := nextEvent(t, f).(event.TimelineUpdated)
		req.True(ok)
		req.Len(updated.Messages, 1)
		req.Negative(updated.Messages[0].ID)
		req.True(updated.Messages[0].IsOptimistic())
	})

	t.Run("should replace the optimistic copy when the server echo arrives", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		onMessage := openRoom(t, f)

		f.push.EXPECT().Connected().Return(true)
		f.push.EXPECT().PublishMessage(gomock.Any(), gomock.Any()).Return(nil)

		cmd := domain.SendMessageCommand{
			Room: testRoom, SenderID: "me",
			Type: domain.TextMessage, Content: "is the flat still free?",
		}
		req.NoError(f.engine.Send(context.Background(), cmd, nil, ""))
		optimistic := nextEvent(t, f).(event.TimelineUpdated).Messages[0]

		f.clock.Advance(time.Second)
		echo := domain.Message{
			ID: 100, Room: testRoom, SenderID: "me",
			Type: domain.TextMessage, Content: "is the flat still free?",
			SentAt: f.clock.Now(),
		}
		onMessage(echo)

		updated := nextEvent(t, f).(event.TimelineUpdated)
		req.Len(updated.Messages, 1)
		req.Equal(int64(100), updated.Messages[0].ID)
		req.Contains(updated.Change.Replaced, optimistic.ID)
	})

	t.Run("should fall back to REST when push is down", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		openRoom(t, f)

		f.push.EXPECT().Connected().Return(false)
		f.service.EXPECT().PostMessage(gomock.Any(), gomock.Any()).Return(nil)

		cmd := domain.SendMessageCommand{
			Room: testRoom, SenderID: "me",
			Type: domain.TextMessage, Content: "hello",
		}
		req.NoError(f.engine.Send(context.Background(), cmd, nil, ""))
		nextEvent(t, f)
	})

	t.Run("should reject an overlong text before anything is created", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		openRoom(t, f)

		cmd := domain.SendMessageCommand{
			Room: testRoom, SenderID: "me",
			Type: domain.TextMessage, Content: strings.Repeat("a", 4001),
		}
		err := f.engine.Send(context.Background(), cmd, nil, "")
		req.ErrorIs(err, apperrors.ErrInvalidSend)
		requireNoEvent(t, f)
	})

	t.Run("should abort the send when the upload fails", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		openRoom(t, f)

		f.uploader.EXPECT().
			Upload(gomock.Any(), "floorplan.pdf", gomock.Any(), "chat").
			Return("", apperrors.ErrUploadFailed)

		cmd := domain.SendMessageCommand{
			Room: testRoom, SenderID: "me", Type: domain.FileMessage,
		}
		err := f.engine.Send(context.Background(), cmd, strings.NewReader("%PDF"), "floorplan.pdf")
		req.ErrorIs(err, apperrors.ErrUploadFailed)
		requireNoEvent(t, f)
	})

	t.Run("should keep the optimistic copy when the send fails, then expire it", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		openRoom(t, f)

		f.push.EXPECT().Connected().Return(false)
		f.service.EXPECT().PostMessage(gomock.Any(), gomock.Any()).Return(apperrors.ErrSendFailed)

		cmd := domain.SendMessageCommand{
			Room: testRoom, SenderID: "me",
			Type: domain.TextMessage, Content: "hello",
		}
		err := f.engine.Send(context.Background(), cmd, nil, "")
		req.ErrorIs(err, apperrors.ErrSendFailed)

		updated := nextEvent(t, f).(event.TimelineUpdated)
		req.Len(updated.Messages, 1)
		optimisticID := updated.Messages[0].ID

		f.clock.Advance(16 * time.Second)
		f.engine.Prune()

		pruned := nextEvent(t, f).(event.TimelineUpdated)
		req.Empty(pruned.Messages)
		req.Contains(pruned.Change.Removed, optimisticID)
	})
}

func TestEngine_SyncRoomList(t *testing.T) {
	t.Run("should emit activity for new and changed rooms only", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		now := f.clock.Now()

		first := []domain.RoomSummary{
			{ID: 1, Name: "Seaside flat", LastMessageAt: now, UnreadCount: 0},
			{ID: 2, Name: "Loft", LastMessageAt: now, UnreadCount: 1},
		}
		f.service.EXPECT().ListRooms(gomock.Any(), 0, firstPageSize).Return(first, nil)

		_, changed := f.engine.SyncRoomList(context.Background())
		req.False(changed)
		req.Equal(domain.RoomID(1), nextEvent(t, f).(event.RoomActivity).Room)
		req.Equal(domain.RoomID(2), nextEvent(t, f).(event.RoomActivity).Room)

		// Same snapshot again: nothing moved, nothing emitted.
		f.service.EXPECT().ListRooms(gomock.Any(), 0, firstPageSize).Return(first, nil)
		_, changed = f.engine.SyncRoomList(context.Background())
		req.False(changed)
		requireNoEvent(t, f)

		second := []domain.RoomSummary{
			first[0],
			{ID: 2, Name: "Loft", LastMessageAt: now.Add(time.Minute), UnreadCount: 2},
		}
		f.service.EXPECT().ListRooms(gomock.Any(), 0, firstPageSize).Return(second, nil)
		_, changed = f.engine.SyncRoomList(context.Background())
		req.False(changed) // no room open
		activity := nextEvent(t, f).(event.RoomActivity)
		req.Equal(domain.RoomID(2), activity.Room)
		req.Equal(2, activity.Summary.UnreadCount)
	})

	t.Run("should report the open room when its summary moved", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		now := f.clock.Now()

		f.push.EXPECT().Subscribe(testRoom, gomock.Any(), gomock.Any()).Return(func() {}, nil)
		f.service.EXPECT().ListMessages(gomock.Any(), testRoom, 0, firstPageSize).Return(nil, nil)
		req.NoError(f.engine.OpenRoom(context.Background(), testRoom))
		nextEvent(t, f)

		stale := []domain.RoomSummary{{ID: testRoom, Name: "Loft", LastMessageAt: now}}
		f.service.EXPECT().ListRooms(gomock.Any(), 0, firstPageSize).Return(stale, nil)
		_, changed := f.engine.SyncRoomList(context.Background())
		req.False(changed)
		nextEvent(t, f)

		fresh := []domain.RoomSummary{{ID: testRoom, Name: "Loft", LastMessageAt: now.Add(time.Second)}}
		f.service.EXPECT().ListRooms(gomock.Any(), 0, firstPageSize).Return(fresh, nil)
		room, changed := f.engine.SyncRoomList(context.Background())
		req.True(changed)
		req.Equal(testRoom, room)
	})

	t.Run("should swallow a failed poll", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)

		f.service.EXPECT().
			ListRooms(gomock.Any(), 0, firstPageSize).
			Return(nil, apperrors.ErrFetchFailed)

		_, changed := f.engine.SyncRoomList(context.Background())
		req.False(changed)
		requireNoEvent(t, f)
	})
}

func TestEngine_Typing(t *testing.T) {
	openRoom := func(t *testing.T, f *engineFixture) func(domain.TypingEvent) {
		t.Helper()
		var onTyping func(domain.TypingEvent)
		f.push.EXPECT().
			Subscribe(testRoom, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ domain.RoomID, _ func(domain.Message), onTyp func(domain.TypingEvent)) (func(), error) {
				onTyping = onTyp
				return func() {}, nil
			})
		f.service.EXPECT().ListMessages(gomock.Any(), testRoom, 0, firstPageSize).Return(nil, nil)
		require.NoError(t, f.engine.OpenRoom(context.Background(), testRoom))
		nextEvent(t, f)
		return onTyping
	}

	t.Run("should aggregate peer typing into one event", func(t *testing.T) {
		req := require.New(t)
		f := newEngineFixture(t)
		onTyping := openRoom(t, f)

		onTyping(domain.TypingEvent{Room: testRoom, UserID: "landlord", IsTyping: true})
		evt := nextEvent(t, f).(event.TypingChanged)
		req.Equal([]string{"landlord"}, evt.Users)
		req.Equal([]string{"landlord"}, f.engine.TypingPeers(testRoom))

		onTyping(domain.TypingEvent{Room: testRoom, UserID: "landlord", IsTyping: false})
		evt = nextEvent(t, f).(event.TypingChanged)
		req.Empty(evt.Users)
	})

	t.Run("should ignore the user's own typing echo", func(t *testing.T) {
		f := newEngineFixture(t)
		onTyping := openRoom(t, f)

		onTyping(domain.TypingEvent{Room: testRoom, UserID: "me", IsTyping: true})
		requireNoEvent(t, f)
	})
}
