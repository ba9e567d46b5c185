package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"rentchat/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTimelineCache_RoundTrip(t *testing.T) {
	req := require.New(t)
	cache := NewTimelineCache(openTestDB(t), slog.Default(), 100)
	sentAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	msgs := []domain.Message{
		{ID: 1, Room: 7, SenderID: "tenant-12", Type: domain.TextMessage, Content: "hello", SentAt: sentAt},
		{ID: 2, Room: 7, SenderID: "landlord-3", Type: domain.TextMessage, Content: "hi", SentAt: sentAt.Add(time.Second)},
	}
	req.NoError(cache.Store(7, msgs))

	loaded, err := cache.Load(7)
	req.NoError(err)
	req.Len(loaded, 2)
	req.Equal(int64(1), loaded[0].ID)
	req.True(loaded[0].SentAt.Equal(sentAt))
}

func TestTimelineCache_MissingRoom(t *testing.T) {
	req := require.New(t)
	cache := NewTimelineCache(openTestDB(t), slog.Default(), 100)

	loaded, err := cache.Load(99)
	req.NoError(err)
	req.Nil(loaded)
}

func TestTimelineCache_SkipsOptimisticEntries(t *testing.T) {
	req := require.New(t)
	cache := NewTimelineCache(openTestDB(t), slog.Default(), 100)

	msgs := []domain.Message{
		{ID: -1000, Room: 7, SenderID: "tenant-12", Type: domain.TextMessage, Content: "pending", SentAt: time.Now()},
		{ID: 5, Room: 7, SenderID: "tenant-12", Type: domain.TextMessage, Content: "confirmed", SentAt: time.Now()},
	}
	req.NoError(cache.Store(7, msgs))

	loaded, err := cache.Load(7)
	req.NoError(err)
	req.Len(loaded, 1)
	req.Equal(int64(5), loaded[0].ID)
}

func TestTimelineCache_HonorsLimit(t *testing.T) {
	req := require.New(t)
	cache := NewTimelineCache(openTestDB(t), slog.Default(), 2)
	sentAt := time.Now()

	msgs := []domain.Message{
		{ID: 1, Room: 7, SentAt: sentAt},
		{ID: 2, Room: 7, SentAt: sentAt.Add(time.Second)},
		{ID: 3, Room: 7, SentAt: sentAt.Add(2 * time.Second)},
	}
	req.NoError(cache.Store(7, msgs))

	loaded, err := cache.Load(7)
	req.NoError(err)
	req.Len(loaded, 2)
	// The newest messages survive trimming.
	req.Equal(int64(2), loaded[0].ID)
	req.Equal(int64(3), loaded[1].ID)
}
