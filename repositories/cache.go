package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"rentchat/domain"
)

const snapshotTTL = 7 * 24 * time.Hour

// TimelineCache persists the last reconciled snapshot per room in
// BadgerDB so a reopened room renders instantly while the first page is
// in flight. Snapshots are advisory: the reconciler treats restored
// entries as cache-origin and prunes them once fresher pages land.
type TimelineCache struct {
	db    *badger.DB
	log   *slog.Logger
	limit int
}

func NewTimelineCache(db *badger.DB, log *slog.Logger, limit int) *TimelineCache {
	return &TimelineCache{db: db, log: log, limit: limit}
}

// key is "tl:{room_id}"; one snapshot per room, newest wins.
func key(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("tl:%d", room))
}

// Store overwrites the room's snapshot with the newest messages. The
// optimistic entries never reach disk; they are meaningless to a future
// session.
func (c *TimelineCache) Store(room domain.RoomID, msgs []domain.Message) error {
	confirmed := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsOptimistic() {
			confirmed = append(confirmed, m)
		}
	}
	if len(confirmed) > c.limit {
		confirmed = confirmed[len(confirmed)-c.limit:]
	}

	raw, err := json.Marshal(confirmed)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(room), raw).WithTTL(snapshotTTL)
		return txn.SetEntry(entry)
	})
}

// Load returns the room's snapshot, or nil when none was stored.
func (c *TimelineCache) Load(room domain.RoomID) ([]domain.Message, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(room))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []domain.Message
	if err = json.Unmarshal(raw, &msgs); err != nil {
		c.log.Warn("Corrupt timeline snapshot dropped", "room", room, "error", err)
		return nil, nil
	}
	return msgs, nil
}

// Drop removes a room's snapshot.
func (c *TimelineCache) Drop(room domain.RoomID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(room))
	})
}
