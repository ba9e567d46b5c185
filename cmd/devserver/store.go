package main

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentchat/domain"
)

// Store is the in-memory backend state. It exists for local end-to-end
// runs of the client stack and makes no durability promises.
type Store struct {
	mu     sync.Mutex
	log    *slog.Logger
	rooms  map[domain.RoomID]*roomRecord
	reads  map[string]map[int64]struct{} // user -> read message ids
	files  map[string]string             // fileId -> original filename
	nextID int64
}

type roomRecord struct {
	id       domain.RoomID
	name     string
	messages []domain.Message // oldest first
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:   log,
		rooms: make(map[domain.RoomID]*roomRecord),
		reads: make(map[string]map[int64]struct{}),
		files: make(map[string]string),
	}
}

// Seed creates a couple of conversations so a freshly started server has
// something to render.
func (s *Store) Seed() {
	now := time.Now()
	s.CreateRoom(1, "Seaside flat - 12 Ocean Drive")
	s.CreateRoom(2, "Loft - 4 Mill Street")
	s.Append(1, "landlord-anna", domain.TextMessage, "Hi! The flat is available from July.", "", nil, now.Add(-2*time.Hour))
	s.Append(1, "landlord-anna", domain.TextMessage, "Viewings are possible this weekend.", "", nil, now.Add(-time.Hour))
	s.Append(2, "landlord-omar", domain.TextMessage, "Thanks for your interest in the loft.", "", nil, now.Add(-30*time.Minute))
	s.log.Info("Seeded demo rooms", "rooms", 2)
}

func (s *Store) CreateRoom(id domain.RoomID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		s.rooms[id] = &roomRecord{id: id, name: name}
	}
}

// Rooms lists summaries for one user, most recent activity first.
func (s *Store) Rooms(user string, page, size int) []domain.RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]domain.RoomSummary, 0, len(s.rooms))
	for _, room := range s.rooms {
		summary := domain.RoomSummary{ID: room.id, Name: room.name}
		for _, msg := range room.messages {
			summary.LastMessageAt = msg.SentAt
			if msg.SenderID != user && !s.isRead(user, msg.ID) {
				summary.UnreadCount++
			}
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return paginate(summaries, page, size)
}

// Messages returns one page of a room, newest first, with the read flag
// evaluated for the requesting user.
func (s *Store) Messages(user string, room domain.RoomID, page, size int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.rooms[room]
	if !ok {
		return nil, fmt.Errorf("room %d not found", room)
	}

	newest := make([]domain.Message, len(record.messages))
	for i, msg := range record.messages {
		msg.IsReadByMe = msg.SenderID == user || s.isRead(user, msg.ID)
		newest[len(record.messages)-1-i] = msg
	}
	return paginate(newest, page, size), nil
}

// Append stores a message with a fresh server id and returns the
// authoritative copy.
func (s *Store) Append(room domain.RoomID, sender string, msgType domain.MessageType,
	content, attachmentRef string, replyTo *int64, sentAt time.Time) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.rooms[room]
	if !ok {
		return domain.Message{}, fmt.Errorf("room %d not found", room)
	}

	s.nextID++
	msg := domain.Message{
		ID:            s.nextID,
		Room:          room,
		SenderID:      sender,
		Type:          msgType,
		Content:       content,
		AttachmentRef: attachmentRef,
		SentAt:        sentAt,
		ReplyTo:       replyTo,
	}
	record.messages = append(record.messages, msg)
	return msg, nil
}

func (s *Store) MarkRead(user string, room domain.RoomID, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.rooms[room]
	if !ok {
		return fmt.Errorf("room %d not found", room)
	}
	found := false
	for _, msg := range record.messages {
		if msg.ID == messageID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("message %d not in room %d", messageID, room)
	}

	if s.reads[user] == nil {
		s.reads[user] = make(map[int64]struct{})
	}
	s.reads[user][messageID] = struct{}{}
	return nil
}

// SaveFile records an upload and hands back its reference.
func (s *Store) SaveFile(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileID := uuid.NewString()
	s.files[fileID] = filename
	return fileID
}

func (s *Store) isRead(user string, messageID int64) bool {
	_, ok := s.reads[user][messageID]
	return ok
}

func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		return nil
	}
	start := page * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
