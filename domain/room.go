package domain

import "time"

// RoomSummary is the lightweight per-room activity signal returned by the
// room list endpoint. It is only used to detect that new activity exists
// server-side and drive refetch decisions, never merged into a timeline.
type RoomSummary struct {
	ID            RoomID    `json:"id"`
	Name          string    `json:"name"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}

// ActivityChangedSince reports whether the summary shows server-side
// activity the cached snapshot has not seen yet.
func (s RoomSummary) ActivityChangedSince(cached RoomSummary) bool {
	return !s.LastMessageAt.Equal(cached.LastMessageAt) || s.UnreadCount != cached.UnreadCount
}
