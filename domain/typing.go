package domain

import "time"

// TypingPeer is one peer currently typing in a room. A peer is typing iff
// present in the room's set and not expired. The sending side is responsible
// for emitting an explicit stop-typing event; ExpiresAt is a safety net for
// peers that vanish without one.
type TypingPeer struct {
	UserID    string
	ExpiresAt time.Time
}

// TypingEvent is the push-transport signal a peer emits when starting or
// stopping to type.
type TypingEvent struct {
	Room     RoomID `json:"roomId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}
