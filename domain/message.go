// Package domain contains core concepts of the chat synchronization engine.
// This file defines Message records and identity rules.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

type RoomID int64

// MessageType distinguishes how a message body is rendered and uploaded.
type MessageType string

const (
	TextMessage  MessageType = "TEXT"
	ImageMessage MessageType = "IMAGE"
	FileMessage  MessageType = "FILE"
)

// Message is one record of a room timeline as exchanged with the backend.
//
// ID is signed on purpose: a negative id marks a locally-generated
// optimistic message that has not been confirmed by the server yet,
// a non-negative id is server-assigned and authoritative. Within a
// timeline, ID is unique; SentAt is a sort and matching signal only,
// never identity.
type Message struct {
	ID            int64       `json:"id"`
	Room          RoomID      `json:"roomId"`
	SenderID      string      `json:"senderId"`
	Type          MessageType `json:"messageType"`
	Content       string      `json:"content"`
	AttachmentRef string      `json:"attachmentRef,omitempty"`
	SentAt        time.Time   `json:"sentAt"`
	EditedAt      *time.Time  `json:"editedAt,omitempty"`
	IsEdited      bool        `json:"isEdited"`
	IsDeleted     bool        `json:"isDeleted"`
	IsReadByMe    bool        `json:"isReadByMe"`
	ReplyTo       *int64      `json:"replyToMessageId,omitempty"`
}

// IsOptimistic reports whether the message is still owned by the sending
// client and awaits its authoritative server copy.
func (m Message) IsOptimistic() bool {
	return m.ID < 0
}
