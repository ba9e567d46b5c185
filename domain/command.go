package domain

import (
	"time"
)

type Command interface {
	RoomID() RoomID
}

// SendMessageCommand is a user-initiated send. Content rules are validated
// before an optimistic entry is created or anything touches the network.
type SendMessageCommand struct {
	Room          RoomID      `validate:"required"`
	SenderID      string      `validate:"required"`
	Type          MessageType `validate:"required,oneof=TEXT IMAGE FILE"`
	Content       string      `validate:"required_if=Type TEXT,max=4000"`
	AttachmentRef string      `validate:"required_unless=Type TEXT"`
	ReplyTo       *int64
	CreatedAt     time.Time
}

func (c SendMessageCommand) RoomID() RoomID {
	return c.Room
}

// MarkReadCommand asks the backend to record that the current user has
// read one message. The tracker guarantees a given message id is emitted
// at most once per tracker instance.
type MarkReadCommand struct {
	Room      RoomID
	MessageID int64
}

func (c MarkReadCommand) RoomID() RoomID {
	return c.Room
}
