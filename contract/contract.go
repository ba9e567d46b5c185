//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"io"
	"reflect"

	"rentchat/domain"
	"rentchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinksForRoom(roomID domain.RoomID) []EventSink
	AllSinks() []EventSink
	Subscribe(surfaceID string, roomID domain.RoomID, sink EventSink)
	Unsubscribe(surfaceID string, roomID domain.RoomID)
}

// RoomService is the REST backend. Message pages come back in
// reverse-chronological order; callers reverse before reconciling.
type RoomService interface {
	ListRooms(ctx context.Context, page, size int) ([]domain.RoomSummary, error)
	ListMessages(ctx context.Context, room domain.RoomID, page, size int) ([]domain.Message, error)
	PostMessage(ctx context.Context, cmd domain.SendMessageCommand) error
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error
}

// PushTransport is the live channel. Handshake and retry internals belong
// to the implementation; the engine only consumes callbacks and a
// connection state signal.
type PushTransport interface {
	Subscribe(room domain.RoomID, onMessage func(domain.Message), onTyping func(domain.TypingEvent)) (unsubscribe func(), err error)
	PublishMessage(ctx context.Context, cmd domain.SendMessageCommand) error
	PublishTyping(ctx context.Context, evt domain.TypingEvent) error
	Connected() bool
	OnStateChange(fn func(connected bool))
}

// Uploader stores an attachment before its message is sent. The send is
// deferred until Upload resolves; a failed upload aborts the send.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, module string) (fileRef string, err error)
}

// TimelineCache persists reconciled snapshots so a reopened room renders
// instantly before the first page lands.
type TimelineCache interface {
	Store(room domain.RoomID, msgs []domain.Message) error
	Load(room domain.RoomID) ([]domain.Message, error)
}
