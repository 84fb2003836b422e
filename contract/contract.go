//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"adoption-chat/domain/chat"
	"adoption-chat/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
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
	GetSinksForRoom(roomID chat.RoomID) []EventSink
	Subscribe(participantID string, roomID chat.RoomID, sink EventSink)
	Unsubscribe(participantID string, roomID chat.RoomID)
}

// Transport is a publish/subscribe channel scoped to one room.
// Messages published by the local client are delivered back to it.
type Transport interface {
	Connect(ctx context.Context, room chat.RoomID) error
	Send(ctx context.Context, message chat.Message) error
	OnMessage(handler func(chat.Message))
	OnStateChange(handler func(chat.ConnectionState))
	State() chat.ConnectionState
	Close() error
}

// HistoryAPI returns the persisted messages of a conversation, oldest first.
type HistoryAPI interface {
	FetchMessages(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error)
}

// PersistAPI stores one message. Calling it twice for the same message is the caller's problem.
type PersistAPI interface {
	SaveMessage(ctx context.Context, message chat.Message) (chat.Message, error)
}

// IdentityProvider exposes the local user, which may not be known yet.
type IdentityProvider interface {
	Current() (chat.Author, bool)
}
