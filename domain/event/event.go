package event

import (
	"adoption-chat/domain/chat"
)

type DomainEvent interface {
	RoomID() chat.RoomID
}

// MessagePublished is a frame a participant sent to a room.
type MessagePublished struct {
	Room          chat.RoomID
	ParticipantID string
	Payload       chat.Payload
}

func (m MessagePublished) RoomID() chat.RoomID {
	return m.Room
}

// HistoryLoaded carries the durable history of the session's conversation.
type HistoryLoaded struct {
	Room     chat.RoomID
	Messages []chat.Message
}

func (h HistoryLoaded) RoomID() chat.RoomID {
	return h.Room
}

// MessageDelivered is one message received from the live channel.
type MessageDelivered struct {
	Room    chat.RoomID
	Message chat.Message
}

func (m MessageDelivered) RoomID() chat.RoomID {
	return m.Room
}

// ConnectionChanged reports a transition of the room subscription.
type ConnectionChanged struct {
	Room  chat.RoomID
	State chat.ConnectionState
}

func (c ConnectionChanged) RoomID() chat.RoomID {
	return c.Room
}
