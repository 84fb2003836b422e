package chat

import "strings"

const roomPrefix = "conversation:"

// RoomID is the pub/sub scope of one conversation.
type RoomID string

// RoomFor derives the room of a conversation.
// Every client loading the same conversation subscribes to the same room.
func RoomFor(conversationID ConversationID) RoomID {
	return RoomID(roomPrefix + string(conversationID))
}

// Conversation returns the conversation a room was derived from.
func (r RoomID) Conversation() (ConversationID, bool) {
	id, ok := strings.CutPrefix(string(r), roomPrefix)
	if !ok || id == "" {
		return "", false
	}
	return ConversationID(id), true
}
