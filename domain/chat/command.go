package chat

import (
	"time"
)

type Command interface {
	Conversation() ConversationID
}

// PostMessageCommand asks the backend to store a message authored by UserID.
type PostMessageCommand struct {
	MessageID         MessageID
	ConversationID    ConversationID
	UserID            string
	SenderDisplayName string
	Content           string
	CreatedAt         time.Time
}

func (p PostMessageCommand) Conversation() ConversationID {
	return p.ConversationID
}

func (p PostMessageCommand) ToMessage() Message {
	return Message{
		ID:                p.MessageID,
		ConversationID:    p.ConversationID,
		SenderID:          p.UserID,
		SenderDisplayName: p.SenderDisplayName,
		Content:           p.Content,
		CreatedAt:         p.CreatedAt,
	}
}

type GetMessageCommand struct {
	ConversationID ConversationID
}

func (p GetMessageCommand) Conversation() ConversationID {
	return p.ConversationID
}
