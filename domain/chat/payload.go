package chat

import (
	"time"
)

// Payload is the JSON shape of a message on the realtime channel and the REST API.
type Payload struct {
	ID                string `json:"id"`
	ConversationID    string `json:"conversationId"`
	SenderID          string `json:"senderId,omitempty"`
	SenderDisplayName string `json:"senderDisplayName,omitempty"`
	Content           string `json:"content"`
	CreatedAt         string `json:"createdAt"`
}

func ToPayload(m Message) Payload {
	createdAt := ""
	if !m.CreatedAt.IsZero() {
		createdAt = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return Payload{
		ID:                string(m.ID),
		ConversationID:    string(m.ConversationID),
		SenderID:          m.SenderID,
		SenderDisplayName: m.SenderDisplayName,
		Content:           m.Content,
		CreatedAt:         createdAt,
	}
}

// ToMessage never fails on createdAt: a missing or malformed timestamp
// becomes the zero time and is resolved by the reader.
func (p Payload) ToMessage() Message {
	return Message{
		ID:                MessageID(p.ID),
		ConversationID:    ConversationID(p.ConversationID),
		SenderID:          p.SenderID,
		SenderDisplayName: p.SenderDisplayName,
		Content:           p.Content,
		CreatedAt:         ParseTimestamp(p.CreatedAt),
	}
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds.
func ParseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return at.UTC()
}
