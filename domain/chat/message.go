// Package chat contains core concepts of the conversation chat.
// This file defines Message values and the rules for creating them.
// Messages are immutable once created.
package chat

import (
	"adoption-chat/errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// MessageID is generated by the sender and is the only deduplication key.
type MessageID string

type ConversationID string

// Message represents an immutable chat message.
// An empty SenderID means the message has no author (system or legacy).
type Message struct {
	ID                MessageID      `validate:"required"`
	ConversationID    ConversationID `validate:"required"`
	SenderID          string
	SenderDisplayName string
	Content           string `validate:"required"`
	CreatedAt         time.Time
}

// Author identifies who writes a message.
type Author struct {
	ID          string
	DisplayName string
}

// NewMessageID returns a random 128-bit identifier.
// Uniqueness across clients is assumed, nothing on the server enforces it.
func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

// NewMessage builds a locally-authored message ready to be published.
func NewMessage(conversationID ConversationID, content string, author Author, at time.Time) (Message, error) {
	message := Message{
		ID:                NewMessageID(),
		ConversationID:    conversationID,
		SenderID:          author.ID,
		SenderDisplayName: author.DisplayName,
		Content:           strings.TrimSpace(content),
		CreatedAt:         at.UTC(),
	}
	if message.Content == "" {
		return Message{}, errors.ErrEmptyContent
	}
	if err := message.Validate(); err != nil {
		return Message{}, err
	}
	return message, nil
}

func (m Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return nil
}

// HasSender reports whether the message carries an author identity.
func (m Message) HasSender() bool {
	return m.SenderID != ""
}

// AuthoredBy reports whether userID wrote the message.
func (m Message) AuthoredBy(userID string) bool {
	return m.HasSender() && m.SenderID == userID
}
