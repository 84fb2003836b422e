//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"adoption-chat/domain/chat"
	"context"
)

// IMessageRepository is the durable message log of every conversation.
// Implementations insert by id only if absent, so storing twice is harmless.
type IMessageRepository interface {
	// StoreMessage returns the stored row and whether this call created it.
	StoreMessage(ctx context.Context, message chat.Message) (chat.Message, bool, error)
	// GetMessages returns the most recent messages of a conversation, oldest first.
	GetMessages(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error)
}
