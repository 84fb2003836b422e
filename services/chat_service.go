package services

import (
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"adoption-chat/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error)
}

// ChatService is the durable side of a conversation: it validates and stores
// messages and serves the history. Broadcasting is the relay's job.
type ChatService struct {
	log              *slog.Logger
	repository       storage.IMessageRepository
	maxContentLength int
	now              func() time.Time
}

func NewChatService(log *slog.Logger, repository storage.IMessageRepository, maxContentLength int) *ChatService {
	return &ChatService{log: log, repository: repository, maxContentLength: maxContentLength, now: time.Now}
}

// PostMessage stores the message once. Posting an id again returns the first version.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if err := checkConversation(cmd); err != nil {
		return chat.Message{}, err
	}
	message := cmd.ToMessage()
	message.Content = strings.TrimSpace(message.Content)
	if message.Content == "" {
		return chat.Message{}, errors.ErrEmptyContent
	}
	if s.maxContentLength > 0 && utf8.RuneCountInString(message.Content) > s.maxContentLength {
		return chat.Message{}, fmt.Errorf("%w: %d characters max", errors.ErrContentTooLong, s.maxContentLength)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now()
	}
	message.CreatedAt = message.CreatedAt.UTC()
	if err := message.Validate(); err != nil {
		return chat.Message{}, err
	}

	stored, created, err := s.repository.StoreMessage(ctx, message)
	if err != nil {
		return chat.Message{}, fmt.Errorf("storing message %s: %w", message.ID, err)
	}
	if created {
		s.log.Debug("Message stored", "message_id", stored.ID, "conversation_id", stored.ConversationID)
	}
	return stored, nil
}

func (s *ChatService) GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error) {
	if err := checkConversation(cmd); err != nil {
		return nil, err
	}
	return s.repository.GetMessages(ctx, cmd.ConversationID)
}

// FetchMessages lets a session read the history in process, without the REST API.
func (s *ChatService) FetchMessages(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error) {
	return s.GetMessages(ctx, chat.GetMessageCommand{ConversationID: conversationID})
}

// SaveMessage lets a session persist in process, without the REST API.
func (s *ChatService) SaveMessage(ctx context.Context, message chat.Message) (chat.Message, error) {
	return s.PostMessage(ctx, chat.PostMessageCommand{
		MessageID:         message.ID,
		ConversationID:    message.ConversationID,
		UserID:            message.SenderID,
		SenderDisplayName: message.SenderDisplayName,
		Content:           message.Content,
		CreatedAt:         message.CreatedAt,
	})
}

func checkConversation(cmd chat.Command) error {
	if cmd.Conversation() == "" {
		return errors.ErrUnknownConversation
	}
	return nil
}
