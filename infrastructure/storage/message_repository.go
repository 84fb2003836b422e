package storage

import (
	"adoption-chat/domain/chat"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	MessagePrefix = "msg:"
	indexPrefix   = "idx:msg:"
)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

// NewMessageRepository stores messages in badger.
// A nil limitMessages returns the whole conversation.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// StoreMessage persists a message under "msg:{conversation}:{timestamp_padded}:{id}".
// The 19-digit padding keeps keys in chronological order and the id breaks ties.
// A secondary "idx:msg:{id}" key points to the message key and makes the insert idempotent.
func (m *MessageRepository) StoreMessage(ctx context.Context, message chat.Message) (chat.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, false, err
	}
	key := messageKey(message)
	value, err := encodeMessage(message)
	if err != nil {
		return chat.Message{}, false, err
	}

	var existing []byte
	err = m.db.Update(func(txn *badger.Txn) error {
		idx, err := txn.Get(indexKey(message.ID))
		switch {
		case err == nil:
			target, err := idx.ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(target)
			if err != nil {
				return err
			}
			existing, err = item.ValueCopy(nil)
			return err
		case errors.Is(err, badger.ErrKeyNotFound):
			if err := txn.Set(key, value); err != nil {
				return err
			}
			return txn.Set(indexKey(message.ID), key)
		default:
			return err
		}
	})
	if err != nil {
		return chat.Message{}, false, err
	}
	if existing != nil {
		m.log.Debug("Message already stored", "message_id", message.ID)
		stored, err := DecodeMessage(existing)
		return stored, false, err
	}
	return message, true, nil
}

// GetMessages scans the conversation prefix backwards from the newest key,
// stops at limitMessages and returns the page oldest first.
func (m *MessageRepository) GetMessages(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var values [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Past the newest possible key: msg:{conversation}:9999999999999999999
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999;")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(values) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(values))
	for _, value := range lo.Reverse(values) {
		message, err := DecodeMessage(value)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func conversationPrefix(conversationID chat.ConversationID) []byte {
	return []byte(MessagePrefix + url.QueryEscape(string(conversationID)) + ":")
}

func messageKey(message chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.ConversationID),
		max(message.CreatedAt.UnixNano(), 0),
		message.ID,
	))
}

func indexKey(id chat.MessageID) []byte {
	return []byte(indexPrefix + string(id))
}

func encodeMessage(message chat.Message) ([]byte, error) {
	value, err := structpb.NewStruct(map[string]any{
		"id":                  string(message.ID),
		"conversation_id":     string(message.ConversationID),
		"sender_id":           message.SenderID,
		"sender_display_name": message.SenderDisplayName,
		"content":             message.Content,
		"created_at":          message.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(value)
}

// DecodeMessage reads a value written by StoreMessage.
func DecodeMessage(value []byte) (chat.Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(value, &s); err != nil {
		return chat.Message{}, err
	}
	fields := s.GetFields()
	text := func(name string) string { return fields[name].GetStringValue() }
	return chat.Message{
		ID:                chat.MessageID(text("id")),
		ConversationID:    chat.ConversationID(text("conversation_id")),
		SenderID:          text("sender_id"),
		SenderDisplayName: text("sender_display_name"),
		Content:           text("content"),
		CreatedAt:         chat.ParseTimestamp(text("created_at")),
	}, nil
}
