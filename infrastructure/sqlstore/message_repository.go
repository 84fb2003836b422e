package sqlstore

import (
	"adoption-chat/domain/chat"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const columns = `id, conversation_id, sender_id, sender_display_name, content, created_at`

type MessageRepository struct {
	db            *sql.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *sql.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// StoreMessage inserts the message unless its id already exists,
// in which case the stored row is returned untouched.
func (r *MessageRepository) StoreMessage(ctx context.Context, message chat.Message) (chat.Message, bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		string(message.ID), string(message.ConversationID),
		nullable(message.SenderID), nullable(message.SenderDisplayName),
		message.Content, message.CreatedAt.UTC())
	if err != nil {
		return chat.Message{}, false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return chat.Message{}, false, err
	}
	if inserted == 1 {
		return message, true, nil
	}

	r.log.Debug("Message already stored", "message_id", message.ID)
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM messages WHERE id = $1`, string(message.ID))
	stored, err := scanMessage(row)
	return stored, false, err
}

// GetMessages returns the most recent page of a conversation, oldest first.
func (r *MessageRepository) GetMessages(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if r.limitMessages == nil {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+columns+` FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at ASC, id ASC`, string(conversationID))
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+columns+` FROM (
				SELECT `+columns+` FROM messages
				WHERE conversation_id = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			) AS recent
			ORDER BY created_at ASC, id ASC`, string(conversationID), *r.limitMessages)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages of %s: %w", conversationID, err)
	}
	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (chat.Message, error) {
	var (
		message                     chat.Message
		id, conversationID          string
		senderID, senderDisplayName sql.NullString
	)
	err := row.Scan(&id, &conversationID, &senderID, &senderDisplayName, &message.Content, &message.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	message.ID = chat.MessageID(id)
	message.ConversationID = chat.ConversationID(conversationID)
	message.SenderID = senderID.String
	message.SenderDisplayName = senderDisplayName.String
	message.CreatedAt = message.CreatedAt.UTC()
	return message, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
