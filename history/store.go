// Package history loads the durable messages of a conversation once.
package history

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Store fetches a conversation's history and keeps the last result as a
// read-only snapshot.
type Store struct {
	mu       sync.RWMutex
	log      *slog.Logger
	api      contract.HistoryAPI
	snapshot []chat.Message
}

func NewStore(log *slog.Logger, api contract.HistoryAPI) *Store {
	return &Store{log: log, api: api}
}

// Load returns the history ordered by CreatedAt, oldest first.
// An empty conversation is an empty result, a failure is a *errors.HistoryLoadError.
func (s *Store) Load(ctx context.Context, conversationID chat.ConversationID) ([]chat.Message, error) {
	messages, err := s.api.FetchMessages(ctx, conversationID)
	if err != nil {
		s.log.Warn("History not loaded", "conversation_id", conversationID, "error", err)
		return nil, &errors.HistoryLoadError{ConversationID: string(conversationID), Err: err}
	}

	ordered := append(make([]chat.Message, 0, len(messages)), messages...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	s.mu.Lock()
	s.snapshot = ordered
	s.mu.Unlock()

	s.log.Debug("History loaded", "conversation_id", conversationID, "count", len(ordered))
	return s.Snapshot(), nil
}

// Snapshot returns a copy of the last loaded history.
func (s *Store) Snapshot() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]chat.Message, 0, len(s.snapshot)), s.snapshot...)
}
