// Package persistence commits messages written by the local user to durable storage.
package persistence

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSaveTimeout = 10 * time.Second

// Gateway saves each self-authored message at most once per session.
//
// A message is eligible when it has a sender, the sender is the local user and
// its id was never submitted before. The id is recorded before the write
// starts, so a redelivery during an in-flight write is ignored. Writes are
// fire-and-forget: a failure is logged and reported to OnFailure, never
// retried, and the message stays visible.
type Gateway struct {
	mu          sync.Mutex
	log         *slog.Logger
	identity    contract.IdentityProvider
	api         contract.PersistAPI
	processed   map[chat.MessageID]struct{}
	saveTimeout time.Duration
	onFailure   func(*errors.PersistenceError)
	inflight    sync.WaitGroup
}

type Option func(*Gateway)

func WithSaveTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.saveTimeout = timeout
		}
	}
}

// WithFailureHook is called from the writing goroutine for every failed save.
func WithFailureHook(fn func(*errors.PersistenceError)) Option {
	return func(g *Gateway) { g.onFailure = fn }
}

func NewGateway(log *slog.Logger, identity contract.IdentityProvider, api contract.PersistAPI, opts ...Option) *Gateway {
	g := &Gateway{
		log:         log,
		identity:    identity,
		api:         api,
		processed:   make(map[chat.MessageID]struct{}),
		saveTimeout: defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Consider starts the save of message if it is eligible and reports whether it did.
// While the local identity is unknown nothing is eligible and nothing is recorded.
func (g *Gateway) Consider(message chat.Message) bool {
	author, known := g.identity.Current()
	if !known || author.ID == "" {
		return false
	}
	if !message.AuthoredBy(author.ID) {
		return false
	}

	g.mu.Lock()
	if _, done := g.processed[message.ID]; done {
		g.mu.Unlock()
		return false
	}
	g.processed[message.ID] = struct{}{}
	g.mu.Unlock()

	g.inflight.Add(1)
	go g.save(message)
	return true
}

// Sweep considers every message and returns how many saves were started.
// It is safe to call repeatedly over the same set.
func (g *Gateway) Sweep(messages []chat.Message) int {
	started := 0
	for _, m := range messages {
		if g.Consider(m) {
			started++
		}
	}
	return started
}

// MarkPersisted records messages that are already durable, such as history.
func (g *Gateway) MarkPersisted(messages []chat.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range messages {
		g.processed[m.ID] = struct{}{}
	}
}

func (g *Gateway) Processed(id chat.MessageID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.processed[id]
	return ok
}

// Wait blocks until every started save has finished.
// Session teardown does not call it.
func (g *Gateway) Wait() {
	g.inflight.Wait()
}

// save runs detached from any caller context: leaving the conversation
// must not cancel a write already issued.
func (g *Gateway) save(message chat.Message) {
	defer g.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), g.saveTimeout)
	defer cancel()

	if _, err := g.api.SaveMessage(ctx, message); err != nil {
		failure := &errors.PersistenceError{MessageID: string(message.ID), Err: err}
		g.log.Error("Message not persisted",
			"message_id", message.ID,
			"conversation_id", message.ConversationID,
			"error", err)
		if g.onFailure != nil {
			g.onFailure(failure)
		}
		return
	}
	g.log.Debug("Message persisted", "message_id", message.ID)
}
