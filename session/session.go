// Package session runs the chat of one conversation: it loads history, listens
// to the room, keeps the reconciled sequence and persists the local user's messages.
package session

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/domain/event"
	"adoption-chat/errors"
	"adoption-chat/history"
	"adoption-chat/persistence"
	"adoption-chat/reconcile"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 64

// Session owns the state of one conversation for one client.
//
// Every mutation (history loaded, one message delivered) is applied by a single
// event loop goroutine, one event at a time. Transport callbacks only enqueue.
type Session struct {
	log            *slog.Logger
	conversationID chat.ConversationID
	room           chat.RoomID
	transport      contract.Transport
	store          *history.Store
	gateway        *persistence.Gateway
	identity       contract.IdentityProvider
	reconciler     *reconcile.Reconciler
	now            func() time.Time

	events    chan event.DomainEvent
	done      chan struct{}
	loopDone  chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// identityKnown is only touched by the event loop.
	identityKnown bool

	mu         sync.RWMutex
	historyErr error
	connErr    error
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithBufferSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.events = make(chan event.DomainEvent, size)
		}
	}
}

func New(log *slog.Logger, conversationID chat.ConversationID, transport contract.Transport,
	store *history.Store, gateway *persistence.Gateway, identity contract.IdentityProvider, opts ...Option) *Session {
	s := &Session{
		log:            log.With("conversation_id", conversationID),
		conversationID: conversationID,
		room:           chat.RoomFor(conversationID),
		transport:      transport,
		store:          store,
		gateway:        gateway,
		identity:       identity,
		now:            time.Now,
		events:         make(chan event.DomainEvent, defaultBufferSize),
		done:           make(chan struct{}),
		loopDone:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = reconcile.NewReconciler(reconcile.WithClock(s.now))
	return s
}

// Open subscribes to the room and loads the history.
// The returned error joins a *errors.ConnectionError and a *errors.HistoryLoadError
// when either step failed; live messages keep flowing when only history failed.
func (s *Session) Open(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.transport.OnMessage(s.onMessage)
		s.transport.OnStateChange(s.onStateChange)
		go s.run()
	})

	connErr := s.transport.Connect(ctx, s.room)
	messages, historyErr := s.store.Load(ctx, s.conversationID)
	if historyErr == nil {
		s.enqueue(event.HistoryLoaded{Room: s.room, Messages: messages})
	}

	s.mu.Lock()
	s.connErr, s.historyErr = connErr, historyErr
	s.mu.Unlock()
	return stderrors.Join(connErr, historyErr)
}

// Reload fetches the history again after a HistoryLoadError.
func (s *Session) Reload(ctx context.Context) error {
	messages, err := s.store.Load(ctx, s.conversationID)
	s.mu.Lock()
	s.historyErr = err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.enqueue(event.HistoryLoaded{Room: s.room, Messages: messages})
	return nil
}

// Reconnect subscribes again after a connection loss. Missed messages are not replayed.
func (s *Session) Reconnect(ctx context.Context) error {
	err := s.transport.Connect(ctx, s.room)
	s.mu.Lock()
	s.connErr = err
	s.mu.Unlock()
	return err
}

// Send publishes a new message authored by the local user.
// The message becomes visible when the room delivers it back, like any other.
func (s *Session) Send(ctx context.Context, content string) (chat.Message, error) {
	if s.transport.State() != chat.StateConnected {
		return chat.Message{}, errors.ErrSendWhileDisconnected
	}
	author, known := s.identity.Current()
	if !known {
		return chat.Message{}, errors.ErrUnauthenticated
	}
	message, err := chat.NewMessage(s.conversationID, content, author, s.now())
	if err != nil {
		return chat.Message{}, err
	}
	if err := s.transport.Send(ctx, message); err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// Messages returns the current reconciled sequence.
func (s *Session) Messages() []chat.Message {
	return s.reconciler.Sequence()
}

// Subscribe calls fn with every new sequence, starting with the current one.
func (s *Session) Subscribe(fn func([]chat.Message)) (cancel func()) {
	return s.reconciler.Subscribe(fn)
}

func (s *Session) State() chat.ConnectionState {
	return s.transport.State()
}

// Err returns the blocking errors still active for the conversation.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var connErr error
	if s.transport.State() != chat.StateConnected {
		connErr = s.connErr
	}
	return stderrors.Join(connErr, s.historyErr)
}

// Close unsubscribes from the room and discards the reconciled state.
// Persistence writes already started are left to finish on their own.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()
		close(s.done)
		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.loopDone
		}
		s.reconciler.Reset()
		s.log.Debug("Session closed")
	})
	return err
}

func (s *Session) onMessage(message chat.Message) {
	s.enqueue(event.MessageDelivered{Room: s.room, Message: message})
}

func (s *Session) onStateChange(state chat.ConnectionState) {
	s.enqueue(event.ConnectionChanged{Room: s.room, State: state})
}

func (s *Session) enqueue(evt event.DomainEvent) {
	select {
	case s.events <- evt:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.events:
			s.apply(evt)
		}
	}
}

func (s *Session) apply(evt event.DomainEvent) {
	defer s.catchUpIdentity()
	switch e := evt.(type) {
	case event.HistoryLoaded:
		s.gateway.MarkPersisted(e.Messages)
		s.reconciler.SeedHistory(e.Messages)
		s.gateway.Sweep(s.reconciler.Live())
	case event.MessageDelivered:
		message := e.Message
		if message.ConversationID == "" {
			message.ConversationID = s.conversationID
		}
		if message.ConversationID != s.conversationID {
			s.log.Warn("Message of another conversation ignored", "message_id", message.ID, "other", message.ConversationID)
			return
		}
		if message.ID == "" {
			s.log.Warn("Message without id ignored")
			return
		}
		s.reconciler.Merge(message)
		s.gateway.Consider(message)
	case event.ConnectionChanged:
		if e.State == chat.StateDisconnected {
			s.log.Warn("Room connection lost, missed messages will not be replayed", "room", e.Room)
			return
		}
		s.log.Info("Room connection changed", "room", e.Room, "state", e.State.String())
	default:
		s.log.Debug("Event not handled", "type", fmt.Sprintf("%T", evt))
	}
}

// catchUpIdentity sweeps the live set once, after the first event applied with
// the local identity known. Until then the gateway has recorded nothing.
func (s *Session) catchUpIdentity() {
	if s.identityKnown {
		return
	}
	if _, known := s.identity.Current(); !known {
		return
	}
	s.identityKnown = true
	s.gateway.Sweep(s.reconciler.Live())
}
