// Package realtime delivers messages to every participant subscribed to a room.
// Nothing is persisted or replayed: a message broadcast while a client is
// disconnected is lost for that client.
package realtime

import (
	"adoption-chat/domain/chat"
	"slices"
	"sync"
)

// signals holds the handlers and the connection state shared by transports.
type signals struct {
	mu        sync.RWMutex
	state     chat.ConnectionState
	onMessage []func(chat.Message)
	onState   []func(chat.ConnectionState)
}

func (s *signals) OnMessage(handler func(chat.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = append(s.onMessage, handler)
}

func (s *signals) OnStateChange(handler func(chat.ConnectionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = append(s.onState, handler)
}

func (s *signals) State() chat.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState notifies handlers only on an actual transition.
func (s *signals) setState(state chat.ConnectionState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	handlers := slices.Clone(s.onState)
	s.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

func (s *signals) deliver(message chat.Message) {
	s.mu.RLock()
	handlers := slices.Clone(s.onMessage)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(message)
	}
}
