// Package runtime keeps track of who listens to which room on the relay.
package runtime

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"sync"

	"github.com/samber/lo"
)

type Set map[string]struct{}

// Registry maps participants to their connection sink and rooms to participants.
// A participant is one websocket connection, so one user may appear several times.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink
	roomMembers map[chat.RoomID]Set
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[chat.RoomID]Set),
	}
}

// GetSinksForRoom resolves the members of a room into their sinks.
// Returns nil if nobody listens to the room.
func (r *Registry) GetSinksForRoom(roomID chat.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	return lo.FilterMap(lo.Keys(members), func(participantID string, _ int) (contract.EventSink, bool) {
		sink, exists := r.sessions[participantID]
		return sink, exists
	})
}

// Subscribe registers a participant's connection in a room, creating the room on the fly.
func (r *Registry) Subscribe(participantID string, roomID chat.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[participantID] = sink
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][participantID] = struct{}{}
}

// Unsubscribe removes the participant and drops the room once empty.
func (r *Registry) Unsubscribe(participantID string, roomID chat.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, participantID)
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, participantID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
}

// Rooms returns the number of rooms with at least one participant.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}
