package realtime

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

var _ contract.Transport = (*LocalTransport)(nil)

// Broker is an in-process pub/sub keyed by room.
type Broker struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[chat.RoomID]map[*LocalTransport]struct{}
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{log: log, rooms: make(map[chat.RoomID]map[*LocalTransport]struct{})}
}

// NewTransport returns an unconnected client of the broker.
func (b *Broker) NewTransport() *LocalTransport {
	return &LocalTransport{broker: b}
}

// Subscribers returns how many transports currently listen to room.
func (b *Broker) Subscribers(room chat.RoomID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Drop simulates a connection loss: t stops receiving and becomes disconnected.
func (b *Broker) Drop(t *LocalTransport) {
	b.unsubscribe(t)
	t.setState(chat.StateDisconnected)
}

func (b *Broker) subscribe(room chat.RoomID, t *LocalTransport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[room]; !ok {
		b.rooms[room] = make(map[*LocalTransport]struct{})
	}
	b.rooms[room][t] = struct{}{}
}

func (b *Broker) unsubscribe(t *LocalTransport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for room, members := range b.rooms {
		delete(members, t)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

// publish delivers outside the lock so handlers may publish in turn.
func (b *Broker) publish(room chat.RoomID, message chat.Message) {
	b.mu.RLock()
	members := lo.Keys(b.rooms[room])
	b.mu.RUnlock()

	b.log.Debug("Broadcasting message", "room", room, "message_id", message.ID, "subscribers", len(members))
	for _, t := range members {
		t.deliver(message)
	}
}

// LocalTransport is a Broker client bound to at most one room.
type LocalTransport struct {
	signals
	broker *Broker
	connMu sync.Mutex
	room   chat.RoomID
	closed bool
}

func (t *LocalTransport) Connect(ctx context.Context, room chat.RoomID) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.closed {
		return &errors.ConnectionError{Room: string(room), Err: errors.ErrTransportClosed}
	}
	if t.State() == chat.StateConnected {
		if t.room == room {
			return nil
		}
		return &errors.ConnectionError{Room: string(room), Err: errors.ErrAlreadyConnected}
	}

	t.setState(chat.StateConnecting)
	if err := ctx.Err(); err != nil {
		t.setState(chat.StateDisconnected)
		return &errors.ConnectionError{Room: string(room), Err: err}
	}
	t.room = room
	t.broker.subscribe(room, t)
	t.setState(chat.StateConnected)
	return nil
}

func (t *LocalTransport) Send(_ context.Context, message chat.Message) error {
	t.connMu.Lock()
	room := t.room
	t.connMu.Unlock()
	if t.State() != chat.StateConnected {
		return errors.ErrSendWhileDisconnected
	}
	t.broker.publish(room, message)
	return nil
}

// Close is idempotent and safe on a transport that never connected.
func (t *LocalTransport) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.broker.unsubscribe(t)
	t.setState(chat.StateClosed)
	return nil
}
