// Package relay is the server side of the realtime channel: one websocket per
// participant and room, every valid frame broadcast to the whole room.
// It stores nothing and replays nothing.
package relay

import (
	"adoption-chat/auth"
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/domain/event"
	"adoption-chat/errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// RoomVar is the route variable holding the escaped room id.
const RoomVar = "room"

const defaultWriteTimeout = 10 * time.Second

type Relay struct {
	log          *slog.Logger
	registry     contract.IRegistry
	events       chan<- event.DomainEvent
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
}

// NewRelay publishes inbound frames on events, where the fanout worker picks them up.
// bufferSize bounds the frames queued per connection.
func NewRelay(log *slog.Logger, registry contract.IRegistry, events chan<- event.DomainEvent,
	bufferSize int, writeTimeout time.Duration) *Relay {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Relay{
		log:      log,
		registry: registry,
		events:   events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		bufferSize:   max(bufferSize, 1),
		writeTimeout: writeTimeout,
	}
}

// ServeHTTP expects an authenticated request routed with a {room} variable.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	room, conversationID, err := roomFromRequest(req)
	if err != nil {
		http.Error(w, err.Error(), errors.HTTPStatus(err))
		return
	}
	author, ok := auth.AuthorFromContext(req.Context())
	if !ok {
		http.Error(w, errors.ErrUnauthenticated.Error(), errors.HTTPStatus(errors.ErrUnauthenticated))
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("Upgrade error", "room", room, "error", err)
		return
	}

	participantID := uuid.NewString()
	log := r.log.With("room", room, "participant_id", participantID, "user_id", author.ID)
	sink := newConnectionSink(log, conn, r.bufferSize, r.writeTimeout)
	r.registry.Subscribe(participantID, room, sink)
	go sink.writePump()
	log.Info("Participant joined")

	defer func() {
		r.registry.Unsubscribe(participantID, room)
		sink.close()
		log.Info("Participant left")
	}()

	for {
		var payload chat.Payload
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Read error", "error", err)
			}
			return
		}
		if err := accept(&payload, conversationID, author); err != nil {
			log.Warn("Frame rejected", "message_id", payload.ID, "error", err)
			continue
		}
		select {
		case r.events <- event.MessagePublished{Room: room, ParticipantID: participantID, Payload: payload}:
		case <-sink.done:
			return
		case <-req.Context().Done():
			return
		}
	}
}

func roomFromRequest(req *http.Request) (chat.RoomID, chat.ConversationID, error) {
	raw, err := url.PathUnescape(mux.Vars(req)[RoomVar])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errors.ErrUnknownConversation, err)
	}
	room := chat.RoomID(raw)
	conversationID, ok := room.Conversation()
	if !ok {
		return "", "", fmt.Errorf("%w: room %q", errors.ErrUnknownConversation, raw)
	}
	return room, conversationID, nil
}

// accept scopes the frame to the room's conversation and rejects frames
// signed with someone else's user id.
func accept(payload *chat.Payload, conversationID chat.ConversationID, author chat.Author) error {
	if payload.ConversationID == "" {
		payload.ConversationID = string(conversationID)
	}
	if payload.ConversationID != string(conversationID) {
		return errors.ErrUnknownConversation
	}
	if payload.SenderID != "" && payload.SenderID != author.ID {
		return errors.ErrForbiddenSender
	}
	return payload.ToMessage().Validate()
}
