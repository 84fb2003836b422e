package realtime

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var _ contract.Transport = (*WSTransport)(nil)

const defaultWriteTimeout = 5 * time.Second

// RoomPath is the relay endpoint of a room.
func RoomPath(room chat.RoomID) string {
	return fmt.Sprintf("/rooms/%s/ws", url.PathEscape(string(room)))
}

// WSTransport talks to the relay over one websocket per room.
// Frames are JSON chat.Payload values in both directions.
type WSTransport struct {
	signals
	log          *slog.Logger
	baseURL      string
	token        string
	dialer       *websocket.Dialer
	writeTimeout time.Duration

	mu     sync.Mutex // guards conn and serializes writes
	conn   *websocket.Conn
	room   chat.RoomID
	closed bool
}

type WSOption func(*WSTransport)

func WithDialer(dialer *websocket.Dialer) WSOption {
	return func(t *WSTransport) { t.dialer = dialer }
}

func WithWriteTimeout(timeout time.Duration) WSOption {
	return func(t *WSTransport) { t.writeTimeout = timeout }
}

// NewWSTransport targets a relay base URL such as ws://localhost:8080.
// http and https schemes are accepted and rewritten.
func NewWSTransport(log *slog.Logger, baseURL, token string, opts ...WSOption) *WSTransport {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.Replace(baseURL, "http://", "ws://", 1)
	baseURL = strings.Replace(baseURL, "https://", "wss://", 1)
	t := &WSTransport{
		log:          log,
		baseURL:      baseURL,
		token:        token,
		dialer:       websocket.DefaultDialer,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *WSTransport) Connect(ctx context.Context, room chat.RoomID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return &errors.ConnectionError{Room: string(room), Err: errors.ErrTransportClosed}
	}
	if t.conn != nil {
		if t.room == room {
			return nil
		}
		return &errors.ConnectionError{Room: string(room), Err: errors.ErrAlreadyConnected}
	}

	t.setState(chat.StateConnecting)
	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}
	conn, resp, err := t.dialer.DialContext(ctx, t.baseURL+RoomPath(room), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.setState(chat.StateDisconnected)
		return &errors.ConnectionError{Room: string(room), Err: err}
	}

	t.conn = conn
	t.room = room
	t.setState(chat.StateConnected)
	t.log.Info("Connected to room", "room", room)
	go t.readLoop(conn, room)
	return nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn, room chat.RoomID) {
	for {
		var payload chat.Payload
		if err := conn.ReadJSON(&payload); err != nil {
			t.mu.Lock()
			closed := t.closed
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			_ = conn.Close()
			if closed {
				return
			}
			t.log.Warn("Room connection lost", "room", room, "error", err)
			t.setState(chat.StateDisconnected)
			return
		}
		t.deliver(payload.ToMessage())
	}
}

func (t *WSTransport) Send(ctx context.Context, message chat.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.State() != chat.StateConnected {
		return errors.ErrSendWhileDisconnected
	}

	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(chat.ToPayload(message)); err != nil {
		return fmt.Errorf("publishing message %s: %w", message.ID, err)
	}
	return nil
}

// Close is idempotent and safe on a transport that never connected.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	t.setState(chat.StateClosed)
	return nil
}
