package realtime

import (
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// broadcastServer echoes every frame to all connections of the same path.
type broadcastServer struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	conns    map[string][]*websocket.Conn
	auth     []string
}

func (s *broadcastServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[r.URL.Path] = append(s.conns[r.URL.Path], conn)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.mu.Unlock()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		for _, c := range s.conns[r.URL.Path] {
			_ = c.WriteMessage(websocket.TextMessage, frame)
		}
		s.mu.Unlock()
	}
}

func (s *broadcastServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conns := range s.conns {
		for _, c := range conns {
			_ = c.Close()
		}
	}
}

func startBroadcastServer(t *testing.T) (*broadcastServer, string) {
	server := &broadcastServer{conns: make(map[string][]*websocket.Conn)}
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)
	return server, httpServer.URL
}

func TestWSTransport_PublishAndReceiveOwnMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server, url := startBroadcastServer(t)
	transport := NewWSTransport(log, url, "token-123")
	received := make(chan chat.Message, 1)
	transport.OnMessage(func(m chat.Message) { received <- m })

	req.NoError(transport.Connect(ctx, chat.RoomFor("c1")))
	req.Equal(chat.StateConnected, transport.State())

	m := chat.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", Content: "hi",
		CreatedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	req.NoError(transport.Send(ctx, m))

	select {
	case got := <-received:
		req.Equal(m, got)
	case <-time.After(2 * time.Second):
		req.Fail("own message was not delivered back")
	}
	server.mu.Lock()
	req.Equal([]string{"Bearer token-123"}, server.auth)
	server.mu.Unlock()
	req.NoError(transport.Close())
	req.NoError(transport.Close())
}

func TestWSTransport_ConnectionLossIsAStateChange(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	server, url := startBroadcastServer(t)
	transport := NewWSTransport(log, url, "")
	states := make(chan chat.ConnectionState, 4)
	transport.OnStateChange(func(s chat.ConnectionState) { states <- s })
	req.NoError(transport.Connect(ctx, chat.RoomFor("c1")))

	// When the server drops the connection
	server.closeAll()

	// Then the transport reports it and refuses to send
	req.Eventually(func() bool { return transport.State() == chat.StateDisconnected }, 2*time.Second, 10*time.Millisecond)
	err := transport.Send(ctx, chat.Message{ID: "m1"})
	req.ErrorIs(err, errors.ErrSendWhileDisconnected)
}

func TestWSTransport_DialFailure(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	// A server that never upgrades the connection
	httpServer := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(httpServer.Close)
	transport := NewWSTransport(log, httpServer.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := transport.Connect(ctx, chat.RoomFor("c1"))

	var connectionErr *errors.ConnectionError
	req.ErrorAs(err, &connectionErr)
	req.Equal(chat.StateDisconnected, transport.State())
}
