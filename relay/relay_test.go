package relay

import (
	"adoption-chat/auth"
	"adoption-chat/domain/chat"
	"adoption-chat/domain/event"
	"adoption-chat/errors"
	"adoption-chat/realtime"
	"adoption-chat/runtime"
	"adoption-chat/runtime/workers"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var (
	alice = chat.Author{ID: "alice", DisplayName: "Alice"}
	bob   = chat.Author{ID: "bob", DisplayName: "Bob"}
)

type relayServer struct {
	url      string
	signer   auth.Signer
	registry *runtime.Registry
}

func startRelay(t *testing.T) *relayServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	events := make(chan event.DomainEvent, 16)
	signer := auth.NewSigner("relay-test-secret", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	supervisor := workers.NewSupervisor(log, 0)
	go supervisor.Add(workers.NewEventFanout(log, registry, events, time.Second)).Run(ctx)

	router := mux.NewRouter().UseEncodedPath()
	router.Handle("/rooms/{room}/ws", auth.Middleware(signer)(NewRelay(log, registry, events, 8, time.Second)))
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &relayServer{url: server.URL, signer: signer, registry: registry}
}

func (s *relayServer) client(t *testing.T, author chat.Author) (*realtime.WSTransport, chan chat.Message) {
	t.Helper()
	token, err := s.signer.GenerateToken(author)
	require.NoError(t, err)
	transport := realtime.NewWSTransport(logs.GetLoggerFromLevel(slog.LevelDebug), s.url, token)
	received := make(chan chat.Message, 8)
	transport.OnMessage(func(m chat.Message) { received <- m })
	t.Cleanup(func() { _ = transport.Close() })
	return transport, received
}

func receive(t *testing.T, received chan chat.Message) chat.Message {
	t.Helper()
	select {
	case m := <-received:
		return m
	case <-time.After(2 * time.Second):
		require.Fail(t, "no message received")
		return chat.Message{}
	}
}

func waitMembers(t *testing.T, s *relayServer, room chat.RoomID, count int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.registry.GetSinksForRoom(room)) == count
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRelay_BroadcastsToRoomIncludingSender(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)
	room := chat.RoomFor("kitten-3")
	aliceTransport, aliceInbox := server.client(t, alice)
	bobTransport, bobInbox := server.client(t, bob)

	// Given both participants joined the room
	req.NoError(aliceTransport.Connect(context.Background(), room))
	req.NoError(bobTransport.Connect(context.Background(), room))
	waitMembers(t, server, room, 2)

	// When alice publishes
	m, err := chat.NewMessage("kitten-3", "Still looking for a home?", alice, time.Now())
	req.NoError(err)
	req.NoError(aliceTransport.Send(context.Background(), m))

	// Then both receive it, alice included
	req.Equal(m.ID, receive(t, aliceInbox).ID)
	fromBob := receive(t, bobInbox)
	req.Equal(m.ID, fromBob.ID)
	req.Equal("alice", fromBob.SenderID)
	req.True(m.CreatedAt.Equal(fromBob.CreatedAt))
}

func TestRelay_RoomsAreIsolated(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)
	aliceTransport, aliceInbox := server.client(t, alice)
	bobTransport, bobInbox := server.client(t, bob)

	req.NoError(aliceTransport.Connect(context.Background(), chat.RoomFor("c1")))
	req.NoError(bobTransport.Connect(context.Background(), chat.RoomFor("c2")))
	waitMembers(t, server, chat.RoomFor("c1"), 1)
	waitMembers(t, server, chat.RoomFor("c2"), 1)

	m, err := chat.NewMessage("c1", "only for c1", alice, time.Now())
	req.NoError(err)
	req.NoError(aliceTransport.Send(context.Background(), m))

	req.Equal(m.ID, receive(t, aliceInbox).ID)
	select {
	case leaked := <-bobInbox:
		req.Failf("cross-room delivery", "bob received %s", leaked.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelay_RejectsForgedSender(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)
	room := chat.RoomFor("c1")
	bobTransport, bobInbox := server.client(t, bob)
	req.NoError(bobTransport.Connect(context.Background(), room))
	waitMembers(t, server, room, 1)

	// Given bob signs a frame with alice's id
	forged, err := chat.NewMessage("c1", "I am alice", alice, time.Now())
	req.NoError(err)
	req.NoError(bobTransport.Send(context.Background(), forged))

	// And then a legitimate one
	own, err := chat.NewMessage("c1", "I am bob", bob, time.Now())
	req.NoError(err)
	req.NoError(bobTransport.Send(context.Background(), own))

	// Then only the legitimate frame is broadcast
	req.Equal(own.ID, receive(t, bobInbox).ID)
}

func TestRelay_LeavingUnsubscribes(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)
	room := chat.RoomFor("c1")
	transport, _ := server.client(t, alice)
	req.NoError(transport.Connect(context.Background(), room))
	waitMembers(t, server, room, 1)

	req.NoError(transport.Close())

	waitMembers(t, server, room, 0)
	req.Zero(server.registry.Rooms())
}

func TestRelay_RequiresToken(t *testing.T) {
	req := require.New(t)
	server := startRelay(t)

	resp, err := http.Get(server.url + realtime.RoomPath(chat.RoomFor("c1")))

	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAccept(t *testing.T) {
	req := require.New(t)
	valid := chat.Payload{ID: "m1", SenderID: "alice", Content: "hi"}

	req.NoError(accept(&valid, "c1", alice))
	req.Equal("c1", valid.ConversationID)

	other := chat.Payload{ID: "m1", ConversationID: "c2", Content: "hi"}
	req.ErrorIs(accept(&other, "c1", alice), errors.ErrUnknownConversation)

	empty := chat.Payload{ID: "m1", Content: ""}
	req.ErrorIs(accept(&empty, "c1", alice), errors.ErrInvalidMessage)

	anonymous := chat.Payload{ID: "m1", Content: "system"}
	req.NoError(accept(&anonymous, "c1", alice))
}
