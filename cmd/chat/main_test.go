package main

import (
	"adoption-chat/auth"
	"adoption-chat/domain/chat"
	"adoption-chat/history"
	"adoption-chat/mocks"
	"adoption-chat/persistence"
	"adoption-chat/realtime"
	"adoption-chat/session"
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLeave_PrintsTranscriptOfTheClosedSession(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	historyAPI := mocks.NewMockHistoryAPI(ctrl)
	persistAPI := mocks.NewMockPersistAPI(ctrl)
	identity := auth.StaticIdentity(chat.Author{ID: "alice", DisplayName: "Alice"})
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Given a session showing two stored messages
	historyAPI.EXPECT().FetchMessages(gomock.Any(), chat.ConversationID("rex")).Return([]chat.Message{
		{ID: "h1", ConversationID: "rex", SenderID: "bob", SenderDisplayName: "Bob", Content: "message h1", CreatedAt: at},
		{ID: "h2", ConversationID: "rex", SenderID: "alice", Content: "message h2", CreatedAt: at.Add(time.Minute)},
	}, nil)
	gateway := persistence.NewGateway(log, identity, persistAPI)
	chatSession := session.New(log, "rex", realtime.NewBroker(log).NewTransport(),
		history.NewStore(log, historyAPI), gateway, identity)
	req.NoError(chatSession.Open(context.Background()))
	req.Eventually(func() bool { return len(chatSession.Messages()) == 2 }, time.Second, 5*time.Millisecond)

	// When the user leaves
	var out bytes.Buffer
	req.NoError(leave(&out, chatSession, gateway, identity))

	// Then the transcript still lists both messages although the session state is gone
	req.Contains(out.String(), "message h1")
	req.Contains(out.String(), "message h2")
	req.Contains(out.String(), "You")
	req.Empty(chatSession.Messages())
}
