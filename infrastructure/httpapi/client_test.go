package httpapi

import (
	"adoption-chat/api"
	"adoption-chat/auth"
	"adoption-chat/domain/chat"
	"adoption-chat/infrastructure/sqlstore"
	"adoption-chat/services"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var alice = chat.Author{ID: "alice", DisplayName: "Alice"}

func startAPI(t *testing.T) (string, auth.Signer) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := sqlstore.InitDB(context.Background(), sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	signer := auth.NewSigner("client-test-secret", time.Hour)
	chatService := services.NewChatService(log, sqlstore.NewMessageRepository(db, log, nil), 0)
	server := httptest.NewServer(api.NewRouter(log, chatService, signer, nil))
	t.Cleanup(server.Close)
	return server.URL, signer
}

func TestClient_SaveThenFetch(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL, signer := startAPI(t)
	token, err := signer.GenerateToken(alice)
	req.NoError(err)
	client := NewClient(logs.GetLoggerFromLevel(slog.LevelDebug), baseURL, token)

	// Given an empty conversation
	empty, err := client.FetchMessages(ctx, "rex/2")
	req.NoError(err)
	req.Empty(empty)

	// When alice saves a message
	m, err := chat.NewMessage("rex/2", "Rex loves long walks", alice, time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC))
	req.NoError(err)
	stored, err := client.SaveMessage(ctx, m)
	req.NoError(err)
	req.Equal(m, stored)

	// Then the history returns it unchanged
	history, err := client.FetchMessages(ctx, "rex/2")
	req.NoError(err)
	req.Equal([]chat.Message{m}, history)
}

func TestClient_StatusError(t *testing.T) {
	req := require.New(t)
	baseURL, signer := startAPI(t)
	token, err := signer.GenerateToken(chat.Author{ID: "bob"})
	req.NoError(err)
	client := NewClient(logs.GetLoggerFromLevel(slog.LevelDebug), baseURL, token)

	// When bob tries to save a message signed by alice
	m, err := chat.NewMessage("rex", "not mine", alice, time.Now())
	req.NoError(err)
	_, err = client.SaveMessage(context.Background(), m)

	// Then the row-level check answers forbidden
	var statusErr *StatusError
	req.True(stderrors.As(err, &statusErr))
	req.Equal(http.StatusForbidden, statusErr.StatusCode)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(logs.GetLoggerFromLevel(slog.LevelDebug), server.URL, "")

	_, err := client.FetchMessages(context.Background(), "rex")

	require.Error(t, err)
}
