package persistence

import (
	"adoption-chat/auth"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"adoption-chat/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = chat.Author{ID: "alice", DisplayName: "Alice"}
	bob   = chat.Author{ID: "bob", DisplayName: "Bob"}
)

func messageFrom(author chat.Author, id string) chat.Message {
	return chat.Message{
		ID:                chat.MessageID(id),
		ConversationID:    "lost-cat-7",
		SenderID:          author.ID,
		SenderDisplayName: author.DisplayName,
		Content:           "I think I saw her near the park",
		CreatedAt:         time.Now().UTC(),
	}
}

func TestGateway_SavesSelfAuthoredMessageOnce(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockPersistAPI(ctrl)
	gateway := NewGateway(log, auth.StaticIdentity(alice), api)
	m := messageFrom(alice, "m1")

	// Given the save is slow, the replay arrives while it is in flight
	release := make(chan struct{})
	api.EXPECT().
		SaveMessage(gomock.Any(), m).
		DoAndReturn(func(ctx context.Context, message chat.Message) (chat.Message, error) {
			<-release
			return message, nil
		}).
		Times(1)

	// When the message is delivered twice
	req.True(gateway.Consider(m))
	req.False(gateway.Consider(m))
	close(release)
	gateway.Wait()

	// And once more after the write completed
	req.False(gateway.Consider(m))
	req.True(gateway.Processed(m.ID))
}

func TestGateway_NeverSavesOtherSenders(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockPersistAPI(ctrl)
	gateway := NewGateway(log, auth.StaticIdentity(alice), api)

	// Given no save is expected
	api.EXPECT().SaveMessage(gomock.Any(), gomock.Any()).Times(0)

	// When messages of bob and a message without sender arrive
	system := messageFrom(chat.Author{}, "system-1")
	started := gateway.Sweep([]chat.Message{messageFrom(bob, "b1"), system})
	gateway.Wait()

	// Then nothing is persisted
	req.Zero(started)
	req.False(gateway.Processed("b1"))
}

func TestGateway_UnknownIdentityDefersEligibility(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockPersistAPI(ctrl)
	identity := auth.NewDeferredIdentity()
	gateway := NewGateway(log, identity, api)
	m := messageFrom(alice, "early")

	// Given the identity is not known yet
	req.False(gateway.Consider(m))
	req.False(gateway.Processed(m.ID))

	// When it becomes known and the live set is swept again
	api.EXPECT().SaveMessage(gomock.Any(), m).Return(m, nil).Times(1)
	identity.Set(alice)
	req.Equal(1, gateway.Sweep([]chat.Message{m}))
	req.Zero(gateway.Sweep([]chat.Message{m}))
	gateway.Wait()
}

func TestGateway_FailureIsReportedNotRetried(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockPersistAPI(ctrl)

	var mu sync.Mutex
	var failures []*errors.PersistenceError
	gateway := NewGateway(log, auth.StaticIdentity(alice), api,
		WithFailureHook(func(err *errors.PersistenceError) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, err)
		}))
	m := messageFrom(alice, "m4")
	cause := fmt.Errorf("network unreachable")

	// Given the backend fails
	api.EXPECT().SaveMessage(gomock.Any(), m).Return(chat.Message{}, cause).Times(1)

	// When the message is considered, then redelivered
	req.True(gateway.Consider(m))
	gateway.Wait()
	req.False(gateway.Consider(m))
	gateway.Wait()

	// Then the failure was reported once and never retried
	mu.Lock()
	defer mu.Unlock()
	req.Len(failures, 1)
	req.ErrorIs(failures[0], cause)
	req.Equal("m4", failures[0].MessageID)
}

func TestGateway_HistoryIsNeverSavedAgain(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockPersistAPI(ctrl)
	gateway := NewGateway(log, auth.StaticIdentity(alice), api)
	m := messageFrom(alice, "persisted-earlier")

	api.EXPECT().SaveMessage(gomock.Any(), gomock.Any()).Times(0)

	// Given the message came back with history
	gateway.MarkPersisted([]chat.Message{m})

	// When a reconnect replays it live
	req.False(gateway.Consider(m))
	gateway.Wait()
}

func TestGateway_SaveUsesItsOwnTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockPersistAPI(ctrl)
	gateway := NewGateway(log, auth.StaticIdentity(alice), api, WithSaveTimeout(20*time.Millisecond))
	m := messageFrom(alice, "slow")

	api.EXPECT().
		SaveMessage(gomock.Any(), m).
		DoAndReturn(func(ctx context.Context, message chat.Message) (chat.Message, error) {
			<-ctx.Done()
			return chat.Message{}, ctx.Err()
		}).
		Times(1)

	req.True(gateway.Consider(m))
	gateway.Wait()
}
