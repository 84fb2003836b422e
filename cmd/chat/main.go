package main

import (
	"adoption-chat/auth"
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"adoption-chat/history"
	"adoption-chat/infrastructure/httpapi"
	"adoption-chat/persistence"
	"adoption-chat/presentation"
	"adoption-chat/realtime"
	"adoption-chat/session"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL      string        `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	Token          string        `envconfig:"CHAT_TOKEN" required:"true"`
	ConversationID string        `envconfig:"CHAT_CONVERSATION_ID" required:"true"`
	Colours        bool          `envconfig:"CHAT_COLOURS" default:"true"`
	PersistTimeout time.Duration `envconfig:"CHAT_PERSIST_TIMEOUT" default:"10s"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run opens one conversation, prints its reconciled sequence and sends every stdin line.
// "/reload" fetches the history again, "/reconnect" rejoins the room, "/quit" leaves.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	identity, err := auth.IdentityFromToken(config.Token)
	if err != nil {
		return exitConfig, fmt.Errorf("reading CHAT_TOKEN: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)
	conversationID := chat.ConversationID(config.ConversationID)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire the session.
	renderer := presentation.NewRenderer(os.Stdout, identity, config.Colours)
	transport := realtime.NewWSTransport(log, config.ServerURL, config.Token)
	transport.OnStateChange(renderer.Status)
	client := httpapi.NewClient(log, config.ServerURL, config.Token)
	gateway := persistence.NewGateway(log, identity, client,
		persistence.WithSaveTimeout(config.PersistTimeout),
		persistence.WithFailureHook(func(err *errors.PersistenceError) { renderer.Error(err) }),
	)
	chatSession := session.New(log, conversationID, transport, history.NewStore(log, client), gateway, identity)
	defer func() {
		log.Info("Closing session...")
		_ = leave(os.Stdout, chatSession, gateway, identity)
	}()

	if err := chatSession.Open(ctx); err != nil {
		renderer.Error(err)
	}
	cancel := chatSession.Subscribe(renderer.Render)
	defer cancel()

	// 4. Input loop.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			switch strings.TrimSpace(line) {
			case "":
			case "/quit":
				return exitOK, nil
			case "/reload":
				if err := chatSession.Reload(ctx); err != nil {
					renderer.Error(err)
				}
			case "/reconnect":
				if err := chatSession.Reconnect(ctx); err != nil {
					renderer.Error(err)
				}
			default:
				if _, err := chatSession.Send(ctx, line); err != nil {
					renderer.Error(err)
				}
			}
		}
	}
}

// leave closes the session and prints the conversation as it was on screen.
// The sequence is read before Close, which discards it.
func leave(out io.Writer, chatSession *session.Session, gateway *persistence.Gateway, identity contract.IdentityProvider) error {
	messages := chatSession.Messages()
	err := chatSession.Close()
	gateway.Wait()
	presentation.Transcript(out, messages, identity)
	return err
}
