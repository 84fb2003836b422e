package main

import (
	"adoption-chat/api"
	"adoption-chat/auth"
	"adoption-chat/domain/event"
	"adoption-chat/infrastructure/sqlstore"
	"adoption-chat/infrastructure/storage"
	"adoption-chat/internal"
	"adoption-chat/relay"
	"adoption-chat/runtime"
	"adoption-chat/runtime/workers"
	"adoption-chat/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 5 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the store, the REST API and the websocket relay, then serves until SIGINT/SIGTERM.
// Returning instead of exiting lets every deferred close run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	driver, err := config.Driver()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Message store
	var repository storage.IMessageRepository
	switch driver {
	case internal.DriverBadger:
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		repository = storage.NewMessageRepository(db, logger, config.LimitMessages)
	default:
		db, err := sqlstore.InitDB(ctx, driver, config.DatabaseURL)
		if err != nil {
			return exitRuntime, err
		}
		defer func() {
			logger.Info("Closing SQL database...", "driver", driver)
			_ = db.Close()
		}()
		repository = sqlstore.NewMessageRepository(db, logger, config.LimitMessages)
	}
	logger.Info("Message store ready", "driver", driver)

	// 3. Services, relay & supervision
	chatService := services.NewChatService(logger, repository, config.MaxContentLength)
	signer := auth.NewSigner(config.JWTSecret, config.AuthTokenDuration)
	registry := runtime.NewRegistry()
	eventChan := make(chan event.DomainEvent, config.BufferSize)
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(workers.NewEventFanout(logger, registry, eventChan, config.SinkTimeout))
	roomRelay := relay.NewRelay(logger, registry, eventChan, config.ConnectionBufferSize, config.SinkTimeout)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting supervisor...")
		supervisor.Run(ctx)
	}()

	// 5. HTTP Server
	srv := &http.Server{
		Addr:              config.Address(),
		Handler:           api.NewRouter(logger, chatService, signer, roomRelay),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", srv.Addr, "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		supervisor.Stop()
		return exitRuntime, err
	}

	// 7. Graceful Shutdown
	// Hijacked websocket connections are not tracked by Shutdown, they end with the relay sinks.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		supervisor.Stop()
		return exitRuntime, fmt.Errorf("server forced to shutdown: %w", err)
	}
	supervisor.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
