package relay

import (
	"adoption-chat/domain/chat"
	"adoption-chat/domain/event"
	"adoption-chat/errors"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connectionSink is the outbound half of one websocket connection.
// Consume only queues, writePump is the single writer of data frames.
type connectionSink struct {
	log          *slog.Logger
	conn         *websocket.Conn
	outbox       chan chat.Payload
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
}

func newConnectionSink(log *slog.Logger, conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *connectionSink {
	return &connectionSink{
		log:          log,
		conn:         conn,
		outbox:       make(chan chat.Payload, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (s *connectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	published, ok := e.(event.MessagePublished)
	if !ok {
		return nil
	}
	select {
	case s.outbox <- published.Payload:
		return nil
	case <-s.done:
		return errors.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *connectionSink) writePump() {
	for {
		select {
		case payload := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteJSON(payload); err != nil {
				s.log.Warn("Write to participant failed", "error", err)
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *connectionSink) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}
