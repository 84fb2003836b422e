package errors

import "fmt"

var (
	ErrWorkerPanic           = fmt.Errorf("worker panic")
	ErrEmptyContent          = fmt.Errorf("message content is empty")
	ErrInvalidMessage        = fmt.Errorf("invalid message")
	ErrSendWhileDisconnected = fmt.Errorf("cannot send while the room is not connected")
	ErrTransportClosed       = fmt.Errorf("transport closed")
	ErrAlreadyConnected      = fmt.Errorf("transport already connected to a room")
	ErrUnknownConversation   = fmt.Errorf("unknown conversation")
	ErrForbiddenSender       = fmt.Errorf("sender does not match the authenticated user")
	ErrUnauthenticated       = fmt.Errorf("missing authentication")
	ErrInvalidToken          = fmt.Errorf("invalid token")
	ErrContentTooLong        = fmt.Errorf("message content is too long")
	ErrUnknownStoreDriver    = fmt.Errorf("unknown store driver")
)

// HistoryLoadError means the history of a conversation could not be fetched.
// The conversation is unusable until the user retries.
type HistoryLoadError struct {
	ConversationID string
	Err            error
}

func (e *HistoryLoadError) Error() string {
	return fmt.Sprintf("loading history of conversation %s: %v", e.ConversationID, e.Err)
}

func (e *HistoryLoadError) Unwrap() error { return e.Err }

// ConnectionError means the transport never reached the connected state.
type ConnectionError struct {
	Room string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to room %s: %v", e.Room, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PersistenceError reports a self-authored message that was not saved.
// It never affects what is displayed.
type PersistenceError struct {
	MessageID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting message %s: %v", e.MessageID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
