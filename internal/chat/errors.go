package chat

import (
	"errors"
	"fmt"
)

// Validation failures. Handled locally, never sent to the server, and never
// clear composer state.
var (
	ErrEmptyMessage   = errors.New("chat: message needs text or an attachment")
	ErrContentTooLong = errors.New("chat: message exceeds 1000 characters")
	ErrNotWritable    = errors.New("chat: conversation is not writable")
)

// Connection preconditions.
var (
	ErrNoCredential = errors.New("chat: credential required before connecting")
	ErrNotConnected = errors.New("chat: not connected")
)

// ErrQuoteNotAllowed gates the quote action: provider role plus a writable,
// connected chat.
var ErrQuoteNotAllowed = errors.New("chat: quote action requires a writable provider chat")

// ConnectionError wraps a transport-level failure: handshake, timeout,
// unexpected disconnect. Surfaced once per occurrence on the event stream.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("chat connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is a session-scoped error pushed by the server. It does not
// tear down the connection.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "chat protocol error: " + e.Message
}
