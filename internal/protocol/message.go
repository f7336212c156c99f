package protocol

import (
	"encoding/json"
	"time"
)

// MaxContentLen is the hard ceiling on message text, enforced client-side
// before any emission.
const MaxContentLen = 1000

// Sender is the category of a message author within a session.
type Sender string

const (
	SenderRequester Sender = "requester"
	SenderProvider  Sender = "provider"
	SenderSystem    Sender = "system"
)

// ChatMessage is one message in a session as the server delivers it.
// ID is server-assigned, unique within the session and monotonically
// increasing by send order, but not gap-free. Metadata is a loosely-typed
// bag that must be parsed defensively at the boundary (it may arrive as a
// double-encoded JSON string).
type ChatMessage struct {
	ID         int64           `json:"id"`
	SessionID  int64           `json:"sessionId"`
	Sender     Sender          `json:"sender"`
	SenderName string          `json:"senderName,omitempty"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
