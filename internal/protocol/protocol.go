package protocol

import "encoding/json"

// Event names exchanged over the per-session WebSocket channel.
const (
	EventJoin    = "join"         // client → server, once after connect
	EventMessage = "message"      // both directions
	EventHistory = "chat_history" // server → client, once per join
	EventError   = "error"        // server → client, session-scoped protocol error
)

// Frame is the universal wire envelope: an event name plus its JSON payload.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals payload into a Frame for the given event.
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Payload: data}, nil
}

// JoinPayload is sent by the client immediately after a successful connect.
// Token duplicates the dial credential because the negotiated auth surface of
// the counterpart transport is not guaranteed.
type JoinPayload struct {
	SessionID int64  `json:"sessionId"`
	Token     string `json:"token,omitempty"`
}

// OutgoingMessage is a client → server chat message. Content may be empty
// when an attachment is present, but never both.
type OutgoingMessage struct {
	SessionID  int64              `json:"sessionId"`
	Content    string             `json:"content"`
	Attachment *AttachmentPayload `json:"attachment,omitempty"`
}

// AttachmentPayload carries an inline attachment on the wire.
type AttachmentPayload struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Payload  string `json:"payload"` // base64 of the original binary
	Size     int64  `json:"size"`    // bytes, pre-encoding
}

// ErrorPayload is a session-scoped error pushed by the server. It does not
// imply the transport is going away.
type ErrorPayload struct {
	Message string `json:"message"`
}
