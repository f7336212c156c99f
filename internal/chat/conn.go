package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/servimatch/chatwire/internal/protocol"
)

// State is the connection lifecycle state, owned exclusively by Conn and
// driven by channel events, never set directly by consumers.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return "disconnected"
	}
}

// RetryConfig makes the reconnection policy explicit and observable instead
// of an implicit transport default.
type RetryConfig struct {
	MaxAttempts      int
	Delay            time.Duration
	HandshakeTimeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:      5,
		Delay:            2 * time.Second,
		HandshakeTimeout: 20 * time.Second,
	}
}

// EventType tags entries on the Conn event stream.
type EventType int

const (
	EventState EventType = iota
	EventHistory
	EventMessage
	EventError
)

// Event is one entry on the typed event stream. Exactly one of the payload
// fields is meaningful per Type.
type Event struct {
	Type    EventType
	State   State                  // EventState
	History []protocol.ChatMessage // EventHistory
	Message *protocol.ChatMessage  // EventMessage (already deduplicated)
	Err     error                  // EventError: *ConnectionError or *ProtocolError
}

const eventBuffer = 256

// Conn owns exactly one realtime channel per active session. Switching
// session ids or tearing down always closes the previous channel first; a
// generation counter discards late events from torn-down channels.
type Conn struct {
	gatewayURL string
	token      string
	retry      RetryConfig
	msgs       *Log

	mu      sync.Mutex
	writeMu sync.Mutex
	state   State
	ws      *websocket.Conn
	session int64
	epoch   int

	events chan Event
}

// NewConn builds a connection manager for one consumer. gatewayURL is the
// ws:// or wss:// endpoint of the counterpart realtime channel.
func NewConn(gatewayURL, token string, retry RetryConfig) *Conn {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Conn{
		gatewayURL: gatewayURL,
		token:      token,
		retry:      retry,
		msgs:       NewLog(),
		events:     make(chan Event, eventBuffer),
	}
}

// Events is the typed stream of state transitions, history, deduplicated
// messages and errors, in the order the transport delivered them.
func (c *Conn) Events() <-chan Event { return c.events }

// Log exposes the message log for the active session.
func (c *Conn) Log() *Log { return c.msgs }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the session the channel is (or was last) attributed to.
func (c *Conn) SessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect establishes the channel for a session. Any previous channel is
// torn down first, so at most one is ever live. A missing credential is a
// hard precondition failure: no dial is attempted.
func (c *Conn) Connect(ctx context.Context, sessionID int64) error {
	if c.token == "" {
		return ErrNoCredential
	}

	c.Teardown()

	c.mu.Lock()
	c.session = sessionID
	c.epoch++
	epoch := c.epoch
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	ws, err := c.dialAndJoin(ctx, sessionID)
	if err != nil {
		cerr := &ConnectionError{Op: "connect", Err: err}
		c.fail(epoch, cerr)
		return cerr
	}

	c.mu.Lock()
	if c.epoch != epoch {
		// Torn down while dialing; the new owner wins.
		c.mu.Unlock()
		ws.Close()
		return &ConnectionError{Op: "connect", Err: errors.New("superseded by teardown")}
	}
	c.ws = ws
	c.setStateLocked(Connected)
	c.mu.Unlock()

	go c.readLoop(ws, epoch, sessionID)
	return nil
}

// Teardown unconditionally releases the channel and clears the message log.
// Safe to call from any state, any number of times.
func (c *Conn) Teardown() {
	c.mu.Lock()
	c.epoch++
	ws := c.ws
	c.ws = nil
	changed := c.state != Disconnected
	if changed {
		c.setStateLocked(Disconnected)
	}
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	c.msgs.Reset()
}

// SendFrame writes a frame on the live channel.
func (c *Conn) SendFrame(f protocol.Frame) error {
	c.mu.Lock()
	ws := c.ws
	state := c.state
	c.mu.Unlock()

	if state != Connected || ws == nil {
		return &ConnectionError{Op: "send", Err: ErrNotConnected}
	}
	return c.writeFrame(ws, f)
}

func (c *Conn) writeFrame(ws *websocket.Conn, f protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(f)
}

// dialAndJoin opens the websocket and sends the join request. The bearer
// credential rides on every auth surface the counterpart might negotiate:
// Authorization header, query string, and the join payload itself.
func (c *Conn) dialAndJoin(ctx context.Context, sessionID int64) (*websocket.Conn, error) {
	u, err := url.Parse(c.gatewayURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.retry.HandshakeTimeout}
	header := http.Header{"Authorization": []string{"Bearer " + c.token}}

	ws, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, err
	}

	join, err := protocol.NewFrame(protocol.EventJoin, protocol.JoinPayload{
		SessionID: sessionID,
		Token:     c.token,
	})
	if err != nil {
		ws.Close()
		return nil, err
	}
	if err := c.writeFrame(ws, join); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func (c *Conn) readLoop(ws *websocket.Conn, epoch int, sessionID int64) {
	for {
		var frame protocol.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if !c.current(epoch) {
				return
			}
			c.reconnect(epoch, sessionID, err)
			return
		}
		if !c.current(epoch) {
			return
		}
		c.handleFrame(frame)
	}
}

// reconnect retries the channel after an unexpected close: bounded attempts,
// fixed inter-attempt delay. Exhaustion surfaces exactly one error event and
// parks the state at Errored.
func (c *Conn) reconnect(epoch int, sessionID int64, cause error) {
	slog.Warn("chat channel lost", "session", sessionID, "error", cause)
	c.setState(epoch, Connecting)

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		time.Sleep(c.retry.Delay)
		if !c.current(epoch) {
			return
		}

		ws, err := c.dialAndJoin(context.Background(), sessionID)
		if err != nil {
			slog.Warn("chat reconnect attempt failed", "session", sessionID, "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			ws.Close()
			return
		}
		c.ws = ws
		c.setStateLocked(Connected)
		c.mu.Unlock()

		go c.readLoop(ws, epoch, sessionID)
		return
	}

	c.fail(epoch, &ConnectionError{Op: "reconnect", Err: cause})
}

func (c *Conn) handleFrame(frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventHistory:
		var batch []protocol.ChatMessage
		if err := json.Unmarshal(frame.Payload, &batch); err != nil {
			slog.Warn("malformed history payload", "error", err)
			return
		}
		c.msgs.ApplyHistory(batch)
		c.emit(Event{Type: EventHistory, History: batch})

	case protocol.EventMessage:
		var m protocol.ChatMessage
		if err := json.Unmarshal(frame.Payload, &m); err != nil {
			slog.Warn("malformed message payload", "error", err)
			return
		}
		if c.msgs.ApplyIncoming(m) {
			c.emit(Event{Type: EventMessage, Message: &m})
		}

	case protocol.EventError:
		var p protocol.ErrorPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			slog.Warn("malformed error payload", "error", err)
			return
		}
		c.emit(Event{Type: EventError, Err: &ProtocolError{Message: p.Message}})

	default:
		slog.Debug("ignoring unknown event", "event", frame.Event)
	}
}

// current reports whether the given generation still owns the channel.
func (c *Conn) current(epoch int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

func (c *Conn) fail(epoch int, err *ConnectionError) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(Errored)
	c.mu.Unlock()
	c.emit(Event{Type: EventError, Err: err})
}

func (c *Conn) setState(epoch int, s State) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(s)
	c.mu.Unlock()
}

// setStateLocked updates state and queues the transition event. Callers hold
// c.mu.
func (c *Conn) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.emit(Event{Type: EventState, State: s})
}

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("chat event dropped, consumer too slow", "type", ev.Type)
	}
}
