package stub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/servimatch/chatwire/internal/protocol"
)

// client is one WebSocket connection joined to a session room.
type client struct {
	id      string
	sender  protocol.Sender
	name    string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// send writes a frame to the connection (thread-safe).
func (c *client) send(f protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

// room holds the in-memory state of one chat session.
type room struct {
	mu         sync.Mutex
	sessionID  int64
	nextID     int64
	msgs       []protocol.ChatMessage
	clients    map[string]*client
	lastActive time.Time
}

func newRoom(sessionID int64) *room {
	return &room{
		sessionID:  sessionID,
		nextID:     1,
		clients:    make(map[string]*client),
		lastActive: time.Now(),
	}
}

func (r *room) add(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.id] = c
	r.lastActive = time.Now()
}

func (r *room) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	r.lastActive = time.Now()
}

// append stores a message, assigning the next server id, and returns it.
func (r *room) append(sender protocol.Sender, name, content string, metadata json.RawMessage) protocol.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := protocol.ChatMessage{
		ID:         r.nextID,
		SessionID:  r.sessionID,
		Sender:     sender,
		SenderName: name,
		Content:    content,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	r.nextID++
	r.msgs = append(r.msgs, m)
	r.lastActive = time.Now()
	return m
}

func (r *room) history() []protocol.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.ChatMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// broadcast sends a frame to every joined client, including the sender's own
// connection (the echo carries the server-assigned id).
func (r *room) broadcast(f protocol.Frame) {
	r.mu.Lock()
	targets := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		if err := c.send(f); err != nil {
			slog.Warn("stub broadcast failed", "conn", c.id, "error", err)
		}
	}
}

// rooms tracks every active session room.
type rooms struct {
	mu sync.Mutex
	m  map[int64]*room
}

func newRooms() *rooms {
	return &rooms{m: make(map[int64]*room)}
}

func (rs *rooms) get(sessionID int64) *room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.m[sessionID]
	if !ok {
		r = newRoom(sessionID)
		rs.m[sessionID] = r
	}
	return r
}

// prune drops rooms with no clients that have been idle longer than ttl.
// Returns how many were removed.
func (rs *rooms) prune(ttl time.Duration) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, r := range rs.m {
		r.mu.Lock()
		idle := len(r.clients) == 0 && r.lastActive.Before(cutoff)
		r.mu.Unlock()
		if idle {
			delete(rs.m, id)
			removed++
		}
	}
	return removed
}

func (rs *rooms) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.m)
}
