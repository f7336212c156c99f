// Package cache provides the session-scoped attachment payload cache used as
// a best-effort local mirror of outgoing attachments. It is a capability
// handed to its consumers, never ambient state, so the recovery heuristic can
// run against a fake and the whole thing can be swapped for a server-backed
// store later.
package cache

import (
	"sync"

	"github.com/google/uuid"
)

// Key identifies a cached payload: one attachment per (session, message).
type Key struct {
	SessionID int64
	MessageID int64
}

// Store is the attachment mirror. Writes are append/overwrite per key; reads
// never mutate. Entries are never authoritative.
type Store interface {
	// Put records a payload under its final key.
	Put(key Key, payload []byte)
	// Get returns the payload cached under exactly key.
	Get(key Key) ([]byte, bool)
	// PutProvisional records an outgoing payload before the server has
	// assigned the message id. id must come from NewProvisionalID.
	PutProvisional(id string, sessionID int64, payload []byte)
	// Promote rebinds a provisional entry to its final key once the echo
	// carrying the server id arrives. Reports whether the id was known.
	Promote(id string, key Key) bool
	// SessionKeys lists the final keys cached for a session, in no
	// particular order.
	SessionKeys(sessionID int64) []Key
}

// NewProvisionalID returns a fresh provisional cache id.
func NewProvisionalID() string { return uuid.NewString() }

type provisionalEntry struct {
	sessionID int64
	payload   []byte
}

// Memory is the in-process Store implementation, the Go analogue of the
// original tab-session storage: it lives exactly as long as the process.
type Memory struct {
	mu          sync.RWMutex
	entries     map[Key][]byte
	provisional map[string]provisionalEntry
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[Key][]byte),
		provisional: make(map[string]provisionalEntry),
	}
}

func (m *Memory) Put(key Key, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = payload
}

func (m *Memory) Get(key Key) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[key]
	return p, ok
}

func (m *Memory) PutProvisional(id string, sessionID int64, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provisional[id] = provisionalEntry{sessionID: sessionID, payload: payload}
}

func (m *Memory) Promote(id string, key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.provisional[id]
	if !ok {
		return false
	}
	delete(m.provisional, id)
	m.entries[key] = entry.payload
	return true
}

func (m *Memory) SessionKeys(sessionID int64) []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []Key
	for k := range m.entries {
		if k.SessionID == sessionID {
			keys = append(keys, k)
		}
	}
	return keys
}
