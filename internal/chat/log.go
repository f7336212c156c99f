package chat

import (
	"sync"

	"github.com/servimatch/chatwire/internal/protocol"
)

// Log is the append-only, deduplicated message collection for the active
// session. Order is arrival order: the history batch as the server gave it,
// then incremental arrivals. Timestamps never reorder the conversation.
type Log struct {
	mu      sync.RWMutex
	msgs    []protocol.ChatMessage
	seen    map[int64]struct{}
	loading bool
}

func NewLog() *Log {
	return &Log{seen: make(map[int64]struct{}), loading: true}
}

// ApplyHistory replaces the log wholesale with the batch, keeping the
// server-given order and collapsing any duplicate ids to their first
// occurrence. Clears the loading indicator.
func (l *Log) ApplyHistory(batch []protocol.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.msgs = l.msgs[:0]
	l.seen = make(map[int64]struct{}, len(batch))
	for _, m := range batch {
		if _, dup := l.seen[m.ID]; dup {
			continue
		}
		l.seen[m.ID] = struct{}{}
		l.msgs = append(l.msgs, m)
	}
	l.loading = false
}

// ApplyIncoming appends a pushed message unless its id is already present,
// in which case it is a no-op. Reports whether the message was new.
func (l *Log) ApplyIncoming(m protocol.ChatMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[m.ID]; dup {
		return false
	}
	l.seen[m.ID] = struct{}{}
	l.msgs = append(l.msgs, m)
	return true
}

// Messages returns a snapshot of the log in arrival order.
func (l *Log) Messages() []protocol.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]protocol.ChatMessage, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Loading reports whether history has not arrived yet for this session.
func (l *Log) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

// Reset drops everything. The log only shrinks here, on session teardown.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
	l.seen = make(map[int64]struct{})
	l.loading = true
}
