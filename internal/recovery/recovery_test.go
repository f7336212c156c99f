package recovery

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servimatch/chatwire/internal/attachment"
	"github.com/servimatch/chatwire/internal/cache"
	"github.com/servimatch/chatwire/internal/protocol"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func encoded(raw []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(raw))
}

func TestExpectedOnSentinelContent(t *testing.T) {
	msg := protocol.ChatMessage{ID: 9, SessionID: 42, Content: "Arquivo anexado", CreatedAt: time.Now()}
	assert.True(t, Expected(msg, attachment.Attachment{}))
}

func TestExpectedOnMissingMetadata(t *testing.T) {
	msg := protocol.ChatMessage{ID: 9, SessionID: 42}
	assert.True(t, Expected(msg, attachment.Attachment{}))

	msg.Content = "just text"
	assert.False(t, Expected(msg, attachment.Attachment{}))
}

func TestExpectedNotWhenMetadataParsed(t *testing.T) {
	msg := protocol.ChatMessage{ID: 9, Content: "Arquivo anexado", Metadata: json.RawMessage(`{}`)}
	parsed := attachment.Attachment{Kind: attachment.KindImage, Payload: "aGk="}
	assert.False(t, Expected(msg, parsed))
}

func TestRecoverEmptyCacheYieldsNothing(t *testing.T) {
	// Session 42 has no cached attachments: the sentinel message renders
	// with no attachment block.
	store := cache.NewMemory()
	_, ok := Recover(store, 42, 101)
	assert.False(t, ok)
}

func TestRecoverExactKey(t *testing.T) {
	store := cache.NewMemory()
	store.Put(cache.Key{SessionID: 42, MessageID: 101}, encoded(jpegBytes))

	att, ok := Recover(store, 42, 101)
	require.True(t, ok)
	assert.Equal(t, attachment.KindImage, att.Kind)
	assert.Equal(t, "image/jpeg", att.MimeType)
	assert.Equal(t, int64(len(jpegBytes)), att.Size)
	assert.Equal(t, "attachment-101.jpeg", att.Name)
	assert.True(t, att.Renderable())
}

func TestRecoverProximityMatch(t *testing.T) {
	store := cache.NewMemory()
	store.Put(cache.Key{SessionID: 42, MessageID: 90}, encoded([]byte("%PDF-1.4 far")))
	store.Put(cache.Key{SessionID: 42, MessageID: 100}, encoded(jpegBytes))
	// A different session never participates.
	store.Put(cache.Key{SessionID: 7, MessageID: 101}, encoded([]byte("other session")))

	att, ok := Recover(store, 42, 101)
	require.True(t, ok)
	assert.Equal(t, attachment.KindImage, att.Kind, "closest id (100) should win")
}

func TestRecoverProximityTieTakesLowerID(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x01}
	store := cache.NewMemory()
	store.Put(cache.Key{SessionID: 42, MessageID: 10}, encoded(jpegBytes))
	store.Put(cache.Key{SessionID: 42, MessageID: 20}, encoded(pngBytes))

	// Both candidates sit 5 ids away; the winner must not depend on map
	// iteration order.
	for i := 0; i < 25; i++ {
		att, ok := Recover(store, 42, 15)
		require.True(t, ok)
		require.Equal(t, "image/jpeg", att.MimeType, "tie must resolve to the lower id every run")
	}
}

func TestRecoverOpaquePayloadClassifiedAsFile(t *testing.T) {
	store := cache.NewMemory()
	store.Put(cache.Key{SessionID: 5, MessageID: 3}, encoded([]byte("%PDF-1.4 content")))

	att, ok := Recover(store, 5, 3)
	require.True(t, ok)
	assert.Equal(t, attachment.KindFile, att.Kind)
	assert.Equal(t, "application/octet-stream", att.MimeType)
	assert.Equal(t, "attachment-3.bin", att.Name)
}

func TestRecoverCorruptCacheEntry(t *testing.T) {
	store := cache.NewMemory()
	store.Put(cache.Key{SessionID: 5, MessageID: 3}, []byte("%%% not base64 %%%"))

	_, ok := Recover(store, 5, 3)
	assert.False(t, ok)
}
