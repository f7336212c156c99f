// Package recovery reconstructs missing attachment payloads for historical
// messages from the local attachment cache. The counterpart service does not
// durably echo an attachment reference for every message; this heuristic is
// the stopgap, scoped to the lifetime of the local cache, and is removable
// once the service returns a stable per-message attachment reference.
package recovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/servimatch/chatwire/internal/attachment"
	"github.com/servimatch/chatwire/internal/cache"
	"github.com/servimatch/chatwire/internal/protocol"
)

// SentinelText is the placeholder content the counterpart writes for
// messages whose body is an attachment.
const SentinelText = "Arquivo anexado"

// Expected reports whether a message should carry an attachment that its
// metadata failed to deliver: either the content is the attachment sentinel,
// or the message has no metadata at all alongside empty content.
func Expected(msg protocol.ChatMessage, parsed attachment.Attachment) bool {
	if parsed.Kind != attachment.KindNone {
		return false
	}
	if msg.Content == SentinelText {
		return true
	}
	return msg.Content == "" && len(msg.Metadata) == 0
}

// Recover attempts to rebuild an attachment for (sessionID, messageID) from
// the local cache. Exact key first; otherwise the cached entry for the same
// session whose message id is numerically closest, the lower id winning
// ties. The association is best effort and may occasionally be wrong under
// heavy concurrent attachment traffic in one session.
func Recover(store cache.Store, sessionID, messageID int64) (attachment.Attachment, bool) {
	payload, ok := store.Get(cache.Key{SessionID: sessionID, MessageID: messageID})
	if !ok {
		payload, ok = nearest(store, sessionID, messageID)
	}
	if !ok {
		return attachment.Attachment{}, false
	}
	return synthesize(payload, messageID)
}

func nearest(store cache.Store, sessionID, messageID int64) ([]byte, bool) {
	keys := store.SessionKeys(sessionID)
	sort.Slice(keys, func(i, j int) bool { return keys[i].MessageID < keys[j].MessageID })

	var (
		best     cache.Key
		bestDist int64 = -1
	)
	for _, k := range keys {
		d := k.MessageID - messageID
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if bestDist < 0 {
		return nil, false
	}
	return store.Get(best)
}

// synthesize classifies the cached payload by its leading bytes and builds a
// minimal descriptor around it.
func synthesize(encoded []byte, messageID int64) (attachment.Attachment, bool) {
	raw, err := attachment.Decode(string(encoded))
	if err != nil {
		// Cache held something unreadable; treat as no candidate.
		return attachment.Attachment{}, false
	}

	mime := attachment.SniffMime(raw)
	kind := attachment.Sniff(raw)
	if kind == attachment.KindNone {
		return attachment.Attachment{}, false
	}
	return attachment.Attachment{
		Kind:     kind,
		Name:     syntheticName(messageID, mime),
		MimeType: mime,
		Size:     int64(len(raw)),
		Payload:  string(encoded),
	}, true
}

func syntheticName(messageID int64, mime string) string {
	ext := "bin"
	if i := strings.IndexByte(mime, '/'); i >= 0 && strings.HasPrefix(mime, "image/") {
		ext = mime[i+1:]
	}
	return fmt.Sprintf("attachment-%d.%s", messageID, ext)
}
