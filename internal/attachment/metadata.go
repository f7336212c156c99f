package attachment

import (
	"encoding/json"
	"strings"
)

// metadataBag is the untyped shape the server attaches to a message.
type metadataBag struct {
	Attachment *wireAttachment `json:"attachment"`
}

type wireAttachment struct {
	Type     string `json:"type"` // "image" | "file", best effort
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Payload  string `json:"payload"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// ParseMetadata decodes the loosely-typed metadata bag on a chat message
// into a typed Attachment. The bag may arrive as a JSON object or as a
// double-encoded JSON string; anything that fails to validate collapses to
// KindNone. Untyped data never travels past this boundary.
func ParseMetadata(raw json.RawMessage) Attachment {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Attachment{}
	}

	data := []byte(trimmed)
	if trimmed[0] == '"' {
		// Embedded JSON string: unquote, then parse what it contained.
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return Attachment{}
		}
		data = []byte(inner)
	}

	var bag metadataBag
	if err := json.Unmarshal(data, &bag); err != nil || bag.Attachment == nil {
		return Attachment{}
	}

	w := bag.Attachment
	if w.URL == "" && w.Payload == "" {
		return Attachment{}
	}

	mime := NormalizeMime(w.MimeType)
	kind := KindFile
	if w.Type == "image" || strings.HasPrefix(mime, "image/") {
		kind = KindImage
	}
	return Attachment{
		Kind:     kind,
		Name:     w.Filename,
		MimeType: mime,
		Size:     w.Size,
		URL:      w.URL,
		Payload:  w.Payload,
	}
}

// Metadata builds the wire metadata bag for an outgoing encoded attachment.
func Metadata(enc Encoded) (json.RawMessage, error) {
	kind := KindFile
	if strings.HasPrefix(enc.MimeType, "image/") {
		kind = KindImage
	}
	bag := metadataBag{Attachment: &wireAttachment{
		Type:     kind.String(),
		Filename: enc.Name,
		MimeType: enc.MimeType,
		Payload:  enc.Payload,
		Size:     enc.Size,
	}}
	return json.Marshal(bag)
}
