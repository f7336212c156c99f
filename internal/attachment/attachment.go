// Package attachment validates, encodes and decodes binary attachments
// exchanged as text-safe payloads, and owns the defensive parsing of the
// loosely-typed metadata bag carried on chat messages.
package attachment

// Kind is the coarse classification of an attachment.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindFile:
		return "file"
	default:
		return "none"
	}
}

// Attachment is the typed form of an attachment after boundary validation.
// KindNone means "no attachment" and is the fallback for anything that did
// not validate.
type Attachment struct {
	Kind     Kind
	Name     string
	MimeType string
	Size     int64
	URL      string // resolvable location, when the server provided one
	Payload  string // inline base64 payload, when embedded
}

// Renderable reports whether the attachment can be displayed or downloaded.
// Exactly one usable source (URL or inline payload) is required; otherwise
// the attachment degrades to a placeholder.
func (a Attachment) Renderable() bool {
	return a.Kind != KindNone && (a.URL != "" || a.Payload != "")
}
