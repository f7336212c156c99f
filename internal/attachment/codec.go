package attachment

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxSize is the hard ceiling on attachment size, measured on the original
// binary before base64 encoding.
const MaxSize = 5 * 1024 * 1024 // 5,242,880 bytes

// Allow-listed MIME types. The legacy image/jpg alias is canonicalized to
// image/jpeg before the lookup.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/avif":      true,
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/msword": true,
}

// ValidationError rejects an attachment before any network activity.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "attachment rejected: " + e.Reason
}

// DecodeError marks a malformed or truncated inline payload. Callers fall
// back to a file-type placeholder instead of propagating it to the render
// path.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "attachment decode failed: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encoded is the wire-ready form of an outgoing attachment.
type Encoded struct {
	Name     string
	MimeType string
	Payload  string // base64 of the original binary
	Size     int64  // bytes, pre-encoding
}

// NormalizeMime lowercases a MIME token and canonicalizes the legacy JPEG
// alias.
func NormalizeMime(mime string) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	if m == "image/jpg" {
		m = "image/jpeg"
	}
	return m
}

// Allowed reports whether a (normalized) MIME type is in the allow-list.
func Allowed(mime string) bool {
	return allowedMimeTypes[NormalizeMime(mime)]
}

// Encode validates an outgoing attachment against the size and type policy
// and produces its text-safe form. Policy violations return a
// *ValidationError and nothing is emitted to the transport.
func Encode(name, mime string, data []byte) (Encoded, error) {
	m := NormalizeMime(mime)
	if !allowedMimeTypes[m] {
		return Encoded{}, &ValidationError{Reason: fmt.Sprintf("type %q is not supported", mime)}
	}
	if int64(len(data)) > MaxSize {
		return Encoded{}, &ValidationError{Reason: fmt.Sprintf("file exceeds the %d byte limit", MaxSize)}
	}
	if len(data) == 0 {
		return Encoded{}, &ValidationError{Reason: "file is empty"}
	}
	return Encoded{
		Name:     name,
		MimeType: m,
		Payload:  base64.StdEncoding.EncodeToString(data),
		Size:     int64(len(data)),
	}, nil
}

// Decode recovers the original binary from an inline payload. A corrupt
// payload yields a *DecodeError.
func Decode(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return data, nil
}
