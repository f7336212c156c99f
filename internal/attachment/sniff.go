package attachment

import "bytes"

// Sniff classifies a raw payload by its leading bytes. It recognizes the
// JPEG, PNG and WEBP signatures plus the generic ISO base-media box (AVIF,
// HEIC) as images; everything else is an opaque file.
func Sniff(data []byte) Kind {
	if SniffMime(data) != "application/octet-stream" {
		return KindImage
	}
	if len(data) == 0 {
		return KindNone
	}
	return KindFile
}

// SniffMime infers a MIME type from known image signatures, falling back to
// application/octet-stream.
func SniffMime(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		// ISO base-media container; AVIF is the only one we emit.
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}
