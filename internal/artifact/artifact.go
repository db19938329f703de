// Package artifact implements the per-document binary store (component C):
// a fixed big-endian header followed by a references blob, a CSS blob, and
// the full rendered HTML, plus the random-access readers layered on top of
// it.
package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const headerSize = 0x14

// CSS is one stylesheet reference or inline block associated with a
// document, gob-encoded as part of the CSS blob.
type CSS struct {
	Inline bool
	Href   string
	Text   string
}

// Artifact is the decoded form of a .flams file: everything a Store.Write
// call needs to lay out the on-disk header.
type Artifact struct {
	References []byte // gob-encoded reference table, opaque to this package
	CSS        []CSS
	HTML       string // full document, including the outer <html>...</html>
}

// header mirrors the five big-endian u32 fields at offset 0x00..0x14,
// exactly as laid out in the original format: css_offset, css_len,
// body_start, body_len, inner_offset.
type header struct {
	CSSOffset   uint32 // bytes from 0x14 to the start of the CSS blob
	CSSLen      uint32
	BodyStart   uint32 // bytes from the end of the CSS blob to <body>
	BodyLen     uint32
	InnerOffset uint32 // bytes from BodyStart to the first child of <body>
}

func (h header) encode() []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0x00:], h.CSSOffset)
	binary.BigEndian.PutUint32(buf[0x04:], h.CSSLen)
	binary.BigEndian.PutUint32(buf[0x08:], h.BodyStart)
	binary.BigEndian.PutUint32(buf[0x0C:], h.BodyLen)
	binary.BigEndian.PutUint32(buf[0x10:], h.InnerOffset)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("artifact: short header: %d bytes, want %d", len(buf), headerSize)
	}
	return header{
		CSSOffset:   binary.BigEndian.Uint32(buf[0x00:]),
		CSSLen:      binary.BigEndian.Uint32(buf[0x04:]),
		BodyStart:   binary.BigEndian.Uint32(buf[0x08:]),
		BodyLen:     binary.BigEndian.Uint32(buf[0x0C:]),
		InnerOffset: binary.BigEndian.Uint32(buf[0x10:]),
	}, nil
}

// bodyTrailer is the literal 7-byte "</body>" close tag load_body strips
// off when asked for the inner fragment only.
const bodyTrailer = "</body>"

// findBodyOpenEnd locates the offset of the first byte after the opening
// <body ...> tag within html. The writer does not call it (it derives
// InnerOffset with its own scan). It returns -1 if no <body tag is present
// (the artifact has no inner region to speak of, e.g. a bare fragment).
func findBodyOpenEnd(html string) int {
	i := bytes.Index([]byte(html), []byte("<body"))
	if i < 0 {
		return -1
	}
	close := bytes.IndexByte([]byte(html[i:]), '>')
	if close < 0 {
		return -1
	}
	return i + close + 1
}
