package artifact

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// Store writes and reads .flams artifact files. It has no state of its own;
// every method is a pure function of the path it is given, matching the
// original format's design as a random-access file layout rather than an
// in-memory cache.
type Store struct{}

// NewStore constructs a Store.
func NewStore() *Store { return &Store{} }

// Write encodes a and writes it atomically to path: the file is built at
// path+".tmp", fsynced, then renamed over path (spec §4.C, last line:
// "implementations MUST match byte offsets exactly").
func (s *Store) Write(path string, a Artifact) error {
	cssBlob, err := encodeCSS(a.CSS)
	if err != nil {
		return fmt.Errorf("artifact: encoding CSS blob: %w", err)
	}

	bodyStart, bodyLen, innerOffset := computeBodyOffsets(a.HTML)
	h := header{
		CSSOffset:   uint32(len(a.References)),
		CSSLen:      uint32(len(cssBlob)),
		BodyStart:   bodyStart,
		BodyLen:     bodyLen,
		InnerOffset: innerOffset,
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("artifact: creating %s: %w", tmp, err)
	}
	defer os.Remove(tmp) // no-op once the rename below succeeds

	if _, err := f.Write(h.encode()); err != nil {
		f.Close()
		return fmt.Errorf("artifact: writing header: %w", err)
	}
	if _, err := f.Write(a.References); err != nil {
		f.Close()
		return fmt.Errorf("artifact: writing references blob: %w", err)
	}
	if _, err := f.Write(cssBlob); err != nil {
		f.Close()
		return fmt.Errorf("artifact: writing CSS blob: %w", err)
	}
	if _, err := f.WriteString(a.HTML); err != nil {
		f.Close()
		return fmt.Errorf("artifact: writing HTML: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("artifact: syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("artifact: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("artifact: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

func encodeCSS(css []CSS) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(css); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// computeBodyOffsets scans html for the outermost <body ...>...</body>
// region and derives (body_start, body_len, inner_offset), all relative to
// the start of html itself. A document with no <body> tag yields all
// zeros: load_body then returns an empty region rather than erroring.
func computeBodyOffsets(html string) (bodyStart, bodyLen, innerOffset uint32) {
	b := []byte(html)
	open := bytes.Index(b, []byte("<body"))
	if open < 0 {
		return 0, 0, 0
	}
	tagEnd := bytes.IndexByte(b[open:], '>')
	if tagEnd < 0 {
		return 0, 0, 0
	}
	innerStart := open + tagEnd + 1

	close := bytes.LastIndex(b, []byte(bodyTrailer))
	if close < innerStart {
		return 0, 0, 0
	}
	bodyEnd := close + len(bodyTrailer)

	return uint32(open), uint32(bodyEnd - open), uint32(innerStart - open)
}

func readHeader(path string) (header, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return header{}, nil, err
	}
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return header{}, nil, fmt.Errorf("artifact: reading header of %s: %w", path, err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		f.Close()
		return header{}, nil, err
	}
	return h, f, nil
}

// htmlStart returns the absolute file offset where the HTML blob begins,
// i.e. just past the header, the references blob and the CSS blob.
func (h header) htmlStart() int64 {
	return int64(headerSize) + int64(h.CSSOffset) + int64(h.CSSLen)
}

// LoadFull returns the entire HTML document stored at path (spec §4.C
// load_full: "reads everything after the CSS blob").
func (s *Store) LoadFull(path string) (string, error) {
	h, f, err := readHeader(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Seek(h.htmlStart(), io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadBody returns the CSS list together with either the whole <body>…
// </body> region (full=true) or just its inner content with the opening
// tag and the 7-byte "</body>" trailer stripped (full=false), per spec
// §4.C load_body.
func (s *Store) LoadBody(path string, full bool) ([]CSS, string, error) {
	h, f, err := readHeader(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	css, err := s.loadCSS(f, h)
	if err != nil {
		return nil, "", err
	}

	start := h.htmlStart() + int64(h.BodyStart)
	length := int64(h.BodyLen)
	if !full {
		start += int64(h.InnerOffset)
		length -= int64(h.InnerOffset) + int64(len(bodyTrailer))
		if length < 0 {
			length = 0
		}
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, "", fmt.Errorf("artifact: reading body of %s: %w", path, err)
	}
	return css, string(buf), nil
}

// LoadFragment seeks to html_start+start and reads end-start bytes as a
// byte range within the HTML blob (spec §4.C load_fragment). Callers must
// only pass ranges previously emitted by a correct extractor (Invariant
// C2); a range landing mid-codepoint returns an error rather than invalid
// UTF-8.
func (s *Store) LoadFragment(path string, start, end int) ([]CSS, string, error) {
	if end < start {
		return nil, "", fmt.Errorf("artifact: invalid fragment range [%d,%d)", start, end)
	}
	h, f, err := readHeader(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	css, err := s.loadCSS(f, h)
	if err != nil {
		return nil, "", err
	}

	if _, err := f.Seek(h.htmlStart()+int64(start), io.SeekStart); err != nil {
		return nil, "", err
	}
	buf := make([]byte, end-start)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, "", fmt.Errorf("artifact: reading fragment of %s: %w", path, err)
	}
	if !utf8.Valid(buf) {
		return nil, "", fmt.Errorf("artifact: fragment [%d,%d) of %s is not valid UTF-8 (mid-codepoint range)", start, end, path)
	}
	return css, string(buf), nil
}

func (s *Store) loadCSS(f *os.File, h header) ([]CSS, error) {
	if _, err := f.Seek(int64(headerSize)+int64(h.CSSOffset), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, h.CSSLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("artifact: reading CSS blob: %w", err)
	}
	var css []CSS
	if len(buf) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&css); err != nil {
			return nil, fmt.Errorf("artifact: decoding CSS blob: %w", err)
		}
	}
	return css, nil
}

// LoadReference seeks into the references blob at [start,end) (relative to
// the blob's own start, i.e. file offset headerSize+start) and
// gob-decodes it into a T (spec §4.C load_reference<T: Resourcable>; Go's
// closest idiom to the trait-bounded generic is a type parameter with no
// constraint beyond "decodable").
func LoadReference[T any](s *Store, path string, start, end int) (T, error) {
	var zero T
	h, f, err := readHeader(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	if end < start || int64(end) > int64(h.CSSOffset) {
		return zero, fmt.Errorf("artifact: reference range [%d,%d) out of bounds (references blob is %d bytes)", start, end, h.CSSOffset)
	}
	if _, err := f.Seek(int64(headerSize)+int64(start), io.SeekStart); err != nil {
		return zero, err
	}
	buf := make([]byte, end-start)
	if _, err := io.ReadFull(f, buf); err != nil {
		return zero, fmt.Errorf("artifact: reading reference of %s: %w", path, err)
	}
	var out T
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&out); err != nil {
		return zero, fmt.Errorf("artifact: decoding reference: %w", err)
	}
	return out, nil
}
