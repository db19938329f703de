package artifact

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"testing"
)

func TestWriteThenLoadFullRoundTrips(t *testing.T) {
	s := NewStore()
	path := filepath.Join(t.TempDir(), "x.tex.flams")
	html := "<html><head></head><body id=\"b\"><p>hi</p></body></html>"
	a := Artifact{
		References: []byte("refs"),
		CSS:        []CSS{{Inline: false, Href: "style.css"}},
		HTML:       html,
	}
	if err := s.Write(path, a); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.LoadFull(path)
	if err != nil {
		t.Fatalf("LoadFull: %v", err)
	}
	if got != html {
		t.Fatalf("LoadFull = %q, want %q", got, html)
	}
}

func TestLoadBodyFullReturnsOuterTags(t *testing.T) {
	s := NewStore()
	path := filepath.Join(t.TempDir(), "x.tex.flams")
	html := "<html><head></head><body id=\"b\"><p>hi</p></body></html>"
	if err := s.Write(path, Artifact{HTML: html}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, body, err := s.LoadBody(path, true)
	if err != nil {
		t.Fatalf("LoadBody: %v", err)
	}
	want := `<body id="b"><p>hi</p></body>`
	if body != want {
		t.Fatalf("LoadBody(full) = %q, want %q", body, want)
	}
}

func TestLoadBodyInnerStripsShell(t *testing.T) {
	s := NewStore()
	path := filepath.Join(t.TempDir(), "x.tex.flams")
	html := "<html><head></head><body id=\"b\"><p>hi</p></body></html>"
	if err := s.Write(path, Artifact{HTML: html}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, body, err := s.LoadBody(path, false)
	if err != nil {
		t.Fatalf("LoadBody: %v", err)
	}
	want := "<p>hi</p>"
	if body != want {
		t.Fatalf("LoadBody(inner) = %q, want %q", body, want)
	}
}

func TestLoadFragmentReadsRangeWithinHTML(t *testing.T) {
	s := NewStore()
	path := filepath.Join(t.TempDir(), "x.tex.flams")
	html := "<html><body>hello world</body></html>"
	if err := s.Write(path, Artifact{HTML: html}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	start := len("<html><body>")
	end := start + len("hello")
	_, frag, err := s.LoadFragment(path, start, end)
	if err != nil {
		t.Fatalf("LoadFragment: %v", err)
	}
	if frag != "hello" {
		t.Fatalf("LoadFragment = %q, want %q", frag, "hello")
	}
}

func TestLoadFragmentRejectsMidCodepointRange(t *testing.T) {
	s := NewStore()
	path := filepath.Join(t.TempDir(), "x.tex.flams")
	html := "<html><body>" + "é" + "</body></html>" // "é" is 2 bytes in UTF-8
	if err := s.Write(path, Artifact{HTML: html}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	start := len("<html><body>")
	if _, _, err := s.LoadFragment(path, start, start+1); err == nil {
		t.Fatalf("expected mid-codepoint fragment range to error")
	}
}

func TestLoadReferenceDecodesGobValue(t *testing.T) {
	type ref struct{ Name string }

	s := NewStore()
	path := filepath.Join(t.TempDir(), "x.tex.flams")

	refBytes := gobEncode(t, ref{Name: "sym1"})
	if err := s.Write(path, Artifact{References: refBytes, HTML: "<html></html>"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := LoadReference[ref](s, path, 0, len(refBytes))
	if err != nil {
		t.Fatalf("LoadReference: %v", err)
	}
	if got.Name != "sym1" {
		t.Fatalf("LoadReference = %+v, want Name=sym1", got)
	}
}

func gobEncode(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encoding test fixture: %v", err)
	}
	return buf.Bytes()
}
