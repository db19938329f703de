package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

func testArchive(t *testing.T, root string) *archive.Archive {
	t.Helper()
	id := uris.MustParseArchiveId("smglom/sets")
	m := &archive.Manifest{ID: id}
	return archive.NewArchive(m, root)
}

func TestGlobalArtifactWriteAndReadPathAgree(t *testing.T) {
	root := t.TempDir()
	a := testArchive(t, root)
	g := NewGlobal(root, []*archive.Archive{a})

	wp, err := g.ArtifactWritePath(a.ID(), "x.tex", "check")
	if err != nil {
		t.Fatalf("ArtifactWritePath: %v", err)
	}
	rp, err := g.ArtifactReadPath(a.ID(), "x.tex", "check")
	if err != nil {
		t.Fatalf("ArtifactReadPath: %v", err)
	}
	if wp != rp {
		t.Fatalf("Global write/read paths differ: %q vs %q", wp, rp)
	}
	want := filepath.Join(root, ".flams", "x.tex.check.flams")
	if wp != want {
		t.Fatalf("ArtifactWritePath = %q, want %q", wp, want)
	}
}

func TestSandboxedWritesGoToOverlay(t *testing.T) {
	root := t.TempDir()
	a := testArchive(t, root)
	g := NewGlobal(root, []*archive.Archive{a})

	overlayBase := t.TempDir()
	sb, err := NewSandboxed(g, overlayBase)
	if err != nil {
		t.Fatalf("NewSandboxed: %v", err)
	}

	wp, err := sb.ArtifactWritePath(a.ID(), "x.tex", "check")
	if err != nil {
		t.Fatalf("ArtifactWritePath: %v", err)
	}
	if !filepathHasPrefix(wp, sb.OverlayDir()) {
		t.Fatalf("expected overlay write path %q to be under %q", wp, sb.OverlayDir())
	}
}

func TestSandboxedReadFallsThroughWhenNoOverlay(t *testing.T) {
	root := t.TempDir()
	a := testArchive(t, root)
	g := NewGlobal(root, []*archive.Archive{a})
	sb, err := NewSandboxed(g, t.TempDir())
	if err != nil {
		t.Fatalf("NewSandboxed: %v", err)
	}

	rp, err := sb.ArtifactReadPath(a.ID(), "x.tex", "check")
	if err != nil {
		t.Fatalf("ArtifactReadPath: %v", err)
	}
	want, _ := g.ArtifactReadPath(a.ID(), "x.tex", "check")
	if rp != want {
		t.Fatalf("ArtifactReadPath = %q, want fallthrough to global %q", rp, want)
	}
}

func TestSandboxedReadPrefersOverlayWhenPresent(t *testing.T) {
	root := t.TempDir()
	a := testArchive(t, root)
	g := NewGlobal(root, []*archive.Archive{a})
	sb, err := NewSandboxed(g, t.TempDir())
	if err != nil {
		t.Fatalf("NewSandboxed: %v", err)
	}

	wp, _ := sb.ArtifactWritePath(a.ID(), "x.tex", "check")
	if err := os.WriteFile(wp, []byte("overlaid"), 0o644); err != nil {
		t.Fatalf("seeding overlay file: %v", err)
	}

	rp, err := sb.ArtifactReadPath(a.ID(), "x.tex", "check")
	if err != nil {
		t.Fatalf("ArtifactReadPath: %v", err)
	}
	if rp != wp {
		t.Fatalf("ArtifactReadPath = %q, want overlay path %q", rp, wp)
	}
}

func TestSandboxedMarkBuiltRecordsEntryWithoutTouchingGlobal(t *testing.T) {
	root := t.TempDir()
	a := testArchive(t, root)
	g := NewGlobal(root, []*archive.Archive{a})
	sb, err := NewSandboxed(g, t.TempDir())
	if err != nil {
		t.Fatalf("NewSandboxed: %v", err)
	}

	now := time.Unix(1000, 0)
	if err := sb.MarkBuilt(a.ID(), "x.tex", "check", now); err != nil {
		t.Fatalf("MarkBuilt: %v", err)
	}
	entries := sb.BuiltEntries()
	if len(entries) != 1 || entries[0].RelPath != "x.tex" || entries[0].Target != "check" {
		t.Fatalf("BuiltEntries = %+v, want one entry for x.tex/check", entries)
	}
}

func filepathHasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	return err == nil && rel != ".." && len(rel) > 0 && rel[0] != '.'
}
