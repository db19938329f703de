package archive

import (
	"sync"

	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// Archive is one registered archive: its manifest plus (for local archives)
// a path on disk and a lazily-populated, reader-writer-locked source tree.
type Archive struct {
	manifest *Manifest
	path     string // empty for non-local (remote-only) archives

	mu   sync.RWMutex
	tree SourceDir
}

// NewArchive wraps a parsed manifest and its on-disk path into an Archive.
func NewArchive(m *Manifest, path string) *Archive {
	return &Archive{
		manifest: m,
		path:     path,
		tree:     SourceDir{Name: "source"},
	}
}

// ID returns the archive's identifier.
func (a *Archive) ID() uris.ArchiveId { return a.manifest.ID }

// Manifest returns the archive's parsed manifest.
func (a *Archive) Manifest() *Manifest { return a.manifest }

// Path returns the archive's root directory on disk, or "" if it has none.
func (a *Archive) Path() string { return a.path }

// IsMeta reports whether this is the distinguished meta archive.
func (a *Archive) IsMeta() bool { return a.manifest.IsMeta }

// Tree returns a snapshot of the archive's current source tree. Callers
// must not mutate the returned value; use Scan to refresh it.
func (a *Archive) Tree() SourceDir {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tree
}

// FindFile looks up a SourceFile by its slash-separated relative path.
func (a *Archive) FindFile(relPath string) (*SourceFile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, f := range a.tree.Leaves() {
		if f.RelPath == relPath {
			return f, true
		}
	}
	return nil, false
}
