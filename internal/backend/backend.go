// Package backend implements the archive-tree and artifact-store
// abstraction a queue builds against (component G): a Global backend over
// the real MathHub tree, and a Sandboxed overlay used by queues that must
// not touch shared state until an explicit migration.
package backend

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// Backend is the abstraction every build target runs against: archive
// listing, artifact/log path resolution for both reads and writes, and
// recording a successful build back into file-state tracking.
//
// ArtifactWritePath and LogWritePath always resolve to a location owned by
// this backend (the overlay, for a Sandboxed backend). ArtifactReadPath may
// fall through to an underlying backend, so a Sandboxed read sees either
// its own overlaid artifact or the shared one beneath it.
type Backend interface {
	Archives() []*archive.Archive
	FindArchive(id uris.ArchiveId) (*archive.Archive, bool)
	ArtifactWritePath(id uris.ArchiveId, relPath, target string) (string, error)
	ArtifactReadPath(id uris.ArchiveId, relPath, target string) (string, error)
	LogWritePath(id uris.ArchiveId, relPath, target string) (string, error)
	MarkBuilt(id uris.ArchiveId, relPath, target string, now time.Time) error
}

// artifactRelPath is the path, relative to an archive's root, at which a
// given (rel_path, target) pair's .flams file and log live (spec §6
// on-disk layout: ".flams/<rel_path>/<basename>.flams" plus
// "<target>.log" alongside it). The target name is folded into the
// basename since, unlike the spec's single-target illustration, a real
// format may register more than one target per source file and each needs
// its own artifact.
func artifactRelPath(relPath, target string) string {
	dir := filepath.Dir(relPath)
	base := filepath.Base(relPath)
	return filepath.Join(".flams", dir, fmt.Sprintf("%s.%s.flams", base, target))
}

func logRelPath(relPath, target string) string {
	dir := filepath.Dir(relPath)
	return filepath.Join(".flams", dir, target+".log")
}

// Global is the canonical, on-disk backend: a fixed set of archives
// discovered once at startup, with reads and writes both resolving
// directly into each archive's own .flams directory.
type Global struct {
	mathHub string

	mu       sync.RWMutex
	archives map[string]*archive.Archive // keyed by ID().String()
}

// NewGlobal wraps a slice of already-discovered archives (e.g. the output
// of archive.Discover) into a Global backend.
func NewGlobal(mathHub string, archives []*archive.Archive) *Global {
	byID := make(map[string]*archive.Archive, len(archives))
	for _, a := range archives {
		byID[a.ID().String()] = a
	}
	return &Global{mathHub: mathHub, archives: byID}
}

// MathHub returns the root directory archives were discovered under.
func (g *Global) MathHub() string { return g.mathHub }

// Archives returns every archive the backend knows about.
func (g *Global) Archives() []*archive.Archive {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*archive.Archive, 0, len(g.archives))
	for _, a := range g.archives {
		out = append(out, a)
	}
	return out
}

// FindArchive looks up an archive by id.
func (g *Global) FindArchive(id uris.ArchiveId) (*archive.Archive, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.archives[id.String()]
	return a, ok
}

// AddArchive registers a newly-discovered or newly-cloned archive.
func (g *Global) AddArchive(a *archive.Archive) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archives[a.ID().String()] = a
}

func (g *Global) resolvePath(id uris.ArchiveId, rel string) (string, error) {
	a, ok := g.FindArchive(id)
	if !ok {
		return "", fmt.Errorf("backend: unknown archive %s", id)
	}
	if a.Path() == "" {
		return "", fmt.Errorf("backend: archive %s has no local path", id)
	}
	return filepath.Join(a.Path(), rel), nil
}

// ArtifactWritePath resolves to the archive's own .flams directory.
func (g *Global) ArtifactWritePath(id uris.ArchiveId, relPath, target string) (string, error) {
	return g.resolvePath(id, artifactRelPath(relPath, target))
}

// ArtifactReadPath is identical to ArtifactWritePath for a Global backend:
// there is nothing beneath it to fall through to.
func (g *Global) ArtifactReadPath(id uris.ArchiveId, relPath, target string) (string, error) {
	return g.ArtifactWritePath(id, relPath, target)
}

// LogWritePath resolves to the archive's own .flams directory.
func (g *Global) LogWritePath(id uris.ArchiveId, relPath, target string) (string, error) {
	return g.resolvePath(id, logRelPath(relPath, target))
}

// MarkBuilt records a successful build against the archive's own file
// state (internal/archive's scan-time tracking), via archive.MarkBuilt.
func (g *Global) MarkBuilt(id uris.ArchiveId, relPath, target string, now time.Time) error {
	a, ok := g.FindArchive(id)
	if !ok {
		return fmt.Errorf("backend: unknown archive %s", id)
	}
	archive.MarkBuilt(a, relPath, target, now)
	return nil
}
