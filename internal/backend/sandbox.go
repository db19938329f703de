package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// RepoKind discriminates the two ways a Sandboxed backend can shadow an
// archive (spec §4.G SandboxedRepository).
type RepoKind uint8

const (
	// RepoCopy shadows an existing local archive without cloning.
	RepoCopy RepoKind = iota
	// RepoGit overlays a fresh clone of a remote Git repository.
	RepoGit
)

// SandboxedRepository is one archive a Sandboxed backend has shadowed.
type SandboxedRepository struct {
	Kind      RepoKind
	ArchiveID uris.ArchiveId

	// RepoGit only.
	Branch    string
	Commit    string
	RemoteURL string
}

// BuiltEntry records that Sandboxed.MarkBuilt was called for a given
// (archive, rel_path, target), for a later Migrate call to promote.
type BuiltEntry struct {
	ArchiveID uris.ArchiveId
	RelPath   string
	Target    string
	BuiltAt   time.Time
}

// Sandboxed overlays a queue-local directory on top of an underlying
// Backend (almost always a *Global). Writes always land in the overlay;
// reads check the overlay first and fall through to the underlying backend
// otherwise (spec §4.G).
type Sandboxed struct {
	underlying Backend
	overlayDir string
	token      string

	mu    sync.RWMutex
	repos map[string]*SandboxedRepository // keyed by ArchiveId.String()
	built []BuiltEntry
}

// NewSandboxed creates a fresh overlay directory under baseDir, named with
// a random token, wrapping underlying for fallthrough reads.
func NewSandboxed(underlying Backend, baseDir string) (*Sandboxed, error) {
	token := uuid.New().String()
	dir := filepath.Join(baseDir, token)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backend: creating sandbox overlay %s: %w", dir, err)
	}
	return &Sandboxed{
		underlying: underlying,
		overlayDir: dir,
		token:      token,
		repos:      make(map[string]*SandboxedRepository),
	}, nil
}

// OverlayDir returns the sandbox's overlay root on disk.
func (s *Sandboxed) OverlayDir() string { return s.overlayDir }

// Archives returns the underlying backend's archives; shadowed archives
// still appear in this listing (spec §4.G: "appear with their overlay
// path" is a presentation concern left to the caller, which can check
// IsShadowed/overlay path resolution below).
func (s *Sandboxed) Archives() []*archive.Archive { return s.underlying.Archives() }

// FindArchive delegates to the underlying backend.
func (s *Sandboxed) FindArchive(id uris.ArchiveId) (*archive.Archive, bool) {
	return s.underlying.FindArchive(id)
}

// CopyRepo records that id is shadowed by a plain overlay copy, with no
// Git metadata (spec §4.G SandboxedRepository::Copy).
func (s *Sandboxed) CopyRepo(id uris.ArchiveId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[id.String()] = &SandboxedRepository{Kind: RepoCopy, ArchiveID: id}
}

// GitRepo clones remoteURL at branch/commit into the overlay, shelling out
// to the system git binary (no pack example vendors a pure-Go git client;
// gangplank's own os/exec.CommandContext pattern for external tooling is
// the grounding here).
func (s *Sandboxed) GitRepo(ctx context.Context, id uris.ArchiveId, branch, commit, remoteURL string) error {
	dest := filepath.Join(s.overlayDir, id.String())
	args := []string{"clone", "--branch", branch, "--depth", "1", remoteURL, dest}
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("backend: git clone %s: %w: %s", remoteURL, err, out)
	}
	if commit != "" {
		checkout := exec.CommandContext(ctx, "git", "-C", dest, "checkout", commit)
		if out, err := checkout.CombinedOutput(); err != nil {
			return fmt.Errorf("backend: git checkout %s: %w: %s", commit, err, out)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[id.String()] = &SandboxedRepository{
		Kind: RepoGit, ArchiveID: id, Branch: branch, Commit: commit, RemoteURL: remoteURL,
	}
	return nil
}

// Repos returns a snapshot of every archive this sandbox shadows.
func (s *Sandboxed) Repos() []SandboxedRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SandboxedRepository, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, *r)
	}
	return out
}

func (s *Sandboxed) overlayPath(id uris.ArchiveId, rel string) string {
	return filepath.Join(s.overlayDir, id.String(), rel)
}

// ArtifactWritePath always resolves into the overlay.
func (s *Sandboxed) ArtifactWritePath(id uris.ArchiveId, relPath, target string) (string, error) {
	p := s.overlayPath(id, artifactRelPath(relPath, target))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("backend: creating overlay dir for %s: %w", p, err)
	}
	return p, nil
}

// ArtifactReadPath returns the overlay's copy if one exists there,
// otherwise falls through to the underlying backend.
func (s *Sandboxed) ArtifactReadPath(id uris.ArchiveId, relPath, target string) (string, error) {
	p := s.overlayPath(id, artifactRelPath(relPath, target))
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return s.underlying.ArtifactReadPath(id, relPath, target)
}

// LogWritePath always resolves into the overlay.
func (s *Sandboxed) LogWritePath(id uris.ArchiveId, relPath, target string) (string, error) {
	p := s.overlayPath(id, logRelPath(relPath, target))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("backend: creating overlay dir for %s: %w", p, err)
	}
	return p, nil
}

// MarkBuilt records the build in the sandbox's own pending list rather than
// the underlying backend's file state; Migrate is what eventually promotes
// it (spec §4.F migrate step iii).
func (s *Sandboxed) MarkBuilt(id uris.ArchiveId, relPath, target string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.built = append(s.built, BuiltEntry{ArchiveID: id, RelPath: relPath, Target: target, BuiltAt: now})
	return nil
}

// BuiltEntries returns every MarkBuilt call recorded so far, for Migrate to
// consume.
func (s *Sandboxed) BuiltEntries() []BuiltEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BuiltEntry, len(s.built))
	copy(out, s.built)
	return out
}

var _ Backend = (*Global)(nil)
var _ Backend = (*Sandboxed)(nil)
