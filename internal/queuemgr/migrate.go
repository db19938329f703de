package queuemgr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/queue"
	"github.com/sirupsen/logrus"
)

// MigrateResult reports per-item outcomes of a Migrate call, since spec
// §4.F requires that a partial failure in step (ii) "leave both sides
// readable and do not roll back earlier successes".
type MigrateResult struct {
	Promoted      int
	PromotedRepos int
	Failed        []error
}

// Migrate applies spec §4.F's five migration steps to queueID's sandboxed
// backend: it requires the queue be Idle or Drained, copies every built
// artifact from the overlay into the global backend, marks the
// corresponding file state UpToDate(now), and promotes any cloned Git
// repositories into the main MathHub tree.
func (m *Manager) Migrate(queueID uint64) (MigrateResult, error) {
	q, ok := m.GetQueue(queueID)
	if !ok {
		return MigrateResult{}, fmt.Errorf("queuemgr: no such queue %d", queueID)
	}
	if q.State() == queue.StateRunning && !q.IsDrained() {
		return MigrateResult{}, fmt.Errorf("queuemgr: queue %d is Running and not drained", queueID)
	}

	sb, ok := q.Backend.(*backend.Sandboxed)
	if !ok {
		return MigrateResult{}, fmt.Errorf("queuemgr: queue %d is not backed by a sandbox", queueID)
	}
	global, ok := m.globalFor(queueID)
	if !ok {
		return MigrateResult{}, fmt.Errorf("queuemgr: sandbox for queue %d has no recorded Global backend", queueID)
	}

	var result MigrateResult
	now := time.Now()
	for _, built := range sb.BuiltEntries() {
		if err := promoteArtifact(sb, global, built, now); err != nil {
			result.Failed = append(result.Failed, err)
			continue
		}
		result.Promoted++
	}

	for _, repo := range sb.Repos() {
		if repo.Kind != backend.RepoGit {
			continue
		}
		if err := promoteRepo(sb, global, repo); err != nil {
			result.Failed = append(result.Failed, err)
			continue
		}
		result.PromotedRepos++
	}

	return result, nil
}

// promoteArtifact copies one built artifact (and its log, if present) from
// the sandbox overlay into the global backend's own path, atomically per
// file via a temp-then-rename, and marks the file UpToDate(now).
func promoteArtifact(sb *backend.Sandboxed, global *backend.Global, built backend.BuiltEntry, now time.Time) error {
	srcArtifact, err := sb.ArtifactReadPath(built.ArchiveID, built.RelPath, built.Target)
	if err != nil {
		return fmt.Errorf("queuemgr: resolving overlay artifact for %s/%s: %w", built.ArchiveID, built.RelPath, err)
	}
	dstArtifact, err := global.ArtifactWritePath(built.ArchiveID, built.RelPath, built.Target)
	if err != nil {
		return fmt.Errorf("queuemgr: resolving global artifact path for %s/%s: %w", built.ArchiveID, built.RelPath, err)
	}
	if err := copyFileAtomic(srcArtifact, dstArtifact); err != nil {
		return fmt.Errorf("queuemgr: promoting artifact %s: %w", srcArtifact, err)
	}

	if srcLog, err := sb.LogWritePath(built.ArchiveID, built.RelPath, built.Target); err == nil {
		if dstLog, err := global.LogWritePath(built.ArchiveID, built.RelPath, built.Target); err == nil {
			_ = copyFileAtomic(srcLog, dstLog) // best-effort: a missing log is not a migration failure
		}
	}

	return global.MarkBuilt(built.ArchiveID, built.RelPath, built.Target, now)
}

func copyFileAtomic(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// promoteRepo moves a cloned Git overlay into the main MathHub tree and
// registers it as a first-class Global archive.
func promoteRepo(sb *backend.Sandboxed, global *backend.Global, repo backend.SandboxedRepository) error {
	src := filepath.Join(sb.OverlayDir(), repo.ArchiveID.String())
	dst := filepath.Join(global.MathHub(), filepath.FromSlash(repo.ArchiveID.String()))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("queuemgr: preparing MathHub destination for %s: %w", repo.ArchiveID, err)
	}
	if err := moveDir(src, dst); err != nil {
		return fmt.Errorf("queuemgr: promoting git repo %s: %w", repo.ArchiveID, err)
	}

	discovered := archive.Discover([]string{dst}, logrus.NewEntry(logrus.StandardLogger()))
	for _, a := range discovered {
		if a.ID().Equal(repo.ArchiveID) {
			global.AddArchive(a)
			return nil
		}
	}
	return fmt.Errorf("queuemgr: promoted repo %s did not yield a discoverable manifest", repo.ArchiveID)
}

// moveDir renames src to dst, falling back to a recursive copy when they
// live on different filesystems (os.Rename's EXDEV case).
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
