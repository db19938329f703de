package archive

import (
	"os"
	"path/filepath"
	"time"
)

const stateDBName = "ls_f.db"

// dotFlamsDir is the per-archive cache/output directory.
func dotFlamsDir(archivePath string) string { return filepath.Join(archivePath, ".flams") }

// Scan refreshes a's source tree by diffing the previously cached
// .flams/ls_f.db against a fresh walk of <path>/source, then writes the
// updated tree back. It takes a's write lock for its whole duration: spec
// §4.B requires the scanner to be re-entrant against concurrent *read*
// access, which the RWMutex provides by letting readers proceed between
// scans, not during one.
func Scan(a *Archive) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dbPath := filepath.Join(dotFlamsDir(a.path), stateDBName)
	var cached []FileLike
	if f, err := os.Open(dbPath); err == nil {
		children, derr := decodeTree(f)
		f.Close()
		if derr == nil {
			cached = children
		}
		// DecodingError per spec §7: the cached tree is treated as
		// absent and rebuilt from scratch.
	}

	sourceDir := filepath.Join(a.path, "source")
	updated, err := updateDir(sourceDir, "", cached, a.manifest)
	if err != nil {
		return err
	}
	a.tree = SourceDir{Name: "source", Children: updated}

	encoded, err := encodeTree(updated)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dotFlamsDir(a.path), 0o755); err != nil {
		return err
	}
	tmp := dbPath + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dbPath)
}

// updateDir is the per-directory diff step, ported from the teacher's
// recursive update algorithm: existing entries are matched by name and
// carried forward (with a state transition if stale), new entries are
// inserted as New, and entries no longer present on disk survive as
// Deleted rather than being dropped.
func updateDir(dir, relPrefix string, old []FileLike, manifest *Manifest) ([]FileLike, error) {
	if manifest.Ignores(relPrefix) {
		return nil, nil
	}

	oldByName := make(map[string]FileLike, len(old))
	for _, fl := range old {
		if fl.Dir != nil {
			oldByName[fl.Dir.Name] = fl
		} else if fl.File != nil {
			oldByName[fl.File.Name] = fl
		}
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return markAllDeleted(old), nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(entries))
	var result []FileLike
	for _, e := range entries {
		seen[e.Name()] = true
		relPath := filepath.ToSlash(filepath.Join(relPrefix, e.Name()))
		if manifest.Ignores(relPath) {
			continue
		}
		if e.IsDir() {
			var children []FileLike
			if prev, ok := oldByName[e.Name()]; ok && prev.Dir != nil {
				children = prev.Dir.Children
			}
			updated, err := updateDir(filepath.Join(dir, e.Name()), relPath, children, manifest)
			if err != nil {
				return nil, err
			}
			result = append(result, FileLike{Dir: &SourceDir{Name: e.Name(), Children: updated}})
			continue
		}

		ext := filepath.Ext(e.Name())
		formatName, targets, ok := detectFormat(ext)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if prev, ok := oldByName[e.Name()]; ok && prev.File != nil {
			sf := prev.File
			sf.RelPath = relPath
			for _, target := range targets {
				if _, known := sf.States[target]; !known {
					sf.States[target] = FileState{Kind: FileStateNew}
				}
			}
			refreshStaleness(sf, info.ModTime())
			result = append(result, FileLike{File: sf})
			continue
		}

		states := make(map[string]FileState, len(targets))
		for _, target := range targets {
			states[target] = FileState{Kind: FileStateNew}
		}
		result = append(result, FileLike{File: &SourceFile{
			Name:    e.Name(),
			RelPath: relPath,
			Format:  formatName,
			States:  states,
		}})
	}

	for name, fl := range oldByName {
		if seen[name] {
			continue
		}
		result = append(result, markDeleted(fl))
	}

	return result, nil
}

// refreshStaleness moves any UpToDate target whose last_built predates
// mtime to Stale. Invariant S2 (strictly monotone last_built) is preserved
// because we only ever raise Since forward.
func refreshStaleness(sf *SourceFile, mtime time.Time) {
	for target, fs := range sf.States {
		if fs.Kind == FileStateUpToDate && mtime.After(fs.Since) {
			sf.States[target] = FileState{Kind: FileStateStale, Since: mtime}
		}
	}
}

func markDeleted(fl FileLike) FileLike {
	if fl.File != nil {
		for target := range fl.File.States {
			fl.File.States[target] = FileState{Kind: FileStateDeleted}
		}
		return fl
	}
	return FileLike{Dir: &SourceDir{Name: fl.Dir.Name, Children: markAllDeleted(fl.Dir.Children)}}
}

func markAllDeleted(all []FileLike) []FileLike {
	out := make([]FileLike, len(all))
	for i, fl := range all {
		out[i] = markDeleted(fl)
	}
	return out
}

// MarkBuilt records a successful build of relPath for target, setting its
// state to UpToDate(now), and writes the updated tree back to
// .flams/ls_f.db (best effort: a write error leaves only the in-memory
// state updated). Callers hold no lock across the call; MarkBuilt takes a's
// write lock itself.
func MarkBuilt(a *Archive, relPath, target string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.tree.Leaves() {
		if f.RelPath == relPath {
			f.States[target] = FileState{Kind: FileStateUpToDate, Since: now}
			if encoded, err := encodeTree(a.tree.Children); err == nil {
				dbPath := filepath.Join(dotFlamsDir(a.path), stateDBName)
				if os.MkdirAll(dotFlamsDir(a.path), 0o755) == nil && os.WriteFile(dbPath+".tmp", encoded, 0o644) == nil {
					_ = os.Rename(dbPath+".tmp", dbPath)
				}
			}
			return
		}
	}
}
