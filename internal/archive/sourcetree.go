package archive

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/registry"
)

// FileStateKind is the closed enum of per-(file,target) build states.
type FileStateKind uint8

const (
	// FileStateNew means no artifact exists yet for this target.
	FileStateNew FileStateKind = iota
	// FileStateStale means an artifact exists but is older than the
	// source file's mtime.
	FileStateStale
	// FileStateUpToDate means the artifact is at least as new as the
	// source.
	FileStateUpToDate
	// FileStateDeleted means an artifact exists but the source file has
	// vanished from disk. The state is kept, not removed, since
	// downstream tooling may still reference its URI.
	FileStateDeleted
)

func (k FileStateKind) String() string {
	switch k {
	case FileStateNew:
		return "New"
	case FileStateStale:
		return "Stale"
	case FileStateUpToDate:
		return "UpToDate"
	case FileStateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// FileState is the state of one (file, target) pair. Since carries the
// last-built timestamp for UpToDate and the source file's modification time
// for Stale; it is the zero time for New and for Deleted (whose last_built
// predates deletion and is not tracked).
type FileState struct {
	Kind  FileStateKind
	Since time.Time
}

// FileStateSummary aggregates FileState counts over a subtree.
type FileStateSummary struct {
	New, Stale, UpToDate, Deleted int
}

// Add folds one FileState into the summary.
func (s *FileStateSummary) Add(fs FileState) {
	switch fs.Kind {
	case FileStateNew:
		s.New++
	case FileStateStale:
		s.Stale++
	case FileStateUpToDate:
		s.UpToDate++
	case FileStateDeleted:
		s.Deleted++
	}
}

// Total returns the sum of all counts in the summary.
func (s FileStateSummary) Total() int {
	return s.New + s.Stale + s.UpToDate + s.Deleted
}

// SourceFile is a leaf of the source tree: one file on disk with a detected
// format and a FileState per target of that format (spec Invariant S1).
type SourceFile struct {
	Name    string
	RelPath string
	Format  string
	States  map[string]FileState // keyed by target name
}

// SourceDir is an interior node of the source tree.
type SourceDir struct {
	Name     string
	Children []FileLike
}

// FileLike is either a SourceDir or a SourceFile. Exactly one of Dir/File is
// non-nil, mirroring the teacher's tagged-union-over-struct idiom.
type FileLike struct {
	Dir  *SourceDir
	File *SourceFile
}

// Summary walks d and aggregates FileState counts for targetName across
// every leaf.
func (d *SourceDir) Summary(targetName string) FileStateSummary {
	var sum FileStateSummary
	d.walk(func(f *SourceFile) {
		if fs, ok := f.States[targetName]; ok {
			sum.Add(fs)
		}
	})
	return sum
}

func (d *SourceDir) walk(visit func(*SourceFile)) {
	for _, c := range d.Children {
		if c.File != nil {
			visit(c.File)
		}
		if c.Dir != nil {
			c.Dir.walk(visit)
		}
	}
}

// Leaves returns every SourceFile in the subtree, depth-first.
func (d *SourceDir) Leaves() []*SourceFile {
	var out []*SourceFile
	d.walk(func(f *SourceFile) { out = append(out, f) })
	return out
}

// encodeTree gob-encodes a SourceDir's children for persistence to
// .flams/ls_f.db, the Go-idiomatic substitute for the original's bincode
// encoding (no pack example imports a bincode-equivalent; gob is the
// standard-library serialization the rest of the corpus reaches for when it
// needs a process-private binary format).
func encodeTree(children []FileLike) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(children); err != nil {
		return nil, fmt.Errorf("archive: encoding ls_f.db: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeTree is the inverse of encodeTree.
func decodeTree(r io.Reader) ([]FileLike, error) {
	var children []FileLike
	if err := gob.NewDecoder(r).Decode(&children); err != nil {
		return nil, fmt.Errorf("archive: decoding ls_f.db: %w", err)
	}
	return children, nil
}

// detectFormat returns the SourceFormat name registered for a file
// extension, or "" if none matches.
func detectFormat(ext string) (name string, targets []string, ok bool) {
	f, ok := registry.FormatByExt(ext)
	if !ok {
		return "", nil, false
	}
	targetNames := make([]string, 0, len(f.Targets))
	for _, t := range f.Targets {
		targetNames = append(targetNames, t.String())
	}
	return f.Name, targetNames, true
}
