// Package registry holds the process-global, append-only catalog of source
// formats, build targets and artifact types. Everything here is assembled by
// plugin initializers at startup and is never mutated again once Freeze is
// called (spec §4.H: "hotloading formats is a non-goal").
package registry

import (
	"fmt"
	"sync"

	"github.com/FlexiFormal/FLAMS-sub003/internal/intern"
)

// TargetId identifies a BuildTarget by its interned name.
type TargetId = intern.Symbol

// ArtifactTypeId identifies a BuildArtifactType by its interned name.
type ArtifactTypeId = intern.Symbol

// BuildArtifactType describes one kind of artifact a target can yield (full
// document, quiz bundle, RDF graph, ...).
type BuildArtifactType struct {
	Name        string
	Description string
}

// DependencyFunc computes the (possibly still-unresolved) dependencies of a
// build task for a given format. Each returned value is expected to narrow
// to a task.TargetedDependency, naming the step it attaches to so a
// multi-step task can get dependencies on any of its steps, not just the
// first. The task/backend types live in higher packages, so this is
// expressed in terms of `any` and narrowed by the caller; it keeps this
// package leaf-level and import-cycle-free.
type DependencyFunc func(backend any, task any) []any

// RunFunc executes a build target against a task and returns an opaque
// result plus an error. Like DependencyFunc, types are narrowed by callers
// in internal/scheduler.
type RunFunc func(backend any, task any) (any, error)

// SourceFormat is a named combination of file extensions and an ordered
// target chain (spec §4.H).
type SourceFormat struct {
	Name         string
	Description  string
	FileExts     []string
	Targets      []TargetId
	Dependencies DependencyFunc
}

// BuildTarget is one named step in a format's target chain.
type BuildTarget struct {
	Name        string
	Description string
	Dependson   []ArtifactTypeId
	Yields      []ArtifactTypeId
	Run         RunFunc
}

type registry struct {
	mu sync.RWMutex

	formats        map[intern.Symbol]*SourceFormat
	formatsByExt   map[string]*SourceFormat
	targets        map[TargetId]*BuildTarget
	artifactTypes  map[ArtifactTypeId]*BuildArtifactType
	frozen         bool
}

var global = &registry{
	formats:       make(map[intern.Symbol]*SourceFormat),
	formatsByExt:  make(map[string]*SourceFormat),
	targets:       make(map[TargetId]*BuildTarget),
	artifactTypes: make(map[ArtifactTypeId]*BuildArtifactType),
}

// errFrozen is returned by every registration function once Freeze has been
// called.
var errFrozen = fmt.Errorf("registry: already frozen, cannot register")

// RegisterFormat adds a SourceFormat under its interned name. Calling it
// twice for the same name, or after Freeze, is an error.
func RegisterFormat(f SourceFormat) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen {
		return errFrozen
	}
	sym := intern.Intern(f.Name)
	if _, exists := global.formats[sym]; exists {
		return fmt.Errorf("registry: format %q already registered", f.Name)
	}
	cp := f
	global.formats[sym] = &cp
	for _, ext := range f.FileExts {
		global.formatsByExt[ext] = &cp
	}
	return nil
}

// RegisterTarget adds a BuildTarget under its interned name.
func RegisterTarget(t BuildTarget) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen {
		return errFrozen
	}
	sym := intern.Intern(t.Name)
	if _, exists := global.targets[sym]; exists {
		return fmt.Errorf("registry: target %q already registered", t.Name)
	}
	cp := t
	global.targets[sym] = &cp
	return nil
}

// RegisterArtifactType adds a BuildArtifactType under its interned name.
func RegisterArtifactType(a BuildArtifactType) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen {
		return errFrozen
	}
	sym := intern.Intern(a.Name)
	if _, exists := global.artifactTypes[sym]; exists {
		return fmt.Errorf("registry: artifact type %q already registered", a.Name)
	}
	cp := a
	global.artifactTypes[sym] = &cp
	return nil
}

// Freeze forbids further registration. It is idempotent.
func Freeze() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.frozen = true
}

// FormatByName looks up a registered SourceFormat by name, O(1).
func FormatByName(name string) (*SourceFormat, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	f, ok := global.formats[intern.Intern(name)]
	return f, ok
}

// FormatByExt returns the SourceFormat whose FileExts contains ext, if any.
// ext is matched verbatim (callers pass the extension including its dot,
// e.g. ".tex", matching what the source scanner extracts via filepath.Ext).
func FormatByExt(ext string) (*SourceFormat, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	f, ok := global.formatsByExt[ext]
	return f, ok
}

// TargetByID looks up a registered BuildTarget by its interned id.
func TargetByID(id TargetId) (*BuildTarget, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	t, ok := global.targets[id]
	return t, ok
}

// TargetByName is a convenience wrapper interning name first.
func TargetByName(name string) (*BuildTarget, bool) {
	return TargetByID(intern.Intern(name))
}

// ArtifactTypeByID looks up a registered BuildArtifactType.
func ArtifactTypeByID(id ArtifactTypeId) (*BuildArtifactType, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	a, ok := global.artifactTypes[id]
	return a, ok
}

// AllFormats returns a snapshot slice of every registered format, for CLI
// listing and diagnostics.
func AllFormats() []*SourceFormat {
	global.mu.RLock()
	defer global.mu.RUnlock()
	out := make([]*SourceFormat, 0, len(global.formats))
	for _, f := range global.formats {
		out = append(out, f)
	}
	return out
}

// reset is test-only: it clears the global registry so each test file can
// register its own fixtures without leaking state across packages.
func reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.formats = make(map[intern.Symbol]*SourceFormat)
	global.formatsByExt = make(map[string]*SourceFormat)
	global.targets = make(map[TargetId]*BuildTarget)
	global.artifactTypes = make(map[ArtifactTypeId]*BuildArtifactType)
	global.frozen = false
}

// ResetForTest clears the global registry. It exists so packages that
// consume the registry (internal/scheduler) can set up isolated fixtures
// in their own tests without leaking state across test binaries.
func ResetForTest() { reset() }
