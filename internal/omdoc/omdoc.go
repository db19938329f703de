// Package omdoc defines the narration-tree types and the extractor/runner
// boundary named in spec §1 as out of scope: the sTeX/FTML extractor itself
// is a named-interface collaborator, never implemented here. What lives in
// this package is the shape its output takes (Document, OMDocResult) and
// the function-pointer types (BuildTargetRunner) the registry and scheduler
// depend on without ever importing an extractor implementation.
package omdoc

import (
	"github.com/FlexiFormal/FLAMS-sub003/internal/artifact"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
)

// ElementKind discriminates the narration tree node types a Document's
// children can hold, mirroring the flams_ontology::narration::DocumentElement
// enum this package is a port of the shape of (not its full content model).
type ElementKind uint8

const (
	ElementOther ElementKind = iota
	ElementSection
	ElementParagraph
	ElementProblem
	ElementDocumentReference
)

// FragmentRange identifies a byte range within a document's rendered HTML,
// resolved against the artifact store (component C) via LoadFragment.
type FragmentRange struct {
	Start, End int
}

// DocumentElement is the tagged union of narration-tree node kinds quiz
// traversal needs to distinguish. Exactly the fields relevant to Kind are
// meaningful, following the same convention as task.Dependency.
type DocumentElement struct {
	Kind     ElementKind
	Children []DocumentElement

	// ElementSection
	HasTitle bool
	Title    FragmentRange

	// ElementParagraph
	ParagraphURI   string
	ParagraphRange FragmentRange

	// ElementProblem
	ProblemURI      string
	ProblemRange    FragmentRange
	Solutions       FragmentRange
	HasProblemTitle bool
	ProblemTitle    FragmentRange
	Preconditions   []string
	Objectives      []string
	TotalPoints     float64
	GNotes          []FragmentRange

	// ElementDocumentReference
	RefTarget string // URI of the referenced document
}

// Document is a narration tree: a rendered artifact's logical structure,
// as produced by the extractor and consumed by quiz traversal and (in
// later milestones) the RDF/search indexers named out of scope here.
type Document struct {
	URI      string
	HasTitle bool
	Title    string
	Children []DocumentElement
}

// OMDocResult is the opaque output of one extractor invocation: the
// narration tree plus everything a BuildResult needs to hand to the
// artifact store.
type OMDocResult struct {
	Document   *Document
	HTML       string
	References []byte
	CSS        []artifact.CSS
}

// BuildResult is the tagged outcome of run_task (spec §4.I step 2):
// exactly one of Artifact or Err is meaningful. NewDeps is populated only
// on failure and is a future extension (spec: "New-deps-on-failure
// handling is a future extension and is not required").
type BuildResult struct {
	Log      string
	Artifact *artifact.Artifact
	NewDeps  []task.Dependency
	Err      error
}

// Ok reports whether the build succeeded.
func (r *BuildResult) Ok() bool { return r != nil && r.Err == nil }

// BuildTargetRunner is the function-pointer type named in spec §1's
// out-of-scope boundary: the core depends on this signature only, never on
// a concrete extractor. registry.BuildTarget.Run stores these, type-erased
// to registry.RunFunc, and internal/scheduler narrows them back.
type BuildTargetRunner func(be backend.Backend, t *task.BuildTask) (*BuildResult, error)
