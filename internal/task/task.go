// Package task implements the BuildTask/BuildStep data model: the
// dependency graph node type that a queue schedules and a scheduler
// executes. A BuildTask is immutable except for its steps' per-field state,
// which is protected by a lock on each individual step rather than a single
// task-wide lock, so independent steps of independent tasks never contend.
package task

import (
	"fmt"
	"sync"

	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
	"github.com/rs/xid"
)

// State is the closed enum of per-step lifecycle states (spec Invariant
// D3): None -> {Queued|Blocked} -> Running -> {Done|Failed}. Done and
// Failed are terminal; Blocked and Queued may flip back and forth while a
// queue is being sorted.
type State uint8

const (
	StateNone State = iota
	StateQueued
	StateBlocked
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateQueued:
		return "Queued"
	case StateBlocked:
		return "Blocked"
	case StateRunning:
		return "Running"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is a terminal state (Done or Failed).
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Ref identifies a BuildTask within a queue's task map.
type Ref struct {
	Archive uris.ArchiveId
	RelPath string
	Format  string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s[%s]", r.Archive, r.RelPath, r.Format)
}

// StepRef is a back-pointer to one step of one task, used in Dependency and
// in a step's dependents list.
type StepRef struct {
	Task      *BuildTask
	StepIndex int
}

// DependencyKind discriminates the three forms a Dependency can take.
type DependencyKind uint8

const (
	// DependencyPhysical names a (archive, rel_path, target) triple that
	// has not yet been matched to a task in this queue.
	DependencyPhysical DependencyKind = iota
	// DependencyLogical names a module URI that some step, not yet
	// known, must produce.
	DependencyLogical
	// DependencyResolved is a direct pointer to another step, reached
	// once resolution succeeds.
	DependencyResolved
)

// Dependency is the tagged union described in spec §3 "Build tasks".
// Exactly one of the kind-specific fields is meaningful, selected by Kind.
type Dependency struct {
	Kind   DependencyKind
	Strict bool

	// DependencyPhysical
	PhysArchive uris.ArchiveId
	PhysPath    string
	PhysTarget  string

	// DependencyLogical
	Module uris.ModuleURI

	// DependencyResolved
	Resolved StepRef
}

// PhysicalDependency constructs an unresolved physical dependency.
func PhysicalDependency(archive uris.ArchiveId, relPath, target string, strict bool) Dependency {
	return Dependency{Kind: DependencyPhysical, Strict: strict, PhysArchive: archive, PhysPath: relPath, PhysTarget: target}
}

// LogicalDependency constructs an unresolved logical dependency.
func LogicalDependency(module uris.ModuleURI, strict bool) Dependency {
	return Dependency{Kind: DependencyLogical, Strict: strict, Module: module}
}

// ResolvedDependency constructs a direct pointer dependency.
func ResolvedDependency(task *BuildTask, stepIndex int, strict bool) Dependency {
	return Dependency{Kind: DependencyResolved, Strict: strict, Resolved: StepRef{Task: task, StepIndex: stepIndex}}
}

// TargetedDependency pairs a Dependency with the name of the step it
// attaches to, so a format's dependencies callback can address any step of
// a multi-step task, not just the first (spec §3: "may append dependencies
// to any step"). Target matches BuildStep.Target; an empty Target attaches
// to the task's first step.
type TargetedDependency struct {
	Target string
	Dependency
}

// BuildStep is one stage of a BuildTask's target chain (e.g. extract, then
// check). Its mutable fields are behind mu so the queue, the scheduler and
// the dependency resolver can all touch different steps of different tasks
// concurrently.
type BuildStep struct {
	Target string

	mu         sync.RWMutex
	state      State
	requires   []Dependency
	dependents []StepRef
}

// NewBuildStep constructs a step in its initial None state.
func NewBuildStep(target string) *BuildStep {
	return &BuildStep{Target: target, state: StateNone}
}

// State returns the step's current state.
func (s *BuildStep) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState transitions the step's state. Callers are responsible for only
// requesting transitions permitted by Invariant D3; SetState itself does
// not validate the transition, matching the teacher's style of trusting
// single-writer internal callers over runtime assertions.
func (s *BuildStep) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Requires returns a snapshot of the step's dependency list.
func (s *BuildStep) Requires() []Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Dependency, len(s.requires))
	copy(out, s.requires)
	return out
}

// AddRequirement appends a dependency to the step's requires list.
func (s *BuildStep) AddRequirement(d Dependency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requires = append(s.requires, d)
}

// ReplaceRequirement overwrites the dependency at index i, used when a
// Physical or Logical dependency resolves into a Resolved one.
func (s *BuildStep) ReplaceRequirement(i int, d Dependency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requires[i] = d
}

// Dependents returns a snapshot of the step's dependents list.
func (s *BuildStep) Dependents() []StepRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StepRef, len(s.dependents))
	copy(out, s.dependents)
	return out
}

// AddDependent records that (task, stepIndex) depends on s.
func (s *BuildStep) AddDependent(ref StepRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dependents = append(s.dependents, ref)
}

// AllSatisfied reports whether every requirement of s is satisfiable right
// now: Resolved deps, strict or not, must point at a Done step;
// Physical/Logical deps (still unresolved) block readiness.
func (s *BuildStep) AllSatisfied() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.requires {
		if d.Kind != DependencyResolved {
			return false
		}
		depState := d.Resolved.Task.Steps[d.Resolved.StepIndex].State()
		if d.Strict {
			if depState != StateDone {
				return false
			}
		} else if depState != StateDone {
			return false
		}
	}
	return true
}

// BlocksParallelism reports whether s has a strict dependency that is
// currently Running, which forbids s itself from running concurrently with
// it (spec §3: "strict=true forbids parallel execution with the dependency
// even after it becomes Running").
func (s *BuildStep) BlocksParallelism() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.requires {
		if d.Kind == DependencyResolved && d.Strict {
			if d.Resolved.Task.Steps[d.Resolved.StepIndex].State() == StateRunning {
				return true
			}
		}
	}
	return false
}

// BuildTask is (archive, rel_path, format) plus its ordered steps. Aside
// from step state, a BuildTask is immutable once created.
type BuildTask struct {
	Archive uris.ArchiveId
	RelPath string
	Format  string
	Steps   []*BuildStep

	// RunID distinguishes this in-memory BuildTask instance from any
	// earlier one with the same Ref. The on-disk log a run writes to is
	// keyed by (archive, rel_path, target) and gets overwritten on every
	// rebuild, but the log bus (internal/logbus) keeps every run's lines
	// in memory; RunID is the field that lets a listener tell two runs of
	// the same file apart after a requeue or process restart.
	RunID string

	mu   sync.Mutex
	next int // index of the next unstarted step
}

// New constructs a BuildTask with steps named by targets, in order.
func New(archive uris.ArchiveId, relPath, format string, targets []string) *BuildTask {
	steps := make([]*BuildStep, len(targets))
	for i, t := range targets {
		steps[i] = NewBuildStep(t)
	}
	return &BuildTask{Archive: archive, RelPath: relPath, Format: format, Steps: steps, RunID: xid.New().String()}
}

// Ref returns the task's identifying key.
func (t *BuildTask) Ref() Ref {
	return Ref{Archive: t.Archive, RelPath: t.RelPath, Format: t.Format}
}

// NextStep returns the index of the next step to run, or -1 if all steps
// have terminal state.
func (t *BuildTask) NextStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.next < len(t.Steps) {
		if !t.Steps[t.next].State().Terminal() {
			return t.next
		}
		t.next++
	}
	return -1
}

// AdvancePast marks that the scheduler is done with step i and the task's
// internal cursor should move past it.
func (t *BuildTask) AdvancePast(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.next <= i {
		t.next = i + 1
	}
}

// TaskState computes the task's aggregate state from its steps: Failed if
// any step failed, Done if every step is Done, Running if any step is
// Running, Queued if any is Queued, Blocked if any is Blocked, else None.
func (t *BuildTask) TaskState() State {
	allDone := true
	for _, s := range t.Steps {
		switch s.State() {
		case StateFailed:
			return StateFailed
		case StateRunning:
			return StateRunning
		}
		if s.State() != StateDone {
			allDone = false
		}
	}
	if allDone {
		return StateDone
	}
	for _, s := range t.Steps {
		if s.State() == StateQueued {
			return StateQueued
		}
	}
	for _, s := range t.Steps {
		if s.State() == StateBlocked {
			return StateBlocked
		}
	}
	return StateNone
}

// FailFrom marks step i and every later step of t as Failed, per spec §7
// TargetFailed propagation.
func (t *BuildTask) FailFrom(i int) {
	for j := i; j < len(t.Steps); j++ {
		t.Steps[j].SetState(StateFailed)
	}
}
