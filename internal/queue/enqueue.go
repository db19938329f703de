package queue

import (
	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// FileCandidate is one source file under consideration for enqueuing,
// carrying just enough of its archive.SourceFile to decide which targets
// need building.
type FileCandidate struct {
	RelPath string
	States  map[string]archive.FileState // keyed by target name
}

// DependencyResolver computes a new task's initial (possibly unresolved)
// dependency list, standing in for the format's `dependencies` callback
// (spec §4.H: "SourceFormat { ..., dependencies: fn(&Backend, &BuildTask) }").
// Each returned TargetedDependency names the step it attaches to, so a
// multi-step task (e.g. extract then check) can receive a dependency on any
// of its steps, not just the first (spec §3: "may append dependencies to
// any step").
type DependencyResolver func(t *task.BuildTask) []task.TargetedDependency

func hasTarget(f FileCandidate, target string, staleOnly bool) bool {
	st, ok := f.States[target]
	if !ok {
		return false
	}
	if !staleOnly {
		return true
	}
	return st.Kind == archive.FileStateNew || st.Kind == archive.FileStateStale
}

func shouldQueue(f FileCandidate, targets []string, staleOnly bool) bool {
	for _, t := range targets {
		if hasTarget(f, t, staleOnly) {
			return true
		}
	}
	return false
}

// Enqueue inserts one task per matching file into the queue's task map
// (spec §3 "Queue"). A file matches if at least one of targets is present
// in its States map and, when staleOnly is set, that target's state is New
// or Stale. Re-enqueuing an existing (archive, rel_path, format) resets all
// of its steps to None rather than creating a duplicate task, mirroring the
// teacher's Entry::Occupied branch. It returns the number of files queued
// (new or reset).
func (q *Queue) Enqueue(archiveID uris.ArchiveId, format string, targets []string, staleOnly bool, files []FileCandidate, resolve DependencyResolver) int {
	m := q.tasks
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, f := range files {
		if !shouldQueue(f, targets, staleOnly) {
			continue
		}
		ref := task.Ref{Archive: archiveID, RelPath: f.RelPath, Format: format}
		if existing, ok := m.byRef[refKey(ref)]; ok {
			for _, s := range existing.Steps {
				s.SetState(task.StateNone)
			}
			count++
			continue
		}

		var matched []string
		for _, t := range targets {
			if hasTarget(f, t, staleOnly) {
				matched = append(matched, t)
			}
		}
		newTask := task.New(archiveID, f.RelPath, format, matched)
		m.totalSteps += len(newTask.Steps)
		m.byRef[refKey(ref)] = newTask
		count++

		if resolve != nil && len(newTask.Steps) > 0 {
			for _, td := range resolve(newTask) {
				stepIdx := 0
				if td.Target != "" {
					stepIdx = findStepByTarget(newTask, td.Target)
					if stepIdx < 0 {
						continue // resolver named a step this task doesn't have
					}
				}
				newTask.Steps[stepIdx].AddRequirement(td.Dependency)
			}
		}
		m.processDependencies(newTask)
	}
	return count
}

// processDependencies is the lazy cross-task dependency resolution
// protocol (spec §2 data flow: "E resolves deps pairwise within the task
// map; the rest remain unresolved until a future enqueue"). It is called
// once per newly-inserted task with the map lock already held.
//
// Two things happen:
//  1. Any task already waiting on newTask (registered in the pending index
//     under newTask's own Ref) gets its Physical dependency resolved now.
//  2. Each of newTask's own still-Physical dependencies is resolved
//     against an existing task if one matches, or registered into the
//     pending index to be resolved by a future Enqueue call.
func (m *TaskMap) processDependencies(newTask *task.BuildTask) {
	selfKey := depKeyOf(newTask.Archive, newTask.RelPath)
	if waiters, ok := m.pending[selfKey]; ok {
		delete(m.pending, selfKey)
		for _, w := range waiters {
			resolvePendingAgainst(w.task, w.stepIndex, newTask)
		}
	}

	for stepIdx, step := range newTask.Steps {
		for depIdx, d := range step.Requires() {
			if d.Kind != task.DependencyPhysical {
				continue
			}
			key := depKeyOf(d.PhysArchive, d.PhysPath)
			if key == selfKey {
				continue // a task never waits on itself
			}
			if depTask, ok := m.findByArchiveRelPath(d.PhysArchive, d.PhysPath); ok {
				if depStep := findStepByTarget(depTask, d.PhysTarget); depStep >= 0 {
					task.Link(newTask, stepIdx, depIdx, depTask, depStep, d.Strict)
					continue
				}
			}
			m.pending[key] = append(m.pending[key], pendingEntry{task: newTask, stepIndex: stepIdx})
		}
	}
}

// resolvePendingAgainst links every still-Physical requirement of
// waiter.Steps[stepIdx] that names target's Ref to a Resolved dependency,
// now that target exists in the map.
func resolvePendingAgainst(waiter *task.BuildTask, stepIdx int, target *task.BuildTask) {
	step := waiter.Steps[stepIdx]
	for depIdx, d := range step.Requires() {
		if d.Kind != task.DependencyPhysical {
			continue
		}
		if !d.PhysArchive.Equal(target.Archive) || d.PhysPath != target.RelPath {
			continue
		}
		if depStep := findStepByTarget(target, d.PhysTarget); depStep >= 0 {
			task.Link(waiter, stepIdx, depIdx, target, depStep, d.Strict)
		}
	}
}

func findStepByTarget(t *task.BuildTask, target string) int {
	for i, s := range t.Steps {
		if s.Target == target {
			return i
		}
	}
	return -1
}
