// Package queue implements the queue state machine (component E): a task
// map, the idle/running state transition, the two-pass topological sort,
// and the bounded change-event stream. The scheduler (internal/scheduler)
// drives a Queue's Running state via GetNext/CompleteStep; this package
// owns the state itself and the invariants around it.
package queue

import (
	"sync"

	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// State is the queue's own top-level state: Idle (just a flat task list) or
// Running (sorted into queued/blocked/running/done/failed vectors).
type State uint8

const (
	StateIdle State = iota
	StateRunning
)

// TaskMap holds every task ever enqueued into this queue, keyed by its Ref,
// plus the pending-dependents index used to resolve cross-archive physical
// dependencies lazily as matching tasks show up (spec §3 "Queue").
//
// ArchiveId holds its path steps in a slice, which Go will not let us use
// directly as (part of) a map key or compare with ==; every key derived
// from a Ref or an archive id below goes through a string form instead.
type TaskMap struct {
	mu         sync.RWMutex
	byRef      map[string]*task.BuildTask
	pending    map[string][]pendingEntry
	nextID     uint64
	totalSteps int
}

// refKey is the string form of a task.Ref used as the byRef map key.
func refKey(ref task.Ref) string {
	return ref.Archive.String() + "\x1f" + ref.RelPath + "\x1f" + ref.Format
}

// depKeyOf is the string form of a (archive, rel_path) pair used as the
// pending map key. It deliberately omits format/target: a source file has
// exactly one detected format (Invariant S1), so the pair is enough to
// find the task that will eventually produce it.
func depKeyOf(archiveID uris.ArchiveId, relPath string) string {
	return archiveID.String() + "\x1f" + relPath
}

type pendingEntry struct {
	task      *task.BuildTask
	stepIndex int
}

func newTaskMap() *TaskMap {
	return &TaskMap{
		byRef:   make(map[string]*task.BuildTask),
		pending: make(map[string][]pendingEntry),
		nextID:  1,
	}
}

// findByArchiveRelPath scans the map for a task matching (archiveID,
// relPath), ignoring format. Called only while holding mu.
func (m *TaskMap) findByArchiveRelPath(archiveID uris.ArchiveId, relPath string) (*task.BuildTask, bool) {
	for _, t := range m.byRef {
		if t.RelPath == relPath && t.Archive.Equal(archiveID) {
			return t, true
		}
	}
	return nil, false
}

// Get returns the task for ref, if present.
func (m *TaskMap) Get(ref task.Ref) (*task.BuildTask, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byRef[refKey(ref)]
	return t, ok
}

// All returns a snapshot slice of every task in the map.
func (m *TaskMap) All() []*task.BuildTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*task.BuildTask, 0, len(m.byRef))
	for _, t := range m.byRef {
		out = append(out, t)
	}
	return out
}

// Len returns the number of distinct tasks held.
func (m *TaskMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byRef)
}

// Queue owns one task map and either an Idle or Running state. A Queue is
// safe for concurrent use.
type Queue struct {
	ID      uint64
	Name    string
	Backend any // narrowed to backend.Backend or *backend.Sandboxed by callers

	mu      sync.RWMutex
	state   State
	tasks   *TaskMap
	running *RunningState
	events  *EventBus
}

// New constructs an Idle queue with the given id and display name.
func New(id uint64, name string, backend any) *Queue {
	return &Queue{
		ID:      id,
		Name:    name,
		Backend: backend,
		state:   StateIdle,
		tasks:   newTaskMap(),
		events:  newEventBus(64),
	}
}

// Tasks returns the queue's task map.
func (q *Queue) Tasks() *TaskMap { return q.tasks }

// State returns the queue's current top-level state.
func (q *Queue) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.state
}

// Events returns the queue's change-event listener endpoint.
func (q *Queue) Events() *EventBus { return q.events }

// DoneTasks returns a snapshot of every task the queue has finished
// building. It is empty for an Idle queue.
func (q *Queue) DoneTasks() []*task.BuildTask {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.running == nil {
		return nil
	}
	out := make([]*task.BuildTask, len(q.running.Done))
	copy(out, q.running.Done)
	return out
}
