// Package queuemgr implements the queue manager (component F): the
// process-wide registry of queues, the sandbox shadow registry that
// enforces Invariant G1, and migration of a sandboxed queue's artifacts
// into the global backend.
package queuemgr

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/queue"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// entry is everything the manager tracks about one queue beyond the queue
// object itself. global is set only for sandboxed queues, recorded at
// NewSandboxedQueue time so Migrate never needs to reconstruct a
// Sandboxed's ancestry from the Backend interface alone.
type entry struct {
	q      *queue.Queue
	owner  string
	global *backend.Global
}

// Manager is the process-wide singleton holding every queue, keyed by its
// monotonically-increasing id (spec §4.F).
type Manager struct {
	nextID atomic.Uint64

	mu      sync.RWMutex
	queues  map[uint64]*entry
	shadows map[string]uint64 // archive id -> queue id, enforces Invariant G1
}

// NewManager constructs an empty Manager with ids starting at 1.
func NewManager() *Manager {
	m := &Manager{
		queues:  make(map[uint64]*entry),
		shadows: make(map[string]uint64),
	}
	m.nextID.Store(0)
	return m
}

// NewQueue allocates a fresh id and registers a new Idle queue backed by
// be, owned by owner.
func (m *Manager) NewQueue(name string, be backend.Backend, owner string) *queue.Queue {
	id := m.nextID.Add(1)
	q := queue.New(id, name, be)

	m.mu.Lock()
	m.queues[id] = &entry{q: q, owner: owner}
	m.mu.Unlock()
	return q
}

// NewSandboxedQueue allocates a fresh id, constructs a Sandboxed backend
// overlaying global at overlayBaseDir, and registers a new Idle queue
// backed by it, owned by owner.
func (m *Manager) NewSandboxedQueue(name string, global *backend.Global, overlayBaseDir, owner string) (*queue.Queue, *backend.Sandboxed, error) {
	sb, err := backend.NewSandboxed(global, overlayBaseDir)
	if err != nil {
		return nil, nil, err
	}
	id := m.nextID.Add(1)
	q := queue.New(id, name, sb)

	m.mu.Lock()
	m.queues[id] = &entry{q: q, owner: owner, global: global}
	m.mu.Unlock()
	return q, sb, nil
}

// GetQueue looks up a queue by id. Ownership enforcement (is the caller
// allowed to see this queue) is delegated to the surrounding access layer,
// per spec §4.F; Owner below gives that layer what it needs to decide.
func (m *Manager) GetQueue(id uint64) (*queue.Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.queues[id]
	if !ok {
		return nil, false
	}
	return e.q, true
}

// Owner returns the owner name a queue was created with.
func (m *Manager) Owner(id uint64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.queues[id]
	if !ok {
		return "", false
	}
	return e.owner, true
}

// StartQueue transitions a queue from Idle to Running.
func (m *Manager) StartQueue(id uint64) error {
	q, ok := m.GetQueue(id)
	if !ok {
		return fmt.Errorf("queuemgr: no such queue %d", id)
	}
	q.Start()
	return nil
}

// Delete removes a queue from the manager and releases any shadow-registry
// entries it held. It does not stop a RunQueue loop already driving the
// queue: that loop holds its own reference to the queue and keeps
// dispatching until the queue drains.
func (m *Manager) Delete(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, id)
	for archiveKey, owner := range m.shadows {
		if owner == id {
			delete(m.shadows, archiveKey)
		}
	}
}

// AllQueues returns every queue currently registered.
func (m *Manager) AllQueues() []*queue.Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*queue.Queue, 0, len(m.queues))
	for _, e := range m.queues {
		out = append(out, e.q)
	}
	return out
}

// QueuesForUser returns every queue owned by owner.
func (m *Manager) QueuesForUser(owner string) []*queue.Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*queue.Queue
	for _, e := range m.queues {
		if e.owner == owner {
			out = append(out, e.q)
		}
	}
	return out
}

// ShadowArchive registers that queueID's sandbox overlays archiveID,
// refusing the request if some other queue already shadows it (Invariant
// G1).
func (m *Manager) ShadowArchive(archiveID uris.ArchiveId, queueID uint64) error {
	key := archiveID.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.shadows[key]; ok && existing != queueID {
		return fmt.Errorf("queuemgr: archive %s is already shadowed by queue %d", archiveID, existing)
	}
	m.shadows[key] = queueID
	return nil
}

// ReleaseShadow releases queueID's claim on archiveID, if it holds one.
func (m *Manager) ReleaseShadow(archiveID uris.ArchiveId, queueID uint64) {
	key := archiveID.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shadows[key] == queueID {
		delete(m.shadows, key)
	}
}

// globalFor returns the Global backend a sandboxed queue was created over.
func (m *Manager) globalFor(queueID uint64) (*backend.Global, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.queues[queueID]
	if !ok || e.global == nil {
		return nil, false
	}
	return e.global, true
}

// IsShadowed reports whether some queue currently shadows archiveID.
func (m *Manager) IsShadowed(archiveID uris.ArchiveId) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.shadows[archiveID.String()]
	return id, ok
}
