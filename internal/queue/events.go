package queue

import (
	"sync"

	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
)

// EventKind discriminates the change-event union described in spec §6.
type EventKind uint8

const (
	EventStarted EventKind = iota
	EventTaskStarted
	EventTaskSuccess
	EventTaskFailed
	EventIdle
)

// Eta is the scheduler's exponential-moving-average time estimate.
type Eta struct {
	TimeLeftMillis int64
	Done, Total    int
}

// TaskSummary is a snapshot of one task's aggregate state, used in Started
// and Idle payloads.
type TaskSummary struct {
	Ref   task.Ref
	State task.State
}

// Event is the discriminated union of queue change notifications.
type Event struct {
	Kind EventKind

	// EventStarted
	Running, Queued, Blocked, Failed, Done []TaskSummary

	// EventTaskStarted / EventTaskSuccess / EventTaskFailed. TaskID holds
	// the owning queue's ID (Queue.ID); tasks carry no numeric id of their
	// own, so within a queue only Target names the step the event is about.
	TaskID uint64
	Target string
	Eta    Eta

	// EventIdle
	Summaries []TaskSummary
}

// EventBus is a bounded, drop-oldest fan-out channel (spec §6: "bounded
// (64 slots by default); slow consumers drop oldest"). Each listener has
// its own buffered channel; producers never block: when a listener's
// channel is full, its oldest event is dropped to make room.
type EventBus struct {
	mu        sync.Mutex
	listeners []chan Event
	capacity  int
}

func newEventBus(capacity int) *EventBus {
	return &EventBus{capacity: capacity}
}

// Listen registers a new listener channel and returns it. The channel is
// buffered to capacity; once full, Publish drops the oldest queued event on
// that channel to make room, rather than blocking.
func (b *EventBus) Listen() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, b.capacity)
	b.listeners = append(b.listeners, ch)
	return ch
}

// Publish delivers ev to every listener, in the order Publish is called
// (spec Invariant Q3 / §5 "change events are serialized per queue").
// Callers must serialize their own calls to Publish (the queue's state
// lock already does this for every caller in this package).
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop the oldest queued event to make room,
			// then push the new one. A concurrent receive racing this
			// drain is harmless; at worst we drop one extra slot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
