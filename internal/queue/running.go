package queue

import (
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
)

// RunningState partitions every task in the queue into exactly one of five
// vectors (spec Invariant Q2). queue is a FIFO (append at the back, except
// that CompleteStep puts a task whose next step is now ready at the front;
// the scheduler removes from wherever can_be_next finds a runnable task),
// the rest are unordered bags.
type RunningState struct {
	Queue   []*task.BuildTask
	Blocked []*task.BuildTask
	Running []*task.BuildTask
	Done    []*task.BuildTask
	Failed  []*task.BuildTask

	timer *timer
}

func newRunningState(totalSteps int) *RunningState {
	return &RunningState{timer: newTimer(totalSteps)}
}

// removeFromQueue removes and returns the task at index i of Queue.
func (r *RunningState) removeFromQueue(i int) *task.BuildTask {
	t := r.Queue[i]
	r.Queue = append(r.Queue[:i], r.Queue[i+1:]...)
	return t
}

// removeFromRunning removes t from Running by identity.
func (r *RunningState) removeFromRunning(t *task.BuildTask) {
	for i, rt := range r.Running {
		if rt == t {
			r.Running = append(r.Running[:i], r.Running[i+1:]...)
			return
		}
	}
}

// timer computes an exponential-moving-average ETA, ported from the
// teacher's Timer (queue.rs): the average step duration is updated with a
// weight equal to the fraction of already-completed steps, then used to
// project the remaining wall-clock time.
type timer struct {
	average time.Duration
	total   int
	done    int
}

func newTimer(total int) *timer {
	return &timer{total: total}
}

// update folds in a step (or batch of dones steps) that took delta to
// complete, returning the refreshed Eta.
func (t *timer) update(delta time.Duration, dones int) Eta {
	if dones > 0 {
		weight := float64(t.done) / float64(t.done+dones)
		t.average = time.Duration(weight*float64(t.average) + (1-weight)*float64(delta))
		t.done += dones
	}
	remaining := t.total - t.done
	if remaining < 0 {
		remaining = 0
	}
	return Eta{
		TimeLeftMillis: int64(t.average) * int64(remaining) / int64(time.Millisecond),
		Done:           t.done,
		Total:          t.total,
	}
}
