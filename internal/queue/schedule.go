package queue

import (
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
)

// GetNext implements spec §4.I get_next(): it looks for the first Queued
// step, in queue order, whose strict Resolved dependencies are not
// currently Running, moves its task into Running, and marks that step
// Running. ok is false when there is nothing runnable right now; drained
// additionally reports whether the queue has reached a Drained state
// (queue/blocked/running all empty, nothing left to wait on).
func (q *Queue) GetNext() (t *task.BuildTask, target string, ok bool, drained bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r := q.running
	if r == nil {
		return nil, "", false, true
	}
	if len(r.Queue) == 0 && len(r.Blocked) == 0 && len(r.Running) == 0 {
		return nil, "", false, true
	}

	for i, candidate := range r.Queue {
		idx := candidate.NextStep()
		if idx < 0 {
			continue
		}
		step := candidate.Steps[idx]
		if step.State() != task.StateQueued {
			continue
		}
		if step.BlocksParallelism() {
			continue
		}
		r.removeFromQueue(i)
		r.Running = append(r.Running, candidate)
		step.SetState(task.StateRunning)
		return candidate, step.Target, true, false
	}
	return nil, "", false, false
}

// IsDrained reports whether the queue is Running but has no Queued or
// Blocked work left and nothing currently executing.
func (q *Queue) IsDrained() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.state != StateRunning || q.running == nil {
		return false
	}
	r := q.running
	return len(r.Queue) == 0 && len(r.Blocked) == 0 && len(r.Running) == 0
}

// CompleteStep records the outcome of running (t, stepIdx): success moves
// the step to Done and, if t has a further step, requeues t at the front
// of the queue; otherwise t moves to done. Failure marks stepIdx and every
// later step Failed and moves t to failed. Either way, dependents that can
// now transition Blocked -> Queued are advanced (spec §4.I run_task steps
// 4-6), and the matching TaskSuccess/TaskFailed event is published with the
// queue's current ETA.
func (q *Queue) CompleteStep(t *task.BuildTask, stepIdx int, success bool, stepDuration time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r := q.running
	if r == nil {
		return
	}
	step := t.Steps[stepIdx]
	r.removeFromRunning(t)

	if !success {
		t.FailFrom(stepIdx)
		r.Failed = append(r.Failed, t)
		eta := r.timer.update(stepDuration, 1)
		q.advanceDependents(step)
		q.events.Publish(Event{Kind: EventTaskFailed, TaskID: q.ID, Target: step.Target, Eta: eta})
		q.checkDrained()
		return
	}

	step.SetState(task.StateDone)
	eta := r.timer.update(stepDuration, 1)

	if next := t.NextStep(); next >= 0 {
		t.Steps[next].SetState(task.StateQueued)
		r.Queue = append([]*task.BuildTask{t}, r.Queue...)
	} else {
		r.Done = append(r.Done, t)
	}

	q.advanceDependents(step)
	q.events.Publish(Event{Kind: EventTaskSuccess, TaskID: q.ID, Target: step.Target, Eta: eta})
	q.checkDrained()
}

// advanceDependents moves any Blocked dependent of step to Queued once all
// of its own strict Resolved dependencies are Done (spec §4.I step 6).
func (q *Queue) advanceDependents(step *task.BuildStep) {
	r := q.running
	for _, dep := range step.Dependents() {
		depStep := dep.Task.Steps[dep.StepIndex]
		if depStep.State() != task.StateBlocked {
			continue
		}
		if !depStep.AllSatisfied() {
			continue
		}
		depStep.SetState(task.StateQueued)
		moveTaskToQueue(r, dep.Task)
	}
}

// moveTaskToQueue relocates t from Blocked to Queue, if present there.
func moveTaskToQueue(r *RunningState, t *task.BuildTask) {
	for i, bt := range r.Blocked {
		if bt == t {
			r.Blocked = append(r.Blocked[:i], r.Blocked[i+1:]...)
			r.Queue = append(r.Queue, t)
			return
		}
	}
}

// checkDrained emits an Idle event the moment the queue first reaches the
// Drained condition (spec §4.I step 2 / §6 "Idle{task_summaries}").
func (q *Queue) checkDrained() {
	r := q.running
	if len(r.Queue) != 0 || len(r.Blocked) != 0 || len(r.Running) != 0 {
		return
	}
	all := append(append([]*task.BuildTask{}, r.Done...), r.Failed...)
	q.events.Publish(Event{Kind: EventIdle, Summaries: summarize(all)})
}
