package queue

import "github.com/FlexiFormal/FLAMS-sub003/internal/task"

// sort performs the two-pass topological sort ported from the teacher's
// queueing.rs Queue::sort. Pass one ("weak") classifies a task's first
// unfinished step against all of its dependencies; once it stops making
// progress, pass two ("strict") classifies the rest against their strict
// dependencies only, ignoring non-strict ones. Any task still undecided
// after both passes falls to Blocked.
func sortTasks(tasks []*task.BuildTask, running *RunningState) {
	weak := true
	remaining := make([]*task.BuildTask, len(tasks))
	copy(remaining, tasks)

	for len(remaining) > 0 {
		changed := false
		var stillUndecided []*task.BuildTask

		for _, t := range remaining {
			idx, hasFailed := firstUnterminatedStep(t)
			if idx < 0 {
				if hasFailed {
					running.Failed = append(running.Failed, t)
				} else {
					running.Done = append(running.Done, t)
				}
				continue
			}

			step := t.Steps[idx]
			newState, decided := classifyStep(step, weak)
			if !decided {
				stillUndecided = append(stillUndecided, t)
				continue
			}

			changed = true
			for j := idx; j < len(t.Steps); j++ {
				if j == idx {
					t.Steps[j].SetState(newState)
				} else {
					t.Steps[j].SetState(task.StateBlocked)
				}
			}
			switch newState {
			case task.StateBlocked:
				running.Blocked = append(running.Blocked, t)
			case task.StateQueued:
				running.Queue = append(running.Queue, t)
			}
		}

		remaining = stillUndecided
		if changed {
			continue
		}
		if weak {
			weak = false
			continue
		}
		// Second pass also made no progress: everything left is Blocked.
		for _, t := range remaining {
			for _, s := range t.Steps {
				if s.State() == task.StateNone {
					s.SetState(task.StateBlocked)
				}
			}
			running.Blocked = append(running.Blocked, t)
		}
		remaining = nil
	}
}

// firstUnterminatedStep returns the index of t's first step that is
// neither Done nor Failed, and whether any earlier step had Failed. -1
// means every step is terminal (the task is fully Done or Failed).
func firstUnterminatedStep(t *task.BuildTask) (idx int, hasFailed bool) {
	for i, s := range t.Steps {
		switch s.State() {
		case task.StateFailed:
			hasFailed = true
		case task.StateDone:
		default:
			return i, hasFailed
		}
	}
	return -1, hasFailed
}

// classifyStep decides the next state for step's task given its current
// dependency states. An unresolved (Physical or Logical) dependency makes
// the step Blocked. decided is false when a dependency is still None: the
// task must wait for a future pass (or a future sort call, once that
// dependency's own task gets sorted).
func classifyStep(step *task.BuildStep, weak bool) (newState task.State, decided bool) {
	newState = task.StateQueued
	for _, d := range step.Requires() {
		if !d.Strict && !weak {
			continue
		}
		if d.Kind != task.DependencyResolved {
			newState = task.StateBlocked
			continue
		}
		depState := d.Resolved.Task.Steps[d.Resolved.StepIndex].State()
		switch depState {
		case task.StateDone, task.StateQueued, task.StateFailed, task.StateRunning:
			// satisfied for sorting purposes; running/queued/done/failed
			// dependencies all let this step proceed to Queued (GetNext
			// later holds it back only while a strict dependency is
			// Running).
		case task.StateBlocked:
			newState = task.StateBlocked
		case task.StateNone:
			return task.StateNone, false
		}
	}
	return newState, true
}
