package queue

import "github.com/FlexiFormal/FLAMS-sub003/internal/task"

// Start transitions the queue from Idle to Running: it runs the two-pass
// sort over every task in the map, builds the RunningState partition, and
// emits a single Started event (spec §4.E "Queue — sort and start", step
// 3). Calling Start on an already-Running queue is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == StateRunning {
		return
	}

	tasks := q.tasks.All()
	running := newRunningState(q.tasks.totalStepsSnapshot())
	sortTasks(tasks, running)

	q.running = running
	q.state = StateRunning

	q.events.Publish(Event{
		Kind:    EventStarted,
		Running: summarize(running.Running),
		Queued:  summarize(running.Queue),
		Blocked: summarize(running.Blocked),
		Failed:  summarize(running.Failed),
		Done:    summarize(running.Done),
	})
}

func (m *TaskMap) totalStepsSnapshot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalSteps
}

func summarize(tasks []*task.BuildTask) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskSummary{Ref: t.Ref(), State: t.TaskState()})
	}
	return out
}
