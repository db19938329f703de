// Package scheduler implements the runner loop (component I): it pulls the
// next runnable step from a queue, invokes the step's registered build
// target, persists the resulting artifact and log through the queue's
// backend, and reports the outcome back to the queue so dependents and ETA
// tracking advance.
package scheduler

import (
	"os"
	"path/filepath"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/artifact"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/omdoc"
	"github.com/FlexiFormal/FLAMS-sub003/internal/queue"
	"github.com/FlexiFormal/FLAMS-sub003/internal/registry"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// pollInterval is the sleep between get_next retries while the queue is
// stalled (running non-empty, nothing immediately dispatchable) — spec
// §4.I get_next, third bullet.
const pollInterval = time.Second

// GetNext exposes queue.Queue.GetNext under the name spec §4.I gives it at
// this layer; RunQueue below is the thing that actually drives a queue to
// completion, but callers wanting manual single-step control (tests, the
// LSP's on-demand single-file build) can call this directly.
func GetNext(q *queue.Queue) (t *task.BuildTask, target string, ok bool) {
	t, target, ok, _ = q.GetNext()
	return t, target, ok
}

// RunQueue drives q to completion against be, using sem to bound
// concurrency (spec §5: Linear or Counting(N)). It returns once the queue
// is drained and every dispatched run_task has completed.
func RunQueue(q *queue.Queue, be backend.Backend, sem Semaphore, log *logrus.Entry) {
	for {
		t, target, ok, drained := q.GetNext()
		if drained {
			break
		}
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		sem.Go(func() {
			runTask(q, be, t, target, log)
		})
	}
	sem.Wait()
}

// runTask is spec §4.I run_task: invoke the target, persist its artifact
// and log, report the outcome, advance dependents — all via
// queue.Queue.CompleteStep, which owns steps 4-6.
func runTask(q *queue.Queue, be backend.Backend, t *task.BuildTask, target string, log *logrus.Entry) {
	q.Events().Publish(queue.Event{Kind: queue.EventTaskStarted, TaskID: q.ID, Target: target})

	stepIdx := t.NextStep()
	started := time.Now()
	result, err := invokeTarget(be, t, target)
	duration := time.Since(started)

	if err != nil {
		log.WithFields(logrus.Fields{"task": t.Ref(), "target": target, "run_id": t.RunID}).WithError(err).Error("build target failed")
		q.CompleteStep(t, stepIdx, false, duration)
		return
	}

	if err := persist(be, t, target, result); err != nil {
		log.WithFields(logrus.Fields{"task": t.Ref(), "target": target, "run_id": t.RunID}).WithError(err).Error("persisting build result failed")
		q.CompleteStep(t, stepIdx, false, duration)
		return
	}

	if result.Ok() {
		log.WithFields(logrus.Fields{"task": t.Ref(), "target": target, "run_id": t.RunID}).Info("build target succeeded")
	}
	q.CompleteStep(t, stepIdx, result.Ok(), duration)
}

// invokeTarget looks up target's registered BuildTarget and calls its Run
// function, recovering a panic into an error the same way a failed build
// does (spec §7 TargetFailed propagation covers both).
func invokeTarget(be backend.Backend, t *task.BuildTask, target string) (result *omdoc.BuildResult, err error) {
	bt, ok := registry.TargetByName(target)
	if !ok {
		return nil, errors.Errorf("scheduler: no build target registered for %q", target)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.Errorf("panic: %v", r), "scheduler: target %q panicked", target)
		}
	}()

	out, runErr := bt.Run(be, t)
	if runErr != nil {
		return nil, errors.Wrapf(runErr, "scheduler: target %q", target)
	}
	result, ok = out.(*omdoc.BuildResult)
	if !ok {
		return nil, errors.Errorf("scheduler: target %q returned %T, want *omdoc.BuildResult", target, out)
	}
	return result, nil
}

// persist writes a successful build's artifact and log through be, and
// records the build in file-state tracking (spec §4.I run_task steps 3, 5).
// A failed result (result.Err != nil) only persists the log.
func persist(be backend.Backend, t *task.BuildTask, target string, result *omdoc.BuildResult) error {
	logPath, err := be.LogWritePath(t.Archive, t.RelPath, target)
	if err != nil {
		return errors.Wrap(err, "resolving log path")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}
	if err := os.WriteFile(logPath, []byte(result.Log), 0o644); err != nil {
		return errors.Wrap(err, "writing log")
	}

	if !result.Ok() {
		return nil
	}

	artifactPath, err := be.ArtifactWritePath(t.Archive, t.RelPath, target)
	if err != nil {
		return errors.Wrap(err, "resolving artifact path")
	}
	store := artifact.NewStore()
	if err := store.Write(artifactPath, *result.Artifact); err != nil {
		return errors.Wrap(err, "writing artifact")
	}
	return be.MarkBuilt(t.Archive, t.RelPath, target, time.Now())
}
