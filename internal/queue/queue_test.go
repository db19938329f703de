package queue

import (
	"testing"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

func testArchiveID() uris.ArchiveId { return uris.MustParseArchiveId("smglom/sets") }

func newFile(relPath string) FileCandidate {
	return FileCandidate{
		RelPath: relPath,
		States:  map[string]archive.FileState{"check": {Kind: archive.FileStateNew}},
	}
}

func TestEnqueueInsertsOneTaskPerMatchingFile(t *testing.T) {
	q := New(1, "q", nil)
	n := q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex"), newFile("b.tex")}, nil)
	if n != 2 {
		t.Fatalf("Enqueue returned %d, want 2", n)
	}
	if q.Tasks().Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Tasks().Len())
	}
}

func TestEnqueueSkipsFilesWithNoMatchingTarget(t *testing.T) {
	q := New(1, "q", nil)
	f := FileCandidate{RelPath: "a.tex", States: map[string]archive.FileState{"other": {Kind: archive.FileStateNew}}}
	n := q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{f}, nil)
	if n != 0 || q.Tasks().Len() != 0 {
		t.Fatalf("expected no task queued, got n=%d len=%d", n, q.Tasks().Len())
	}
}

func TestEnqueueStaleOnlySkipsUpToDateFiles(t *testing.T) {
	q := New(1, "q", nil)
	f := FileCandidate{RelPath: "a.tex", States: map[string]archive.FileState{"check": {Kind: archive.FileStateUpToDate}}}
	n := q.Enqueue(testArchiveID(), "stex", []string{"check"}, true, []FileCandidate{f}, nil)
	if n != 0 {
		t.Fatalf("expected stale-only Enqueue to skip an UpToDate file, got n=%d", n)
	}
}

func TestEnqueueTwiceResetsExistingTaskInsteadOfDuplicating(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)
	ref := task.Ref{Archive: testArchiveID(), RelPath: "a.tex", Format: "stex"}
	first, _ := q.Tasks().Get(ref)
	first.Steps[0].SetState(task.StateDone)

	n := q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)
	if n != 1 || q.Tasks().Len() != 1 {
		t.Fatalf("expected re-enqueue to reuse the task, got n=%d len=%d", n, q.Tasks().Len())
	}
	second, _ := q.Tasks().Get(ref)
	if second != first {
		t.Fatalf("re-enqueue created a new task instead of reusing the existing one")
	}
	if second.Steps[0].State() != task.StateNone {
		t.Fatalf("re-enqueue should reset step state to None, got %v", second.Steps[0].State())
	}
}

func TestProcessDependenciesResolvesAgainstExistingTask(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)

	resolve := func(tk *task.BuildTask) []task.TargetedDependency {
		return []task.TargetedDependency{{Dependency: task.PhysicalDependency(testArchiveID(), "a.tex", "check", true)}}
	}
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("b.tex")}, resolve)

	bRef := task.Ref{Archive: testArchiveID(), RelPath: "b.tex", Format: "stex"}
	b, ok := q.Tasks().Get(bRef)
	if !ok {
		t.Fatalf("task b not found")
	}
	req := b.Steps[0].Requires()[0]
	if req.Kind != task.DependencyResolved {
		t.Fatalf("expected b's dependency on a to resolve immediately, got %v", req.Kind)
	}
}

func TestProcessDependenciesResolvesLazilyOnLaterEnqueue(t *testing.T) {
	q := New(1, "q", nil)
	resolve := func(tk *task.BuildTask) []task.TargetedDependency {
		return []task.TargetedDependency{{Dependency: task.PhysicalDependency(testArchiveID(), "a.tex", "check", true)}}
	}
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("b.tex")}, resolve)

	bRef := task.Ref{Archive: testArchiveID(), RelPath: "b.tex", Format: "stex"}
	b, _ := q.Tasks().Get(bRef)
	if b.Steps[0].Requires()[0].Kind != task.DependencyPhysical {
		t.Fatalf("expected dependency to remain unresolved before a is enqueued")
	}

	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)
	if b.Steps[0].Requires()[0].Kind != task.DependencyResolved {
		t.Fatalf("expected dependency to resolve once a is enqueued")
	}
}

func TestStartSortsIntoQueuedAndPublishesStarted(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)
	events := q.Events().Listen()

	q.Start()

	ref := task.Ref{Archive: testArchiveID(), RelPath: "a.tex", Format: "stex"}
	tk, _ := q.Tasks().Get(ref)
	if tk.Steps[0].State() != task.StateQueued {
		t.Fatalf("expected step to be Queued after Start, got %v", tk.Steps[0].State())
	}

	select {
	case ev := <-events:
		if ev.Kind != EventStarted {
			t.Fatalf("expected EventStarted, got %v", ev.Kind)
		}
	default:
		t.Fatalf("expected a Started event to be published")
	}
}

func TestStartBlocksUnresolvedStrictDependency(t *testing.T) {
	q := New(1, "q", nil)
	resolve := func(tk *task.BuildTask) []task.TargetedDependency {
		return []task.TargetedDependency{{Dependency: task.PhysicalDependency(testArchiveID(), "missing.tex", "check", true)}}
	}
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("b.tex")}, resolve)
	q.Start()

	ref := task.Ref{Archive: testArchiveID(), RelPath: "b.tex", Format: "stex"}
	tk, _ := q.Tasks().Get(ref)
	if tk.Steps[0].State() != task.StateBlocked {
		t.Fatalf("expected unresolved strict dependency to leave step Blocked, got %v", tk.Steps[0].State())
	}
}

func TestGetNextReturnsQueuedTaskAndMarksRunning(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)
	q.Start()

	tk, target, ok, drained := q.GetNext()
	if !ok || drained {
		t.Fatalf("expected a runnable task, got ok=%v drained=%v", ok, drained)
	}
	if target != "check" {
		t.Fatalf("target = %q, want check", target)
	}
	if tk.Steps[0].State() != task.StateRunning {
		t.Fatalf("expected step to be Running after GetNext, got %v", tk.Steps[0].State())
	}

	if _, _, ok, _ := q.GetNext(); ok {
		t.Fatalf("expected no second runnable task while the only task is Running")
	}
}

func TestGetNextSkipsStrictDependencyBlockedByRunning(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("p1.tex")}, nil)
	resolve := func(tk *task.BuildTask) []task.TargetedDependency {
		return []task.TargetedDependency{{Dependency: task.PhysicalDependency(testArchiveID(), "p1.tex", "check", true)}}
	}
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("q.tex")}, resolve)
	q.Start()

	p1, _, ok, _ := q.GetNext()
	if !ok {
		t.Fatalf("expected p1 to be runnable first")
	}
	if p1.RelPath != "p1.tex" {
		t.Fatalf("expected p1.tex to run first, got %s", p1.RelPath)
	}

	if _, _, ok, _ := q.GetNext(); ok {
		t.Fatalf("expected q.tex to be blocked by p1.tex's strict dependency while p1.tex is Running")
	}

	q.CompleteStep(p1, 0, true, time.Millisecond)

	qt, _, ok, _ := q.GetNext()
	if !ok || qt.RelPath != "q.tex" {
		t.Fatalf("expected q.tex to become runnable once p1.tex finished")
	}
}

func TestCompleteStepFailurePropagatesAndDrains(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"extract", "check"}, false, []FileCandidate{
		{RelPath: "a.tex", States: map[string]archive.FileState{
			"extract": {Kind: archive.FileStateNew},
			"check":   {Kind: archive.FileStateNew},
		}},
	}, nil)
	q.Start()

	tk, _, ok, _ := q.GetNext()
	if !ok {
		t.Fatalf("expected a runnable task")
	}
	q.CompleteStep(tk, 0, false, time.Millisecond)

	if tk.Steps[0].State() != task.StateFailed || tk.Steps[1].State() != task.StateFailed {
		t.Fatalf("expected both steps Failed, got %v/%v", tk.Steps[0].State(), tk.Steps[1].State())
	}
	if !q.IsDrained() {
		t.Fatalf("expected queue to be drained after its only task failed")
	}
}

func TestEnqueueResolverCanTargetANonFirstStep(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"check"}, false, []FileCandidate{newFile("a.tex")}, nil)

	resolve := func(tk *task.BuildTask) []task.TargetedDependency {
		return []task.TargetedDependency{
			{Target: "check", Dependency: task.PhysicalDependency(testArchiveID(), "a.tex", "check", true)},
		}
	}
	q.Enqueue(testArchiveID(), "stex", []string{"extract", "check"}, false, []FileCandidate{
		{RelPath: "b.tex", States: map[string]archive.FileState{
			"extract": {Kind: archive.FileStateNew},
			"check":   {Kind: archive.FileStateNew},
		}},
	}, resolve)

	bRef := task.Ref{Archive: testArchiveID(), RelPath: "b.tex", Format: "stex"}
	b, ok := q.Tasks().Get(bRef)
	if !ok {
		t.Fatalf("task b not found")
	}
	if len(b.Steps[0].Requires()) != 0 {
		t.Fatalf("expected b's extract step to have no requirements, got %v", b.Steps[0].Requires())
	}
	req := b.Steps[1].Requires()
	if len(req) != 1 || req[0].Kind != task.DependencyResolved {
		t.Fatalf("expected b's check step to carry the targeted dependency resolved against a, got %v", req)
	}
}

func TestCompleteStepSuccessRequeuesNextStep(t *testing.T) {
	q := New(1, "q", nil)
	q.Enqueue(testArchiveID(), "stex", []string{"extract", "check"}, false, []FileCandidate{
		{RelPath: "a.tex", States: map[string]archive.FileState{
			"extract": {Kind: archive.FileStateNew},
			"check":   {Kind: archive.FileStateNew},
		}},
	}, nil)
	q.Start()

	tk, _, _, _ := q.GetNext()
	q.CompleteStep(tk, 0, true, time.Millisecond)

	if tk.Steps[0].State() != task.StateDone {
		t.Fatalf("expected first step Done, got %v", tk.Steps[0].State())
	}
	if tk.Steps[1].State() != task.StateQueued {
		t.Fatalf("expected second step Queued after first completes, got %v", tk.Steps[1].State())
	}

	again, _, ok, _ := q.GetNext()
	if !ok || again != tk {
		t.Fatalf("expected the same task's second step to become runnable")
	}
	q.CompleteStep(tk, 1, true, time.Millisecond)
	if !q.IsDrained() {
		t.Fatalf("expected queue to be drained once every step of the only task is Done")
	}
}
