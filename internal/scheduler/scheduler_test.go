package scheduler

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/artifact"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/omdoc"
	"github.com/FlexiFormal/FLAMS-sub003/internal/queue"
	"github.com/FlexiFormal/FLAMS-sub003/internal/registry"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
	"github.com/sirupsen/logrus"
)

func testGlobalBackend(t *testing.T) (*backend.Global, *archive.Archive) {
	t.Helper()
	root := t.TempDir()
	id := uris.MustParseArchiveId("smglom/sets")
	a := archive.NewArchive(&archive.Manifest{ID: id}, root)
	return backend.NewGlobal(root, []*archive.Archive{a}), a
}

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type boomError struct{}

func (*boomError) Error() string { return "boom" }

func TestRunQueueSucceedsAndWritesArtifact(t *testing.T) {
	registry.ResetForTest()
	if err := registry.RegisterTarget(registry.BuildTarget{
		Name: "check",
		Run: func(be any, tk any) (any, error) {
			return &omdoc.BuildResult{
				Log:      "ok",
				Artifact: &artifact.Artifact{HTML: "<html><body>hi</body></html>"},
			}, nil
		},
	}); err != nil {
		t.Fatalf("RegisterTarget: %v", err)
	}

	g, a := testGlobalBackend(t)
	q := queue.New(1, "q", g)
	q.Enqueue(a.ID(), "stex", []string{"check"}, false, []queue.FileCandidate{{RelPath: "x.tex", States: map[string]archive.FileState{"check": {Kind: archive.FileStateNew}}}}, nil)
	q.Start()

	RunQueue(q, g, Linear{}, discardLog())

	if !q.IsDrained() {
		t.Fatalf("expected queue to be drained after RunQueue returns")
	}
	path, err := g.ArtifactWritePath(a.ID(), "x.tex", "check")
	if err != nil {
		t.Fatalf("ArtifactWritePath: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected artifact to exist at %s: %v", path, err)
	}
	logPath, _ := g.LogWritePath(a.ID(), "x.tex", "check")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log to exist at %s: %v", logPath, err)
	}
}

func TestRunQueueMarksFailureOnError(t *testing.T) {
	registry.ResetForTest()
	if err := registry.RegisterTarget(registry.BuildTarget{
		Name: "check",
		Run: func(be any, tk any) (any, error) {
			return &omdoc.BuildResult{Log: "boom", Err: &boomError{}}, nil
		},
	}); err != nil {
		t.Fatalf("RegisterTarget: %v", err)
	}

	g, a := testGlobalBackend(t)
	q := queue.New(1, "q", g)
	q.Enqueue(a.ID(), "stex", []string{"check"}, false, []queue.FileCandidate{{RelPath: "x.tex", States: map[string]archive.FileState{"check": {Kind: archive.FileStateNew}}}}, nil)
	q.Start()

	RunQueue(q, g, Linear{}, discardLog())

	tasks := q.Tasks().All()
	if len(tasks) != 1 || tasks[0].TaskState() != task.StateFailed {
		t.Fatalf("expected the task to end Failed, got %+v", tasks)
	}
}

func TestRunQueueRecoversPanicAsFailure(t *testing.T) {
	registry.ResetForTest()
	if err := registry.RegisterTarget(registry.BuildTarget{
		Name: "check",
		Run: func(be any, tk any) (any, error) {
			panic("exploded")
		},
	}); err != nil {
		t.Fatalf("RegisterTarget: %v", err)
	}

	g, a := testGlobalBackend(t)
	q := queue.New(1, "q", g)
	q.Enqueue(a.ID(), "stex", []string{"check"}, false, []queue.FileCandidate{{RelPath: "x.tex", States: map[string]archive.FileState{"check": {Kind: archive.FileStateNew}}}}, nil)
	q.Start()

	RunQueue(q, g, Linear{}, discardLog())

	tasks := q.Tasks().All()
	if len(tasks) != 1 || tasks[0].TaskState() != task.StateFailed {
		t.Fatalf("expected a panicking target to fail the task, got %+v", tasks)
	}
}

func TestCountingSemaphoreBoundsConcurrency(t *testing.T) {
	sem := NewCounting(2)
	var mu sync.Mutex
	var running, maxRunning int

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		sem.Go(func() {
			defer wg.Done()
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()
	sem.Wait()

	if maxRunning > 2 {
		t.Fatalf("Counting(2) allowed %d concurrent goroutines", maxRunning)
	}
}
