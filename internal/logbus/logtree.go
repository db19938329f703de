// Package logbus implements the log/progress bus (component J): an
// in-memory LogTree that doubles as a logrus.Hook, capturing every log
// line the core emits as a structured event with span context, plus
// ProgressBar/Summary reporting backed by cheggaaa/pb.
package logbus

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level mirrors spec §4.J's five-level tag set, independent of logrus's
// own Level type so LogLine stays serializable without pulling logrus into
// every consumer.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func levelFromLogrus(l logrus.Level) Level {
	switch l {
	case logrus.TraceLevel:
		return LevelTrace
	case logrus.DebugLevel:
		return LevelDebug
	case logrus.WarnLevel:
		return LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// SpanID identifies one open/close span in the tree.
type SpanID uint64

// Span is one open/close region a log line may nest under (spec §4.J:
// "Spans open on entry, close on exit; closed spans carry their close
// timestamp").
type Span struct {
	ID        SpanID
	HasParent bool
	Parent    SpanID
	Name      string
	Opened    time.Time
	Closed    time.Time
	IsClosed  bool
}

// LogLine is one captured log event, tagged with its owning span if any.
type LogLine struct {
	Level      Level
	Timestamp  time.Time
	Target     string
	Message    string
	Fields     logrus.Fields
	HasParent  bool
	ParentSpan SpanID
}

// LogTree is the in-memory sink every log line and span transition is
// published to. It implements logrus.Hook so it can be wired into the
// process's *logrus.Logger with AddHook, the same way the teacher wires
// its own logging via *logrus.Entry parameters threaded through scan and
// build calls.
type LogTree struct {
	mu sync.Mutex

	nextSpan   uint64
	spans      map[SpanID]*Span
	spanStack  []SpanID
	lines      []LogLine
	listeners  []chan LogLine
	spanEvents []chan Span
}

// NewLogTree constructs an empty LogTree.
func NewLogTree() *LogTree {
	return &LogTree{spans: make(map[SpanID]*Span)}
}

// OpenSpan starts a new span nested under whichever span is currently on
// top of the stack, if any, and returns its id.
func (t *LogTree) OpenSpan(name string) SpanID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSpan++
	id := SpanID(t.nextSpan)
	s := &Span{ID: id, Name: name, Opened: time.Now()}
	if len(t.spanStack) > 0 {
		s.HasParent = true
		s.Parent = t.spanStack[len(t.spanStack)-1]
	}
	t.spans[id] = s
	t.spanStack = append(t.spanStack, id)
	t.publishSpan(*s)
	return id
}

// CloseSpan closes id, stamping its close time, and pops it off the active
// stack if it is the innermost open span.
func (t *LogTree) CloseSpan(id SpanID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.spans[id]
	if !ok || s.IsClosed {
		return
	}
	s.Closed = time.Now()
	s.IsClosed = true

	if n := len(t.spanStack); n > 0 && t.spanStack[n-1] == id {
		t.spanStack = t.spanStack[:n-1]
	}
	t.publishSpan(*s)
}

// currentSpan returns the innermost open span, if any. Called only while
// holding mu.
func (t *LogTree) currentSpan() (SpanID, bool) {
	if len(t.spanStack) == 0 {
		return 0, false
	}
	return t.spanStack[len(t.spanStack)-1], true
}

// Levels implements logrus.Hook: the tree wants every level.
func (t *LogTree) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook, capturing {level, timestamp, target,
// fields, parentSpanID} per spec §4.J. The "target" tag is read from the
// entry's "target" field, the convention every build-facing log call in
// this codebase uses (e.g. logrus.Fields{"target": ...}).
func (t *LogTree) Fire(entry *logrus.Entry) error {
	target, _ := entry.Data["target"].(string)

	t.mu.Lock()
	parent, hasParent := t.currentSpan()
	line := LogLine{
		Level:      levelFromLogrus(entry.Level),
		Timestamp:  entry.Time,
		Target:     target,
		Message:    entry.Message,
		Fields:     entry.Data,
		HasParent:  hasParent,
		ParentSpan: parent,
	}
	t.lines = append(t.lines, line)
	t.mu.Unlock()

	t.publishLine(line)
	return nil
}

// Listen registers a channel that receives every future log line.
func (t *LogTree) Listen() <-chan LogLine {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan LogLine, 256)
	t.listeners = append(t.listeners, ch)
	return ch
}

// ListenSpans registers a channel that receives every future span
// open/close transition.
func (t *LogTree) ListenSpans() <-chan Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Span, 256)
	t.spanEvents = append(t.spanEvents, ch)
	return ch
}

// Lines returns a snapshot of every line captured so far.
func (t *LogTree) Lines() []LogLine {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]LogLine, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *LogTree) publishLine(line LogLine) {
	t.mu.Lock()
	listeners := t.listeners
	t.mu.Unlock()
	for _, ch := range listeners {
		select {
		case ch <- line:
		default:
		}
	}
}

// publishSpan is called only while holding mu.
func (t *LogTree) publishSpan(s Span) {
	for _, ch := range t.spanEvents {
		select {
		case ch <- s:
		default:
		}
	}
}
