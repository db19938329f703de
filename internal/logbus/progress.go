package logbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/cheggaaa/pb"
)

// ProgressBar mirrors spec §4.J's reporting shape
// ({prefix, label, length, current, ms_per_tick}) on top of a real
// cheggaaa/pb bar, so a caller gets both a renderable terminal bar and a
// plain snapshot struct for non-terminal consumers (the LSP, a web UI).
type ProgressBar struct {
	Prefix    string
	Label     string
	Length    int
	MsPerTick int64

	mu      sync.Mutex
	current int
	bar     *pb.ProgressBar
}

// NewProgressBar constructs a bar over length units of work, not yet
// started.
func NewProgressBar(prefix, label string, length int) *ProgressBar {
	return &ProgressBar{Prefix: prefix, Label: label, Length: length, MsPerTick: 200}
}

// Start renders the underlying pb.ProgressBar to the terminal.
func (p *ProgressBar) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = pb.New(p.Length)
	p.bar.Prefix(fmt.Sprintf("%s %s", p.Prefix, p.Label))
	p.bar.RefreshRate = time.Duration(p.MsPerTick) * time.Millisecond
	p.bar.Start()
}

// Set updates the bar to n completed units.
func (p *ProgressBar) Set(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = n
	if p.bar != nil {
		p.bar.Set(n)
	}
}

// Increment advances the bar by one unit and returns the new current value.
func (p *ProgressBar) Increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	if p.bar != nil {
		p.bar.Increment()
	}
	return p.current
}

// Snapshot returns the bar's current {prefix, label, length, current}
// state without touching the terminal.
func (p *ProgressBar) Snapshot() (prefix, label string, length, current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Prefix, p.Label, p.Length, p.current
}

// Finish closes out the underlying terminal bar, if started.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.FinishPrint(p.Label + " done")
	}
}

// Summary aggregates every currently active ProgressBar into one synthetic
// bar (spec §4.J: "a Summary aggregates active bars into one synthetic
// bar"), used when many queues or targets are building concurrently and a
// single overview line is wanted instead of one bar per task.
type Summary struct {
	mu   sync.Mutex
	bars map[*ProgressBar]struct{}
}

// NewSummary constructs an empty Summary.
func NewSummary() *Summary {
	return &Summary{bars: make(map[*ProgressBar]struct{})}
}

// Add registers b as one of the bars this summary aggregates.
func (s *Summary) Add(b *ProgressBar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[b] = struct{}{}
}

// Remove stops aggregating b, e.g. once its task has finished.
func (s *Summary) Remove(b *ProgressBar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bars, b)
}

// Snapshot folds every registered bar's length/current into one synthetic
// {length, current} pair.
func (s *Summary) Snapshot() (length, current, active int) {
	s.mu.Lock()
	bars := make([]*ProgressBar, 0, len(s.bars))
	for b := range s.bars {
		bars = append(bars, b)
	}
	s.mu.Unlock()

	for _, b := range bars {
		_, _, l, c := b.Snapshot()
		length += l
		current += c
	}
	return length, current, len(bars)
}
