package logbus

import "testing"

func TestProgressBarIncrementAndSnapshot(t *testing.T) {
	bar := NewProgressBar("check", "smglom/sets", 10)
	bar.Increment()
	bar.Increment()

	prefix, label, length, current := bar.Snapshot()
	if prefix != "check" || label != "smglom/sets" || length != 10 || current != 2 {
		t.Fatalf("Snapshot() = (%q, %q, %d, %d)", prefix, label, length, current)
	}
}

func TestSummaryAggregatesRegisteredBars(t *testing.T) {
	s := NewSummary()
	a := NewProgressBar("check", "a", 10)
	b := NewProgressBar("check", "b", 20)
	a.Set(5)
	b.Set(3)

	s.Add(a)
	s.Add(b)

	length, current, active := s.Snapshot()
	if length != 30 || current != 8 || active != 2 {
		t.Fatalf("Snapshot() = (%d, %d, %d), want (30, 8, 2)", length, current, active)
	}

	s.Remove(a)
	length, current, active = s.Snapshot()
	if length != 20 || current != 3 || active != 1 {
		t.Fatalf("after Remove: Snapshot() = (%d, %d, %d), want (20, 3, 1)", length, current, active)
	}
}
