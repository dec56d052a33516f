package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("reach")
	tm.End(idx, "12 clazzes")
	tm.Count("clazzes", 12)
	tm.Count("clazzes", 3)
	tm.Count("sites", 40)

	r := tm.Report()
	if len(r.Phases) != 1 || r.Phases[0].Note != "12 clazzes" {
		t.Fatalf("phases: got=%+v", r.Phases)
	}
	if len(r.Counters) != 2 || r.Counters[0].Name != "clazzes" || r.Counters[0].Value != 15 {
		t.Fatalf("counters: got=%+v", r.Counters)
	}
	if !strings.Contains(tm.Summary(), "reach") {
		t.Fatalf("summary misses phase:\n%s", tm.Summary())
	}
}

func TestNilTimerIsSafe(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	tm.Count("c", 1)
	if tm.Counter("c") != 0 || len(tm.Report().Phases) != 0 {
		t.Fatalf("nil timer recorded data")
	}
}
