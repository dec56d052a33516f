package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStreamTracerLevels(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	span := Begin(tr, ScopePass, "reach", 0)
	Point(tr, ScopeClazz, "clazz.create", "i32", span.ID())
	span.WithExtra("clazzes", "3").End("ok")

	out := buf.String()
	if !strings.Contains(out, "→ reach") || !strings.Contains(out, "← reach (ok) {clazzes=3}") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "clazz.create") {
		t.Fatalf("clazz scope leaked at phase level:\n%s", out)
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeSite, name, "", 0)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("snapshot: got=%v", snap)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("dump lines: %q", buf.String())
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("New(off): enabled=%v err=%v", tr.Enabled(), err)
	}
	both, err := New(Config{Level: LevelDebug, Mode: ModeBoth, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatal(err)
	}
	if Ring(both) == nil {
		t.Fatalf("ModeBoth must carry a ring buffer")
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("default tracer must be Nop")
	}
	r := NewRingTracer(8, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	span := Begin(FromContext(ctx), ScopeDriver, "build", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() {
		t.Fatalf("CurrentSpan: got=%d want=%d", CurrentSpan(ctx), span.ID())
	}
}

func TestParseHelpers(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel: %v %v", l, err)
	}
	if _, err := ParseMode("tape"); err == nil {
		t.Fatalf("ParseMode accepted bogus mode")
	}
	if f, err := ParseFormat("ndjson"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat: %v %v", f, err)
	}
}
