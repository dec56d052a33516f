package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"airgen/internal/fuir"
	"airgen/internal/pipeline"
)

func TestResolveBuildTargetFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "point.yaml")
	if err := os.WriteFile(path, []byte("main: main\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	target, err := resolveBuildTarget([]string{path})
	if err != nil {
		t.Fatalf("resolveBuildTarget: %v", err)
	}
	if target.path != path || target.output != "point.air" || target.manifest != nil {
		t.Fatalf("target: got=%+v want path=%s output=point.air", target, path)
	}
}

func TestResolveBuildTargetManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := "[package]\nname = \"demo\"\nmain = \"src/main.yaml\"\n"
	if err := os.WriteFile(filepath.Join(dir, "airgen.toml"), []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	target, err := resolveBuildTarget([]string{sub})
	if err != nil {
		t.Fatalf("resolveBuildTarget: %v", err)
	}
	if target.manifest == nil || target.path != filepath.Join(dir, "src", "main.yaml") {
		t.Fatalf("target path: got=%q", target.path)
	}
	if want := filepath.Join(dir, "build", "demo.air"); target.output != want {
		t.Fatalf("target output: got=%q want=%q", target.output, want)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, "on": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q): got=%q,%v want=%q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("expected error for an unknown mode")
	}
}

func TestPrintStats(t *testing.T) {
	st := fuir.Stats{
		Clazzes: 1234,
		Sites:   56,
		ByKind:  map[fuir.ClazzKind]int{fuir.KindRoutine: 1000, fuir.KindField: 234},
		BySite:  map[fuir.ExprKind]int{fuir.ExprCall: 50, fuir.ExprNone: 6},
	}
	var buf bytes.Buffer
	if err := printStats(&buf, st, 4200); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"1,234", "Call", "4.2 kB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output lacks %q:\n%s", want, out)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, versionInfo{Version: "1.2.3"}, versionOptions{showHash: true}); err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Tool != "airgen" || payload.Version != "1.2.3" || payload.GitCommit != "unknown" || payload.BuildDate != "" {
		t.Fatalf("payload: got=%+v", payload)
	}
}

func TestPrintStageTimings(t *testing.T) {
	var tm pipeline.Timings
	tm.Set(pipeline.StageLoad, 2*time.Millisecond)
	tm.Set(pipeline.StageReach, time.Millisecond)
	tm.Set(pipeline.StageLayout, 500*time.Microsecond)

	var buf bytes.Buffer
	if err := printStageTimings(&buf, tm); err != nil {
		t.Fatal(err)
	}
	want := "loaded 2.0 ms\nreached 1.5 ms\n"
	if got := buf.String(); got != want {
		t.Fatalf("stage timings: got=%q want=%q", got, want)
	}
}
