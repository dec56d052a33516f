package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"airgen/internal/fuir"
	"airgen/internal/pipeline"
	"airgen/internal/testkit"
)

func newExplorer(t *testing.T) (*explorer, *bytes.Buffer) {
	t.Helper()
	res, err := pipeline.Run(context.Background(), &pipeline.Request{Program: testkit.RefDispatch().Prog})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var buf bytes.Buffer
	return &explorer{ir: res.IR, out: &buf}, &buf
}

func TestExploreClazzByNameAndID(t *testing.T) {
	ex, buf := newExplorer(t)
	ex.exec("clazz main")
	byName := buf.String()
	if !strings.Contains(byName, "main") || !strings.Contains(byName, "code") {
		t.Fatalf("clazz main: got=%q", byName)
	}

	main := ex.ir.MainClazz()
	buf.Reset()
	ex.exec("clazz C" + strconv.Itoa(int(main-ex.ir.FirstClazz())))
	if got := buf.String(); got != byName {
		t.Fatalf("clazz by id differs:\ngot=%q\nwant=%q", got, byName)
	}
}

func TestExploreSiteAndCode(t *testing.T) {
	ex, buf := newExplorer(t)
	code := ex.ir.ClazzCode(ex.ir.MainClazz())
	ex.exec("site S" + strconv.Itoa(int(code-ex.ir.FirstSite())))
	if got := buf.String(); !strings.HasPrefix(got, "S"+strconv.Itoa(int(code-ex.ir.FirstSite()))+": Call") {
		t.Fatalf("site: got=%q", got)
	}

	buf.Reset()
	ex.exec("code main")
	if got := buf.String(); !strings.Contains(got, "dynamic") {
		t.Fatalf("code main lacks the dynamic call: got=%q", got)
	}
}

func TestExploreHeirsAndFind(t *testing.T) {
	ex, buf := newExplorer(t)
	dyn := ex.ir.ClazzCode(ex.ir.MainClazz()) + 5
	target := ex.ir.AccessTargetClazz(dyn)

	ex.exec("heirs C" + strconv.Itoa(int(target-ex.ir.FirstClazz())))
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("heirs: got=%d lines want=2 (%q)", got, buf.String())
	}

	buf.Reset()
	ex.exec("find B")
	if !strings.Contains(buf.String(), "B") {
		t.Fatalf("find B: got=%q", buf.String())
	}
	buf.Reset()
	ex.exec("find nothing-like-this")
	if !strings.Contains(buf.String(), "no clazz matches") {
		t.Fatalf("find miss: got=%q", buf.String())
	}
}

func TestExploreErrorsAndQuit(t *testing.T) {
	ex, buf := newExplorer(t)
	tests := []struct {
		line string
		want string
	}{
		{"clazz", "missing clazz"},
		{"clazz C99999", "no clazz"},
		{"site S-1", "no site"},
		{"frobnicate", "unknown command"},
	}
	for _, tt := range tests {
		buf.Reset()
		if ex.exec(tt.line) {
			t.Fatalf("%q ended the session", tt.line)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Fatalf("%q: got=%q want %q", tt.line, buf.String(), tt.want)
		}
	}
	if !ex.exec("quit") {
		t.Fatalf("quit did not end the session")
	}
}

func TestExploreSpecials(t *testing.T) {
	res, err := pipeline.Run(context.Background(), &pipeline.Request{Program: testkit.FoldableCtor().Prog})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var buf bytes.Buffer
	ex := &explorer{ir: res.IR, out: &buf}
	ex.exec("specials")
	if !strings.Contains(buf.String(), "i32") {
		t.Fatalf("specials lack i32: got=%q", buf.String())
	}
}

func TestNumber(t *testing.T) {
	base := int64(fuir.ClazzBase)
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"C3", base + 3, true},
		{"c3", base + 3, true},
		{"3", base + 3, true},
		{"0x10000003", base + 3, true},
		{"Cx", 0, false},
		{"main", 0, false},
	}
	for _, tt := range tests {
		got, ok := number(tt.in, 'C', base)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Fatalf("number(%q): got=%d,%v want=%d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExploreSitesByKind(t *testing.T) {
	ex, buf := newExplorer(t)
	ex.exec("sites Call")
	if got := buf.String(); !strings.Contains(got, ": Call") || !strings.Contains(got, " main") {
		t.Fatalf("sites Call: got=%q", got)
	}
	buf.Reset()
	ex.exec("sites Nope")
	if got := buf.String(); !strings.HasPrefix(got, "error: unknown expression kind") {
		t.Fatalf("sites Nope: got=%q", got)
	}
}
