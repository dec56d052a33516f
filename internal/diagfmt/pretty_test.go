package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/source"
)

const progText = "main: run\nfeatures:\n  - name: run\n    type: i3\n"

func unknownTypeBag(fs *source.FileSet, path string) *diag.Bag {
	fileID := fs.AddVirtual(path, []byte(progText))
	bag := diag.NewBag(10)
	bag.Add(diag.NewError(diag.DescUnknownName, source.Span{File: fileID, Start: 44, End: 46}, "unknown type i3"))
	return bag
}

func TestPrettyLayout(t *testing.T) {
	fs := source.NewFileSet()
	bag := unknownTypeBag(fs, "prog.yaml")

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})

	want := "prog.yaml:4:11: ERROR DSC5002: unknown type i3\n" +
		"4 |     type: i3\n" +
		"  |           ^~\n"
	if got := buf.String(); got != want {
		t.Fatalf("pretty output mismatch:\ngot=%q\nwant=%q", got, want)
	}
}

// TestPathModes проверяет различные режимы форматирования путей
func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	bag := unknownTypeBag(fs, "/home/user/project/src/prog.yaml")

	tests := []struct {
		name string
		mode PathMode
		want string
	}{
		{"absolute", PathModeAbsolute, "/home/user/project/src/prog.yaml:4:11"},
		{"relative", PathModeRelative, "src/prog.yaml:4:11"},
		{"basename", PathModeBasename, "prog.yaml:4:11"},
		{"auto", PathModeAuto, "src/prog.yaml:4:11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: tt.mode, BaseDir: "/home/user/project"})
			if !strings.HasPrefix(buf.String(), tt.want+": ") {
				t.Fatalf("unexpected location: got=%q want prefix %q", buf.String(), tt.want)
			}
		})
	}
}

// TestPathModeAuto проверяет авто-режим выбора пути
func TestPathModeAuto(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"prog.yaml", "prog.yaml"},
		{"/very/long/absolute/path/to/some/nested/directory/prog.yaml", "prog.yaml"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path, PathModeAuto, ""); got != tt.want {
			t.Fatalf("formatPath(%q): got=%q want=%q", tt.path, got, tt.want)
		}
	}
}

func TestPrettyContextNotesAndDetail(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("prog.yaml", []byte(progText))

	bag := diag.NewBag(4)
	d := diag.NewError(diag.LayoutCyclicNesting, source.Span{File: fileID, Start: 30, End: 33}, "value type run contains itself").
		WithDetail("run -> run").
		WithNote(source.Span{File: fileID, Start: 0, End: 4}, "reached from main")
	bag.Add(d)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Context: 1, PathMode: PathModeBasename, ShowNotes: true})
	out := buf.String()

	for _, want := range []string{
		"prog.yaml:3:11: ERROR LAY2001: value type run contains itself",
		"2 | features:",
		"3 |   - name: run",
		"  |           ^~~",
		"4 |     type: i3",
		"  run -> run",
		"  note: prog.yaml:1:1: reached from main",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	if strings.Contains(buf.String(), "note:") {
		t.Fatalf("notes printed without ShowNotes:\n%s", buf.String())
	}
}

func TestPrettyBuiltinAndColor(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(2)
	bag.Add(diag.New(diag.SevFatal, diag.MonoRecursiveValue, source.Builtin, "i32 contains itself"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	if got, want := buf.String(), "<builtin>: FATAL MON1001: i32 contains itself\n"; got != want {
		t.Fatalf("builtin output: got=%q want=%q", got, want)
	}

	buf.Reset()
	Pretty(&buf, bag, fs, PrettyOpts{Color: true})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI escapes with Color, got=%q", buf.String())
	}
}

func TestUnderline(t *testing.T) {
	tests := []struct {
		line     string
		from, to uint32
		want     string
	}{
		{"abc", 1, 4, "^~~"},
		{"abc", 2, 2, " ^"},
		{"\tx = 1", 2, 3, "\t^"},
		{"ab", 1, 9, "^~"},
	}
	for _, tt := range tests {
		if got := underline(tt.line, tt.from, tt.to); got != tt.want {
			t.Fatalf("underline(%q, %d, %d): got=%q want=%q", tt.line, tt.from, tt.to, got, tt.want)
		}
	}
}
