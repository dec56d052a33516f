package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/source"
)

// TestJSONBasic проверяет базовое JSON форматирование
func TestJSONBasic(t *testing.T) {
	fs := source.NewFileSet()
	bag := unknownTypeBag(fs, "/work/prog.yaml")

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if output.Count != 1 || len(output.Diagnostics) != 1 {
		t.Fatalf("unexpected count: got=%d want=1", output.Count)
	}
	d := output.Diagnostics[0]
	if d.Severity != "ERROR" || d.Code != "DSC5002" || d.Title != "unknown name" {
		t.Fatalf("unexpected header: got=%s %s %q", d.Severity, d.Code, d.Title)
	}
	want := LocationJSON{File: "prog.yaml", StartByte: 44, EndByte: 46, StartLine: 4, StartCol: 11, EndLine: 4, EndCol: 13}
	if d.Location != want {
		t.Fatalf("unexpected location: got=%+v want=%+v", d.Location, want)
	}
}

func TestJSONNotesAndLimit(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("prog.yaml", []byte(progText))

	bag := diag.NewBag(10)
	for i := range 3 {
		sp := source.Span{File: fileID, Start: uint32(i), End: uint32(i + 1)}
		bag.Add(diag.NewError(diag.DescSyntax, sp, "bad").WithNote(source.Builtin, "declared here"))
	}

	out := BuildDiagnosticsOutput(bag, fs, JSONOpts{Max: 2})
	if out.Count != 2 {
		t.Fatalf("Max not applied: got=%d want=2", out.Count)
	}
	if out.Diagnostics[0].Notes != nil {
		t.Fatalf("notes included without IncludeNotes: got=%v", out.Diagnostics[0].Notes)
	}
	if out.Diagnostics[0].Location.StartLine != 0 {
		t.Fatalf("positions included without IncludePositions: got=%+v", out.Diagnostics[0].Location)
	}

	out = BuildDiagnosticsOutput(bag, fs, JSONOpts{IncludeNotes: true})
	if out.Count != 3 {
		t.Fatalf("unexpected count: got=%d want=3", out.Count)
	}
	notes := out.Diagnostics[2].Notes
	if len(notes) != 1 || notes[0].Location.File != "<builtin>" || notes[0].Message != "declared here" {
		t.Fatalf("unexpected notes: got=%+v", notes)
	}
}

func TestJSONNilBag(t *testing.T) {
	out := BuildDiagnosticsOutput(nil, source.NewFileSet(), JSONOpts{})
	if out.Count != 0 || out.Diagnostics == nil {
		t.Fatalf("unexpected output for nil bag: got=%+v", out)
	}
}
