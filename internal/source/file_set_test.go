package source

import "testing"

func TestFileSetFormat(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("prog.fz", []byte("a is\n  b is\n    c\n"))
	if id != 1 {
		t.Fatalf("first file id: got=%d want=1", id)
	}
	cases := []struct {
		off  uint32
		want string
	}{
		{0, "prog.fz:1:1"},
		{7, "prog.fz:2:3"},
		{16, "prog.fz:3:5"},
	}
	for _, c := range cases {
		got := fs.Format(Span{File: id, Start: c.off, End: c.off + 1})
		if got != c.want {
			t.Fatalf("Format(%d): got=%q want=%q", c.off, got, c.want)
		}
	}
	if got := fs.Format(Builtin); got != "<builtin>" {
		t.Fatalf("builtin: got=%q", got)
	}
}

func TestFileSetShadowing(t *testing.T) {
	fs := NewFileSet()
	first := fs.Add("x/../a.fz", []byte("one"))
	second := fs.Add("a.fz", []byte("two"))
	latest, ok := fs.Lookup("a.fz")
	if !ok || latest != second {
		t.Fatalf("Lookup: got=%d,%v want=%d", latest, ok, second)
	}
	if string(fs.Get(first).Content) != "one" {
		t.Fatalf("earlier version lost")
	}
	if fs.Len() != 2 {
		t.Fatalf("Len: got=%d want=2", fs.Len())
	}
}

func TestFileLine(t *testing.T) {
	fs := NewFileSet()
	f := fs.Get(fs.AddVirtual("l.fz", []byte("first\nsecond\nthird")))
	if got := f.Line(2); got != "second" {
		t.Fatalf("Line(2): got=%q", got)
	}
	if got := f.Line(3); got != "third" {
		t.Fatalf("Line(3): got=%q", got)
	}
	if got := f.Line(9); got != "" {
		t.Fatalf("Line(9): got=%q", got)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if got := a.Cover(b); got != (Span{File: 1, Start: 2, End: 8}) {
		t.Fatalf("Cover: got=%v", got)
	}
	if !b.Less(a) || a.Less(b) {
		t.Fatalf("Less ordering broken")
	}
}
