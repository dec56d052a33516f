package source

import "testing"

func TestInternerNFC(t *testing.T) {
	in := NewInterner()
	composed := in.Intern("café")
	decomposed := in.Intern("café")
	if composed != decomposed {
		t.Fatalf("NFC forms differ: %d vs %d", composed, decomposed)
	}
	if in.Len() != 2 {
		t.Fatalf("Len: got=%d want=2", in.Len())
	}
	if s := in.MustLookup(composed); s != "café" {
		t.Fatalf("MustLookup: got=%q", s)
	}
	if _, ok := in.Find("missing"); ok {
		t.Fatalf("Find interned a new string")
	}
	if in.Intern("") != NoStringID {
		t.Fatalf("empty string must map to NoStringID")
	}
}
