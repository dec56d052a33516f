package version

import "testing"

func TestPlainStripsColor(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "\x1b[33;1m1\x1b[0m.\x1b[32;1m2\x1b[0m.3"
	if got := Plain(); got != "1.2.3" {
		t.Fatalf("Plain: got=%q want=%q", got, "1.2.3")
	}
	Version = "1.2.3-rc1"
	if got := Plain(); got != "1.2.3-rc1" {
		t.Fatalf("Plain: got=%q want=%q", got, "1.2.3-rc1")
	}
}

func TestDefaultVersionIsSet(t *testing.T) {
	if Plain() == "" {
		t.Fatalf("Version should have a default value")
	}
}
