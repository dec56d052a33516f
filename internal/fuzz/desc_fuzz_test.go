package fuzztests

import (
	"errors"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/progdesc"
	"airgen/internal/testkit"
)

func FuzzDescriptionParse(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampSeed(input)

		bag := diag.NewBag(64)
		p, err := progdesc.Parse(input, "fuzz.yaml", diag.NewSink(diag.BagReporter{Bag: bag}))
		if err != nil {
			if errors.Is(err, progdesc.ErrInvalid) && !bag.HasErrors() {
				t.Fatalf("ErrInvalid without error diagnostics")
			}
			return
		}
		if bag.HasErrors() {
			t.Fatalf("program returned with error diagnostics: %+v", bag.Items())
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("loaded program is invalid: %v", err)
		}
		if err := testkit.CheckSpanInvariants(p); err != nil {
			t.Fatalf("span invariants: %v", err)
		}
	})
}
