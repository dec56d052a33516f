package fuzztests

import (
	"context"
	"testing"
	"time"

	"airgen/internal/diag"
	"airgen/internal/pipeline"
	"airgen/internal/progdesc"
)

// runTimeout is the maximum time allowed for one description. If the
// pipeline takes longer, reachability is likely not terminating.
const runTimeout = 5 * time.Second

// FuzzPipelineNoHang runs every loadable description through the whole
// pipeline with a small clazz limit.
func FuzzPipelineNoHang(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		p, err := progdesc.Parse(input, "fuzz.yaml", diag.NewSink(diag.NopReporter{}))
		if err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			// ошибки допустимы, паники и зависания нет
			_, _ = pipeline.Run(ctx, &pipeline.Request{Program: p, MaxClazzes: 4096, MaxDiagnostics: 32})
		}()

		select {
		case <-done:
		case <-ctx.Done():
			t.Fatalf("pipeline hang detected: run took longer than %v\ninput (%d bytes): %q",
				runTimeout, len(input), truncateForLog(input, 200))
		}
	})
}
