package main

import (
	"fmt"
	"io"
	"time"

	"airgen/internal/pipeline"
)

// printStageTimings prints one line per stage that ran; reach and layout
// share a line.
func printStageTimings(out io.Writer, timings pipeline.Timings) error {
	if timings.Has(pipeline.StageLoad) {
		if _, err := fmt.Fprintf(out, "loaded %.1f ms\n", toMillis(timings.Duration(pipeline.StageLoad))); err != nil {
			return err
		}
	}
	if timings.Has(pipeline.StageReach) || timings.Has(pipeline.StageLayout) {
		reached := timings.Sum(pipeline.StageReach, pipeline.StageLayout)
		if _, err := fmt.Fprintf(out, "reached %.1f ms\n", toMillis(reached)); err != nil {
			return err
		}
	}
	if timings.Has(pipeline.StageEmit) {
		if _, err := fmt.Fprintf(out, "emitted %.1f ms\n", toMillis(timings.Duration(pipeline.StageEmit))); err != nil {
			return err
		}
	}
	if timings.Has(pipeline.StageSerialize) {
		if _, err := fmt.Fprintf(out, "serialized %.1f ms\n", toMillis(timings.Duration(pipeline.StageSerialize))); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
