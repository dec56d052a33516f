// Package trace records what the monomorphizer is doing while it runs.
//
// Pipeline stages open phase spans; the registry emits clazz-level points
// (creation, dynamic binding) and lookup-level points at debug level.
//
//	airgen build --trace=- --trace-level=detail prog.yaml
//
// Tracers:
//
//   - Nop: zero-overhead no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer, dumped when a build fails
//   - MultiTracer: combines several tracers
//
// Tracers travel through the pipeline in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "reach", 0)
//	defer span.End("")
package trace
