package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"airgen/internal/diag"
	"airgen/internal/fuir"
	"airgen/internal/hir"
	"airgen/internal/irfile"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/observ"
	"airgen/internal/progdesc"
	"airgen/internal/source"
	"airgen/internal/trace"
)

// ErrDiagnostics is returned when a stage reported error diagnostics.
var ErrDiagnostics = errors.New("pipeline: diagnostics reported errors")

// Request configures one compilation.
type Request struct {
	// Path is the program description. It is ignored when Program is set.
	Path    string
	Program *hir.Program
	// Files receives the description so diagnostics can be printed even
	// when loading fails. Nil gets a fresh set.
	Files *source.FileSet

	// Output is where the IR file goes. Empty keeps the file in memory only.
	Output string

	MaxClazzes     int
	MaxDiagnostics int
	Comments       bool

	// Reporter sees every diagnostic in addition to Result.Diagnostics.
	Reporter diag.Reporter
	Progress ProgressSink
	Timer    *observ.Timer
}

// Result captures the artefacts of every stage that ran.
type Result struct {
	Program     *hir.Program
	Files       *source.FileSet
	Registry    *mono.Registry
	Layout      *layout.Engine
	IR          *fuir.Generated
	File        *irfile.File
	Diagnostics *diag.Bag
	Timings     Timings
}

type runner struct {
	req  *Request
	res  *Result
	sink *diag.Sink
	path string
}

// Run executes load, reach, layout, emit and serialize in order and stops at
// the first stage that fails or reports errors.
func Run(ctx context.Context, req *Request) (Result, error) {
	var res Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return res, errors.New("pipeline: missing request")
	}
	if req.Path == "" && req.Program == nil {
		return res, errors.New("pipeline: missing program")
	}

	res.Diagnostics = diag.NewBag(req.MaxDiagnostics)
	res.Files = req.Files
	if res.Files == nil {
		res.Files = source.NewFileSet()
	}
	var rep diag.Reporter = diag.BagReporter{Bag: res.Diagnostics}
	if req.Reporter != nil {
		rep = diag.MultiReporter{rep, req.Reporter}
	}
	r := &runner{req: req, res: &res, sink: diag.NewSink(rep), path: req.Path}
	if r.path == "" {
		r.path = "<program>"
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "build", trace.CurrentSpan(ctx))
	defer span.End("")
	ctx = trace.WithSpan(ctx, span)

	for _, st := range Stages {
		r.emit(st, StatusQueued, nil, 0)
	}
	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageLoad, r.load},
		{StageReach, r.reach},
		{StageLayout, r.layout},
		{StageEmit, r.generate},
		{StageSerialize, r.serialize},
	}
	for _, s := range steps {
		if err := r.stage(ctx, s.stage, s.fn); err != nil {
			return res, err
		}
	}
	req.Timer.Count("warnings", int64(r.sink.Counter().Warnings()))
	return res, nil
}

func (r *runner) emit(st Stage, status Status, err error, elapsed time.Duration) {
	if r.req.Progress == nil {
		return
	}
	r.req.Progress.OnEvent(Event{Path: r.path, Stage: st, Status: status, Err: err, Elapsed: elapsed})
}

func (r *runner) stage(ctx context.Context, st Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		r.emit(st, StatusError, err, 0)
		return err
	}
	r.emit(st, StatusWorking, nil, 0)
	idx := r.req.Timer.Begin(string(st))
	start := time.Now()
	before := r.sink.Errors()

	err := fn(ctx)
	if n := r.sink.Errors() - before; n > 0 {
		err = errors.Join(err, fmt.Errorf("%w: %d in %s", ErrDiagnostics, n, st))
	}

	elapsed := time.Since(start)
	r.res.Timings.Set(st, elapsed)
	if err != nil {
		r.req.Timer.End(idx, "failed")
		r.emit(st, StatusError, err, elapsed)
		return err
	}
	r.req.Timer.End(idx, "")
	r.emit(st, StatusDone, nil, elapsed)
	return nil
}

func (r *runner) load(context.Context) error {
	p := r.req.Program
	if p == nil {
		var err error
		if p, err = progdesc.LoadFiles(r.res.Files, r.req.Path, r.sink); err != nil {
			return err
		}
	}
	r.res.Program = p
	r.res.Files = p.Files
	r.req.Timer.Count("features", int64(p.NumFeatures()))
	return nil
}

func (r *runner) reach(ctx context.Context) error {
	p := r.res.Program
	reg := mono.NewRegistry(p, mono.Options{
		MaxClazzes: r.req.MaxClazzes,
		Sink:       r.sink,
		Tracer:     trace.FromContext(ctx),
	})
	r.res.Registry = reg
	err := reg.Reach(ctx, p.Main)
	r.req.Timer.Count("clazzes", int64(reg.Len()))
	r.req.Timer.Count("dynamic_calls", int64(reg.DynamicCalls()))
	return err
}

// layout sizes every clazz; a reported value type cycle stops the run before FUIR emission.
func (r *runner) layout(ctx context.Context) error {
	r.res.Layout = layout.New(r.res.Registry)
	return r.res.Layout.Run(ctx)
}

func (r *runner) generate(ctx context.Context) error {
	g, err := fuir.NewGenerated(r.res.Registry, r.res.Layout, r.res.Program.Main, fuir.Options{Comments: r.req.Comments})
	if err != nil {
		return err
	}
	if err := g.Freeze(ctx); err != nil {
		return err
	}
	r.res.IR = g
	r.req.Timer.Count("sites", int64(g.SiteEnd()-g.FirstSite()))
	if err := fuir.Validate(g); err != nil {
		return fmt.Errorf("pipeline: generated IR is inconsistent: %w", err)
	}
	return nil
}

func (r *runner) serialize(ctx context.Context) error {
	f, err := irfile.FromIR(ctx, r.res.IR)
	if err != nil {
		return err
	}
	r.res.File = f
	if r.req.Output == "" {
		_, err = irfile.Encode(f)
		return err
	}
	if err := irfile.Write(r.req.Output, f); err != nil {
		return fmt.Errorf("writing %s: %w", r.req.Output, err)
	}
	return nil
}
