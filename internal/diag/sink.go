package diag

import (
	"sync/atomic"

	"airgen/internal/source"
)

// Counter is the shared error counter. Passes snapshot it to learn whether
// errors were reported since some point, e.g. to stay silent about follow-up
// failures of an unrelated earlier error.
type Counter struct {
	errors   atomic.Int64
	warnings atomic.Int64
}

func (c *Counter) Errors() int {
	if c == nil {
		return 0
	}
	return int(c.errors.Load())
}

func (c *Counter) Warnings() int {
	if c == nil {
		return 0
	}
	return int(c.warnings.Load())
}

func (c *Counter) add(sev Severity) {
	switch {
	case sev >= SevError:
		c.errors.Add(1)
	case sev == SevWarning:
		c.warnings.Add(1)
	}
}

// Sink is the diagnostics facade of the compiler core:
// report(position, message, detail) with duplicate suppression.
type Sink struct {
	dedup   *DedupReporter
	counter *Counter
}

// NewSink wraps r with duplicate suppression and a fresh Counter.
func NewSink(r Reporter) *Sink {
	if r == nil {
		r = NopReporter{}
	}
	return &Sink{dedup: NewDedupReporter(r), counter: &Counter{}}
}

// Counter returns the shared error counter.
func (s *Sink) Counter() *Counter {
	if s == nil {
		return nil
	}
	return s.counter
}

// Errors is a shortcut for Counter().Errors().
func (s *Sink) Errors() int {
	return s.Counter().Errors()
}

// Report records an error; duplicates are dropped and not counted.
func (s *Sink) Report(code Code, pos source.Span, msg, detail string) bool {
	d := NewError(code, pos, msg).WithDetail(detail)
	return s.Emit(d)
}

// Emit forwards a fully built diagnostic. It reports whether d was new.
func (s *Sink) Emit(d Diagnostic) bool {
	if s == nil {
		return false
	}
	if !s.dedup.report(d) {
		return false
	}
	s.counter.add(d.Severity)
	return true
}

// Fatal reports d with SevFatal and panics with *FatalError.
func (s *Sink) Fatal(code Code, pos source.Span, msg, detail string) {
	d := New(SevFatal, code, pos, msg).WithDetail(detail)
	s.Emit(d)
	panic(&FatalError{Diag: d})
}
