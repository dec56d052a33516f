package layout

import (
	"context"
	"errors"
	"slices"
	"strings"

	"airgen/internal/diag"
	"airgen/internal/mono"
	"airgen/internal/trace"
)

type status uint8

const (
	statusBefore status = iota
	statusDuring
	statusAfter
)

// Engine lays out the clazzes of a closed registry. It finds value types that
// would contain themselves and answers unit and choice questions the backends need.
type Engine struct {
	reg  *mono.Registry
	sink *diag.Sink

	unit     []mono.Tri
	status   []status
	reported map[string]struct{}
	errs     []*Error
}

// New creates an Engine over reg. Diagnostics go to reg's sink.
func New(reg *mono.Registry) *Engine {
	n := reg.Len() + 1
	return &Engine{
		reg:      reg,
		sink:     reg.Sink(),
		unit:     make([]mono.Tri, n),
		status:   make([]status, n),
		reported: make(map[string]struct{}),
	}
}

func (e *Engine) grow(id mono.ClazzID) {
	// the error clazz may be created after the engine
	if int(id) < len(e.status) {
		return
	}
	n := int(id) + 1
	e.unit = append(e.unit, make([]mono.Tri, n-len(e.unit))...)
	e.status = append(e.status, make([]status, n-len(e.status))...)
}

// IsUnitType reports whether values of id carry no data.
// A clazz that is still being computed counts as not unit.
func (e *Engine) IsUnitType(id mono.ClazzID) bool {
	if !id.IsValid() {
		return false
	}
	e.grow(id)
	switch e.unit[id] {
	case mono.TriYes:
		return true
	case mono.TriNo, mono.TriComputing:
		return false
	}
	e.unit[id] = mono.TriComputing
	res := e.computeUnit(id)
	e.unit[id] = mono.TriOf(res)
	return res
}

func (e *Engine) computeUnit(id mono.ClazzID) bool {
	c := e.reg.Clazz(id)
	f := e.reg.FeatureOf(id)
	if c.Ref || f == nil || f.Primitive || f.IsChoice() || e.IsVoidType(id) || e.reg.IsError(id) {
		return false
	}
	for _, fc := range e.reg.Fields(id) {
		if !e.IsUnitType(e.reg.ResultClazz(fc)) {
			return false
		}
	}
	return true
}

// IsVoidType reports whether id is the clazz of void, which has no values.
func (e *Engine) IsVoidType(id mono.ClazzID) bool {
	return id.IsValid() && id == e.reg.Special(mono.SpecialVoid)
}

// IsChoiceWithRefs reports whether some alternative of choice id is a reference.
func (e *Engine) IsChoiceWithRefs(id mono.ClazzID) bool {
	return slices.ContainsFunc(e.reg.Choices(id), func(a mono.ClazzID) bool {
		return e.reg.Clazz(a).Ref
	})
}

// IsChoiceOfOnlyRefs reports whether every alternative of choice id is either a
// reference or a unit value, so a single pointer can represent the choice.
func (e *Engine) IsChoiceOfOnlyRefs(id mono.ClazzID) bool {
	alts := e.reg.Choices(id)
	if len(alts) == 0 || !e.IsChoiceWithRefs(id) {
		return false
	}
	for _, a := range alts {
		if !e.reg.Clazz(a).Ref && !e.IsUnitType(a) {
			return false
		}
	}
	return true
}

// cycle is the result of a layout that ran into a clazz already being laid out.
type cycle struct {
	start  mono.ClazzID
	closed bool
	fields []mono.ClazzID // innermost first
}

// Layout lays out id and its nested value fields. It returns the field clazzes
// of a nesting cycle, or nil.
func (e *Engine) Layout(id mono.ClazzID) []mono.ClazzID {
	if cy := e.layout(id); cy != nil {
		return cy.fields
	}
	return nil
}

func (e *Engine) layout(id mono.ClazzID) *cycle {
	if !id.IsValid() {
		return nil
	}
	e.grow(id)
	switch e.status[id] {
	case statusDuring:
		return &cycle{start: id}
	case statusAfter:
		return nil
	}
	e.status[id] = statusDuring
	defer func() { e.status[id] = statusAfter }()

	c := e.reg.Clazz(id)
	f := e.reg.FeatureOf(id)
	if c.Ref || f == nil || e.reg.IsError(id) {
		return nil
	}
	if f.IsChoice() {
		for _, a := range e.reg.Choices(id) {
			if e.reg.Clazz(a).Ref {
				continue
			}
			if cy := e.layout(a); cy != nil {
				// the alternative is stored inline; no field to name
				cy.closed = cy.closed || cy.start == id
				return cy
			}
		}
		return nil
	}
	for _, fc := range e.reg.Fields(id) {
		if ff := e.reg.FeatureOf(fc); ff != nil && ff.IsOuterRef() {
			continue
		}
		rc := e.reg.ResultClazz(fc)
		if !e.nested(rc) {
			continue
		}
		if cy := e.layout(rc); cy != nil {
			if !cy.closed {
				cy.fields = append(cy.fields, fc)
				cy.closed = cy.start == id
			}
			return cy
		}
	}
	return nil
}

// nested reports whether a field of clazz rc is embedded in its holder.
func (e *Engine) nested(rc mono.ClazzID) bool {
	if !rc.IsValid() || e.reg.IsError(rc) || e.IsVoidType(rc) {
		return false
	}
	if e.reg.Clazz(rc).Ref {
		return false
	}
	f := e.reg.FeatureOf(rc)
	return f != nil && !f.Primitive
}

// LayoutAndHandleCycle lays out id and reports a nesting cycle once.
func (e *Engine) LayoutAndHandleCycle(id mono.ClazzID) *Error {
	cy := e.Layout(id)
	if len(cy) == 0 {
		return nil
	}
	key := make([]string, len(cy))
	for i, fc := range cy {
		key[i] = e.reg.Name(fc)
	}
	sorted := slices.Clone(key)
	slices.Sort(sorted)
	k := strings.Join(sorted, "\x00")
	if _, seen := e.reported[k]; seen {
		return nil
	}
	e.reported[k] = struct{}{}

	err := &Error{Kind: ErrCyclicNesting, Clazz: id, Names: key}
	var sb strings.Builder
	sb.WriteString("Cyclic value field nesting would result in infinitely large objects.\n")
	sb.WriteString("Cycle of nesting found during clazz layout:\n")
	for _, fc := range cy {
		f := e.reg.FeatureOf(fc)
		err.Cycle = append(err.Cycle, f.Span)
		sb.WriteString("  ")
		sb.WriteString(e.reg.Pos(f.Span))
		sb.WriteString(": field ")
		sb.WriteString(e.reg.Name(fc))
		sb.WriteString("\n")
	}
	sb.WriteString("\nTo solve this, you could change one or several of the fields involved to a reference type by adding 'ref' before the type.")
	pos := e.reg.FeatureOf(cy[len(cy)-1]).Span
	e.sink.Report(diag.LayoutCyclicNesting, pos, "Cyclic field nesting is not permitted", sb.String())
	e.errs = append(e.errs, err)
	return err
}

// Run lays out every clazz that is not a field, in id order. It returns the
// cycles found, joined; they have been reported already.
func (e *Engine) Run(ctx context.Context) error {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "layout", trace.CurrentSpan(ctx))
	defer func() { span.End("") }()
	for _, id := range e.reg.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f := e.reg.FeatureOf(id); f == nil || f.IsField() {
			continue
		}
		e.LayoutAndHandleCycle(id)
	}
	if len(e.errs) == 0 {
		return nil
	}
	errs := make([]error, len(e.errs))
	for i, le := range e.errs {
		errs[i] = le
	}
	return errors.Join(errs...)
}

// Errors returns the cycles reported so far.
func (e *Engine) Errors() []*Error {
	return e.errs
}
