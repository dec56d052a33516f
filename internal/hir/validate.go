package hir

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants mono relies on: ids in range,
// argument and type-argument counts, acyclic inheritance and a main feature.
func (p *Program) Validate() error {
	var errs []error
	if !p.Main.IsValid() || p.Feature(p.Main) == nil {
		errs = append(errs, errors.New("hir: program has no main feature"))
	}
	for i := 1; i < len(p.features); i++ {
		f := &p.features[i]
		name := p.QualifiedName(f.ID)
		if f.ID != p.Universe && p.Feature(f.Outer) == nil {
			errs = append(errs, fmt.Errorf("hir: %s: invalid outer %d", name, f.Outer))
			continue
		}
		if f.IsOuterRef() && p.Feature(f.OuterRefOf).OuterRef != f.ID {
			errs = append(errs, fmt.Errorf("hir: %s: outer-ref field not registered", name))
		}
		if f.IsChoice() && len(f.Choices) == 0 {
			errs = append(errs, fmt.Errorf("hir: %s: choice without alternatives", name))
		}
		for k, tp := range f.TypeParams {
			if p.Feature(tp).IsOpenTypeParameter() && k != len(f.TypeParams)-1 {
				errs = append(errs, fmt.Errorf("hir: %s: open type parameter must be last", name))
			}
		}
		if p.inheritsCycle(f.ID, make(map[FeatureID]bool)) {
			errs = append(errs, fmt.Errorf("hir: %s: cyclic inheritance", name))
			continue
		}
		check := func(e Expr) {
			Walk(e, func(x Expr) bool {
				if err := p.checkExpr(x); err != nil {
					errs = append(errs, fmt.Errorf("hir: %s: %w", name, err))
				}
				return true
			})
		}
		for _, c := range f.Inherits {
			check(c)
		}
		if f.Code != nil {
			check(f.Code)
		}
		for _, e := range f.Pre {
			check(e)
		}
		for _, e := range f.Post {
			check(e)
		}
	}
	return errors.Join(errs...)
}

func (p *Program) inheritsCycle(f FeatureID, onPath map[FeatureID]bool) bool {
	if onPath[f] {
		return true
	}
	onPath[f] = true
	defer delete(onPath, f)
	for _, c := range p.Feature(f).Inherits {
		if p.inheritsCycle(c.Callee, onPath) {
			return true
		}
	}
	return false
}

func (p *Program) checkExpr(e Expr) error {
	switch x := e.(type) {
	case *Call:
		cf := p.Feature(x.Callee)
		if cf == nil {
			return fmt.Errorf("call to invalid feature %d", x.Callee)
		}
		want := len(cf.Args)
		openArgs := want > 0 && p.IsOpenTyped(cf.Args[want-1])
		if !cf.IsChoice() && ((!openArgs && len(x.Args) != want) || (openArgs && len(x.Args) < want-1)) {
			return fmt.Errorf("call to %s: got %d arguments, want %d", p.QualifiedName(x.Callee), len(x.Args), want)
		}
		n := len(cf.TypeParams)
		open := n > 0 && p.Feature(cf.TypeParams[n-1]).IsOpenTypeParameter()
		if (!open && len(x.Generics) != n) || (open && len(x.Generics) < n-1) {
			return fmt.Errorf("call to %s: got %d type arguments, want %d", p.QualifiedName(x.Callee), len(x.Generics), n)
		}
	case *Assign:
		if !p.Feature(x.Field).IsField() {
			return fmt.Errorf("assignment to non-field %d", x.Field)
		}
	case *Match:
		for _, c := range x.Cases {
			if c.Field.IsValid() && !p.Feature(c.Field).IsField() {
				return fmt.Errorf("case binds non-field %d", c.Field)
			}
		}
	}
	return nil
}
