package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"airgen/internal/hir"
	"airgen/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a built program:
// 1) every non-builtin feature span is non-empty and within its file content
// 2) every expression span lies inside the span of the feature owning the code
// 3) expression ids are unique
func CheckSpanInvariants(p *hir.Program) error {
	if p == nil {
		return fmt.Errorf("nil program")
	}
	seen := make(map[hir.ExprID]bool)
	for i := 1; i <= p.NumFeatures(); i++ {
		id, err := safecast.Conv[uint32](i)
		if err != nil {
			return fmt.Errorf("feature index overflow: %w", err)
		}
		f := p.Feature(hir.FeatureID(id))
		if err := checkSpan(p.Files, f.Span); err != nil {
			return fmt.Errorf("%s: %w", p.QualifiedName(f.ID), err)
		}
		var exprErr error
		visit := func(e hir.Expr) bool {
			if exprErr != nil {
				return false
			}
			if seen[e.ID()] {
				exprErr = fmt.Errorf("%s: expression id %d used twice", p.QualifiedName(f.ID), e.ID())
				return false
			}
			seen[e.ID()] = true
			sp := e.Pos()
			if sp.IsBuiltin() || f.Span.IsBuiltin() {
				return true
			}
			// expression inside its feature
			if sp.File != f.Span.File || sp.Start < f.Span.Start || sp.End > f.Span.End {
				exprErr = fmt.Errorf("%s: expression span %v is outside feature span %v", p.QualifiedName(f.ID), sp, f.Span)
			}
			return true
		}
		for _, c := range f.Inherits {
			hir.Walk(c, visit)
		}
		if f.Code != nil {
			hir.Walk(f.Code, visit)
		}
		for _, e := range f.Pre {
			hir.Walk(e, visit)
		}
		for _, e := range f.Post {
			hir.Walk(e, visit)
		}
		if exprErr != nil {
			return exprErr
		}
	}
	return nil
}

func checkSpan(fs *source.FileSet, sp source.Span) error {
	if sp.IsBuiltin() {
		return nil
	}
	if sp.End <= sp.Start {
		return fmt.Errorf("span is empty: %v", sp)
	}
	f := fs.Get(sp.File)
	if f == nil {
		return fmt.Errorf("span points to unknown file %d", sp.File)
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if sp.End > lenContent {
		return fmt.Errorf("span end beyond content: %d > %d", sp.End, lenContent)
	}
	return nil
}
