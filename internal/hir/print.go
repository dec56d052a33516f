package hir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the feature tree of p with kinds, types and code.
func Dump(w io.Writer, p *Program) error {
	d := &dumper{p: p, w: w}
	d.feature(p.Universe, 0)
	return d.err
}

type dumper struct {
	p   *Program
	w   io.Writer
	err error
}

func (d *dumper) printf(indent int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s"+format+"\n", append([]any{strings.Repeat("  ", indent)}, args...)...)
}

func (d *dumper) feature(id FeatureID, indent int) {
	f := d.p.Feature(id)
	var flags []string
	if f.Ref {
		flags = append(flags, "ref")
	}
	if f.Constructor {
		flags = append(flags, "ctor")
	}
	if f.Fixed {
		flags = append(flags, "fixed")
	}
	if f.Primitive {
		flags = append(flags, "primitive")
	}
	head := fmt.Sprintf("%s %s", f.Kind, d.p.Name(id))
	if len(flags) > 0 {
		head += " [" + strings.Join(flags, ",") + "]"
	}
	if f.Result.IsValid() {
		head += " : " + d.p.TypeString(f.Result)
	}
	for _, c := range f.Inherits {
		head += " inherits " + d.p.TypeString(d.p.InheritsType(c))
	}
	if f.IsChoice() {
		alts := make([]string, len(f.Choices))
		for i, a := range f.Choices {
			alts[i] = d.p.TypeString(a)
		}
		head += " of (" + strings.Join(alts, " | ") + ")"
	}
	d.printf(indent, "%s", head)
	for _, e := range f.Pre {
		d.printf(indent+1, "pre %s", d.expr(e))
	}
	if f.Code != nil {
		for _, e := range f.Code.Exprs {
			d.printf(indent+1, "%s", d.expr(e))
		}
	}
	for _, e := range f.Post {
		d.printf(indent+1, "post %s", d.expr(e))
	}
	for _, in := range f.Inner {
		d.feature(in, indent+1)
	}
}

// ExprString renders e on one line.
func ExprString(p *Program, e Expr) string {
	return (&dumper{p: p}).expr(e)
}

func (d *dumper) expr(e Expr) string {
	s := &exprPrinter{p: d.p}
	if e != nil {
		e.Accept(s)
	}
	return s.sb.String()
}

type exprPrinter struct {
	p  *Program
	sb strings.Builder
}

func (s *exprPrinter) sub(e Expr) {
	if e == nil {
		s.sb.WriteString(UniverseName)
		return
	}
	e.Accept(s)
}

func (s *exprPrinter) VisitCall(e *Call) {
	s.sub(e.Target)
	s.sb.WriteByte('.')
	s.sb.WriteString(s.p.Name(e.Callee))
	if e.Select != NoSelect {
		fmt.Fprintf(&s.sb, ".%d", e.Select)
	}
	for _, g := range e.Generics {
		s.sb.WriteString(" " + s.p.TypeString(g))
	}
	if len(e.Args) > 0 {
		s.sb.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				s.sb.WriteString(", ")
			}
			s.sub(a)
		}
		s.sb.WriteByte(')')
	}
}

func (s *exprPrinter) VisitCurrent(*Current) { s.sb.WriteString("current") }

func (s *exprPrinter) VisitAssign(e *Assign) {
	s.sub(e.Target)
	s.sb.WriteString("." + s.p.Name(e.Field) + " := ")
	s.sub(e.Value)
}

func (s *exprPrinter) VisitMatch(e *Match) {
	s.sb.WriteString("match ")
	s.sub(e.Subject)
	s.sb.WriteString(" {")
	for i, c := range e.Cases {
		if i > 0 {
			s.sb.WriteString(";")
		}
		if c.Field.IsValid() {
			s.sb.WriteString(" " + s.p.Name(c.Field) + " " + s.p.TypeString(s.p.Feature(c.Field).Result))
		} else {
			for _, t := range c.Types {
				s.sb.WriteString(" " + s.p.TypeString(t))
			}
		}
		s.sb.WriteString(" => ")
		if c.Code != nil {
			s.sub(c.Code)
		}
	}
	s.sb.WriteString(" }")
}

func (s *exprPrinter) VisitTag(e *Tag) {
	s.sb.WriteString("tag(" + s.p.TypeString(e.Type) + ", ")
	s.sub(e.Value)
	s.sb.WriteByte(')')
}

func (s *exprPrinter) VisitBox(e *Box) {
	s.sb.WriteString("box(")
	s.sub(e.Value)
	s.sb.WriteByte(')')
}

func (s *exprPrinter) VisitConstant(e *Constant) {
	fmt.Fprintf(&s.sb, "%s %x", s.p.TypeString(e.Type), e.Data)
}

func (s *exprPrinter) VisitInlineArray(e *InlineArray) {
	s.sb.WriteByte('[')
	for i, el := range e.Elements {
		if i > 0 {
			s.sb.WriteString(", ")
		}
		s.sub(el)
	}
	s.sb.WriteByte(']')
}

func (s *exprPrinter) VisitEnv(e *Env) {
	s.sb.WriteString(s.p.TypeString(e.Type) + ".env")
}

func (s *exprPrinter) VisitBlock(e *Block) {
	s.sb.WriteByte('{')
	for i, x := range e.Exprs {
		if i > 0 {
			s.sb.WriteString("; ")
		}
		s.sub(x)
	}
	s.sb.WriteByte('}')
}
