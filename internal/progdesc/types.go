package progdesc

import (
	"strings"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/source"
)

// Types are written as in the language:
//
//	i32
//	ref Any
//	list (ref A) i32
//	outer.this
//
// A generic argument that is not a single name is parenthesized.

type typeParser struct {
	l     *loader
	scope hir.FeatureID
	toks  []string
	pos   int
	sp    source.Span
	src   string
	bad   bool
}

func tokenize(s string) []string {
	var toks []string
	cur := strings.Builder{}
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// typ resolves the type written as s, seen from scope.
func (l *loader) typ(scope hir.FeatureID, s string, sp source.Span) hir.TypeID {
	tp := &typeParser{l: l, scope: scope, toks: tokenize(s), sp: sp, src: s}
	if len(tp.toks) == 0 {
		l.errorf(diag.DescSyntax, sp, "empty type")
		return l.p.Types.Error()
	}
	t := tp.parse(true)
	if !tp.bad && tp.pos < len(tp.toks) {
		tp.fail("unexpected %q", tp.toks[tp.pos])
	}
	if tp.bad {
		return l.p.Types.Error()
	}
	return t
}

func (tp *typeParser) fail(format string, args ...any) {
	if tp.bad {
		return
	}
	tp.bad = true
	tp.l.errorf(diag.DescSyntax, tp.sp, "type %q: "+format, append([]any{tp.src}, args...)...)
}

func (tp *typeParser) peek() string {
	if tp.pos < len(tp.toks) {
		return tp.toks[tp.pos]
	}
	return ""
}

func (tp *typeParser) next() string {
	t := tp.peek()
	if t != "" {
		tp.pos++
	}
	return t
}

// parse reads one type; top allows trailing generic arguments.
func (tp *typeParser) parse(top bool) hir.TypeID {
	if tp.peek() == "(" {
		tp.next()
		t := tp.parse(true)
		if tp.next() != ")" {
			tp.fail("missing )")
		}
		return t
	}
	mode := ""
	if top && (tp.peek() == "ref" || tp.peek() == "value") {
		mode = tp.next()
	}
	name := tp.next()
	if name == "" || name == ")" {
		tp.fail("missing type name")
		return tp.l.p.Types.Error()
	}
	var gens []hir.TypeID
	for top && tp.peek() != "" && tp.peek() != ")" {
		gens = append(gens, tp.parse(false))
	}
	if tp.bad {
		return tp.l.p.Types.Error()
	}

	b := tp.l.b
	if prefix, ok := strings.CutSuffix(name, ".this"); ok {
		f := tp.l.lookup(tp.scope, prefix)
		if !f.IsValid() {
			tp.l.errorf(diag.DescUnknownName, tp.sp, "unknown feature %q in type %q", prefix, tp.src)
			tp.bad = true
			return tp.l.p.Types.Error()
		}
		return b.This(f)
	}
	f := tp.l.lookup(tp.scope, name)
	switch {
	case !f.IsValid():
		tp.l.errorf(diag.DescUnknownName, tp.sp, "unknown type %q", name)
		tp.bad = true
		return tp.l.p.Types.Error()
	case tp.l.p.Feature(f).IsTypeParameter():
		if len(gens) > 0 || mode != "" {
			tp.fail("type parameter %s takes no arguments", name)
		}
		return b.P(f)
	}
	switch mode {
	case "ref":
		return b.RefT(f, gens...)
	case "value":
		return b.ValT(f, gens...)
	}
	return b.T(f, gens...)
}
