package progdesc

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/source"
)

// Expressions are YAML nodes. A plain scalar calls the feature it names,
// except "current". A mapping is identified by its head key:
//
//	call: A.m          target, args, generics, select
//	assign: x          target, value
//	int: 3             type (default i32)
//	float: 1.5         type (default f64)
//	string: "text"
//	bytes: "0300"      type
//	box: <expr>        to
//	tag: <expr>        choice
//	match: <expr>      type, cases: [{field | types, code}]
//	array: [<expr>]    type, elem
//	env: T
//	block: [<expr>]
//	current: true
//
// Calls without a target address the innermost enclosing instance that
// holds the callee, or the universe.
var exprKeys = map[string][]string{
	"call":    {"target", "args", "generics", "select"},
	"assign":  {"target", "value"},
	"int":     {"type"},
	"float":   {"type"},
	"string":  nil,
	"bytes":   {"type"},
	"box":     {"to"},
	"tag":     {"choice"},
	"match":   {"type", "cases"},
	"array":   {"type", "elem"},
	"env":     nil,
	"block":   nil,
	"current": nil,
}

type exprs struct {
	l     *loader
	scope hir.FeatureID
}

func newExprs(l *loader, scope hir.FeatureID) *exprs {
	return &exprs{l: l, scope: scope}
}

func (x *exprs) list(ns []yaml.Node) []hir.Expr {
	out := make([]hir.Expr, 0, len(ns))
	for i := range ns {
		if e := x.expr(&ns[i]); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (x *exprs) seq(n *yaml.Node) []hir.Expr {
	if n.Kind != yaml.SequenceNode {
		x.l.errorf(diag.DescSyntax, x.l.span(n), "expected a list of expressions")
		return nil
	}
	out := make([]hir.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		if e := x.expr(c); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// fields splits a mapping into its head key and the remaining keys.
func (x *exprs) fields(n *yaml.Node) (string, map[string]*yaml.Node, bool) {
	sp := x.l.span(n)
	head := ""
	keys := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if _, ok := exprKeys[k]; ok {
			if head != "" {
				x.l.errorf(diag.DescSyntax, sp, "expression has both %q and %q", head, k)
				return "", nil, false
			}
			head = k
		}
		keys[k] = n.Content[i+1]
	}
	if head == "" {
		x.l.errorf(diag.DescSyntax, sp, "unknown expression")
		return "", nil, false
	}
	allowed := exprKeys[head]
	for k := range keys {
		if k == head {
			continue
		}
		ok := false
		for _, a := range allowed {
			ok = ok || a == k
		}
		if !ok {
			x.l.errorf(diag.DescSyntax, sp, "%s: unexpected key %q", head, k)
			return "", nil, false
		}
	}
	return head, keys, true
}

func (x *exprs) expr(n *yaml.Node) hir.Expr {
	l, b := x.l, x.l.b
	sp := l.span(n)
	b.At(sp)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "current" {
			b.At(sp)
			return b.Current()
		}
		callee := x.resolve(n.Value, sp)
		if !callee.IsValid() {
			return nil
		}
		return b.Call(x.implicitTarget(callee), callee)
	case yaml.MappingNode:
	default:
		l.errorf(diag.DescSyntax, sp, "expected an expression")
		return nil
	}

	head, keys, ok := x.fields(n)
	if !ok {
		return nil
	}
	switch head {
	case "call":
		return x.call(keys, sp)
	case "assign":
		return x.assign(keys, sp)
	case "int", "float", "string", "bytes":
		return x.constant(head, keys, sp)
	case "box":
		to, ok := x.typeKey(keys, "to", sp)
		v := x.expr(keys["box"])
		if !ok || v == nil {
			return nil
		}
		b.At(sp)
		return b.Box(v, to)
	case "tag":
		ch, ok := x.typeKey(keys, "choice", sp)
		v := x.expr(keys["tag"])
		if !ok || v == nil {
			return nil
		}
		b.At(sp)
		return b.Tag(v, ch)
	case "match":
		return x.match(keys, sp)
	case "array":
		t, ok1 := x.typeKey(keys, "type", sp)
		elem, ok2 := x.typeKey(keys, "elem", sp)
		elems := x.seq(keys["array"])
		if !ok1 || !ok2 {
			return nil
		}
		b.At(sp)
		return b.InlineArray(t, elem, elems...)
	case "env":
		t := l.typ(x.scope, keys["env"].Value, sp)
		b.At(sp)
		return b.Env(t)
	case "block":
		es := x.seq(keys["block"])
		b.At(sp)
		return b.Block(es...)
	case "current":
		b.At(sp)
		return b.Current()
	}
	return nil
}

func (x *exprs) resolve(name string, sp source.Span) hir.FeatureID {
	f := x.l.lookup(x.scope, name)
	if !f.IsValid() {
		x.l.errorf(diag.DescUnknownName, sp, "unknown feature %q in %s", name, x.l.p.QualifiedName(x.scope))
	}
	return f
}

func (x *exprs) typeKey(keys map[string]*yaml.Node, key string, sp source.Span) (hir.TypeID, bool) {
	n, ok := keys[key]
	if !ok {
		x.l.errorf(diag.DescSyntax, sp, "missing %q", key)
		return hir.NoTypeID, false
	}
	return x.l.typ(x.scope, n.Value, sp), true
}

// implicitTarget builds the chain of outer refs from the current instance to
// the innermost instance that holds callee. Universe features need no target.
func (x *exprs) implicitTarget(callee hir.FeatureID) hir.Expr {
	p, b := x.l.p, x.l.b
	owner := p.Feature(callee).Outer
	if owner == p.Universe {
		return nil
	}
	depth, found := 0, false
	for s := x.scope; s.IsValid() && s != p.Universe; s = p.Feature(s).Outer {
		if s == owner || p.InheritsFrom(s, owner) {
			found = true
			break
		}
		depth++
	}
	if !found {
		return nil
	}
	var t hir.Expr = b.Current()
	s := x.scope
	for range depth {
		t = b.Call(t, b.OuterRef(s))
		s = p.Feature(s).Outer
	}
	return t
}

type callParts struct {
	target   hir.Expr
	callee   hir.FeatureID
	generics []hir.TypeID
	args     []hir.Expr
	sel      int
}

func (x *exprs) parts(keys map[string]*yaml.Node, sp source.Span, inherit bool) (callParts, bool) {
	cp := callParts{sel: hir.NoSelect}
	cp.callee = x.resolve(keys["call"].Value, sp)
	if !cp.callee.IsValid() {
		return cp, false
	}
	if g, ok := keys["generics"]; ok {
		for _, gn := range g.Content {
			cp.generics = append(cp.generics, x.l.typ(x.scope, gn.Value, sp))
		}
	}
	if a, ok := keys["args"]; ok {
		cp.args = x.seq(a)
	}
	switch t, ok := keys["target"]; {
	case ok:
		cp.target = x.expr(t)
		if cp.target == nil {
			return cp, false
		}
	case !inherit:
		x.l.b.At(sp)
		cp.target = x.implicitTarget(cp.callee)
	}
	if s, ok := keys["select"]; ok {
		n, err := strconv.Atoi(s.Value)
		if err != nil || n < 0 {
			x.l.errorf(diag.DescSyntax, sp, "select must be a non-negative integer, got %q", s.Value)
			return cp, false
		}
		cp.sel = n
	}
	return cp, true
}

func (x *exprs) call(keys map[string]*yaml.Node, sp source.Span) hir.Expr {
	cp, ok := x.parts(keys, sp, false)
	if !ok {
		return nil
	}
	b := x.l.b
	b.At(sp)
	if cp.sel != hir.NoSelect {
		return b.Select(cp.target, cp.callee, cp.sel)
	}
	return b.CallG(cp.target, cp.callee, cp.generics, cp.args...)
}

// inherit builds an inherits call of heir; its names resolve outside heir.
func (x *exprs) inherit(heir hir.FeatureID, n *yaml.Node) {
	sp := x.l.span(n)
	var keys map[string]*yaml.Node
	switch n.Kind {
	case yaml.ScalarNode:
		keys = map[string]*yaml.Node{"call": n}
	case yaml.MappingNode:
		head, k, ok := x.fields(n)
		if !ok {
			return
		}
		if head != "call" {
			x.l.errorf(diag.DescSyntax, sp, "inherits entries must be calls")
			return
		}
		keys = k
	default:
		x.l.errorf(diag.DescSyntax, sp, "expected a call")
		return
	}
	cp, ok := x.parts(keys, sp, true)
	if !ok {
		return
	}
	x.l.b.At(sp)
	x.l.b.Inherit(heir, cp.target, cp.callee, cp.generics, cp.args...)
}

func (x *exprs) assign(keys map[string]*yaml.Node, sp source.Span) hir.Expr {
	field := x.resolve(keys["assign"].Value, sp)
	vn, ok := keys["value"]
	if !ok {
		x.l.errorf(diag.DescSyntax, sp, "assign needs a value")
		return nil
	}
	v := x.expr(vn)
	if !field.IsValid() || v == nil {
		return nil
	}
	var target hir.Expr
	if t, ok := keys["target"]; ok {
		if target = x.expr(t); target == nil {
			return nil
		}
	} else {
		x.l.b.At(sp)
		target = x.implicitTarget(field)
	}
	x.l.b.At(sp)
	return x.l.b.Assign(target, field, v)
}

func (x *exprs) constant(head string, keys map[string]*yaml.Node, sp source.Span) hir.Expr {
	l, b := x.l, x.l.b
	if l.base == nil {
		l.errorf(diag.DescSyntax, sp, "%s constants need the base library (base: true)", head)
		return nil
	}
	val := keys[head].Value
	tname := map[string]string{"int": "i32", "float": "f64"}[head]
	if t, ok := keys["type"]; ok {
		tname = t.Value
	}
	num := func() (hir.FeatureID, int, bool) {
		f := l.lookup(x.scope, tname)
		w, ok := l.base.NumWidth()[f]
		if !ok {
			l.errorf(diag.DescSyntax, sp, "%s constant of non-numeric type %q", head, tname)
		}
		return f, w, ok
	}

	switch head {
	case "int":
		f, w, ok := num()
		if !ok {
			return nil
		}
		v, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			l.errorf(diag.DescSyntax, sp, "bad integer %q", val)
			return nil
		}
		b.At(sp)
		return b.Int(b.T(f), w, v)
	case "float":
		f, w, ok := num()
		if !ok {
			return nil
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			l.errorf(diag.DescSyntax, sp, "bad float %q", val)
			return nil
		}
		b.At(sp)
		if w == 4 {
			data := binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v)))
			return b.Const(b.T(f), data)
		}
		return b.Float64(b.T(f), v)
	case "string":
		b.At(sp)
		return b.Const(b.T(l.base.ConstString), []byte(val))
	case "bytes":
		if _, ok := keys["type"]; !ok {
			l.errorf(diag.DescSyntax, sp, "bytes constant needs a type")
			return nil
		}
		data, err := hex.DecodeString(val)
		if err != nil {
			l.errorf(diag.DescSyntax, sp, "bad hex data %q", val)
			return nil
		}
		t := l.typ(x.scope, tname, sp)
		b.At(sp)
		return b.Const(t, data)
	}
	return nil
}

func (x *exprs) match(keys map[string]*yaml.Node, sp source.Span) hir.Expr {
	l, b := x.l, x.l.b
	t, ok := x.typeKey(keys, "type", sp)
	subject := x.expr(keys["match"])
	if !ok || subject == nil {
		return nil
	}
	var cases []*hir.Case
	if cn, ok := keys["cases"]; ok {
		for _, c := range cn.Content {
			if hc := x.matchCase(c); hc != nil {
				cases = append(cases, hc)
			}
		}
	}
	if len(cases) == 0 {
		l.errorf(diag.DescSyntax, sp, "match without cases")
		return nil
	}
	b.At(sp)
	return b.Match(subject, t, cases...)
}

func (x *exprs) matchCase(n *yaml.Node) *hir.Case {
	l, b := x.l, x.l.b
	sp := l.span(n)
	var c struct {
		Field string      `yaml:"field"`
		Types []string    `yaml:"types"`
		Code  []yaml.Node `yaml:"code"`
	}
	if err := n.Decode(&c); err != nil {
		l.errorf(diag.DescSyntax, sp, "bad case: %v", err)
		return nil
	}
	code := x.list(c.Code)
	switch {
	case c.Field != "" && len(c.Types) > 0:
		l.errorf(diag.DescSyntax, sp, "case has both field and types")
	case c.Field != "":
		f := x.resolve(c.Field, sp)
		if !f.IsValid() {
			return nil
		}
		b.At(sp)
		return b.CaseField(f, code...)
	case len(c.Types) > 0:
		ts := make([]hir.TypeID, 0, len(c.Types))
		for _, s := range c.Types {
			ts = append(ts, l.typ(x.scope, s, sp))
		}
		b.At(sp)
		return b.CaseTypes(ts, code...)
	default:
		l.errorf(diag.DescSyntax, sp, "case needs a field or types")
	}
	return nil
}
