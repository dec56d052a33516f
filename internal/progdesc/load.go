package progdesc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/source"
)

// ErrInvalid is returned when a description produced error diagnostics.
var ErrInvalid = errors.New("progdesc: invalid program description")

// Load reads the description at path. Problems are reported to sink with
// Desc* codes; the returned error wraps ErrInvalid when any were found.
func Load(path string, sink *diag.Sink) (*hir.Program, error) {
	return LoadFiles(nil, path, sink)
}

// LoadFiles is Load with the description registered in fs, so diagnostic
// positions stay resolvable when loading fails. A nil fs gets a fresh set.
func LoadFiles(fs *source.FileSet, path string, sink *diag.Sink) (*hir.Program, error) {
	b := hir.NewBuilder()
	if fs != nil {
		b.Program().Files = fs
	}
	id, err := b.Program().Files.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading description %s: %w", path, err)
	}
	return build(b, id, sink)
}

// Parse builds a program from an in-memory description named path.
func Parse(data []byte, path string, sink *diag.Sink) (*hir.Program, error) {
	b := hir.NewBuilder()
	id := b.Program().Files.AddVirtual(path, data)
	return build(b, id, sink)
}

type decl struct {
	desc *Feature
	id   hir.FeatureID
}

type declKey struct {
	outer hir.FeatureID
	name  string
	args  int
}

type loader struct {
	b     *hir.Builder
	p     *hir.Program
	file  *source.File
	sink  *diag.Sink
	base  *hir.Base
	decls []decl
	seen  map[declKey]bool
	errs  int
}

func build(b *hir.Builder, id source.FileID, sink *diag.Sink) (*hir.Program, error) {
	l := &loader{
		b:    b,
		p:    b.Program(),
		file: b.Program().Files.Get(id),
		sink: sink,
		seen: make(map[declKey]bool),
	}

	var d Desc
	dec := yaml.NewDecoder(bytes.NewReader(l.file.Content))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		l.syntax(err)
		return nil, l.result()
	}
	if d.Base {
		l.base = b.WithBase()
	}

	// объявления, затем типы, затем наследование и код
	for i := range d.Features {
		l.declare(l.p.Universe, &d.Features[i])
	}
	for _, dc := range l.decls {
		l.signature(dc)
	}
	for _, dc := range l.decls {
		l.parents(dc)
	}
	for _, dc := range l.decls {
		l.bodies(dc)
	}

	if d.Main == "" {
		l.errorf(diag.DescUnknownName, source.Span{File: id}, "no main feature given")
	} else if m := l.p.Resolve(d.Main); m.IsValid() {
		b.SetMain(m)
	} else {
		l.errorf(diag.DescUnknownName, source.Span{File: id}, "main feature %q not found", d.Main)
	}
	if err := l.result(); err != nil {
		return nil, err
	}
	p, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.file.Path, err)
	}
	return p, nil
}

func (l *loader) result() error {
	if l.errs == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %d error(s)", ErrInvalid, l.file.Path, l.errs)
}

func (l *loader) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	l.errs++
	l.sink.Report(code, sp, fmt.Sprintf(format, args...), "")
}

// syntax reports a decoder error at the line it names, if any.
func (l *loader) syntax(err error) {
	msg := err.Error()
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	msg = strings.TrimPrefix(msg, "yaml: ")
	var line int
	sp := source.Span{File: l.file.ID}
	if _, serr := fmt.Sscanf(msg, "line %d:", &line); serr == nil && line > 0 {
		sp = l.lineSpan(line)
	}
	l.errs++
	l.sink.Report(diag.DescSyntax, sp, msg, "")
}

func (l *loader) offset(line, col int) uint32 {
	off := 0
	if line > 1 && line-2 < len(l.file.LineIdx) {
		off = int(l.file.LineIdx[line-2]) + 1
	}
	off += max(col-1, 0)
	off = min(off, len(l.file.Content))
	n, err := safecast.Conv[uint32](off)
	if err != nil {
		panic(fmt.Errorf("description offset overflow: %w", err))
	}
	return n
}

func (l *loader) lineSpan(line int) source.Span {
	start := l.offset(line, 1)
	end := start
	for int(end) < len(l.file.Content) && l.file.Content[end] != '\n' {
		end++
	}
	return source.Span{File: l.file.ID, Start: start, End: end}
}

// span covers n and everything nested in it.
func (l *loader) span(n *yaml.Node) source.Span {
	if n == nil || n.Line == 0 {
		return source.Span{File: l.file.ID}
	}
	sp := source.Span{File: l.file.ID, Start: l.offset(n.Line, n.Column)}
	sp.End = sp.Start
	var walk func(*yaml.Node)
	walk = func(x *yaml.Node) {
		if x.Line > 0 {
			end := l.offset(x.Line, x.Column+len(x.Value))
			if x.Kind != yaml.ScalarNode {
				end = l.offset(x.Line, x.Column+1)
			}
			if end > sp.End {
				sp.End = end
			}
		}
		for _, c := range x.Content {
			walk(c)
		}
	}
	walk(n)
	return sp
}

func (l *loader) declare(outer hir.FeatureID, f *Feature) {
	sp := l.span(f.node)
	if f.Name == "" {
		l.errorf(diag.DescSyntax, sp, "feature without a name")
		return
	}
	kind, ctor := hir.FeatureRoutine, true
	if f.Kind != "" && f.Kind != "constructor" {
		k, ok := hir.ParseFeatureKind(f.Kind)
		if !ok || k == hir.FeatureTypeParameter || k == hir.FeatureOpenTypeParameter {
			l.errorf(diag.DescBadKind, sp, "%s: unknown feature kind %q", f.Name, f.Kind)
			return
		}
		kind, ctor = k, false
	}
	key := declKey{outer: outer, name: f.Name, args: len(f.Args)}
	if l.seen[key] {
		l.errorf(diag.DescDuplicateName, sp, "%s is declared twice in %s", f.Name, l.p.QualifiedName(outer))
		return
	}
	l.seen[key] = true

	opts := []hir.FeatureOption{hir.Span(sp)}
	if ctor {
		opts = append(opts, hir.Constructor())
	}
	if f.Ref {
		opts = append(opts, hir.Ref())
	}
	if f.Fixed {
		opts = append(opts, hir.Fixed())
	}
	if f.Primitive {
		opts = append(opts, hir.Primitive())
	}
	l.b.At(sp)
	id := l.b.Feature(outer, f.Name, kind, opts...)
	for i, tp := range f.TypeParams {
		name, open := typeParam(tp)
		switch {
		case open && i != len(f.TypeParams)-1:
			l.errorf(diag.DescSyntax, sp, "%s: only the last type parameter may be open", f.Name)
		case open:
			l.b.OpenTypeParam(id, name)
		default:
			l.b.TypeParam(id, name)
		}
	}
	l.decls = append(l.decls, decl{desc: f, id: id})
	for i := range f.Features {
		l.declare(id, &f.Features[i])
	}
}

// signature resolves argument, result and choice types.
func (l *loader) signature(dc decl) {
	f, id := dc.desc, dc.id
	sp := l.span(f.node)
	l.b.At(sp)
	for _, a := range f.Args {
		l.b.Arg(id, a.Name, l.typ(id, a.Type, sp))
	}
	ff := l.p.Feature(id)
	switch {
	case f.Type != "" && ff.Constructor:
		l.errorf(diag.DescSyntax, sp, "%s: constructors have no result type", f.Name)
	case f.Type != "":
		ff.Result = l.typ(id, f.Type, sp)
	case ff.Kind == hir.FeatureField:
		l.errorf(diag.DescSyntax, sp, "%s: field needs a type", f.Name)
	}
	if ff.Kind == hir.FeatureChoice {
		for _, c := range f.Choices {
			l.b.Choices(id, l.typ(id, c, sp))
		}
	} else if len(f.Choices) > 0 {
		l.errorf(diag.DescSyntax, sp, "%s: only choice features list choices", f.Name)
	}
	if ff.Kind == hir.FeatureRoutine && ff.Result.IsValid() && len(f.Code) > 0 {
		l.b.ResultField(id)
	}
}

// parents resolves redefinitions and inherits calls.
func (l *loader) parents(dc decl) {
	f, id := dc.desc, dc.id
	sp := l.span(f.node)
	for _, r := range f.Redefines {
		g := l.lookup(l.p.Feature(id).Outer, r)
		if !g.IsValid() {
			l.errorf(diag.DescUnknownName, sp, "%s redefines unknown feature %q", f.Name, r)
			continue
		}
		ff := l.p.Feature(id)
		ff.Redefines = append(ff.Redefines, g)
	}
	ex := newExprs(l, l.p.Feature(id).Outer)
	for i := range f.Inherits {
		ex.inherit(id, &f.Inherits[i])
	}
}

func (l *loader) bodies(dc decl) {
	f, id := dc.desc, dc.id
	ex := newExprs(l, id)
	if len(f.Code) > 0 {
		l.b.At(l.span(f.node))
		l.b.Code(id, ex.list(f.Code)...)
	}
	if len(f.Pre) > 0 {
		l.b.Pre(id, ex.list(f.Pre)...)
	}
	if len(f.Post) > 0 {
		l.b.Post(id, ex.list(f.Post)...)
	}
}

// lookup resolves a dotted name from scope: the first part is searched in
// scope, its ancestors and everything they inherit, the rest as inner features.
func (l *loader) lookup(scope hir.FeatureID, path string) hir.FeatureID {
	parts := strings.Split(path, ".")
	var cur hir.FeatureID
	for s := scope; s.IsValid() && !cur.IsValid(); s = l.p.Feature(s).Outer {
		cur = l.member(s, parts[0])
	}
	for _, part := range parts[1:] {
		if !cur.IsValid() {
			break
		}
		cur = l.member(cur, part)
	}
	return cur
}

func (l *loader) member(f hir.FeatureID, name string) hir.FeatureID {
	if in := l.p.LookupInner(f, name, -1); in.IsValid() {
		return in
	}
	for _, in := range l.p.AllInnerAndInherited(f) {
		if l.p.Name(in) == name && !l.p.Feature(in).IsOuterRef() {
			return in
		}
	}
	return hir.NoFeatureID
}
