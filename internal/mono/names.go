package mono

import (
	"strconv"
	"strings"

	"airgen/internal/source"
)

// Name renders a clazz for humans: outer, then ref marker, base name and generics.
func (r *Registry) Name(id ClazzID) string {
	c := r.Clazz(id)
	switch {
	case c == nil:
		return "<none>"
	case r.IsError(id):
		return r.prog.TypeString(c.Type)
	case id == r.universe:
		return r.prog.TypeString(c.Type)
	}
	var sb strings.Builder
	if o := r.Clazz(c.Outer); o != nil && c.Outer != r.universe {
		sb.WriteString(paren(r.Name(c.Outer)))
		sb.WriteByte('.')
	}
	if c.Ref {
		sb.WriteString("ref ")
	}
	sb.WriteString(r.BaseName(id))
	return sb.String()
}

// BaseName is the feature name followed by the actual generics.
func (r *Registry) BaseName(id ClazzID) string {
	c := r.Clazz(id)
	if c == nil {
		return "<none>"
	}
	if r.IsError(id) {
		return r.prog.TypeString(c.Type)
	}
	var sb strings.Builder
	sb.WriteString(r.prog.Name(c.Feature))
	for _, g := range c.Generics {
		sb.WriteByte(' ')
		sb.WriteString(paren(r.prog.TypeString(g)))
	}
	if c.Select != -1 {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(c.Select))
	}
	return sb.String()
}

// OriginalName is the qualified name of the clazz's feature.
func (r *Registry) OriginalName(id ClazzID) string {
	c := r.Clazz(id)
	if c == nil || r.IsError(id) {
		return "<error>"
	}
	return r.prog.QualifiedName(c.Feature)
}

// TypeName renders the concrete type of the clazz.
func (r *Registry) TypeName(id ClazzID) string {
	c := r.Clazz(id)
	if c == nil {
		return "<none>"
	}
	return r.prog.TypeString(c.Type)
}

func paren(s string) string {
	if strings.ContainsRune(s, ' ') && !strings.HasPrefix(s, "(") {
		return "(" + s + ")"
	}
	return s
}

func (r *Registry) pos(sp source.Span) string {
	if r.prog.Files == nil {
		return sp.String()
	}
	return r.prog.Files.Format(sp)
}

// Pos formats a span of the program for messages.
func (r *Registry) Pos(sp source.Span) string {
	return r.pos(sp)
}
