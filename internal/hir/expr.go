package hir

import "airgen/internal/source"

// Expr is the closed union of expressions. The unexported marker keeps
// implementations inside this package.
type Expr interface {
	ID() ExprID
	Pos() source.Span
	Accept(v Visitor)
	expr()
}

// Visitor must handle every expression kind.
type Visitor interface {
	VisitCall(e *Call)
	VisitCurrent(e *Current)
	VisitAssign(e *Assign)
	VisitMatch(e *Match)
	VisitTag(e *Tag)
	VisitBox(e *Box)
	VisitConstant(e *Constant)
	VisitInlineArray(e *InlineArray)
	VisitEnv(e *Env)
	VisitBlock(e *Block)
}

type node struct {
	id  ExprID
	pos source.Span
}

func (n *node) ID() ExprID       { return n.id }
func (n *node) Pos() source.Span { return n.pos }
func (n *node) expr()            {}

// Call invokes Callee on the instance produced by Target.
// A nil Target addresses the universe.
type Call struct {
	node
	Target      Expr
	Callee      FeatureID
	Generics    []TypeID // actual type parameters, in the context of the enclosing feature
	Args        []Expr
	Select      int  // field of an open generic result, or NoSelect
	Dynamic     bool // the front end allows dynamic binding for this call
	Inheritance bool // call in an inherits clause
}

// Current pushes the instance whose code is running.
type Current struct {
	node
}

// Assign stores Value into Field of the instance produced by Target.
type Assign struct {
	node
	Target Expr
	Field  FeatureID
	Value  Expr
}

// Match branches on the dynamic alternative of a choice value.
type Match struct {
	node
	Subject Expr
	Cases   []*Case
	Type    TypeID
}

// Case is one branch of a Match. It binds Field when set, otherwise it matches Types.
type Case struct {
	node
	Field FeatureID
	Types []TypeID
	Code  *Block
}

// Tag injects Value into the choice type Type.
type Tag struct {
	node
	Value Expr
	Type  TypeID
}

// Box wraps a value instance into a reference. The resulting clazz depends on
// the clazz expected at the use site.
type Box struct {
	node
	Value Expr
	Type  TypeID
}

// Constant is literal data of Type in little-endian byte form.
type Constant struct {
	node
	Type TypeID
	Data []byte
}

// InlineArray builds an array of Type from Elements of type Elem.
type InlineArray struct {
	node
	Type     TypeID
	Elem     TypeID
	Elements []Expr
}

// Env reads the currently installed instance of an effect type.
type Env struct {
	node
	Type TypeID
}

// Block is a sequence of expressions; its value is the value of the last one.
type Block struct {
	node
	Exprs []Expr
}

func (e *Call) Accept(v Visitor)        { v.VisitCall(e) }
func (e *Current) Accept(v Visitor)     { v.VisitCurrent(e) }
func (e *Assign) Accept(v Visitor)      { v.VisitAssign(e) }
func (e *Match) Accept(v Visitor)       { v.VisitMatch(e) }
func (e *Tag) Accept(v Visitor)         { v.VisitTag(e) }
func (e *Box) Accept(v Visitor)         { v.VisitBox(e) }
func (e *Constant) Accept(v Visitor)    { v.VisitConstant(e) }
func (e *InlineArray) Accept(v Visitor) { v.VisitInlineArray(e) }
func (e *Env) Accept(v Visitor)         { v.VisitEnv(e) }
func (e *Block) Accept(v Visitor)       { v.VisitBlock(e) }

// Len returns the number of expressions in b; a nil block is empty.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Exprs)
}

// Walk visits e and its sub-expressions in evaluation order: targets and
// arguments before the call, values before assignments. Case bodies follow
// their match. fn returning false skips the children of that node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil {
		return
	}
	e.Accept(&walker{fn: fn})
}

type walker struct {
	fn func(Expr) bool
}

func (w *walker) visit(e Expr) {
	if e != nil {
		e.Accept(w)
	}
}

func (w *walker) VisitCall(e *Call) {
	if !w.fn(e) {
		return
	}
	w.visit(e.Target)
	for _, a := range e.Args {
		w.visit(a)
	}
}

func (w *walker) VisitCurrent(e *Current) { w.fn(e) }

func (w *walker) VisitAssign(e *Assign) {
	if !w.fn(e) {
		return
	}
	w.visit(e.Value)
	w.visit(e.Target)
}

func (w *walker) VisitMatch(e *Match) {
	if !w.fn(e) {
		return
	}
	w.visit(e.Subject)
	for _, c := range e.Cases {
		if c.Code != nil {
			w.visit(c.Code)
		}
	}
}

func (w *walker) VisitTag(e *Tag) {
	if w.fn(e) {
		w.visit(e.Value)
	}
}

func (w *walker) VisitBox(e *Box) {
	if w.fn(e) {
		w.visit(e.Value)
	}
}

func (w *walker) VisitConstant(e *Constant) { w.fn(e) }

func (w *walker) VisitInlineArray(e *InlineArray) {
	if !w.fn(e) {
		return
	}
	for _, el := range e.Elements {
		w.visit(el)
	}
}

func (w *walker) VisitEnv(e *Env) { w.fn(e) }

func (w *walker) VisitBlock(e *Block) {
	if !w.fn(e) {
		return
	}
	for _, x := range e.Exprs {
		w.visit(x)
	}
}
