package script

import (
	"strconv"
	"strings"
)

// Expr is a node of the score syntax tree. String prints the canonical
// form, which doubles as the fingerprint of the value it defines.
type Expr interface {
	String() string
	pos() (line, col int)
}

type at struct{ line, col int }

func (a at) pos() (int, int) { return a.line, a.col }

type NumberLit struct {
	at
	Value float64
}

type StringLit struct {
	at
	Value string
}

type Name struct {
	at
	Name string
}

type Unary struct {
	at
	Op string
	X  Expr
}

type Binary struct {
	at
	Op   string
	X, Y Expr
}

type KwArg struct {
	Name  string
	Value Expr
}

type Call struct {
	at
	Fn     Expr
	Args   []Expr
	Kwargs []KwArg
}

type Index struct {
	at
	X, Index Expr
}

// SliceExpr is x[lo:hi]; either bound may be nil.
type SliceExpr struct {
	at
	X, Lo, Hi Expr
}

type Attr struct {
	at
	X    Expr
	Name string
}

type TupleLit struct {
	at
	Items []Expr
}

type ListLit struct {
	at
	Items []Expr
}

// Binding is one "name = expr [if cond]" line of a program body.
type Binding struct {
	Name  string
	Value Expr
	If    Expr
}

type ProgramLit struct {
	at
	On      []Binding
	Release []Binding
}

func formatNumber(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func (n *NumberLit) String() string { return formatNumber(n.Value) }
func (s *StringLit) String() string { return strconv.Quote(s.Value) }
func (n *Name) String() string      { return n.Name }
func (u *Unary) String() string {
	if u.Op == "not" {
		return "(not " + u.X.String() + ")"
	}
	return "(" + u.Op + u.X.String() + ")"
}
func (b *Binary) String() string { return "(" + b.X.String() + " " + b.Op + " " + b.Y.String() + ")" }

func (c *Call) String() string {
	parts := make([]string, 0, len(c.Args)+len(c.Kwargs))
	for _, a := range c.Args {
		parts = append(parts, a.String())
	}
	for _, kw := range c.Kwargs {
		parts = append(parts, kw.Name+"="+kw.Value.String())
	}
	return c.Fn.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (i *Index) String() string { return i.X.String() + "[" + i.Index.String() + "]" }

func (s *SliceExpr) String() string {
	var lo, hi string
	if s.Lo != nil {
		lo = s.Lo.String()
	}
	if s.Hi != nil {
		hi = s.Hi.String()
	}
	return s.X.String() + "[" + lo + ":" + hi + "]"
}

func (a *Attr) String() string { return a.X.String() + "." + a.Name }

func joinExprs(items []Expr) string {
	parts := make([]string, len(items))
	for i, x := range items {
		parts[i] = x.String()
	}
	return strings.Join(parts, ", ")
}

func (t *TupleLit) String() string {
	if len(t.Items) == 1 {
		return "(" + t.Items[0].String() + ",)"
	}
	return "(" + joinExprs(t.Items) + ")"
}

func (l *ListLit) String() string { return "[" + joinExprs(l.Items) + "]" }

func writeBindings(sb *strings.Builder, bindings []Binding) {
	sb.WriteString("{")
	for i, b := range bindings {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(b.Name + " = " + b.Value.String())
		if b.If != nil {
			sb.WriteString(" if " + b.If.String())
		}
	}
	sb.WriteString("}")
}

func (p *ProgramLit) String() string {
	var sb strings.Builder
	sb.WriteString("program ")
	writeBindings(&sb, p.On)
	if p.Release != nil {
		sb.WriteString(" release ")
		writeBindings(&sb, p.Release)
	}
	return sb.String()
}

// Stmt is a top-level statement.
type Stmt interface {
	stmt()
	pos() (line, col int)
}

type AssignStmt struct {
	at
	Targets []string
	Value   Expr
}

type DelStmt struct {
	at
	Names []string
}

type ExprStmt struct {
	at
	X Expr
}

func (*AssignStmt) stmt() {}
func (*DelStmt) stmt()    {}
func (*ExprStmt) stmt()   {}
