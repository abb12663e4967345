package script

import (
	"fmt"
	"slices"
	"strconv"
)

type parser struct {
	toks []token
	pos  int
}

// Parse turns score text into statements.
func Parse(src string) ([]Stmt, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []Stmt
	for {
		p.skipSeparators()
		if p.peek().kind == tokEOF {
			return stmts, nil
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		if t := p.peek(); t.kind != tokEOF && t.kind != tokNewline && !p.isOp(";") {
			return nil, p.errorf(t, "unexpected %s after statement", t)
		}
	}
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == word
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectOp(op string) (token, error) {
	t := p.next()
	if t.kind != tokOp || t.text != op {
		return t, p.errorf(t, "expected %q, got %s", op, t)
	}
	return t, nil
}

func (p *parser) expectName() (token, error) {
	t := p.next()
	if t.kind != tokName || isReserved(t.text) {
		return t, p.errorf(t, "expected name, got %s", t)
	}
	return t, nil
}

func (p *parser) skipSeparators() {
	for p.peek().kind == tokNewline || p.isOp(";") {
		p.next()
	}
}

func isReserved(word string) bool {
	switch word {
	case "del", "program", "if", "and", "or", "not":
		return true
	}
	return false
}

func (p *parser) statement() (Stmt, error) {
	start := p.peek()
	where := at{start.line, start.col}
	if p.isKeyword("del") {
		p.next()
		var names []string
		for {
			t, err := p.expectName()
			if err != nil {
				return nil, err
			}
			names = append(names, t.text)
			if !p.isOp(",") {
				return &DelStmt{at: where, Names: names}, nil
			}
			p.next()
		}
	}
	x, err := p.exprs()
	if err != nil {
		return nil, err
	}
	if !p.isOp("=") {
		return &ExprStmt{at: where, X: x}, nil
	}
	eq := p.next()
	targets, ok := assignTargets(x)
	if !ok {
		return nil, p.errorf(eq, "cannot assign to %s", x)
	}
	value, err := p.exprs()
	if err != nil {
		return nil, err
	}
	return &AssignStmt{at: where, Targets: targets, Value: value}, nil
}

func assignTargets(x Expr) ([]string, bool) {
	switch t := x.(type) {
	case *Name:
		return []string{t.Name}, true
	case *TupleLit:
		names := make([]string, 0, len(t.Items))
		for _, item := range t.Items {
			n, ok := item.(*Name)
			if !ok {
				return nil, false
			}
			names = append(names, n.Name)
		}
		return names, len(names) > 0
	}
	return nil, false
}

func (p *parser) endOfExprs() bool {
	t := p.peek()
	switch t.kind {
	case tokEOF, tokNewline:
		return true
	case tokOp:
		switch t.text {
		case ")", "]", "}", ";", "=":
			return true
		}
	}
	return false
}

// exprs parses a comma separated run; two or more items, or a trailing
// comma, make a tuple.
func (p *parser) exprs() (Expr, error) {
	start := p.peek()
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	items := []Expr{first}
	for p.isOp(",") {
		p.next()
		if p.endOfExprs() {
			break
		}
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, x)
	}
	return &TupleLit{at: at{start.line, start.col}, Items: items}, nil
}

func (p *parser) expr() (Expr, error) { return p.or() }

func (p *parser) or() (Expr, error) {
	x, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		t := p.next()
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		x = &Binary{at: at{t.line, t.col}, Op: "or", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) and() (Expr, error) {
	x, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		t := p.next()
		y, err := p.not()
		if err != nil {
			return nil, err
		}
		x = &Binary{at: at{t.line, t.col}, Op: "and", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) not() (Expr, error) {
	if p.isKeyword("not") {
		t := p.next()
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &Unary{at: at{t.line, t.col}, Op: "not", X: x}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Expr, error) {
	x, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp {
		switch t.text {
		case "<", ">", "<=", ">=", "==", "!=":
			p.next()
			y, err := p.binary(0)
			if err != nil {
				return nil, err
			}
			return &Binary{at: at{t.line, t.col}, Op: t.text, X: x, Y: y}, nil
		}
	}
	return x, nil
}

// binaryLevels lists left-associative operators from loosest to tightest.
var binaryLevels = [][]string{
	{"&"},
	{"+", "-"},
	{"*", "/"},
}

func (p *parser) binary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	x, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || !slices.Contains(binaryLevels[level], t.text) {
			return x, nil
		}
		p.next()
		y, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		x = &Binary{at: at{t.line, t.col}, Op: t.text, X: x, Y: y}
	}
}

func (p *parser) unary() (Expr, error) {
	if p.isOp("-") {
		t := p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if n, ok := x.(*NumberLit); ok {
			return &NumberLit{at: at{t.line, t.col}, Value: -n.Value}, nil
		}
		return &Unary{at: at{t.line, t.col}, Op: "-", X: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		where := at{t.line, t.col}
		switch {
		case p.isOp("("):
			p.next()
			call := &Call{at: where, Fn: x}
			if err := p.args(call); err != nil {
				return nil, err
			}
			x = call
		case p.isOp("["):
			p.next()
			x, err = p.subscript(x, where)
			if err != nil {
				return nil, err
			}
		case p.isOp("."):
			p.next()
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			x = &Attr{at: where, X: x, Name: name.text}
		default:
			return x, nil
		}
	}
}

func (p *parser) args(call *Call) error {
	for !p.isOp(")") {
		if t := p.peek(); t.kind == tokName && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=" {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return err
			}
			call.Kwargs = append(call.Kwargs, KwArg{Name: t.text, Value: v})
		} else {
			if len(call.Kwargs) > 0 {
				return p.errorf(t, "positional argument follows keyword argument")
			}
			v, err := p.expr()
			if err != nil {
				return err
			}
			call.Args = append(call.Args, v)
		}
		if !p.isOp(",") {
			break
		}
		p.next()
	}
	_, err := p.expectOp(")")
	return err
}

func (p *parser) subscript(x Expr, where at) (Expr, error) {
	var lo Expr
	if !p.isOp(":") {
		idx, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.isOp("]") {
			p.next()
			return &Index{at: where, X: x, Index: idx}, nil
		}
		lo = idx
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	var hi Expr
	if !p.isOp("]") {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		hi = v
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &SliceExpr{at: where, X: x, Lo: lo, Hi: hi}, nil
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	where := at{t.line, t.col}
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "bad number %q", t.text)
		}
		return &NumberLit{at: where, Value: v}, nil
	case tokString:
		return &StringLit{at: where, Value: t.text}, nil
	case tokName:
		if t.text == "program" {
			return p.program(where)
		}
		if isReserved(t.text) {
			return nil, p.errorf(t, "unexpected %s", t)
		}
		return &Name{at: where, Name: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			if p.isOp(")") {
				p.next()
				return &TupleLit{at: where}, nil
			}
			x, err := p.exprs()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			list := &ListLit{at: where}
			for !p.isOp("]") {
				x, err := p.expr()
				if err != nil {
					return nil, err
				}
				list.Items = append(list.Items, x)
				if !p.isOp(",") {
					break
				}
				p.next()
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			return list, nil
		}
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

func (p *parser) program(where at) (Expr, error) {
	on, err := p.bindings()
	if err != nil {
		return nil, err
	}
	prog := &ProgramLit{at: where, On: on}
	// release may start on the following line
	n := 0
	for p.peekAt(n).kind == tokNewline {
		n++
	}
	if t := p.peekAt(n); t.kind == tokName && t.text == "release" && p.peekAt(n+1).kind == tokOp && p.peekAt(n+1).text == "{" {
		p.pos += n + 1
		rel, err := p.bindings()
		if err != nil {
			return nil, err
		}
		if rel == nil {
			rel = []Binding{}
		}
		prog.Release = rel
	}
	return prog, nil
}

func (p *parser) bindings() ([]Binding, error) {
	if _, err := p.expectOp("{"); err != nil {
		return nil, err
	}
	var out []Binding
	for {
		p.skipSeparators()
		if p.isOp("}") {
			p.next()
			return out, nil
		}
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("="); err != nil {
			return nil, err
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		b := Binding{Name: name.text, Value: v}
		if p.isKeyword("if") {
			p.next()
			cond, err := p.expr()
			if err != nil {
				return nil, err
			}
			b.If = cond
		}
		out = append(out, b)
	}
}
