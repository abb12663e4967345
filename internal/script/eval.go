package script

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/cbegin/livepsg/internal/pattern"
)

// Interp runs score text. It is safe for concurrent use.
type Interp struct {
	// Bias is the exponent of // slides.
	Bias float64

	literals sync.Map // literalKey -> *Pattern
}

type literalKey struct {
	dialect pattern.Dialect
	events  bool
	text    string
}

func NewInterp(bias float64) *Interp {
	if bias <= 0 {
		bias = pattern.DefaultBias
	}
	return &Interp{Bias: bias}
}

// Run executes src against scope, stopping at the first failing statement.
// Statements before the failure have already been applied to scope.
func (in *Interp) Run(src string, scope Scope) error {
	stmts, err := Parse(src)
	if err != nil {
		return err
	}
	e := &env{in: in, scope: scope, lazy: true}
	for _, st := range stmts {
		if err := e.exec(st, scope); err != nil {
			var ee *EvalError
			if errors.As(err, &ee) {
				return ee
			}
			line, col := st.pos()
			return &EvalError{Line: line, Col: col, Err: err}
		}
	}
	return nil
}

// Eval evaluates a single expression with names resolved eagerly through r.
func (in *Interp) Eval(src string, r Resolver) (Value, error) {
	stmts, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("expected one expression, got %d statements", len(stmts))
	}
	st, ok := stmts[0].(*ExprStmt)
	if !ok {
		return nil, fmt.Errorf("expected an expression")
	}
	e := &env{in: in, scope: r}
	v, err := e.eval(st.X)
	if err != nil {
		return nil, err
	}
	return Force(v, r)
}

type env struct {
	in     *Interp
	scope  Resolver
	locals map[string]Value
	// lazy turns reads of namespace bindings into *Lazy references.
	lazy bool
	// targets are the names the current assignment rebinds. Reading one
	// yields its binding from before the statement.
	targets []string
}

func (e *env) exec(st Stmt, scope Scope) error {
	switch s := st.(type) {
	case *AssignStmt:
		e.targets = s.Targets
		v, err := e.eval(s.Value)
		e.targets = nil
		if err != nil {
			return err
		}
		if len(s.Targets) == 1 {
			scope.Assign(s.Targets[0], v)
			return nil
		}
		forced, err := Force(v, scope)
		if err != nil {
			return err
		}
		vals, ok := items(forced)
		if !ok || len(vals) != len(s.Targets) {
			return fmt.Errorf("cannot unpack %s into %d names", typeName(forced), len(s.Targets))
		}
		for i, name := range s.Targets {
			scope.Assign(name, vals[i])
		}
		return nil
	case *DelStmt:
		for _, name := range s.Names {
			if !scope.Delete(name) {
				return &NameError{Name: name}
			}
		}
		return nil
	case *ExprStmt:
		_, err := e.eval(s.X)
		return err
	}
	return fmt.Errorf("unknown statement %T", st)
}

func (e *env) lookup(name string) (Value, error) {
	if v, ok := e.locals[name]; ok {
		return v, nil
	}
	if e.scope != nil {
		if v, ok := e.scope.Lookup(name); ok {
			if e.lazy && !slices.Contains(e.targets, name) {
				return &Lazy{Name: name}, nil
			}
			if e.lazy {
				return v, nil
			}
			return Force(v, e.scope)
		}
	}
	if v, ok := builtins[name]; ok {
		return v, nil
	}
	return nil, &NameError{Name: name}
}

// forced reads a binding the way program bodies do, returning nil when it
// is missing or broken.
func (e *env) forced(name string) Value {
	if e.scope != nil {
		if v, ok := e.scope.Lookup(name); ok {
			if f, err := Force(v, e.scope); err == nil {
				return f
			}
			return nil
		}
	}
	return builtins[name]
}

func (e *env) force(v Value) (Value, error) { return Force(v, e.scope) }

func (e *env) number(x Expr) (float64, error) {
	v, err := e.eval(x)
	if err != nil {
		return 0, err
	}
	if v, err = e.force(v); err != nil {
		return 0, err
	}
	if f, ok := e.locals["frame"].(Number); ok {
		v = sample(v, float64(f))
	}
	n, ok := v.(Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %s", typeName(v))
	}
	return float64(n), nil
}

func (e *env) eval(x Expr) (Value, error) {
	v, err := e.evalNode(x)
	if err != nil {
		if _, ok := err.(*EvalError); !ok {
			line, col := x.pos()
			return nil, &EvalError{Line: line, Col: col, Err: err}
		}
	}
	return v, err
}

func (e *env) evalNode(x Expr) (Value, error) {
	switch n := x.(type) {
	case *NumberLit:
		return Number(n.Value), nil
	case *StringLit:
		return String(n.Value), nil
	case *Name:
		return e.lookup(n.Name)
	case *TupleLit:
		vals, err := e.evalAll(n.Items)
		return Tuple(vals), err
	case *ListLit:
		vals, err := e.evalAll(n.Items)
		return List(vals), err
	case *ProgramLit:
		return &Program{On: n.On, Release: n.Release, source: n.String()}, nil
	case *Unary:
		v, err := e.eval(n.X)
		if err != nil {
			return nil, err
		}
		return deferred(n.String(), []Value{v}, func(a []Value) (Value, error) { return unaryOp(n.Op, a[0]) })
	case *Binary:
		return e.binary(n)
	case *Index:
		v, err := e.eval(n.X)
		if err != nil {
			return nil, err
		}
		idx, err := e.eval(n.Index)
		if err != nil {
			return nil, err
		}
		return deferred(n.String(), []Value{v, idx}, func(a []Value) (Value, error) { return index(a[0], a[1]) })
	case *SliceExpr:
		return e.slice(n)
	case *Attr:
		return nil, fmt.Errorf("%s is not callable without arguments", n)
	case *Call:
		return e.call(n)
	}
	return nil, fmt.Errorf("cannot evaluate %T", x)
}

func (e *env) evalAll(xs []Expr) ([]Value, error) {
	out := make([]Value, len(xs))
	for i, x := range xs {
		v, err := e.eval(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// deferred applies fn now, or later against the published namespace when any
// argument is a lazy reference.
func deferred(fingerprint string, args []Value, fn func([]Value) (Value, error)) (Value, error) {
	for _, a := range args {
		if isLazy(a) {
			return &Deferred{fingerprint: fingerprint, args: args, apply: fn}, nil
		}
	}
	return fn(args)
}

func (e *env) binary(n *Binary) (Value, error) {
	x, err := e.eval(n.X)
	if err != nil {
		return nil, err
	}
	if n.Op == "and" || n.Op == "or" {
		fx, err := e.force(x)
		if err != nil {
			return nil, err
		}
		if truth(fx) == (n.Op == "or") {
			return fx, nil
		}
		return e.eval(n.Y)
	}
	y, err := e.eval(n.Y)
	if err != nil {
		return nil, err
	}
	return deferred(n.String(), []Value{x, y}, func(a []Value) (Value, error) { return binaryOp(n.Op, a[0], a[1]) })
}

func (e *env) slice(n *SliceExpr) (Value, error) {
	args := make([]Value, 3)
	var err error
	if args[0], err = e.eval(n.X); err != nil {
		return nil, err
	}
	for i, bound := range []Expr{n.Lo, n.Hi} {
		if bound == nil {
			continue
		}
		if args[i+1], err = e.eval(bound); err != nil {
			return nil, err
		}
	}
	return deferred(n.String(), args, func(a []Value) (Value, error) { return sliceValue(a[0], a[1], a[2]) })
}

func (e *env) call(n *Call) (Value, error) {
	args, err := e.evalAll(n.Args)
	if err != nil {
		return nil, err
	}
	kwargs := make(map[string]Value, len(n.Kwargs))
	for _, kw := range n.Kwargs {
		if _, dup := kwargs[kw.Name]; dup {
			return nil, fmt.Errorf("duplicate keyword %s", kw.Name)
		}
		v, err := e.eval(kw.Value)
		if err != nil {
			return nil, err
		}
		kwargs[kw.Name] = v
	}
	if attr, ok := n.Fn.(*Attr); ok {
		recv, err := e.eval(attr.X)
		if err != nil {
			return nil, err
		}
		all := append([]Value{recv}, args...)
		return deferred(n.String(), all, func(a []Value) (Value, error) { return method(a[0], attr.Name, a[1:]) })
	}
	fn, err := e.eval(n.Fn)
	if err != nil {
		return nil, err
	}
	if fn, err = e.force(fn); err != nil {
		return nil, err
	}
	b, ok := fn.(*Builtin)
	if !ok {
		return nil, fmt.Errorf("%s is not callable", typeName(fn))
	}
	return b.Fn(&call{env: e, name: b.Name, args: args, kwargs: kwargs})
}

func unaryOp(op string, v Value) (Value, error) {
	switch op {
	case "not":
		return boolNumber(!truth(v)), nil
	case "-":
		switch x := v.(type) {
		case Number:
			return -x, nil
		case Degree:
			return Degree(pattern.Vec(x).Scale(-1)), nil
		case *Pattern:
			if !x.Events {
				return negatePattern(x), nil
			}
		}
	}
	return nil, fmt.Errorf("bad operand type for unary %s: %s", op, typeName(v))
}

func binaryOp(op string, a, b Value) (Value, error) {
	switch op {
	case "==":
		return boolNumber(Equal(a, b)), nil
	case "!=":
		return boolNumber(!Equal(a, b)), nil
	}
	if x, ok := a.(Number); ok {
		if y, ok := b.(Number); ok {
			return numberOp(op, float64(x), float64(y))
		}
	}
	switch op {
	case "+", "-":
		if v, ok, err := addValues(op, a, b); ok {
			return v, err
		}
	case "*":
		if v, ok, err := repeatValue(a, b); ok {
			return v, err
		}
		if v, ok, err := repeatValue(b, a); ok {
			return v, err
		}
	case "&":
		x, xok := a.(*Pattern)
		y, yok := b.(*Pattern)
		if xok && yok {
			return mergePatterns(x, y)
		}
	}
	return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, typeName(a), typeName(b))
}

func numberOp(op string, x, y float64) (Value, error) {
	switch op {
	case "+":
		return Number(x + y), nil
	case "-":
		return Number(x - y), nil
	case "*":
		return Number(x * y), nil
	case "/":
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return Number(x / y), nil
	case "<":
		return boolNumber(x < y), nil
	case ">":
		return boolNumber(x > y), nil
	case "<=":
		return boolNumber(x <= y), nil
	case ">=":
		return boolNumber(x >= y), nil
	}
	return nil, fmt.Errorf("unsupported operator %s for numbers", op)
}

func addValues(op string, a, b Value) (Value, bool, error) {
	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok && op == "+" {
			return x + y, true, nil
		}
		return nil, false, nil
	case List:
		if y, ok := b.(List); ok && op == "+" {
			return append(append(List{}, x...), y...), true, nil
		}
		return nil, false, nil
	case Tuple:
		if y, ok := b.(Tuple); ok && op == "+" {
			return append(append(Tuple{}, x...), y...), true, nil
		}
		return nil, false, nil
	}
	_, ap := a.(*Pattern)
	_, bp := b.(*Pattern)
	if ap || bp {
		v, err := sumPatterns(a, b, op == "-")
		return v, true, err
	}
	da, aDeg := asDegree(a)
	db, bDeg := asDegree(b)
	if aDeg && bDeg {
		if op == "-" {
			return Degree(da.Sub(db)), true, nil
		}
		return Degree(da.Add(db)), true, nil
	}
	return nil, false, nil
}

// asDegree accepts degrees and plain numbers, which move the value component.
func asDegree(v Value) (pattern.Vec, bool) {
	switch x := v.(type) {
	case Degree:
		return pattern.Vec(x), true
	case Number:
		return pattern.Scalar(float64(x)), true
	}
	return pattern.Vec{}, false
}

func repeatValue(a, b Value) (Value, bool, error) {
	n, ok := b.(Number)
	if !ok {
		return nil, false, nil
	}
	count := float64(n)
	if p, ok := a.(*Pattern); ok {
		v, err := repeatPattern(p, count)
		return v, true, err
	}
	if count < 0 || count != math.Trunc(count) {
		return nil, false, nil
	}
	switch x := a.(type) {
	case String:
		return String(strings.Repeat(string(x), int(count))), true, nil
	case List:
		out := List{}
		for range int(count) {
			out = append(out, x...)
		}
		return out, true, nil
	case Tuple:
		out := Tuple{}
		for range int(count) {
			out = append(out, x...)
		}
		return out, true, nil
	}
	return nil, false, nil
}

func index(v, idx Value) (Value, error) {
	n, ok := idx.(Number)
	if !ok {
		return nil, fmt.Errorf("index must be a number, got %s", typeName(idx))
	}
	if p, ok := v.(*Pattern); ok {
		if p.Events {
			return nil, fmt.Errorf("cannot sample an event pattern")
		}
		return p.sampleAt(float64(n)), nil
	}
	vals, ok := items(v)
	if !ok {
		return nil, fmt.Errorf("%s is not indexable", typeName(v))
	}
	i := int(n)
	if i < 0 {
		i += len(vals)
	}
	if i < 0 || i >= len(vals) {
		return nil, fmt.Errorf("index %d out of range", int(n))
	}
	return vals[i], nil
}

func sliceValue(v, lo, hi Value) (Value, error) {
	bound := func(b Value) (*float64, error) {
		if b == nil {
			return nil, nil
		}
		n, ok := b.(Number)
		if !ok {
			return nil, fmt.Errorf("slice bound must be a number, got %s", typeName(b))
		}
		f := float64(n)
		return &f, nil
	}
	a, err := bound(lo)
	if err != nil {
		return nil, err
	}
	b, err := bound(hi)
	if err != nil {
		return nil, err
	}
	if p, ok := v.(*Pattern); ok {
		return slicePattern(p, a, b), nil
	}
	vals, ok := items(v)
	if !ok {
		return nil, fmt.Errorf("%s cannot be sliced", typeName(v))
	}
	i, j := clampBound(a, 0, len(vals)), clampBound(b, len(vals), len(vals))
	if j < i {
		j = i
	}
	out := append([]Value{}, vals[i:j]...)
	if _, isList := v.(List); isList {
		return List(out), nil
	}
	return Tuple(out), nil
}

func clampBound(b *float64, def, n int) int {
	if b == nil {
		return def
	}
	i := int(*b)
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

func method(recv Value, name string, args []Value) (Value, error) {
	switch name {
	case "of":
		p, ok := recv.(*Pattern)
		if !ok || len(args) != 1 {
			return nil, fmt.Errorf("of needs a value pattern and one factor")
		}
		k, ok := args[0].(Number)
		if !ok {
			return nil, fmt.Errorf("of needs a number, got %s", typeName(args[0]))
		}
		return scalePattern(p, float64(k))
	case "pick":
		n, ok := recv.(Number)
		if !ok {
			return nil, fmt.Errorf("pick needs a number receiver, got %s", typeName(recv))
		}
		choices := args
		if len(args) == 1 {
			if vals, ok := items(args[0]); ok {
				choices = vals
			}
		}
		if len(choices) == 0 {
			return nil, fmt.Errorf("pick needs choices")
		}
		i := int(math.RoundToEven(float64(n)))
		if i < 0 {
			i += len(choices)
		}
		if i < 0 || i >= len(choices) {
			return nil, fmt.Errorf("pick index %s out of range for %d choices", formatNumber(float64(n)), len(choices))
		}
		return choices[i], nil
	}
	return nil, fmt.Errorf("%s has no method %s", typeName(recv), name)
}
