package script

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cbegin/livepsg/internal/pattern"
)

// Value is anything a score name can be bound to: Number, String, Degree,
// Tuple, List, *Lazy, *Deferred, *Program, *Pattern, *Builtin or
// pattern.Scale.
type Value any

type (
	Number float64
	String string
	// Degree is a sampled scale degree vector.
	Degree pattern.Vec
	Tuple  []Value
	List   []Value
)

// Resolver looks names up at read time.
type Resolver interface {
	Lookup(name string) (Value, bool)
}

// Scope is the namespace a script runs against.
type Scope interface {
	Resolver
	Assign(name string, v Value)
	Delete(name string) bool
}

// Lazy is a reference to a namespace binding, resolved when the value is
// read rather than when it is defined.
type Lazy struct {
	Name string
}

// Deferred is an operation with at least one lazy operand, applied when the
// value is read.
type Deferred struct {
	fingerprint string
	args        []Value
	apply       func(args []Value) (Value, error)
}

// Builtin is a function provided by the runtime.
type Builtin struct {
	Name string
	Fn   func(c *call) (Value, error)
}

// Program is a compiled program literal. On runs for trigger hits and
// Release for release hits; a nil Release keeps the channel silent.
type Program struct {
	On      []Binding
	Release []Binding
	source  string
}

// NameError reports a name bound nowhere.
type NameError struct {
	Name string
}

func (e *NameError) Error() string { return fmt.Sprintf("name %q is not defined", e.Name) }

// EvalError is a failure while running score text, with the position of the
// statement or expression that caused it.
type EvalError struct {
	Line, Col int
	Err       error
}

func (e *EvalError) Error() string { return fmt.Sprintf("%d:%d: %v", e.Line, e.Col, e.Err) }

func (e *EvalError) Unwrap() error { return e.Err }

const maxForceDepth = 64

// CycleError reports a binding that depends on itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "reference cycle: " + strings.Join(e.Path, " -> ")
}

// Force resolves lazy references and deferred arithmetic at the top of v.
// Values nested inside tuples and patterns are left alone.
func Force(v Value, r Resolver) (Value, error) {
	return force(v, r, nil)
}

// force carries the names being resolved on the current path so a cycle
// through deferred arguments fails instead of recursing without bound.
func force(v Value, r Resolver, path []string) (Value, error) {
	for {
		switch x := v.(type) {
		case *Lazy:
			if r == nil {
				return nil, &NameError{Name: x.Name}
			}
			if slices.Contains(path, x.Name) || len(path) >= maxForceDepth {
				return nil, &CycleError{Path: append(slices.Clone(path), x.Name)}
			}
			next, ok := r.Lookup(x.Name)
			if !ok {
				return nil, &NameError{Name: x.Name}
			}
			path = append(path, x.Name)
			v = next
		case *Deferred:
			args := make([]Value, len(x.args))
			for i, a := range x.args {
				f, err := force(a, r, path)
				if err != nil {
					return nil, err
				}
				args[i] = f
			}
			return x.apply(args)
		default:
			return v, nil
		}
	}
}

func isLazy(v Value) bool {
	switch v.(type) {
	case *Lazy, *Deferred:
		return true
	}
	return false
}

// Fingerprint is a canonical description of v. Lazy references print as
// their names, so two values with equal fingerprints read the same bindings
// the same way.
func Fingerprint(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case Number:
		return formatNumber(float64(x))
	case String:
		return strconv.Quote(string(x))
	case Degree:
		return fmt.Sprintf("degree(%s, %s, %s)", formatNumber(x[0]), formatNumber(x[1]), formatNumber(x[2]))
	case Tuple:
		if len(x) == 1 {
			return "(" + Fingerprint(x[0]) + ",)"
		}
		return "(" + joinFingerprints(x) + ")"
	case List:
		return "[" + joinFingerprints(x) + "]"
	case *Lazy:
		return x.Name
	case *Deferred:
		return x.fingerprint
	case *Builtin:
		return x.Name
	case *Program:
		return x.source
	case *Pattern:
		return x.fingerprint
	case pattern.Scale:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = formatNumber(s)
		}
		return "scale(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("%T(%v)", v, v)
}

func joinFingerprints(items []Value) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = Fingerprint(item)
	}
	return strings.Join(parts, ", ")
}

// Equal reports whether two values are indistinguishable to a reader.
func Equal(a, b Value) bool { return Fingerprint(a) == Fingerprint(b) }

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "None"
	case Number:
		return "number"
	case String:
		return "string"
	case Degree:
		return "degree"
	case Tuple:
		return "tuple"
	case List:
		return "list"
	case *Lazy, *Deferred:
		return "reference"
	case *Builtin:
		return "builtin"
	case *Program:
		return "program"
	case *Pattern:
		if v.(*Pattern).Events {
			return "event pattern"
		}
		return "value pattern"
	case pattern.Scale:
		return "scale"
	}
	return fmt.Sprintf("%T", v)
}

func truth(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case Number:
		return x != 0
	case String:
		return x != ""
	case Degree:
		return x != Degree{}
	case Tuple:
		return len(x) > 0
	case List:
		return len(x) > 0
	}
	return true
}

func boolNumber(b bool) Number {
	if b {
		return 1
	}
	return 0
}

// items returns the elements of a tuple or list.
func items(v Value) ([]Value, bool) {
	switch x := v.(type) {
	case Tuple:
		return x, true
	case List:
		return x, true
	}
	return nil, false
}
