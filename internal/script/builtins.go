package script

import (
	"fmt"
	"strings"

	"github.com/cbegin/livepsg/internal/lfo"
	"github.com/cbegin/livepsg/internal/pattern"
)

type call struct {
	env    *env
	name   string
	args   []Value
	kwargs map[string]Value
}

func (c *call) errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %s", c.name, fmt.Sprintf(format, args...))
}

// texts flattens strings, lists and tuples of strings, forcing references.
func (c *call) texts(args []Value) ([]string, error) {
	var out []string
	var walk func(v Value) error
	walk = func(v Value) error {
		v, err := c.env.force(v)
		if err != nil {
			return err
		}
		switch x := v.(type) {
		case String:
			out = append(out, string(x))
			return nil
		case Tuple, List:
			vals, _ := items(x)
			for _, item := range vals {
				if err := walk(item); err != nil {
					return err
				}
			}
			return nil
		}
		return c.errorf("expected pattern text, got %s", typeName(v))
	}
	for _, a := range args {
		if err := walk(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *call) number(v Value) (float64, error) {
	v, err := c.env.force(v)
	if err != nil {
		return 0, err
	}
	n, ok := v.(Number)
	if !ok {
		return 0, c.errorf("expected number, got %s", typeName(v))
	}
	return float64(n), nil
}

func (c *call) onlyKwargs(names ...string) error {
	for name := range c.kwargs {
		found := false
		for _, n := range names {
			found = found || n == name
		}
		if !found {
			return c.errorf("unexpected keyword %s", name)
		}
	}
	return nil
}

var builtins map[string]Value

func init() {
	builtins = map[string]Value{
		"V":       &Builtin{Name: "V", Fn: valueBuiltin("V", pattern.Dialect{})},
		"C":       &Builtin{Name: "C", Fn: valueBuiltin("C", pattern.Dialect{Continuous: true})},
		"D":       &Builtin{Name: "D", Fn: valueBuiltin("D", pattern.Dialect{Degrees: true})},
		"E":       &Builtin{Name: "E", Fn: builtinE},
		"seq":     &Builtin{Name: "seq", Fn: builtinSeq},
		"lfo":     &Builtin{Name: "lfo", Fn: builtinLFO},
		"topitch": &Builtin{Name: "topitch", Fn: builtinToPitch},
		"len":     &Builtin{Name: "len", Fn: builtinLen},
		"rest":    &Program{source: "rest"},
	}
	for name, n := range pattern.NoteNames {
		builtins[name] = Number(n)
	}
	for name, s := range pattern.Scales {
		builtins[name] = s
	}
}

// IsBuiltin reports whether name is provided by the runtime.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func valueBuiltin(name string, base pattern.Dialect) func(*call) (Value, error) {
	return func(c *call) (Value, error) {
		if err := c.onlyKwargs("step"); err != nil {
			return nil, err
		}
		d := base
		d.Bias = c.env.in.Bias
		if v, ok := c.kwargs["step"]; ok {
			step, err := c.number(v)
			if err != nil {
				return nil, err
			}
			d.Step = step
		}
		texts, err := c.texts(c.args)
		if err != nil {
			return nil, err
		}
		return c.env.in.values(name, d, strings.Join(texts, " "))
	}
}

// values parses a value literal once per dialect and text.
func (in *Interp) values(name string, d pattern.Dialect, text string) (*Pattern, error) {
	key := literalKey{dialect: d, text: text}
	if p, ok := in.literals.Load(key); ok {
		return p.(*Pattern), nil
	}
	seq, err := d.Compile(text)
	if err != nil {
		return nil, err
	}
	fp := fmt.Sprintf("%s(%q)", name, text)
	if d.Step != 0 {
		fp = fmt.Sprintf("%s(%q, step=%s)", name, text, formatNumber(d.Step))
	}
	p := newValues(seq, d.Degrees, fp)
	in.literals.Store(key, p)
	return p, nil
}

func (in *Interp) events(text string) (pattern.Seq[pattern.Hit], error) {
	key := literalKey{events: true, text: text}
	if seq, ok := in.literals.Load(key); ok {
		return seq.(pattern.Seq[pattern.Hit]), nil
	}
	seq, err := pattern.CompileEvents(text)
	if err != nil {
		return nil, err
	}
	in.literals.Store(key, seq)
	return seq, nil
}

func builtinE(c *call) (Value, error) {
	if len(c.args) < 2 {
		return nil, c.errorf("needs a program and pattern text")
	}
	prog := c.args[0]
	if !isLazy(prog) {
		if _, ok := prog.(*Program); !ok {
			return nil, c.errorf("expected program, got %s", typeName(prog))
		}
	}
	texts, err := c.texts(c.args[1:])
	if err != nil {
		return nil, err
	}
	text := strings.Join(texts, " ")
	parsed, err := c.env.in.events(text)
	if err != nil {
		return nil, err
	}
	for name, v := range c.kwargs {
		if isLazy(v) {
			continue
		}
		if _, _, err := asValues(v); err != nil {
			return nil, c.errorf("keyword %s: %v", name, err)
		}
	}
	return newEventLeaf(prog, parsed, text, c.kwargs), nil
}

func builtinSeq(c *call) (Value, error) {
	if len(c.args) == 0 {
		return nil, c.errorf("needs at least one event pattern")
	}
	return deferred("seq("+joinFingerprints(c.args)+")", c.args, func(args []Value) (Value, error) {
		parts := make([]*Pattern, len(args))
		for i, a := range args {
			p, ok := a.(*Pattern)
			if !ok || !p.Events {
				return nil, c.errorf("expected event pattern, got %s", typeName(a))
			}
			parts[i] = p
		}
		return concatEvents(parts), nil
	})
}

func builtinLFO(c *call) (Value, error) {
	if err := c.onlyKwargs("shape"); err != nil {
		return nil, err
	}
	if len(c.args) < 2 || len(c.args) > 3 {
		return nil, c.errorf("needs depth, period and an optional shape")
	}
	depth, err := c.number(c.args[0])
	if err != nil {
		return nil, err
	}
	period, err := c.number(c.args[1])
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, c.errorf("period must be positive")
	}
	shapeName := String("triangle")
	var sv Value
	if len(c.args) == 3 {
		sv = c.args[2]
	} else if v, ok := c.kwargs["shape"]; ok {
		sv = v
	}
	if sv != nil {
		v, err := c.env.force(sv)
		if err != nil {
			return nil, err
		}
		s, ok := v.(String)
		if !ok {
			return nil, c.errorf("shape must be a string")
		}
		shapeName = s
	}
	shape, err := lfo.ParseShape(string(shapeName))
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	fp := fmt.Sprintf("lfo(%s, %s, %q)", formatNumber(depth), formatNumber(period), shape.String())
	return newValues(&pattern.Wave{Depth: depth, Period: period, Shape: shape}, false, fp), nil
}

func builtinToPitch(c *call) (Value, error) {
	if len(c.args) != 1 {
		return nil, c.errorf("needs one argument")
	}
	v, err := c.env.force(c.args[0])
	if err != nil {
		return nil, err
	}
	if f, ok := c.env.locals["frame"].(Number); ok {
		v = sample(v, float64(f))
	}
	var deg pattern.Vec
	switch x := v.(type) {
	case Degree:
		deg = pattern.Vec(x)
	case Number:
		deg = pattern.Scalar(float64(x))
	default:
		return nil, c.errorf("expected degree, got %s", typeName(v))
	}
	pitch, err := c.env.degreePitch(deg)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return Number(pitch), nil
}

func builtinLen(c *call) (Value, error) {
	if len(c.args) != 1 {
		return nil, c.errorf("needs one argument")
	}
	v, err := c.env.force(c.args[0])
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case String:
		return Number(len(x)), nil
	case Tuple, List:
		vals, _ := items(x)
		return Number(len(vals)), nil
	case *Pattern:
		n, err := x.Len(c.env.scope)
		return Number(n), err
	}
	return nil, c.errorf("%s has no length", typeName(v))
}
