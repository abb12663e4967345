package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cbegin/livepsg/internal/pattern"
)

// Pattern is a value or event pattern in a score. Value patterns are
// compiled when they are built. Event patterns compile on read because the
// programs and keyword patterns of E(...) may be lazy references.
type Pattern struct {
	Events  bool
	Degrees bool

	fingerprint string
	values      pattern.Seq[pattern.Vec]

	op       string
	children []*Pattern
	count    float64  // repeat
	lo, hi   *float64 // slice
	leaf     *eventLeaf
}

type eventLeaf struct {
	program Value
	parsed  pattern.Seq[pattern.Hit]
	kwargs  []kwarg
}

type kwarg struct {
	name  string
	value Value
}

// Values returns the compiled value pattern.
func (p *Pattern) Values() (pattern.Seq[pattern.Vec], error) {
	if p.Events {
		return nil, fmt.Errorf("expected value pattern, got event pattern")
	}
	return p.values, nil
}

// Hits compiles an event pattern, resolving lazy programs and keyword
// patterns through r.
func (p *Pattern) Hits(r Resolver) (pattern.Seq[pattern.Hit], error) {
	if !p.Events {
		return nil, fmt.Errorf("expected event pattern, got value pattern")
	}
	switch p.op {
	case "E":
		return p.leaf.compile(r)
	case "&":
		parts := make([]pattern.Seq[pattern.Hit], len(p.children))
		for i, c := range p.children {
			seq, err := c.Hits(r)
			if err != nil {
				return nil, err
			}
			parts[i] = seq
		}
		return &pattern.Merge{Parts: parts}, nil
	case "concat":
		parts := make([]pattern.Seq[pattern.Hit], len(p.children))
		for i, c := range p.children {
			seq, err := c.Hits(r)
			if err != nil {
				return nil, err
			}
			parts[i] = seq
		}
		return pattern.NewConcat(parts...), nil
	case "*":
		child, err := p.children[0].Hits(r)
		if err != nil {
			return nil, err
		}
		return &pattern.Repeat[pattern.Hit]{Child: child, Count: p.count}, nil
	case "slice":
		child, err := p.children[0].Hits(r)
		if err != nil {
			return nil, err
		}
		return pattern.NewSlice(child, p.lo, p.hi), nil
	}
	return nil, fmt.Errorf("unknown event pattern node %q", p.op)
}

// Len is the pattern length in pattern units.
func (p *Pattern) Len(r Resolver) (float64, error) {
	if !p.Events {
		return p.values.Len(), nil
	}
	seq, err := p.Hits(r)
	if err != nil {
		return 0, err
	}
	return seq.Len(), nil
}

func (l *eventLeaf) compile(r Resolver) (pattern.Seq[pattern.Hit], error) {
	v, err := Force(l.program, r)
	if err != nil {
		return nil, err
	}
	prog, ok := v.(*Program)
	if !ok {
		return nil, fmt.Errorf("E needs a program, got %s", typeName(v))
	}
	note := &Note{Program: prog}
	if len(l.kwargs) > 0 {
		note.Kwargs = make(map[string]KwPattern, len(l.kwargs))
	}
	for _, kw := range l.kwargs {
		v, err := Force(kw.value, r)
		if err != nil {
			return nil, err
		}
		seq, degrees, err := asValues(v)
		if err != nil {
			return nil, fmt.Errorf("keyword %s: %w", kw.name, err)
		}
		note.Kwargs[kw.name] = KwPattern{Seq: seq, Degrees: degrees}
	}
	return &performer{seq: l.parsed, note: note}, nil
}

// performer stamps its note on every hit so the bridge can perform it.
type performer struct {
	seq  pattern.Seq[pattern.Hit]
	note *Note
}

func (p *performer) Len() float64 { return p.seq.Len() }

func (p *performer) At(frame float64) pattern.Hit {
	h := p.seq.At(frame)
	h.Owner = p.note
	return h
}

func newValues(seq pattern.Seq[pattern.Vec], degrees bool, fingerprint string) *Pattern {
	return &Pattern{Degrees: degrees, values: seq, fingerprint: fingerprint}
}

// asValues turns numbers, degrees and value patterns into a value pattern.
func asValues(v Value) (pattern.Seq[pattern.Vec], bool, error) {
	switch x := v.(type) {
	case Number:
		return &pattern.Const{Value: pattern.Scalar(float64(x))}, false, nil
	case Degree:
		return &pattern.Const{Value: pattern.Vec(x)}, true, nil
	case *Pattern:
		seq, err := x.Values()
		return seq, x.Degrees, err
	}
	return nil, false, fmt.Errorf("expected value pattern, got %s", typeName(v))
}

func sumPatterns(a, b Value, subtract bool) (*Pattern, error) {
	x, xd, err := asValues(a)
	if err != nil {
		return nil, err
	}
	y, yd, err := asValues(b)
	if err != nil {
		return nil, err
	}
	op := " + "
	if subtract {
		y = &pattern.Negate{Child: y}
		op = " - "
	}
	return newValues(&pattern.Sum{Terms: []pattern.Seq[pattern.Vec]{x, y}}, xd || yd,
		"("+Fingerprint(a)+op+Fingerprint(b)+")"), nil
}

func negatePattern(p *Pattern) *Pattern {
	return newValues(&pattern.Negate{Child: p.values}, p.Degrees, "(-"+p.fingerprint+")")
}

func repeatPattern(p *Pattern, count float64) (*Pattern, error) {
	if count <= 0 {
		return nil, fmt.Errorf("repeat count must be positive, got %s", formatNumber(count))
	}
	fp := "(" + p.fingerprint + " * " + formatNumber(count) + ")"
	if p.Events {
		return &Pattern{Events: true, op: "*", children: []*Pattern{p}, count: count, fingerprint: fp}, nil
	}
	return newValues(&pattern.Repeat[pattern.Vec]{Child: p.values, Count: count}, p.Degrees, fp), nil
}

func slicePattern(p *Pattern, lo, hi *float64) *Pattern {
	var a, b string
	if lo != nil {
		a = formatNumber(*lo)
	}
	if hi != nil {
		b = formatNumber(*hi)
	}
	fp := p.fingerprint + "[" + a + ":" + b + "]"
	if p.Events {
		return &Pattern{Events: true, op: "slice", children: []*Pattern{p}, lo: lo, hi: hi, fingerprint: fp}
	}
	return newValues(pattern.NewSlice(p.values, lo, hi), p.Degrees, fp)
}

func mergePatterns(a, b *Pattern) (*Pattern, error) {
	if !a.Events || !b.Events {
		return nil, fmt.Errorf("& needs event patterns")
	}
	var children []*Pattern
	for _, p := range []*Pattern{a, b} {
		if p.op == "&" {
			children = append(children, p.children...)
		} else {
			children = append(children, p)
		}
	}
	return &Pattern{Events: true, op: "&", children: children,
		fingerprint: "(" + a.fingerprint + " & " + b.fingerprint + ")"}, nil
}

func concatEvents(parts []*Pattern) *Pattern {
	fps := make([]string, len(parts))
	for i, p := range parts {
		fps[i] = p.fingerprint
	}
	return &Pattern{Events: true, op: "concat", children: parts, fingerprint: "concat(" + strings.Join(fps, ", ") + ")"}
}

func scalePattern(p *Pattern, k float64) (*Pattern, error) {
	if p.Events {
		return nil, fmt.Errorf("of applies to value patterns")
	}
	if k <= 0 {
		return nil, fmt.Errorf("of needs a positive factor, got %s", formatNumber(k))
	}
	return newValues(&pattern.Scaled{Child: p.values, K: k}, p.Degrees, p.fingerprint+".of("+formatNumber(k)+")"), nil
}

func newEventLeaf(program Value, parsed pattern.Seq[pattern.Hit], text string, kwargs map[string]Value) *Pattern {
	leaf := &eventLeaf{program: program, parsed: parsed}
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := []string{Fingerprint(program), fmt.Sprintf("%q", text)}
	for _, name := range names {
		leaf.kwargs = append(leaf.kwargs, kwarg{name: name, value: kwargs[name]})
		parts = append(parts, name+"="+Fingerprint(kwargs[name]))
	}
	return &Pattern{Events: true, op: "E", leaf: leaf, fingerprint: "E(" + strings.Join(parts, ", ") + ")"}
}
