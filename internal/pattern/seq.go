package pattern

import (
	"math"
	"sort"

	"github.com/cbegin/livepsg/internal/lfo"
)

// Seq is an immutable timeline queried by fractional frame. Frames outside
// [0, Len) wrap.
type Seq[T any] interface {
	Len() float64
	At(frame float64) T
}

// Concat lays its children end to end.
type Concat[T any] struct {
	children []Seq[T]
	ends     []float64
}

func NewConcat[T any](children ...Seq[T]) *Concat[T] {
	c := &Concat[T]{children: children, ends: make([]float64, len(children))}
	var total float64
	for i, ch := range children {
		total += ch.Len()
		c.ends[i] = total
	}
	return c
}

func (c *Concat[T]) Len() float64 {
	if len(c.ends) == 0 {
		return 0
	}
	return c.ends[len(c.ends)-1]
}

func (c *Concat[T]) At(frame float64) T {
	var zero T
	n := c.Len()
	if n <= 0 {
		return zero
	}
	f := wrap(frame, n)
	i := sort.SearchFloat64s(c.ends, f)
	for i < len(c.ends) && c.ends[i] <= f {
		i++
	}
	if i >= len(c.children) {
		i = len(c.children) - 1
	}
	start := 0.0
	if i > 0 {
		start = c.ends[i-1]
	}
	return c.children[i].At(f - start)
}

// Repeat plays its child Count times.
type Repeat[T any] struct {
	Child Seq[T]
	Count float64
}

func (r *Repeat[T]) Len() float64 { return r.Child.Len() * r.Count }

func (r *Repeat[T]) At(frame float64) T {
	return r.Child.At(wrap(wrap(frame, r.Len()), r.Child.Len()))
}

// Slice re-bases a window of its child. The window may start before zero or
// run past the child's end; both extrapolate by wrapping.
type Slice[T any] struct {
	Child      Seq[T]
	Start, End float64
}

// NewSlice resolves optional bounds: a nil start is 0, a nil end is the
// child's length and a negative end counts back from the end.
func NewSlice[T any](child Seq[T], start, end *float64) *Slice[T] {
	s := &Slice[T]{Child: child, End: child.Len()}
	if start != nil {
		s.Start = *start
	}
	if end != nil {
		s.End = *end
		if s.End < 0 {
			s.End += child.Len()
		}
	}
	return s
}

func (s *Slice[T]) Len() float64 { return s.End - s.Start }

func (s *Slice[T]) At(frame float64) T {
	return s.Child.At(s.Start + wrap(frame, s.Len()))
}

// Stepped adds Step for every completed repetition of its child.
type Stepped struct {
	Child Seq[Vec]
	Step  Vec
}

func (s *Stepped) Len() float64 { return s.Child.Len() }

func (s *Stepped) At(frame float64) Vec {
	n := s.Child.Len()
	if n <= 0 {
		return s.Child.At(frame)
	}
	return s.Child.At(frame).Add(s.Step.Scale(math.Floor(frame / n)))
}

// Scaled stretches time: one child frame lasts K frames.
type Scaled struct {
	Child Seq[Vec]
	K     float64
}

func (s *Scaled) Len() float64 { return s.Child.Len() * s.K }

func (s *Scaled) At(frame float64) Vec { return s.Child.At(frame / s.K) }

// Sum adds value patterns pointwise; each operand wraps on its own length.
type Sum struct {
	Terms []Seq[Vec]
}

func (s *Sum) Len() float64 {
	var n float64
	for _, t := range s.Terms {
		n = math.Max(n, t.Len())
	}
	return n
}

func (s *Sum) At(frame float64) Vec {
	var v Vec
	for _, t := range s.Terms {
		v = v.Add(t.At(frame))
	}
	return v
}

// Negate flips the sign of a value pattern.
type Negate struct {
	Child Seq[Vec]
}

func (n *Negate) Len() float64 { return n.Child.Len() }

func (n *Negate) At(frame float64) Vec { return n.Child.At(frame).Scale(-1) }

// Const is a value that never changes.
type Const struct {
	Value Vec
}

func (c *Const) Len() float64 { return 1 }

func (c *Const) At(float64) Vec { return c.Value }

// Rebased views a value pattern from Offset, reading Scale child frames per
// frame. Keyword patterns are handed to programs this way.
type Rebased struct {
	Child  Seq[Vec]
	Offset float64
	Scale  float64
}

func (r *Rebased) Len() float64 {
	if r.Scale == 0 {
		return 0
	}
	return r.Child.Len() / r.Scale
}

func (r *Rebased) At(frame float64) Vec { return r.Child.At(r.Offset + frame*r.Scale) }

// Merge overlays event patterns: the most recently started sounding hit wins.
type Merge struct {
	Parts []Seq[Hit]
}

func (m *Merge) Len() float64 {
	var n float64
	for _, p := range m.Parts {
		n = math.Max(n, p.Len())
	}
	return n
}

func (m *Merge) At(frame float64) Hit {
	var best Hit
	found := false
	for _, p := range m.Parts {
		h := p.At(frame)
		if h.Silent() {
			if !found && best.Owner == nil {
				best = h
			}
			continue
		}
		if !found || h.Since < best.Since {
			best, found = h, true
		}
	}
	return best
}

// Wave is a periodic low frequency shape, Period frames long.
type Wave struct {
	Depth  float64
	Period float64
	Shape  lfo.Shape
}

func (w *Wave) Len() float64 { return w.Period }

func (w *Wave) At(frame float64) Vec {
	if w.Period <= 0 {
		return Vec{}
	}
	return Scalar(w.Depth * w.Shape.At(frame/w.Period))
}
