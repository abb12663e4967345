package pattern

import (
	"testing"

	"github.com/cbegin/livepsg/internal/lfo"
)

func mustV(t *testing.T, text string) Seq[Vec] {
	t.Helper()
	p, err := Dialect{}.Compile(text)
	if err != nil {
		t.Fatalf("compile %q: %v", text, err)
	}
	return p
}

func ptr(f float64) *float64 { return &f }

func checkAt(t *testing.T, p Seq[Vec], frame, want float64) {
	t.Helper()
	if got := p.At(frame).Scalar(); !near(got, want) {
		t.Fatalf("at %v: got %v, want %v", frame, got, want)
	}
}

func TestSliceInitial(t *testing.T) {
	for _, end := range []float64{5, -96} {
		v := NewSlice(mustV(t, "100x/ 100"), nil, ptr(end))
		if v.Len() != 5 {
			t.Fatalf("end %v: expected len 5, got %v", end, v.Len())
		}
		checkAt(t, v, .5, .5)
		checkAt(t, v, 4.5, 4.5)
		checkAt(t, v, 5.5, .5)
	}
}

func TestSliceTerminal(t *testing.T) {
	v := NewSlice(mustV(t, "100x/ 100"), ptr(95), nil)
	if v.Len() != 6 {
		t.Fatalf("expected len 6, got %v", v.Len())
	}
	checkAt(t, v, .5, 95.5)
	checkAt(t, v, 4.5, 99.5)
	checkAt(t, v, 5.5, 100)
	checkAt(t, v, 6.5, 95.5)
}

func TestSliceEmbiggen(t *testing.T) {
	v := NewSlice(mustV(t, "4x5/ 9"), ptr(-1), ptr(11))
	if v.Len() != 12 {
		t.Fatalf("expected len 12, got %v", v.Len())
	}
	cases := []struct{ frame, want float64 }{
		{.5, 9}, {1.5, 5.5}, {4.5, 8.5}, {5.5, 9}, {10.5, 9},
		{11.5, 5.5}, {12.5, 9}, {13.5, 5.5}, {14.5, 6.5},
	}
	for _, tc := range cases {
		checkAt(t, v, tc.frame, tc.want)
	}
}

func TestSliceEvents(t *testing.T) {
	segs, err := ParseEvents("10x")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	v := NewSlice[Hit](segs, ptr(-6), nil)
	if v.Len() != 16 {
		t.Fatalf("expected len 16, got %v", v.Len())
	}
	for _, tc := range []struct{ frame, local float64 }{{.5, 4.5}, {4.5, 8.5}, {5.5, 9.5}} {
		if h := v.At(tc.frame); !near(h.Local, tc.local) {
			t.Fatalf("at %v: local %v, want %v", tc.frame, h.Local, tc.local)
		}
	}
}

func TestConcatAndRepeat(t *testing.T) {
	c := NewConcat(mustV(t, "1"), mustV(t, "2x2"), mustV(t, "3"))
	if c.Len() != 4 {
		t.Fatalf("expected len 4, got %v", c.Len())
	}
	for frame, want := range []float64{1, 2, 2, 3} {
		checkAt(t, c, float64(frame)+.5, want)
	}
	checkAt(t, c, 4.5, 1)
	checkAt(t, c, -.5, 3)

	r := &Repeat[Vec]{Child: mustV(t, "1 2"), Count: 3}
	if r.Len() != 6 {
		t.Fatalf("expected len 6, got %v", r.Len())
	}
	checkAt(t, r, 4.5, 1)
	checkAt(t, r, 5.5, 2)
}

func TestScaledSumNegate(t *testing.T) {
	p := mustV(t, "0/ 4")
	s := &Scaled{Child: p, K: 2}
	if s.Len() != 4 {
		t.Fatalf("expected len 4, got %v", s.Len())
	}
	checkAt(t, s, 1, 2)

	sum := &Sum{Terms: []Seq[Vec]{mustV(t, "10"), p}}
	if sum.Len() != 2 {
		t.Fatalf("expected len 2, got %v", sum.Len())
	}
	checkAt(t, sum, .5, 12)
	checkAt(t, &Negate{Child: sum}, .5, -12)
	checkAt(t, &Const{Value: Scalar(3)}, 99, 3)
}

func TestRebased(t *testing.T) {
	k := mustV(t, "80x20/ 100")
	speed := 10.0
	r := &Rebased{Child: k, Offset: 35, Scale: 1 / speed}
	checkAt(t, r, 0, 55)
	checkAt(t, r, 10, 56)
	checkAt(t, r, 50, 60)
}

func TestMergePrefersLatestTrigger(t *testing.T) {
	a, _ := ParseEvents("4")
	b, _ := ParseEvents("2z 2")
	owned := func(segs *EventSegments, owner string) Seq[Hit] { return ownedHits{segs, owner} }
	m := &Merge{Parts: []Seq[Hit]{owned(a, "a"), owned(b, "b")}}
	if m.Len() != 4 {
		t.Fatalf("expected len 4, got %v", m.Len())
	}
	if h := m.At(1); h.Owner != "a" {
		t.Fatalf("at 1: expected a, got %v", h.Owner)
	}
	if h := m.At(3); h.Owner != "b" || !near(h.Since, 1) {
		t.Fatalf("at 3: expected b since 1, got %v since %v", h.Owner, h.Since)
	}
}

type ownedHits struct {
	segs  *EventSegments
	owner string
}

func (o ownedHits) Len() float64 { return o.segs.Len() }

func (o ownedHits) At(frame float64) Hit {
	h := o.segs.At(frame)
	h.Owner = o.owner
	return h
}

func TestWave(t *testing.T) {
	w := &Wave{Depth: 2, Period: 8, Shape: lfo.Triangle}
	checkAt(t, w, 0, -2)
	checkAt(t, w, 4, 2)
	checkAt(t, w, 10, 0)
}

func TestScalePitch(t *testing.T) {
	cases := []struct {
		scale Scale
		v     Vec
		mode  int
		want  float64
	}{
		{Major, Vec{0, 0, 0}, 1, 0},
		{Major, Vec{0, 2, 0}, 1, 4},
		{Major, Vec{0, 7, 0}, 1, 12},
		{Major, Vec{0, -1, 0}, 1, -1},
		{Major, Vec{1, 4, -1}, 1, 18},
		{Major, Vec{0, 0.5, 0}, 1, 1},
		{Major, Vec{0, 2, 0}, 6, 3},
		{WholeTone, Vec{0, 6, 0}, 1, 12},
	}
	for _, tc := range cases {
		if got := tc.scale.Pitch(tc.v, tc.mode); !near(got, tc.want) {
			t.Fatalf("%v mode %d: got %v, want %v", tc.v, tc.mode, got, tc.want)
		}
	}
}

func TestNoteNames(t *testing.T) {
	if NoteNames["C4"] != 60 || NoteNames["A4"] != 69 || NoteNames["B9"] != 131 {
		t.Fatalf("unexpected note numbers: %v %v %v", NoteNames["C4"], NoteNames["A4"], NoteNames["B9"])
	}
	if f := Frequency(69, 440); f != 440 {
		t.Fatalf("A4 frequency: got %v", f)
	}
}
