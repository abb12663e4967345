package script

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/cbegin/livepsg/internal/pattern"
)

type mapScope map[string]Value

func (m mapScope) Lookup(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapScope) Assign(name string, v Value) { m[name] = v }

func (m mapScope) Delete(name string) bool {
	if _, ok := m[name]; !ok {
		return false
	}
	delete(m, name)
	return true
}

func newScope() mapScope {
	return mapScope{"scale": pattern.Major, "tonic": Number(60), "mode": Number(1)}
}

func run(t *testing.T, in *Interp, scope mapScope, src string) {
	t.Helper()
	if err := in.Run(src, scope); err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
}

func forced(t *testing.T, scope mapScope, name string) Value {
	t.Helper()
	v, err := Force(scope[name], scope)
	if err != nil {
		t.Fatalf("force %s: %v", name, err)
	}
	return v
}

func TestRunDefersReferences(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, "a = 1\nb = a * 2\nc = 3 + 4")
	if _, ok := scope["b"].(*Deferred); !ok {
		t.Fatalf("b = %T, want deferred", scope["b"])
	}
	if got := Fingerprint(scope["b"]); got != "(a * 2)" {
		t.Fatalf("fingerprint(b) = %q", got)
	}
	if got := scope["c"]; got != Number(7) {
		t.Fatalf("c = %v, want 7", got)
	}
	if got := forced(t, scope, "b"); got != Number(2) {
		t.Fatalf("b = %v, want 2", got)
	}
	run(t, in, scope, "a = 10")
	if got := forced(t, scope, "b"); got != Number(20) {
		t.Fatalf("b after rebinding a = %v, want 20", got)
	}
}

func TestRunErrors(t *testing.T) {
	in := NewInterp(0)
	tests := []struct {
		src   string
		check func(error) bool
	}{
		{"x = nowhere + 1", func(err error) bool {
			var ne *NameError
			return errors.As(err, &ne) && ne.Name == "nowhere"
		}},
		{`x = V("1 zz")`, func(err error) bool {
			var bw *pattern.BadWordError
			return errors.As(err, &bw) && bw.Word == "zz"
		}},
		{`x = E(rest, "x1")`, func(err error) bool {
			var bw *pattern.BadWordError
			return errors.As(err, &bw)
		}},
		{"del missing", func(err error) bool {
			var ne *NameError
			return errors.As(err, &ne) && ne.Name == "missing"
		}},
		{"x = 1 / 0", func(err error) bool { return err != nil }},
		{"x = \"a\" + 1", func(err error) bool { return err != nil }},
		{"a, b = 1, 2, 3", func(err error) bool { return err != nil }},
		{"x = E(1, \"1\")", func(err error) bool { return err != nil }},
		{"x = lfo(1, 0)", func(err error) bool { return err != nil }},
		{"x = V(\"1\", stride=2)", func(err error) bool { return err != nil }},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			err := in.Run(tc.src, newScope())
			if !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			var ee *EvalError
			if !errors.As(err, &ee) || ee.Line != 1 {
				t.Fatalf("error %v is not positioned on line 1", err)
			}
		})
	}
}

func TestRunValues(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, `
a, b = 1, 2
s = "ab" * 2
l = [1] + [2, 3]
n = len(l)
i = l[-1]
sl = (1, 2, 3, 4)[1:3]
mel = V("1 2 3")
up = mel + 12
down = -mel
twice = mel * 2
slow = mel.of(2)
tail = mel[1:]
first = mel[0]
choice = (2).pick("x", "y", "z")
big = 1 < 2 and 3 or 4
`)
	checks := map[string]string{
		"a":      "1",
		"b":      "2",
		"s":      `"abab"`,
		"l":      "[1, 2, 3]",
		"n":      "3",
		"i":      "3",
		"sl":     "(2, 3)",
		"up":     `(V("1 2 3") + 12)`,
		"down":   `(-V("1 2 3"))`,
		"twice":  `(V("1 2 3") * 2)`,
		"slow":   `V("1 2 3").of(2)`,
		"tail":   `V("1 2 3")[1:]`,
		"first":  "1",
		"choice": `"z"`,
		"big":    "3",
	}
	for name, want := range checks {
		if got := Fingerprint(forced(t, scope, name)); got != want {
			t.Fatalf("%s = %s, want %s", name, got, want)
		}
	}
	lengths := map[string]float64{"mel": 3, "up": 3, "twice": 6, "slow": 6, "tail": 2}
	for name, want := range lengths {
		p := forced(t, scope, name).(*Pattern)
		if got, _ := p.Len(scope); got != want {
			t.Fatalf("len(%s) = %v, want %v", name, got, want)
		}
	}
	up := forced(t, scope, "up").(*Pattern)
	if got := up.sampleAt(1); got != Number(14) {
		t.Fatalf("up[1] = %v, want 14", got)
	}
	slow := forced(t, scope, "slow").(*Pattern)
	if got := slow.sampleAt(3); got != Number(2) {
		t.Fatalf("slow[3] = %v, want 2", got)
	}
}

func TestRunAssignmentReadsPreviousBinding(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, "speed = 16\nspeed = speed * 2")
	if got := scope["speed"]; got != Number(32) {
		t.Fatalf("speed = %v, want 32", got)
	}
	run(t, in, scope, "speed = speed * 2")
	if got := scope["speed"]; got != Number(64) {
		t.Fatalf("speed after rerun = %v, want 64", got)
	}

	run(t, in, scope, "S = E(rest, \"1\")\nS = seq(S, E(rest, \"2\"))")
	p, ok := forced(t, scope, "S").(*Pattern)
	if !ok {
		t.Fatalf("S = %T, want pattern", scope["S"])
	}
	if got, err := p.Len(scope); err != nil || got != 3 {
		t.Fatalf("len(S) = %v, %v, want 3", got, err)
	}
}

func TestForceReportsCycles(t *testing.T) {
	in := NewInterp(0)
	tests := []struct {
		src  string
		name string
	}{
		{"a = 1\nb = a + 1\na = b + 1", "a"},
		{"a = 1\nb = a * 2 + a\na = (b - 1) * (b + 1)", "a"},
		{"x = 1\ny = seq(x)\nx = y", "x"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			scope := newScope()
			run(t, in, scope, tc.src)
			_, err := Force(scope[tc.name], scope)
			var ce *CycleError
			if !errors.As(err, &ce) {
				t.Fatalf("force %s: err = %v, want cycle", tc.name, err)
			}
			if len(ce.Path) < 2 || ce.Path[len(ce.Path)-1] != ce.Path[0] {
				t.Fatalf("cycle path = %v", ce.Path)
			}
		})
	}
}

func TestPickRoundsHalfToEven(t *testing.T) {
	in := NewInterp(0)
	tests := []struct {
		recv string
		want string
	}{
		{"0", "10"},
		{"0.4", "10"},
		{"0.5", "10"},
		{"1.5", "30"},
		{"1.6", "30"},
		{"2.5", "30"},
		{"-1", "30"},
	}
	for _, tc := range tests {
		t.Run(tc.recv, func(t *testing.T) {
			scope := newScope()
			run(t, in, scope, fmt.Sprintf("x = (%s).pick(10, 20, 30)", tc.recv))
			if got := Fingerprint(forced(t, scope, "x")); got != tc.want {
				t.Fatalf("(%s).pick = %s, want %s", tc.recv, got, tc.want)
			}
		})
	}
	for _, recv := range []string{"2.7", "3", "-4"} {
		if err := in.Run(fmt.Sprintf("x = (%s).pick(10, 20, 30)", recv), newScope()); err == nil {
			t.Fatalf("(%s).pick accepted an index out of range", recv)
		}
	}
}

func TestValueLiteralsAreShared(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, "a = V(\"1 2\")\nb = V('1 2')\nc = V(\"1\", \"2\")")
	if scope["a"] != scope["b"] || scope["a"] != scope["c"] {
		t.Fatalf("identical literals parsed twice")
	}
	if !Equal(scope["a"], scope["b"]) {
		t.Fatalf("identical literals differ")
	}
}

type channelCall struct {
	op    string
	value float64
}

// recordingChannel keeps every register write in order.
type recordingChannel struct {
	calls []channelCall
}

func (c *recordingChannel) Name() string { return "rec" }

func (c *recordingChannel) add(op string, v float64) {
	c.calls = append(c.calls, channelCall{op, v})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *recordingChannel) SetToneFlag(on bool)      { c.add("tone", boolFloat(on)) }
func (c *recordingChannel) SetNoiseFlag(on bool)     { c.add("noise", boolFloat(on)) }
func (c *recordingChannel) SetEnvFlag(on bool)       { c.add("env", boolFloat(on)) }
func (c *recordingChannel) SetPitch(note float64)    { c.add("pitch", note) }
func (c *recordingChannel) SetLevel(level float64)   { c.add("level", level) }
func (c *recordingChannel) SetNoisePeriod(p int)     { c.add("noiseperiod", float64(p)) }
func (c *recordingChannel) SetEnvShape(shape int)    { c.add("envshape", float64(shape)) }
func (c *recordingChannel) SetEnvPitch(note float64) { c.add("envpitch", note) }

func (c *recordingChannel) values(op string) []float64 {
	var out []float64
	for _, call := range c.calls {
		if call.op == op {
			out = append(out, call.value)
		}
	}
	return out
}

func mustProgram(t *testing.T, in *Interp, src string) *Program {
	t.Helper()
	v, err := in.Eval(src, nil)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	p, ok := v.(*Program)
	if !ok {
		t.Fatalf("eval %q = %T, want program", src, v)
	}
	return p
}

func TestPerformReleaseKeywords(t *testing.T) {
	in := NewInterp(0)
	prog := mustProgram(t, in, `program {pitch = hmm[0]; level = hmm} release {pitch = hmm[0]; level = hmm; noiseperiod = onframes}`)
	hmm, err := (pattern.Dialect{}).Compile("80x20/ 100")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	note := &Note{Program: prog, Kwargs: map[string]KwPattern{"hmm": {Seq: hmm}}}
	onframes := 5.0
	trigger := pattern.EventSegment{RelFrame: 35}
	release := pattern.EventSegment{RelFrame: 40, OnFrames: &onframes}
	const speed = 10
	tests := []struct {
		seg   pattern.EventSegment
		frame float64 // chip frames
		want  []float64
	}{
		{trigger, 350, []float64{55, 55}},
		{trigger, 360, []float64{55, 56}},
		{trigger, 390, []float64{55, 59}},
		{release, 400, []float64{55, 60, 50}},
		{release, 410, []float64{55, 61, 50}},
	}
	for _, tc := range tests {
		ch := &recordingChannel{}
		hit := pattern.Hit{Segment: tc.seg, Trigger: 35, Local: tc.frame/speed - 35}
		if err := in.Perform(note, hit, speed, ch, nil); err != nil {
			t.Fatalf("perform at %v: %v", tc.frame, err)
		}
		var got []float64
		for _, call := range ch.calls {
			got = append(got, call.value)
		}
		if !slices.Equal(got, tc.want) {
			t.Fatalf("perform at %v wrote %v, want %v", tc.frame, got, tc.want)
		}
	}
}

func TestPerformSlicedPatternKeywords(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, `
p = program {level = val}
pat = E(p, "10x", val = V("9x/ 9"))[-6:]
`)
	pat := forced(t, scope, "pat").(*Pattern)
	seq, err := pat.Hits(scope)
	if err != nil {
		t.Fatalf("hits: %v", err)
	}
	if seq.Len() != 16 {
		t.Fatalf("len = %v, want 16", seq.Len())
	}
	ch := &recordingChannel{}
	for _, frame := range []float64{.5, 4.5, 5.5} {
		hit := seq.At(frame)
		note, ok := hit.Owner.(*Note)
		if !ok {
			t.Fatalf("hit at %v has owner %T", frame, hit.Owner)
		}
		if err := in.Perform(note, hit, 1, ch, scope); err != nil {
			t.Fatalf("perform at %v: %v", frame, err)
		}
	}
	if got := ch.values("level"); !slices.Equal(got, []float64{4.5, 8.5, 9}) {
		t.Fatalf("levels = %v, want [4.5 8.5 9]", got)
	}
}

func TestPerformGateAndGuards(t *testing.T) {
	in := NewInterp(0)
	prog := mustProgram(t, in, `program {
	level = 15
	tone = 1 if frame < 1
	gate = 2
}`)
	note := &Note{Program: prog}
	ch := &recordingChannel{}
	for f := range 4 {
		hit := pattern.Hit{Local: float64(f)}
		if err := in.Perform(note, hit, 1, ch, nil); err != nil {
			t.Fatalf("perform frame %d: %v", f, err)
		}
	}
	if got := ch.values("level"); len(got) != 2 {
		t.Fatalf("levels = %v, want two writes before the gate", got)
	}
	if got := ch.values("tone"); len(got) != 1 {
		t.Fatalf("tone = %v, want one guarded write", got)
	}
	release := pattern.Hit{Segment: pattern.EventSegment{OnFrames: new(float64)}}
	ch = &recordingChannel{}
	if err := in.Perform(note, release, 1, ch, nil); err != nil || len(ch.calls) != 0 {
		t.Fatalf("release without release bindings wrote %v, err %v", ch.calls, err)
	}
}

func TestPerformDegreesThroughScale(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, `
bass = program {pitch = deg; envpitch = topitch(deg) - 12}
pat = E(bass, "1 1 1 1", deg = D("1 3 5 5+"))
`)
	pat := forced(t, scope, "pat").(*Pattern)
	seq, err := pat.Hits(scope)
	if err != nil {
		t.Fatalf("hits: %v", err)
	}
	ch := &recordingChannel{}
	for f := range 4 {
		hit := seq.At(float64(f))
		if err := in.Perform(hit.Owner.(*Note), hit, 1, ch, scope); err != nil {
			t.Fatalf("perform %d: %v", f, err)
		}
	}
	if got := ch.values("pitch"); !slices.Equal(got, []float64{60, 64, 67, 79}) {
		t.Fatalf("pitches = %v", got)
	}
	if got := ch.values("envpitch"); !slices.Equal(got, []float64{48, 52, 55, 67}) {
		t.Fatalf("env pitches = %v", got)
	}
	scope["tonic"] = Number(62)
	ch = &recordingChannel{}
	hit := seq.At(1)
	if err := in.Perform(hit.Owner.(*Note), hit, 1, ch, scope); err != nil {
		t.Fatalf("perform: %v", err)
	}
	if got := ch.values("pitch"); !slices.Equal(got, []float64{66}) {
		t.Fatalf("pitch after retuning = %v, want [66]", got)
	}
}

func TestPerformErrors(t *testing.T) {
	in := NewInterp(0)
	tests := []string{
		"program {pitch = \"high\"}",
		"program {volume = 3}",
		"program {level = nowhere}",
		"program {level = 1; gate = \"x\"}",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			note := &Note{Program: mustProgram(t, in, src)}
			err := in.Perform(note, pattern.Hit{}, 1, &recordingChannel{}, newScope())
			if err == nil {
				t.Fatalf("perform succeeded")
			}
		})
	}
}

func TestLFOBuiltin(t *testing.T) {
	in := NewInterp(0)
	scope := newScope()
	run(t, in, scope, `w = lfo(2, 8, "saw")`+"\n"+`v = lfo(1, 4)`)
	w := forced(t, scope, "w").(*Pattern)
	if l, _ := w.Len(scope); l != 8 {
		t.Fatalf("len = %v, want 8", l)
	}
	for f, want := range map[float64]float64{0: 2, 2: 1, 4: 0, 6: -1, 8: 2} {
		if got := w.sampleAt(f); got != Number(want) {
			t.Fatalf("saw(%v) = %v, want %v", f, got, want)
		}
	}
	if got := Fingerprint(forced(t, scope, "v")); got != fmt.Sprintf("lfo(1, 4, %q)", "triangle") {
		t.Fatalf("fingerprint = %s", got)
	}
}
