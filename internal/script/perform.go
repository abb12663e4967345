package script

import (
	"fmt"
	"math"

	"github.com/cbegin/livepsg/internal/pattern"
)

// Channel receives one frame of chip state. Pitches are fractional note
// numbers; levels run 0 to 15.
type Channel interface {
	Name() string
	SetToneFlag(on bool)
	SetNoiseFlag(on bool)
	SetEnvFlag(on bool)
	SetPitch(note float64)
	SetLevel(level float64)
	SetNoisePeriod(period int)
	SetEnvShape(shape int)
	SetEnvPitch(note float64)
}

// KwPattern is a keyword pattern handed to E(...).
type KwPattern struct {
	Seq     pattern.Seq[pattern.Vec]
	Degrees bool
}

// Note is the owner of every hit an E(...) pattern produces.
type Note struct {
	Program *Program
	Kwargs  map[string]KwPattern
}

// Perform applies hit to ch. speed is the number of chip frames per pattern
// unit; r resolves the names a program body reads.
func (in *Interp) Perform(n *Note, hit pattern.Hit, speed float64, ch Channel, r Resolver) error {
	frame := hit.Local * speed
	bindings := n.Program.On
	locals := make(map[string]Value, len(n.Kwargs)+2)
	locals["frame"] = Number(frame)
	if hit.Segment.OnFrames != nil {
		bindings = n.Program.Release
		locals["onframes"] = Number(*hit.Segment.OnFrames * speed)
	}
	if len(bindings) == 0 {
		return nil
	}
	for name, kw := range n.Kwargs {
		// Keyword patterns are read from the trigger, one chip frame per index.
		seq := &pattern.Rebased{Child: kw.Seq, Offset: hit.Trigger, Scale: 1 / speed}
		locals[name] = newValues(seq, kw.Degrees, name)
	}
	e := &env{in: in, scope: r, locals: locals}
	if hit.Segment.OnFrames == nil {
		for _, b := range bindings {
			if b.Name != "gate" {
				continue
			}
			gate, err := e.number(b.Value)
			if err != nil {
				return fmt.Errorf("gate: %w", err)
			}
			if frame >= gate {
				return nil
			}
		}
	}
	for _, b := range bindings {
		if b.Name == "gate" {
			continue
		}
		if b.If != nil {
			cond, err := e.eval(b.If)
			if err != nil {
				return fmt.Errorf("%s: %w", b.Name, err)
			}
			if cond, err = Force(cond, r); err != nil {
				return err
			}
			if !truth(sample(cond, frame)) {
				continue
			}
		}
		v, err := e.eval(b.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}
		if v, err = Force(v, r); err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}
		if err := e.apply(ch, b.Name, sample(v, frame)); err != nil {
			return err
		}
	}
	return nil
}

// sample reads value patterns at frame and passes everything else through.
func sample(v Value, frame float64) Value {
	p, ok := v.(*Pattern)
	if !ok || p.Events {
		return v
	}
	return p.sampleAt(frame)
}

func (p *Pattern) sampleAt(frame float64) Value {
	vec := p.values.At(frame)
	if p.Degrees {
		return Degree(vec)
	}
	return Number(vec.Scalar())
}

func (e *env) apply(ch Channel, name string, v Value) error {
	switch name {
	case "pitch", "envpitch":
		pitch, err := e.toPitch(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if name == "pitch" {
			ch.SetPitch(pitch)
		} else {
			ch.SetEnvPitch(pitch)
		}
		return nil
	}
	x, ok := v.(Number)
	if !ok {
		return fmt.Errorf("%s: expected number, got %s", name, typeName(v))
	}
	f := float64(x)
	switch name {
	case "tone":
		ch.SetToneFlag(f != 0)
	case "noise":
		ch.SetNoiseFlag(f != 0)
	case "env":
		ch.SetEnvFlag(f != 0)
	case "level":
		ch.SetLevel(f)
	case "noiseperiod":
		ch.SetNoisePeriod(int(math.Round(f)))
	case "envshape":
		ch.SetEnvShape(int(math.Round(f)))
	default:
		return fmt.Errorf("unknown channel field %q", name)
	}
	return nil
}

// toPitch accepts note numbers as they are and maps degrees through the
// current scale.
func (e *env) toPitch(v Value) (float64, error) {
	switch x := v.(type) {
	case Number:
		return float64(x), nil
	case Degree:
		return e.degreePitch(pattern.Vec(x))
	}
	return 0, fmt.Errorf("expected pitch, got %s", typeName(v))
}

func (e *env) degreePitch(v pattern.Vec) (float64, error) {
	scale, ok := e.forced("scale").(pattern.Scale)
	if !ok {
		return 0, fmt.Errorf("scale is not a scale")
	}
	tonic, ok := e.forced("tonic").(Number)
	if !ok {
		return 0, fmt.Errorf("tonic is not a number")
	}
	mode := 1
	if m, ok := e.forced("mode").(Number); ok {
		mode = int(m)
	}
	return float64(tonic) + scale.Pitch(v, mode), nil
}
