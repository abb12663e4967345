package psg

import (
	"math"
	"testing"
)

func TestChannelClampsRegisters(t *testing.T) {
	chip := NewChip(0)
	if len(chip.Channels) != 3 || chip.Channels[2].Name() != "C" {
		t.Fatalf("default chip has %d channels", len(chip.Channels))
	}
	ch := chip.Channels[0]
	ch.SetLevel(20)
	ch.SetNoisePeriod(0)
	ch.SetEnvShape(99)
	st := ch.State()
	if st.Level != MaxLevel || st.NoisePeriod != 1 || st.EnvShape != MaxEnvShape {
		t.Fatalf("state = %+v", st)
	}
	ch.SetLevel(-3)
	if ch.State().Level != 0 {
		t.Fatalf("negative level kept: %v", ch.State().Level)
	}
}

func TestSnapshotCopies(t *testing.T) {
	chip := NewChip(2)
	chip.Channels[1].SetToneFlag(true)
	chip.Channels[1].SetLevel(9)
	snap := chip.Snapshot()
	chip.Channels[1].SetLevel(3)
	if !snap[1].Tone || snap[1].Level != 9 || !snap[1].Audible() || snap[0].Audible() {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestAmplitudeCurve(t *testing.T) {
	tests := []struct {
		level float64
		want  float64
	}{
		{0, 0},
		{15, 1},
		{13, .5},
		{11, .25},
		{16, 1},
	}
	for _, tc := range tests {
		if got := amplitude(tc.level); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("amplitude(%v) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestEnvelopeShapes(t *testing.T) {
	tests := []struct {
		shape int
		pos   float64
		want  float64
	}{
		{0, .25, .75},
		{0, 1.5, 0},
		{4, .25, .25},
		{4, 2, 0},
		{8, 1.25, .75},
		{10, 1.25, .25},
		{11, 3, 1},
		{12, 2.5, .5},
		{13, 5, 1},
		{14, 1.25, .75},
		{15, 1.5, 0},
	}
	for _, tc := range tests {
		if got := envelope(tc.shape, tc.pos); got != tc.want {
			t.Fatalf("envelope(%d, %v) = %v, want %v", tc.shape, tc.pos, got, tc.want)
		}
	}
}

func TestSynthTicksOncePerFrame(t *testing.T) {
	chip := NewChip(1)
	ticks := 0
	s := NewSynth(1000, chip, func() bool { ticks++; return true }, Params{FrameRate: 50})
	buf := make([]float32, 2*100)
	s.Process(buf)
	if ticks != 5 {
		t.Fatalf("ticks = %d, want 5", ticks)
	}
	s.Process(buf[:2*30])
	if ticks != 7 {
		t.Fatalf("ticks = %d, want 7", ticks)
	}
}

func TestSynthFinishes(t *testing.T) {
	chip := NewChip(1)
	ticks := 0
	s := NewSynth(1000, chip, func() bool { ticks++; return ticks < 3 }, Params{FrameRate: 100})
	buf := make([]float32, 2*100)
	s.Process(buf)
	if !s.Finished() || ticks != 3 {
		t.Fatalf("finished %v after %d ticks", s.Finished(), ticks)
	}
	for i := 2 * 20; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("sample %d = %v after the end", i, buf[i])
		}
	}
}

func rms(buf []float32) float64 {
	var sum float64
	for _, v := range buf {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestSynthRendersTone(t *testing.T) {
	chip := NewChip(1)
	ch := chip.Channels[0]
	s := NewSynth(48000, chip, func() bool { return true }, DefaultParams())
	silent := make([]float32, 2*4800)
	s.Process(silent)
	if got := rms(silent); got > 1e-6 {
		t.Fatalf("silent chip rms = %v", got)
	}
	ch.SetToneFlag(true)
	ch.SetPitch(69)
	ch.SetLevel(15)
	loud := make([]float32, 2*4800)
	s.Process(loud)
	if got := rms(loud); got < .05 {
		t.Fatalf("tone rms = %v, want audible", got)
	}
	ch.SetLevel(9)
	quiet := make([]float32, 2*4800)
	s.Process(quiet)
	if rms(quiet) >= rms(loud) {
		t.Fatalf("level 9 rms %v not below level 15 rms %v", rms(quiet), rms(loud))
	}
}

func TestSynthNoiseAndEnvelope(t *testing.T) {
	chip := NewChip(1)
	ch := chip.Channels[0]
	ch.SetNoiseFlag(true)
	ch.SetNoisePeriod(4)
	ch.SetEnvFlag(true)
	ch.SetEnvShape(8)
	ch.SetEnvPitch(45)
	s := NewSynth(48000, chip, nil, DefaultParams())
	buf := make([]float32, 2*4800)
	s.Process(buf)
	if got := rms(buf); got < .01 {
		t.Fatalf("noise rms = %v, want audible", got)
	}
	s.SetMasterGain(0)
	s.Process(buf)
	if got := rms(buf[len(buf)/2:]); got > 1e-3 {
		t.Fatalf("muted rms = %v", got)
	}
}
