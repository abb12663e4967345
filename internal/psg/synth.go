package psg

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/livepsg/internal/pattern"
)

const (
	twoPi = math.Pi * 2
	// noiseClock is the noise generator rate at period 1.
	noiseClock = 125000.0
)

type Params struct {
	FrameRate  float64 // chip frames per second
	MasterGain float64
	Tuning     float64 // A4 in Hz
	LPFCutoff  float64 // lowpass filter cutoff in Hz (0 = disabled)
}

func DefaultParams() Params {
	return Params{
		FrameRate:  50,
		MasterGain: 0.3,
		Tuning:     440,
		LPFCutoff:  12000,
	}
}

type voice struct {
	tonePhase  float64
	noisePhase float64
	lfsr       uint32
	envPhase   float64
	envShape   int
	pan        float64
}

// Synth renders a Chip. It calls tick at the start of every chip frame,
// before rendering that frame's samples; tick returning false ends the
// stream.
type Synth struct {
	chip            *Chip
	tick            func() bool
	sampleRate      float64
	params          Params
	samplesPerFrame float64
	untilFrame      float64
	voices          []voice
	finished        atomic.Bool
	masterGain      uint64
	dcPrevInL       float64
	dcPrevOutL      float64
	dcPrevInR       float64
	dcPrevOutR      float64
	lpfL            float64
	lpfR            float64
	lpfAlpha        float64
}

func NewSynth(sampleRate int, chip *Chip, tick func() bool, params Params) *Synth {
	if params.FrameRate <= 0 {
		params.FrameRate = DefaultParams().FrameRate
	}
	if params.Tuning <= 0 {
		params.Tuning = DefaultParams().Tuning
	}
	s := &Synth{
		chip:            chip,
		tick:            tick,
		sampleRate:      float64(sampleRate),
		params:          params,
		samplesPerFrame: float64(sampleRate) / params.FrameRate,
		voices:          make([]voice, len(chip.Channels)),
		masterGain:      math.Float64bits(params.MasterGain),
	}
	for i := range s.voices {
		s.voices[i].lfsr = 1
		s.voices[i].envShape = -1
		if n := len(s.voices); n > 1 {
			s.voices[i].pan = float64(i)/float64(n-1)*2 - 1
		}
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		s.lpfAlpha = dt / (rc + dt)
	}
	return s
}

// Process fills dst with interleaved stereo samples.
func (s *Synth) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		if s.finished.Load() {
			dst[i], dst[i+1] = 0, 0
			continue
		}
		if s.untilFrame <= 0 {
			if s.tick != nil && !s.tick() {
				s.finished.Store(true)
				dst[i], dst[i+1] = 0, 0
				continue
			}
			s.untilFrame += s.samplesPerFrame
		}
		s.untilFrame--
		dst[i], dst[i+1] = s.renderFrame()
	}
}

// Finished reports whether tick has ended the stream.
func (s *Synth) Finished() bool { return s.finished.Load() }

func (s *Synth) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&s.masterGain, math.Float64bits(gain))
}

func (s *Synth) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.masterGain))
}

func (s *Synth) renderFrame() (float32, float32) {
	var l, r float64
	gain := s.masterGainValue()
	for i, ch := range s.chip.Channels {
		v := &s.voices[i]
		sig := s.renderVoice(v, ch.state) * gain
		angle := ((v.pan + 1) / 2) * (math.Pi / 2)
		l += sig * math.Cos(angle)
		r += sig * math.Sin(angle)
	}
	l = s.dcBlockL(l)
	r = s.dcBlockR(r)
	if s.lpfAlpha > 0 {
		s.lpfL += s.lpfAlpha * (l - s.lpfL)
		s.lpfR += s.lpfAlpha * (r - s.lpfR)
		l, r = s.lpfL, s.lpfR
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

// renderVoice returns the unipolar output of one channel. Like the real
// chip, a channel with tone and noise both off holds its output high.
func (s *Synth) renderVoice(v *voice, st ChannelState) float64 {
	toneBit := true
	if st.Tone {
		v.tonePhase += pattern.Frequency(st.Pitch, s.params.Tuning) / s.sampleRate
		v.tonePhase -= math.Floor(v.tonePhase)
		toneBit = v.tonePhase < 0.5
	}
	noiseBit := true
	if st.Noise {
		v.noisePhase += noiseClock / float64(max(1, st.NoisePeriod)) / s.sampleRate
		for v.noisePhase >= 1 {
			v.noisePhase--
			// 17-bit LFSR, taps 0 and 3
			bit := (v.lfsr ^ (v.lfsr >> 3)) & 1
			v.lfsr = (v.lfsr >> 1) | (bit << 16)
		}
		noiseBit = v.lfsr&1 == 1
	}
	level := st.Level
	if st.Env {
		if st.EnvShape != v.envShape {
			v.envShape = st.EnvShape
			v.envPhase = 0
		}
		v.envPhase += pattern.Frequency(st.EnvPitch, s.params.Tuning) / s.sampleRate
		level = envelope(st.EnvShape, v.envPhase) * MaxLevel
	}
	if !toneBit || !noiseBit {
		return 0
	}
	return amplitude(level)
}

// envelope is the 0-1 envelope level pos cycles after shape was written.
// Shapes follow the AY-3-8910 register: 8, 10, 12 and 14 repeat, the rest
// run once and hold.
func envelope(shape int, pos float64) float64 {
	attack := shape&4 != 0
	if pos < 1 {
		if attack {
			return pos
		}
		return 1 - pos
	}
	if shape&8 == 0 {
		return 0
	}
	hold := shape&1 != 0
	alternate := shape&2 != 0
	if hold {
		if attack != alternate {
			return 1
		}
		return 0
	}
	cycle := int(math.Floor(pos))
	phase := pos - float64(cycle)
	up := attack
	if alternate && cycle%2 == 1 {
		up = !up
	}
	if up {
		return phase
	}
	return 1 - phase
}

func (s *Synth) dcBlockL(x float64) float64 {
	const r = 0.995
	y := x - s.dcPrevInL + r*s.dcPrevOutL
	s.dcPrevInL = x
	s.dcPrevOutL = y
	return y
}

func (s *Synth) dcBlockR(x float64) float64 {
	const r = 0.995
	y := x - s.dcPrevInR + r*s.dcPrevOutR
	s.dcPrevInR = x
	s.dcPrevOutR = y
	return y
}
