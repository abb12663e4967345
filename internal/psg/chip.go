// Package psg is a minimal programmable sound generator: register-level
// channels and a naive synthesizer that renders them.
package psg

import "math"

const (
	MaxLevel       = 15
	MaxNoisePeriod = 31
	MaxEnvShape    = 15
)

// ChannelState is the register file of one channel.
type ChannelState struct {
	Tone, Noise, Env bool
	// Pitch and EnvPitch are fractional note numbers, 69 being A4.
	Pitch       float64
	Level       float64
	NoisePeriod int
	EnvShape    int
	EnvPitch    float64
}

// Audible reports whether the channel makes any sound.
func (s ChannelState) Audible() bool {
	return (s.Tone || s.Noise) && (s.Level > 0 || s.Env)
}

// Channel holds one channel's registers. It is written by playback and read
// by the synth on the same goroutine.
type Channel struct {
	name  string
	state ChannelState
}

func (c *Channel) Name() string             { return c.name }
func (c *Channel) SetToneFlag(on bool)      { c.state.Tone = on }
func (c *Channel) SetNoiseFlag(on bool)     { c.state.Noise = on }
func (c *Channel) SetEnvFlag(on bool)       { c.state.Env = on }
func (c *Channel) SetPitch(note float64)    { c.state.Pitch = note }
func (c *Channel) SetEnvPitch(note float64) { c.state.EnvPitch = note }

func (c *Channel) SetLevel(level float64) {
	c.state.Level = clamp(level, 0, MaxLevel)
}

func (c *Channel) SetNoisePeriod(period int) {
	c.state.NoisePeriod = max(1, min(period, MaxNoisePeriod))
}

func (c *Channel) SetEnvShape(shape int) {
	c.state.EnvShape = max(0, min(shape, MaxEnvShape))
}

func (c *Channel) State() ChannelState { return c.state }

// Chip is a bank of channels named A, B, C and so on.
type Chip struct {
	Channels []*Channel
}

func NewChip(channels int) *Chip {
	if channels <= 0 {
		channels = 3
	}
	c := &Chip{Channels: make([]*Channel, channels)}
	for i := range c.Channels {
		c.Channels[i] = &Channel{name: string(rune('A' + i)), state: ChannelState{NoisePeriod: 1}}
	}
	return c
}

// Snapshot copies the current register state of every channel.
func (c *Chip) Snapshot() []ChannelState {
	out := make([]ChannelState, len(c.Channels))
	for i, ch := range c.Channels {
		out[i] = ch.state
	}
	return out
}

// amplitude maps a 0-15 level to linear gain, 3 dB per step.
func amplitude(level float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Pow(2, (min(level, MaxLevel)-MaxLevel)/2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
