package livepsg

import (
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/cbegin/livepsg/internal/bridge"
	"github.com/cbegin/livepsg/internal/psg"
)

// Render is the register state of every channel after each chip frame.
type Render struct {
	Names     []string
	FrameRate float64
	Frames    [][]psg.ChannelState
}

type offline struct {
	cfg     playerConfig
	chip    *psg.Chip
	session *bridge.Session
}

func newOffline(text string, opts []Option) (*offline, error) {
	cfg, err := newPlayerConfig(opts)
	if err != nil {
		return nil, err
	}
	ctx := cfg.newContext()
	if _, err := ctx.Update(text); err != nil {
		return nil, err
	}
	ctx.Flip()
	chip := psg.NewChip(cfg.channels)
	session, err := cfg.newBridge(ctx).NewSession(chipChannels(chip))
	if err != nil {
		return nil, err
	}
	return &offline{cfg: cfg, chip: chip, session: session}, nil
}

// RenderFrames plays text for up to frames chip frames without an audio
// device. A non-looping score may end sooner.
func RenderFrames(text string, frames int, opts ...Option) (*Render, error) {
	o, err := newOffline(text, opts)
	if err != nil {
		return nil, err
	}
	r := &Render{FrameRate: o.cfg.frameRate}
	for _, ch := range o.chip.Channels {
		r.Names = append(r.Names, ch.Name())
	}
	for range frames {
		if !o.session.Step() {
			break
		}
		r.Frames = append(r.Frames, o.chip.Snapshot())
	}
	return r, nil
}

// RenderSamples renders frames chip frames of interleaved stereo audio.
// Output after a non-looping score ends is silent.
func RenderSamples(text string, frames int, opts ...Option) ([]float32, error) {
	o, err := newOffline(text, opts)
	if err != nil {
		return nil, err
	}
	played := 0
	tick := func() bool {
		if played == frames {
			return false
		}
		played++
		return o.session.Step()
	}
	synth := psg.NewSynth(o.cfg.sampleRate, o.chip, tick, o.cfg.synthParams())
	n := int(math.Ceil(float64(frames) * float64(o.cfg.sampleRate) / o.cfg.frameRate))
	out := make([]float32, n*2)
	synth.Process(out)
	if o.cfg.sampleTap != nil {
		o.cfg.sampleTap(out)
	}
	return out, nil
}

// WriteWAV encodes interleaved samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(float64(max(-1, min(1, s))) * 32767))
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "encode wav")
	}
	return errors.Wrap(enc.Close(), "finish wav")
}
