// Package audio plays a sample source through the system audio device.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills interleaved stereo float32 buffers.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream returns io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// Stream encodes a SampleSource as little-endian float32 stereo.
type Stream struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	done   chan struct{}
	once   sync.Once
}

func NewStream(source SampleSource) *Stream {
	return &Stream{source: source, done: make(chan struct{})}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	for i, v := range s.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	n := frames * 8
	if fs, ok := s.source.(FinishingSource); ok && fs.Finished() {
		s.once.Do(func() { close(s.done) })
		return n, io.EOF
	}
	return n, nil
}

// Done is closed once a finishing source has ended.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) Close() error { return nil }

var (
	contextOnce  sync.Once
	audioContext *ebitaudio.Context
	contextRate  int
)

// sharedContext returns the process-wide audio context; the device can only
// be opened once, at one sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return audioContext, nil
}

// Device plays one stream on the audio device.
type Device struct {
	player *ebitaudio.Player
	stream *Stream
}

func Open(sampleRate int, source SampleSource) (*Device, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStream(source)
	pl, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	return &Device{player: pl, stream: stream}, nil
}

func (d *Device) Play()           { d.player.Play() }
func (d *Device) Pause()          { d.player.Pause() }
func (d *Device) IsPlaying() bool { return d.player.IsPlaying() }

// Done is closed when a finishing source runs out.
func (d *Device) Done() <-chan struct{} { return d.stream.Done() }

// Position is how much audio the listener has heard.
func (d *Device) Position() time.Duration {
	return d.player.Position()
}

func (d *Device) Close() error {
	d.player.Pause()
	if err := d.player.Close(); err != nil {
		return err
	}
	return d.stream.Close()
}
