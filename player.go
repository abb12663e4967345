// Package livepsg plays live-coded scores on a small programmable sound
// generator. Score text can be replaced while it plays; changes are picked
// up at the next chip frame.
package livepsg

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/livepsg/internal/audio"
	"github.com/cbegin/livepsg/internal/bridge"
	"github.com/cbegin/livepsg/internal/config"
	"github.com/cbegin/livepsg/internal/live"
	"github.com/cbegin/livepsg/internal/psg"
)

type Option func(*playerConfig)

type playerConfig struct {
	sampleRate int
	frameRate  float64
	channels   int
	loop       bool
	section    string
	tuning     float64
	speed      float64
	slideBias  float64
	masterGain float64
	log        *slog.Logger
	sampleTap  func([]float32)
}

func defaultPlayerConfig() playerConfig {
	d := config.Default()
	return playerConfig{
		sampleRate: d.SampleRate,
		frameRate:  d.FrameRate,
		channels:   d.Channels,
		loop:       d.Loop,
		tuning:     d.Tuning,
		speed:      d.Speed,
		slideBias:  d.SlideBias,
		masterGain: d.MasterGain,
		log:        slog.Default(),
	}
}

// WithConfig applies every field of a loaded configuration.
func WithConfig(c config.Config) Option {
	return func(cfg *playerConfig) {
		cfg.sampleRate = c.SampleRate
		cfg.frameRate = c.FrameRate
		cfg.channels = c.Channels
		cfg.loop = c.Loop
		cfg.section = c.Section
		cfg.tuning = c.Tuning
		cfg.speed = c.Speed
		cfg.slideBias = c.SlideBias
		cfg.masterGain = c.MasterGain
	}
}

func WithSampleRate(rate int) Option {
	return func(cfg *playerConfig) {
		cfg.sampleRate = rate
	}
}

// WithFrameRate sets how many chip frames play per second.
func WithFrameRate(rate float64) Option {
	return func(cfg *playerConfig) {
		cfg.frameRate = rate
	}
}

func WithChannels(n int) Option {
	return func(cfg *playerConfig) {
		cfg.channels = n
	}
}

func WithLoop(enabled bool) Option {
	return func(cfg *playerConfig) {
		cfg.loop = enabled
	}
}

// WithSection starts playback at the named section instead of the first.
func WithSection(name string) Option {
	return func(cfg *playerConfig) {
		cfg.section = name
	}
}

func WithTuning(hz float64) Option {
	return func(cfg *playerConfig) {
		cfg.tuning = hz
	}
}

// WithSpeed sets the initial chip frames per pattern step. Scores usually
// override it with their own speed binding.
func WithSpeed(speed float64) Option {
	return func(cfg *playerConfig) {
		cfg.speed = speed
	}
}

func WithSlideBias(bias float64) Option {
	return func(cfg *playerConfig) {
		cfg.slideBias = bias
	}
}

func WithMasterGain(gain float64) Option {
	return func(cfg *playerConfig) {
		cfg.masterGain = gain
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(cfg *playerConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

func newPlayerConfig(opts []Option) (playerConfig, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := config.Default()
	c.SampleRate = cfg.sampleRate
	c.FrameRate = cfg.frameRate
	c.Channels = cfg.channels
	c.Tuning = cfg.tuning
	c.Speed = cfg.speed
	c.SlideBias = cfg.slideBias
	c.MasterGain = cfg.masterGain
	if err := c.Validate(); err != nil {
		return playerConfig{}, err
	}
	return cfg, nil
}

func (cfg playerConfig) newContext() *live.Context {
	return live.New(
		live.WithSpeed(cfg.speed),
		live.WithTuning(cfg.tuning),
		live.WithSlideBias(cfg.slideBias),
		live.WithLogger(cfg.log),
	)
}

func (cfg playerConfig) newBridge(ctx *live.Context) *bridge.Bridge {
	return bridge.New(ctx,
		bridge.WithLoop(cfg.loop),
		bridge.WithSection(cfg.section),
		bridge.WithLogger(cfg.log),
	)
}

func (cfg playerConfig) synthParams() psg.Params {
	params := psg.DefaultParams()
	params.FrameRate = cfg.frameRate
	params.Tuning = cfg.tuning
	params.MasterGain = cfg.masterGain
	return params
}

func chipChannels(chip *psg.Chip) []bridge.Channel {
	out := make([]bridge.Channel, len(chip.Channels))
	for i, ch := range chip.Channels {
		out[i] = ch
	}
	return out
}

// Player plays the live context through the audio device. Update may be
// called from any goroutine while playing.
type Player struct {
	mu     sync.Mutex
	cfg    playerConfig
	ctx    *live.Context
	chip   *psg.Chip
	bridge *bridge.Bridge
	synth  *psg.Synth
	audio  device
	volume float64
	done   chan struct{}
}

// device is the part of *audio.Device the player drives.
type device interface {
	Play()
	Pause()
	Close() error
	Done() <-chan struct{}
	Position() time.Duration
}

var openDevice = func(sampleRate int, source audio.SampleSource) (device, error) {
	d, err := audio.Open(sampleRate, source)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// tappedSource hands every rendered buffer to a tap.
type tappedSource struct {
	*psg.Synth
	tap func([]float32)
}

func (s tappedSource) Process(dst []float32) {
	s.Synth.Process(dst)
	s.tap(dst)
}

func NewPlayer(opts ...Option) (*Player, error) {
	cfg, err := newPlayerConfig(opts)
	if err != nil {
		return nil, err
	}
	ctx := cfg.newContext()
	return &Player{
		cfg:    cfg,
		ctx:    ctx,
		chip:   psg.NewChip(cfg.channels),
		bridge: cfg.newBridge(ctx),
		volume: 1,
	}, nil
}

// Context is the live context the player reads from.
func (p *Player) Context() *live.Context { return p.ctx }

// ChannelNames lists the chip channels in slot order.
func (p *Player) ChannelNames() []string {
	names := make([]string, len(p.chip.Channels))
	for i, ch := range p.chip.Channels {
		names[i] = ch.Name()
	}
	return names
}

// Update runs score text against the live context. The change is heard from
// the next chip frame on; a failed update changes nothing.
func (p *Player) Update(text string) error {
	_, err := p.ctx.Update(text)
	return err
}

// Play starts a new playback session from the configured section, replacing
// any current one.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// An update made before the first Play is published right away.
	p.ctx.Flip()
	// Sessions share the chip, so the previous one stops first.
	if err := p.stopLocked(); err != nil {
		p.cfg.log.Warn("Closing previous playback failed", "err", err)
	}
	session, err := p.bridge.NewSession(chipChannels(p.chip))
	if err != nil {
		return err
	}
	synth := psg.NewSynth(p.cfg.sampleRate, p.chip, session.Step, p.cfg.synthParams())
	synth.SetMasterGain(p.cfg.masterGain * p.volume)
	var source audio.SampleSource = synth
	if p.cfg.sampleTap != nil {
		source = tappedSource{Synth: synth, tap: p.cfg.sampleTap}
	}
	dev, err := openDevice(p.cfg.sampleRate, source)
	if err != nil {
		return errors.Wrap(err, "open audio")
	}
	done := make(chan struct{})
	p.done = done
	p.audio = dev
	p.synth = synth
	go func() {
		select {
		case <-dev.Done():
			p.finish(done)
		case <-done:
		}
	}()
	dev.Play()
	return nil
}

func (p *Player) finish(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.done = nil
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// stopLocked closes the device and releases any Wait. p.mu must be held.
func (p *Player) stopLocked() error {
	if p.audio == nil {
		return nil
	}
	err := p.audio.Close()
	p.audio = nil
	p.synth = nil
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return err
}

// Wait blocks until the current playback ends. A looping score never ends,
// so Wait only returns when it is stopped or replaced.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Done is closed when the current playback ends. It is nil when nothing is
// playing.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	volume = max(volume, 0)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.synth != nil {
		p.synth.SetMasterGain(p.cfg.masterGain * volume)
	}
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition is what the listener actually hears right now. It is 0
// when nothing is playing.
func (p *Player) PlaybackPosition() time.Duration {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	return a.Position()
}
