// Package bridge drives chip channels from the live context one frame at a
// time.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/cbegin/livepsg/internal/live"
	"github.com/cbegin/livepsg/internal/pattern"
	"github.com/cbegin/livepsg/internal/script"
)

// Channel is the register-level view of one chip channel.
type Channel = script.Channel

// Bias offsets the playback cursor into the middle of each chip frame.
const Bias = .5

// NoSuchSectionError reports a start section that is not in the section list.
type NoSuchSectionError struct {
	Name string
}

func (e *NoSuchSectionError) Error() string { return fmt.Sprintf("no such section: %s", e.Name) }

type Option func(*Bridge)

// WithLoop controls whether playback wraps at the end of the section list.
func WithLoop(loop bool) Option {
	return func(b *Bridge) {
		b.loop = loop
	}
}

// WithSection starts playback at the section bound to name.
func WithSection(name string) Option {
	return func(b *Bridge) {
		b.section = name
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

type Bridge struct {
	ctx     *live.Context
	loop    bool
	section string
	log     *slog.Logger
}

func New(ctx *live.Context, opts ...Option) *Bridge {
	b := &Bridge{ctx: ctx, loop: true, log: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InitialFrame is the chip frame of the configured start section.
func (b *Bridge) InitialFrame() (float64, error) {
	if b.section == "" {
		return 0, nil
	}
	idx, err := b.ctx.Sections()
	if err != nil {
		return 0, err
	}
	v, err := b.ctx.Get(b.section)
	if err != nil {
		var nse *live.NoSuchNameError
		if errors.As(err, &nse) {
			return 0, &NoSuchSectionError{Name: b.section}
		}
		return 0, err
	}
	i := idx.Find(b.section, v)
	if i < 0 {
		return 0, &NoSuchSectionError{Name: b.section}
	}
	return idx.StartFrame(i), nil
}

// NewSession starts playback on channels, which are paired with the slots
// of each section in order.
func (b *Bridge) NewSession(channels []Channel) (*Session, error) {
	start, err := b.InitialFrame()
	if err != nil {
		return nil, err
	}
	return &Session{
		b:        b,
		channels: channels,
		frame:    start + Bias,
		failing:  make([]string, len(channels)),
	}, nil
}

// Session is one playback run. Step must be called from a single goroutine.
type Session struct {
	b        *Bridge
	channels []Channel
	frame    float64

	failing   []string // last logged error per channel
	preparing string
}

// Frame is the playback cursor in chip frames.
func (s *Session) Frame() float64 { return s.frame }

// Step writes one chip frame to the channels and then publishes pending
// updates. It returns false once a non-looping score has played to the end.
func (s *Session) Step() bool {
	idx, err := s.b.ctx.Sections()
	if err == nil && !s.b.loop && s.frame >= idx.TotalFrames() {
		return false
	}
	s.quiet()
	switch {
	case err != nil:
		s.prepareFailed(err)
	case idx.TotalFrames() > 0:
		// An empty score freezes the cursor until something is added.
		s.preparing = ""
		i, local := idx.SectionAndFrame(s.frame)
		s.frame++
		s.perform(idx.Speed, idx.List[i], local)
	}
	s.b.ctx.Flip()
	if err != nil {
		return true
	}
	next, err := s.b.ctx.Sections()
	if err != nil || next == idx {
		return true
	}
	if next.Speed != idx.Speed {
		s.frame = (s.frame-Bias)/idx.Speed*next.Speed + Bias
	}
	if !idx.SameLayout(next) {
		s.frame = realign(idx.WithSpeed(next.Speed), next, s.frame)
	}
	return true
}

func (s *Session) quiet() {
	for _, ch := range s.channels {
		quietChannel(ch)
	}
}

func quietChannel(ch Channel) {
	ch.SetNoiseFlag(false)
	ch.SetToneFlag(false)
	ch.SetEnvFlag(false)
	ch.SetLevel(0)
}

func (s *Session) prepareFailed(err error) {
	if msg := err.Error(); msg != s.preparing {
		s.b.log.Error("Failed to prepare a frame", "err", err)
		s.preparing = msg
	}
}

func (s *Session) perform(speed float64, sec *live.Section, local float64) {
	ns := s.b.ctx.Published()
	in := s.b.ctx.Interp()
	for i, ch := range s.channels {
		if i >= len(sec.Slots) {
			break
		}
		err := performSlot(in, ns, sec.Slots[i], ch, speed, local)
		if err == nil {
			s.failing[i] = ""
			continue
		}
		quietChannel(ch)
		if msg := err.Error(); msg != s.failing[i] {
			s.b.log.Error("Channel update failed", "channel", ch.Name(), "err", err)
			s.failing[i] = msg
		}
	}
}

func performSlot(in *script.Interp, r script.Resolver, slot pattern.Seq[pattern.Hit], ch Channel, speed, local float64) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	hit := slot.At(local / speed)
	if hit.Silent() {
		return nil
	}
	note, ok := hit.Owner.(*script.Note)
	if !ok {
		return fmt.Errorf("cannot perform %T", hit.Owner)
	}
	return in.Perform(note, hit, speed, ch, r)
}

// realign moves the cursor from old to the same music in next: the same
// section at the same offset where it survived, the start of its replacement
// where it did not.
func realign(old, next *live.Sections, frame float64) float64 {
	oldTotal := old.TotalFrames()
	if oldTotal == 0 {
		return frame
	}
	base := math.Floor(frame/oldTotal) * next.TotalFrames()
	i, offset := old.SectionAndFrame(frame)
	j, offset, ok := matchSection(old.Fingerprints(), next.Fingerprints(), i, offset)
	if !ok {
		return base
	}
	return base + next.StartFrame(j) + offset
}

func matchSection(a, b []string, i int, offset float64) (int, float64, bool) {
	ops := difflib.NewMatcher(a, b).GetOpCodes()
	for _, op := range ops {
		if op.Tag == 'e' && op.I1 <= i && i < op.I2 {
			return op.J1 + i - op.I1, offset, true
		}
	}
	for _, op := range ops {
		if op.Tag == 'i' {
			if k := slices.Index(b[op.J1:op.J2], a[i]); k >= 0 {
				return op.J1 + k, offset, true
			}
		}
	}
	for _, op := range ops {
		if (op.Tag == 'd' || op.Tag == 'r') && op.I1 <= i && i < op.I2 {
			return op.J1, 0, true
		}
	}
	return 0, 0, false
}
