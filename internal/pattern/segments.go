package pattern

import (
	"math"
	"sort"
)

// Segment is one timed region of a value pattern. A nil PerFrame holds
// Initial for the whole span.
type Segment struct {
	Initial  Vec
	PerFrame *Vec

	slide float64 // nominal slide length, 0 for held regions
	bias  float64 // exponent for biased slides, 0 for linear
}

func (s *Segment) isSlide() bool { return s.slide > 0 }

// wrapTo aims the slide at target. Held regions ignore it.
func (s *Segment) wrapTo(target Vec) {
	if !s.isSlide() {
		return
	}
	d := target.Sub(s.Initial).Scale(1 / s.slide)
	s.PerFrame = &d
}

func (s *Segment) at(k float64) Vec {
	if s.PerFrame == nil {
		return s.Initial
	}
	if s.bias > 0 {
		total := s.PerFrame.Scale(s.slide)
		return s.Initial.Add(total.Scale(math.Pow(k/s.slide, s.bias)))
	}
	return s.Initial.Add(s.PerFrame.Scale(k))
}

// Segments is a parsed value pattern: segment i starts at Frames[i] and runs
// to the next start, the last one runs to the total length.
type Segments struct {
	Frames   []float64
	Segments []Segment
	length   float64
}

func (s *Segments) Len() float64 { return s.length }

func (s *Segments) empty() bool { return len(s.Segments) == 0 }

func (s *Segments) add(width float64, seg Segment) {
	s.Frames = append(s.Frames, s.length)
	s.Segments = append(s.Segments, seg)
	s.length += width
}

func (s *Segments) last() *Segment { return &s.Segments[len(s.Segments)-1] }

// index returns the segment owning frame, which must already be in range.
func (s *Segments) index(frame float64) int {
	return sort.Search(len(s.Frames), func(i int) bool { return s.Frames[i] > frame }) - 1
}

// At samples the pattern, wrapping frame modulo the length.
func (s *Segments) At(frame float64) Vec {
	if s.empty() {
		return Vec{}
	}
	f := wrap(frame, s.length)
	i := s.index(f)
	if i < 0 {
		i = 0
	}
	return s.Segments[i].at(f - s.Frames[i])
}

// EventSegment marks a trigger, a release (OnFrames set) or a rest.
type EventSegment struct {
	RelFrame float64
	OnFrames *float64
	Rest     bool
}

// Hit is the result of sampling an event pattern.
type Hit struct {
	Segment EventSegment
	Since   float64 // pattern units since the segment started
	Trigger float64 // start of the matching trigger in the owner's timeline
	Local   float64 // pattern units since the trigger
	Owner   any     // the event pattern that produced the hit, nil for bare segments
}

// Silent reports whether the hit produces no sound at all.
func (h Hit) Silent() bool { return h.Owner == nil || h.Segment.Rest }

// EventSegments is a parsed event pattern.
type EventSegments struct {
	Frames   []float64
	Segments []EventSegment
	length   float64
}

func (s *EventSegments) Len() float64 { return s.length }

func (s *EventSegments) add(width float64, seg EventSegment) {
	s.Frames = append(s.Frames, s.length)
	s.Segments = append(s.Segments, seg)
	s.length += width
}

// At returns the hit owning frame with a nil Owner; callers that perform
// events stamp themselves as owner.
func (s *EventSegments) At(frame float64) Hit {
	if len(s.Segments) == 0 {
		return Hit{}
	}
	f := wrap(frame, s.length)
	i := sort.Search(len(s.Frames), func(i int) bool { return s.Frames[i] > f }) - 1
	if i < 0 {
		i = 0
	}
	seg := s.Segments[i]
	h := Hit{Segment: seg, Since: f - seg.RelFrame, Trigger: seg.RelFrame}
	if seg.OnFrames != nil {
		h.Trigger -= *seg.OnFrames
	}
	h.Local = f - h.Trigger
	return h
}
