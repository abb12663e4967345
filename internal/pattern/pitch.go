package pattern

import (
	"fmt"
	"math"
)

// Scale lists the semitone offsets of one octave, starting at 0.
type Scale []float64

var (
	Major         = Scale{0, 2, 4, 5, 7, 9, 11}
	NaturalMinor  = Scale{0, 2, 3, 5, 7, 8, 10}
	HarmonicMinor = Scale{0, 2, 3, 5, 7, 8, 11}
	WholeTone     = Scale{0, 2, 4, 6, 8, 10}
	Octatonic     = Scale{0, 2, 3, 5, 6, 8, 9, 11}
)

// Scales maps score names to the built-in scales.
var Scales = map[string]Scale{
	"major":         Major,
	"naturalminor":  NaturalMinor,
	"harmonicminor": HarmonicMinor,
	"wholetone":     WholeTone,
	"octatonic":     Octatonic,
}

// semitones returns the offset of a 0-based degree, which may be negative or
// fractional. Fractional degrees interpolate between their neighbours.
func (s Scale) semitones(degree float64) float64 {
	lo := math.Floor(degree)
	a := s.whole(int(lo))
	if frac := degree - lo; frac > 0 {
		return a + (s.whole(int(lo)+1)-a)*frac
	}
	return a
}

func (s Scale) whole(degree int) float64 {
	n := len(s)
	octave := degree / n
	i := degree % n
	if i < 0 {
		i += n
		octave--
	}
	return s[i] + 12*float64(octave)
}

// Pitch converts a degree vector to semitones above the tonic. Mode 1 plays
// the scale as listed, mode m starts it from degree m.
func (s Scale) Pitch(v Vec, mode int) float64 {
	if len(s) == 0 {
		return v.Scalar()
	}
	shift := float64(mode - 1)
	return 12*v[Octave] + s.semitones(v[Value]+shift) - s.semitones(shift) + v[Accidental]
}

// NoteNames maps C0 through B9 to MIDI-style note numbers.
var NoteNames = func() map[string]float64 {
	m := make(map[string]float64, 70)
	for octave := 0; octave < 10; octave++ {
		for _, letter := range "CDEFGAB" {
			m[fmt.Sprintf("%c%d", letter, octave)] = float64((1+octave)*12 + noteLetter[byte(letter)])
		}
	}
	return m
}()

// Frequency converts a fractional note number to Hz against the A4 tuning.
func Frequency(note, tuning float64) float64 {
	return tuning * math.Pow(2, (note-69)/12)
}
