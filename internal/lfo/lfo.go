package lfo

import (
	"fmt"
	"math"
	"strings"
)

// Shape is a periodic waveform evaluated by position in cycles.
type Shape int

const (
	Saw Shape = iota
	Square
	Triangle
	Random
	Sine
)

var shapeNames = map[string]Shape{
	"saw":      Saw,
	"square":   Square,
	"triangle": Triangle,
	"random":   Random,
	"sine":     Sine,
}

// ParseShape looks a shape up by name, case-insensitively.
func ParseShape(name string) (Shape, error) {
	s, ok := shapeNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown lfo shape %q", name)
	}
	return s, nil
}

func (s Shape) String() string {
	for name, v := range shapeNames {
		if v == s {
			return name
		}
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// At returns the waveform in [-1, 1] at pos cycles. Random holds one value
// per whole cycle, derived from the cycle number so repeated reads agree.
func (s Shape) At(pos float64) float64 {
	cycle := math.Floor(pos)
	phase := pos - cycle
	switch s {
	case Saw:
		return 1.0 - 2.0*phase
	case Square:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	case Random:
		v := math.Sin(cycle*12345.6789+67890.1234) * 2.0
		v -= math.Floor(v)
		return v*2.0 - 1.0
	case Sine:
		return math.Sin(2 * math.Pi * phase)
	default:
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	}
}
