package pattern

import "math"

// Vec is a pattern value: octave, value and accidental components.
// Scalar dialects keep everything in the value component.
type Vec [3]float64

const (
	Octave = iota
	Value
	Accidental
)

func Scalar(x float64) Vec { return Vec{0, x, 0} }

func (v Vec) Add(w Vec) Vec { return Vec{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }

func (v Vec) Sub(w Vec) Vec { return Vec{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }

func (v Vec) Scale(k float64) Vec { return Vec{v[0] * k, v[1] * k, v[2] * k} }

// Scalar collapses the vector to semitones without applying a scale.
func (v Vec) Scalar() float64 { return v[Value] + v[Accidental] + 12*v[Octave] }

// wrap reduces frame into [0, n). A non-positive n yields 0.
func wrap(frame, n float64) float64 {
	if n <= 0 {
		return 0
	}
	r := math.Mod(frame, n)
	if r < 0 {
		r += n
	}
	// math.Mod can return n for tiny negative inputs after the correction.
	if r >= n {
		r = 0
	}
	return r
}
