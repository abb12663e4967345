package pattern

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// BadWordError reports a pattern word that does not match its dialect.
type BadWordError struct {
	Word string
}

func (e *BadWordError) Error() string { return fmt.Sprintf("bad pattern word %q", e.Word) }

var (
	wordSep    = regexp.MustCompile(`[^\s|]+`)
	valueWord  = regexp.MustCompile(`^(?:([0-9.]+)x)?(-?[0-9.]+|[A-G][0-9])?(#+|b+)?(\++|-+)?(?:(/{1,2})([0-9.]*))?$`)
	eventWord  = regexp.MustCompile(`^(?:([^x]*)x)?([-0-9./]*)(?:(r)([-0-9./]*)|(z))?$`)
	noteLetter = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
)

// Words splits pattern text on whitespace and bar lines.
func Words(text string) []string { return wordSep.FindAllString(text, -1) }

// Dialect configures the value parser.
type Dialect struct {
	Degrees    bool    // 1-based scale degrees with separate octave and accidental components
	Continuous bool    // a word without a slash slides across its whole width
	Step       float64 // added to the value component on every repetition
	Bias       float64 // exponent used by // slides
}

// DefaultBias is the slide exponent used when a dialect leaves Bias unset.
const DefaultBias = 2

// Parse turns one bar of text into segments. The final slide aims at
// successor, or at the bar's own first value plus Step when successor is nil.
func (d Dialect) Parse(text string, successor *Vec) (*Segments, error) {
	segs := &Segments{}
	for _, word := range Words(text) {
		if err := d.parseWord(segs, word); err != nil {
			return nil, err
		}
	}
	if segs.empty() {
		return segs, nil
	}
	if successor != nil {
		segs.last().wrapTo(*successor)
	} else {
		segs.last().wrapTo(segs.Segments[0].Initial.Add(Scalar(d.Step)))
	}
	return segs, nil
}

func (d Dialect) parseWord(segs *Segments, word string) error {
	m := valueWord.FindStringSubmatch(word)
	if m == nil {
		return &BadWordError{Word: word}
	}
	width := 1.0
	if m[1] != "" {
		w, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return &BadWordError{Word: word}
		}
		width = w
	}
	initial, err := d.initial(m[2])
	if err != nil {
		return &BadWordError{Word: word}
	}
	if acc := m[3]; acc != "" {
		n := float64(len(acc))
		if acc[0] == 'b' {
			n = -n
		}
		d.shift(&initial, Accidental, n)
	}
	if oct := m[4]; oct != "" {
		n := float64(len(oct))
		if oct[0] == '-' {
			n = -n
		}
		d.shift(&initial, Octave, n)
	}
	var slide float64
	switch {
	case m[5] == "":
		if d.Continuous {
			slide = width
		}
	case m[6] == "":
		slide = width
	default:
		s, err := strconv.ParseFloat(m[6], 64)
		if err != nil {
			return &BadWordError{Word: word}
		}
		slide = s
	}
	if !segs.empty() {
		segs.last().wrapTo(initial)
	}
	hold := width - slide
	if hold > 0 {
		segs.add(hold, Segment{Initial: initial})
	}
	if span := math.Min(width, slide); span > 0 {
		seg := Segment{Initial: initial, slide: slide}
		if len(m[5]) == 2 {
			seg.bias = d.bias()
		}
		segs.add(span, seg)
	}
	return nil
}

func (d Dialect) bias() float64 {
	if d.Bias > 0 {
		return d.Bias
	}
	return DefaultBias
}

func (d Dialect) initial(text string) (Vec, error) {
	if text == "" {
		return Vec{}, nil
	}
	if c := text[0]; c >= 'A' && c <= 'G' {
		if d.Degrees {
			return Vec{}, strconv.ErrSyntax
		}
		octave := float64(text[1] - '0')
		n := (1+octave)*12 + float64(noteLetter[c])
		return Scalar(n), nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Vec{}, err
	}
	if d.Degrees {
		return Vec{0, rebase(v), 0}, nil
	}
	return Scalar(v), nil
}

// shift applies accidentals and octave marks. Scalar dialects fold them into
// semitones straight away.
func (d Dialect) shift(v *Vec, component int, n float64) {
	if d.Degrees {
		v[component] += n
		return
	}
	if component == Octave {
		n *= 12
	}
	v[Value] += n
}

// rebase maps 1-based degrees to 0-based, keeping the sign.
func rebase(n float64) float64 {
	a := math.Max(0, math.Abs(n)-1)
	if n < 0 {
		return -a
	}
	return a
}

// Compile joins texts, splits them into comma separated bars and concatenates
// them. Each bar slides into the first value of the next one.
func (d Dialect) Compile(texts ...string) (Seq[Vec], error) {
	bars := strings.Split(strings.Join(texts, " "), ",")
	out := make([]Seq[Vec], len(bars))
	var successor *Vec
	for i := len(bars) - 1; i >= 0; i-- {
		segs, err := d.Parse(bars[i], successor)
		if err != nil {
			return nil, err
		}
		out[i] = segs
		if !segs.empty() {
			first := segs.At(0)
			successor = &first
		}
	}
	var p Seq[Vec] = out[0]
	if len(out) > 1 {
		p = NewConcat(out...)
	}
	if d.Step != 0 {
		p = &Stepped{Child: p, Step: Scalar(d.Step)}
	}
	return p, nil
}

// ParseEvents parses the event dialect:
//
//	[count x] [width] [r [release] | z]
func ParseEvents(text string) (*EventSegments, error) {
	segs := &EventSegments{}
	for _, word := range Words(text) {
		if err := parseEventWord(segs, word); err != nil {
			return nil, err
		}
	}
	return segs, nil
}

func parseEventWord(segs *EventSegments, word string) error {
	idx := eventWord.FindStringSubmatchIndex(word)
	if idx == nil {
		return &BadWordError{Word: word}
	}
	m := make([]string, len(idx)/2)
	for i := range m {
		if idx[2*i] >= 0 {
			m[i] = word[idx[2*i]:idx[2*i+1]]
		}
	}
	count := 1
	if idx[2] >= 0 {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return &BadWordError{Word: word}
		}
		count = n
	}
	width, err := ReadNumber(m[2], 1)
	if err != nil || width < 0 {
		return &BadWordError{Word: word}
	}
	rest := m[5] != ""
	var release float64
	if m[3] != "" {
		r, err := ReadNumber(m[4], width)
		if err != nil || r < 0 {
			return &BadWordError{Word: word}
		}
		release = math.Min(r, width)
	}
	on := width - release
	for range count {
		if rest {
			segs.add(width, EventSegment{RelFrame: segs.length, Rest: true})
			continue
		}
		if on > 0 {
			segs.add(on, EventSegment{RelFrame: segs.length})
		}
		if release > 0 {
			onFrames := on
			segs.add(release, EventSegment{RelFrame: segs.length, OnFrames: &onFrames})
		}
	}
	return nil
}

// CompileEvents joins texts and concatenates comma separated bars.
func CompileEvents(texts ...string) (Seq[Hit], error) {
	bars := strings.Split(strings.Join(texts, " "), ",")
	if len(bars) == 1 {
		return ParseEvents(bars[0])
	}
	out := make([]Seq[Hit], 0, len(bars))
	for _, bar := range bars {
		segs, err := ParseEvents(bar)
		if err != nil {
			return nil, err
		}
		out = append(out, segs)
	}
	return NewConcat(out...), nil
}
