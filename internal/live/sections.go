package live

import (
	"fmt"
	"math"
	"sort"

	"github.com/cbegin/livepsg/internal/pattern"
	"github.com/cbegin/livepsg/internal/script"
)

// Section is one entry of the sections binding: a pattern per channel.
type Section struct {
	Slots []pattern.Seq[pattern.Hit]
	// Units is the length of the longest slot in pattern units.
	Units float64
	// Fingerprint describes the entry as written, so a section referenced by
	// name keeps its identity when the name is rebound.
	Fingerprint string
	value       script.Value
}

// Sections indexes the section list in chip frames.
type Sections struct {
	Speed float64
	List  []*Section
	ends  []float64
}

func newSections(speed float64, list []*Section) *Sections {
	s := &Sections{Speed: speed, List: list, ends: make([]float64, len(list))}
	total := 0.0
	for i, sec := range list {
		total += sec.Units * speed
		s.ends[i] = total
	}
	return s
}

// WithSpeed re-indexes the same sections at another speed.
func (s *Sections) WithSpeed(speed float64) *Sections {
	return newSections(speed, s.List)
}

func (s *Sections) TotalFrames() float64 {
	if len(s.ends) == 0 {
		return 0
	}
	return s.ends[len(s.ends)-1]
}

// StartFrame is the sum of the lengths of the sections before i.
func (s *Sections) StartFrame(i int) float64 {
	if i <= 0 {
		return 0
	}
	return s.ends[i-1]
}

// SectionAndFrame maps an absolute chip frame to a section index and the
// frame within that section. Frames past the end wrap. Total length must be
// positive.
func (s *Sections) SectionAndFrame(frame float64) (int, float64) {
	local := wrapFrame(frame, s.TotalFrames())
	i := sort.Search(len(s.ends), func(i int) bool { return s.ends[i] > local })
	if i == len(s.ends) {
		i = len(s.ends) - 1
	}
	return i, local - s.StartFrame(i)
}

func wrapFrame(frame, total float64) float64 {
	f := math.Mod(frame, total)
	if f < 0 {
		f += total
	}
	return f
}

func (s *Sections) Fingerprints() []string {
	out := make([]string, len(s.List))
	for i, sec := range s.List {
		out[i] = sec.Fingerprint
	}
	return out
}

// SameLayout reports whether o has the same sections with the same lengths.
func (s *Sections) SameLayout(o *Sections) bool {
	if len(s.List) != len(o.List) {
		return false
	}
	for i, sec := range s.List {
		if sec.Fingerprint != o.List[i].Fingerprint || sec.Units != o.List[i].Units {
			return false
		}
	}
	return true
}

// Find returns the index of the section written as name, or whose value is
// v, or -1.
func (s *Sections) Find(name string, v script.Value) int {
	for i, sec := range s.List {
		if name != "" && sec.Fingerprint == name {
			return i
		}
	}
	if v == nil {
		return -1
	}
	want := script.Fingerprint(v)
	for i, sec := range s.List {
		if script.Fingerprint(sec.value) == want {
			return i
		}
	}
	return -1
}

// buildSections reads speed and sections from ns.
func buildSections(ns *Namespace) (*Sections, error) {
	speed, err := readSpeed(ns)
	if err != nil {
		return nil, err
	}
	raw, ok := ns.Lookup("sections")
	if !ok {
		return nil, &NoSuchNameError{Name: "sections"}
	}
	top, err := script.Force(raw, ns)
	if err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	entries, err := listItems(top)
	if err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	list := make([]*Section, len(entries))
	for i, entry := range entries {
		sec, err := buildSection(entry, ns)
		if err != nil {
			return nil, fmt.Errorf("sections[%d]: %w", i, err)
		}
		list[i] = sec
	}
	return newSections(speed, list), nil
}

func buildSection(entry script.Value, ns *Namespace) (*Section, error) {
	forced, err := script.Force(entry, ns)
	if err != nil {
		return nil, err
	}
	sec := &Section{Fingerprint: script.Fingerprint(entry), value: forced}
	slots := []script.Value{forced}
	if _, single := forced.(*script.Pattern); !single {
		if slots, err = listItems(forced); err != nil {
			return nil, err
		}
	}
	for ch, slot := range slots {
		v, err := script.Force(slot, ns)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		p, ok := v.(*script.Pattern)
		if !ok {
			return nil, fmt.Errorf("channel %d: expected event pattern, got %s", ch, script.Fingerprint(v))
		}
		seq, err := p.Hits(ns)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		sec.Slots = append(sec.Slots, seq)
		sec.Units = max(sec.Units, seq.Len())
	}
	return sec, nil
}

func listItems(v script.Value) ([]script.Value, error) {
	switch x := v.(type) {
	case script.Tuple:
		return x, nil
	case script.List:
		return x, nil
	}
	return nil, fmt.Errorf("expected tuple or list, got %s", script.Fingerprint(v))
}

func readSpeed(ns *Namespace) (float64, error) {
	raw, ok := ns.Lookup("speed")
	if !ok {
		return 0, &NoSuchNameError{Name: "speed"}
	}
	v, err := script.Force(raw, ns)
	if err != nil {
		return 0, fmt.Errorf("speed: %w", err)
	}
	n, ok := v.(script.Number)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("speed must be a positive number, got %s", script.Fingerprint(v))
	}
	return float64(n), nil
}
