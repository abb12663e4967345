package export

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/livepsg/internal/psg"
)

// At 120 bpm a second is two quarters.
const (
	ticksPerQuarter = 960
	exportBPM       = 120
	ticksPerSecond  = ticksPerQuarter * exportBPM / 60
)

// WriteSMF writes frames as a Standard MIDI File: a tempo track, then one
// track per channel. A note starts when a channel becomes audible or its
// rounded pitch changes and ends when it falls silent.
func WriteSMF(w io.Writer, names []string, frames [][]psg.ChannelState, frameRate float64) error {
	if frameRate <= 0 {
		return errors.Errorf("frame rate must be positive, got %v", frameRate)
	}
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(exportBPM))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return errors.Wrap(err, "add tempo track")
	}

	tick := func(frame int) uint32 {
		return uint32(math.Round(float64(frame) * ticksPerSecond / frameRate))
	}
	for c, name := range names {
		ch := uint8(c % 16)
		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(name))
		var last uint32
		playing := -1
		for f, frame := range frames {
			var st psg.ChannelState
			if c < len(frame) {
				st = frame[c]
			}
			note := -1
			if st.Audible() {
				note = midiNote(st.Pitch)
			}
			if note == playing {
				continue
			}
			at := tick(f)
			if playing >= 0 {
				tr.Add(at-last, midi.NoteOff(ch, uint8(playing)))
				last = at
			}
			if note >= 0 {
				tr.Add(at-last, midi.NoteOn(ch, uint8(note), velocity(st)))
				last = at
			}
			playing = note
		}
		end := tick(len(frames))
		if playing >= 0 {
			tr.Add(end-last, midi.NoteOff(ch, uint8(playing)))
			last = end
		}
		tr.Close(end - last)
		if err := sm.Add(tr); err != nil {
			return errors.Wrapf(err, "add track %s", name)
		}
	}
	if _, err := sm.WriteTo(w); err != nil {
		return errors.Wrap(err, "write smf")
	}
	return nil
}

func midiNote(pitch float64) int {
	return int(max(0, min(127, math.Round(pitch))))
}

// velocity scales the 0-15 level; an enveloped channel plays at full
// velocity.
func velocity(st psg.ChannelState) uint8 {
	if st.Env {
		return 127
	}
	return uint8(max(1, math.Round(st.Level*127/psg.MaxLevel)))
}
