// Package export writes chip register dumps as a text listing or a
// Standard MIDI File.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cbegin/livepsg/internal/psg"
)

// WriteText lists one frame per line, one column group per channel:
// tone/noise/envelope flags, pitch, level, noise period, envelope shape and
// envelope pitch.
func WriteText(w io.Writer, names []string, frames [][]psg.ChannelState) error {
	bw := bufio.NewWriter(w)
	header := []string{"frame"}
	for _, name := range names {
		header = append(header, fmt.Sprintf("%-36s", name))
	}
	fmt.Fprintln(bw, strings.TrimRight(strings.Join(header, " | "), " "))
	for i, frame := range frames {
		cols := make([]string, 0, len(names)+1)
		cols = append(cols, fmt.Sprintf("%5d", i))
		for c := range names {
			var st psg.ChannelState
			if c < len(frame) {
				st = frame[c]
			}
			cols = append(cols, formatState(st))
		}
		fmt.Fprintln(bw, strings.Join(cols, " | "))
	}
	return bw.Flush()
}

func formatState(st psg.ChannelState) string {
	return fmt.Sprintf("%c%c%c %7.2f %5.2f %2d %2d %7.2f",
		flag(st.Tone, 'T'), flag(st.Noise, 'N'), flag(st.Env, 'E'),
		st.Pitch, st.Level, st.NoisePeriod, st.EnvShape, st.EnvPitch)
}

func flag(on bool, c byte) byte {
	if on {
		return c
	}
	return '.'
}
