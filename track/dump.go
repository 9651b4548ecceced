// SPDX-License-Identifier: EPL-2.0

package track

import (
	"fmt"
	"io"
)

// Dump writes a human-readable multi-line snapshot of the track's current
// configuration and state to w, for ad-hoc diagnostics.
func (t *Track) Dump(w io.Writer) error {
	left, right := t.Volume()

	_, err := fmt.Fprintf(w,
		"track:\n"+
			"  streamType:   %d\n"+
			"  format:       %d\n"+
			"  channels:     %d\n"+
			"  sampleRate:   %d\n"+
			"  frameCount:   %d\n"+
			"  volume:       (%.3f, %.3f)\n"+
			"  muted:        %t\n"+
			"  active:       %t\n"+
			"  latency:      %dms\n",
		t.streamType, t.format, t.channelCount, t.SampleRate(), t.frameCount,
		left, right, t.Muted(), !t.Stopped(), t.latency,
	)
	return err
}
