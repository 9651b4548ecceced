// SPDX-License-Identifier: EPL-2.0

package track

import "github.com/ik5/audiotrack/server"

// StreamType classifies a track for the mixer's volume/routing policy.
// The policy itself is entirely the mixer's concern; the track only
// carries the tag.
type StreamType int

const (
	StreamDefault StreamType = iota
	StreamMusic
	StreamVoice
	StreamAlarm
	StreamNotification
)

// Format is the PCM sample format a Track accepts on its producer side.
// The ring buffer itself always stores 16-bit samples; PCM8Bit only
// describes what Write/the EventMoreData callback hands in, and is
// expanded on the way in.
type Format int

const (
	// FormatUnspecified defaults to PCM16Bit in New.
	FormatUnspecified Format = 0
	PCM8Bit           Format = 1
	PCM16Bit          Format = 2
)

// MaxSampleRate bounds SetSampleRate, matching the ceiling a real resampler
// implementation would impose.
const MaxSampleRate = 192000

// Params configures a Track. Zero values for StreamType, SampleRate,
// Format and ChannelCount are all defaulted by New.
type Params struct {
	StreamType   StreamType
	SampleRate   uint32
	Format       Format
	ChannelCount uint32
	FrameCount   uint32

	// SharedBuffer, if non-nil, selects the shared-buffer construction
	// path: Write is then forbidden and the buffer is assumed preloaded.
	SharedBuffer []int16

	Callback           Callback
	NotificationFrames uint32

	// Mixer creates the underlying server-side handle. Required.
	Mixer server.Mixer

	// Logger receives internal diagnostics (the obtainBuffer timeout
	// warning; underruns are reported only as EventUnderrun). Defaults to a slog-backed no-op-safe
	// logger if nil.
	Logger Logger
}
