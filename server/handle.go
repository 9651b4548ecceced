// SPDX-License-Identifier: EPL-2.0

package server

import "github.com/ik5/audiotrack/ring"

// Params describes a track the client is asking the mixer to create.
// FrameCount is a request: the mixer may return a smaller FrameCount via
// the resulting ControlBlock, which callers must treat as authoritative.
type Params struct {
	StreamType   int
	SampleRate   uint32
	Channels     uint32
	FrameCount   uint32
	SharedBuffer []int16 // non-nil selects the shared-buffer creation path
}

// Handle is the client's view of a track living in the mixer. Start, Stop,
// Pause, Flush and Mute map directly onto the corresponding IAudioTrack
// calls in the system this package's contract is modeled on; they are
// expected to be cheap, non-blocking calls into the mixer's IPC layer.
type Handle interface {
	// ControlBlock returns the shared control block the mixer mapped for
	// this track.
	ControlBlock() *ring.ControlBlock

	Start() error
	Stop() error
	Pause() error
	Flush() error
	Mute(on bool) error

	// Close releases the handle. It does not stop the track.
	Close() error
}

// Defaults is the system audio service contract: the device-wide values a
// track falls back to when the caller does not specify them, and the
// inputs the minimum-buffer-sizing arithmetic in track.New requires.
type Defaults interface {
	OutputSampleRate() (uint32, error)
	OutputFrameCount() (uint32, error)
	OutputLatencyMillis() (uint32, error)
}

// Mixer creates tracks. A real implementation talks to the mixer process
// over IPC; internal/mixertest provides an in-process fake for tests.
type Mixer interface {
	Defaults

	CreateTrack(p Params) (Handle, error)
}
