// SPDX-License-Identifier: EPL-2.0

package track

// Kind identifies the event a Callback is being invoked for.
type Kind int

const (
	// EventMoreData asks the callback to fill payload.(*Buffer).Raw with
	// up to payload.(*Buffer).Size bytes, setting Size to the amount it
	// actually produced. Delivered only when the track has no shared
	// buffer and no explicit caller is driving it through Write.
	EventMoreData Kind = iota
	// EventUnderrun carries no payload. Fired once per underrun, until
	// the producer advances the ring again.
	EventUnderrun
	// EventBufferEnd carries no payload. Fired once when the consumer
	// reaches the end of a shared buffer.
	EventBufferEnd
	// EventLoopEnd carries an int payload: the remaining loop count, or
	// -1 for an infinite loop.
	EventLoopEnd
	// EventMarker carries a uint32 payload: the marker frame position.
	EventMarker
	// EventNewPos carries a uint32 payload: the new frame position.
	EventNewPos
)

func (k Kind) String() string {
	switch k {
	case EventMoreData:
		return "more-data"
	case EventUnderrun:
		return "underrun"
	case EventBufferEnd:
		return "buffer-end"
	case EventLoopEnd:
		return "loop-end"
	case EventMarker:
		return "marker"
	case EventNewPos:
		return "new-pos"
	default:
		return "unknown"
	}
}

// BufferFlag is a bitset carried on a Buffer descriptor.
type BufferFlag uint8

// Mute indicates the track is muted; the callback may use this to skip
// producing audible samples without changing its own state.
const Mute BufferFlag = 1 << 0

// Buffer is the descriptor obtained from ObtainBuffer and passed by
// pointer to an EventMoreData callback.
type Buffer struct {
	Raw        []int16
	Size       int // bytes; always counts 16-bit samples even for an 8-bit track
	FrameCount uint32
	Format     Format
	Channels   uint32
	Flags      BufferFlag
}

// Callback receives track events. For EventMoreData, payload is a
// *Buffer; for EventLoopEnd, payload is an int; for EventMarker and
// EventNewPos, payload is a uint32; for EventUnderrun and EventBufferEnd,
// payload is nil.
type Callback func(kind Kind, payload any)
