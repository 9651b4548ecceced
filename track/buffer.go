// SPDX-License-Identifier: EPL-2.0

package track

import (
	"time"

	"github.com/ik5/audiotrack/utils"
)

const obtainBufferTimeout = time.Second

// ObtainBuffer is the producer's gateway to ring space: it returns a
// descriptor pointing into the shared PCM region with FrameCount no
// larger than req.FrameCount and never straddling the ring's wraparound
// point.
//
// If blocking is false and no space is currently available it returns
// ErrWouldBlock. If no space is available and the track is inactive it
// returns ErrNoMoreBuffers. If space is available but the track is
// inactive when the call returns (including a stop that arrived while it
// was waiting), it fills req with that space and returns ErrStopped.
func (t *Track) ObtainBuffer(req *Buffer, blocking bool) error {
	framesAvail := t.cblk.FramesAvailable()

	if framesAvail == 0 {
		t.cblk.Lock()
		for {
			if t.Stopped() {
				t.cblk.Unlock()
				return ErrNoMoreBuffers
			}
			framesAvail = t.cblk.FramesAvailableLocked()
			if framesAvail != 0 {
				break
			}
			if !blocking {
				t.cblk.Unlock()
				return ErrWouldBlock
			}
			if timedOut := t.cblk.WaitLocked(obtainBufferTimeout); timedOut {
				t.logger.Warnf("track: ObtainBuffer: timed out waiting for ring space, kicking server")
				t.recoveryHook(t.handle)
			}
		}
		t.cblk.Unlock()
	}

	framesReq := req.FrameCount
	if framesReq > framesAvail {
		framesReq = framesAvail
	}

	user := t.cblk.User()
	untilWrap := t.cblk.UserBase() + t.cblk.FrameCount() - user
	if framesReq > untilWrap {
		framesReq = untilWrap
	}

	req.Raw = t.cblk.Buffer(user)
	req.FrameCount = framesReq
	req.Size = int(framesReq) * int(t.cblk.Channels()) * 2
	req.Format = PCM16Bit
	req.Channels = t.cblk.Channels()
	req.Flags = 0
	if t.Muted() {
		req.Flags = Mute
	}

	if t.Stopped() {
		return ErrStopped
	}
	return nil
}

// ReleaseBuffer advances the producer cursor by the frames the caller
// actually filled.
func (t *Track) ReleaseBuffer(buf *Buffer) {
	t.cblk.StepUser(buf.FrameCount)
}

// Write is the pull-less producer path: it repeatedly obtains ring space,
// copies src into it (expanding 8-bit PCM to 16-bit as it goes), and
// releases, until src is exhausted or the track can no longer accept
// data. It returns the number of bytes consumed from src.
//
// Write is forbidden on a track constructed with a SharedBuffer, which by
// definition has no producer loop of its own to drive.
func (t *Track) Write(src []byte) (int, error) {
	if t.sharedBuffer != nil {
		return 0, ErrInvalidOperation
	}

	sampleSize := 2
	if t.format == PCM8Bit {
		sampleSize = 1
	}
	bytesPerFrame := int(t.channelCount) * sampleSize

	written := 0
	for written < len(src) {
		remaining := len(src) - written
		frameCount := uint32(remaining / bytesPerFrame)
		if frameCount == 0 {
			break
		}

		buf := &Buffer{FrameCount: frameCount}
		if err := t.ObtainBuffer(buf, true); err != nil {
			if written == 0 {
				return 0, err
			}
			break
		}

		bytesConsumed := int(buf.FrameCount) * bytesPerFrame
		if t.format == PCM8Bit {
			n := int(buf.FrameCount) * int(t.channelCount)
			utils.ExpandBytes8To16(src[written:written+n], buf.Raw, n)
		} else {
			n := int(buf.FrameCount) * int(t.channelCount)
			for i := 0; i < n; i++ {
				lo := src[written+2*i]
				hi := src[written+2*i+1]
				buf.Raw[i] = int16(uint16(lo) | uint16(hi)<<8)
			}
		}

		t.ReleaseBuffer(buf)
		written += bytesConsumed
	}

	return written, nil
}
