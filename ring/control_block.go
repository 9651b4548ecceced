// SPDX-License-Identifier: EPL-2.0

package ring

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// NoLoop marks LoopStart/LoopEnd when no loop is active.
const NoLoop = math.MaxUint32

// ControlBlock is the shared metadata header of a track's ring buffer: the
// producer (user) and consumer (server) cursors, their wrap bases, the loop
// window, the packed stereo volume and the condition variable used to wake
// a blocked producer once the consumer makes progress.
//
// Field ownership: User, UserBase, LoopStart, LoopEnd, SampleRate and
// VolumeLR are written only by the producer side (the track); Server,
// ServerBase and the loop-count decrement are written only by the consumer
// side (StepServer, called by a mixer). Channels is written once, by
// whichever side allocates the track (the fake/real mixer in this repo).
type ControlBlock struct {
	mu       sync.Mutex
	signalCh chan struct{}

	user       atomic.Uint32
	server     atomic.Uint32
	userBase   atomic.Uint32
	serverBase atomic.Uint32
	frameCount uint32

	channels   atomic.Uint32
	sampleRate atomic.Uint32

	buffers []int16

	loopStart atomic.Uint32
	loopEnd   atomic.Uint32
	loopCount atomic.Int32

	volumeLR        atomic.Uint32
	flowControlFlag atomic.Uint32
	forceReady      atomic.Uint32

	out bool
}

// New creates a ControlBlock for frameCount frames of channels-channel audio,
// backed by buffers (which must hold frameCount*channels int16 samples).
// out selects playback (true) vs. capture (false); capture is out of scope
// for this package but the flag is preserved for a future recording path.
func New(frameCount, channels, sampleRate uint32, buffers []int16, out bool) *ControlBlock {
	cb := &ControlBlock{
		frameCount: frameCount,
		buffers:    buffers,
		signalCh:   make(chan struct{}),
		out:        out,
	}
	cb.channels.Store(channels)
	cb.sampleRate.Store(sampleRate)
	cb.loopStart.Store(NoLoop)
	cb.loopEnd.Store(NoLoop)
	cb.flowControlFlag.Store(1)
	return cb
}

// Lock acquires the control block's mutex. Callers that need to perform
// more than one of the Locked-suffixed operations atomically (SetLoop,
// SetPosition, Flush) must hold the lock across all of them.
func (cb *ControlBlock) Lock() { cb.mu.Lock() }

// Unlock releases the control block's mutex.
func (cb *ControlBlock) Unlock() { cb.mu.Unlock() }

// BroadcastLocked wakes every goroutine blocked in WaitLocked. The caller
// must hold Lock().
func (cb *ControlBlock) BroadcastLocked() {
	close(cb.signalCh)
	cb.signalCh = make(chan struct{})
}

// WaitLocked blocks until BroadcastLocked is called or timeout elapses,
// whichever comes first, and reports whether the timeout fired first. The
// caller must hold Lock(); WaitLocked releases it while waiting and
// reacquires it before returning, matching sync.Cond.Wait's contract plus a
// timeout (sync.Cond has no native timeout support, so this package uses
// the standard broadcast-via-closed-channel substitute).
func (cb *ControlBlock) WaitLocked(timeout time.Duration) (timedOut bool) {
	ch := cb.signalCh
	cb.mu.Unlock()
	defer cb.mu.Lock()

	select {
	case <-ch:
		return false
	case <-time.After(timeout):
		return true
	}
}

// StepUser advances the producer cursor by n frames. Only the producer
// goroutine may call this; no lock is taken — the consumer side tolerates
// a momentarily stale User because every wait loop in the track package
// rechecks state under the control block's lock.
func (cb *ControlBlock) StepUser(n uint32) uint32 {
	u := cb.user.Load() + n
	if u >= cb.userBase.Load()+cb.frameCount {
		cb.userBase.Add(cb.frameCount)
	}
	cb.user.Store(u)
	cb.flowControlFlag.Store(0)
	return u
}

// StepServer advances the consumer cursor by n frames, handling loop
// wrap-around, and reports whether it succeeded. It tries the lock, retries
// once after 1ms, and gives up (returning false) rather than wait
// indefinitely: a wedged client is treated as crashed rather than
// something the mixer should block on.
func (cb *ControlBlock) StepServer(n uint32) bool {
	if !cb.mu.TryLock() {
		time.Sleep(time.Millisecond)
		if !cb.mu.TryLock() {
			return false
		}
	}
	defer cb.mu.Unlock()

	s := cb.server.Load() + n
	if s >= cb.loopEnd.Load() {
		s = cb.loopStart.Load()
		if cb.loopCount.Add(-1) == 0 {
			cb.loopStart.Store(NoLoop)
			cb.loopEnd.Store(NoLoop)
		}
	}
	if s >= cb.serverBase.Load()+cb.frameCount {
		cb.serverBase.Add(cb.frameCount)
	}
	cb.server.Store(s)
	cb.BroadcastLocked()
	return true
}

// FramesAvailable returns the number of frames the producer may currently
// write without overrunning the consumer or the loop window.
func (cb *ControlBlock) FramesAvailable() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.FramesAvailableLocked()
}

// FramesAvailableLocked is FramesAvailable for callers that already hold
// Lock() — used by the track package's ObtainBuffer wait loop, which must
// recheck this value each time it wakes without dropping and reacquiring
// the lock.
func (cb *ControlBlock) FramesAvailableLocked() uint32 {
	u := cb.user.Load()
	s := cb.server.Load()
	loopEnd := cb.loopEnd.Load()

	if u < loopEnd {
		return s + cb.frameCount - u
	}
	loopStart := cb.loopStart.Load()
	limit := s
	if loopStart < s {
		limit = loopStart
	}
	return limit + cb.frameCount - u
}

// FramesReady returns the number of frames the consumer may currently read.
// Outside of a loop window this needs no lock; inside one with a finite
// count it must read loopStart/loopCount together, so it takes the lock.
func (cb *ControlBlock) FramesReady() uint32 {
	u := cb.user.Load()
	s := cb.server.Load()

	if u < cb.loopEnd.Load() {
		return u - s
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	loopCount := cb.loopCount.Load()
	if loopCount >= 0 {
		return (cb.loopEnd.Load()-cb.loopStart.Load())*uint32(loopCount) + u - s
	}
	return math.MaxUint32
}

// Buffer returns the ring contents starting at the given absolute frame
// offset, addressed in int16 samples (channels per frame).
func (cb *ControlBlock) Buffer(offset uint32) []int16 {
	idx := (offset - cb.userBase.Load()) * cb.channels.Load()
	return cb.buffers[idx:]
}

// Buffers returns the backing PCM slice, used by the track package to
// detect whether a caller-supplied shared buffer is actually in use.
func (cb *ControlBlock) Buffers() []int16 { return cb.buffers }

func (cb *ControlBlock) User() uint32       { return cb.user.Load() }
func (cb *ControlBlock) Server() uint32     { return cb.server.Load() }
func (cb *ControlBlock) UserBase() uint32   { return cb.userBase.Load() }
func (cb *ControlBlock) ServerBase() uint32 { return cb.serverBase.Load() }
func (cb *ControlBlock) FrameCount() uint32 { return cb.frameCount }
func (cb *ControlBlock) Out() bool          { return cb.out }

func (cb *ControlBlock) Channels() uint32     { return cb.channels.Load() }
func (cb *ControlBlock) SetChannels(c uint32) { cb.channels.Store(c) }

func (cb *ControlBlock) SampleRate() uint32     { return cb.sampleRate.Load() }
func (cb *ControlBlock) SetSampleRate(r uint32) { cb.sampleRate.Store(r) }

func (cb *ControlBlock) VolumeLR() uint32     { return cb.volumeLR.Load() }
func (cb *ControlBlock) SetVolumeLR(v uint32) { cb.volumeLR.Store(v) }

func (cb *ControlBlock) FlowControlFlag() bool { return cb.flowControlFlag.Load() != 0 }
func (cb *ControlBlock) SetFlowControlFlag(set bool) {
	cb.flowControlFlag.Store(b2u(set))
}

func (cb *ControlBlock) ForceReady() bool { return cb.forceReady.Load() != 0 }
func (cb *ControlBlock) SetForceReady(set bool) {
	cb.forceReady.Store(b2u(set))
}

// Loop reports the current loop window. count is negative for an infinite
// loop; it starts at the value passed to SetLoopLocked and StepServer keeps
// decrementing it on every wrap, so it is not fixed at -1.
func (cb *ControlBlock) Loop() (start, end uint32, count int32) {
	return cb.loopStart.Load(), cb.loopEnd.Load(), cb.loopCount.Load()
}

// SetServerLocked forces the consumer cursor to position, bypassing
// StepServer. The caller must hold Lock(); used only by Track.SetPosition
// while the track is inactive.
func (cb *ControlBlock) SetServerLocked(position uint32) { cb.server.Store(position) }

// SetLoopLocked installs a loop window directly, bypassing validation (the
// track package validates against its own frame count before calling this).
// The caller must hold Lock().
func (cb *ControlBlock) SetLoopLocked(start, end uint32, count int32) {
	cb.loopStart.Store(start)
	cb.loopEnd.Store(end)
	cb.loopCount.Store(count)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
