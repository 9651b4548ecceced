// SPDX-License-Identifier: EPL-2.0

// Package track implements the client side of a producer/consumer audio
// track: construction and parameter validation, transport controls
// (Start/Stop/Pause/Flush/Reload), the buffer acquisition protocol
// (ObtainBuffer/ReleaseBuffer), the pull-less Write path, and the
// callback-driven worker that pumps EventMoreData and delivers
// underrun/loop/marker/position notifications.
//
// A Track owns a server.Handle (the mixer-side track) and, for the
// callback-driven mode, one dedicated worker goroutine. Everything it
// touches on the shared side goes through its *ring.ControlBlock — see
// that package's doc comment for the process-sharing boundary this
// implementation collapses into a single process.
package track

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ik5/audiotrack/ring"
	"github.com/ik5/audiotrack/server"
	"github.com/ik5/audiotrack/utils"
)

const activeBit = 1

// atomicOr32 and atomicAnd32 provide atomic.Uint32's Or/And (added in Go
// 1.23) via a CompareAndSwap loop, matching their old-value return.
func atomicOr32(x *atomic.Uint32, val uint32) uint32 {
	for {
		old := x.Load()
		if x.CompareAndSwap(old, old|val) {
			return old
		}
	}
}

func atomicAnd32(x *atomic.Uint32, val uint32) uint32 {
	for {
		old := x.Load()
		if x.CompareAndSwap(old, old&val) {
			return old
		}
	}
}

// RecoveryHook is called from ObtainBuffer when the 1-second condvar wait
// times out — the timeout is presumed to mean the mixer is wedged, not
// that the consumer is merely slow. The default calls ServerHandle.Start()
// as a defensive kick; this is a workaround in the system this package is
// modeled on, not a fix. New always installs the default: Params has no
// field for it and Track has no setter, so a caller cannot replace or
// disable it.
type RecoveryHook func(h server.Handle)

func defaultRecoveryHook(h server.Handle) { _ = h.Start() }

// Track is the client-facing object an application holds to stream audio
// into a mixer. See the package doc comment for its relationship to
// ring.ControlBlock and server.Handle.
type Track struct {
	handle server.Handle
	cblk   *ring.ControlBlock

	streamType       StreamType
	sampleRate       uint32
	serverSampleRate uint32 // mixer's output rate at construction, for SetSampleRate's clamp
	format           Format
	channelCount     uint32
	frameCount       uint32
	sharedBuffer     []int16

	latency uint32

	mu     sync.Mutex // guards fields below not already safe for concurrent access
	volume [2]float32
	muted  bool

	markerPosition uint32
	newPosition    uint32
	updatePeriod   uint32
	loopCount      int32 // count last passed to SetLoop; the worker keeps its own remaining-loops counter

	active atomic.Uint32

	cbf                Callback
	notificationFrames uint32
	remainingFrames    uint32

	logger       Logger
	recoveryHook RecoveryHook

	worker *worker
}

// New validates params, asks params.Mixer to create the underlying
// server-side track, and returns a Track ready for Start.
func New(p Params) (*Track, error) {
	if p.Mixer == nil {
		return nil, fmt.Errorf("track: New: %w: no mixer", ErrNoInit)
	}

	streamType := p.StreamType
	if streamType == StreamDefault {
		streamType = StreamMusic
	}

	channelCount := p.ChannelCount
	if channelCount == 0 {
		channelCount = 2
	}
	if channelCount != 1 && channelCount != 2 {
		return nil, fmt.Errorf("track: New: %w: channel count %d", ErrBadValue, channelCount)
	}

	format := p.Format
	if format == FormatUnspecified {
		format = PCM16Bit
	}
	if format == PCM8Bit && p.SharedBuffer != nil {
		return nil, fmt.Errorf("track: New: %w: PCM8Bit not allowed with a shared buffer", ErrBadValue)
	}
	if format != PCM8Bit && format != PCM16Bit {
		return nil, fmt.Errorf("track: New: %w: format %d", ErrBadValue, format)
	}

	if p.SharedBuffer != nil {
		if err := validateSharedBufferAlignment(p.SharedBuffer, channelCount); err != nil {
			return nil, err
		}
	}

	afSampleRate, err := p.Mixer.OutputSampleRate()
	if err != nil {
		return nil, fmt.Errorf("track: New: %w: %v", ErrNoInit, err)
	}
	afFrameCount, err := p.Mixer.OutputFrameCount()
	if err != nil {
		return nil, fmt.Errorf("track: New: %w: %v", ErrNoInit, err)
	}
	afLatency, err := p.Mixer.OutputLatencyMillis()
	if err != nil {
		return nil, fmt.Errorf("track: New: %w: %v", ErrNoInit, err)
	}

	sampleRate := p.SampleRate
	if sampleRate == 0 {
		sampleRate = afSampleRate
	}

	minBufCount := afLatency / ((1000 * afFrameCount) / afSampleRate)
	if p.SharedBuffer != nil && minBufCount > 1 {
		minBufCount--
	}
	minFrameCount := (afFrameCount * sampleRate * minBufCount) / afSampleRate

	frameCount := p.FrameCount
	notificationFrames := p.NotificationFrames

	if p.SharedBuffer != nil {
		frameCount = uint32(len(p.SharedBuffer)) / channelCount
	} else {
		if frameCount == 0 {
			frameCount = minFrameCount
		}
		if notificationFrames == 0 {
			notificationFrames = frameCount / 2
		}
		if notificationFrames > frameCount/2 {
			notificationFrames = frameCount / 2
		}
	}

	if frameCount < minFrameCount {
		return nil, fmt.Errorf("track: New: %w: frameCount %d below minimum %d", ErrBadValue, frameCount, minFrameCount)
	}

	handle, err := p.Mixer.CreateTrack(server.Params{
		StreamType:   int(streamType),
		SampleRate:   sampleRate,
		Channels:     channelCount,
		FrameCount:   frameCount,
		SharedBuffer: p.SharedBuffer,
	})
	if err != nil {
		return nil, fmt.Errorf("track: New: %w: %v", ErrNoInit, err)
	}

	cblk := handle.ControlBlock()
	if cblk == nil {
		return nil, fmt.Errorf("track: New: %w: mixer returned no control block", ErrNoInit)
	}

	// The mixer may have returned a smaller frame count; it is
	// authoritative from here on.
	frameCount = cblk.FrameCount()
	cblk.SetVolumeLR(utils.PackVolume(1.0, 1.0))
	cblk.SetSampleRate(sampleRate)

	t := &Track{
		handle:             handle,
		cblk:               cblk,
		streamType:         streamType,
		sampleRate:         sampleRate,
		serverSampleRate:   afSampleRate,
		format:             format,
		channelCount:       channelCount,
		frameCount:         frameCount,
		sharedBuffer:       p.SharedBuffer,
		latency:            afLatency + (1000*frameCount)/sampleRate,
		volume:             [2]float32{1.0, 1.0},
		notificationFrames: notificationFrames,
		remainingFrames:    notificationFrames,
		cbf:                p.Callback,
		logger:             p.Logger,
		recoveryHook:       defaultRecoveryHook,
	}
	if t.logger == nil {
		t.logger = newDefaultLogger()
	}
	if p.Callback != nil {
		t.worker = newWorker(t)
	}

	return t, nil
}

// validateSharedBufferAlignment reproduces an unusual alignment test
// verbatim: `(ptr & (channelCount|1)) != 0`. channelCount|1 is 1 or 3, not
// a conventional alignment mask; this is an intentionally preserved quirk
// rather than something to "fix". Go slices carry no pointer-alignment
// guarantee of their own, so this operates on the address of the backing
// array's first element.
func validateSharedBufferAlignment(buf []int16, channelCount uint32) error {
	if len(buf) == 0 {
		return nil
	}
	addr := sliceAddr(buf)
	if addr&uintptr(channelCount|1) != 0 {
		return fmt.Errorf("track: New: %w: misaligned shared buffer", ErrBadValue)
	}
	return nil
}

// Start atomically sets the active bit. On a 0→1 transition it primes a
// shared-buffer track's cursor so the whole buffer is immediately
// presented, arms the position-update bookkeeping, launches the worker
// goroutine (if a Callback was registered), and calls ServerHandle.Start.
// It is idempotent, and a no-op when called re-entrantly from inside the
// worker's own callback invocation — by the time that call happens the
// track is already active, so the 0→1 check alone suffices as the
// re-entrancy guard.
func (t *Track) Start() error {
	if prev := atomicOr32(&t.active, activeBit); prev&activeBit != 0 {
		return nil
	}

	if t.sharedBuffer != nil {
		t.cblk.StepUser(t.frameCount - t.cblk.User())
		t.cblk.SetFlowControlFlag(false)
	}

	t.mu.Lock()
	t.newPosition = t.cblk.Server() + t.updatePeriod
	t.mu.Unlock()

	if t.worker != nil {
		t.worker.start()
	}

	if err := t.handle.Start(); err != nil {
		atomicAnd32(&t.active, ^uint32(activeBit))
		return fmt.Errorf("track: Start: %w", err)
	}
	return nil
}

// Stop atomically clears the active bit. On a 1→0 transition it stops the
// server handle, cancels any loop window, flushes a shared buffer (the
// server would not otherwise reach its end), and wakes anything blocked
// in ObtainBuffer. The worker goroutine is asked to exit but not joined
// here; Close joins it.
func (t *Track) Stop() error {
	if prev := atomicAnd32(&t.active, ^uint32(activeBit)); prev&activeBit == 0 {
		return nil
	}

	if err := t.handle.Stop(); err != nil {
		return fmt.Errorf("track: Stop: %w", err)
	}

	t.cblk.Lock()
	t.cblk.SetLoopLocked(ring.NoLoop, ring.NoLoop, 0)
	t.cblk.BroadcastLocked()
	t.cblk.Unlock()

	if t.sharedBuffer != nil {
		if err := t.handle.Flush(); err != nil {
			return fmt.Errorf("track: Stop: %w", err)
		}
	}
	return nil
}

// Pause clears the active bit and calls ServerHandle.Pause, which retains
// the ring's current position (unlike Stop followed by Flush).
func (t *Track) Pause() error {
	atomicAnd32(&t.active, ^uint32(activeBit))
	if err := t.handle.Pause(); err != nil {
		return fmt.Errorf("track: Pause: %w", err)
	}
	return nil
}

// Flush discards any frames not yet consumed by resetting the consumer
// cursor to the producer cursor. Only valid while inactive.
func (t *Track) Flush() error {
	if !t.Stopped() {
		return fmt.Errorf("track: Flush: %w: track is active", ErrInvalidOperation)
	}

	t.cblk.Lock()
	t.cblk.SetServerLocked(t.cblk.User())
	t.cblk.SetForceReady(true)
	t.cblk.BroadcastLocked()
	t.cblk.Unlock()

	return t.handle.Flush()
}

// Reload is Flush followed by re-presenting the full shared buffer for
// playback (StepUser(frameCount)), the client-supplied buffer use case of
// replaying the same region from the start. Only valid while inactive.
func (t *Track) Reload() error {
	if !t.Stopped() {
		return fmt.Errorf("track: Reload: %w: track is active", ErrInvalidOperation)
	}
	if err := t.Flush(); err != nil {
		return err
	}
	t.cblk.StepUser(t.frameCount)
	return nil
}

// Close stops the track, joins the worker goroutine (if any), and
// releases the underlying server handle.
func (t *Track) Close() error {
	_ = t.Stop()
	if t.worker != nil {
		t.worker.join()
	}
	return t.handle.Close()
}

// InitCheck returns nil: by the time a *Track exists, New has already
// succeeded. It exists to mirror the original design's latched
// construction-time status, for callers migrating code that checks it
// explicitly.
func (t *Track) InitCheck() error { return nil }

func (t *Track) Latency() uint32         { return t.latency }
func (t *Track) StreamType() StreamType  { return t.streamType }
func (t *Track) SampleRate() uint32      { return t.cblk.SampleRate() }
func (t *Track) Format() Format          { return t.format }
func (t *Track) ChannelCount() uint32    { return t.channelCount }
func (t *Track) FrameCount() uint32      { return t.frameCount }
func (t *Track) SharedBuffer() []int16   { return t.sharedBuffer }

// FrameSize returns the size in bytes of one frame in the track's
// external (producer-side) format.
func (t *Track) FrameSize() int {
	sampleSize := 2
	if t.format == PCM8Bit {
		sampleSize = 1
	}
	return int(t.channelCount) * sampleSize
}

// SetSampleRate clamps rate to at most twice the mixer's output sample
// rate and to MaxSampleRate, then writes it to the control block for the
// mixer to observe.
func (t *Track) SetSampleRate(rate uint32) {
	if rate > t.serverSampleRate*2 {
		rate = t.serverSampleRate * 2
	}
	if rate > MaxSampleRate {
		rate = MaxSampleRate
	}
	t.cblk.SetSampleRate(rate)
}

func (t *Track) Volume() (left, right float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume[0], t.volume[1]
}

// SetVolume stores the pair and writes the packed word in one atomic
// store, which is how the mixer (running in another goroutine/process)
// observes a volume change.
func (t *Track) SetVolume(left, right float32) {
	t.mu.Lock()
	t.volume[0], t.volume[1] = left, right
	t.mu.Unlock()

	t.cblk.SetVolumeLR(utils.PackVolume(left, right))
}

func (t *Track) Mute(on bool) {
	t.mu.Lock()
	t.muted = on
	t.mu.Unlock()
}

func (t *Track) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// Stopped reports whether the track is currently inactive.
func (t *Track) Stopped() bool { return t.active.Load()&activeBit == 0 }

// SetLoop installs or clears a loop window. count == 0 clears any existing
// loop. Unlike SetPosition, SetLoop is not restricted to an inactive
// track.
func (t *Track) SetLoop(start, end uint32, count int32) error {
	t.cblk.Lock()
	defer t.cblk.Unlock()

	if count == 0 {
		t.cblk.SetLoopLocked(ring.NoLoop, ring.NoLoop, 0)
		t.mu.Lock()
		t.loopCount = 0
		t.mu.Unlock()
		return nil
	}

	if start >= end || start < t.cblk.User() || end-start > t.frameCount {
		return fmt.Errorf("track: SetLoop: %w: start=%d end=%d frameCount=%d user=%d",
			ErrBadValue, start, end, t.frameCount, t.cblk.User())
	}

	t.cblk.SetLoopLocked(start, end, count)
	t.mu.Lock()
	t.loopCount = count
	t.mu.Unlock()
	return nil
}

// Loop reports the current loop window, with a negative count meaning
// infinite.
func (t *Track) Loop() (start, end uint32, count int32) {
	return t.cblk.Loop()
}

func (t *Track) SetMarkerPosition(marker uint32) error {
	if t.cbf == nil {
		return fmt.Errorf("track: SetMarkerPosition: %w: no callback registered", ErrInvalidOperation)
	}
	t.mu.Lock()
	t.markerPosition = marker
	t.mu.Unlock()
	return nil
}

func (t *Track) MarkerPosition() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.markerPosition
}

func (t *Track) SetPositionUpdatePeriod(period uint32) error {
	if t.cbf == nil {
		return fmt.Errorf("track: SetPositionUpdatePeriod: %w: no callback registered", ErrInvalidOperation)
	}
	t.mu.Lock()
	t.updatePeriod = period
	t.newPosition = t.cblk.Server() + period
	t.mu.Unlock()
	return nil
}

func (t *Track) PositionUpdatePeriod() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatePeriod
}

// SetPosition seeks the consumer cursor. Only permitted while inactive;
// requires p <= cblk.User() so the server never reads ahead of what the
// producer has actually written.
func (t *Track) SetPosition(p uint32) error {
	if !t.Stopped() {
		return fmt.Errorf("track: SetPosition: %w: track is active", ErrInvalidOperation)
	}

	t.cblk.Lock()
	defer t.cblk.Unlock()

	if p > t.cblk.User() {
		return fmt.Errorf("track: SetPosition: %w: position %d beyond user %d", ErrBadValue, p, t.cblk.User())
	}
	t.cblk.SetServerLocked(p)
	t.cblk.SetForceReady(true)
	return nil
}

func (t *Track) Position() uint32 { return t.cblk.Server() }

func sliceAddr(s []int16) uintptr {
	if len(s) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&s[0]))
}
