// SPDX-License-Identifier: EPL-2.0

// Package mixertest is a test helper providing an in-process fake of the
// server.Mixer/server.Handle contract, in the same spirit as the
// audiotest package's MockSource: something real enough to drive a
// track through a full transport and fill cycle without an actual mixer
// process on the other end.
package mixertest

import (
	"sync"
	"time"

	"github.com/ik5/audiotrack/ring"
	"github.com/ik5/audiotrack/server"
)

// Defaults are the fake system audio service's published output
// characteristics. Tests construct a FakeMixer with values chosen to make
// the minimum-frame-count arithmetic in track.New land on something easy
// to reason about.
type Defaults struct {
	SampleRate uint32
	FrameCount uint32
	LatencyMs  uint32
}

// FakeMixer implements server.Mixer entirely in memory.
type FakeMixer struct {
	defaults Defaults

	mu     sync.Mutex
	tracks []*FakeHandle
}

// NewFakeMixer returns a FakeMixer publishing the given device defaults.
func NewFakeMixer(d Defaults) *FakeMixer {
	return &FakeMixer{defaults: d}
}

func (m *FakeMixer) OutputSampleRate() (uint32, error)     { return m.defaults.SampleRate, nil }
func (m *FakeMixer) OutputFrameCount() (uint32, error)     { return m.defaults.FrameCount, nil }
func (m *FakeMixer) OutputLatencyMillis() (uint32, error)  { return m.defaults.LatencyMs, nil }

// CreateTrack allocates a ControlBlock and backing PCM slice (or adopts
// p.SharedBuffer) and returns a FakeHandle wrapping it. It writes Channels
// on the control block itself, per the "server writes it" decision this
// module's design notes record.
func (m *FakeMixer) CreateTrack(p server.Params) (server.Handle, error) {
	buf := p.SharedBuffer
	if buf == nil {
		buf = make([]int16, p.FrameCount*p.Channels)
	}

	// Every track this fake creates is a playback track.
	cblk := ring.New(p.FrameCount, p.Channels, p.SampleRate, buf, true)
	cblk.SetChannels(p.Channels)

	h := &FakeHandle{
		mixer: m,
		cblk:  cblk,
		rate:  p.SampleRate,
	}

	m.mu.Lock()
	m.tracks = append(m.tracks, h)
	m.mu.Unlock()

	return h, nil
}

// FakeHandle is the fake mixer's per-track state: a ControlBlock plus a
// consumer goroutine that calls StepServer at roughly real time while the
// track is started, modeling what a real mixer's playback thread does.
type FakeHandle struct {
	mixer *FakeMixer
	cblk  *ring.ControlBlock
	rate  uint32

	mu      sync.Mutex
	muted   bool
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	// StepFrames is how many frames the consumer goroutine advances per
	// tick; defaults to a 10ms slice's worth of frames at the track's
	// sample rate. Tests may override it before Start to control drain
	// speed precisely (e.g. to force an underrun).
	StepFrames uint32
	// TickInterval is how often the consumer goroutine wakes to call
	// StepServer. Defaults to 10ms.
	TickInterval time.Duration
	// NoDrain, set before Start, keeps the consumer goroutine alive
	// (so Stop still has something to join) without ever calling
	// StepServer. Tests that need the ring to stay exactly as full as
	// the producer left it until they call Stop themselves set this.
	NoDrain bool
}

func (h *FakeHandle) ControlBlock() *ring.ControlBlock { return h.cblk }

func (h *FakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	if h.StepFrames == 0 {
		h.StepFrames = h.rate / 100 // 10ms worth of frames
	}
	if h.TickInterval == 0 {
		h.TickInterval = 10 * time.Millisecond
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.done = make(chan struct{})
	go h.drain(h.stopCh, h.done, h.StepFrames, h.TickInterval, h.NoDrain)
	return nil
}

func (h *FakeHandle) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.stopCh)
	done := h.done
	h.mu.Unlock()

	<-done
	return nil
}

func (h *FakeHandle) Pause() error { return h.Stop() }

func (h *FakeHandle) Flush() error { return nil }

func (h *FakeHandle) Mute(on bool) error {
	h.mu.Lock()
	h.muted = on
	h.mu.Unlock()
	return nil
}

func (h *FakeHandle) Close() error { return nil }

func (h *FakeHandle) drain(stop <-chan struct{}, done chan<- struct{}, step uint32, tick time.Duration, noDrain bool) {
	defer close(done)

	if noDrain {
		<-stop
		return
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ready := h.cblk.FramesReady()
			if ready == 0 {
				continue
			}
			n := step
			if n > ready {
				n = ready
			}
			h.cblk.StepServer(n)
		}
	}
}
