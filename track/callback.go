// SPDX-License-Identifier: EPL-2.0

package track

import (
	"time"

	"github.com/ik5/audiotrack/utils"
)

const fillBackpressureSleep = 5 * time.Millisecond

// worker drives ProcessAudioBuffer in a loop on a dedicated goroutine for
// the lifetime of one Start/Stop cycle.
type worker struct {
	t        *Track
	done     chan struct{}
	loopLeft int32 // local shadow of the control block's remaining-loops counter
}

func newWorker(t *Track) *worker {
	return &worker{t: t}
}

func (w *worker) start() {
	w.done = make(chan struct{})
	_, _, count := w.t.cblk.Loop()
	w.loopLeft = count
	go w.run()
}

func (w *worker) join() {
	if w.done == nil {
		return
	}
	<-w.done
}

func (w *worker) run() {
	defer close(w.done)
	for {
		if !w.t.ProcessAudioBuffer(w) {
			return
		}
		if w.t.Stopped() {
			return
		}
	}
}

// ProcessAudioBuffer runs one iteration of the callback pump: underrun
// detection, loop/marker/position event delivery, and filling the ring
// via EventMoreData. It returns false when the worker should exit.
func (t *Track) ProcessAudioBuffer(w *worker) bool {
	cblk := t.cblk

	if !t.Stopped() && cblk.FramesReady() == 0 && !cblk.FlowControlFlag() {
		t.cbf(EventUnderrun, nil)
		if cblk.Server() == cblk.FrameCount() {
			t.cbf(EventBufferEnd, nil)
		}
		cblk.SetFlowControlFlag(true)
		if t.sharedBuffer != nil {
			return false
		}
	}

	_, _, loopCount := cblk.Loop()
	for w.loopLeft > loopCount {
		w.loopLeft--
		payload := int(w.loopLeft)
		if w.loopLeft < 0 {
			payload = -1
		}
		t.cbf(EventLoopEnd, payload)
	}

	t.mu.Lock()
	marker := t.markerPosition
	period := t.updatePeriod
	newPos := t.newPosition
	t.mu.Unlock()

	if marker > 0 && cblk.Server() >= marker {
		t.cbf(EventMarker, marker)
		t.mu.Lock()
		t.markerPosition = 0
		t.mu.Unlock()
	}

	for period > 0 && cblk.Server() >= newPos {
		t.cbf(EventNewPos, newPos)
		newPos += period
		t.mu.Lock()
		t.newPosition = newPos
		t.mu.Unlock()
	}

	if t.sharedBuffer != nil {
		time.Sleep(fillBackpressureSleep)
		return true
	}

	t.mu.Lock()
	frames := t.remainingFrames
	t.mu.Unlock()

	wroteAny := false
	for frames > 0 {
		buf := &Buffer{FrameCount: frames}
		err := t.ObtainBuffer(buf, false)
		if err == ErrWouldBlock {
			break
		}
		if err != nil {
			return false
		}
		if buf.Size == 0 {
			break
		}

		reqSize := buf.Size
		if t.format == PCM8Bit {
			buf.Size /= 2
		}

		t.cbf(EventMoreData, buf)

		writtenSize := buf.Size
		if writtenSize <= 0 {
			break
		}
		if writtenSize > reqSize {
			writtenSize = reqSize
		}

		if t.format == PCM8Bit {
			n := writtenSize
			expandInt16SlotsAsBytes(buf.Raw, n)
			writtenSize = n * 2
		}

		buf.Size = writtenSize
		buf.FrameCount = uint32(writtenSize) / t.cblk.Channels() / 2

		t.ReleaseBuffer(buf)
		wroteAny = true
		frames -= buf.FrameCount
	}

	t.mu.Lock()
	if frames == 0 {
		t.remainingFrames = t.notificationFrames
	} else {
		t.remainingFrames = frames
	}
	t.mu.Unlock()

	if !wroteAny {
		time.Sleep(fillBackpressureSleep)
	}
	return true
}

// expandInt16SlotsAsBytes expands n 8-bit PCM samples, each held in the
// low byte of one of buf's first n int16 slots (the layout an
// EventMoreData callback produces when handed a PCM8Bit buffer, one
// sample per ring slot), into n proper 16-bit samples occupying the same
// n slots. It walks descending for the same reason utils.ExpandBytes8To16
// does: source and destination are the same region.
func expandInt16SlotsAsBytes(buf []int16, n int) {
	for i := n - 1; i >= 0; i-- {
		buf[i] = utils.Expand8ToInt16(byte(buf[i]))
	}
}
