// SPDX-License-Identifier: EPL-2.0

// Package ring implements the control block that sits at the heart of a
// producer/consumer audio track: the cursors, wrap bases, loop window and
// volume state that would, in the system this package is modeled on, live
// in memory shared between a client process and a mixer server.
//
// This implementation keeps all of that state in a single process and
// substitutes a sync.Mutex plus a closed-channel broadcast (see WaitLocked
// and BroadcastLocked) for the cross-process futex-backed lock and condvar
// the original design calls for (see the track package's doc comment for
// the rest of that boundary). Everything else — the cursor arithmetic, the
// loop-window bookkeeping, the try-lock-with-retry discipline in
// StepServer — is reproduced exactly.
//
// ControlBlock is safe for concurrent use by exactly two callers: one
// producer goroutine calling StepUser/FramesAvailable/Buffer, and one
// consumer goroutine calling StepServer/FramesReady. It is not a general
// purpose concurrent data structure.
package ring
