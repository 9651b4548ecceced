// SPDX-License-Identifier: EPL-2.0

package track

import "errors"

var (
	// ErrNoInit is returned when the server is unreachable, the control
	// block could not be mapped, or New has not completed successfully.
	ErrNoInit = errors.New("track: not initialized")

	// ErrInvalidOperation is returned when a call is forbidden in the
	// track's current state (Write on a shared-buffer track, SetPosition
	// while active, marker/period configuration without a callback, ...).
	ErrInvalidOperation = errors.New("track: invalid operation")

	// ErrBadValue is returned for parameter domain violations: format,
	// channel count, buffer size, loop bounds, misaligned shared buffer.
	ErrBadValue = errors.New("track: bad value")

	// ErrNoMoreBuffers is returned by ObtainBuffer when the track is
	// inactive and the ring has no free space.
	ErrNoMoreBuffers = errors.New("track: no more buffers")

	// ErrWouldBlock is returned by a non-blocking ObtainBuffer call that
	// would otherwise have waited for ring space.
	ErrWouldBlock = errors.New("track: would block")

	// ErrStopped is returned by ObtainBuffer when a buffer was obtained
	// but the track was stopped while the caller was waiting for it.
	ErrStopped = errors.New("track: stopped")
)
