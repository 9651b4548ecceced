// SPDX-License-Identifier: EPL-2.0

// Package server declares the contracts of the two collaborators this
// module treats as out-of-process and out of scope: the mixer that
// allocates a track and advances its consumer cursor, and the system audio
// service that publishes the device's default sample rate, frame count and
// output latency.
//
// Nothing in this package maps the ring buffer's shared memory, negotiates
// IPC, or resamples audio — a real implementation of Handle lives wherever
// this module is deployed alongside an actual mixer. internal/mixertest
// provides a fake implementation for tests, in the same spirit as the
// teacher's internal/audiotest mock package.
package server
