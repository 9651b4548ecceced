// SPDX-License-Identifier: EPL-2.0

package utils

// NarrowInt16 converts x (already scaled, e.g. by 4096 for Q4.12) to an
// int16, dropping any fractional part. Out-of-range input saturates to
// -32768 or 32767 rather than wrapping, so an oversized channel value in
// the packed volume word stays at the int16 limit.
func NarrowInt16(x float32) int16 {
	if x > 32767 {
		return 32767
	}
	if x < -32768 {
		return -32768
	}
	return int16(int32(x))
}

// PackVolume packs a left/right volume pair into the 32-bit word format the
// ring buffer's VolumeLR field uses: each channel stored as a Q4.12 signed
// 16-bit value, left in the high half and right in the low half. This is
// the single atomic store a mixer running in another process observes.
func PackVolume(left, right float32) uint32 {
	l := NarrowInt16(left * 4096)
	r := NarrowInt16(right * 4096)
	return uint32(uint16(l))<<16 | uint32(uint16(r))
}

// UnpackVolume reverses PackVolume.
func UnpackVolume(packed uint32) (left, right float32) {
	l := int16(packed >> 16)
	r := int16(packed)
	return float32(l) / 4096, float32(r) / 4096
}
