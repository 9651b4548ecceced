// SPDX-License-Identifier: EPL-2.0

package utils

// Expand8ToInt16 converts one unsigned 8-bit PCM sample, centred at 0x80,
// into a signed 16-bit sample.
func Expand8ToInt16(b byte) int16 {
	return int16(int8(b^0x80)) << 8
}

// ExpandBytes8To16 expands the first n unsigned-8-bit PCM bytes of src into
// the first n int16 samples of dst, writing descending (from the last byte
// to the first). src and dst are separate slices; the caller guarantees
// both hold at least n elements.
//
// The descending order keeps the expansion correct if dst's memory ever
// overlaps src's: expanding ascending would overwrite not-yet-read source
// bytes with the 16-bit values produced from earlier ones, since each
// output sample is twice the width of its source byte.
func ExpandBytes8To16(src []byte, dst []int16, n int) {
	for i := n - 1; i >= 0; i-- {
		dst[i] = Expand8ToInt16(src[i])
	}
}
