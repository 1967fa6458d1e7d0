// vlq.go - VLQ and ZigZag integer codec for the typed-constant wire format.
//
// The external verifier encodes unsigned quantities as base-128 VLQ and
// signed Int/Long values as ZigZag-mapped VLQ. The encoding must match the
// on-chain serializer bit for bit.

package sigma

import "fmt"

// maxVLQBytes bounds a 64-bit VLQ encoding.
const maxVLQBytes = 10

// appendVLQ appends the base-128 varint encoding of v.
func appendVLQ(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// readVLQ decodes a base-128 varint starting at buf[off]. Returns the value
// and the offset past the encoding.
func readVLQ(buf []byte, off int) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < maxVLQBytes; i++ {
		if off >= len(buf) {
			return 0, 0, fmt.Errorf("%w: truncated varint", ErrProtocolFormat)
		}
		b := buf[off]
		off++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, off, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("%w: varint exceeds 10 bytes", ErrProtocolFormat)
}

// zigzag64 maps a signed value onto the unsigned VLQ domain.
func zigzag64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// unzigzag64 inverts zigzag64.
func unzigzag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// zigzag32 maps a 32-bit signed value, matching the verifier's Int type.
func zigzag32(v int32) uint64 {
	return uint64(uint32(v<<1) ^ uint32(v>>31))
}

// unzigzag32 inverts zigzag32.
func unzigzag32(v uint64) (int32, error) {
	if v > 0xffffffff {
		return 0, fmt.Errorf("%w: Int value out of 32-bit range", ErrProtocolFormat)
	}
	u := uint32(v)
	return int32(u>>1) ^ -int32(u&1), nil
}
