// registers.go - Standalone typed constants as they appear in snapshot
// register fields (type byte + payload, no slot index).

package sigma

import "fmt"

// EncodeLong serializes a standalone Long constant (0x05 + ZigZag VLQ).
func EncodeLong(v int64) []byte {
	return appendVLQ([]byte{byte(TypeLong)}, zigzag64(v))
}

// DecodeLong parses a standalone Long constant.
func DecodeLong(b []byte) (int64, error) {
	if len(b) < 2 || Type(b[0]) != TypeLong {
		return 0, fmt.Errorf("%w: expected Long constant", ErrProtocolFormat)
	}
	raw, off, err := readVLQ(b, 1)
	if err != nil {
		return 0, err
	}
	if off != len(b) {
		return 0, fmt.Errorf("%w: %d trailing bytes after Long", ErrProtocolFormat, len(b)-off)
	}
	return unzigzag64(raw), nil
}

// EncodeInt serializes a standalone Int constant (0x04 + ZigZag VLQ).
func EncodeInt(v int32) []byte {
	return appendVLQ([]byte{byte(TypeInt)}, zigzag32(v))
}

// DecodeInt parses a standalone Int constant.
func DecodeInt(b []byte) (int32, error) {
	if len(b) < 2 || Type(b[0]) != TypeInt {
		return 0, fmt.Errorf("%w: expected Int constant", ErrProtocolFormat)
	}
	raw, off, err := readVLQ(b, 1)
	if err != nil {
		return 0, err
	}
	if off != len(b) {
		return 0, fmt.Errorf("%w: %d trailing bytes after Int", ErrProtocolFormat, len(b)-off)
	}
	return unzigzag32(raw)
}

// AppendCount appends a VLQ element count, as used by collection encodings.
func AppendCount(dst []byte, n int) []byte {
	return appendVLQ(dst, uint64(n))
}

// ReadCount reads a VLQ element count starting at buf[off].
func ReadCount(buf []byte, off int) (int, int, error) {
	v, next, err := readVLQ(buf, off)
	if err != nil {
		return 0, 0, err
	}
	const maxCount = 1 << 24
	if v > maxCount {
		return 0, 0, fmt.Errorf("%w: implausible element count %d", ErrProtocolFormat, v)
	}
	return int(v), next, nil
}
