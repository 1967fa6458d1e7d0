// extension.go - Typed context-extension values and their wire codec.
//
// A context extension is the indexed witness payload passed alongside a
// transaction input to satisfy script conditions. Each value carries a slot
// index and a type tag; the blob layout is
//
//	VLQ(entry count) || { VLQ(index) type-byte payload }*
//
// with payloads: Point = 33 compressed bytes, ByteSeq = VLQ length + bytes,
// Int = ZigZag32 VLQ, Long = ZigZag64 VLQ. Any deviation fails verification
// downstream, so Encode is exercised against fixed reference vectors.

package sigma

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"poolcore/internal/keys"
)

// ErrProtocolFormat reports an unknown or truncated wire encoding. It is
// fatal: a format mismatch indicates a protocol version mismatch, not a
// transient condition.
var ErrProtocolFormat = errors.New("protocol format error")

// Type is the wire type tag of a context-extension value.
type Type byte

// Wire type tags, matching the verifier's constant serializer.
const (
	TypeInt     Type = 0x04
	TypeLong    Type = 0x05
	TypePoint   Type = 0x07
	TypeByteSeq Type = 0x0e
)

// String names the type tag.
func (t Type) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeLong:
		return "Long"
	case TypePoint:
		return "Point"
	case TypeByteSeq:
		return "ByteSeq"
	default:
		return fmt.Sprintf("Type(0x%02x)", byte(t))
	}
}

// Value is one typed context-extension entry: a tagged union over the four
// supported kinds, always accessed through its Type tag.
type Value struct {
	Index int
	Type  Type

	// Exactly one of the following is meaningful, selected by Type.
	Point *keys.Point // TypePoint
	Bytes []byte      // TypeByteSeq
	Num   int64       // TypeInt (32-bit range) and TypeLong
}

// PointValue builds a Point entry for slot index.
func PointValue(index int, p *keys.Point) Value {
	return Value{Index: index, Type: TypePoint, Point: p}
}

// ByteSeqValue builds a ByteSeq entry for slot index.
func ByteSeqValue(index int, b []byte) Value {
	return Value{Index: index, Type: TypeByteSeq, Bytes: b}
}

// IntValue builds an Int entry for slot index.
func IntValue(index int, v int32) Value {
	return Value{Index: index, Type: TypeInt, Num: int64(v)}
}

// LongValue builds a Long entry for slot index.
func LongValue(index int, v int64) Value {
	return Value{Index: index, Type: TypeLong, Num: v}
}

// Equal reports semantic equality of two entries.
func (v Value) Equal(o Value) bool {
	if v.Index != o.Index || v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypePoint:
		return v.Point.Equal(o.Point)
	case TypeByteSeq:
		return bytes.Equal(v.Bytes, o.Bytes)
	case TypeInt, TypeLong:
		return v.Num == o.Num
	default:
		return false
	}
}

// Encode serializes an ordered sequence of entries into the wire blob.
// Caller order is preserved; slot indexes must be non-negative and unique.
func Encode(values []Value) ([]byte, error) {
	seen := make(map[int]struct{}, len(values))
	out := appendVLQ(nil, uint64(len(values)))
	for _, v := range values {
		if v.Index < 0 {
			return nil, fmt.Errorf("%w: negative slot index %d", ErrProtocolFormat, v.Index)
		}
		if _, dup := seen[v.Index]; dup {
			return nil, fmt.Errorf("%w: duplicate slot index %d", ErrProtocolFormat, v.Index)
		}
		seen[v.Index] = struct{}{}
		out = appendVLQ(out, uint64(v.Index))
		out = append(out, byte(v.Type))
		switch v.Type {
		case TypePoint:
			if v.Point == nil {
				return nil, fmt.Errorf("%w: Point entry at slot %d has no point", ErrProtocolFormat, v.Index)
			}
			out = append(out, v.Point.Bytes()...)
		case TypeByteSeq:
			out = appendVLQ(out, uint64(len(v.Bytes)))
			out = append(out, v.Bytes...)
		case TypeInt:
			if v.Num < math.MinInt32 || v.Num > math.MaxInt32 {
				return nil, fmt.Errorf("%w: Int entry at slot %d out of range: %d", ErrProtocolFormat, v.Index, v.Num)
			}
			out = appendVLQ(out, zigzag32(int32(v.Num)))
		case TypeLong:
			out = appendVLQ(out, zigzag64(v.Num))
		default:
			return nil, fmt.Errorf("%w: unknown type tag 0x%02x at slot %d", ErrProtocolFormat, byte(v.Type), v.Index)
		}
	}
	return out, nil
}

// Decode parses a wire blob back into its entries. Fails on unknown type
// tags, truncated payloads, or trailing bytes.
func Decode(blob []byte) ([]Value, error) {
	count, off, err := readVLQ(blob, 0)
	if err != nil {
		return nil, err
	}
	if count > uint64(len(blob)) {
		return nil, fmt.Errorf("%w: entry count %d exceeds blob size", ErrProtocolFormat, count)
	}
	values := make([]Value, 0, count)
	for i := uint64(0); i < count; i++ {
		idx, next, err := readVLQ(blob, off)
		if err != nil {
			return nil, err
		}
		off = next
		if off >= len(blob) {
			return nil, fmt.Errorf("%w: truncated entry at slot %d", ErrProtocolFormat, idx)
		}
		tag := Type(blob[off])
		off++
		v := Value{Index: int(idx), Type: tag}
		switch tag {
		case TypePoint:
			if off+keys.PointSize > len(blob) {
				return nil, fmt.Errorf("%w: truncated point at slot %d", ErrProtocolFormat, idx)
			}
			p, perr := keys.ValidatePoint(blob[off : off+keys.PointSize])
			if perr != nil {
				return nil, fmt.Errorf("%w: invalid point at slot %d: %v", ErrProtocolFormat, idx, perr)
			}
			v.Point = p
			off += keys.PointSize
		case TypeByteSeq:
			n, next, verr := readVLQ(blob, off)
			if verr != nil {
				return nil, verr
			}
			off = next
			if n > uint64(len(blob)-off) {
				return nil, fmt.Errorf("%w: truncated byte sequence at slot %d", ErrProtocolFormat, idx)
			}
			v.Bytes = append([]byte(nil), blob[off:off+int(n)]...)
			off += int(n)
		case TypeInt:
			raw, next, verr := readVLQ(blob, off)
			if verr != nil {
				return nil, verr
			}
			off = next
			n, cerr := unzigzag32(raw)
			if cerr != nil {
				return nil, cerr
			}
			v.Num = int64(n)
		case TypeLong:
			raw, next, verr := readVLQ(blob, off)
			if verr != nil {
				return nil, verr
			}
			off = next
			v.Num = unzigzag64(raw)
		default:
			return nil, fmt.Errorf("%w: unknown type tag 0x%02x at slot %d", ErrProtocolFormat, byte(tag), idx)
		}
		values = append(values, v)
	}
	if off != len(blob) {
		return nil, fmt.Errorf("%w: %d trailing bytes after last entry", ErrProtocolFormat, len(blob)-off)
	}
	return values, nil
}
