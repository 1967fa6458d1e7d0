package sigma

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcore/internal/keys"
)

const testPointHex = "02175bf328f301b534560340bb361b713d70b1730fa4f120e12acfdf78f53c6c78"

func testPoint(t *testing.T) *keys.Point {
	t.Helper()
	raw, err := hex.DecodeString(testPointHex)
	require.NoError(t, err)
	p, err := keys.ValidatePoint(raw)
	require.NoError(t, err)
	return p
}

func TestEncodeReferenceVectors(t *testing.T) {
	img := testPoint(t)

	// Withdrawal-shaped extension: var 0 key image, var 1 proof bytes.
	blob, err := Encode([]Value{
		PointValue(0, img),
		ByteSeqValue(1, []byte{0xde, 0xad, 0xbe, 0xef}),
	})
	require.NoError(t, err)
	want := "02" + "0007" + testPointHex + "010e04deadbeef"
	assert.Equal(t, want, hex.EncodeToString(blob))
}

func TestEncodeIntLongVectors(t *testing.T) {
	blob, err := Encode([]Value{IntValue(0, 20)})
	require.NoError(t, err)
	assert.Equal(t, "01000428", hex.EncodeToString(blob))

	blob, err = Encode([]Value{LongValue(3, 100)})
	require.NoError(t, err)
	assert.Equal(t, "010305c801", hex.EncodeToString(blob))

	blob, err = Encode([]Value{LongValue(0, -1)})
	require.NoError(t, err)
	assert.Equal(t, "01000501", hex.EncodeToString(blob))
}

func TestRoundTrip(t *testing.T) {
	img := testPoint(t)
	values := []Value{
		PointValue(0, img),
		ByteSeqValue(1, []byte{0x01, 0x02, 0x03}),
		IntValue(2, -12345),
		LongValue(3, 1<<40),
		ByteSeqValue(4, nil),
		LongValue(5, -9000000000),
	}
	blob, err := Encode(values)
	require.NoError(t, err)
	decoded, err := Decode(blob)
	require.NoError(t, err)
	require.Len(t, decoded, len(values))
	for i := range values {
		assert.True(t, values[i].Equal(decoded[i]), "entry %d mismatch", i)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	img := testPoint(t)
	blob, err := Encode([]Value{PointValue(0, img), IntValue(1, 7)})
	require.NoError(t, err)

	cases := map[string][]byte{
		"truncated point":   blob[:10],
		"trailing bytes":    append(append([]byte(nil), blob...), 0x00),
		"unknown type tag":  {0x01, 0x00, 0x42, 0x00},
		"truncated varint":  {0x01, 0x80},
		"empty after count": {0x01},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(b)
			assert.ErrorIs(t, err, ErrProtocolFormat)
		})
	}
}

func TestEncodeRejectsDuplicateSlots(t *testing.T) {
	_, err := Encode([]Value{IntValue(0, 1), LongValue(0, 2)})
	assert.ErrorIs(t, err, ErrProtocolFormat)
}

func TestRegisterConstants(t *testing.T) {
	// Live register encodings: R6 denomination 100, R7 max ring 16.
	assert.Equal(t, "05c801", hex.EncodeToString(EncodeLong(100)))
	assert.Equal(t, "0420", hex.EncodeToString(EncodeInt(16)))

	denom, err := DecodeLong(mustHexDecode(t, "05c801"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), denom)

	maxRing, err := DecodeInt(mustHexDecode(t, "0420"))
	require.NoError(t, err)
	assert.Equal(t, int32(16), maxRing)

	_, err = DecodeLong([]byte{0x04, 0x20})
	assert.ErrorIs(t, err, ErrProtocolFormat)
}

func mustHexDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
