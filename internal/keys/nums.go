// nums.go - Protocol constants: the group generator G and the NUMS second
// generator H.
//
// H is derived via a fixed public procedure: x = SHA256(numsSeed), lifted to
// the curve with even-y parity. Because x is a hash output, nobody knows the
// discrete log of H with respect to G. Both constants are immutable values
// compared by byte equality; they must match the on-chain contract exactly.

package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// GeneratorHex is the compressed secp256k1 group generator G.
	GeneratorHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

	// NUMSHex is the compressed NUMS second generator H.
	NUMSHex = "02eab569326ae73e525b96643b2c31300e822007c91faf0c356226c4942ebe9eb2"

	// numsSeed is the public derivation seed for H.
	numsSeed = "CASH.v3.second.generator.H.0"
)

var (
	generatorBytes = mustHex(GeneratorHex)
	numsBytes      = mustHex(NUMSHex)
	generator      = mustParse(generatorBytes)
	numsH          = mustParse(numsBytes)
)

// GeneratorPoint returns the group generator G.
func GeneratorPoint() *Point {
	return &Point{pk: generator}
}

// NUMSPoint returns the second generator H used for key images.
func NUMSPoint() *Point {
	return &Point{pk: numsH}
}

// DeriveNUMS recomputes the NUMS point from a seed string. Used to audit
// that NUMSHex matches its published derivation.
func DeriveNUMS(seed string) (*Point, error) {
	digest := sha256.Sum256([]byte(seed))
	encoded := make([]byte, 0, PointSize)
	encoded = append(encoded, 0x02)
	encoded = append(encoded, digest[:]...)
	pk, err := secp256k1.ParsePubKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: seed does not lift to the curve", ErrPointNotOnCurve)
	}
	return &Point{pk: pk}, nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func mustParse(b []byte) *secp256k1.PublicKey {
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		panic(err)
	}
	return pk
}
