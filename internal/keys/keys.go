// keys.go - Elliptic-curve key and nullifier primitives for the privacy pool.
//
// Implements one-time (stealth) key pair generation, deterministic key image
// derivation against the NUMS second generator H, and compressed-point
// validation including the banned-point checks. All randomness comes from
// crypto/rand via the curve library.

package keys

import (
	"bytes"
	"errors"
	"fmt"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PointSize is the length of a compressed SEC1 secp256k1 point encoding.
const PointSize = 33

// Validation failures. All three classify as crypto errors: fatal to the
// current call and never retried automatically.
var (
	ErrMalformedEncoding = errors.New("malformed point encoding")
	ErrPointNotOnCurve   = errors.New("point not on curve")
	ErrBannedPoint       = errors.New("banned point")
)

// IsCryptoError reports whether err originates from point or scalar
// validation in this package.
func IsCryptoError(err error) bool {
	return errors.Is(err, ErrMalformedEncoding) ||
		errors.Is(err, ErrPointNotOnCurve) ||
		errors.Is(err, ErrBannedPoint)
}

// Secret is a scalar in the secp256k1 prime-order group. It is generated on
// deposit and never stored by this package; the caller owns its persistence.
// Loss of a secret permanently strands the associated value.
type Secret struct {
	key *secp256k1.PrivateKey
}

// Bytes returns the 32-byte big-endian scalar.
func (s *Secret) Bytes() []byte {
	return s.key.Serialize()
}

// SecretFromBytes restores a secret from its 32-byte encoding.
// Rejects zero and out-of-range scalars.
func SecretFromBytes(b []byte) (*Secret, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: secret must be 32 bytes, got %d", ErrMalformedEncoding, len(b))
	}
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: secret exceeds group order", ErrMalformedEncoding)
	}
	if k.IsZero() {
		return nil, fmt.Errorf("%w: secret is zero", ErrMalformedEncoding)
	}
	return &Secret{key: secp256k1.NewPrivateKey(&k)}, nil
}

// Point is a public point on secp256k1, held in validated form.
type Point struct {
	pk *secp256k1.PublicKey
}

// Bytes returns the compressed SEC1 encoding (33 bytes, 02/03 prefix).
func (p *Point) Bytes() []byte {
	return p.pk.SerializeCompressed()
}

// Equal reports whether two points are the same curve point.
func (p *Point) Equal(o *Point) bool {
	return p.pk.IsEqual(o.pk)
}

// String returns the lowercase hex of the compressed encoding.
func (p *Point) String() string {
	return fmt.Sprintf("%x", p.Bytes())
}

// GenerateFreshSecret samples a uniform scalar from [1, n-1] using a
// cryptographically secure source and returns it with its identity point
// secret·G. Each deposit uses a fresh pair so keys are never reused across
// pools.
func GenerateFreshSecret() (*Secret, *Point, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("sampling secret: %w", err)
	}
	return &Secret{key: priv}, &Point{pk: priv.PubKey()}, nil
}

// PublicPoint returns the identity point secret·G.
func (s *Secret) PublicPoint() *Point {
	return &Point{pk: s.key.PubKey()}
}

// ComputeKeyImage derives the nullifier point secret·H. The derivation is
// deterministic: equal secrets always produce the identical point, and
// without the secret the image is unlinkable to any ring member.
func ComputeKeyImage(s *Secret) *Point {
	var h, img secp256k1.JacobianPoint
	numsH.AsJacobian(&h)
	secp256k1.ScalarMultNonConst(&s.key.Key, &h, &img)
	img.ToAffine()
	return &Point{pk: secp256k1.NewPublicKey(&img.X, &img.Y)}
}

// ValidatePoint parses and validates a compressed point encoding. It
// enforces the fixed 33-byte length, the 02/03 compressed prefix, curve
// membership, and rejects the two banned points: the group generator G and
// the NUMS generator H. Either banned value would create a slot whose
// discrete log is publicly known.
func ValidatePoint(encoded []byte) (*Point, error) {
	if len(encoded) != PointSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedEncoding, PointSize, len(encoded))
	}
	if encoded[0] != 0x02 && encoded[0] != 0x03 {
		return nil, fmt.Errorf("%w: expected 02/03 prefix, got %02x", ErrMalformedEncoding, encoded[0])
	}
	if bytes.Equal(encoded, generatorBytes) {
		return nil, fmt.Errorf("%w: the group generator G must never appear as a ring key or key image", ErrBannedPoint)
	}
	if bytes.Equal(encoded, numsBytes) {
		return nil, fmt.Errorf("%w: the NUMS generator H must never appear as a ring key or key image", ErrBannedPoint)
	}
	pk, err := secp256k1.ParsePubKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %x", ErrPointNotOnCurve, encoded)
	}
	return &Point{pk: pk}, nil
}
