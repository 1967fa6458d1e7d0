// pedersen.go - Pedersen commitments over the pool's two generators.
//
// A deposit commitment C = r·G + amount·H binds an amount under a blinding
// factor r. The blinding factor doubles as a view key: disclosing (r,
// amount) lets an auditor verify the exact deposit without any further
// ceremony, since C - amount·H must equal r·G.

package commit

import (
	"encoding/binary"
	"errors"
	"fmt"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"poolcore/internal/keys"
)

// ErrInvalidCommitment reports a commitment that cannot be formed or fails
// its integrity check.
var ErrInvalidCommitment = errors.New("invalid commitment")

// Commit computes C = r·G + amount·H.
func Commit(blinding *keys.Secret, amount int64) (*keys.Point, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount %d is not positive", ErrInvalidCommitment, amount)
	}
	rG := basePoint(blinding)
	aH := amountPoint(amount)

	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&rG, &aH, &sum)
	return pointFromJacobian(&sum)
}

// Verify checks C == r·G + amount·H.
func Verify(commitment *keys.Point, blinding *keys.Secret, amount int64) bool {
	recomputed, err := Commit(blinding, amount)
	if err != nil {
		return false
	}
	return recomputed.Equal(commitment)
}

// Open removes the amount term: C - amount·H = r·G. An auditor compares
// the result against the discloser's r·G.
func Open(commitment *keys.Point, amount int64) (*keys.Point, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount %d is not positive", ErrInvalidCommitment, amount)
	}
	var c secp256k1.JacobianPoint
	parsePoint(commitment).AsJacobian(&c)

	neg := amountPoint(amount)
	neg.Y.Negate(1)
	neg.Y.Normalize()

	var diff secp256k1.JacobianPoint
	secp256k1.AddNonConst(&c, &neg, &diff)
	return pointFromJacobian(&diff)
}

func basePoint(blinding *keys.Secret) secp256k1.JacobianPoint {
	var out secp256k1.JacobianPoint
	priv := secp256k1.PrivKeyFromBytes(blinding.Bytes())
	priv.PubKey().AsJacobian(&out)
	return out
}

func amountPoint(amount int64) secp256k1.JacobianPoint {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(amount))
	var k secp256k1.ModNScalar
	k.SetByteSlice(buf[:])

	var h, out secp256k1.JacobianPoint
	parsePoint(keys.NUMSPoint()).AsJacobian(&h)
	secp256k1.ScalarMultNonConst(&k, &h, &out)
	return out
}

func parsePoint(p *keys.Point) *secp256k1.PublicKey {
	// Bytes came from a validated Point, reparsing cannot fail.
	pk, err := secp256k1.ParsePubKey(p.Bytes())
	if err != nil {
		panic(err)
	}
	return pk
}

func pointFromJacobian(j *secp256k1.JacobianPoint) (*keys.Point, error) {
	if (j.X.IsZero() && j.Y.IsZero()) || j.Z.IsZero() {
		return nil, fmt.Errorf("%w: result is the point at infinity", ErrInvalidCommitment)
	}
	j.ToAffine()
	pk := secp256k1.NewPublicKey(&j.X, &j.Y)
	p, err := keys.ValidatePoint(pk.SerializeCompressed())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	return p, nil
}
