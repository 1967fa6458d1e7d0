// snapshot.go - Pool snapshot type and register parsing.
//
// A snapshot is the on-chain-resident state of one pool instance, fetched
// by the external chain client and never mutated here. Register layout:
// R4 holds the ring (Coll[GroupElement], tag 0x13 + VLQ count + 33-byte
// points), R5 the nullifier set (tagged bytes), R6 the denomination
// (Long), R7 the maximum ring size (Int).

package pool

import (
	"fmt"

	"poolcore/internal/keys"
	"poolcore/internal/sigma"
)

// ringTag is the Coll[GroupElement] collection tag.
const ringTag = 0x13

// Snapshot is one pool instance's state at a single point in time.
// Read-only per snapshot; the ring never shrinks or reorders.
type Snapshot struct {
	PoolID         string
	Denomination   int64
	Ring           []*keys.Point
	MaxRingSize    int
	NullifierSet   []byte // tagged wire bytes: format tag + payload
	TokenBalance   int64
	CreationHeight int64
}

// RawSnapshot carries the undecoded register bytes as the chain client
// returns them.
type RawSnapshot struct {
	PoolID         string
	R4             []byte // ring
	R5             []byte // nullifier set
	R6             []byte // denomination (Long)
	R7             []byte // max ring size (Int)
	TokenBalance   int64
	CreationHeight int64
}

// ParseSnapshot decodes a raw snapshot. Every ring entry must be a valid,
// non-banned compressed point: a pool carrying the generator G or the NUMS
// H in its ring is poisoned and is rejected outright.
func ParseSnapshot(raw RawSnapshot) (*Snapshot, error) {
	ring, err := parseRing(raw.R4)
	if err != nil {
		return nil, fmt.Errorf("pool %s R4: %w", raw.PoolID, err)
	}
	denom, err := sigma.DecodeLong(raw.R6)
	if err != nil {
		return nil, fmt.Errorf("pool %s R6: %w", raw.PoolID, err)
	}
	maxRing, err := sigma.DecodeInt(raw.R7)
	if err != nil {
		return nil, fmt.Errorf("pool %s R7: %w", raw.PoolID, err)
	}
	if maxRing <= 0 {
		return nil, fmt.Errorf("%w: pool %s max ring size %d", sigma.ErrProtocolFormat, raw.PoolID, maxRing)
	}
	if len(ring) > int(maxRing) {
		return nil, fmt.Errorf("%w: pool %s ring size %d exceeds maximum %d",
			sigma.ErrProtocolFormat, raw.PoolID, len(ring), maxRing)
	}
	if len(raw.R5) == 0 {
		return nil, fmt.Errorf("%w: pool %s missing nullifier set", sigma.ErrProtocolFormat, raw.PoolID)
	}
	return &Snapshot{
		PoolID:         raw.PoolID,
		Denomination:   denom,
		Ring:           ring,
		MaxRingSize:    int(maxRing),
		NullifierSet:   append([]byte(nil), raw.R5...),
		TokenBalance:   raw.TokenBalance,
		CreationHeight: raw.CreationHeight,
	}, nil
}

func parseRing(r4 []byte) ([]*keys.Point, error) {
	if len(r4) == 0 || r4[0] != ringTag {
		return nil, fmt.Errorf("%w: expected group-element collection", sigma.ErrProtocolFormat)
	}
	count, off, err := sigma.ReadCount(r4, 1)
	if err != nil {
		return nil, err
	}
	ring := make([]*keys.Point, 0, count)
	for i := 0; i < count; i++ {
		if off+keys.PointSize > len(r4) {
			return nil, fmt.Errorf("%w: truncated ring at entry %d", sigma.ErrProtocolFormat, i)
		}
		p, perr := keys.ValidatePoint(r4[off : off+keys.PointSize])
		if perr != nil {
			return nil, fmt.Errorf("ring entry %d: %w", i, perr)
		}
		ring = append(ring, p)
		off += keys.PointSize
	}
	if off != len(r4) {
		return nil, fmt.Errorf("%w: %d trailing bytes after ring", sigma.ErrProtocolFormat, len(r4)-off)
	}
	return ring, nil
}

// EncodeRing serializes a ring back to its register encoding, used when a
// deposit appends a key.
func EncodeRing(ring []*keys.Point) []byte {
	out := sigma.AppendCount([]byte{ringTag}, len(ring))
	for _, p := range ring {
		out = append(out, p.Bytes()...)
	}
	return out
}

// RingContains reports whether the ring already holds the given point.
// Duplicate keys inflate ring size without adding real anonymity.
func (s *Snapshot) RingContains(p *keys.Point) bool {
	for _, member := range s.Ring {
		if member.Equal(p) {
			return true
		}
	}
	return false
}

// IsFull reports whether the ring reached its maximum size.
func (s *Snapshot) IsFull() bool {
	return len(s.Ring) >= s.MaxRingSize
}

// SlotsRemaining returns how many deposits the pool still accepts.
func (s *Snapshot) SlotsRemaining() int {
	if s.IsFull() {
		return 0
	}
	return s.MaxRingSize - len(s.Ring)
}

// NullifierCount returns the number of spent nullifiers when the set's
// format carries them inline (legacy list), or -1 when only a digest is
// known (tree format).
func (s *Snapshot) NullifierCount() int {
	if len(s.NullifierSet) == 0 || s.NullifierSet[0] != ringTag {
		return -1
	}
	count, _, err := sigma.ReadCount(s.NullifierSet, 1)
	if err != nil {
		return -1
	}
	return count
}
