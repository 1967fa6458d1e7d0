// authenticator.go - Nullifier-set proof generation over the two wire
// formats of the authenticated set.
//
// The snapshot's nullifier field is tagged bytes. Tag 0x64 is the current
// tree-backed format: a 33-byte digest followed by the fixed header
// 0x07 0x21 0x00 (flags, key length 33, no value length). Tag 0x13 is the
// legacy flat list kept for older pool instances: a VLQ count followed by
// the 33-byte key images inline. The format is decided once at parse time.
//
// A NullifierProof is single-use and tied to exactly one snapshot digest; a
// stale snapshot invalidates it.

package nullifier

import (
	"errors"
	"fmt"

	"poolcore/internal/keys"
	"poolcore/internal/sigma"
)

// Wire format tags.
const (
	tagTree   = 0x64
	tagLegacy = 0x13
)

// Fixed tree header: flags 0x07, key length 33, no value length.
var treeHeader = []byte{0x07, 0x21, 0x00}

// LegacyInsertProof is the trivial proof byte emitted for the flat-list
// format, where the resulting digest carries the whole set.
var LegacyInsertProof = []byte{0x00}

var (
	// ErrDuplicateNullifier signals an attempted re-withdrawal: the key
	// image is already in the set. Fatal; a real double-spend or replay.
	ErrDuplicateNullifier = errors.New("duplicate nullifier")

	// ErrStaleSnapshot signals that the set advanced past the snapshot the
	// caller holds. Recoverable: refetch and retry with bounded attempts.
	ErrStaleSnapshot = errors.New("stale snapshot")

	// ErrInvalidProof reports proof bytes that cannot be interpreted.
	ErrInvalidProof = errors.New("invalid insert proof")
)

// Format identifies the wire representation of the authenticated set.
type Format int

const (
	// FormatTree is the current tree-backed authenticated structure.
	FormatTree Format = iota
	// FormatLegacy is the backward-compatible flat membership list.
	FormatLegacy
)

// String names the format.
func (f Format) String() string {
	switch f {
	case FormatTree:
		return "tree"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Proof is a cryptographic witness that a key image can be inserted into
// the current set, together with the set's digest after insertion.
type Proof struct {
	InsertProof     []byte
	ResultingDigest []byte
}

// Authenticator generates insert proofs for one pool's nullifier set. It
// caches locally observed leaves; the cache enables fast local rejection
// but never substitutes for the external verifier's authoritative check.
//
// Not safe for concurrent use; callers serialize access per pool.
type Authenticator struct {
	format Format
	tree   *tree    // FormatTree
	legacy [][]byte // FormatLegacy, insertion order
}

// NewTree returns an authenticator over an empty tree-format set.
func NewTree() *Authenticator {
	return &Authenticator{format: FormatTree, tree: newTree()}
}

// NewLegacy returns an authenticator over an empty legacy-format set.
func NewLegacy() *Authenticator {
	return &Authenticator{format: FormatLegacy}
}

// ParseSet dispatches on the leading format tag of a snapshot's nullifier
// field. A tree set parses only if its digest matches the authenticator's
// local knowledge, so ParseSet is used to bootstrap a session from a fresh
// pool (empty tree) or a legacy list (fully inline).
func ParseSet(wire []byte) (*Authenticator, error) {
	if len(wire) == 0 {
		return nil, fmt.Errorf("%w: empty nullifier set bytes", sigma.ErrProtocolFormat)
	}
	switch wire[0] {
	case tagTree:
		if len(wire) != 1+DigestSize+len(treeHeader) {
			return nil, fmt.Errorf("%w: tree set must be %d bytes, got %d",
				sigma.ErrProtocolFormat, 1+DigestSize+len(treeHeader), len(wire))
		}
		a := NewTree()
		if !digestsEqual(wire[1:1+DigestSize], a.Digest()) {
			return nil, fmt.Errorf("%w: tree digest does not match empty set; leaves unknown", ErrStaleSnapshot)
		}
		return a, nil
	case tagLegacy:
		count, off, err := sigma.ReadCount(wire, 1)
		if err != nil {
			return nil, err
		}
		a := NewLegacy()
		for i := 0; i < count; i++ {
			if off+keys.PointSize > len(wire) {
				return nil, fmt.Errorf("%w: truncated legacy list at entry %d", sigma.ErrProtocolFormat, i)
			}
			a.legacy = append(a.legacy, append([]byte(nil), wire[off:off+keys.PointSize]...))
			off += keys.PointSize
		}
		if off != len(wire) {
			return nil, fmt.Errorf("%w: %d trailing bytes after legacy list", sigma.ErrProtocolFormat, len(wire)-off)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown nullifier set tag 0x%02x", sigma.ErrProtocolFormat, wire[0])
	}
}

// SnapshotDigest extracts the set digest a snapshot's nullifier field
// commits to, without reconstructing the set: the 33-byte root digest for
// the tree format, the full serialized list for the legacy format.
func SnapshotDigest(wire []byte) ([]byte, error) {
	if len(wire) == 0 {
		return nil, fmt.Errorf("%w: empty nullifier set bytes", sigma.ErrProtocolFormat)
	}
	switch wire[0] {
	case tagTree:
		if len(wire) < 1+DigestSize {
			return nil, fmt.Errorf("%w: tree set shorter than its digest", sigma.ErrProtocolFormat)
		}
		return append([]byte(nil), wire[1:1+DigestSize]...), nil
	case tagLegacy:
		return append([]byte(nil), wire...), nil
	default:
		return nil, fmt.Errorf("%w: unknown nullifier set tag 0x%02x", sigma.ErrProtocolFormat, wire[0])
	}
}

// Format returns the set's wire format.
func (a *Authenticator) Format() Format {
	return a.format
}

// Size returns the number of locally known nullifiers.
func (a *Authenticator) Size() int {
	if a.format == FormatTree {
		return a.tree.size()
	}
	return len(a.legacy)
}

// Digest returns the current 33-byte digest for the tree format, or the
// serialized list for the legacy format (whose wire is its own digest).
func (a *Authenticator) Digest() []byte {
	if a.format == FormatTree {
		return digestFromRoot(a.tree.root())
	}
	return a.legacyWire()
}

// WireBytes returns the full tagged snapshot encoding of the set.
func (a *Authenticator) WireBytes() []byte {
	if a.format == FormatTree {
		out := append([]byte{tagTree}, a.Digest()...)
		return append(out, treeHeader...)
	}
	return a.legacyWire()
}

func (a *Authenticator) legacyWire() []byte {
	out := sigma.AppendCount([]byte{tagLegacy}, len(a.legacy))
	for _, k := range a.legacy {
		out = append(out, k...)
	}
	return out
}

// legacyWireWith serializes the list as it would look with one extra entry
// appended, without modifying the list.
func (a *Authenticator) legacyWireWith(extra []byte) []byte {
	out := sigma.AppendCount([]byte{tagLegacy}, len(a.legacy)+1)
	for _, k := range a.legacy {
		out = append(out, k...)
	}
	return append(out, extra...)
}

// CheckMembershipLocally reports whether the key image is in the locally
// cached set. Best effort: a false result does not prove absence for a
// tree whose leaves were observed elsewhere.
func (a *Authenticator) CheckMembershipLocally(keyImage *keys.Point) bool {
	raw := keyImage.Bytes()
	if a.format == FormatTree {
		return a.tree.contains(raw)
	}
	for _, k := range a.legacy {
		if digestsEqual(k, raw) {
			return true
		}
	}
	return false
}

// GenerateInsertProof produces the witness that keyImage can be inserted
// into the set the caller's snapshot describes, plus the digest after
// insertion. It never modifies local state: the insertion becomes part of
// the session only through CommitInsert, once the caller's remaining gates
// have passed. snapshotDigest must match the authenticator's current
// digest exactly; a mismatch means another deposit or withdrawal advanced
// the set first.
func (a *Authenticator) GenerateInsertProof(snapshotDigest []byte, keyImage *keys.Point) (*Proof, error) {
	if !digestsEqual(snapshotDigest, a.Digest()) {
		return nil, fmt.Errorf("%w: snapshot digest %x, latest known %x", ErrStaleSnapshot, snapshotDigest, a.Digest())
	}
	if a.CheckMembershipLocally(keyImage) {
		return nil, fmt.Errorf("%w: key image %s already withdrawn", ErrDuplicateNullifier, keyImage)
	}
	raw := keyImage.Bytes()
	if a.format == FormatLegacy {
		return &Proof{
			InsertProof:     append([]byte(nil), LegacyInsertProof...),
			ResultingDigest: a.legacyWireWith(raw),
		}, nil
	}
	proof := a.tree.proveInsert(raw)
	newRoot, err := replayInsert(a.tree.root(), raw, proof)
	if err != nil {
		return nil, err
	}
	return &Proof{
		InsertProof:     proof,
		ResultingDigest: digestFromRoot(newRoot),
	}, nil
}

// CommitInsert records keyImage as spent in the local set. Call it only
// once the assembled withdrawal passed every remaining gate; a rejected or
// dry-run assembly must leave the session untouched so later attempts
// against the same snapshot still line up.
func (a *Authenticator) CommitInsert(keyImage *keys.Point) {
	if a.CheckMembershipLocally(keyImage) {
		return
	}
	raw := keyImage.Bytes()
	if a.format == FormatLegacy {
		a.legacy = append(a.legacy, append([]byte(nil), raw...))
		return
	}
	a.tree.insert(raw)
}

// VerifyInsert checks a tree-format insert proof from the digest alone and
// returns the resulting digest. This is the contract an independent
// authority holds: (prior digest, key image, proof) -> new digest or
// failure. It needs no access to the prover's leaves.
func VerifyInsert(priorDigest []byte, keyImage *keys.Point, proof []byte) ([]byte, error) {
	priorRoot, err := rootFromDigest(priorDigest)
	if err != nil {
		return nil, err
	}
	newRoot, err := replayInsert(priorRoot, keyImage.Bytes(), proof)
	if err != nil {
		return nil, err
	}
	return digestFromRoot(newRoot), nil
}
