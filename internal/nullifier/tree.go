// tree.go - Sparse-merkle authenticated set over blake2b-256.
//
// The set stores 33-byte key images at the leaves of a depth-256 binary
// tree addressed by blake2b-256(key). Empty subtrees hash to a fixed
// per-height default, so an insert proof only needs the non-default
// siblings along the key's path:
//
//	proof = version(1) || sibling bitmap(32, root->leaf) || siblings(32 each)
//
// An independent verifier holding only the prior digest replays the path
// twice: folding an empty leaf must reproduce the prior root (absence),
// folding the new leaf yields the resulting root. The 33-byte digest is
// root(32) || height byte, kept for wire compatibility; the height byte is
// reserved and always zero for this format.

package nullifier

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	treeDepth    = 256
	proofVersion = 0x01
	// DigestSize is the authenticated-set digest length: 32-byte root
	// plus one height byte.
	DigestSize = 33
)

// emptyHash[h] is the hash of an empty subtree of height h.
var emptyHash = buildEmptyHashes()

func buildEmptyHashes() [][32]byte {
	table := make([][32]byte, treeDepth+1)
	for h := 1; h <= treeDepth; h++ {
		table[h] = nodeHash(table[h-1], table[h-1])
	}
	return table
}

func leafHash(key []byte) [32]byte {
	return blake2b.Sum256(append([]byte{0x00}, key...))
}

func nodeHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 65)
	buf = append(buf, 0x01)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return blake2b.Sum256(buf)
}

// pathOf addresses a key within the tree.
func pathOf(key []byte) [32]byte {
	return blake2b.Sum256(key)
}

func pathBit(path [32]byte, level int) byte {
	return (path[level/8] >> (7 - uint(level%8))) & 1
}

type leafEntry struct {
	path [32]byte
	key  []byte
}

// tree is the prover-side state: the full leaf set. Pool nullifier sets are
// small (bounded by the ring size), so roots are recomputed on demand.
type tree struct {
	leaves map[[32]byte][]byte
}

func newTree() *tree {
	return &tree{leaves: make(map[[32]byte][]byte)}
}

func (t *tree) contains(key []byte) bool {
	_, ok := t.leaves[pathOf(key)]
	return ok
}

func (t *tree) insert(key []byte) {
	t.leaves[pathOf(key)] = append([]byte(nil), key...)
}

func (t *tree) size() int {
	return len(t.leaves)
}

func (t *tree) entries() []leafEntry {
	out := make([]leafEntry, 0, len(t.leaves))
	for p, k := range t.leaves {
		out = append(out, leafEntry{path: p, key: k})
	}
	return out
}

func (t *tree) root() [32]byte {
	return subtreeHash(t.entries(), 0)
}

// subtreeHash hashes the subtree at the given level containing items.
func subtreeHash(items []leafEntry, level int) [32]byte {
	if len(items) == 0 {
		return emptyHash[treeDepth-level]
	}
	if level == treeDepth {
		return leafHash(items[0].key)
	}
	var left, right []leafEntry
	for _, it := range items {
		if pathBit(it.path, level) == 0 {
			left = append(left, it)
		} else {
			right = append(right, it)
		}
	}
	return nodeHash(subtreeHash(left, level+1), subtreeHash(right, level+1))
}

// proveInsert builds the insert proof for key against the current leaf set.
// The key must not already be present.
func (t *tree) proveInsert(key []byte) []byte {
	path := pathOf(key)
	current := t.entries()
	siblings := make([][32]byte, treeDepth)
	for level := 0; level < treeDepth; level++ {
		var same, other []leafEntry
		for _, it := range current {
			if pathBit(it.path, level) == pathBit(path, level) {
				same = append(same, it)
			} else {
				other = append(other, it)
			}
		}
		siblings[level] = subtreeHash(other, level+1)
		current = same
	}

	var bitmap [32]byte
	var body []byte
	for level, sib := range siblings {
		if sib != emptyHash[treeDepth-1-level] {
			bitmap[level/8] |= 1 << (7 - uint(level%8))
			body = append(body, sib[:]...)
		}
	}
	proof := make([]byte, 0, 1+32+len(body))
	proof = append(proof, proofVersion)
	proof = append(proof, bitmap[:]...)
	return append(proof, body...)
}

// foldPath recomputes the root from a leaf value and the path siblings.
func foldPath(path [32]byte, siblings [][32]byte, leaf [32]byte) [32]byte {
	cur := leaf
	for level := treeDepth - 1; level >= 0; level-- {
		if pathBit(path, level) == 1 {
			cur = nodeHash(siblings[level], cur)
		} else {
			cur = nodeHash(cur, siblings[level])
		}
	}
	return cur
}

// expandProof splits a proof blob into the full sibling vector.
func expandProof(proof []byte) ([][32]byte, error) {
	if len(proof) < 33 || proof[0] != proofVersion {
		return nil, fmt.Errorf("%w: bad insert proof header", ErrInvalidProof)
	}
	bitmap := proof[1:33]
	body := proof[33:]
	siblings := make([][32]byte, treeDepth)
	off := 0
	for level := 0; level < treeDepth; level++ {
		if bitmap[level/8]>>(7-uint(level%8))&1 == 1 {
			if off+32 > len(body) {
				return nil, fmt.Errorf("%w: truncated insert proof", ErrInvalidProof)
			}
			copy(siblings[level][:], body[off:off+32])
			off += 32
		} else {
			siblings[level] = emptyHash[treeDepth-1-level]
		}
	}
	if off != len(body) {
		return nil, fmt.Errorf("%w: %d trailing proof bytes", ErrInvalidProof, len(body)-off)
	}
	return siblings, nil
}

// replayInsert verifies an insert proof against a prior root and returns
// the resulting root. Fails when the absence replay does not reach the
// prior root, which covers both stale roots and already-present keys.
func replayInsert(priorRoot [32]byte, key []byte, proof []byte) ([32]byte, error) {
	siblings, err := expandProof(proof)
	if err != nil {
		return [32]byte{}, err
	}
	path := pathOf(key)
	if got := foldPath(path, siblings, emptyHash[0]); got != priorRoot {
		return [32]byte{}, fmt.Errorf("%w: absence replay does not match prior digest", ErrStaleSnapshot)
	}
	return foldPath(path, siblings, leafHash(key)), nil
}

func digestFromRoot(root [32]byte) []byte {
	d := make([]byte, 0, DigestSize)
	d = append(d, root[:]...)
	return append(d, 0x00)
}

func rootFromDigest(digest []byte) ([32]byte, error) {
	var root [32]byte
	if len(digest) != DigestSize {
		return root, fmt.Errorf("%w: digest must be %d bytes, got %d", ErrInvalidProof, DigestSize, len(digest))
	}
	copy(root[:], digest[:32])
	return root, nil
}

func digestsEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}
