// Package merkle implements the binary hash tree that batches many 32-byte
// commitments into one root, with O(log n) inclusion proofs.
//
// Tree shape contract (prover and verifier MUST agree bit-for-bit):
//   - leaves are 32-byte digests; insertion order determines leaf index
//   - internal node = SHA256(left || right)
//   - a level with an odd node count duplicates its last node
//     ("duplicate-last"; the single node is never promoted unpaired)
//
// A Tree is frozen at construction: there is no append operation, so proofs
// issued against it can never be invalidated by later writes. Concurrent leaf
// collection happens in a Batcher, which hands out point-in-time snapshots.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"xdao.co/lcm/digest"
)

var (
	ErrEmptyTree       = errors.New("merkle: empty leaf set")
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
	ErrLeafSize        = errors.New("merkle: leaf is not 32 bytes")
)

// Tree is an immutable Merkle tree over an ordered leaf set.
type Tree struct {
	// levels[0] is the leaf level; levels[len-1] has exactly one node, the root.
	levels [][][]byte
}

// Build constructs a tree over leaves, which must each be exactly 32 bytes.
// The leaf slices are copied; callers may reuse their buffers.
func Build(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	level := make([][]byte, len(leaves))
	for i, l := range leaves {
		if len(l) != digest.Size {
			return nil, fmt.Errorf("%w (index %d, %d bytes)", ErrLeafSize, i, len(l))
		}
		level[i] = append([]byte(nil), l...)
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left // duplicate-last
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, nodeSum(left, right))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Root returns a copy of the tree root. For a single-leaf tree the root is
// the leaf itself (no combination step).
func (t *Tree) Root() []byte {
	top := t.levels[len(t.levels)-1][0]
	return append([]byte(nil), top...)
}

// Proof returns the sibling hashes on the path from leaf index to the root,
// ordered bottom-up. A single-leaf tree yields an empty proof.
func (t *Tree) Proof(index int) ([][]byte, error) {
	n := t.LeafCount()
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w (index %d, %d leaves)", ErrIndexOutOfRange, index, n)
	}

	proof := make([][]byte, 0, len(t.levels)-1)
	i := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sib := i ^ 1
		if sib >= len(level) {
			sib = i // odd level: the node is paired with itself
		}
		proof = append(proof, append([]byte(nil), level[sib]...))
		i >>= 1
	}
	return proof, nil
}

// VerifyProof recomputes the root from a leaf, its inclusion proof, and its
// index, and reports whether it equals root.
//
// Bit i of index selects the operand order at level i: a zero bit means the
// running hash is the left operand. The function is stateless; a verifier
// never needs the original leaf set.
func VerifyProof(leaf []byte, proof [][]byte, root []byte, index int) bool {
	if len(leaf) != digest.Size || len(root) != digest.Size || index < 0 {
		return false
	}
	h := leaf
	i := index
	for _, sib := range proof {
		if len(sib) != digest.Size {
			return false
		}
		if i&1 == 0 {
			h = nodeSum(h, sib)
		} else {
			h = nodeSum(sib, h)
		}
		i >>= 1
	}
	// Any index bits beyond the proof length would place the leaf outside the
	// tree the proof describes.
	if i != 0 {
		return false
	}
	return bytes.Equal(h, root)
}

func nodeSum(left, right []byte) []byte {
	h := sha256.New()
	_, _ = h.Write(left)
	_, _ = h.Write(right)
	return h.Sum(nil)
}

// Batcher collects leaves from concurrent producers and freezes them into
// trees. Appends made after a Snapshot land in the next batch.
type Batcher struct {
	mu     sync.Mutex
	leaves [][]byte
}

// Append adds a leaf to the pending batch and returns its index within it.
func (b *Batcher) Append(leaf []byte) (int, error) {
	if len(leaf) != digest.Size {
		return 0, ErrLeafSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves = append(b.leaves, append([]byte(nil), leaf...))
	return len(b.leaves) - 1, nil
}

// Len returns the number of pending leaves.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.leaves)
}

// Snapshot freezes the pending leaves into a new Tree and starts a new batch.
// Returns ErrEmptyTree when nothing is pending.
func (b *Batcher) Snapshot() (*Tree, error) {
	b.mu.Lock()
	leaves := b.leaves
	b.leaves = nil
	b.mu.Unlock()

	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	return Build(leaves)
}
