// Package treehash computes the cumulative tree digest of the transparency
// log. The digest is a pure function of the ordered statement hashes, so two
// logs fed the same sequence agree regardless of what else they stored. The
// strategy is swappable behind an interface; the entry schema never sees the
// difference.
package treehash

import (
	"crypto/sha256"
	"errors"
)

const HashSize = sha256.Size

var ErrInvalidHashLen = errors.New("treehash: leaf hash must be 32 bytes")

// Strategy folds an ordered statement-hash history into one digest.
type Strategy interface {
	Name() string
	Fold(hashes [][]byte) ([]byte, error)
}

// Linear chains the history as H(count || h1 || ... || hn): cheap O(n)
// writes, O(n) audit. This matches the original ledger semantics.
type Linear struct{}

func (Linear) Name() string { return "linear-sha256" }

func (Linear) Fold(hashes [][]byte) ([]byte, error) {
	if err := checkLeaves(hashes); err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(headerBytes(uint64(len(hashes))))
	for _, leaf := range hashes {
		h.Write(leaf)
	}
	return h.Sum(nil), nil
}

// RFC6962 builds the Certificate Transparency Merkle root over the same
// leaf sequence, enabling O(log n) inclusion proofs without changing the
// entry schema.
type RFC6962 struct{}

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

func (RFC6962) Name() string { return "rfc6962-sha256" }

func (RFC6962) Fold(hashes [][]byte) ([]byte, error) {
	if err := checkLeaves(hashes); err != nil {
		return nil, err
	}
	return merkleRoot(hashes), nil
}

func merkleRoot(leaves [][]byte) []byte {
	n := len(leaves)
	if n == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}
	if n == 1 {
		sum := sha256.New()
		sum.Write([]byte{leafPrefix})
		sum.Write(leaves[0])
		return sum.Sum(nil)
	}
	k := largestPowerOfTwoBelow(n)
	left := merkleRoot(leaves[:k])
	right := merkleRoot(leaves[k:])
	sum := sha256.New()
	sum.Write([]byte{nodePrefix})
	sum.Write(left)
	sum.Write(right)
	return sum.Sum(nil)
}

func largestPowerOfTwoBelow(n int) int {
	k := 1
	for k*2 < n {
		k *= 2
	}
	return k
}

func checkLeaves(hashes [][]byte) error {
	for _, leaf := range hashes {
		if len(leaf) != HashSize {
			return ErrInvalidHashLen
		}
	}
	return nil
}

func headerBytes(n uint64) []byte {
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(n)
		n >>= 8
	}
	return out
}
