// Package merkle computes the per-table Blake3 Merkle commitment over row
// content: one leaf per row in insertion order, odd trailing leaves
// duplicated, the root recorded alongside the table in every snapshot.
package merkle

import (
	"lukechampine.com/blake3"

	"zapd/internal/core"
)

// Root is a table's top-level commitment: 32 bytes, the Blake3 hash of its
// row sequence's Merkle tree.
type Root [32]byte

// leaf hashes one row's canonical bytes.
func leaf(rowBytes []byte) [32]byte {
	return blake3.Sum256(rowBytes)
}

func parent(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return blake3.Sum256(buf)
}

// Build computes the Merkle root over rowBytes, one canonical-encoded row
// per leaf, in insertion order. An odd trailing leaf at any level is
// duplicated (paired with itself) rather than promoted unchanged, so every
// level halves cleanly. An empty table's root is the hash of zero leaves:
// blake3 of the empty byte string.
func Build(rowBytes [][]byte) Root {
	if len(rowBytes) == 0 {
		return Root(blake3.Sum256(nil))
	}
	level := make([][32]byte, len(rowBytes))
	for i, rb := range rowBytes {
		level[i] = leaf(rb)
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := range next {
			next[i] = parent(level[2*i], level[2*i+1])
		}
		level = next
	}
	return Root(level[0])
}

// RootOf computes the Merkle root over rows directly, encoding each row's
// canonical (column-name-sorted) bytes before hashing, so the root is
// independent of in-memory map iteration order.
func RootOf(rows []core.Row) Root {
	rowBytes := make([][]byte, len(rows))
	for i, r := range rows {
		rowBytes[i] = r.CanonicalBytes(nil)
	}
	return Build(rowBytes)
}
