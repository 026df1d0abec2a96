// Package bitset provides a fixed-size bit map used as a success mask for
// batched kernel runs.
package bitset

import "math/bits"

// New allocates a BitSet able to hold size bits, all clear.
func New(size uint64) BitSet {
	words := (size + 63) / 64
	return make(BitSet, words)
}

type BitSet []uint64

func (b BitSet) IsSet(index uint64) bool {
	mask := uint64(1) << (index % 64)
	return b[index/64]&mask != 0
}

func (b BitSet) Set(index uint64) {
	b[index/64] |= uint64(1) << (index % 64)
}

func (b BitSet) Unset(index uint64) {
	b[index/64] &^= uint64(1) << (index % 64)
}

func (b BitSet) Clear() {
	for i := range b {
		b[i] = 0
	}
}

// Count returns the number of set bits.
func (b BitSet) Count() int {
	total := 0
	for _, word := range b {
		total += bits.OnesCount64(word)
	}
	return total
}
