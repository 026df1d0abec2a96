// Package fingerprint folds the numeric outputs of a simulation into a single
// 64-bit diagnostic value. The fold is deterministic and documented; it is a
// cheap fingerprint for comparing runs, not a collision-resistant hash.
package fingerprint

import "math/bits"

// Fold XORs the values together in argument order.
func Fold(vals ...uint64) uint64 {
	var out uint64
	for _, v := range vals {
		out ^= v
	}
	return out
}

// FoldRotated XORs each value after rotating it left by i*rotate bits, where
// i is its position. Spreading the fields across the word keeps small values
// from cancelling each other out.
func FoldRotated(rotate int, vals ...uint64) uint64 {
	var out uint64
	for i, v := range vals {
		out ^= bits.RotateLeft64(v, i*rotate%64)
	}
	return out
}
