// Package khash provides the stable 32-bit hash used to derive location
// uids. The hash must be identical across platforms and releases since it
// is an on-disk and on-wire contract: journal file names embed it, and
// readers in other processes must resolve the same canonical name to the
// same uid.
package khash

import "github.com/cespare/xxhash/v2"

// HashStr32 returns a stable 32-bit hash of s. Identical inputs always
// produce identical outputs, on every platform and every release of this
// package — callers must never change the folding below.
func HashStr32(s string) uint32 {
	return FoldSeed(s, 0)
}

// FoldSeed hashes s with an additional seed folded into the digest,
// allowing callers to derive distinct-but-deterministic uids from the same
// string.
func FoldSeed(s string, seed uint64) uint32 {
	h := xxhash.Sum64String(s) ^ seed
	// Fold the 64-bit digest into 32 bits rather than truncating, so both
	// halves of the digest influence the result.
	return uint32(h>>32) ^ uint32(h)
}
