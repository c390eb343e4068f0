// Package hashing wraps github.com/dchest/siphash with the fixed key
// Message.Hash uses for content digests.
package hashing

import "github.com/dchest/siphash"

// Fixed siphash key. A content digest for deduplicating identical
// sub-structures within a single process run, not a security primitive, so
// a fixed key (rather than a random per-process one) keeps hashes stable
// across calls and across processes comparing the same bytes.
const (
	key0 = 0x6675646765206d73
	key1 = 0x67206b6579203020
)

func Sum64(b []byte) uint64 {
	return siphash.Hash(key0, key1, b)
}
