package fudge

import "github.com/fudgemsg/fudge/internal/hashing"

func contentHash(b []byte) uint64 {
	return hashing.Sum64(b)
}
