package util

import "github.com/dchest/siphash"

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString generates a hash value for a string with a seed using
// SipHash-2-4. The server uses it to map database names to shard ids, so the
// result must stay stable.
func HashString(s string, seed uint64) uint64 {
	return siphash.Hash(seed, 0, []byte(s))
}
