package sig

import (
	"crypto/sha512"
	"encoding/binary"
)

// H is the canonical hash function used by every signing contract in this
// module: SHA-512/256. It is distinct from both SHA-256 and full SHA-512,
// and deliberately so — collision resistance of SHA-512 with truncated
// output, without the length-extension surface of SHA-256.
func H(parts ...[]byte) Hash {
	h := sha512.New512_256()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashOf is a convenience wrapper for hashing a single byte slice.
func HashOf(b []byte) Hash {
	return H(b)
}

// BE64 renders x as 8 big-endian bytes, the integer encoding used by every
// canonical buffer in this package.
func BE64(x uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], x)
	return b[:]
}

// BE32 renders x as 4 big-endian bytes.
func BE32(x uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], x)
	return b[:]
}

// BE128 renders x (given as hi, lo) as 16 big-endian bytes, used to encode
// u128 quantities (amounts, move_token_counter) into signing buffers.
func BE128(hi, lo uint64) []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], hi)
	binary.BigEndian.PutUint64(b[8:16], lo)
	return b[:]
}
