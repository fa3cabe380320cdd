// Package amount implements the checked 128-bit unsigned arithmetic used
// for balances, pending debts, fees, and move-token counters throughout
// the mutual-credit and token-channel state machines. U128's Add and Sub
// return an ok bool instead of wrapping, matching spec §4.1's "amounts are
// u128 and all arithmetic is checked — overflow aborts the whole incoming
// move-token as Inconsistent." Inc64 panics on overflow instead, and
// Signed's Add and Sub are unchecked: a result whose magnitude needs more
// than 128 bits keeps only its low 128 bits.
package amount

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// U128 is an unsigned 128-bit integer, stored as big-endian hi/lo halves.
type U128 struct {
	Hi, Lo uint64
}

// Zero is the additive identity.
var Zero = U128{}

// From64 lifts a uint64 into a U128.
func From64(v uint64) U128 {
	return U128{Lo: v}
}

// Add returns u+v and true, or (undefined, false) on overflow.
func (u U128) Add(v U128) (U128, bool) {
	sum := new(big.Int).Add(u.big(), v.big())
	if sum.BitLen() > 128 {
		return U128{}, false
	}
	return fromBig(sum), true
}

// Sub returns u-v and true, or (undefined, false) if v > u.
func (u U128) Sub(v U128) (U128, bool) {
	if u.Cmp(v) < 0 {
		return U128{}, false
	}
	diff := new(big.Int).Sub(u.big(), v.big())
	return fromBig(diff), true
}

// Cmp returns -1, 0, or 1 comparing u to v.
func (u U128) Cmp(v U128) int {
	if u.Hi != v.Hi {
		if u.Hi < v.Hi {
			return -1
		}
		return 1
	}
	if u.Lo != v.Lo {
		if u.Lo < v.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// IsZero reports whether u is zero.
func (u U128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// String renders u in decimal, for logging.
func (u U128) String() string {
	return u.big().String()
}

func (u U128) big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	b.Or(b, new(big.Int).SetUint64(u.Lo))
	return b
}

func fromBig(b *big.Int) U128 {
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(b, mask).Uint64()
	hi := new(big.Int).Rsh(b, 64).Uint64()
	return U128{Hi: hi, Lo: lo}
}

// Bytes renders u as 16 big-endian bytes, the form used in signing buffers.
func (u U128) Bytes() []byte {
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], u.Hi)
	binary.BigEndian.PutUint64(out[8:16], u.Lo)
	return out[:]
}

// Inc64 returns u+1, panicking on overflow; used for move_token_counter,
// which the protocol guarantees never wraps within a channel's lifetime.
func (u U128) Inc64() U128 {
	v, ok := u.Add(From64(1))
	if !ok {
		panic(fmt.Sprintf("move_token_counter overflow at %s", u))
	}
	return v
}
