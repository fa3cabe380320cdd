package amount

import "math/big"

// Signed is a signed 128-bit-magnitude integer, used for McBalance.Balance:
// spec §3 describes the balance as "signed integer... local ahead if
// positive", while bounds like remote_max_debt are unsigned U128, so
// comparisons between the two need a common width.
type Signed struct {
	Neg bool
	Mag U128
}

// SignedZero is the additive identity.
var SignedZero = Signed{}

// FromInt64 lifts a machine int64 into a Signed.
func FromInt64(v int64) Signed {
	if v >= 0 {
		return Signed{Mag: From64(uint64(v))}
	}
	return Signed{Neg: true, Mag: From64(uint64(-v))}
}

func (s Signed) big() *big.Int {
	b := s.Mag.big()
	if s.Neg {
		b = new(big.Int).Neg(b)
	}
	return b
}

func signedFromBig(b *big.Int) Signed {
	neg := b.Sign() < 0
	abs := new(big.Int).Abs(b)
	return Signed{Neg: neg, Mag: fromBig(abs)}
}

// Add returns s+v.
func (s Signed) Add(v Signed) Signed {
	return signedFromBig(new(big.Int).Add(s.big(), v.big()))
}

// Sub returns s-v.
func (s Signed) Sub(v Signed) Signed {
	return signedFromBig(new(big.Int).Sub(s.big(), v.big()))
}

// Negate returns -s.
func (s Signed) Negate() Signed {
	if s.Mag.IsZero() {
		return s
	}
	return Signed{Neg: !s.Neg, Mag: s.Mag}
}

// Cmp returns -1, 0, or 1 comparing s to v.
func (s Signed) Cmp(v Signed) int {
	return s.big().Cmp(v.big())
}

// GreaterOrEqual reports whether s >= v.
func (s Signed) GreaterOrEqual(v Signed) bool {
	return s.Cmp(v) >= 0
}

// FromUnsigned lifts a non-negative U128 into a Signed.
func FromUnsigned(u U128) Signed {
	return Signed{Mag: u}
}

// String renders s in decimal, for logging.
func (s Signed) String() string {
	return s.big().String()
}
