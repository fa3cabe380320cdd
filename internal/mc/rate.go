package mc

import (
	"math/big"

	"github.com/offsetnet/creditrouter/internal/amount"
)

// feeOf computes ((x * mul) >> 32) + add using big.Int to avoid overflow
// while x is carried at full u128 width.
func feeOf(x amount.U128, mul, add uint32) amount.U128 {
	xb := new(big.Int).SetUint64(x.Hi)
	xb.Lsh(xb, 64)
	xb.Or(xb, new(big.Int).SetUint64(x.Lo))

	xb.Mul(xb, big.NewInt(int64(mul)))
	xb.Rsh(xb, 32)
	xb.Add(xb, big.NewInt(int64(add)))

	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(xb, mask).Uint64()
	hi := new(big.Int).Rsh(xb, 64).Uint64()
	return amount.U128{Hi: hi, Lo: lo}
}
