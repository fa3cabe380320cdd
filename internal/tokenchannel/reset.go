package tokenchannel

import (
	"bytes"

	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// ResetBalance is the per-currency snapshot a ResetTerms proposes to
// resume from: the point balance with remote_pending_debt folded in, plus
// the fee counters carried across the reset untouched (spec §3).
type ResetBalance struct {
	Balance amount.Signed
	InFees  uint64
	OutFees uint64
}

// ResetTerms is a signed proposal to restart a channel from a stated
// balance snapshot after an inconsistency (spec §3, §4.2).
type ResetTerms struct {
	ResetToken       sig.Signature
	MoveTokenCounter amount.U128
	ResetBalances    map[string]ResetBalance
}

// buildResetTerms folds remote_pending_debt into the point balance for
// every currency, keeping in_fees/out_fees untouched, and signs the
// result (spec §4.2 "emit local reset terms fixing a new
// move_token_counter = previous + 1 and the current ResetBalance per
// currency").
func buildResetTerms(signer sig.Signer, localPk, remotePk sig.PublicKey,
	credits map[string]*mc.MutualCredit, previousCounter amount.U128) (ResetTerms, error) {

	newCounter := previousCounter.Inc64()

	balances := make(map[string]ResetBalance, len(credits))
	for currency, credit := range credits {
		folded := credit.Balance.Balance.Sub(amount.FromUnsigned(credit.Balance.RemotePendingDebt))
		balances[currency] = ResetBalance{
			Balance: folded,
			InFees:  credit.Balance.InFees,
			OutFees: credit.Balance.OutFees,
		}
	}

	buf := sig.ResetTokenSignBuffer(localPk, remotePk, newCounter)
	digest := sig.H(buf)
	token, err := signer.SignCompact(digest)
	if err != nil {
		return ResetTerms{}, err
	}

	return ResetTerms{
		ResetToken:       token,
		MoveTokenCounter: newCounter,
		ResetBalances:    balances,
	}, nil
}

// LowerToken reports whether a's ResetToken is lexicographically smaller
// than b's: spec §4.2 "the side whose reset_token is lexicographically
// smaller must be the first to re-send a move-token."
func LowerToken(a, b ResetTerms) bool {
	return bytes.Compare(a.ResetToken[:], b.ResetToken[:]) < 0
}

// reconstituteFromReset builds fresh, empty-pending MutualCredits from an
// agreed ResetTerms, used when resuming a channel after a reset (spec
// §4.2 "reconstructing active currencies from the agreed reset_balances";
// §4.4 "the channel re-enters consistent operation with empty pending
// tables and balances taken from the agreed reset_balances").
func reconstituteFromReset(terms ResetTerms, localMaxDebts, remoteMaxDebts map[string]amount.U128) map[string]*mc.MutualCredit {
	out := make(map[string]*mc.MutualCredit, len(terms.ResetBalances))
	for currency, rb := range terms.ResetBalances {
		credit := mc.New(currency, localMaxDebts[currency], remoteMaxDebts[currency])
		credit.Balance.Balance = rb.Balance
		credit.Balance.InFees = rb.InFees
		credit.Balance.OutFees = rb.OutFees
		out[currency] = credit
	}
	return out
}
