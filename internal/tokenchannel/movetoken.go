package tokenchannel

import (
	"bytes"
	"sort"

	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// CurrencyOperations batches the operations that apply to one currency
// within a single move-token (spec §3 MoveToken "operations: list of
// CurrencyOperations").
type CurrencyOperations struct {
	Currency   string
	Operations []mc.Operation
}

// RelayAddress is an opaque relay locator; the relay itself (NAT
// traversal) is out of scope (spec §1), but a channel still carries its
// peer's advertised relay set as part of the move-token envelope.
type RelayAddress string

// MoveToken is the signed wire message that transfers the right-to-send
// and optionally carries operations (spec §3).
type MoveToken struct {
	Operations     []CurrencyOperations
	OptLocalRelays []RelayAddress

	// LocalCurrencies is the sender's current local_currencies set,
	// carried alongside (not folded into) info_hash so the peer's
	// remote_currencies mirrors it without a separate control message
	// (spec §3 "Active currencies are the intersection of
	// local_currencies and remote_currencies"; spec scenario 5 "sends a
	// move-token removing C from local_currencies").
	LocalCurrencies []string

	OldToken  sig.Hash
	InfoHash  sig.Hash
	RandNonce sig.RandNonce
	NewToken  sig.Signature
}

// TotalOps returns the number of individual operations carried across all
// currencies, the quantity max_operations_in_batch bounds.
func (mt *MoveToken) TotalOps() int {
	n := 0
	for _, co := range mt.Operations {
		n += len(co.Operations)
	}
	return n
}

// tokenHash is the fixed-size digest identifying a move-token for replay
// dedup (spec §8 "duplicate delivery of a move-token is a no-op") and for
// use as the next old_token.
func tokenHash(mt *MoveToken) sig.Hash {
	return sig.H(mt.NewToken[:])
}

// TokenHash is the exported form of tokenHash, for callers outside this
// package that need to recognize a retransmitted move-token before it
// ever reaches ReceiveMoveToken (spec §8 "duplicate delivery of a
// move-token is a no-op").
func TokenHash(mt *MoveToken) sig.Hash {
	return tokenHash(mt)
}

// canonicalPkOrder orders a channel's two endpoints lexicographically so
// that both peers hash a move-token's info from the same fixed frame of
// reference, regardless of which side composed it. weAreLow reports
// whether localPk is the lexicographically smaller (low) endpoint.
func canonicalPkOrder(localPk, remotePk sig.PublicKey) (low, high sig.PublicKey, weAreLow bool) {
	if bytes.Compare(localPk[:], remotePk[:]) < 0 {
		return localPk, remotePk, true
	}
	return remotePk, localPk, false
}

// balancesHash canonically hashes the balance of every mutual credit in
// the channel, sorted by currency, feeding info_hash (spec §3 "info_hash
// = H(local_pk || remote_pk || balances_hash || move_token_counter)").
// flip re-expresses a McBalance held from the "high" endpoint's point of
// view into the low endpoint's point of view, since local/remote-relative
// fields (balance sign, pending debts, fee counters) otherwise differ
// between the two sides of the same logical channel.
func balancesHash(credits map[string]*mc.MutualCredit, flip bool) sig.Hash {
	currencies := make([]string, 0, len(credits))
	for c := range credits {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	parts := make([][]byte, 0, len(currencies)*2)
	for _, c := range currencies {
		bal := credits[c].Balance
		parts = append(parts, sig.CanonCurrency(c))
		parts = append(parts, canonBalance(bal, flip))
	}
	return sig.H(parts...)
}

func canonBalance(bal mc.McBalance, flip bool) []byte {
	balance := bal.Balance
	localPending, remotePending := bal.LocalPendingDebt, bal.RemotePendingDebt
	inFees, outFees := bal.InFees, bal.OutFees
	if flip {
		balance = balance.Negate()
		localPending, remotePending = remotePending, localPending
		inFees, outFees = outFees, inFees
	}

	out := make([]byte, 0, 1+16+16+16+8+8)
	if balance.Neg {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, balance.Mag.Bytes()...)
	out = append(out, localPending.Bytes()...)
	out = append(out, remotePending.Bytes()...)
	out = append(out, sig.BE64(inFees)...)
	out = append(out, sig.BE64(outFees)...)
	return out
}

// infoHash computes spec's info_hash for a channel whose mutual credits
// are already in the post-operation state the move-token describes. Both
// sender and receiver must derive the identical hash regardless of role,
// so pubkeys and balances are canonicalized to the lexicographically
// smaller endpoint's frame of reference before hashing.
func infoHash(localPk, remotePk sig.PublicKey, credits map[string]*mc.MutualCredit, counter amount.U128) sig.Hash {
	low, high, weAreLow := canonicalPkOrder(localPk, remotePk)
	return sig.H(low[:], high[:], balancesHash(credits, !weAreLow)[:], counter.Bytes())
}
