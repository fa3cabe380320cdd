// Package mc implements the mutual-credit substate of a token channel:
// the per-currency balance, the pending-transaction tables, and the two
// validation engines (Outgoing, Incoming) that decide whether a batch of
// request/response/cancel operations may be applied (spec §4.1).
//
// Grounded on lnwallet/channel.go's update-log validation shape
// (PaymentDescriptor add/settle/fail bookkeeping), generalized from a
// single BTC-denominated commitment log to a per-currency pending table
// keyed by request uid.
package mc

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// Rate is the affine fee function a forwarder charges on an amount it
// forwards: fee(x) = ((x * mul) >> 32) + add.
type Rate struct {
	Mul uint32
	Add uint32
}

// Fee computes the forwarding fee this Rate charges on amount x.
func (r Rate) Fee(x amount.U128) amount.U128 {
	return feeOf(x, r.Mul, r.Add)
}

// McBalance is the per-currency, per-friend signed balance together with
// the two non-negative pending-debt accumulators and the two cumulative
// fee counters (spec §3).
//
// Bound: Outgoing.ProposeRequest admits a Request only while
// Balance + LocalPendingDebt, counting the new request, stays at or below
// RemoteMaxDebt. Incoming.ApplyRequest checks no debt bound.
type McBalance struct {
	Balance          amount.Signed
	LocalPendingDebt amount.U128
	RemotePendingDebt amount.U128
	InFees           uint64
	OutFees          uint64

	LocalMaxDebt  amount.U128
	RemoteMaxDebt amount.U128
}

// PendingTransaction is an in-flight request awaiting a response or
// cancel, stored by request uid in either the local or remote pending
// table of a MutualCredit (spec §3).
type PendingTransaction struct {
	RequestID        sig.Uid
	RouteRemainder   route.Route
	DestPayment      amount.U128
	TotalDestPayment amount.U128
	InvoiceHash      sig.Hash
	Hmac             [32]byte
	SrcHashedLock    [32]byte
	LeftFees         amount.U128
}

// MutualCredit is the complete per-currency substate of a token channel:
// the balance and the two pending-transaction tables, one for requests we
// originated or forwarded (Local) and one for requests the peer
// originated (Remote).
type MutualCredit struct {
	Currency string
	Balance  McBalance
	Local    map[sig.Uid]*PendingTransaction
	Remote   map[sig.Uid]*PendingTransaction
}

// New creates an empty MutualCredit for currency with the given max-debt
// bounds, as happens when both sides of a channel add the currency
// (spec §3 "Lifecycles").
func New(currency string, localMaxDebt, remoteMaxDebt amount.U128) *MutualCredit {
	return &MutualCredit{
		Currency: currency,
		Balance: McBalance{
			LocalMaxDebt:  localMaxDebt,
			RemoteMaxDebt: remoteMaxDebt,
		},
		Local:  make(map[sig.Uid]*PendingTransaction),
		Remote: make(map[sig.Uid]*PendingTransaction),
	}
}

// IsEmpty reports whether the mutual credit has no pending transactions
// in either direction, one of the two conditions (alongside both sides
// having removed the currency) under which it may be destroyed.
func (mc *MutualCredit) IsEmpty() bool {
	return len(mc.Local) == 0 && len(mc.Remote) == 0
}

// SumLocalPending sums DestPayment+LeftFees over the local pending table,
// which spec §3's invariant requires to equal Balance.LocalPendingDebt.
func (mc *MutualCredit) SumLocalPending() amount.U128 {
	return sumPending(mc.Local)
}

// SumRemotePending sums DestPayment+LeftFees over the remote pending
// table, which spec §3's invariant requires to equal
// Balance.RemotePendingDebt.
func (mc *MutualCredit) SumRemotePending() amount.U128 {
	return sumPending(mc.Remote)
}

func sumPending(table map[sig.Uid]*PendingTransaction) amount.U128 {
	total := amount.Zero
	for _, p := range table {
		contrib, ok := p.DestPayment.Add(p.LeftFees)
		if !ok {
			// Unreachable under the checked-arithmetic invariant:
			// this sum was already validated on insertion.
			continue
		}
		total, ok = total.Add(contrib)
		if !ok {
			continue
		}
	}
	return total
}
