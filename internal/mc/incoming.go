package mc

import "github.com/offsetnet/creditrouter/internal/amount"

// Incoming applies operations received inside a peer's move-token to a
// MutualCredit (spec §4.1). Any failure here is fatal to the whole
// incoming move-token: the caller must transition the channel to
// Inconsistent rather than apply a partial batch.
type Incoming struct {
	MC *MutualCredit
}

// ApplyRequest processes a Request the peer sent us, charging our own
// forwarding rate against the carried LeftFees. If the fee would make
// LeftFees negative, no mutation is produced and the caller must instead
// emit a local Cancel back to the peer (spec §4.1). On success it also
// returns the PendingTransaction just inserted into mc.Remote: its
// LeftFees is already leftFeesPrime, the rate-reduced budget, which the
// caller must use to build the RequestOp it forwards to the next hop
// rather than re-forwarding op verbatim — otherwise every downstream hop
// re-derives its cut from the original, un-reduced budget instead of
// what upstream hops actually left behind.
func (in *Incoming) ApplyRequest(op RequestOp, ourRate Rate) ([]Mutation, *PendingTransaction, *CancelOp, error) {
	mc := in.MC

	if op.Route.IsTrivial() {
		return nil, nil, nil, ErrInvalidRoute
	}
	if _, exists := mc.Remote[op.RequestID]; exists {
		return nil, nil, nil, ErrDuplicateRequestID
	}

	fee := ourRate.Fee(op.DestPayment)
	leftFeesPrime, ok := op.LeftFees.Sub(fee)
	if !ok {
		// Fee exceeds the remaining budget: reject via a Cancel rather
		// than aborting the whole move-token.
		return nil, nil, &CancelOp{RequestID: op.RequestID}, nil
	}

	frozen, ok := op.DestPayment.Add(leftFeesPrime)
	if !ok {
		return nil, nil, nil, ErrArithmeticOverflow
	}
	newRemoteDebt, ok := mc.Balance.RemotePendingDebt.Add(frozen)
	if !ok {
		return nil, nil, nil, ErrArithmeticOverflow
	}

	pending := &PendingTransaction{
		RequestID:        op.RequestID,
		RouteRemainder:   op.Route,
		DestPayment:      op.DestPayment,
		TotalDestPayment: op.TotalDestPayment,
		InvoiceHash:      op.InvoiceHash,
		Hmac:             op.Hmac,
		SrcHashedLock:    op.SrcHashedLock,
		LeftFees:         leftFeesPrime,
	}

	newBalance := mc.Balance
	newBalance.RemotePendingDebt = newRemoteDebt

	return []Mutation{
		mutInsertRemote(mc.Currency, pending),
		mutSetBalance(mc.Currency, newBalance),
	}, pending, nil, nil
}

// ApplyResponse processes a Response the peer sent us for a request we
// originated or forwarded (held in our Local table): the peer has
// confirmed the payment completed downstream, so we debit our balance by
// the amount paid and release the frozen local pending debt (spec §4.1).
func (in *Incoming) ApplyResponse(op ResponseOp, receivedLeftFees amount.U128) ([]Mutation, *PendingTransaction, error) {
	mc := in.MC

	pending, exists := mc.Local[op.RequestID]
	if !exists {
		return nil, nil, ErrResponseWithoutPending
	}

	frozen, ok := pending.DestPayment.Add(pending.LeftFees)
	if !ok {
		return nil, nil, ErrArithmeticOverflow
	}
	newLocalDebt, ok := mc.Balance.LocalPendingDebt.Sub(frozen)
	if !ok {
		return nil, nil, ErrArithmeticOverflow
	}

	newBalance := mc.Balance
	newBalance.LocalPendingDebt = newLocalDebt
	newBalance.Balance = newBalance.Balance.Sub(amount.FromUnsigned(pending.DestPayment))

	earned, ok := pending.LeftFees.Sub(receivedLeftFees)
	if ok {
		newBalance.OutFees += loWord(earned)
	}

	return []Mutation{
		mutRemoveLocal(mc.Currency, op.RequestID),
		mutSetBalance(mc.Currency, newBalance),
	}, pending, nil
}

// ApplyCancel processes a Cancel the peer sent us for a request held in
// our Local table: the frozen capacity is released with no fee charged
// (spec §4.1). A cancel for a request that already completed (no longer
// pending) is rejected, per spec's "a cancel for a response that has
// already arrived is rejected."
func (in *Incoming) ApplyCancel(op CancelOp) ([]Mutation, *PendingTransaction, error) {
	mc := in.MC

	pending, exists := mc.Local[op.RequestID]
	if !exists {
		return nil, nil, ErrCancelAfterResponse
	}

	frozen, ok := pending.DestPayment.Add(pending.LeftFees)
	if !ok {
		return nil, nil, ErrArithmeticOverflow
	}
	newLocalDebt, ok := mc.Balance.LocalPendingDebt.Sub(frozen)
	if !ok {
		return nil, nil, ErrArithmeticOverflow
	}

	newBalance := mc.Balance
	newBalance.LocalPendingDebt = newLocalDebt

	return []Mutation{
		mutRemoveLocal(mc.Currency, op.RequestID),
		mutSetBalance(mc.Currency, newBalance),
	}, pending, nil
}
