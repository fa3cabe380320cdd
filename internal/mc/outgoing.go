package mc

import "github.com/offsetnet/creditrouter/internal/amount"

// Outgoing validates a local proposal of operations against a
// MutualCredit and, for each one that passes, returns the mutation list
// that dispatching it would apply. No mutation is applied by this call;
// the caller (Router, via TokenChannel) commits the mutations only once
// the move-token carrying the operation has actually been composed
// (spec §4.1).
type Outgoing struct {
	MC *MutualCredit
}

// ProposeRequest validates a request we wish to originate or forward.
// Rejection leaves mc untouched; spec's rejection reasons are returned
// verbatim so the Router can classify them (cancel-backwards vs. fatal).
func (o *Outgoing) ProposeRequest(req RequestOp) ([]Mutation, error) {
	mc := o.MC

	if req.Route.IsTrivial() {
		return nil, ErrInvalidRoute
	}
	if _, exists := mc.Local[req.RequestID]; exists {
		return nil, ErrRequestAlreadyExists
	}

	frozen, ok := req.DestPayment.Add(req.LeftFees)
	if !ok {
		return nil, ErrArithmeticOverflow
	}
	newPendingDebt, ok := mc.Balance.LocalPendingDebt.Add(frozen)
	if !ok {
		return nil, ErrArithmeticOverflow
	}

	// balance + local_pending_debt <= remote_max_debt (spec §8 balance
	// bound, checked here before the debt is actually incurred). A
	// negative projected value always satisfies it, since remote_max_debt
	// is non-negative.
	projected := mc.Balance.Balance.Add(amount.FromUnsigned(newPendingDebt))
	if projected.Cmp(amount.FromUnsigned(mc.Balance.RemoteMaxDebt)) > 0 {
		return nil, ErrInsufficientTrust
	}

	pending := &PendingTransaction{
		RequestID:        req.RequestID,
		RouteRemainder:   req.Route,
		DestPayment:      req.DestPayment,
		TotalDestPayment: req.TotalDestPayment,
		InvoiceHash:      req.InvoiceHash,
		Hmac:             req.Hmac,
		SrcHashedLock:    req.SrcHashedLock,
		LeftFees:         req.LeftFees,
	}

	newBalance := mc.Balance
	newBalance.LocalPendingDebt = newPendingDebt

	return []Mutation{
		mutInsertLocal(mc.Currency, pending),
		mutSetBalance(mc.Currency, newBalance),
	}, nil
}

// ProposeResponse validates a response we wish to send back to the peer
// for a request the peer previously sent us (held in our Remote table).
// This is the mirror image of Incoming.ApplyResponse: the credit flows
// the opposite direction because we are the one being paid at this hop.
func (o *Outgoing) ProposeResponse(resp ResponseOp, receivedLeftFees amount.U128) ([]Mutation, error) {
	mc := o.MC

	pending, exists := mc.Remote[resp.RequestID]
	if !exists {
		return nil, ErrResponseWithoutPending
	}

	frozen, ok := pending.DestPayment.Add(pending.LeftFees)
	if !ok {
		return nil, ErrArithmeticOverflow
	}
	newRemoteDebt, ok := mc.Balance.RemotePendingDebt.Sub(frozen)
	if !ok {
		return nil, ErrArithmeticOverflow
	}

	newBalance := mc.Balance
	newBalance.RemotePendingDebt = newRemoteDebt
	newBalance.Balance = newBalance.Balance.Add(amount.FromUnsigned(pending.DestPayment))

	// in_fees += left_fees - received_left_fees (mirror of the out_fees
	// bookkeeping an Incoming Response performs on the paying side).
	earned, ok := pending.LeftFees.Sub(receivedLeftFees)
	if ok {
		newBalance.InFees += loWord(earned)
	}

	return []Mutation{
		mutRemoveRemote(mc.Currency, resp.RequestID),
		mutSetBalance(mc.Currency, newBalance),
	}, nil
}

// ProposeCancel validates a cancel we wish to send back to the peer for a
// request held in our Remote table. No fee is charged; only the frozen
// capacity is released (spec §4.1).
func (o *Outgoing) ProposeCancel(c CancelOp) ([]Mutation, error) {
	mc := o.MC

	pending, exists := mc.Remote[c.RequestID]
	if !exists {
		return nil, ErrResponseWithoutPending
	}

	frozen, ok := pending.DestPayment.Add(pending.LeftFees)
	if !ok {
		return nil, ErrArithmeticOverflow
	}
	newRemoteDebt, ok := mc.Balance.RemotePendingDebt.Sub(frozen)
	if !ok {
		return nil, ErrArithmeticOverflow
	}

	newBalance := mc.Balance
	newBalance.RemotePendingDebt = newRemoteDebt

	return []Mutation{
		mutRemoveRemote(mc.Currency, c.RequestID),
		mutSetBalance(mc.Currency, newBalance),
	}, nil
}

// loWord truncates a U128 that is known (by the checked-arithmetic
// invariant) to fit in 64 bits, for accumulating into the uint64 fee
// counters.
func loWord(u amount.U128) uint64 {
	return u.Lo
}
