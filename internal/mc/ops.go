package mc

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// OpKind tags which of the three hop-protocol operations a CurrencyOp is.
type OpKind uint8

const (
	OpRequest OpKind = iota
	OpResponse
	OpCancel
)

func (k OpKind) String() string {
	switch k {
	case OpRequest:
		return "Request"
	case OpResponse:
		return "Response"
	case OpCancel:
		return "Cancel"
	default:
		return "Unknown"
	}
}

// RequestOp proposes moving credit one hop further along Route, freezing
// DestPayment+LeftFees of capacity until a matching Response or Cancel
// arrives (spec §3 PendingTransaction, §4.1).
type RequestOp struct {
	RequestID        sig.Uid
	Route            route.Route
	DestPayment      amount.U128
	TotalDestPayment amount.U128
	InvoiceHash      sig.Hash
	Hmac             [32]byte
	SrcHashedLock    [32]byte
	LeftFees         amount.U128
}

// Kind implements Operation.
func (RequestOp) Kind() OpKind { return OpRequest }

// ID implements Operation.
func (r RequestOp) ID() sig.Uid { return r.RequestID }

// ResponseOp settles a prior RequestOp, revealing the preimage that
// unlocks the source's hashed lock and carrying the destination's
// signature over the canonical response buffer (spec §4.6). LeftFees is
// the fee budget that remained once the request reached its destination;
// every hop the Response passes back through uses it, unmodified, to
// compute its own out_fees/in_fees share of the route's total fee
// (spec §4.1).
type ResponseOp struct {
	RequestID    sig.Uid
	SrcPlainLock [32]byte
	SerialNum    uint64
	LeftFees     amount.U128
	Signature    sig.Signature
}

// Kind implements Operation.
func (ResponseOp) Kind() OpKind { return OpResponse }

// ID implements Operation.
func (r ResponseOp) ID() sig.Uid { return r.RequestID }

// CancelOp reverses a prior RequestOp without settling it: the frozen
// capacity is released and no fee is charged (spec §4.1).
type CancelOp struct {
	RequestID sig.Uid
}

// Kind implements Operation.
func (CancelOp) Kind() OpKind { return OpCancel }

// ID implements Operation.
func (c CancelOp) ID() sig.Uid { return c.RequestID }

// Operation is the common interface implemented by RequestOp, ResponseOp,
// and CancelOp, letting a CurrencyOperations batch carry any mix of the
// three in the order they must be applied (spec §4.1 "operations within
// one move-token are applied in order").
type Operation interface {
	Kind() OpKind
	ID() sig.Uid
}
