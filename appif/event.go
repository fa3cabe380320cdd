package appif

import (
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// Event is the sealed union of everything the core reports back to a
// connected application, the set spec §6 lists verbatim: NodeReport,
// ReportMutation, ResponseRoutes, ResponseTransaction,
// ChannelInconsistent, ChannelConsistent.
type Event interface {
	isEvent()
}

// NodeReport is a full snapshot of node state, sent once on connection
// (the teacher's rpcServer equivalent would be a GetInfo-style call;
// here it is pushed proactively since the channel is a permissioned
// event stream rather than a request/response RPC).
type NodeReport struct {
	LocalPk sig.PublicKey
	Friends []sig.PublicKey
}

func (NodeReport) isEvent() {}

// ReportMutation is an incremental update to the NodeReport snapshot: a
// single friend/currency state change, generalizing the original's
// stream of named mutations against the initial report.
type ReportMutation struct {
	Friend   sig.PublicKey
	Currency string
}

func (ReportMutation) isEvent() {}

// ResponseRoutes answers a RequestRoutes command. Candidate route
// discovery itself is the out-of-scope index server's concern (spec §1);
// this event exists so the in-process channel has somewhere to deliver
// the answer once it arrives.
type ResponseRoutes struct {
	Destination sig.PublicKey
}

func (ResponseRoutes) isEvent() {}

// ResponseTransaction delivers the terminal outcome (a Response or
// Cancel) of a request this node originated via CreatePayment or
// CreateTransaction.
type ResponseTransaction struct {
	RequestID sig.Uid
	Response  *mc.ResponseOp
	Cancelled bool
}

func (ResponseTransaction) isEvent() {}

// ChannelInconsistent reports that a friend's token channel has entered
// the Inconsistent state (spec §4.4).
type ChannelInconsistent struct {
	Friend sig.PublicKey
}

func (ChannelInconsistent) isEvent() {}

// ChannelConsistent reports that a friend's token channel has returned to
// ConsistentOut/ConsistentIn after a reset.
type ChannelConsistent struct {
	Friend sig.PublicKey
}

func (ChannelConsistent) isEvent() {}

// IncomingRequest is delivered when this node is the destination of a
// Request forwarded to it, so the application can match it against an
// invoice and decide RequestClosePayment/AckClosePayment. It stands in
// for what a gRPC surface would model as a server-streamed
// InvoiceRequest notification.
type IncomingRequest struct {
	Currency string
	Request  mc.RequestOp
}

func (IncomingRequest) isEvent() {}
