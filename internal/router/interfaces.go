package router

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// MutationSink persists the mutation batch a flushed move-token applied,
// before the router treats those mutations as durable (spec §5 "a
// database write for a batch of mutations is atomic from the router's
// perspective; it awaits the transaction's completion before treating the
// mutations as applied").
type MutationSink interface {
	AppendMutations(friend sig.PublicKey, currency string, muts []mc.Mutation) error
}

// IndexNotifier receives the capacity advertisements spec §4.3 describes:
// UpdateFriend after any event that changes (send_capacity, recv_capacity,
// rate) for an open currency, RemoveFriend when a currency closes or the
// friend goes offline.
type IndexNotifier interface {
	UpdateFriend(friend sig.PublicKey, currency string, sendCapacity, recvCapacity amount.U128, rate mc.Rate)
	RemoveFriend(friend sig.PublicKey, currency string)
}

// AppNotifier is the boundary to the out-of-scope Application collaborator
// (spec §6): delivery of terminal responses/cancels for requests this
// node originated, and the channel_inconsistent event spec §4.4 names.
type AppNotifier interface {
	// DeliverRequest hands a request for which this node is the route's
	// destination to the application, which answers it (asynchronously,
	// via SubmitUserResponse or SubmitUserCancel) once it has matched the
	// invoice and settled locally.
	DeliverRequest(currency string, req mc.RequestOp)
	DeliverResponse(requestID sig.Uid, resp mc.ResponseOp)
	DeliverCancel(requestID sig.Uid)
	ChannelInconsistent(friend sig.PublicKey)
}
