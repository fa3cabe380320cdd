package router

import (
	goerrors "github.com/go-errors/errors"

	"github.com/offsetnet/creditrouter/internal/mc"
)

// SubmitUserRequest enqueues a Request the local application originated
// (a CreatePayment/CreateTransaction command, spec §6) onto the first
// hop's user-request queue, and runs a flush so it goes out immediately
// if nothing else is ahead of it. op.Route must name us (spec §3 "pending
// transactions ... by value"; the same Route.NextHop(us) lookup forward.go
// uses for an already-forwarded request applies here since we are, at
// this point, exactly such a hop — the one originating it).
func (r *Router) SubmitUserRequest(currency string, op mc.RequestOp) error {
	if op.Route.IsTrivial() {
		return goerrors.New("route must name at least source and destination")
	}
	firstHop, ok := op.Route.NextHop(r.cfg.LocalPk)
	if !ok {
		return goerrors.New("local node is not the route's source")
	}
	f, ok := r.friends[firstHop]
	if !ok {
		return ErrUnknownFriend
	}
	if _, active := f.Channel.MutualCredits[currency]; !active {
		return ErrCurrencyNotActive
	}

	f.userRequests.Push(queuedOp{Currency: currency, Op: op})
	return r.flushFriend(f)
}

// SubmitUserResponse enqueues a Response the local application (acting as
// the payment's destination) issues for a request it previously received
// via AppNotifier.DeliverRequest, delivered backwards to whichever friend
// forwarded that request to us (spec §4.5; the friend holding it in its
// Remote pending table is, by construction, the one that sent it).
func (r *Router) SubmitUserResponse(currency string, resp mc.ResponseOp) error {
	origin, ok := r.findOrigin(resp.RequestID, currency)
	if !ok {
		return ErrUnknownFriend
	}
	origin.backwardsOps.Push(queuedOp{Currency: currency, Op: resp})
	return r.flushFriend(origin)
}

// SubmitUserCancel is the rejecting counterpart to SubmitUserResponse: the
// application declines a request for which it is the destination (e.g. no
// matching invoice).
func (r *Router) SubmitUserCancel(currency string, cancel mc.CancelOp) error {
	origin, ok := r.findOrigin(cancel.RequestID, currency)
	if !ok {
		return ErrUnknownFriend
	}
	origin.backwardsOps.Push(queuedOp{Currency: currency, Op: cancel})
	return r.flushFriend(origin)
}
