package router

import (
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// findOrigin locates the friend whose Remote pending table for currency
// holds requestID — i.e. whoever sent us the request we are holding in
// some other friend's Local table as a forwarded hop. Returns false if no
// friend holds it, meaning this node originated the request itself
// (spec §4.5 "the pairing is exclusive: exactly one open request or
// forwarded request may claim a given request_id").
func (r *Router) findOrigin(requestID sig.Uid, currency string) (*Friend, bool) {
	for _, candidate := range r.friends {
		credit, ok := candidate.Channel.MutualCredits[currency]
		if !ok {
			continue
		}
		if _, exists := credit.Remote[requestID]; exists {
			return candidate, true
		}
	}
	return nil, false
}

// propagateCancelUpstream sends a Cancel for requestID to whichever friend
// is waiting on it: the friend that forwarded it to us, or the
// application if this node originated it (spec §4.5 "Backwards
// Propagation").
func (r *Router) propagateCancelUpstream(requestID sig.Uid, currency string) {
	r.cfg.Metrics.observeCancel("propagate")
	origin, ok := r.findOrigin(requestID, currency)
	if !ok {
		r.cfg.App.DeliverCancel(requestID)
		return
	}
	origin.backwardsOps.Push(queuedOp{Currency: currency, Op: mc.CancelOp{RequestID: requestID}})
}

// cancelAllPendingForCurrency cancels every pending transaction on one
// currency of friend f, in both directions: requests we forwarded to f
// (f's Local table) are cancelled upstream to whoever sent them to us;
// requests f sent us (f's Remote table) are cancelled straight back to f
// (spec §9 Open Question (a): "every pending row on the closing currency
// is cancelled, in whichever direction it is held, before the currency is
// actually removed").
func (r *Router) cancelAllPendingForCurrency(f *Friend, currency string, credit *mc.MutualCredit) {
	for requestID := range credit.Local {
		r.propagateCancelUpstream(requestID, currency)
	}
	for requestID := range credit.Remote {
		f.backwardsOps.Push(queuedOp{Currency: currency, Op: mc.CancelOp{RequestID: requestID}})
	}
}

// cancelAllPending cancels every pending transaction on every currency of
// f, and drains anything still queued but not yet applied to its token
// channel. Used when f is removed outright (spec §5 "Cancellation").
func (r *Router) cancelAllPending(f *Friend) {
	for currency, credit := range f.Channel.MutualCredits {
		r.cancelAllPendingForCurrency(f, currency, credit)
	}
	r.drainForwardedToCancels(f)
}

// drainForwardedToCancels empties f's forwarded-request queue, cancelling
// each one upstream, and empties its user-request queue by reporting
// those requests' origin as cancelled to the application. Entries here
// were never applied to any MutualCredit, so no balance bookkeeping is
// needed — only the backwards notification (spec §4.3 "Liveness: going
// offline drains the forwarded queue into cancels-backwards").
func (r *Router) drainForwardedToCancels(f *Friend) {
	for _, queued := range f.forwardedOps.DrainAll() {
		if req, ok := queued.Op.(mc.RequestOp); ok {
			r.propagateCancelUpstream(req.RequestID, queued.Currency)
		}
	}
	for _, queued := range f.userRequests.DrainAll() {
		if req, ok := queued.Op.(mc.RequestOp); ok {
			r.cfg.App.DeliverCancel(req.RequestID)
		}
	}
}
