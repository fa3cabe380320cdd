package router

import (
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// ratesFor builds the per-currency forwarding rate table a TokenChannel
// needs to apply an incoming Request (spec §4.1 "our_rate_fee").
func ratesFor(f *Friend) map[string]mc.Rate {
	rates := make(map[string]mc.Rate, len(f.Currencies))
	for currency, cfg := range f.Currencies {
		rates[currency] = cfg.Rate
	}
	return rates
}

// HandleIncomingMoveToken processes a MoveTokenRequest received from pk:
// verifies and applies it to that friend's TokenChannel, re-queues any
// fee-budget cancels the Incoming engine generated, forwards newly
// admitted requests toward their next hop, and propagates newly admitted
// responses/cancels backwards to whoever is waiting on them (spec §4.2,
// §4.3 "Forwarding", §4.5).
func (r *Router) HandleIncomingMoveToken(pk sig.PublicKey, mt *tokenchannel.MoveToken) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}

	newHash := tokenchannel.TokenHash(mt)
	if r.ephemeral.FreezeGuard.Seen(pk, newHash) {
		return nil
	}

	result, err := f.Channel.ReceiveMoveToken(mt, MaxOperationsInBatch, ratesFor(f))
	if err != nil {
		rtrLog.Warnf("move-token from %s rejected: %v", pk, err)
		r.ephemeral.FreezeGuard.Forget(pk)
		r.cfg.App.ChannelInconsistent(pk)
		for currency := range f.Currencies {
			r.cfg.IndexClient.RemoveFriend(pk, currency)
		}
		if sendErr := r.sendLocalResetTerms(f); sendErr != nil {
			rtrLog.Warnf("failed to notify %s of our reset terms: %v", pk, sendErr)
		}
		return err
	}

	r.ephemeral.FreezeGuard.Record(pk, newHash)

	for _, pc := range result.Cancels {
		f.backwardsOps.Push(queuedOp{Currency: pc.Currency, Op: pc.Cancel})
	}

	// The peer's local_currencies announcement may have just made a
	// currency active (both sides now agree) or inactive on our side too
	// (spec §3, scenario 5): mirror that into the index advertisement.
	for _, currency := range result.Opened {
		r.emitUpdateFriend(f, currency)
	}
	for _, currency := range result.Closed {
		r.cfg.IndexClient.RemoveFriend(pk, currency)
	}

	// result.Forwards/Backwards carry exactly what ReceiveMoveToken's
	// Incoming engine just computed (the rate-reduced pending row for a
	// new Request; the removed Local row and its route remainder for a
	// Response/Cancel). Re-deriving the same decisions here by
	// re-inspecting mt.Operations against f.Channel.MutualCredits would be
	// wrong: that map already reflects every mutation this same
	// move-token applied, so a Response/Cancel's matching Local row would
	// already be gone by the time it was looked up.
	for _, pf := range result.Forwards {
		r.routeRequest(pf.Currency, requestFromPending(pf.Pending))
	}
	for _, pb := range result.Backwards {
		r.routeBackwards(pb.Pending.RequestID, pb.Currency, pb.Op, pb.Pending.RouteRemainder)
	}

	return r.flushAll()
}

// requestFromPending rebuilds the RequestOp to forward from the pending
// row Incoming.ApplyRequest just inserted into our Remote table, rather
// than from the wire operation that arrived: the pending row's LeftFees
// is already reduced by our forwarding rate, while the wire copy still
// carries the upstream, un-reduced budget (spec §4.1).
func requestFromPending(pending *mc.PendingTransaction) mc.RequestOp {
	return mc.RequestOp{
		RequestID:        pending.RequestID,
		Route:            pending.RouteRemainder,
		DestPayment:      pending.DestPayment,
		TotalDestPayment: pending.TotalDestPayment,
		InvoiceHash:      pending.InvoiceHash,
		Hmac:             pending.Hmac,
		SrcHashedLock:    pending.SrcHashedLock,
		LeftFees:         pending.LeftFees,
	}
}

// routeRequest admits a newly received Request into the next hop's
// forwarded queue, or cancels it back immediately if it cannot be
// forwarded (spec §4.3 "Forwarding"). Responses and cancels that were
// already paired with a Local pending row above have already had that
// row removed by ReceiveMoveToken's application of the move-token's
// mutations, so routeRequest only ever sees genuinely new requests: the
// Remote-table entry Incoming.ApplyRequest just inserted for op.RequestID
// already guards against a duplicate arrival (spec "a second arrival with
// the same id is dropped").
func (r *Router) routeRequest(currency string, op mc.RequestOp) {
	// op.Route is the full route as the originator built it: every hop
	// passes it on unchanged, and each hop finds itself in it with
	// NextHop rather than by a fixed index.
	remainder := op.Route
	if remainder.IsTrivial() {
		r.propagateCancelUpstream(op.RequestID, currency)
		return
	}

	nextHopPk, ok := remainder.NextHop(r.cfg.LocalPk)
	if !ok {
		if remainder.IsDestination(r.cfg.LocalPk) {
			r.cfg.App.DeliverRequest(currency, op)
			return
		}
		r.propagateCancelUpstream(op.RequestID, currency)
		return
	}

	next, ok := r.friends[nextHopPk]
	if !ok || !next.Enabled || !next.Online {
		r.propagateCancelUpstream(op.RequestID, currency)
		return
	}
	if _, active := next.Channel.MutualCredits[currency]; !active {
		r.propagateCancelUpstream(op.RequestID, currency)
		return
	}
	if _, dup := next.forwardedIDs[op.RequestID]; dup {
		return
	}
	if next.queueDepth() >= QueueSoftCeiling {
		r.propagateCancelUpstream(op.RequestID, currency)
		return
	}

	next.forwardedIDs[op.RequestID] = struct{}{}
	next.forwardedOps.Push(queuedOp{Currency: currency, Op: op})
}

// routeBackwards delivers a Response or Cancel to whichever friend
// forwarded us the matching request, or to the application if
// routeRemainder shows we were the request's source (spec §4.5).
func (r *Router) routeBackwards(requestID sig.Uid, currency string, op mc.Operation, routeRemainder route.Route) {
	prevHopPk, ok := routeRemainder.PrevHop(r.cfg.LocalPk)
	if !ok {
		if resp, isResp := op.(mc.ResponseOp); isResp {
			r.cfg.App.DeliverResponse(requestID, resp)
			return
		}
		r.cfg.App.DeliverCancel(requestID)
		return
	}

	prev, ok := r.friends[prevHopPk]
	if !ok {
		return
	}
	prev.backwardsOps.Push(queuedOp{Currency: currency, Op: op})
}
