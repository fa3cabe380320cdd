package router

import (
	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// proposeOperation validates op against credit via the Outgoing engine,
// dispatching on its concrete kind. A ResponseOp carries its own
// LeftFees — the budget left once the request reached its destination,
// unchanged by every hop the response passes back through — so
// ProposeResponse is given the real value the op reports rather than a
// placeholder (spec §4.1 "out_fees"/"in_fees").
func proposeOperation(outgoing *mc.Outgoing, op mc.Operation) ([]mc.Mutation, error) {
	switch v := op.(type) {
	case mc.RequestOp:
		return outgoing.ProposeRequest(v)
	case mc.ResponseOp:
		return outgoing.ProposeResponse(v, v.LeftFees)
	case mc.CancelOp:
		return outgoing.ProposeCancel(v)
	default:
		return nil, ErrUnknownOperationKind
	}
}

// flushFriend dequeues up to MaxOperationsInBatch operations for f,
// giving priority to (1) backwards ops, (2) forwarded requests, (3) user
// requests, validates and applies each against its currency's
// MutualCredit, persists the resulting mutations, and — if anything
// survived validation — composes and sends the resulting move-token
// (spec §4.3 "flush_friend").
//
// flushFriend is a no-op unless f currently holds the token: a friend
// that is ConsistentOut or Inconsistent must wait for the peer, or for
// reset resolution, before anything queued for it can go out.
func (r *Router) flushFriend(f *Friend) error {
	if !f.Channel.IsConsistentIn() {
		return nil
	}
	if !f.Enabled || !f.Online {
		return nil
	}
	link, ok := r.links[f.Pk]
	if !ok {
		return ErrNoLink
	}

	order := make([]string, 0, 4)
	batch := make(map[string][]mc.Operation)
	touched := make(map[string]bool)
	count := 0

	pull := func(q *fifo) {
		for count < MaxOperationsInBatch {
			queued, ok := q.Pop()
			if !ok {
				return
			}
			credit, ok := f.Channel.MutualCredits[queued.Currency]
			if !ok {
				continue
			}

			outgoing := &mc.Outgoing{MC: credit}
			muts, err := proposeOperation(outgoing, queued.Op)
			if err != nil {
				if req, isReq := queued.Op.(mc.RequestOp); isReq {
					r.propagateCancelUpstream(req.RequestID, queued.Currency)
				}
				continue
			}

			for _, m := range muts {
				credit.Apply(m)
			}
			if err := r.cfg.Storage.AppendMutations(f.Pk, queued.Currency, muts); err != nil {
				// spec §5: a failed mutation-log write is unrecoverable —
				// the router's in-memory state and the persisted log have
				// already diverged.
				panic(goerrors.Errorf("mutation log write failed: %v", err))
			}

			if !touched[queued.Currency] {
				touched[queued.Currency] = true
				order = append(order, queued.Currency)
			}
			batch[queued.Currency] = append(batch[queued.Currency], queued.Op)
			count++
		}
	}

	pull(f.backwardsOps)
	pull(f.forwardedOps)
	pull(f.userRequests)

	currenciesChanged := len(f.pendingCommands) > 0
	f.pendingCommands = nil

	ops := make([]tokenchannel.CurrencyOperations, 0, len(order))
	for _, currency := range order {
		ops = append(ops, tokenchannel.CurrencyOperations{Currency: currency, Operations: batch[currency]})
	}

	mt, sent, err := f.Channel.ComposeOutgoing(ops, MaxOperationsInBatch, f.Relays, currenciesChanged)
	if err != nil {
		return err
	}
	if !sent {
		return nil
	}
	if err := link.SendMoveToken(mt, false); err != nil {
		return err
	}
	r.cfg.Metrics.observeFlush(f, true)

	for _, currency := range order {
		r.emitUpdateFriend(f, currency)
	}
	return nil
}

// flushAll runs flushFriend over every friend with outstanding work,
// the scheduler's main entry point after any stimulus that may have
// queued operations or freed up the token (spec §4.3).
func (r *Router) flushAll() error {
	for _, f := range r.friends {
		if !f.hasWork() {
			continue
		}
		if err := r.flushFriend(f); err != nil {
			return err
		}
	}
	return nil
}
