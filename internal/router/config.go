package router

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// HandleAddFriend registers a new friend relationship with a fresh,
// disabled TokenChannel. Grounded on handle_config.rs's pattern of each
// handler first checking the friend exists before acting; here the
// inverse holds — AddFriend is what makes tc_db_client return Some for
// later handlers.
func (r *Router) HandleAddFriend(pk sig.PublicKey) error {
	if _, exists := r.friends[pk]; exists {
		return ErrFriendAlreadyExists
	}
	r.friends[pk] = newFriend(pk, r.newTokenChannelFor(pk))
	return nil
}

// HandleRemoveFriend drops a friend entirely: every pending transaction
// on every currency is cancelled to its upstream or to the application
// before the friend (and its token channel) is discarded (spec §5
// "Cancellation: when a friend is ... removed ... the router drains any
// forwarded requests whose next hop is that friend into
// cancels-backwards").
func (r *Router) HandleRemoveFriend(pk sig.PublicKey) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	r.cancelAllPending(f)
	r.ephemeral.Liveness.Forget(pk)
	r.ephemeral.FreezeGuard.Forget(pk)
	delete(r.friends, pk)
	delete(r.links, pk)
	return nil
}

// HandleEnableFriend marks a friend as enabled: its link may now be used
// and flush_friend may run against it.
func (r *Router) HandleEnableFriend(pk sig.PublicKey) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	f.Enabled = true
	return nil
}

// HandleDisableFriend disables a friend without forgetting its token
// channel state, draining its forwarded queue into cancels-backwards
// exactly as going offline does (spec §4.3 "Liveness").
func (r *Router) HandleDisableFriend(pk sig.PublicKey) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	f.Enabled = false
	r.drainForwardedToCancels(f)
	return nil
}

// HandleAddCurrency activates a currency on a friend: installs its Rate
// and max-debt bounds, creates an empty MutualCredit once both sides have
// the currency active, and marks the friend for a flush so any resulting
// move-token (e.g. carrying nothing but the config's effect on
// info_hash) goes out (spec §3 "Lifecycles", handle_config.rs's
// add_currency).
func (r *Router) HandleAddCurrency(pk sig.PublicKey, currency string, rate mc.Rate, localMaxDebt, remoteMaxDebt amount.U128) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}

	f.Currencies[currency] = &CurrencyConfig{Rate: rate, LocalMaxDebt: localMaxDebt, RemoteMaxDebt: remoteMaxDebt}
	f.Channel.LocalCurrencies[currency] = true
	f.Channel.LocalMaxDebts[currency] = localMaxDebt
	f.Channel.RemoteMaxDebts[currency] = remoteMaxDebt

	if f.Channel.RemoteCurrencies[currency] {
		if _, exists := f.Channel.MutualCredits[currency]; !exists {
			f.Channel.MutualCredits[currency] = mc.New(currency, localMaxDebt, remoteMaxDebt)
		}
		r.emitUpdateFriend(f, currency)
	}

	f.pendingCommands = append(f.pendingCommands, pendingCommand{kind: cmdCurrenciesChanged})
	return nil
}

// HandleCloseCurrency deactivates a currency on a friend: every pending
// transaction row on that currency (local and remote) is cancelled to its
// upstream friend or the application, the currency is removed from
// local_currencies, and RemoveFriend(currency) is emitted to the index
// (spec §9 Open Question (a) and (b): "every pending row ... is cancelled
// ... before the currency is removed"; "one drain loop over the union of
// local+remote pending tables").
func (r *Router) HandleCloseCurrency(pk sig.PublicKey, currency string) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}

	credit, hasCredit := f.Channel.MutualCredits[currency]
	if hasCredit {
		r.cancelAllPendingForCurrency(f, currency, credit)
	}

	delete(f.Channel.LocalCurrencies, currency)
	delete(f.Currencies, currency)
	delete(f.Channel.MutualCredits, currency)

	r.cfg.IndexClient.RemoveFriend(pk, currency)

	f.pendingCommands = append(f.pendingCommands, pendingCommand{kind: cmdCurrenciesChanged})
	return nil
}

// HandleSetFriendRate updates the forwarding rate charged on a currency.
func (r *Router) HandleSetFriendRate(pk sig.PublicKey, currency string, rate mc.Rate) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	cfg, ok := f.Currencies[currency]
	if !ok {
		return ErrCurrencyNotActive
	}
	cfg.Rate = rate
	if f.Channel.RemoteCurrencies[currency] {
		r.emitUpdateFriend(f, currency)
	}
	return nil
}

// HandleSetMaxDebt updates the local or remote max-debt bound for a
// currency (handle_config.rs's set_local_max_debt / set_remote_max_debt,
// merged into one handler parameterized on which bound changed).
func (r *Router) HandleSetMaxDebt(pk sig.PublicKey, currency string, local bool, maxDebt amount.U128) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	cfg, ok := f.Currencies[currency]
	if !ok {
		return ErrCurrencyNotActive
	}

	if local {
		cfg.LocalMaxDebt = maxDebt
		f.Channel.LocalMaxDebts[currency] = maxDebt
		if credit, exists := f.Channel.MutualCredits[currency]; exists {
			credit.Balance.LocalMaxDebt = maxDebt
		}
	} else {
		cfg.RemoteMaxDebt = maxDebt
		f.Channel.RemoteMaxDebts[currency] = maxDebt
		if credit, exists := f.Channel.MutualCredits[currency]; exists {
			credit.Balance.RemoteMaxDebt = maxDebt
		}
	}

	if f.Channel.RemoteCurrencies[currency] {
		r.emitUpdateFriend(f, currency)
	}
	return nil
}

// HandleAddRelay appends a relay address to a friend's advertised relay
// set, to be carried on the next move-token or RelaysUpdate.
func (r *Router) HandleAddRelay(pk sig.PublicKey, relay tokenchannel.RelayAddress) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	f.Relays = append(f.Relays, relay)
	return nil
}

// HandleRemoveRelay removes a relay address from a friend's advertised
// relay set.
func (r *Router) HandleRemoveRelay(pk sig.PublicKey, relay tokenchannel.RelayAddress) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	out := f.Relays[:0]
	for _, existing := range f.Relays {
		if existing != relay {
			out = append(out, existing)
		}
	}
	f.Relays = out
	return nil
}

// emitUpdateFriend computes this currency's current (send_capacity,
// recv_capacity) from its MutualCredit and notifies the index client
// (spec §4.3 "Index mutations").
func (r *Router) emitUpdateFriend(f *Friend, currency string) {
	credit, ok := f.Channel.MutualCredits[currency]
	if !ok {
		return
	}
	cfg, ok := f.Currencies[currency]
	if !ok {
		return
	}

	// send_capacity = max(0, remote_max_debt - (balance + local_pending_debt))
	// recv_capacity = max(0, local_max_debt + balance - remote_pending_debt)
	sendCapacity := remainingCapacity(credit.Balance.RemoteMaxDebt, credit.Balance.Balance, credit.Balance.LocalPendingDebt, true)
	recvCapacity := remainingCapacity(credit.Balance.LocalMaxDebt, credit.Balance.Balance, credit.Balance.RemotePendingDebt, false)

	r.cfg.IndexClient.UpdateFriend(f.Pk, currency, sendCapacity, recvCapacity, cfg.Rate)
}

// remainingCapacity computes maxDebt +/- balance - pendingDebt, floored at
// zero (spec §6 "send_capacity = max(0, remote_max_debt - (balance +
// local_pending_debt))"; "recv_capacity = max(0, local_max_debt + balance
// - remote_pending_debt)"). subtractBalance selects which of the two
// formulas applies.
func remainingCapacity(maxDebt amount.U128, balance amount.Signed, pendingDebt amount.U128, subtractBalance bool) amount.U128 {
	signed := balance
	if subtractBalance {
		signed = signed.Negate()
	}
	headroom := amount.FromUnsigned(maxDebt).Add(signed)
	if headroom.Neg {
		return amount.Zero
	}
	adjusted, ok := headroom.Mag.Sub(pendingDebt)
	if !ok {
		return amount.Zero
	}
	return adjusted
}
