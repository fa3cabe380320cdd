package mc

import (
	"github.com/offsetnet/creditrouter/internal/sig"
)

// MutationKind enumerates the atomic state changes a validated operation
// produces against a MutualCredit. The Database collaborator of spec §6
// persists a log of these before the Router is allowed to act on them.
type MutationKind uint8

const (
	MutInsertLocal MutationKind = iota
	MutRemoveLocal
	MutInsertRemote
	MutRemoveRemote
	MutSetBalance
)

// Mutation is one entry in the append-only log spec §6 describes: enough
// information to reconstruct the MutualCredit state transition it
// represents, independent of however storage chooses to serialize it.
type Mutation struct {
	Kind     MutationKind
	Currency string

	// Valid when Kind is MutInsertLocal or MutInsertRemote.
	Pending *PendingTransaction

	// Valid when Kind is MutRemoveLocal or MutRemoveRemote.
	RequestID sig.Uid

	// Valid when Kind is MutSetBalance; the balance snapshot to write.
	Balance McBalance
}

func mutSetBalance(currency string, bal McBalance) Mutation {
	return Mutation{Kind: MutSetBalance, Currency: currency, Balance: bal}
}

func mutInsertLocal(currency string, p *PendingTransaction) Mutation {
	return Mutation{Kind: MutInsertLocal, Currency: currency, Pending: p}
}

func mutRemoveLocal(currency string, id sig.Uid) Mutation {
	return Mutation{Kind: MutRemoveLocal, Currency: currency, RequestID: id}
}

func mutInsertRemote(currency string, p *PendingTransaction) Mutation {
	return Mutation{Kind: MutInsertRemote, Currency: currency, Pending: p}
}

func mutRemoveRemote(currency string, id sig.Uid) Mutation {
	return Mutation{Kind: MutRemoveRemote, Currency: currency, RequestID: id}
}

// Apply replays m against mc, used both when committing a freshly
// validated batch and when the storage layer replays its log at startup
// (spec §8 "replaying the persisted mutation log produces a state
// bytewise equal to the state captured at log-end").
func (mc *MutualCredit) Apply(m Mutation) {
	switch m.Kind {
	case MutInsertLocal:
		mc.Local[m.Pending.RequestID] = m.Pending
	case MutRemoveLocal:
		delete(mc.Local, m.RequestID)
	case MutInsertRemote:
		mc.Remote[m.Pending.RequestID] = m.Pending
	case MutRemoveRemote:
		delete(mc.Remote, m.RequestID)
	case MutSetBalance:
		mc.Balance = m.Balance
	}
}
