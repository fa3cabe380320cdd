// Package indexclient turns the Router's capacity advertisements (spec
// §4.3 "index mutations") into signed MUTATIONS_UPDATE batches and
// delivers them to the out-of-scope federated index server (spec §1).
//
// Grounded on discovery's AuthenticatedGossiper: that collaborator
// accumulates outgoing channel/node announcements and periodically signs
// and rebroadcasts a batch rather than signing and sending each one as it
// arrives. Here the announcements are capacity mutations instead of
// channel/node announcements, and the destination is the index server
// instead of the gossip network, but the batch-then-sign shape is the
// same.
package indexclient

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// MutationKind distinguishes the two advertisements spec §4.3 names.
type MutationKind uint8

const (
	// MutationSetCapacity carries a currency's current
	// (send_capacity, recv_capacity, rate) triple.
	MutationSetCapacity MutationKind = iota
	// MutationRemoveFriend withdraws a currency's advertisement
	// entirely (the currency closed, or the friend went offline).
	MutationRemoveFriend
)

// Mutation is one capacity advertisement queued for the next
// MUTATIONS_UPDATE batch.
type Mutation struct {
	Kind     MutationKind
	Friend   sig.PublicKey
	Currency string

	// Valid when Kind is MutationSetCapacity.
	SendCapacity, RecvCapacity amount.U128
	Rate                       mc.Rate
}

// Canon renders m into the fixed byte layout
// MUTATIONS_UPDATE's Σ canon(mutation) term sums over (spec §4.6): a
// kind byte, the friend's public key, the canonical currency string,
// and — for a capacity mutation — the two capacities and the rate.
func (m Mutation) Canon() []byte {
	out := make([]byte, 0, 1+33+4+len(m.Currency)+16+16+8)
	out = append(out, byte(m.Kind))
	out = append(out, m.Friend[:]...)
	out = append(out, sig.CanonCurrency(m.Currency)...)
	if m.Kind == MutationSetCapacity {
		out = append(out, m.SendCapacity.Bytes()...)
		out = append(out, m.RecvCapacity.Bytes()...)
		out = append(out, sig.BE32(m.Rate.Mul)...)
		out = append(out, sig.BE32(m.Rate.Add)...)
	}
	return out
}

// Update is a signed batch of mutations, the wire message a Client sends
// to the index server (spec §4.6 MUTATIONS_UPDATE contract).
type Update struct {
	NodePk    sig.PublicKey
	Mutations []Mutation
	TimeHash  sig.Hash
	SessionID sig.Uid
	Counter   uint64
	RandNonce sig.RandNonce
	Signature sig.Signature
}
