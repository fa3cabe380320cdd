// Package transport defines the narrow interface the Router uses to talk
// to a connected friend. The concrete wire implementation (framing,
// version negotiation, encryption, keepalive) is out of scope (spec §1);
// this package only fixes the three message shapes spec §6 names, so the
// Router can be built and tested against a fake without depending on any
// real network stack.
package transport

import "github.com/offsetnet/creditrouter/internal/tokenchannel"

// FriendLink is the per-friend send-side of the wire protocol (spec §6):
// a stream of framed messages of three kinds, after version/encrypt/
// keepalive wrapping that this package does not concern itself with.
type FriendLink interface {
	// SendMoveToken delivers a MoveTokenRequest. tokenWanted is set when
	// the sender wishes the receiver to respond even if it has nothing
	// to say, breaking stalemates when the token-holder is silent.
	SendMoveToken(mt *tokenchannel.MoveToken, tokenWanted bool) error

	// SendInconsistency delivers an InconsistencyError carrying our local
	// reset terms.
	SendInconsistency(terms tokenchannel.ResetTerms) error

	// SendRelaysUpdate delivers a RelaysUpdate advertising our current
	// relay address set.
	SendRelaysUpdate(relays []tokenchannel.RelayAddress) error
}
