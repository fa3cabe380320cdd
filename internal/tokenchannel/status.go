// Package tokenchannel implements the two-party signed move-token
// protocol each pair of friends runs atop their mutual-credit substates:
// direction handoff, consistency verification, and the inconsistency/
// reset sub-protocol (spec §4.2, §4.4).
//
// Grounded on lnwallet/channel.go's channelState transitions, generalized
// from lnd's unilateral/cooperative-close machine to the spec's three
// Consistent{In,Out}/Inconsistent variants, and on
// htlcswitch/switch_control.go's persistent status-gated idempotence for
// the reset tie-break.
package tokenchannel

import "github.com/offsetnet/creditrouter/internal/sig"

// Status is the tagged union of spec §3's TokenChannelStatus. Transitions
// consume and reconstruct a Status rather than mutating one in place
// (spec §9 "represent token channels as tagged variants... not as a class
// hierarchy").
type Status interface {
	isStatus()
}

// ConsistentIn means we hold the token: we may compose and send a new
// move-token referencing LastIncomingHash as old_token.
type ConsistentIn struct {
	LastIncomingHash sig.Hash
}

func (ConsistentIn) isStatus() {}

// ConsistentOut means we sent a move-token and await the peer's reply. No
// new operations may be appended while in this state.
type ConsistentOut struct {
	Outgoing             *MoveToken
	OptLastIncomingHash  *sig.Hash
}

func (ConsistentOut) isStatus() {}

// Inconsistent means a mismatch was detected: we've issued (or plan to
// issue) Local reset terms and, once the peer replies, hold their Remote
// terms too, awaiting a matched reset move-token from either side.
type Inconsistent struct {
	Local  ResetTerms
	Remote *ResetTerms
}

func (Inconsistent) isStatus() {}
