// Package router implements the per-node scheduler that owns every
// friend's TokenChannel and all per-friend queues (spec §4.3): a single
// logical task that applies stimuli (app commands, incoming friend
// messages, liveness changes, timer ticks) and decides when to
// flush_friend.
//
// Grounded on htlcswitch/switch.go's Switch — a central message bus
// holding per-link state reachable only through its own command
// channels — generalized from HTLC circuits to signed move-token
// batches, and on handle_config.rs for the friend/currency configuration
// surface.
package router

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// MaxOperationsInBatch bounds how many operations a single move-token may
// carry (spec §4.2, §4.3).
const MaxOperationsInBatch = 100

// BackpressureFactor (K) scales MaxOperationsInBatch into each friend
// queue's soft ceiling (spec §4.3 "max_operations_in_batch * K").
const BackpressureFactor = 4

// QueueSoftCeiling is the combined depth of a friend's three queues at
// which incoming requests destined for that friend are cancelled at the
// entry node.
const QueueSoftCeiling = MaxOperationsInBatch * BackpressureFactor

// queuedOp is one FIFO entry awaiting inclusion in a move-token: the
// currency it belongs to, plus the operation itself.
type queuedOp struct {
	Currency string
	Op       mc.Operation
}

// CurrencyConfig is a friend's per-currency policy: the rate we charge to
// forward across it, and the debt bound we extend to the peer.
type CurrencyConfig struct {
	Rate          mc.Rate
	LocalMaxDebt  amount.U128
	RemoteMaxDebt amount.U128
}

// Friend is everything the router tracks about one directly-connected
// peer: its token channel, configuration, liveness, and the three FIFOs
// spec §4.3 requires (user requests, forwarded requests, backwards ops).
type Friend struct {
	Pk      sig.PublicKey
	Channel *tokenchannel.TokenChannel

	Enabled bool
	Online  bool

	Currencies map[string]*CurrencyConfig
	Relays     []tokenchannel.RelayAddress

	userRequests    *fifo
	forwardedOps    *fifo
	backwardsOps    *fifo
	pendingCommands []pendingCommand

	// forwardedIDs dedups at-most-once forwarding per request_id (spec
	// §4.3 "a second arrival with the same id is dropped").
	forwardedIDs map[sig.Uid]struct{}
}

// pendingCommand is a config-change mutation (currency open or close)
// queued for the next flush_friend alongside ordinary
// operations, so index-mutation emission and move-token composition stay
// consistent with spec §4.3 "non-empty queue or pending config".
type pendingCommand struct {
	kind commandKind
}

type commandKind uint8

const (
	cmdNone commandKind = iota
	cmdCurrenciesChanged
)

func newFriend(pk sig.PublicKey, channel *tokenchannel.TokenChannel) *Friend {
	return &Friend{
		Pk:           pk,
		Channel:      channel,
		Currencies:   make(map[string]*CurrencyConfig),
		userRequests: newFIFO(),
		forwardedOps: newFIFO(),
		backwardsOps: newFIFO(),
		forwardedIDs: make(map[sig.Uid]struct{}),
	}
}

// queueDepth returns the combined length of a friend's three FIFOs, the
// quantity the backpressure soft ceiling bounds.
func (f *Friend) queueDepth() int {
	return f.userRequests.Len() + f.forwardedOps.Len() + f.backwardsOps.Len()
}

// hasWork reports whether flush_friend has anything to do: a non-empty
// queue, or a pending configuration change (spec §4.3).
func (f *Friend) hasWork() bool {
	return f.queueDepth() > 0 || len(f.pendingCommands) > 0
}
