package router

import (
	"github.com/offsetnet/creditrouter/internal/ephemeral"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
	"github.com/offsetnet/creditrouter/internal/transport"
)

// Config carries the collaborators the Router needs but does not own,
// mirroring htlcswitch.Config's "all elements MUST be non-nil" contract.
type Config struct {
	LocalPk sig.PublicKey
	Signer  sig.Signer

	Storage     MutationSink
	IndexClient IndexNotifier
	App         AppNotifier

	// Metrics is optional; a nil value disables metric recording.
	Metrics *Metrics
}

// Router is the single-logical-task scheduler of spec §4.3/§5: it owns
// every friend's TokenChannel and per-friend queues, and is the only
// mutator of either. All public methods are meant to be invoked from one
// goroutine (the node's main loop); nothing here takes a lock.
type Router struct {
	cfg Config

	friends map[sig.PublicKey]*Friend
	links   map[sig.PublicKey]transport.FriendLink

	ephemeral *ephemeral.Ephemeral
}

// New creates an empty Router. Friends are added via HandleAddFriend.
func New(cfg Config) *Router {
	return &Router{
		cfg:       cfg,
		friends:   make(map[sig.PublicKey]*Friend),
		links:     make(map[sig.PublicKey]transport.FriendLink),
		ephemeral: ephemeral.New(),
	}
}

func (r *Router) friend(pk sig.PublicKey) (*Friend, bool) {
	f, ok := r.friends[pk]
	return f, ok
}

// SetLink registers (or replaces) the transport used to reach a friend.
// The concrete wire connection lifecycle is out of scope; the router
// only needs somewhere to hand composed messages to.
func (r *Router) SetLink(pk sig.PublicKey, link transport.FriendLink) {
	r.links[pk] = link
}

// SetApp replaces the AppNotifier callbacks fire against. It exists for
// callers that must construct the Router before the Application
// collaborator wrapping it (appif.App takes a *Router, so the two cannot
// be built in one step); a caller building both together constructs the
// Router with a no-op App, builds the App from that Router, then calls
// SetApp once to close the loop.
func (r *Router) SetApp(app AppNotifier) {
	r.cfg.App = app
}

// newTokenChannelFor constructs a fresh TokenChannel for pk, with
// direction determined by lexicographic pubkey order (spec §3).
func (r *Router) newTokenChannelFor(pk sig.PublicKey) *tokenchannel.TokenChannel {
	return tokenchannel.New(r.cfg.LocalPk, pk, r.cfg.Signer)
}
