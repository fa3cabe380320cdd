package ephemeral

// Ephemeral bundles the two pieces of non-persisted per-node state, as
// funder's Ephemeral<P> struct groups FreezeGuard and Liveness behind one
// handle the router holds alongside its persisted TokenChannels.
type Ephemeral struct {
	Liveness    *Liveness
	FreezeGuard *FreezeGuard
}

// New creates a fresh Ephemeral with empty liveness and freeze-guard
// state, as appropriate right after loading the persisted mutation log:
// neither liveness nor move-token dedup history survives a restart.
func New() *Ephemeral {
	return &Ephemeral{
		Liveness:    NewLiveness(),
		FreezeGuard: NewFreezeGuard(),
	}
}
