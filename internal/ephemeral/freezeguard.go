package ephemeral

import (
	"sync"

	"github.com/offsetnet/creditrouter/internal/sig"
)

// FreezeGuard makes move-token delivery idempotent: it remembers the hash
// of the last move-token applied per friend, so a retransmitted copy (the
// sender never learned its previous send was acknowledged) is recognized
// and dropped rather than rejected as a stale old_token (spec §8
// "duplicate delivery of a move-token is a no-op").
type FreezeGuard struct {
	mu       sync.Mutex
	lastSeen map[sig.PublicKey]sig.Hash
}

// NewFreezeGuard creates an empty FreezeGuard.
func NewFreezeGuard() *FreezeGuard {
	return &FreezeGuard{lastSeen: make(map[sig.PublicKey]sig.Hash)}
}

// Seen reports whether tokenHash was already the last move-token applied
// for pk, i.e. this delivery is a duplicate the caller should no-op.
func (g *FreezeGuard) Seen(pk sig.PublicKey, tokenHash sig.Hash) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.lastSeen[pk]
	return ok && last == tokenHash
}

// Record marks tokenHash as the last move-token successfully applied for
// pk, superseding whatever was recorded before.
func (g *FreezeGuard) Record(pk sig.PublicKey, tokenHash sig.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen[pk] = tokenHash
}

// Forget drops all freeze-guard state for pk, used when a friend is
// removed or its channel resets (a reset changes old_token's lineage, so
// prior hashes are no longer meaningful duplicates).
func (g *FreezeGuard) Forget(pk sig.PublicKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastSeen, pk)
}
