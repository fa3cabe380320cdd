// Package ephemeral tracks the per-peer state that lives only in memory
// and never touches the mutation log: liveness (is a friend currently
// reachable) and the freeze-guard (has a given move-token already been
// applied). Neither survives a restart; both are rebuilt from scratch —
// liveness from the keepalive collaborator's first report, freeze-guard
// implicitly as the first move-token received after startup is never a
// duplicate.
//
// Grounded on htlcswitch/switch_control.go's paymentControl: a
// mutex-guarded in-memory map gating whether an action has already been
// taken, generalized from per-payment-hash idempotence to per-friend
// liveness and per-channel move-token dedup.
package ephemeral

import (
	"sync"

	"github.com/offsetnet/creditrouter/internal/sig"
)

// Liveness tracks which friends are currently reachable, as reported by
// the external keepalive collaborator (spec §4.3 "Liveness: tracked per
// friend via the external keepalive collaborator").
//
// Guarded by a mutex rather than left to the router's single-logical-task
// ownership because keepalive reports arrive on their own cooperative
// task (spec §5) and liveness reads can be cheaply answered without
// routing through the router's main loop.
type Liveness struct {
	mu     sync.Mutex
	online map[sig.PublicKey]bool
}

// NewLiveness creates an empty Liveness tracker; every friend starts
// offline until its first keepalive report.
func NewLiveness() *Liveness {
	return &Liveness{online: make(map[sig.PublicKey]bool)}
}

// SetOnline records a liveness transition for pk.
func (l *Liveness) SetOnline(pk sig.PublicKey, online bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if online {
		l.online[pk] = true
	} else {
		delete(l.online, pk)
	}
}

// IsOnline reports whether pk's most recent keepalive report was online.
func (l *Liveness) IsOnline(pk sig.PublicKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.online[pk]
}

// Forget drops all liveness state for pk, used when a friend is removed.
func (l *Liveness) Forget(pk sig.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.online, pk)
}
