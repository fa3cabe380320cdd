// Package route defines the ordered-hop path a payment travels, carried by
// value inside each pending transaction so that a response or cancel
// carries its own return path (spec §9 "pending transactions ... routing
// references are stored by value").
package route

import "github.com/offsetnet/creditrouter/internal/sig"

// Route is an ordered sequence of public keys beginning at the payment's
// source and ending at its destination. Each consecutive pair must be a
// configured friend relationship of the intermediate node that holds it.
type Route []sig.PublicKey

// IsTrivial reports whether the route has fewer than two hops, which no
// valid Request operation may carry (spec §4.1).
func (r Route) IsTrivial() bool {
	return len(r) < 2
}

// Source returns the first hop of the route.
func (r Route) Source() sig.PublicKey {
	return r[0]
}

// Destination returns the last hop of the route.
func (r Route) Destination() sig.PublicKey {
	return r[len(r)-1]
}

// IsDestination reports whether pk is the final hop of the route.
func (r Route) IsDestination(pk sig.PublicKey) bool {
	return len(r) > 0 && r[len(r)-1] == pk
}

// NextHop returns the public key immediately following us in the route and
// true, or the zero key and false if us is the destination or not found.
func (r Route) NextHop(us sig.PublicKey) (sig.PublicKey, bool) {
	for i, pk := range r {
		if pk == us && i+1 < len(r) {
			return r[i+1], true
		}
	}
	return sig.PublicKey{}, false
}

// PrevHop returns the public key immediately preceding us in the route and
// true, or the zero key and false if us is the source or not found.
func (r Route) PrevHop(us sig.PublicKey) (sig.PublicKey, bool) {
	for i, pk := range r {
		if pk == us && i > 0 {
			return r[i-1], true
		}
	}
	return sig.PublicKey{}, false
}

// Remainder returns the suffix of the route starting at us, the form
// stored inside a PendingTransaction so that a response or cancel can be
// routed back without consulting any external routing table.
func (r Route) Remainder(us sig.PublicKey) Route {
	for i, pk := range r {
		if pk == us {
			out := make(Route, len(r)-i)
			copy(out, r[i:])
			return out
		}
	}
	return nil
}

// Clone returns a deep copy of the route.
func (r Route) Clone() Route {
	out := make(Route, len(r))
	copy(out, r)
	return out
}
