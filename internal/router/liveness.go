package router

import "github.com/offsetnet/creditrouter/internal/sig"

// HandleFriendOnline marks a friend reachable again and triggers a flush,
// since work may have accumulated in its queues while it was offline
// (spec §4.3 "Liveness: ... going online triggers a flush"). Called from
// the router's own task once the keepalive collaborator's report has
// crossed over as a stimulus (spec §5); r.ephemeral.Liveness is the
// cross-task-visible mirror of the same fact.
func (r *Router) HandleFriendOnline(pk sig.PublicKey) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	f.Online = true
	r.ephemeral.Liveness.SetOnline(pk, true)
	return r.flushFriend(f)
}

// HandleFriendOffline marks a friend unreachable and drains its forwarded
// queue into cancels-backwards, since nothing more can be sent to it
// until it reconnects (spec §4.3 "Liveness: going offline drains the
// forwarded queue into cancels-backwards").
func (r *Router) HandleFriendOffline(pk sig.PublicKey) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}
	f.Online = false
	r.ephemeral.Liveness.SetOnline(pk, false)
	r.drainForwardedToCancels(f)
	for currency := range f.Currencies {
		r.cfg.IndexClient.RemoveFriend(pk, currency)
	}
	return nil
}
