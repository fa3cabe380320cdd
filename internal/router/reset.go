package router

import (
	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// ErrPeerDetectedInconsistency is the local cause recorded when our own
// reset terms are signed only because the peer's InconsistencyError
// revealed a divergence we had not yet detected ourselves.
var ErrPeerDetectedInconsistency = goerrors.New("peer reported inconsistency we had not yet detected")

// ErrNotInconsistentLocally guards sendLocalResetTerms against being
// called outside of an Inconsistent channel.
var ErrNotInconsistentLocally = goerrors.New("channel is not locally inconsistent")

// HandleIncomingInconsistency processes an InconsistencyError received
// from pk: if we are not already Inconsistent ourselves, this is the
// peer's detection of a divergence we haven't noticed yet, and we must
// go Inconsistent too before we can record its terms (spec §4.4
// "Detection is local ... While inconsistent, only reset messages are
// accepted from the peer"). Once both sides' terms are known, the side
// whose terms carry the lexicographically smaller reset_token resumes
// first by composing and sending the resuming move-token; the other
// side reconstitutes into ConsistentOut and waits for it.
func (r *Router) HandleIncomingInconsistency(pk sig.PublicKey, remote tokenchannel.ResetTerms) error {
	f, ok := r.friends[pk]
	if !ok {
		return ErrUnknownFriend
	}

	if !f.Channel.IsInconsistent() {
		r.goInconsistent(f, ErrPeerDetectedInconsistency)
	}

	if err := f.Channel.ReceiveResetTerms(remote); err != nil {
		return err
	}

	shouldSend, err := f.Channel.ShouldSendResetFirst()
	if err != nil {
		return err
	}
	if err := f.Channel.ResumeFromReset(shouldSend); err != nil {
		return err
	}
	if !shouldSend {
		return nil
	}
	return r.flushFriend(f)
}

// goInconsistent transitions f's channel to Inconsistent locally (spec
// §4.4), surfaces the event to the application, forgets freeze-guard
// history (a reset starts a new old_token lineage), withdraws every
// currency's capacity advertisement, and notifies the peer of our own
// reset terms — necessary here because the peer's InconsistencyError is
// what revealed the divergence to us, so it has no other way to learn we
// agree (spec §4.4).
func (r *Router) goInconsistent(f *Friend, cause error) {
	rtrLog.Warnf("friend %s going inconsistent: %v", f.Pk, cause)
	f.Channel.GoInconsistent(cause)
	r.ephemeral.FreezeGuard.Forget(f.Pk)
	r.cfg.App.ChannelInconsistent(f.Pk)
	for currency := range f.Currencies {
		r.cfg.IndexClient.RemoveFriend(f.Pk, currency)
	}
	if err := r.sendLocalResetTerms(f); err != nil {
		rtrLog.Warnf("failed to notify %s of our reset terms: %v", f.Pk, err)
	}
}

// sendLocalResetTerms delivers our Local reset terms to f's registered
// link. Called both when we detect an inconsistency ourselves (forward.go)
// and when we react to the peer's InconsistencyError arriving first
// (goInconsistent above) — either way the peer must learn our terms
// before the lexicographic tie-break in ShouldSendResetFirst can run on
// its side too.
func (r *Router) sendLocalResetTerms(f *Friend) error {
	inc, ok := f.Channel.Status.(tokenchannel.Inconsistent)
	if !ok {
		return ErrNotInconsistentLocally
	}
	link, ok := r.links[f.Pk]
	if !ok {
		return ErrNoLink
	}
	return link.SendInconsistency(inc.Local)
}
