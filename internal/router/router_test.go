package router

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
	"github.com/stretchr/testify/require"
)

var errSimulated = goerrors.New("simulated divergence")

// fakeStorage is an in-memory MutationSink; real persistence is
// channeldb/bbolt-backed (see internal/storage), not exercised here.
type fakeStorage struct{}

func (fakeStorage) AppendMutations(sig.PublicKey, string, []mc.Mutation) error { return nil }

// fakeIndex records every UpdateFriend/RemoveFriend call for assertions.
type fakeIndex struct {
	updates []indexUpdate
	removes []indexRemove
}

type indexUpdate struct {
	Friend                       sig.PublicKey
	Currency                     string
	SendCapacity, RecvCapacity   amount.U128
}

type indexRemove struct {
	Friend   sig.PublicKey
	Currency string
}

func (fi *fakeIndex) UpdateFriend(friend sig.PublicKey, currency string, send, recv amount.U128, rate mc.Rate) {
	fi.updates = append(fi.updates, indexUpdate{friend, currency, send, recv})
}

func (fi *fakeIndex) RemoveFriend(friend sig.PublicKey, currency string) {
	fi.removes = append(fi.removes, indexRemove{friend, currency})
}

// fakeApp records terminal deliveries to the (out-of-scope) application.
type fakeApp struct {
	requests      []mc.RequestOp
	responses     []mc.ResponseOp
	cancels       []sig.Uid
	inconsistents []sig.PublicKey
}

func (fa *fakeApp) DeliverRequest(currency string, req mc.RequestOp) {
	fa.requests = append(fa.requests, req)
}

func (fa *fakeApp) DeliverResponse(requestID sig.Uid, resp mc.ResponseOp) {
	fa.responses = append(fa.responses, resp)
}

func (fa *fakeApp) DeliverCancel(requestID sig.Uid) {
	fa.cancels = append(fa.cancels, requestID)
}

func (fa *fakeApp) ChannelInconsistent(friend sig.PublicKey) {
	fa.inconsistents = append(fa.inconsistents, friend)
}

// fakeLink wires one Router's outgoing wire traffic directly into its
// peer Router's incoming handlers, synchronously, standing in for the
// out-of-scope transport connection.
type fakeLink struct {
	peer   *Router
	selfPk sig.PublicKey
}

func (l *fakeLink) SendMoveToken(mt *tokenchannel.MoveToken, tokenWanted bool) error {
	return l.peer.HandleIncomingMoveToken(l.selfPk, mt)
}

func (l *fakeLink) SendInconsistency(terms tokenchannel.ResetTerms) error {
	return l.peer.HandleIncomingInconsistency(l.selfPk, terms)
}

func (l *fakeLink) SendRelaysUpdate(relays []tokenchannel.RelayAddress) error { return nil }

type harness struct {
	t          *testing.T
	aPk, bPk   sig.PublicKey
	a, b       *Router
	aApp, bApp *fakeApp
	aIdx, bIdx *fakeIndex
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	privA, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	privB, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	signerA := &sig.LocalSigner{Priv: privA}
	signerB := &sig.LocalSigner{Priv: privB}
	pkA := signerA.PublicKey()
	pkB := signerB.PublicKey()

	aApp, bApp := &fakeApp{}, &fakeApp{}
	aIdx, bIdx := &fakeIndex{}, &fakeIndex{}

	a := New(Config{LocalPk: pkA, Signer: signerA, Storage: fakeStorage{}, IndexClient: aIdx, App: aApp})
	b := New(Config{LocalPk: pkB, Signer: signerB, Storage: fakeStorage{}, IndexClient: bIdx, App: bApp})

	h := &harness{t: t, aPk: pkA, bPk: pkB, a: a, b: b, aApp: aApp, bApp: bApp, aIdx: aIdx, bIdx: bIdx}

	require.NoError(t, a.HandleAddFriend(pkB))
	require.NoError(t, b.HandleAddFriend(pkA))
	a.SetLink(pkB, &fakeLink{peer: b, selfPk: pkA})
	b.SetLink(pkA, &fakeLink{peer: a, selfPk: pkB})
	require.NoError(t, a.HandleEnableFriend(pkB))
	require.NoError(t, b.HandleEnableFriend(pkA))
	a.friends[pkB].Online = true
	b.friends[pkA].Online = true

	// Currency negotiation over the wire is a separate concern this test
	// doesn't exercise; seed RemoteCurrencies directly as if it already
	// completed, so HandleAddCurrency's "both sides active" gate opens
	// immediately (tokenchannel/channel.go's ActiveCurrencies invariant).
	a.friends[pkB].Channel.RemoteCurrencies["USD"] = true
	b.friends[pkA].Channel.RemoteCurrencies["USD"] = true
	require.NoError(t, a.HandleAddCurrency(pkB, "USD", mc.Rate{}, amount.From64(1000), amount.From64(1000)))
	require.NoError(t, b.HandleAddCurrency(pkA, "USD", mc.Rate{}, amount.From64(1000), amount.From64(1000)))

	return h
}

func uid(b byte) sig.Uid {
	var u sig.Uid
	u[0] = b
	return u
}

// TestDirectRequestResponseRoundTrip exercises the whole two-party
// request -> deliver -> application response -> backwards delivery path
// with no intermediate hop (spec §4.1, §4.3, §4.5).
func TestDirectRequestResponseRoundTrip(t *testing.T) {
	h := newHarness(t)

	req := mc.RequestOp{
		RequestID:        uid(1),
		Route:            route.Route{h.aPk, h.bPk},
		DestPayment:      amount.From64(10),
		TotalDestPayment: amount.From64(10),
	}
	require.NoError(t, h.a.SubmitUserRequest("USD", req))

	require.Len(t, h.bApp.requests, 1, "b is the route's destination and must see the request")
	require.Equal(t, req.RequestID, h.bApp.requests[0].RequestID)

	resp := mc.ResponseOp{RequestID: req.RequestID, SerialNum: 1}
	require.NoError(t, h.b.SubmitUserResponse("USD", resp))

	require.Len(t, h.aApp.responses, 1, "a originated the request and must see the response")
	require.Equal(t, req.RequestID, h.aApp.responses[0].RequestID)
}

// TestForwardedRequestDedupedByRequestID checks the at-most-once
// forwarding guarantee (spec §4.3 "a second arrival with the same id is
// dropped") at an intermediate hop in a three-party chain a -> m -> b.
func TestForwardedRequestDedupedByRequestID(t *testing.T) {
	privA, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	privM, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	privB, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	signerA := &sig.LocalSigner{Priv: privA}
	signerM := &sig.LocalSigner{Priv: privM}
	signerB := &sig.LocalSigner{Priv: privB}
	pkA, pkM, pkB := signerA.PublicKey(), signerM.PublicKey(), signerB.PublicKey()

	aApp, mApp, bApp := &fakeApp{}, &fakeApp{}, &fakeApp{}
	aIdx, mIdx, bIdx := &fakeIndex{}, &fakeIndex{}, &fakeIndex{}

	a := New(Config{LocalPk: pkA, Signer: signerA, Storage: fakeStorage{}, IndexClient: aIdx, App: aApp})
	m := New(Config{LocalPk: pkM, Signer: signerM, Storage: fakeStorage{}, IndexClient: mIdx, App: mApp})
	b := New(Config{LocalPk: pkB, Signer: signerB, Storage: fakeStorage{}, IndexClient: bIdx, App: bApp})

	require.NoError(t, a.HandleAddFriend(pkM))
	require.NoError(t, m.HandleAddFriend(pkA))
	require.NoError(t, m.HandleAddFriend(pkB))
	require.NoError(t, b.HandleAddFriend(pkM))

	a.SetLink(pkM, &fakeLink{peer: m, selfPk: pkA})
	m.SetLink(pkA, &fakeLink{peer: a, selfPk: pkM})
	m.SetLink(pkB, &fakeLink{peer: b, selfPk: pkM})
	b.SetLink(pkM, &fakeLink{peer: m, selfPk: pkB})

	for _, f := range []*Router{a, m, b} {
		for pk := range f.friends {
			require.NoError(t, f.HandleEnableFriend(pk))
			f.friends[pk].Online = true
		}
	}

	a.friends[pkM].Channel.RemoteCurrencies["USD"] = true
	m.friends[pkA].Channel.RemoteCurrencies["USD"] = true
	m.friends[pkB].Channel.RemoteCurrencies["USD"] = true
	b.friends[pkM].Channel.RemoteCurrencies["USD"] = true
	require.NoError(t, a.HandleAddCurrency(pkM, "USD", mc.Rate{}, amount.From64(1000), amount.From64(1000)))
	require.NoError(t, m.HandleAddCurrency(pkA, "USD", mc.Rate{}, amount.From64(1000), amount.From64(1000)))
	require.NoError(t, m.HandleAddCurrency(pkB, "USD", mc.Rate{}, amount.From64(1000), amount.From64(1000)))
	require.NoError(t, b.HandleAddCurrency(pkM, "USD", mc.Rate{}, amount.From64(1000), amount.From64(1000)))

	req := mc.RequestOp{
		RequestID:        uid(2),
		Route:            route.Route{pkA, pkM, pkB},
		DestPayment:      amount.From64(5),
		TotalDestPayment: amount.From64(5),
	}
	require.NoError(t, a.SubmitUserRequest("USD", req))
	require.Len(t, bApp.requests, 1)

	// m's forwardedIDs for pkB must already carry this id from the first
	// delivery; a second arrival of the same request_id at m must not be
	// forwarded (and therefore not delivered to b) again.
	m.routeRequest("USD", req)
	require.Len(t, bApp.requests, 1, "duplicate request_id must not be forwarded twice")
}

// TestCapacityAdvertisementSigns verifies emitUpdateFriend reports the
// §6 formulas' starting values (full max-debt both ways, zero balance).
func TestCapacityAdvertisementSigns(t *testing.T) {
	h := newHarness(t)

	require.NotEmpty(t, h.aIdx.updates)
	last := h.aIdx.updates[len(h.aIdx.updates)-1]
	require.Equal(t, amount.From64(1000), last.SendCapacity)
	require.Equal(t, amount.From64(1000), last.RecvCapacity)
}

// TestRemoveFriendCancelsPending verifies that removing a friend with an
// outstanding forwarded request cancels it back to the application
// rather than leaving it stranded (spec §5 "Cancellation").
func TestRemoveFriendCancelsPending(t *testing.T) {
	h := newHarness(t)

	req := mc.RequestOp{
		RequestID:        uid(3),
		Route:            route.Route{h.aPk, h.bPk},
		DestPayment:      amount.From64(1),
		TotalDestPayment: amount.From64(1),
	}
	require.NoError(t, h.a.SubmitUserRequest("USD", req))
	require.Len(t, h.bApp.requests, 1)

	// a still holds a Local pending row for this request_id pointed at
	// its friend b; removing b must cancel it back to a's application.
	require.NoError(t, h.a.HandleRemoveFriend(h.bPk))
	require.Len(t, h.aApp.cancels, 1)
	require.Equal(t, req.RequestID, h.aApp.cancels[0])
}

// TestResetReconciliationOppositeDirections drives both sides through
// the reset sub-protocol and asserts that, after ResumeFromReset, exactly
// one side can compose a move-token the other can accept (spec §4.2,
// §4.4, §8 "Reset convergence").
func TestResetReconciliationOppositeDirections(t *testing.T) {
	h := newHarness(t)

	h.a.goInconsistent(h.a.friends[h.bPk], errSimulated)

	require.True(t, h.a.friends[h.bPk].Channel.IsInconsistent())
	require.True(t, h.b.friends[h.aPk].Channel.IsInconsistent(), "b must have learned of the reset via SendInconsistency")

	aFirst, err := h.a.friends[h.bPk].Channel.ShouldSendResetFirst()
	require.NoError(t, err)
	bFirst, err := h.b.friends[h.aPk].Channel.ShouldSendResetFirst()
	require.NoError(t, err)
	require.True(t, aFirst != bFirst)

	require.NoError(t, h.a.friends[h.bPk].Channel.ResumeFromReset(aFirst))
	require.NoError(t, h.b.friends[h.aPk].Channel.ResumeFromReset(bFirst))

	require.Equal(t, aFirst, h.a.friends[h.bPk].Channel.IsConsistentIn())
	require.Equal(t, bFirst, h.b.friends[h.aPk].Channel.IsConsistentIn())

	if aFirst {
		require.NoError(t, h.a.flushFriend(h.a.friends[h.bPk]))
	} else {
		require.NoError(t, h.b.flushFriend(h.b.friends[h.aPk]))
	}
}

// TestBackpressureCancelsAtSoftCeiling verifies that a next hop whose
// combined queue depth has reached QueueSoftCeiling gets no further
// requests forwarded to it; the request is cancelled upstream instead
// (spec §4.3 "Backpressure").
func TestBackpressureCancelsAtSoftCeiling(t *testing.T) {
	h := newHarness(t)
	// next-hop-as-seen-by-a is a's own Friend record for b: routeRequest
	// on Router a consults r.friends[nextHopPk], i.e. h.a.friends[h.bPk].
	next := h.a.friends[h.bPk]

	for i := 0; i < QueueSoftCeiling; i++ {
		next.forwardedOps.Push(queuedOp{Currency: "USD", Op: mc.RequestOp{RequestID: uid(byte(i))}})
	}

	req := mc.RequestOp{
		RequestID:        uid(200),
		Route:            route.Route{h.aPk, h.bPk},
		DestPayment:      amount.From64(1),
		TotalDestPayment: amount.From64(1),
	}
	h.a.routeRequest("USD", req)

	require.Len(t, h.aApp.cancels, 1, "a originated the request, so its cancellation must surface to a's application")
	require.Equal(t, req.RequestID, h.aApp.cancels[0])
	require.Empty(t, h.bApp.requests, "the over-ceiling request must never reach b's application")
}

// TestFriendOfflineDrainsForwardedQueue verifies that marking a friend
// offline drains its forwarded-request queue into cancels-backwards
// rather than leaving requests stranded (spec §4.3 "Liveness: going
// offline drains the forwarded queue into cancels-backwards").
func TestFriendOfflineDrainsForwardedQueue(t *testing.T) {
	h := newHarness(t)
	b := h.b.friends[h.aPk]

	req := mc.RequestOp{RequestID: uid(9)}
	b.forwardedOps.Push(queuedOp{Currency: "USD", Op: req})

	require.NoError(t, h.b.HandleFriendOffline(h.aPk))

	require.False(t, b.Online)
	require.Equal(t, 0, b.forwardedOps.Len())
	require.Len(t, h.bApp.cancels, 1, "no friend of b's holds this id in its Remote table, so the cancel surfaces to b's own application")
	require.Equal(t, req.RequestID, h.bApp.cancels[0])
}

// TestFriendOnlineTriggersFlush verifies that HandleFriendOnline flushes
// whatever accumulated in a friend's queues while it was offline (spec
// §4.3 "going online triggers a flush").
func TestFriendOnlineTriggersFlush(t *testing.T) {
	h := newHarness(t)
	a := h.a.friends[h.bPk]
	a.Online = false

	req := mc.RequestOp{
		RequestID:        uid(11),
		Route:            route.Route{h.aPk, h.bPk},
		DestPayment:      amount.From64(1),
		TotalDestPayment: amount.From64(1),
	}
	a.userRequests.Push(queuedOp{Currency: "USD", Op: req})

	require.NoError(t, h.a.HandleFriendOnline(h.bPk))

	require.True(t, a.Online)
	require.Len(t, h.bApp.requests, 1, "going online must flush the queued request out to b")
}

// TestHandleCloseCurrencyCancelsPendingThenRemoves verifies that closing
// a currency cancels every pending row on it (both directions) and
// notifies the index before the MutualCredit is dropped (spec §9 Open
// Question (a)/(b)).
func TestHandleCloseCurrencyCancelsPendingThenRemoves(t *testing.T) {
	h := newHarness(t)

	req := mc.RequestOp{
		RequestID:        uid(20),
		Route:            route.Route{h.aPk, h.bPk},
		DestPayment:      amount.From64(1),
		TotalDestPayment: amount.From64(1),
	}
	require.NoError(t, h.a.SubmitUserRequest("USD", req))
	require.Len(t, h.bApp.requests, 1)

	// b now holds this request in its Remote pending table; closing USD
	// on b's side must cancel it straight back to a.
	require.NoError(t, h.b.HandleCloseCurrency(h.aPk, "USD"))

	require.NotContains(t, h.b.friends[h.aPk].Channel.MutualCredits, "USD")
	require.NotEmpty(t, h.bIdx.removes)
	require.Equal(t, "USD", h.bIdx.removes[len(h.bIdx.removes)-1].Currency)
}
