package router

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/stretchr/testify/require"
)

// chainNode is one router in a manually wired multi-hop chain, along with
// the fakes newFriend/newHarness would otherwise hide.
type chainNode struct {
	pk  sig.PublicKey
	r   *Router
	app *fakeApp
	idx *fakeIndex
}

// buildChain wires n routers into a straight line pk[0] -- pk[1] -- ... --
// pk[n-1], each adjacent pair friended, linked, and enabled on USD with
// maxDebt in both directions. rate[i] is the CurrencyConfig charged by
// node i on requests arriving from node i-1 (rate[0] is unused: node 0 has
// no upstream). This mirrors nodes_chain's topology (spec §8 Scenario 2/3).
func buildChain(t *testing.T, n int, maxDebt amount.U128, rate []mc.Rate) []*chainNode {
	t.Helper()

	nodes := make([]*chainNode, n)
	for i := 0; i < n; i++ {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		signer := &sig.LocalSigner{Priv: priv}
		pk := signer.PublicKey()
		app := &fakeApp{}
		idx := &fakeIndex{}
		r := New(Config{LocalPk: pk, Signer: signer, Storage: fakeStorage{}, IndexClient: idx, App: app})
		nodes[i] = &chainNode{pk: pk, r: r, app: app, idx: idx}
	}

	for i := 0; i < n-1; i++ {
		a, b := nodes[i], nodes[i+1]
		require.NoError(t, a.r.HandleAddFriend(b.pk))
		require.NoError(t, b.r.HandleAddFriend(a.pk))
		a.r.SetLink(b.pk, &fakeLink{peer: b.r, selfPk: a.pk})
		b.r.SetLink(a.pk, &fakeLink{peer: a.r, selfPk: b.pk})
		require.NoError(t, a.r.HandleEnableFriend(b.pk))
		require.NoError(t, b.r.HandleEnableFriend(a.pk))
		a.r.friends[b.pk].Online = true
		b.r.friends[a.pk].Online = true

		a.r.friends[b.pk].Channel.RemoteCurrencies["USD"] = true
		b.r.friends[a.pk].Channel.RemoteCurrencies["USD"] = true

		// rate[i+1] is what node i+1 charges on requests it receives from
		// node i; the reverse direction (unused by these tests) gets the
		// zero rate.
		require.NoError(t, a.r.HandleAddCurrency(b.pk, "USD", mc.Rate{}, maxDebt, maxDebt))
		require.NoError(t, b.r.HandleAddCurrency(a.pk, "USD", rate[i+1], maxDebt, maxDebt))
	}

	return nodes
}

func chainRoute(nodes []*chainNode) route.Route {
	rt := make(route.Route, len(nodes))
	for i, n := range nodes {
		rt[i] = n.pk
	}
	return rt
}

func creditBetween(n *chainNode, peer sig.PublicKey) *mc.MutualCredit {
	return n.r.friends[peer].Channel.MutualCredits["USD"]
}

// TestThreeHopChainPropagatesFeesThroughResponse exercises spec §8
// Scenario 2's topology (source -- M1 -- M2 -- destination, a forwarding
// rate charged at each of the two middle hops) and checks that the
// surplus left in left_fees after both hops' cuts is carried, unmodified,
// all the way to the destination, and that each hop's own out_fees
// reflects the real left_fees the Response reported back rather than a
// constant zero (the exact bug internal/router/flush.go and
// internal/tokenchannel/channel.go hardcoded: receivedLeftFees fixed to
// amount.Zero regardless of what the Response actually carried).
func TestThreeHopChainPropagatesFeesThroughResponse(t *testing.T) {
	rate := []mc.Rate{{}, {Mul: 0, Add: 1}, {Mul: 0, Add: 1}, {}}
	nodes := buildChain(t, 4, amount.From64(1000), rate)
	src, m1, m2, dst := nodes[0], nodes[1], nodes[2], nodes[3]

	reqID := uid(1)
	req := mc.RequestOp{
		RequestID:        reqID,
		Route:            chainRoute(nodes),
		DestPayment:      amount.From64(10),
		TotalDestPayment: amount.From64(10),
		LeftFees:         amount.From64(5),
	}
	require.NoError(t, src.r.SubmitUserRequest("USD", req))

	require.Len(t, dst.app.requests, 1, "destination must see the forwarded request")
	delivered := dst.app.requests[0]
	require.Equal(t, amount.From64(3), delivered.LeftFees,
		"left_fees must shrink by each hop's own fee (1 at m1, 1 at m2) out of the 5 budgeted")

	resp := mc.ResponseOp{RequestID: reqID, SerialNum: 1, LeftFees: delivered.LeftFees}
	require.NoError(t, dst.r.SubmitUserResponse("USD", resp))

	require.Len(t, src.app.responses, 1, "source must see the response travel all the way back")
	require.Equal(t, amount.From64(3), src.app.responses[0].LeftFees,
		"left_fees must reach the source unchanged by any backward hop")

	// Balance moves by dest_payment at every edge the payment crossed
	// (mc.Incoming.ApplyResponse/mc.Outgoing.ProposeResponse only ever
	// debit/credit dest_payment; fees are tracked separately via
	// in_fees/out_fees, never folded into balance).
	require.Equal(t, amount.FromInt64(-10), creditBetween(src, m1.pk).Balance.Balance)
	require.Equal(t, amount.FromInt64(10), creditBetween(m1, src.pk).Balance.Balance)
	require.Equal(t, amount.FromInt64(-10), creditBetween(m1, m2.pk).Balance.Balance)
	require.Equal(t, amount.FromInt64(10), creditBetween(m2, m1.pk).Balance.Balance)
	require.Equal(t, amount.FromInt64(-10), creditBetween(m2, dst.pk).Balance.Balance)
	require.Equal(t, amount.FromInt64(10), creditBetween(dst, m2.pk).Balance.Balance)

	// m1's own out_fees is computed when it receives the Response back
	// from m2: its own forwarded left_fees (4) minus what m2's Response
	// actually reported (3, m2's own cut already taken) == 1, exactly
	// m2's fee. Before this fix, receivedLeftFees was hardcoded to
	// amount.Zero, which would have produced 4 here instead of 1.
	require.EqualValues(t, 1, creditBetween(m1, m2.pk).Balance.OutFees)

	// src's own out_fees, symmetrically, nets the *total* downstream fee
	// (both hops' cuts): its original left_fees (5) minus what finally
	// came back (3) == 2.
	require.EqualValues(t, 2, creditBetween(src, m1.pk).Balance.OutFees)
}

// TestInsufficientCapacityMidRouteCancelsUpstream exercises spec §8
// Scenario 3: the same chain topology, but the middle hop's remote_max_debt
// toward the next hop is too small to admit the forwarded request. The
// forwarding node must cancel the request straight back to whoever sent
// it, with no balance ever moving, rather than let it reach the
// destination.
func TestInsufficientCapacityMidRouteCancelsUpstream(t *testing.T) {
	rate := []mc.Rate{{}, {Mul: 0, Add: 1}, {Mul: 0, Add: 1}, {}}
	nodes := buildChain(t, 4, amount.From64(1000), rate)
	src, m1, m2, dst := nodes[0], nodes[1], nodes[2], nodes[3]

	// m1 only trusts m2 up to 5 (remote_max_debt(1->2)=5, spec §8 Scenario
	// 3): a dest_payment of 10 cannot be forwarded from m1 to m2, so m1's
	// own attempt to propose the forward must fail the trust bound check
	// in mc.Outgoing.ProposeRequest.
	creditBetween(m1, m2.pk).Balance.RemoteMaxDebt = amount.From64(5)

	reqID := uid(2)
	req := mc.RequestOp{
		RequestID:        reqID,
		Route:            chainRoute(nodes),
		DestPayment:      amount.From64(10),
		TotalDestPayment: amount.From64(10),
		LeftFees:         amount.From64(5),
	}
	require.NoError(t, src.r.SubmitUserRequest("USD", req))

	require.Empty(t, dst.app.requests, "the request must never reach the destination")
	require.Len(t, src.app.cancels, 1, "the source must see the request cancelled")
	require.Equal(t, reqID, src.app.cancels[0])

	require.Equal(t, amount.SignedZero, creditBetween(src, m1.pk).Balance.Balance)
	require.Equal(t, amount.SignedZero, creditBetween(m1, m2.pk).Balance.Balance)
	require.True(t, creditBetween(src, m1.pk).Balance.LocalPendingDebt.IsZero())
	require.True(t, creditBetween(m1, m2.pk).Balance.RemotePendingDebt.IsZero())
}
