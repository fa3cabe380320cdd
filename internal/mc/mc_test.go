package mc

import (
	"testing"

	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/stretchr/testify/require"
)

func testRoute() route.Route {
	return route.Route{sig.PublicKey{1}, sig.PublicKey{2}, sig.PublicKey{3}}
}

func newCredit(t *testing.T) *MutualCredit {
	t.Helper()
	return New("USD", amount.From64(100), amount.From64(100))
}

func TestOutgoingRequestThenIncomingResponse(t *testing.T) {
	credit := newCredit(t)
	out := &Outgoing{MC: credit}

	reqID := sig.Uid{1}
	req := RequestOp{
		RequestID:        reqID,
		Route:            testRoute(),
		DestPayment:      amount.From64(10),
		TotalDestPayment: amount.From64(10),
		LeftFees:         amount.From64(0),
	}

	muts, err := out.ProposeRequest(req)
	require.NoError(t, err)
	for _, m := range muts {
		credit.Apply(m)
	}
	require.Contains(t, credit.Local, reqID)
	require.Equal(t, uint64(10), credit.Balance.LocalPendingDebt.Lo)

	in := &Incoming{MC: credit}
	respMuts, pending, err := in.ApplyResponse(ResponseOp{RequestID: reqID}, amount.Zero)
	require.NoError(t, err)
	require.NotNil(t, pending)
	for _, m := range respMuts {
		credit.Apply(m)
	}

	require.NotContains(t, credit.Local, reqID)
	require.True(t, credit.Balance.LocalPendingDebt.IsZero())
	require.True(t, credit.Balance.Balance.Neg)
	require.Equal(t, uint64(10), credit.Balance.Balance.Mag.Lo)
	require.True(t, credit.IsEmpty())
}

func TestIncomingRequestThenOutgoingResponseMirrorsBalance(t *testing.T) {
	credit := newCredit(t)
	in := &Incoming{MC: credit}

	reqID := sig.Uid{2}
	req := RequestOp{
		RequestID:   reqID,
		Route:       testRoute(),
		DestPayment: amount.From64(10),
		LeftFees:    amount.From64(2),
	}

	muts, pending, cancel, err := in.ApplyRequest(req, Rate{})
	require.NoError(t, err)
	require.Nil(t, cancel)
	require.Equal(t, req.LeftFees, pending.LeftFees)
	for _, m := range muts {
		credit.Apply(m)
	}
	require.Contains(t, credit.Remote, reqID)
	require.Equal(t, uint64(12), credit.Balance.RemotePendingDebt.Lo)

	out := &Outgoing{MC: credit}
	respMuts, err := out.ProposeResponse(ResponseOp{RequestID: reqID}, amount.Zero)
	require.NoError(t, err)
	for _, m := range respMuts {
		credit.Apply(m)
	}

	require.NotContains(t, credit.Remote, reqID)
	require.True(t, credit.Balance.RemotePendingDebt.IsZero())
	require.False(t, credit.Balance.Balance.Neg)
	require.Equal(t, uint64(10), credit.Balance.Balance.Mag.Lo)
}

func TestIncomingRequestFeeExceedsBudgetProducesCancelNotError(t *testing.T) {
	credit := newCredit(t)
	in := &Incoming{MC: credit}

	req := RequestOp{
		RequestID:   sig.Uid{3},
		Route:       testRoute(),
		DestPayment: amount.From64(10),
		LeftFees:    amount.From64(1),
	}

	// Our rate charges more than the 1 unit of budget left.
	muts, pending, cancel, err := in.ApplyRequest(req, Rate{Mul: 0, Add: 5})
	require.NoError(t, err)
	require.Nil(t, muts)
	require.Nil(t, pending)
	require.NotNil(t, cancel)
	require.Equal(t, req.RequestID, cancel.RequestID)
	require.Empty(t, credit.Remote)
}

func TestDuplicateRequestIDRejected(t *testing.T) {
	credit := newCredit(t)
	out := &Outgoing{MC: credit}

	req := RequestOp{
		RequestID:   sig.Uid{4},
		Route:       testRoute(),
		DestPayment: amount.From64(5),
	}
	muts, err := out.ProposeRequest(req)
	require.NoError(t, err)
	for _, m := range muts {
		credit.Apply(m)
	}

	_, err = out.ProposeRequest(req)
	require.ErrorIs(t, err, ErrRequestAlreadyExists)
}

func TestInsufficientTrustRejectsOverLimitRequest(t *testing.T) {
	credit := newCredit(t)
	out := &Outgoing{MC: credit}

	req := RequestOp{
		RequestID:   sig.Uid{5},
		Route:       testRoute(),
		DestPayment: amount.From64(1000),
	}
	_, err := out.ProposeRequest(req)
	require.ErrorIs(t, err, ErrInsufficientTrust)
	require.Empty(t, credit.Local)
}

func TestCancelAfterResponseRejected(t *testing.T) {
	credit := newCredit(t)
	out := &Outgoing{MC: credit}
	in := &Incoming{MC: credit}

	reqID := sig.Uid{6}
	muts, err := out.ProposeRequest(RequestOp{RequestID: reqID, Route: testRoute(), DestPayment: amount.From64(1)})
	require.NoError(t, err)
	for _, m := range muts {
		credit.Apply(m)
	}

	respMuts, _, err := in.ApplyResponse(ResponseOp{RequestID: reqID}, amount.Zero)
	require.NoError(t, err)
	for _, m := range respMuts {
		credit.Apply(m)
	}

	_, _, err = in.ApplyCancel(CancelOp{RequestID: reqID})
	require.ErrorIs(t, err, ErrCancelAfterResponse)
}

func TestInvalidRouteRejected(t *testing.T) {
	credit := newCredit(t)
	out := &Outgoing{MC: credit}

	_, err := out.ProposeRequest(RequestOp{
		RequestID:   sig.Uid{7},
		Route:       route.Route{sig.PublicKey{1}},
		DestPayment: amount.From64(1),
	})
	require.ErrorIs(t, err, ErrInvalidRoute)
}

func TestPendingConsistencyInvariant(t *testing.T) {
	credit := newCredit(t)
	in := &Incoming{MC: credit}

	for i := 0; i < 3; i++ {
		id := sig.Uid{byte(10 + i)}
		muts, _, cancel, err := in.ApplyRequest(RequestOp{
			RequestID:   id,
			Route:       testRoute(),
			DestPayment: amount.From64(1),
			LeftFees:    amount.From64(1),
		}, Rate{})
		require.NoError(t, err)
		require.Nil(t, cancel)
		for _, m := range muts {
			credit.Apply(m)
		}
	}

	require.Equal(t, credit.Balance.RemotePendingDebt, credit.SumRemotePending())
}
