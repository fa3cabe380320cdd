package storage

import (
	"testing"

	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func pk(b byte) sig.PublicKey {
	var p sig.PublicKey
	p[0] = 0x02
	p[1] = b
	return p
}

func uid(b byte) sig.Uid {
	var u sig.Uid
	u[0] = b
	return u
}

func samplePending(id byte) *mc.PendingTransaction {
	return &mc.PendingTransaction{
		RequestID:        uid(id),
		RouteRemainder:   route.Route{pk(1), pk(2), pk(3)},
		DestPayment:      amount.From64(100),
		TotalDestPayment: amount.From64(120),
		InvoiceHash:      sig.Hash{0xAA},
		Hmac:             [32]byte{0xBB},
		SrcHashedLock:    [32]byte{0xCC},
		LeftFees:         amount.From64(20),
	}
}

func TestAppendMutationsIsNoOpOnEmptyBatch(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.AppendMutations(pk(1), "USD", nil))
}

func TestEncodeDecodeMutationRoundTrip(t *testing.T) {
	cases := []mc.Mutation{
		{Kind: mc.MutInsertLocal, Currency: "USD", Pending: samplePending(1)},
		{Kind: mc.MutInsertRemote, Currency: "USD", Pending: samplePending(2)},
		{Kind: mc.MutRemoveLocal, Currency: "USD", RequestID: uid(1)},
		{Kind: mc.MutRemoveRemote, Currency: "USD", RequestID: uid(2)},
		{
			Kind:     mc.MutSetBalance,
			Currency: "EUR",
			Balance: mc.McBalance{
				Balance:           amount.Signed{Neg: true, Mag: amount.From64(42)},
				LocalPendingDebt:  amount.From64(1),
				RemotePendingDebt: amount.From64(2),
				LocalMaxDebt:      amount.From64(1000),
				RemoteMaxDebt:     amount.From64(2000),
				InFees:            7,
				OutFees:           9,
			},
		},
	}

	for _, m := range cases {
		raw, err := encodeMutation(m)
		require.NoError(t, err)

		got, err := decodeMutation(raw)
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestAppendMutationsThenReplayAllReconstructsState(t *testing.T) {
	db := openTestDB(t)
	friend := pk(5)

	pending := samplePending(9)
	muts := []mc.Mutation{
		mutInsertLocalForTest("USD", pending),
		{
			Kind:     mc.MutSetBalance,
			Currency: "USD",
			Balance: mc.McBalance{
				LocalPendingDebt: amount.From64(120),
				LocalMaxDebt:     amount.From64(500),
				RemoteMaxDebt:    amount.From64(500),
			},
		},
	}
	require.NoError(t, db.AppendMutations(friend, "USD", muts))

	// A second append to the same (friend, currency) must be ordered after
	// the first by sequence number, not overwrite it.
	require.NoError(t, db.AppendMutations(friend, "USD", []mc.Mutation{
		{Kind: mc.MutRemoveLocal, Currency: "USD", RequestID: pending.RequestID},
	}))

	state, err := db.ReplayAll(func(f sig.PublicKey, currency string) *mc.MutualCredit {
		return mc.New(currency, amount.From64(500), amount.From64(500))
	})
	require.NoError(t, err)

	credit := state[friend]["USD"]
	require.NotNil(t, credit)
	require.Empty(t, credit.Local, "the remove-local replayed after the insert must leave it empty")
	require.Equal(t, amount.From64(120), credit.Balance.LocalPendingDebt)
}

func TestReplayAllCoversMultipleFriendsAndCurrencies(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.AppendMutations(pk(1), "USD", []mc.Mutation{
		mutInsertLocalForTest("USD", samplePending(1)),
	}))
	require.NoError(t, db.AppendMutations(pk(1), "EUR", []mc.Mutation{
		mutInsertLocalForTest("EUR", samplePending(2)),
	}))
	require.NoError(t, db.AppendMutations(pk(2), "USD", []mc.Mutation{
		mutInsertLocalForTest("USD", samplePending(3)),
	}))

	state, err := db.ReplayAll(func(f sig.PublicKey, currency string) *mc.MutualCredit {
		return mc.New(currency, amount.From64(500), amount.From64(500))
	})
	require.NoError(t, err)

	require.Len(t, state, 2)
	require.Len(t, state[pk(1)], 2)
	require.Len(t, state[pk(2)], 1)
	require.Contains(t, state[pk(1)]["USD"].Local, uid(1))
	require.Contains(t, state[pk(1)]["EUR"].Local, uid(2))
	require.Contains(t, state[pk(2)]["USD"].Local, uid(3))
}

func TestWipeRemovesAllPersistedMutations(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.AppendMutations(pk(1), "USD", []mc.Mutation{
		mutInsertLocalForTest("USD", samplePending(1)),
	}))

	require.NoError(t, db.Wipe())

	state, err := db.ReplayAll(func(f sig.PublicKey, currency string) *mc.MutualCredit {
		return mc.New(currency, amount.From64(500), amount.From64(500))
	})
	require.NoError(t, err)
	require.Empty(t, state)
}

// mutInsertLocalForTest builds a MutInsertLocal mutation; mc's own
// constructor is unexported, so tests assemble the struct literal
// directly the way mc.outgoing.go's ProposeRequest does internally.
func mutInsertLocalForTest(currency string, p *mc.PendingTransaction) mc.Mutation {
	return mc.Mutation{Kind: mc.MutInsertLocal, Currency: currency, Pending: p}
}
