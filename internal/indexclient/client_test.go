package indexclient

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/stretchr/testify/require"
)

// fakeConn records every Update sent to it, standing in for a real
// websocket connection to the index server.
type fakeConn struct {
	sent []*Update
}

func (f *fakeConn) SendUpdate(u *Update) error {
	f.sent = append(f.sent, u)
	return nil
}

func newTestClient(t *testing.T) (*Client, *fakeConn, sig.PublicKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	signer := &sig.LocalSigner{Priv: priv}
	conn := &fakeConn{}
	c, err := New(signer.PublicKey(), signer, conn)
	require.NoError(t, err)
	return c, conn, signer.PublicKey()
}

func friendKey(b byte) sig.PublicKey {
	var pk sig.PublicKey
	pk[0] = 0x02
	pk[1] = b
	return pk
}

func TestFlushIsNoOpWithNothingPending(t *testing.T) {
	c, conn, _ := newTestClient(t)
	require.Equal(t, 0, c.PendingCount())

	require.NoError(t, c.Flush())
	require.Empty(t, conn.sent)
}

func TestUpdateFriendQueuesAndFlushSendsSignedBatch(t *testing.T) {
	c, conn, nodePk := newTestClient(t)

	f1 := friendKey(1)
	c.UpdateFriend(f1, "USD", amount.From64(100), amount.From64(50), mc.Rate{Mul: 1, Add: 2})
	require.Equal(t, 1, c.PendingCount())

	require.NoError(t, c.Flush())
	require.Len(t, conn.sent, 1)
	require.Equal(t, 0, c.PendingCount(), "Flush must clear the queue")

	update := conn.sent[0]
	require.Equal(t, nodePk, update.NodePk)
	require.Len(t, update.Mutations, 1)
	require.Equal(t, MutationSetCapacity, update.Mutations[0].Kind)
	require.Equal(t, f1, update.Mutations[0].Friend)
	require.Equal(t, uint64(0), update.Counter, "the first flush of a fresh session starts at counter 0")

	digest := sig.H(sigBufferFor(t, update))
	require.True(t, sig.Verify(nodePk, digest, update.Signature))
}

// sigBufferFor rebuilds the exact signing buffer Flush produced, so the
// test can independently verify the signature without reaching into
// Client's unexported sign method.
func sigBufferFor(t *testing.T, u *Update) []byte {
	t.Helper()
	canon := make([][]byte, len(u.Mutations))
	for i, m := range u.Mutations {
		canon[i] = m.Canon()
	}
	return sig.MutationsUpdateSignBuffer(u.NodePk, canon, u.TimeHash, u.SessionID, u.Counter, u.RandNonce)
}

func TestCounterIncrementsAcrossFlushes(t *testing.T) {
	c, conn, _ := newTestClient(t)

	c.RemoveFriend(friendKey(1), "USD")
	require.NoError(t, c.Flush())

	c.RemoveFriend(friendKey(2), "USD")
	require.NoError(t, c.Flush())

	require.Len(t, conn.sent, 2)
	require.Equal(t, uint64(0), conn.sent[0].Counter)
	require.Equal(t, uint64(1), conn.sent[1].Counter)
	require.Equal(t, conn.sent[0].SessionID, conn.sent[1].SessionID, "sessionID is fixed for the Client's lifetime")
}

func TestRemoveFriendMutationOmitsCapacityFields(t *testing.T) {
	c, conn, _ := newTestClient(t)

	c.RemoveFriend(friendKey(3), "EUR")
	require.NoError(t, c.Flush())

	m := conn.sent[0].Mutations[0]
	require.Equal(t, MutationRemoveFriend, m.Kind)
	require.Equal(t, "EUR", m.Currency)

	// Canon for a removal must not depend on capacity/rate fields left
	// at their zero value, so two removals differing only in those
	// zero fields canonicalize identically.
	other := Mutation{Kind: MutationRemoveFriend, Friend: m.Friend, Currency: m.Currency, Rate: mc.Rate{Mul: 999}}
	require.Equal(t, m.Canon(), other.Canon())
}

func TestSetTimeHashIsCarriedIntoNextUpdate(t *testing.T) {
	c, conn, _ := newTestClient(t)

	var th sig.Hash
	th[0] = 0xAB
	c.SetTimeHash(th)

	c.UpdateFriend(friendKey(4), "USD", amount.From64(10), amount.From64(10), mc.Rate{})
	require.NoError(t, c.Flush())

	require.Equal(t, th, conn.sent[0].TimeHash)
}
