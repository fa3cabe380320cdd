package indexclient

import (
	"crypto/rand"
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// Client accumulates capacity mutations the Router reports and emits
// them to the index server as signed Update batches. A Client is safe
// for concurrent use: the Router's UpdateFriend/RemoveFriend calls
// happen inline on the router's own task, but Flush is typically driven
// by a separate timer goroutine (spec §4.3 index mutations are reported
// "promptly", not necessarily synchronously with the event that caused
// them).
type Client struct {
	mu sync.Mutex

	nodePk    sig.PublicKey
	signer    sig.Signer
	sessionID sig.Uid
	counter   uint64
	timeHash  sig.Hash
	pending   []Mutation

	conn Conn
}

// New creates a Client for nodePk, signing outgoing batches with signer
// and sending them over conn. A fresh random sessionID is generated, as
// the original protocol requires for every new connection to the index
// server.
func New(nodePk sig.PublicKey, signer sig.Signer, conn Conn) (*Client, error) {
	var sessionID sig.Uid
	if _, err := rand.Read(sessionID[:]); err != nil {
		return nil, err
	}
	return &Client{nodePk: nodePk, signer: signer, sessionID: sessionID, conn: conn}, nil
}

// SetTimeHash records the most recent time hash the index server issued
// (spec: "A time hash (given by the server previously) ... proving that
// this message was signed recently"). Called by the out-of-scope
// connection loop whenever the server pushes a fresh one.
func (c *Client) SetTimeHash(h sig.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeHash = h
}

// UpdateFriend implements router.IndexNotifier: queues a capacity
// advertisement for the next Flush.
func (c *Client) UpdateFriend(friend sig.PublicKey, currency string, sendCapacity, recvCapacity amount.U128, rate mc.Rate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, Mutation{
		Kind:         MutationSetCapacity,
		Friend:       friend,
		Currency:     currency,
		SendCapacity: sendCapacity,
		RecvCapacity: recvCapacity,
		Rate:         rate,
	})
}

// RemoveFriend implements router.IndexNotifier: queues a withdrawal of a
// currency's advertisement for the next Flush.
func (c *Client) RemoveFriend(friend sig.PublicKey, currency string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, Mutation{
		Kind:     MutationRemoveFriend,
		Friend:   friend,
		Currency: currency,
	})
}

// PendingCount reports how many mutations are queued, for tests and for
// a timer loop that only wants to flush when there is something to send.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush signs and sends everything queued since the last Flush as one
// Update, advancing the session counter. A no-op if nothing is queued.
func (c *Client) Flush() error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	muts := c.pending
	c.pending = nil
	counter := c.counter
	c.counter++
	timeHash := c.timeHash
	c.mu.Unlock()

	update, err := c.sign(muts, timeHash, counter)
	if err != nil {
		return goerrors.Errorf("signing index update: %v", err)
	}
	if err := c.conn.SendUpdate(update); err != nil {
		idxLog.Warnf("failed to send index update (session %s counter %d): %v", c.sessionID, counter, err)
		return err
	}
	return nil
}

func (c *Client) sign(muts []Mutation, timeHash sig.Hash, counter uint64) (*Update, error) {
	var nonce sig.RandNonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	canon := make([][]byte, len(muts))
	for i, m := range muts {
		canon[i] = m.Canon()
	}

	buf := sig.MutationsUpdateSignBuffer(c.nodePk, canon, timeHash, c.sessionID, counter, nonce)
	digest := sig.H(buf)
	signature, err := c.signer.SignCompact(digest)
	if err != nil {
		return nil, err
	}

	return &Update{
		NodePk:    c.nodePk,
		Mutations: muts,
		TimeHash:  timeHash,
		SessionID: c.sessionID,
		Counter:   counter,
		RandNonce: nonce,
		Signature: signature,
	}, nil
}
