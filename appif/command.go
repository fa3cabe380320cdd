package appif

import (
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/route"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// Command is the sealed union of every request an application may submit,
// the set spec §6 lists verbatim: CreatePayment, CreateTransaction,
// RequestClosePayment, AckClosePayment, AddInvoice, CommitInvoice,
// RequestRoutes, AddFriend, RemoveFriend, SetFriendRate,
// SetFriendCurrencyMaxDebt, OpenFriendCurrency, CloseFriendCurrency,
// EnableFriend, DisableFriend, AddRelay, RemoveRelay, AddIndexServer,
// RemoveIndexServer.
type Command interface {
	class() class
}

// CreatePayment originates a new payment-carrying Request as the route's
// source (a "buyer" action: this node is paying).
type CreatePayment struct {
	Currency         string
	Route            route.Route
	DestPayment      amount.U128
	TotalDestPayment amount.U128
	InvoiceHash      sig.Hash
	Hmac             [32]byte
	SrcHashedLock    [32]byte
	LeftFees         amount.U128
}

func (CreatePayment) class() class { return classBuyer }

// CreateTransaction is CreatePayment's multi-part counterpart: one of
// several Request operations comprising a single logical payment split
// across routes. The core treats it identically to CreatePayment; the
// distinction is meaningful only to the application tracking the split.
type CreateTransaction struct {
	CreatePayment
}

func (CreateTransaction) class() class { return classBuyer }

// RequestClosePayment asks the destination (this node, acting as
// "seller") to settle a request it holds by replying with a Response.
// preimage is the secret behind the request's SrcHashedLock.
type RequestClosePayment struct {
	Currency  string
	RequestID sig.Uid
	Preimage  [32]byte
}

func (RequestClosePayment) class() class { return classSeller }

// AckClosePayment is the rejecting counterpart to RequestClosePayment: no
// matching invoice or the application otherwise declines, so the request
// is cancelled back upstream.
type AckClosePayment struct {
	Currency  string
	RequestID sig.Uid
}

func (AckClosePayment) class() class { return classSeller }

// AddInvoice registers an invoice this node (as seller) is willing to
// accept payment against, keyed by its hash. Preimage is the secret this
// node will reveal as the Response's SrcPlainLock once CommitInvoice
// fires; matching it against the paying request's SrcHashedLock is the
// application's own concern (spec §1 names invoice/hash-lock matching as
// application-facing plumbing), so the core never recomputes the hash.
type AddInvoice struct {
	InvoiceHash sig.Hash
	DestPayment amount.U128
	Preimage    [32]byte
}

func (AddInvoice) class() class { return classSeller }

// CommitInvoice settles the request matching an already-added invoice:
// the application has verified its own side (e.g. delivered goods) and
// authorizes the router to emit the Response.
type CommitInvoice struct {
	InvoiceHash sig.Hash
}

func (CommitInvoice) class() class { return classSeller }

// RequestRoutes asks the (out-of-scope) index server for candidate routes
// to a destination; answered asynchronously via a ResponseRoutes Event.
type RequestRoutes struct {
	Destination sig.PublicKey
	Currency    string
	DestPayment amount.U128
}

func (RequestRoutes) class() class { return classRoutes }

// AddFriend registers a new friend relationship.
type AddFriend struct {
	Friend sig.PublicKey
}

func (AddFriend) class() class { return classConfig }

// RemoveFriend drops a friend relationship entirely.
type RemoveFriend struct {
	Friend sig.PublicKey
}

func (RemoveFriend) class() class { return classConfig }

// SetFriendRate updates the forwarding rate charged on a friend's
// currency.
type SetFriendRate struct {
	Friend   sig.PublicKey
	Currency string
	Rate     mc.Rate
}

func (SetFriendRate) class() class { return classConfig }

// SetFriendCurrencyMaxDebt updates the local or remote max-debt bound for
// a friend's currency.
type SetFriendCurrencyMaxDebt struct {
	Friend   sig.PublicKey
	Currency string
	Local    bool
	MaxDebt  amount.U128
}

func (SetFriendCurrencyMaxDebt) class() class { return classConfig }

// OpenFriendCurrency activates a currency on a friend.
type OpenFriendCurrency struct {
	Friend        sig.PublicKey
	Currency      string
	Rate          mc.Rate
	LocalMaxDebt  amount.U128
	RemoteMaxDebt amount.U128
}

func (OpenFriendCurrency) class() class { return classConfig }

// CloseFriendCurrency deactivates a currency on a friend.
type CloseFriendCurrency struct {
	Friend   sig.PublicKey
	Currency string
}

func (CloseFriendCurrency) class() class { return classConfig }

// EnableFriend marks a friend enabled.
type EnableFriend struct {
	Friend sig.PublicKey
}

func (EnableFriend) class() class { return classConfig }

// DisableFriend marks a friend disabled, draining its forwarded queue.
type DisableFriend struct {
	Friend sig.PublicKey
}

func (DisableFriend) class() class { return classConfig }

// AddRelay appends a relay address to a friend's advertised relay set.
type AddRelay struct {
	Friend sig.PublicKey
	Relay  tokenchannel.RelayAddress
}

func (AddRelay) class() class { return classConfig }

// RemoveRelay removes a relay address from a friend's advertised relay
// set.
type RemoveRelay struct {
	Friend sig.PublicKey
	Relay  tokenchannel.RelayAddress
}

func (RemoveRelay) class() class { return classConfig }

// AddIndexServer registers an out-of-scope index server endpoint the
// node's index-client connects to. The core only records the intent;
// dialing and reconnection are the index-client's own concern.
type AddIndexServer struct {
	Address string
}

func (AddIndexServer) class() class { return classConfig }

// RemoveIndexServer withdraws a previously-added index server endpoint.
type RemoveIndexServer struct {
	Address string
}

func (RemoveIndexServer) class() class { return classConfig }
