package appif

import (
	"crypto/rand"
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/router"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// ErrPermissionDenied is returned when a Command's class is not granted
// by the App's Permissions.
var ErrPermissionDenied = goerrors.New("command not permitted")

// App is one connected application's view of a Router: a permissioned
// command sink and an event source, exactly the shape spec §6 describes.
// It implements router.AppNotifier, translating the Router's callbacks
// into Events pushed onto Events(). Grounded on rpcServer's pattern of
// wrapping the embedded *server and translating calls one-for-one; here
// translated into an in-process Go channel rather than RPC methods.
type App struct {
	perms  Permissions
	r      *router.Router
	signer sig.Signer
	nodePk sig.PublicKey

	events chan Event

	mu         sync.Mutex
	pendingDst map[sig.Uid]pendingDest
	invoices   map[sig.Hash]AddInvoice
	serial     uint64
}

type pendingDest struct {
	currency string
	req      mc.RequestOp
}

// New creates an App wrapping r, permissioned by perms. Responses this
// node settles as destination are signed with signer under nodePk.
func New(perms Permissions, r *router.Router, signer sig.Signer, nodePk sig.PublicKey) *App {
	return &App{
		perms:      perms,
		r:          r,
		signer:     signer,
		nodePk:     nodePk,
		events:     make(chan Event, 64),
		pendingDst: make(map[sig.Uid]pendingDest),
		invoices:   make(map[sig.Hash]AddInvoice),
	}
}

// Events returns the channel Events are delivered on. The caller (the
// connection loop to the actual application process, out of scope here)
// is responsible for draining it.
func (a *App) Events() <-chan Event {
	return a.events
}

// SendNodeReport emits a NodeReport snapshot, as happens once when an
// application first connects.
func (a *App) SendNodeReport(friends []sig.PublicKey) {
	a.emit(NodeReport{LocalPk: a.nodePk, Friends: friends})
}

func (a *App) emit(e Event) {
	select {
	case a.events <- e:
	default:
		appLog.Warnf("event channel full, dropping %T", e)
	}
}

// Dispatch validates cmd against the App's Permissions and executes it
// against the wrapped Router.
func (a *App) Dispatch(cmd Command) error {
	if !a.perms.allows(cmd.class()) {
		return ErrPermissionDenied
	}

	switch c := cmd.(type) {
	case CreatePayment:
		return a.createPayment(c)
	case CreateTransaction:
		return a.createPayment(c.CreatePayment)
	case RequestClosePayment:
		return a.requestClosePayment(c)
	case AckClosePayment:
		return a.r.SubmitUserCancel(c.Currency, mc.CancelOp{RequestID: c.RequestID})
	case AddInvoice:
		a.mu.Lock()
		a.invoices[c.InvoiceHash] = c
		a.mu.Unlock()
		return nil
	case CommitInvoice:
		return a.commitInvoice(c)
	case RequestRoutes:
		// Route discovery is the out-of-scope index server's concern
		// (spec §1); this command only exists so the channel has
		// something to validate permissions against and eventually
		// relay a ResponseRoutes for.
		return nil
	case AddFriend:
		return a.r.HandleAddFriend(c.Friend)
	case RemoveFriend:
		return a.r.HandleRemoveFriend(c.Friend)
	case SetFriendRate:
		return a.r.HandleSetFriendRate(c.Friend, c.Currency, c.Rate)
	case SetFriendCurrencyMaxDebt:
		return a.r.HandleSetMaxDebt(c.Friend, c.Currency, c.Local, c.MaxDebt)
	case OpenFriendCurrency:
		return a.r.HandleAddCurrency(c.Friend, c.Currency, c.Rate, c.LocalMaxDebt, c.RemoteMaxDebt)
	case CloseFriendCurrency:
		return a.r.HandleCloseCurrency(c.Friend, c.Currency)
	case EnableFriend:
		return a.r.HandleEnableFriend(c.Friend)
	case DisableFriend:
		return a.r.HandleDisableFriend(c.Friend)
	case AddRelay:
		return a.r.HandleAddRelay(c.Friend, c.Relay)
	case RemoveRelay:
		return a.r.HandleRemoveRelay(c.Friend, c.Relay)
	case AddIndexServer, RemoveIndexServer:
		// Recorded by the out-of-scope index-client connection loop,
		// not by the router.
		return nil
	default:
		return goerrors.Errorf("unknown command %T", cmd)
	}
}

func (a *App) createPayment(c CreatePayment) error {
	var reqID sig.Uid
	if _, err := rand.Read(reqID[:]); err != nil {
		return err
	}
	return a.r.SubmitUserRequest(c.Currency, mc.RequestOp{
		RequestID:        reqID,
		Route:            c.Route,
		DestPayment:      c.DestPayment,
		TotalDestPayment: c.TotalDestPayment,
		InvoiceHash:      c.InvoiceHash,
		Hmac:             c.Hmac,
		SrcHashedLock:    c.SrcHashedLock,
		LeftFees:         c.LeftFees,
	})
}

func (a *App) requestClosePayment(c RequestClosePayment) error {
	a.mu.Lock()
	dst, ok := a.pendingDst[c.RequestID]
	delete(a.pendingDst, c.RequestID)
	a.mu.Unlock()
	if !ok {
		return goerrors.Errorf("no pending request %x", c.RequestID)
	}

	resp, err := a.signResponse(dst.req, dst.currency, c.Preimage)
	if err != nil {
		return err
	}
	return a.r.SubmitUserResponse(c.Currency, resp)
}

func (a *App) commitInvoice(c CommitInvoice) error {
	a.mu.Lock()
	invoice, ok := a.invoices[c.InvoiceHash]
	a.mu.Unlock()
	if !ok {
		return goerrors.Errorf("no invoice for hash %x", c.InvoiceHash)
	}

	a.mu.Lock()
	var dst pendingDest
	var reqID sig.Uid
	found := false
	for id, pd := range a.pendingDst {
		if pd.req.InvoiceHash == c.InvoiceHash {
			dst, reqID, found = pd, id, true
			break
		}
	}
	if found {
		delete(a.pendingDst, reqID)
	}
	a.mu.Unlock()
	if !found {
		return goerrors.Errorf("no pending request matches invoice %x", c.InvoiceHash)
	}

	resp, err := a.signResponse(dst.req, dst.currency, invoice.Preimage)
	if err != nil {
		return err
	}
	return a.r.SubmitUserResponse(dst.currency, resp)
}

func (a *App) signResponse(req mc.RequestOp, currency string, preimage [32]byte) (mc.ResponseOp, error) {
	a.mu.Lock()
	serial := a.serial
	a.serial++
	a.mu.Unlock()

	buf := sig.ResponseSignBuffer(req.RequestID, req.Hmac, preimage, req.DestPayment,
		serial, req.TotalDestPayment, req.InvoiceHash, req.LeftFees, currency)
	digest := sig.H(buf)
	signature, err := a.signer.SignCompact(digest)
	if err != nil {
		return mc.ResponseOp{}, err
	}

	// We are the request's destination, so req.LeftFees is already the
	// fee budget left once every upstream hop took its cut; the Response
	// reports it back unchanged so each hop can compute its own share on
	// the way back (spec §4.1).
	return mc.ResponseOp{
		RequestID:    req.RequestID,
		SrcPlainLock: preimage,
		SerialNum:    serial,
		LeftFees:     req.LeftFees,
		Signature:    signature,
	}, nil
}

// DeliverRequest implements router.AppNotifier.
func (a *App) DeliverRequest(currency string, req mc.RequestOp) {
	a.mu.Lock()
	a.pendingDst[req.RequestID] = pendingDest{currency: currency, req: req}
	a.mu.Unlock()
	a.emit(IncomingRequest{Currency: currency, Request: req})
}

// DeliverResponse implements router.AppNotifier.
func (a *App) DeliverResponse(requestID sig.Uid, resp mc.ResponseOp) {
	r := resp
	a.emit(ResponseTransaction{RequestID: requestID, Response: &r})
}

// DeliverCancel implements router.AppNotifier.
func (a *App) DeliverCancel(requestID sig.Uid) {
	a.emit(ResponseTransaction{RequestID: requestID, Cancelled: true})
}

// ChannelInconsistent implements router.AppNotifier.
func (a *App) ChannelInconsistent(friend sig.PublicKey) {
	a.emit(ChannelInconsistent{Friend: friend})
}

var _ router.AppNotifier = (*App)(nil)
