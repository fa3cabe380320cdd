package tokenchannel

import (
	"bytes"
	"crypto/rand"
	"sort"

	"github.com/davecgh/go-spew/spew"
	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// TokenChannel is the complete per-friend protocol state: status, the
// active mutual credits, the local/remote currency sets, the monotonic
// move_token_counter, and the remote's advertised per-currency max debts
// (spec §3).
type TokenChannel struct {
	LocalPk  sig.PublicKey
	RemotePk sig.PublicKey
	Signer   sig.Signer

	Status Status

	MutualCredits map[string]*mc.MutualCredit

	LocalCurrencies  map[string]bool
	RemoteCurrencies map[string]bool

	MoveTokenCounter amount.U128

	// RemoteMaxDebts is the peer's advertised cap on how far into debt it
	// will let us run; a currency may appear here before it is active
	// (spec §3).
	RemoteMaxDebts map[string]amount.U128

	// LocalMaxDebts is our own configured cap on how far we extend credit
	// to the peer per currency. The spec's data model folds this into
	// each MutualCredit's Balance.LocalMaxDebt; we also keep it keyed by
	// currency here so it survives a reset before the corresponding
	// MutualCredit exists.
	LocalMaxDebts map[string]amount.U128
}

// New creates a fresh TokenChannel for a newly added, enabled friend. The
// side with the lexicographically smaller public key starts holding the
// token (ConsistentIn); the other starts ConsistentOut awaiting that
// side's first move-token, referencing the zero hash as old_token.
func New(localPk, remotePk sig.PublicKey, signer sig.Signer) *TokenChannel {
	tc := &TokenChannel{
		LocalPk:          localPk,
		RemotePk:         remotePk,
		Signer:           signer,
		MutualCredits:    make(map[string]*mc.MutualCredit),
		LocalCurrencies:  make(map[string]bool),
		RemoteCurrencies: make(map[string]bool),
		RemoteMaxDebts:   make(map[string]amount.U128),
		LocalMaxDebts:    make(map[string]amount.U128),
	}
	if bytes.Compare(localPk[:], remotePk[:]) < 0 {
		tc.Status = ConsistentIn{}
	} else {
		tc.Status = ConsistentOut{}
	}
	return tc
}

// ActiveCurrencies returns the intersection of LocalCurrencies and
// RemoteCurrencies (spec §3 "Active currencies are the intersection of
// local_currencies and remote_currencies").
func (tc *TokenChannel) ActiveCurrencies() []string {
	var out []string
	for c := range tc.LocalCurrencies {
		if tc.RemoteCurrencies[c] {
			out = append(out, c)
		}
	}
	return out
}

// IsConsistentIn reports whether we currently hold the token.
func (tc *TokenChannel) IsConsistentIn() bool {
	_, ok := tc.Status.(ConsistentIn)
	return ok
}

// IsConsistentOut reports whether we are awaiting the peer's reply.
func (tc *TokenChannel) IsConsistentOut() bool {
	_, ok := tc.Status.(ConsistentOut)
	return ok
}

// IsInconsistent reports whether the channel needs a reset.
func (tc *TokenChannel) IsInconsistent() bool {
	_, ok := tc.Status.(Inconsistent)
	return ok
}

func (tc *TokenChannel) cloneCredits() map[string]*mc.MutualCredit {
	out := make(map[string]*mc.MutualCredit, len(tc.MutualCredits))
	for currency, credit := range tc.MutualCredits {
		clone := &mc.MutualCredit{
			Currency: credit.Currency,
			Balance:  credit.Balance,
			Local:    make(map[sig.Uid]*mc.PendingTransaction, len(credit.Local)),
			Remote:   make(map[sig.Uid]*mc.PendingTransaction, len(credit.Remote)),
		}
		for id, p := range credit.Local {
			cp := *p
			clone.Local[id] = &cp
		}
		for id, p := range credit.Remote {
			cp := *p
			clone.Remote[id] = &cp
		}
		out[currency] = clone
	}
	return out
}

// ComposeOutgoing composes and signs a move-token carrying ops, which the
// caller must already have validated and applied to tc.MutualCredits via
// mc.Outgoing (spec §4.2 "snapshot current balances, compute info_hash,
// increment move_token_counter, sign new_token..."). Only valid when we
// hold the token (ConsistentIn). currenciesChanged forces composition
// even with zero operations, since a local_currencies mutation alone
// must still reach the peer (spec §4.2 "If there are no operations and
// no active currency mutations, composition is skipped"). Returns
// (nil, false, nil) if there is truly nothing to send, so callers don't
// burn a counter composing an empty token.
func (tc *TokenChannel) ComposeOutgoing(ops []CurrencyOperations, maxOperationsInBatch int, relays []RelayAddress, currenciesChanged bool) (*MoveToken, bool, error) {
	in, ok := tc.Status.(ConsistentIn)
	if !ok {
		return nil, false, ErrWrongDirection
	}

	total := 0
	for _, co := range ops {
		total += len(co.Operations)
	}
	if total == 0 && !currenciesChanged {
		return nil, false, nil
	}
	if total > maxOperationsInBatch {
		return nil, false, ErrTooManyOperations
	}

	newCounter := tc.MoveTokenCounter.Inc64()
	ih := infoHash(tc.LocalPk, tc.RemotePk, tc.MutualCredits, newCounter)

	var nonce sig.RandNonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, false, err
	}
	buf := sig.MoveTokenSignBuffer(in.LastIncomingHash, ih)
	digest := sig.H(buf)
	signature, err := tc.Signer.SignCompact(digest)
	if err != nil {
		return nil, false, err
	}

	mt := &MoveToken{
		Operations:      ops,
		OptLocalRelays:  relays,
		LocalCurrencies: sortedKeys(tc.LocalCurrencies),
		OldToken:        in.LastIncomingHash,
		InfoHash:        ih,
		RandNonce:       nonce,
		NewToken:        signature,
	}

	tc.MoveTokenCounter = newCounter
	lastIn := in.LastIncomingHash
	tc.Status = ConsistentOut{Outgoing: mt, OptLastIncomingHash: &lastIn}

	return mt, true, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// applyIncomingOperations runs every operation in ops against the given
// credits map via mc.Incoming, returning the generated cancels (for
// requests that exceeded the forwarding fee budget), the Requests ready
// to forward and the Responses/Cancels ready to route backwards, and the
// first error encountered.
//
// Forwards and backwards are built from what mc.Incoming already
// computed (the rate-reduced pending row, the removed Local row and its
// recorded route remainder) rather than left for the caller to re-derive
// by re-inspecting credits afterward — by the time this function returns,
// credits has already been mutated past the point that re-derivation
// would see (spec §4.1).
func applyIncomingOperations(credits map[string]*mc.MutualCredit, ourRates map[string]mc.Rate, ops []CurrencyOperations) ([]PendingCancel, []PendingForward, []PendingBackward, error) {
	var cancels []PendingCancel
	var forwards []PendingForward
	var backwards []PendingBackward

	for _, co := range ops {
		credit, ok := credits[co.Currency]
		if !ok {
			return nil, nil, nil, goerrors.Errorf("operations reference unknown currency %q", co.Currency)
		}
		incoming := &mc.Incoming{MC: credit}

		for _, op := range co.Operations {
			switch v := op.(type) {
			case mc.RequestOp:
				muts, pending, cancel, err := incoming.ApplyRequest(v, ourRates[co.Currency])
				if err != nil {
					return nil, nil, nil, err
				}
				if cancel != nil {
					cancels = append(cancels, PendingCancel{Currency: co.Currency, Cancel: *cancel})
					continue
				}
				for _, m := range muts {
					credit.Apply(m)
				}
				forwards = append(forwards, PendingForward{Currency: co.Currency, Pending: pending})
			case mc.ResponseOp:
				muts, pending, err := incoming.ApplyResponse(v, v.LeftFees)
				if err != nil {
					return nil, nil, nil, err
				}
				for _, m := range muts {
					credit.Apply(m)
				}
				backwards = append(backwards, PendingBackward{Currency: co.Currency, Op: v, Pending: pending})
			case mc.CancelOp:
				muts, pending, err := incoming.ApplyCancel(v)
				if err != nil {
					return nil, nil, nil, err
				}
				for _, m := range muts {
					credit.Apply(m)
				}
				backwards = append(backwards, PendingBackward{Currency: co.Currency, Op: v, Pending: pending})
			default:
				return nil, nil, nil, goerrors.Errorf("unknown operation kind %T", v)
			}
		}
	}

	return cancels, forwards, backwards, nil
}

// PendingCancel is a Cancel the Incoming engine generated locally while
// applying a Request (fee budget exceeded), which the Router must still
// deliver back to the peer (spec §4.1).
type PendingCancel struct {
	Currency string
	Cancel   mc.CancelOp
}

// PendingForward is a Request just admitted into our Remote pending
// table, with Pending.LeftFees already reduced by our forwarding rate;
// the Router must build the RequestOp it forwards to the next hop from
// Pending, not from the wire operation that arrived (spec §4.1).
type PendingForward struct {
	Currency string
	Pending  *mc.PendingTransaction
}

// PendingBackward is a Response or Cancel that just removed a row from
// our Local pending table, paired with that row so the Router can route
// it to whichever friend forwarded the original Request — or to the
// local application, if Pending.RouteRemainder names no earlier hop —
// without having to re-consult credit state this same move-token already
// mutated (spec §4.5).
type PendingBackward struct {
	Currency string
	Op       mc.Operation
	Pending  *mc.PendingTransaction
}

// ReceiveResult carries what changed as a result of successfully
// receiving a move-token: the Requests ready to forward, the
// Responses/Cancels ready to route backwards, any locally generated
// cancels, and any currency whose active status (intersection of
// local_currencies and remote_currencies) flipped because the peer's
// LocalCurrencies set changed (spec §3, scenario 5).
type ReceiveResult struct {
	Cancels   []PendingCancel
	Forwards  []PendingForward
	Backwards []PendingBackward
	Opened    []string
	Closed    []string
}

// ReceiveMoveToken verifies and applies an incoming move-token. On any
// verification or application failure, the channel transitions to
// Inconsistent and the error is returned; the caller should treat that as
// non-fatal to the process (spec §4.2, §7).
func (tc *TokenChannel) ReceiveMoveToken(mt *MoveToken, maxOperationsInBatch int, ourRates map[string]mc.Rate) (*ReceiveResult, error) {
	out, ok := tc.Status.(ConsistentOut)
	if !ok {
		return nil, tc.transitionInconsistent(ErrWrongDirection)
	}

	var expectedOld sig.Hash
	if out.OptLastIncomingHash != nil {
		expectedOld = *out.OptLastIncomingHash
	}
	if mt.OldToken != expectedOld {
		return nil, tc.transitionInconsistent(ErrOldTokenMismatch)
	}

	if mt.TotalOps() > maxOperationsInBatch {
		return nil, tc.transitionInconsistent(ErrTooManyOperations)
	}

	buf := sig.MoveTokenSignBuffer(mt.OldToken, mt.InfoHash)
	digest := sig.H(buf)
	if !sig.Verify(tc.RemotePk, digest, mt.NewToken) {
		return nil, tc.transitionInconsistent(ErrBadSignature)
	}

	working := tc.cloneCredits()
	cancels, forwards, backwards, err := applyIncomingOperations(working, ourRates, mt.Operations)
	if err != nil {
		return nil, tc.transitionInconsistent(err)
	}

	newCounter := tc.MoveTokenCounter.Inc64()
	wantInfoHash := infoHash(tc.LocalPk, tc.RemotePk, working, newCounter)
	if wantInfoHash != mt.InfoHash {
		return nil, tc.transitionInconsistent(ErrInfoHashMismatch)
	}

	opened, closed := tc.reconcileRemoteCurrencies(working, mt.LocalCurrencies)

	tc.MutualCredits = working
	tc.MoveTokenCounter = newCounter
	tc.Status = ConsistentIn{LastIncomingHash: tokenHash(mt)}

	return &ReceiveResult{
		Cancels:   cancels,
		Forwards:  forwards,
		Backwards: backwards,
		Opened:    opened,
		Closed:    closed,
	}, nil
}

// reconcileRemoteCurrencies updates tc.RemoteCurrencies to match the
// sender's announced LocalCurrencies, creating a MutualCredit in working
// for any currency that just became active (already in tc.LocalCurrencies,
// previously missing from RemoteCurrencies) and dropping the MutualCredit
// for any that just stopped being active, mirroring what HandleAddCurrency/
// HandleCloseCurrency do on the locally-initiated side (spec §3 "Active
// currencies are the intersection of local_currencies and
// remote_currencies").
func (tc *TokenChannel) reconcileRemoteCurrencies(working map[string]*mc.MutualCredit, announced []string) (opened, closed []string) {
	newRemote := make(map[string]bool, len(announced))
	for _, c := range announced {
		newRemote[c] = true
	}

	for c := range newRemote {
		if tc.RemoteCurrencies[c] {
			continue
		}
		if tc.LocalCurrencies[c] {
			if _, exists := working[c]; !exists {
				working[c] = mc.New(c, tc.LocalMaxDebts[c], tc.RemoteMaxDebts[c])
			}
			opened = append(opened, c)
		}
	}
	for c := range tc.RemoteCurrencies {
		if newRemote[c] {
			continue
		}
		if tc.LocalCurrencies[c] {
			delete(working, c)
			closed = append(closed, c)
		}
	}

	tc.RemoteCurrencies = newRemote
	return opened, closed
}

// GoInconsistent forces the channel to Inconsistent even though no local
// protocol violation was detected — used when the peer's InconsistencyError
// arrives first and reveals a divergence we hadn't noticed ourselves (spec
// §4.4 "Detection is local").
func (tc *TokenChannel) GoInconsistent(cause error) error {
	return tc.transitionInconsistent(cause)
}

// transitionInconsistent moves the channel to Inconsistent, issuing our
// own local reset terms, and clears all pending tables: their outcomes
// are rolled back via responses-that-never-arrive, surfaced to
// originators as cancels by the Router (spec §4.2).
func (tc *TokenChannel) transitionInconsistent(cause error) error {
	terms, err := buildResetTerms(tc.Signer, tc.LocalPk, tc.RemotePk, tc.MutualCredits, tc.MoveTokenCounter)
	if err != nil {
		// Signing our own reset terms should never fail; if it does we
		// still must not silently stay Consistent with divergent state.
		tcLog.Errorf("failed to sign reset terms after %v: %v", cause, err)
	}

	for _, credit := range tc.MutualCredits {
		credit.Local = make(map[sig.Uid]*mc.PendingTransaction)
		credit.Remote = make(map[sig.Uid]*mc.PendingTransaction)
	}

	tcLog.Warnf("channel %s/%s going inconsistent: %v\n%s", tc.LocalPk, tc.RemotePk, cause,
		spew.Sdump(tc.MutualCredits))

	tc.Status = Inconsistent{Local: terms}
	return goerrors.Errorf("channel inconsistent: %v", cause)
}

// ReceiveResetTerms records the peer's reset terms once we are already
// Inconsistent (spec §4.2 "Inconsistent(_, None) --[peer reset terms]-->
// Inconsistent(_, Some(remote))").
func (tc *TokenChannel) ReceiveResetTerms(remote ResetTerms) error {
	inc, ok := tc.Status.(Inconsistent)
	if !ok {
		return ErrNotInconsistent
	}
	inc.Remote = &remote
	tc.Status = inc
	return nil
}

// ShouldSendResetFirst reports whether, once both sides' reset terms are
// known, we are the side responsible for sending the resuming move-token
// (spec §4.2 tie-break on the lexicographically smaller reset_token).
func (tc *TokenChannel) ShouldSendResetFirst() (bool, error) {
	inc, ok := tc.Status.(Inconsistent)
	if !ok || inc.Remote == nil {
		return false, ErrNotInconsistent
	}
	return LowerToken(inc.Local, *inc.Remote), nil
}

// AcceptedResetTerms returns whichever of Local/Remote reset terms has
// the lexicographically smaller reset_token, the one both sides converge
// on resuming from (spec §8 "Reset convergence").
func (inc Inconsistent) AcceptedResetTerms() ResetTerms {
	if inc.Remote == nil || LowerToken(inc.Local, *inc.Remote) {
		return inc.Local
	}
	return *inc.Remote
}

// ResumeFromReset reconstitutes the channel's mutual credits from the
// agreed reset terms. weSendFirst selects which side of the resumed
// channel we land on: the lexicographically-smaller side goes
// ConsistentIn and composes the resuming move-token itself; the other
// side goes ConsistentOut and waits to receive it (spec §4.2, §4.4 —
// the reset terms fix a new old_token lineage, but the channel still
// needs exactly one token holder).
func (tc *TokenChannel) ResumeFromReset(weSendFirst bool) error {
	inc, ok := tc.Status.(Inconsistent)
	if !ok {
		return ErrNotInconsistent
	}
	accepted := inc.AcceptedResetTerms()

	tc.MutualCredits = reconstituteFromReset(accepted, tc.LocalMaxDebts, tc.RemoteMaxDebts)
	tc.LocalCurrencies = make(map[string]bool)
	tc.RemoteCurrencies = make(map[string]bool)
	for currency := range accepted.ResetBalances {
		tc.LocalCurrencies[currency] = true
		tc.RemoteCurrencies[currency] = true
	}
	tc.MoveTokenCounter = accepted.MoveTokenCounter

	resetHash := sig.H(accepted.ResetToken[:])
	if weSendFirst {
		tc.Status = ConsistentIn{LastIncomingHash: resetHash}
	} else {
		tc.Status = ConsistentOut{OptLastIncomingHash: &resetHash}
	}
	return nil
}
