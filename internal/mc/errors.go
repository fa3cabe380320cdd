package mc

import goerrors "github.com/go-errors/errors"

// Outgoing-validation rejection reasons (spec §4.1). None of these produce
// mutations; the Router turns a rejected proposal into an immediate
// cancel-backwards (spec §7).
var (
	ErrRemoteMaxDebtTooLarge       = goerrors.New("remote max debt too large")
	ErrInvalidRoute                = goerrors.New("invalid route")
	ErrInsufficientTrust           = goerrors.New("insufficient trust: capacity would be exceeded")
	ErrPendingTransactionAlreadyExists = goerrors.New("pending transaction already exists")
	ErrRequestAlreadyExists        = goerrors.New("request already exists")
	ErrResponseWithoutPending      = goerrors.New("response without matching pending request")
	ErrInvalidInvoiceSignature     = goerrors.New("invalid invoice signature")
)

// Incoming-validation failures. Any of these aborts the whole incoming
// move-token and transitions the channel to Inconsistent (spec §4.1, §7).
var (
	ErrArithmeticOverflow  = goerrors.New("checked arithmetic overflow")
	ErrDuplicateRequestID  = goerrors.New("duplicate request id")
	ErrUnknownCurrency     = goerrors.New("operation references unknown currency")
	ErrCancelAfterResponse = goerrors.New("cancel for a response that already arrived")
)
