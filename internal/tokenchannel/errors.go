package tokenchannel

import goerrors "github.com/go-errors/errors"

// Rejection reasons surfaced by this package. Unlike mc's validation
// errors (which the Router recovers from locally), an error returned by
// ReceiveMoveToken means the channel has transitioned to Inconsistent.
// ComposeOutgoing, ReceiveResetTerms, ShouldSendResetFirst and
// ResumeFromReset return these errors without changing the status.
var (
	ErrWrongDirection     = goerrors.New("operation not valid in current channel direction")
	ErrOldTokenMismatch   = goerrors.New("old_token does not match our last-sent token")
	ErrInfoHashMismatch   = goerrors.New("info_hash does not match recomputed balances")
	ErrBadSignature       = goerrors.New("move-token signature does not verify")
	ErrTooManyOperations  = goerrors.New("operation batch exceeds max_operations_in_batch")
	ErrNotInconsistent    = goerrors.New("channel is not inconsistent")
	ErrResetTokenMismatch = goerrors.New("reset move-token does not reference either side's reset_token")
)
