package router

import goerrors "github.com/go-errors/errors"

var (
	ErrUnknownFriend        = goerrors.New("friend not known to router")
	ErrFriendAlreadyExists  = goerrors.New("friend already added")
	ErrCurrencyNotActive    = goerrors.New("currency not active on this friend")
	ErrNoLink               = goerrors.New("friend has no registered transport link")
	ErrUnknownOperationKind = goerrors.New("operation is not a Request, Response, or Cancel")
)
