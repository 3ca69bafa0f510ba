package presence

import "errors"

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrFull               = errors.New("session is full")
	ErrForbidden          = errors.New("forbidden")
	ErrUnknownMessageType = errors.New("unknown message type")
)
