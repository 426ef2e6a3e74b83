package abi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStaleHandle         = errors.New("abi: stale handle")
	ErrBoundaryUnavailable = errors.New("abi: boundary unavailable")
	ErrInvalidArgument     = errors.New("abi: invalid argument")
)

// Lookup failures are argument errors on the caller's side of the boundary.
var (
	ErrUnknownClass    = fmt.Errorf("%w: unknown class", ErrInvalidArgument)
	ErrUnknownField    = fmt.Errorf("%w: unknown field", ErrInvalidArgument)
	ErrUnknownFunction = fmt.Errorf("%w: unknown function", ErrInvalidArgument)
	ErrKindMismatch    = fmt.Errorf("%w: kind mismatch", ErrInvalidArgument)
)

// Code is the wire representation of an error kind.
type Code uint32

const (
	CodeOK          Code = 0
	CodeStaleHandle Code = 1
	CodeUnavailable Code = 2
	CodeInvalid     Code = 3
	CodeInternal    Code = 99
)

// CodeOf classifies err into its wire code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrStaleHandle):
		return CodeStaleHandle
	case errors.Is(err, ErrBoundaryUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalid
	default:
		return CodeInternal
	}
}

// RemoteError is an error decoded from an error reply.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeStaleHandle:
		return ErrStaleHandle
	case CodeUnavailable:
		return ErrBoundaryUnavailable
	case CodeInvalid:
		return ErrInvalidArgument
	default:
		return nil
	}
}

// ErrorFromCode rebuilds a classified error from a wire code and message.
func ErrorFromCode(code Code, msg string) error {
	if code == CodeOK {
		return nil
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = fmt.Sprintf("abi: remote error code=%d", code)
	}
	return &RemoteError{Code: code, Message: msg}
}
