package rpc

import "fmt"

// Error is a client-visible RPC error. Unlike generic errors, the exact
// message of an Error is included in the error response sent to the client,
// so it must never carry internal detail or key material.
//
// Handlers return Error for caller-attributable failures and plain errors
// for internal ones; Context.Fail substitutes a fallback message for
// anything that is not an Error.
type Error struct {
	err error
}

// Errorf creates a new client-visible Error with a formatted message.
func Errorf(format string, args ...any) Error {
	return Error{err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.err.Error()
}
