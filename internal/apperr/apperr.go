// Package apperr provides lightweight, coded errors for the gateway's
// data-plane outcomes, in the spirit of nabbar-golib's errors package
// (numeric codes, optional parent error, compatible with errors.Is/As)
// without that package's full stack-trace and hierarchy machinery — the
// data plane only needs to classify an outcome, not carry a call chain.
package apperr

import "fmt"

// Code classifies a data-plane outcome. Values below 1000 are reserved for
// the fixed outcomes named in spec §7; callers may not mint new ones on the
// fly the way an HTTP status code can't be invented mid-request.
type Code int

const (
	// CodeInvalidHead marks a malformed request or response head.
	CodeInvalidHead Code = iota + 1
	// CodeRouteNotFound marks a request whose host/path matched no route.
	CodeRouteNotFound
	// CodeClusterNotFound marks a Backend action naming an unknown cluster.
	CodeClusterNotFound
	// CodeNoAvailableMember marks a cluster with no eligible member.
	CodeNoAvailableMember
	// CodeBufferOverLimit marks a buffer request that exceeded quota.
	CodeBufferOverLimit
)

// Error is a coded error with an optional parent.
type Error struct {
	code   Code
	msg    string
	parent error
}

func (e *Error) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.parent)
	}
	return e.msg
}

// Unwrap exposes the parent error to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.parent }

// Code returns the classification code.
func (e *Error) Code() Code { return e.code }

// New builds a coded error, optionally wrapping a parent.
func New(code Code, msg string, parent error) *Error {
	return &Error{code: code, msg: msg, parent: parent}
}
