package common

import (
	"errors"

	"gasbench/core/engine"
	"gasbench/core/types"
)

var (
	// ErrUnauthorized marks privileged operations attempted by a caller the
	// authorization predicate rejects. Nothing is written.
	ErrUnauthorized = errors.New("caller not authorized")
	// ErrReentrant marks a nested entry into an operation guarded against
	// reentrancy, including a nested top-level entry into the engine. The
	// whole outer invocation is rolled back.
	ErrReentrant = engine.ErrReentrant
	// ErrOverflow marks a checked arithmetic operation whose result does not
	// fit in 256 bits. It is fatal for the invocation.
	ErrOverflow = errors.New("arithmetic overflow")
)

// Authorizer decides whether a caller may invoke privileged operations. The
// engine treats it as an opaque predicate.
type Authorizer interface {
	IsPrivileged(caller types.Address) bool
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(caller types.Address) bool

func (f AuthorizerFunc) IsPrivileged(caller types.Address) bool {
	return f(caller)
}

// OwnerOnly grants privileges to a single identity.
type OwnerOnly types.Address

func (o OwnerOnly) IsPrivileged(caller types.Address) bool {
	return types.Address(o) == caller
}

// Guard returns ErrUnauthorized unless a admits caller. A nil authorizer
// admits nobody.
func Guard(a Authorizer, caller types.Address) error {
	if a == nil || !a.IsPrivileged(caller) {
		return ErrUnauthorized
	}
	return nil
}
