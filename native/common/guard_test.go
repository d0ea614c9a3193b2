package common

import (
	"errors"
	"testing"

	"gasbench/core/types"
)

func TestGuard(t *testing.T) {
	owner := types.DeriveAddress("owner")
	other := types.DeriveAddress("other")

	if err := Guard(OwnerOnly(owner), owner); err != nil {
		t.Fatalf("owner must pass: %v", err)
	}
	if err := Guard(OwnerOnly(owner), other); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := Guard(nil, owner); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("nil authorizer must reject, got %v", err)
	}
	anyone := AuthorizerFunc(func(types.Address) bool { return true })
	if err := Guard(anyone, other); err != nil {
		t.Fatalf("func authorizer must pass: %v", err)
	}
}
