package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is the opaque 20-byte identity used for players, callers and the
// components themselves. The engine never interprets its contents.
type Address = common.Address

// Hash is a 32-byte word: storage slots and cell values share this type.
type Hash = common.Hash

// AddressLength is the fixed width of an identity in bytes.
const AddressLength = common.AddressLength

// ParseAddress decodes a 0x-prefixed hex identity.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// DeriveAddress produces a deterministic identity from a label. It is used to
// give components and fixtures stable addresses without key material.
func DeriveAddress(label string) Address {
	var addr Address
	copy(addr[:], []byte(label))
	return addr
}

// BytesToHash left-pads b into a 32-byte word, cropping from the left when b
// is longer.
func BytesToHash(b []byte) Hash {
	return common.BytesToHash(b)
}
