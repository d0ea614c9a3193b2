package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"gasbench/core/types"
)

// MappingPreimageSize is the number of bytes hashed to derive a mapping entry's
// base slot: a padded key followed by the padded mapping slot.
const MappingPreimageSize = 2 * CellSize

// SlotOf returns the fixed slot n.
func SlotOf(n uint64) types.Hash {
	return uint256.NewInt(n).Bytes32()
}

// MappingSlot derives the base slot of the entry for key in the mapping
// declared at slot.
func MappingSlot(key types.Address, slot types.Hash) types.Hash {
	var preimage [MappingPreimageSize]byte
	copy(preimage[CellSize-types.AddressLength:CellSize], key[:])
	copy(preimage[CellSize:], slot[:])
	return types.BytesToHash(ethcrypto.Keccak256(preimage[:]))
}

// OffsetSlot returns base+n with 256-bit wrap-around.
func OffsetSlot(base types.Hash, n int) types.Hash {
	v := new(uint256.Int).SetBytes(base[:])
	v.Add(v, uint256.NewInt(uint64(n)))
	return v.Bytes32()
}

// EncodeShortString packs s into one cell: the bytes left aligned and twice
// the length in the lowest byte.
func EncodeShortString(s string) (types.Hash, error) {
	if len(s) > CellSize-1 {
		return types.Hash{}, fmt.Errorf("state: string of %d bytes does not fit one cell", len(s))
	}
	var cell types.Hash
	copy(cell[:], s)
	cell[CellSize-1] = byte(2 * len(s))
	return cell, nil
}

// DecodeShortString reverses EncodeShortString.
func DecodeShortString(cell types.Hash) (string, error) {
	marker := cell[CellSize-1]
	if marker%2 != 0 {
		return "", fmt.Errorf("state: cell does not hold a short string")
	}
	n := int(marker / 2)
	if n > CellSize-1 {
		return "", fmt.Errorf("state: short string length %d out of range", n)
	}
	return string(cell[:n]), nil
}

// Keccak hashes data without charging; callers inside an invocation use the
// charged variant on the invocation instead.
func Keccak(data ...[]byte) types.Hash {
	return types.BytesToHash(ethcrypto.Keccak256(data...))
}
