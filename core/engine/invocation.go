package engine

import (
	"context"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"gasbench/core/gas"
	"gasbench/core/state"
	"gasbench/core/types"
)

// MaxCallDepth bounds nested component calls within one invocation.
const MaxCallDepth = 64

// ErrCallDepth is returned when nested calls exceed MaxCallDepth.
var ErrCallDepth = errors.New("engine: call depth exceeded")

// Invocation is the execution frame handed to component code. Every storage
// touch, call and priced computation made through it is charged to the
// invocation's meter. Frames created by Call share the journal and meter of
// their parent.
type Invocation struct {
	ctx     context.Context
	id      string
	journal *state.Journal
	meter   *gas.Meter
	caller  types.Address
	self    types.Address
	depth   int
}

// Context returns the context the invocation runs under. Component code that
// calls back into Engine.Execute must pass it on so the nested entry is
// detected.
func (inv *Invocation) Context() context.Context { return inv.ctx }

// ID is the unique identifier of the top-level invocation.
func (inv *Invocation) ID() string { return inv.id }

// Caller is the identity that invoked the current frame.
func (inv *Invocation) Caller() types.Address { return inv.caller }

// Self is the component the current frame executes as.
func (inv *Invocation) Self() types.Address { return inv.self }

// Depth is zero for the top-level frame.
func (inv *Invocation) Depth() int { return inv.depth }

// Meter exposes the invocation's running cost.
func (inv *Invocation) Meter() *gas.Meter { return inv.meter }

// Charge records a priced operation and returns the cumulative cost.
func (inv *Invocation) Charge(kind gas.OpKind, extra uint64) uint64 {
	return inv.meter.Charge(kind, extra)
}

// Load reads one of the current component's cells, charging a cold or warm
// access.
func (inv *Invocation) Load(slot types.Hash) types.Hash {
	value, warm := inv.journal.Read(state.CellID{Contract: inv.self, Slot: slot})
	if warm {
		inv.meter.Charge(gas.OpWarmAccess, 0)
	} else {
		inv.meter.Charge(gas.OpColdAccess, 0)
	}
	return value
}

// Store writes one of the current component's cells. Turning a zero cell
// non-zero is charged as a set; every other write as a reset.
func (inv *Invocation) Store(slot types.Hash, value types.Hash) {
	_, prev := inv.journal.Write(state.CellID{Contract: inv.self, Slot: slot}, value)
	if prev == (types.Hash{}) && value != (types.Hash{}) {
		inv.meter.Charge(gas.OpWriteSet, 0)
		return
	}
	inv.meter.Charge(gas.OpWriteReset, 0)
}

// Keccak hashes data and charges the hash fee for its length.
func (inv *Invocation) Keccak(data ...[]byte) types.Hash {
	var n uint64
	for _, chunk := range data {
		n += uint64(len(chunk))
	}
	inv.meter.Charge(gas.OpHash, n)
	return types.BytesToHash(ethcrypto.Keccak256(data...))
}

// MappingSlot derives the base slot of key in the mapping at slot, charging
// the hash of the padded preimage.
func (inv *Invocation) MappingSlot(key types.Address, slot types.Hash) types.Hash {
	inv.meter.Charge(gas.OpHash, state.MappingPreimageSize)
	return state.MappingSlot(key, slot)
}

// Call runs fn as target, with the current component as caller. The first
// call to a target within the invocation is charged cold, later ones warm.
// A failed call aborts the whole invocation even if the caller drops the
// returned error.
func (inv *Invocation) Call(target types.Address, fn func(*Invocation) error) error {
	if inv.journal.TouchAddress(target) {
		inv.meter.Charge(gas.OpCallWarm, 0)
	} else {
		inv.meter.Charge(gas.OpCallCold, 0)
	}
	if inv.depth+1 > MaxCallDepth {
		inv.journal.Fail(ErrCallDepth)
		return ErrCallDepth
	}
	child := &Invocation{
		ctx:     inv.ctx,
		id:      inv.id,
		journal: inv.journal,
		meter:   inv.meter,
		caller:  inv.self,
		self:    target,
		depth:   inv.depth + 1,
	}
	if err := fn(child); err != nil {
		inv.journal.Fail(err)
		return err
	}
	return nil
}
