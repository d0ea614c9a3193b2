package arith

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"gasbench/core/engine"
	"gasbench/core/gas"
	"gasbench/core/state"
	"gasbench/core/types"
	nativecommon "gasbench/native/common"
)

const (
	// DataLength is the size of the precomputed sequence.
	DataLength = 50
	// DefaultMultiplier seeds the shared multiplier cell.
	DefaultMultiplier = 5
	// GridSize is the side of the index grid walked by HeavyCompute.
	GridSize = 5
	// AddBonus is added on top of the operands by UncheckedAdd and CheckedAdd.
	AddBonus = 100
)

var multiplierSlot = state.SlotOf(0)

// ErrNilOperand is returned when an operation is handed a nil operand.
var ErrNilOperand = errors.New("arith: nil operand")

func requireOperands(method string, operands ...*uint256.Int) error {
	for i, v := range operands {
		if v == nil {
			return fmt.Errorf("%s: operand %d: %w", method, i, ErrNilOperand)
		}
	}
	return nil
}

// Module holds the arithmetic operations. The data sequence is fixed at
// construction; the multiplier lives in the engine's cell store and is shared
// by every call.
type Module struct {
	engine *engine.Engine
	addr   types.Address
	auth   nativecommon.Authorizer
	data   [DataLength]uint256.Int
}

// Option configures a Module.
type Option func(*moduleConfig)

type moduleConfig struct {
	addr       types.Address
	auth       nativecommon.Authorizer
	multiplier uint64
}

// WithAddress sets the identity the module executes as.
func WithAddress(addr types.Address) Option {
	return func(c *moduleConfig) { c.addr = addr }
}

// WithMultiplier sets the initial multiplier.
func WithMultiplier(m uint64) Option {
	return func(c *moduleConfig) { c.multiplier = m }
}

// WithAuthorizer replaces the owner-only predicate guarding SetMultiplier.
func WithAuthorizer(a nativecommon.Authorizer) Option {
	return func(c *moduleConfig) { c.auth = a }
}

// New constructs the module and stores the initial multiplier.
func New(ctx context.Context, eng *engine.Engine, owner types.Address, opts ...Option) (*Module, error) {
	if eng == nil {
		return nil, fmt.Errorf("arith: engine required")
	}
	cfg := moduleConfig{
		addr:       types.DeriveAddress("arithmetic"),
		auth:       nativecommon.OwnerOnly(owner),
		multiplier: DefaultMultiplier,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Module{engine: eng, addr: cfg.addr, auth: cfg.auth}
	for i := range m.data {
		m.data[i].SetUint64(uint64(i))
	}
	initial := uint256.NewInt(cfg.multiplier).Bytes32()
	if _, err := eng.Execute(ctx, owner, m.addr, "arith.construct", func(inv *engine.Invocation) error {
		inv.Store(multiplierSlot, initial)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("arith: construct: %w", err)
	}
	return m, nil
}

// Address is the identity the module executes as.
func (m *Module) Address() types.Address { return m.addr }

func (m *Module) loadMultiplier(inv *engine.Invocation) *uint256.Int {
	cell := inv.Load(multiplierSlot)
	return new(uint256.Int).SetBytes(cell[:])
}

// HeavyCompute sums i*j*multiplier over a GridSize×GridSize grid, reading the
// multiplier from storage on every iteration. HeavyComputeCached is the
// equivalent that reads it once.
func (m *Module) HeavyCompute(ctx context.Context, caller types.Address) (*uint256.Int, *types.Receipt, error) {
	return m.compute(ctx, caller, "arith.heavyCompute", m.heavyCompute)
}

// HeavyComputeCached returns the same total as HeavyCompute with a single
// multiplier read.
func (m *Module) HeavyComputeCached(ctx context.Context, caller types.Address) (*uint256.Int, *types.Receipt, error) {
	return m.compute(ctx, caller, "arith.heavyComputeCached", m.heavyComputeCached)
}

func (m *Module) heavyCompute(inv *engine.Invocation) (*uint256.Int, error) {
	total := new(uint256.Int)
	for i := uint64(0); i < GridSize; i++ {
		for j := uint64(0); j < GridSize; j++ {
			if err := accumulate(inv, total, i, j, m.loadMultiplier(inv)); err != nil {
				return nil, err
			}
		}
	}
	return total, nil
}

func (m *Module) heavyComputeCached(inv *engine.Invocation) (*uint256.Int, error) {
	multiplier := m.loadMultiplier(inv)
	total := new(uint256.Int)
	for i := uint64(0); i < GridSize; i++ {
		for j := uint64(0); j < GridSize; j++ {
			if err := accumulate(inv, total, i, j, multiplier); err != nil {
				return nil, err
			}
		}
	}
	return total, nil
}

// accumulate adds i*j*multiplier to total with checked arithmetic: two
// multiplications and one addition.
func accumulate(inv *engine.Invocation, total *uint256.Int, i, j uint64, multiplier *uint256.Int) error {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(i), uint256.NewInt(j))
	inv.Charge(gas.OpArithChecked, 0)
	if overflow {
		return nativecommon.ErrOverflow
	}
	product, overflow = product.MulOverflow(product, multiplier)
	inv.Charge(gas.OpArithChecked, 0)
	if overflow {
		return nativecommon.ErrOverflow
	}
	_, overflow = total.AddOverflow(total, product)
	inv.Charge(gas.OpArithChecked, 0)
	if overflow {
		return nativecommon.ErrOverflow
	}
	return nil
}

// QuickDiv returns amount/2 using division.
func (m *Module) QuickDiv(ctx context.Context, caller types.Address, amount *uint256.Int) (*uint256.Int, *types.Receipt, error) {
	return m.compute(ctx, caller, "arith.quickDiv", func(inv *engine.Invocation) (*uint256.Int, error) {
		if err := requireOperands("arith: quick div", amount); err != nil {
			return nil, err
		}
		inv.Charge(gas.OpDiv, 0)
		return new(uint256.Int).Div(amount, uint256.NewInt(2)), nil
	})
}

// QuickShift returns amount>>1, numerically identical to QuickDiv for
// unsigned operands.
func (m *Module) QuickShift(ctx context.Context, caller types.Address, amount *uint256.Int) (*uint256.Int, *types.Receipt, error) {
	return m.compute(ctx, caller, "arith.quickShift", func(inv *engine.Invocation) (*uint256.Int, error) {
		if err := requireOperands("arith: quick shift", amount); err != nil {
			return nil, err
		}
		inv.Charge(gas.OpShift, 0)
		return new(uint256.Int).Rsh(amount, 1), nil
	})
}

// UncheckedAdd returns a+b+AddBonus modulo 2^256.
func (m *Module) UncheckedAdd(ctx context.Context, caller types.Address, a, b *uint256.Int) (*uint256.Int, *types.Receipt, error) {
	return m.compute(ctx, caller, "arith.uncheckedAdd", func(inv *engine.Invocation) (*uint256.Int, error) {
		if err := requireOperands("arith: unchecked add", a, b); err != nil {
			return nil, err
		}
		sum := new(uint256.Int).Add(a, b)
		inv.Charge(gas.OpArithUnchecked, 0)
		sum.Add(sum, uint256.NewInt(AddBonus))
		inv.Charge(gas.OpArithUnchecked, 0)
		return sum, nil
	})
}

// CheckedAdd returns a+b+AddBonus and fails with ErrOverflow when the result
// does not fit in 256 bits.
func (m *Module) CheckedAdd(ctx context.Context, caller types.Address, a, b *uint256.Int) (*uint256.Int, *types.Receipt, error) {
	return m.compute(ctx, caller, "arith.checkedAdd", func(inv *engine.Invocation) (*uint256.Int, error) {
		if err := requireOperands("arith: checked add", a, b); err != nil {
			return nil, err
		}
		sum, overflow := new(uint256.Int).AddOverflow(a, b)
		inv.Charge(gas.OpArithChecked, 0)
		if overflow {
			return nil, nativecommon.ErrOverflow
		}
		_, overflow = sum.AddOverflow(sum, uint256.NewInt(AddBonus))
		inv.Charge(gas.OpArithChecked, 0)
		if overflow {
			return nil, nativecommon.ErrOverflow
		}
		return sum, nil
	})
}

// SetMultiplier replaces the shared multiplier. Privileged.
func (m *Module) SetMultiplier(ctx context.Context, caller types.Address, value *uint256.Int) (*types.Receipt, error) {
	return m.engine.Execute(ctx, caller, m.addr, "arith.setMultiplier", func(inv *engine.Invocation) error {
		if err := nativecommon.Guard(m.auth, inv.Caller()); err != nil {
			return fmt.Errorf("arith: set multiplier: %w", err)
		}
		if err := requireOperands("arith: set multiplier", value); err != nil {
			return err
		}
		inv.Store(multiplierSlot, value.Bytes32())
		return nil
	})
}

// Multiplier returns the committed multiplier.
func (m *Module) Multiplier() (*uint256.Int, error) {
	cell, err := m.engine.Peek(m.addr, multiplierSlot)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(cell[:]), nil
}

// Data returns a copy of the precomputed sequence.
func (m *Module) Data() []*uint256.Int {
	out := make([]*uint256.Int, DataLength)
	for i := range m.data {
		out[i] = new(uint256.Int).Set(&m.data[i])
	}
	return out
}

// DataAt returns element i of the precomputed sequence.
func (m *Module) DataAt(i int) (*uint256.Int, error) {
	if i < 0 || i >= DataLength {
		return nil, fmt.Errorf("arith: index %d out of range [0,%d)", i, DataLength)
	}
	return new(uint256.Int).Set(&m.data[i]), nil
}

func (m *Module) compute(ctx context.Context, caller types.Address, method string, fn func(*engine.Invocation) (*uint256.Int, error)) (*uint256.Int, *types.Receipt, error) {
	var result *uint256.Int
	receipt, err := m.engine.Execute(ctx, caller, m.addr, method, func(inv *engine.Invocation) error {
		out, err := fn(inv)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	return result, receipt, nil
}
