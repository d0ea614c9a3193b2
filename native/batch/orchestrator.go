package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"gasbench/core/engine"
	"gasbench/core/gas"
	"gasbench/core/state"
	"gasbench/core/types"
	nativecommon "gasbench/native/common"
)

const (
	// DefaultBatchSize caps how many winners one batch processes.
	DefaultBatchSize = 10
	// Points is awarded to every processed winner.
	Points = 100
)

// Lock states of the reentrancy guard cell. The guard never returns to zero
// so entering and leaving are both resets rather than fresh writes.
const (
	notEntered = 1
	entered    = 2
)

var (
	lockSlot      = state.SlotOf(0)
	batchSizeSlot = state.SlotOf(1)
)

// DefaultAddress is the identity the orchestrator executes as unless
// overridden. Ledgers driven by the orchestrator must treat it as privileged.
var DefaultAddress = types.DeriveAddress("batch-orchestrator")

// ScoreBoard is the ledger contract the orchestrator drives.
type ScoreBoard interface {
	Address() types.Address
	UpdateScoreIn(inv *engine.Invocation, id types.Address, points *uint256.Int) error
}

// Orchestrator awards points to a list of winners, one ledger call per
// winner, under a non-reentrant lock.
type Orchestrator struct {
	engine *engine.Engine
	addr   types.Address
	board  ScoreBoard
	auth   nativecommon.Authorizer
	logger *slog.Logger
}

type config struct {
	addr      types.Address
	batchSize uint64
	auth      nativecommon.Authorizer
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*config)

// WithAddress sets the identity the orchestrator executes as.
func WithAddress(addr types.Address) Option {
	return func(c *config) { c.addr = addr }
}

// WithBatchSize sets the initial batch size.
func WithBatchSize(n uint64) Option {
	return func(c *config) { c.batchSize = n }
}

// WithAuthorizer replaces the owner-only predicate guarding SetBatchSize.
func WithAuthorizer(a nativecommon.Authorizer) Option {
	return func(c *config) { c.auth = a }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New constructs an orchestrator bound to an existing ledger and stores its
// initial state.
func New(ctx context.Context, eng *engine.Engine, owner types.Address, board ScoreBoard, opts ...Option) (*Orchestrator, error) {
	if eng == nil || board == nil {
		return nil, fmt.Errorf("batch: engine and ledger required")
	}
	cfg := config{
		addr:      DefaultAddress,
		batchSize: DefaultBatchSize,
		auth:      nativecommon.OwnerOnly(owner),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	o := &Orchestrator{
		engine: eng,
		addr:   cfg.addr,
		board:  board,
		auth:   cfg.auth,
		logger: cfg.logger.With(slog.String("component", "batch")),
	}
	size := uint256.NewInt(cfg.batchSize).Bytes32()
	lock := uint256.NewInt(notEntered).Bytes32()
	if _, err := eng.Execute(ctx, owner, o.addr, "batch.construct", func(inv *engine.Invocation) error {
		inv.Store(lockSlot, lock)
		inv.Store(batchSizeSlot, size)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("batch: construct: %w", err)
	}
	return o, nil
}

// Address is the identity the orchestrator executes as.
func (o *Orchestrator) Address() types.Address { return o.addr }

// ProcessBatch awards Points to winners in order, stopping at the batch size.
// Any failure reverts every update made by the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, caller types.Address, winners []types.Address) (*types.Receipt, error) {
	return o.engine.Execute(ctx, caller, o.addr, "batch.processBatch", func(inv *engine.Invocation) error {
		return o.ProcessBatchIn(inv, winners)
	})
}

// ProcessBatchIn runs the batch inside a frame executing as the orchestrator.
// Both loop bounds are re-read on every iteration.
func (o *Orchestrator) ProcessBatchIn(inv *engine.Invocation, winners []types.Address) error {
	if err := o.enter(inv); err != nil {
		return err
	}
	points := uint256.NewInt(Points)
	processed := 0
	for i := uint64(0); ; {
		inv.Charge(gas.OpArgLoad, 0)
		if i >= uint64(len(winners)) {
			break
		}
		if i >= o.loadBatchSize(inv) {
			break
		}
		if err := o.award(inv, winners, i, points); err != nil {
			return err
		}
		processed++
		inv.Charge(gas.OpArithChecked, 0)
		i++
	}
	o.exit(inv)
	o.logger.Debug("batch processed", slog.String("invocation", inv.ID()), slog.Int("winners", processed))
	return nil
}

// ProcessBatchCached is ProcessBatch with both bounds read once before the
// loop and an unchecked counter. It updates exactly the same records.
func (o *Orchestrator) ProcessBatchCached(ctx context.Context, caller types.Address, winners []types.Address) (*types.Receipt, error) {
	return o.engine.Execute(ctx, caller, o.addr, "batch.processBatchCached", func(inv *engine.Invocation) error {
		if err := o.enter(inv); err != nil {
			return err
		}
		inv.Charge(gas.OpArgLoad, 0)
		n := uint64(len(winners))
		if size := o.loadBatchSize(inv); size < n {
			n = size
		}
		points := uint256.NewInt(Points)
		for i := uint64(0); i < n; i++ {
			if err := o.award(inv, winners, i, points); err != nil {
				return err
			}
			inv.Charge(gas.OpArithUnchecked, 0)
		}
		o.exit(inv)
		return nil
	})
}

func (o *Orchestrator) award(inv *engine.Invocation, winners []types.Address, i uint64, points *uint256.Int) error {
	inv.Charge(gas.OpArgLoad, 0)
	winner := winners[i]
	err := inv.Call(o.board.Address(), func(callee *engine.Invocation) error {
		return o.board.UpdateScoreIn(callee, winner, points)
	})
	if err != nil {
		return fmt.Errorf("batch: winner %d (%s): %w", i, winner.Hex(), err)
	}
	return nil
}

func (o *Orchestrator) enter(inv *engine.Invocation) error {
	lock := inv.Load(lockSlot)
	if new(uint256.Int).SetBytes(lock[:]).Uint64() == entered {
		return nativecommon.ErrReentrant
	}
	inv.Store(lockSlot, uint256.NewInt(entered).Bytes32())
	return nil
}

func (o *Orchestrator) exit(inv *engine.Invocation) {
	inv.Store(lockSlot, uint256.NewInt(notEntered).Bytes32())
}

func (o *Orchestrator) loadBatchSize(inv *engine.Invocation) uint64 {
	cell := inv.Load(batchSizeSlot)
	size := new(uint256.Int).SetBytes(cell[:])
	if !size.IsUint64() {
		return ^uint64(0)
	}
	return size.Uint64()
}

// SetBatchSize replaces the batch size. Privileged.
func (o *Orchestrator) SetBatchSize(ctx context.Context, caller types.Address, n uint64) (*types.Receipt, error) {
	return o.engine.Execute(ctx, caller, o.addr, "batch.setBatchSize", func(inv *engine.Invocation) error {
		if err := nativecommon.Guard(o.auth, inv.Caller()); err != nil {
			return fmt.Errorf("batch: set batch size: %w", err)
		}
		inv.Store(batchSizeSlot, uint256.NewInt(n).Bytes32())
		return nil
	})
}

// BatchSize returns the committed batch size.
func (o *Orchestrator) BatchSize() (uint64, error) {
	cell, err := o.engine.Peek(o.addr, batchSizeSlot)
	if err != nil {
		return 0, err
	}
	return new(uint256.Int).SetBytes(cell[:]).Uint64(), nil
}
