package players

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"gasbench/core/engine"
	"gasbench/core/gas"
	"gasbench/core/state"
	"gasbench/core/types"
	nativecommon "gasbench/native/common"
)

// DefaultName is the ledger name stored at construction and re-hashed by the
// integrity check on every registration.
const DefaultName = "GasBench"

var (
	nameSlot    = state.SlotOf(0)
	playersSlot = state.SlotOf(1)
)

// ErrIntegrity is returned when the stored ledger name no longer hashes to the
// value fixed at construction. Nothing in the ledger rewrites the name, so a
// correctly constructed ledger never reports it.
var ErrIntegrity = errors.New("players: integrity check failed")

// Ledger maps identities to PlayerRecords held in the engine's cell store.
type Ledger struct {
	engine    *engine.Engine
	addr      types.Address
	owner     types.Address
	auth      nativecommon.Authorizer
	name      string
	expected  types.Hash
	kind      LayoutKind
	layout    *state.Layout
	integrity bool
	logger    *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAddress sets the identity the ledger executes as.
func WithAddress(addr types.Address) Option {
	return func(l *Ledger) { l.addr = addr }
}

// WithLayout selects the record layout.
func WithLayout(kind LayoutKind) Option {
	return func(l *Ledger) { l.kind = kind }
}

// WithName overrides the stored ledger name. It must fit in a single cell.
func WithName(name string) Option {
	return func(l *Ledger) { l.name = name }
}

// WithAuthorizer replaces the owner-only predicate guarding UpdateScore.
func WithAuthorizer(a nativecommon.Authorizer) Option {
	return func(l *Ledger) { l.auth = a }
}

// WithIntegrityCheck toggles the name hash comparison in Register. The check
// always passes, so disabling it changes cost but not state.
func WithIntegrityCheck(enabled bool) Option {
	return func(l *Ledger) { l.integrity = enabled }
}

// WithLogger sets the ledger's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New constructs a ledger owned by owner and stores its name in one
// construction invocation.
func New(ctx context.Context, eng *engine.Engine, owner types.Address, opts ...Option) (*Ledger, error) {
	if eng == nil {
		return nil, fmt.Errorf("players: engine required")
	}
	l := &Ledger{
		engine:    eng,
		addr:      types.DeriveAddress("player-ledger"),
		owner:     owner,
		auth:      nativecommon.OwnerOnly(owner),
		name:      DefaultName,
		kind:      LayoutPacked,
		integrity: true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	layout, err := l.kind.layout()
	if err != nil {
		return nil, err
	}
	l.layout = layout
	nameCell, err := state.EncodeShortString(l.name)
	if err != nil {
		return nil, fmt.Errorf("players: name: %w", err)
	}
	l.expected = keccakString(l.name)
	l.logger = l.logger.With(slog.String("component", "players"), slog.String("layout", string(l.kind)))

	if _, err := eng.Execute(ctx, owner, l.addr, "players.construct", func(inv *engine.Invocation) error {
		inv.Store(nameSlot, nameCell)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("players: construct: %w", err)
	}
	return l, nil
}

// Address is the identity the ledger executes as.
func (l *Ledger) Address() types.Address { return l.addr }

// Owner is the identity passed at construction.
func (l *Ledger) Owner() types.Address { return l.owner }

// Layout reports the record layout in use.
func (l *Ledger) Layout() LayoutKind { return l.kind }

// Register creates or overwrites the record of id as {active, score 0}.
func (l *Ledger) Register(ctx context.Context, caller, id types.Address) (*types.Receipt, error) {
	return l.engine.Execute(ctx, caller, l.addr, "players.register", func(inv *engine.Invocation) error {
		return l.RegisterIn(inv, id)
	})
}

// RegisterIn performs Register inside an existing invocation frame executing
// as the ledger.
func (l *Ledger) RegisterIn(inv *engine.Invocation, id types.Address) error {
	if l.integrity {
		if err := l.checkIntegrity(inv); err != nil {
			return err
		}
	}
	base := inv.MappingSlot(id, playersSlot)
	record := types.PlayerRecord{Player: id, Active: true, Score: new(uint256.Int)}
	for i, cell := range encode(l.layout, record) {
		inv.Store(state.OffsetSlot(base, i), cell)
	}
	l.logger.Debug("player registered", slog.String("player", id.Hex()))
	return nil
}

// checkIntegrity re-hashes the stored name and compares it with the hash fixed
// at construction.
func (l *Ledger) checkIntegrity(inv *engine.Invocation) error {
	name, err := state.DecodeShortString(inv.Load(nameSlot))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if inv.Keccak([]byte(name)) != l.expected {
		return ErrIntegrity
	}
	return nil
}

// UpdateScore adds points to the score of id. Only privileged callers may
// update scores; records that are not active are left untouched without
// error.
func (l *Ledger) UpdateScore(ctx context.Context, caller, id types.Address, points *uint256.Int) (*types.Receipt, error) {
	return l.engine.Execute(ctx, caller, l.addr, "players.updateScore", func(inv *engine.Invocation) error {
		return l.UpdateScoreIn(inv, id, points)
	})
}

// UpdateScoreIn performs UpdateScore inside an existing invocation frame
// executing as the ledger. The frame's caller is the one authorized.
func (l *Ledger) UpdateScoreIn(inv *engine.Invocation, id types.Address, points *uint256.Int) error {
	if err := nativecommon.Guard(l.auth, inv.Caller()); err != nil {
		return fmt.Errorf("players: update score: %w", err)
	}
	if points == nil {
		points = new(uint256.Int)
	}
	base := inv.MappingSlot(id, playersSlot)
	active, _ := l.layout.Field(fieldActive)
	if active.Get(inv.Load(state.OffsetSlot(base, active.Cell))).IsZero() {
		return nil
	}
	score, _ := l.layout.Field(fieldScore)
	scoreSlot := state.OffsetSlot(base, score.Cell)
	cell := inv.Load(scoreSlot)
	sum, overflow := new(uint256.Int).AddOverflow(score.Get(cell), points)
	inv.Charge(gas.OpArithChecked, 0)
	if overflow {
		return fmt.Errorf("players: score of %s: %w", id.Hex(), nativecommon.ErrOverflow)
	}
	inv.Store(scoreSlot, score.Set(cell, sum))
	return nil
}

// Player returns the committed record of id. The boolean reports whether id
// has ever been registered.
func (l *Ledger) Player(id types.Address) (types.PlayerRecord, bool, error) {
	base := state.MappingSlot(id, playersSlot)
	cells := make([]types.Hash, l.layout.Cells())
	for i := range cells {
		cell, err := l.engine.Peek(l.addr, state.OffsetSlot(base, i))
		if err != nil {
			return types.PlayerRecord{}, false, err
		}
		cells[i] = cell
	}
	record := decode(l.layout, id, cells)
	return record, record.Active, nil
}

// Name returns the committed ledger name.
func (l *Ledger) Name() (string, error) {
	cell, err := l.engine.Peek(l.addr, nameSlot)
	if err != nil {
		return "", err
	}
	return state.DecodeShortString(cell)
}

func keccakString(s string) types.Hash {
	return state.Keccak([]byte(s))
}
