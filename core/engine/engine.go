package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gasbench/core/gas"
	"gasbench/core/state"
	"gasbench/core/types"
	"gasbench/observability/metrics"
	"gasbench/storage"
)

var (
	// ErrReentrant marks a nested entry into an operation that is already
	// running. The whole outer invocation is rolled back.
	ErrReentrant = errors.New("reentrant call")
	// ErrNestedInvocation is returned when a top-level invocation is started
	// from inside another one on the same engine. Nested work must go through
	// Invocation.Call.
	ErrNestedInvocation = fmt.Errorf("%w: engine: nested top-level invocation", ErrReentrant)
)

type activeKey struct{}

// frame marks a context as belonging to a running invocation.
type frame struct {
	engine  *Engine
	journal *state.Journal
}

// Engine serializes top-level invocations against one cell store. Each
// invocation gets a fresh journal and meter; its writes are committed
// atomically when it succeeds and dropped when it fails.
type Engine struct {
	// sem holds one token; the invocation owning it runs alone.
	sem     chan struct{}
	cells   *state.Cells
	table   gas.Table
	logger  *slog.Logger
	metrics *metrics.EngineMetrics
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTable overrides the default cost table.
func WithTable(table gas.Table) Option {
	return func(e *Engine) { e.table = table }
}

// WithLogger sets the logger used for invocation events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors. Metrics are off by default.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New constructs an engine over db.
func New(db storage.Database, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("engine: database required")
	}
	e := &Engine{
		sem:    make(chan struct{}, 1),
		cells:  state.NewCells(db),
		table:  gas.DefaultTable(),
		logger: slog.Default(),
		tracer: otel.Tracer("gasbench/core/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.table.Validate(); err != nil {
		return nil, err
	}
	e.logger = e.logger.With(slog.String("component", "engine"))
	return e, nil
}

// Table returns the cost table charged by every invocation.
func (e *Engine) Table() gas.Table {
	return e.table
}

// Peek reads a committed cell without opening an invocation. It backs the
// read-only query surface and is never charged. Writes of a running
// invocation are not visible until it commits.
func (e *Engine) Peek(contract types.Address, slot types.Hash) (types.Hash, error) {
	return e.cells.Get(state.CellID{Contract: contract, Slot: slot})
}

// Execute runs fn as one top-level invocation from caller into target. The
// returned receipt carries the accounted cost whether or not fn succeeded;
// the error is fn's error, the first error returned by a nested Call, or a
// commit failure.
//
// Invocations wait for each other. Code running inside an invocation that
// reaches Execute again must pass Invocation.Context: the nested entry then
// fails with ErrNestedInvocation and the outer invocation is aborted. A
// context without that marker waits for the running invocation, so from
// inside one it blocks until ctx is done.
func (e *Engine) Execute(ctx context.Context, caller, target types.Address, method string, fn func(*Invocation) error) (*types.Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f, ok := ctx.Value(activeKey{}).(*frame); ok && f.engine == e {
		f.journal.Fail(ErrNestedInvocation)
		return nil, ErrNestedInvocation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	id := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, method, trace.WithAttributes(
		attribute.String("invocation.id", id),
		attribute.String("invocation.caller", caller.Hex()),
		attribute.String("invocation.target", target.Hex()),
	))
	defer span.End()

	journal := e.cells.Begin()
	inv := &Invocation{
		ctx:     context.WithValue(ctx, activeKey{}, &frame{engine: e, journal: journal}),
		id:      id,
		journal: journal,
		meter:   gas.NewMeter(e.table),
		caller:  caller,
		self:    target,
	}
	inv.journal.TouchAddress(target)
	err := run(inv, fn)
	if err == nil {
		err = inv.journal.Err()
	}
	dirty := inv.journal.Dirty()
	if err == nil {
		err = inv.journal.Commit()
	} else {
		inv.journal.Discard()
	}

	receipt := &types.Receipt{
		ID:        id,
		Method:    method,
		Caller:    caller,
		Cost:      inv.meter.Total(),
		Breakdown: inv.meter.Breakdown(),
		Reverted:  err != nil,
		Err:       err,
	}
	span.SetAttributes(attribute.Int64("invocation.cost", int64(receipt.Cost)))

	e.metrics.ObserveInvocation(method, receipt.Reverted, receipt.Cost)
	for op, usage := range receipt.Breakdown {
		e.metrics.AddOpCost(op, usage.Cost)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("invocation reverted",
			slog.String("invocation", id),
			slog.String("method", method),
			slog.Uint64("cost", receipt.Cost),
			slog.Any("error", err))
		return receipt, err
	}
	e.metrics.AddCellsCommitted(method, dirty)
	e.logger.Debug("invocation committed",
		slog.String("invocation", id),
		slog.String("method", method),
		slog.Uint64("cost", receipt.Cost),
		slog.Int("cells", dirty))
	return receipt, nil
}

func run(inv *Invocation, fn func(*Invocation) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: invocation panicked: %v", r)
		}
	}()
	return fn(inv)
}
