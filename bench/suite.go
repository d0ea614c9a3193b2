// Package bench pairs naive and optimized renditions of the same logic and
// measures both on fresh engines, so every reported saving comes from the
// cost table alone.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"gasbench/core/engine"
	"gasbench/core/gas"
	"gasbench/core/types"
	"gasbench/native/arith"
	"gasbench/native/batch"
	"gasbench/native/players"
	"gasbench/observability/metrics"
	"gasbench/storage"
)

// OpenFunc supplies a fresh, empty database for one measured variant. The
// returned release function is called once the variant has been measured.
type OpenFunc func(label string) (storage.Database, func(), error)

// Options configures a suite run.
type Options struct {
	Owner      types.Address
	Table      gas.Table
	BatchSize  uint64
	Multiplier uint64
	Name       string
	// Layout and IntegrityCheck set up the ledger for every variant that
	// does not choose its own.
	Layout         players.LayoutKind
	IntegrityCheck bool
	Open           OpenFunc
	Logger         *slog.Logger
	Metrics        *metrics.EngineMetrics
}

// DefaultOptions measures with the stock cost table on in-memory databases.
func DefaultOptions() Options {
	return Options{
		Owner:          types.DeriveAddress("bench-owner"),
		Table:          gas.DefaultTable(),
		BatchSize:      batch.DefaultBatchSize,
		Multiplier:     arith.DefaultMultiplier,
		Name:           players.DefaultName,
		Layout:         players.LayoutPacked,
		IntegrityCheck: true,
		Open:           MemOpen,
		Logger:         slog.Default(),
	}
}

// MemOpen opens an in-memory database.
func MemOpen(string) (storage.Database, func(), error) {
	db := storage.NewMemDB()
	return db, db.Close, nil
}

// Measurement is the cost of one variant of a scenario.
type Measurement struct {
	Label     string                   `yaml:"label" json:"label"`
	Cost      uint64                   `yaml:"cost" json:"cost"`
	Breakdown map[string]types.OpUsage `yaml:"breakdown" json:"breakdown"`
}

// Result compares the naive and optimized variants of a scenario.
type Result struct {
	Scenario    string      `yaml:"scenario" json:"scenario"`
	Description string      `yaml:"description" json:"description"`
	Baseline    Measurement `yaml:"baseline" json:"baseline"`
	Optimized   Measurement `yaml:"optimized" json:"optimized"`
	Saving      int64       `yaml:"saving" json:"saving"`
	// Equivalent reports whether both variants left identical observable
	// results. A saving only counts when it holds.
	Equivalent bool `yaml:"equivalent" json:"equivalent"`
}

// Env is the set of components a variant runs against.
type Env struct {
	Engine *engine.Engine
	Ledger *players.Ledger
	Arith  *arith.Module
	Batch  *batch.Orchestrator
	Owner  types.Address
}

func (o Options) newEnv(ctx context.Context, db storage.Database, ledgerOpts ...players.Option) (*Env, error) {
	eng, err := engine.New(db,
		engine.WithTable(o.Table),
		engine.WithLogger(o.Logger),
		engine.WithMetrics(o.Metrics),
	)
	if err != nil {
		return nil, err
	}
	base := []players.Option{
		players.WithName(o.Name),
		players.WithLogger(o.Logger),
		players.WithIntegrityCheck(o.IntegrityCheck),
	}
	if o.Layout != "" {
		base = append(base, players.WithLayout(o.Layout))
	}
	ledgerOpts = append(base, ledgerOpts...)
	ledger, err := players.New(ctx, eng, batch.DefaultAddress, ledgerOpts...)
	if err != nil {
		return nil, err
	}
	module, err := arith.New(ctx, eng, o.Owner, arith.WithMultiplier(o.Multiplier))
	if err != nil {
		return nil, err
	}
	orchestrator, err := batch.New(ctx, eng, o.Owner, ledger, batch.WithBatchSize(o.BatchSize), batch.WithLogger(o.Logger))
	if err != nil {
		return nil, err
	}
	return &Env{Engine: eng, Ledger: ledger, Arith: module, Batch: orchestrator, Owner: o.Owner}, nil
}

// variant prepares an environment, runs the measured step and returns its
// receipt together with an observation used for the equivalence check.
type variant struct {
	label  string
	ledger []players.Option
	run    func(ctx context.Context, env *Env) (*types.Receipt, string, error)
}

// Scenario is one naive/optimized pair.
type Scenario struct {
	Name        string
	Description string
	baseline    variant
	optimized   variant
}

func (o Options) measure(ctx context.Context, scenario string, v variant) (Measurement, string, error) {
	open := o.Open
	if open == nil {
		open = MemOpen
	}
	db, release, err := open(scenario + "-" + v.label)
	if err != nil {
		return Measurement{}, "", fmt.Errorf("bench: open %s/%s: %w", scenario, v.label, err)
	}
	if release != nil {
		defer release()
	}
	env, err := o.newEnv(ctx, db, v.ledger...)
	if err != nil {
		return Measurement{}, "", fmt.Errorf("bench: setup %s/%s: %w", scenario, v.label, err)
	}
	receipt, observed, err := v.run(ctx, env)
	if err != nil {
		return Measurement{}, "", fmt.Errorf("bench: run %s/%s: %w", scenario, v.label, err)
	}
	return Measurement{Label: v.label, Cost: receipt.Cost, Breakdown: receipt.Breakdown}, observed, nil
}

// Run measures the named scenarios, or all of them when names is empty.
func Run(ctx context.Context, opts Options, names ...string) ([]Result, error) {
	selected, err := Select(names...)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(selected))
	for _, sc := range selected {
		base, baseObs, err := opts.measure(ctx, sc.Name, sc.baseline)
		if err != nil {
			return nil, err
		}
		opt, optObs, err := opts.measure(ctx, sc.Name, sc.optimized)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			Scenario:    sc.Name,
			Description: sc.Description,
			Baseline:    base,
			Optimized:   opt,
			Saving:      int64(base.Cost) - int64(opt.Cost),
			Equivalent:  baseObs == optObs,
		})
	}
	return results, nil
}

// Select returns the named scenarios in catalogue order.
func Select(names ...string) ([]Scenario, error) {
	all := Scenarios()
	if len(names) == 0 {
		return all, nil
	}
	index := make(map[string]Scenario, len(all))
	for _, sc := range all {
		index[sc.Name] = sc
	}
	var out []Scenario
	for _, name := range names {
		sc, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("bench: unknown scenario %q", name)
		}
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return order(out[i].Name) < order(out[j].Name) })
	return out, nil
}

func order(name string) int {
	for i, sc := range Scenarios() {
		if sc.Name == name {
			return i
		}
	}
	return len(Scenarios())
}
