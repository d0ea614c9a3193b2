package bench

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"gasbench/core/types"
	"gasbench/native/players"
)

var (
	player = types.DeriveAddress("bench-player")
	nobody = types.DeriveAddress("bench-caller")
)

func winners(n int) []types.Address {
	out := make([]types.Address, n)
	for i := range out {
		out[i] = types.DeriveAddress(fmt.Sprintf("bench-winner-%02d", i))
	}
	return out
}

func describePlayer(env *Env, id types.Address) (string, error) {
	record, ok, err := env.Ledger.Player(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("registered=%t active=%t score=%s", ok, record.Active, record.Score), nil
}

func registerPlayer(ctx context.Context, env *Env) (*types.Receipt, string, error) {
	receipt, err := env.Ledger.Register(ctx, nobody, player)
	if err != nil {
		return nil, "", err
	}
	observed, err := describePlayer(env, player)
	return receipt, observed, err
}

func registerVariant(label string, opts ...players.Option) variant {
	return variant{label: label, ledger: opts, run: registerPlayer}
}

func heavyCompute(cached bool) func(context.Context, *Env) (*types.Receipt, string, error) {
	return func(ctx context.Context, env *Env) (*types.Receipt, string, error) {
		compute := env.Arith.HeavyCompute
		if cached {
			compute = env.Arith.HeavyComputeCached
		}
		total, receipt, err := compute(ctx, nobody)
		if err != nil {
			return nil, "", err
		}
		return receipt, total.Dec(), nil
	}
}

func halve(shift bool) func(context.Context, *Env) (*types.Receipt, string, error) {
	return func(ctx context.Context, env *Env) (*types.Receipt, string, error) {
		amount := uint256.NewInt(1_000_001)
		op := env.Arith.QuickDiv
		if shift {
			op = env.Arith.QuickShift
		}
		out, receipt, err := op(ctx, nobody, amount)
		if err != nil {
			return nil, "", err
		}
		return receipt, out.Dec(), nil
	}
}

func add(unchecked bool) func(context.Context, *Env) (*types.Receipt, string, error) {
	return func(ctx context.Context, env *Env) (*types.Receipt, string, error) {
		a, b := uint256.NewInt(40), uint256.NewInt(2)
		op := env.Arith.CheckedAdd
		if unchecked {
			op = env.Arith.UncheckedAdd
		}
		out, receipt, err := op(ctx, nobody, a, b)
		if err != nil {
			return nil, "", err
		}
		return receipt, out.Dec(), nil
	}
}

func processBatch(cached bool) func(context.Context, *Env) (*types.Receipt, string, error) {
	return func(ctx context.Context, env *Env) (*types.Receipt, string, error) {
		list := winners(20)
		for _, id := range list {
			if _, err := env.Ledger.Register(ctx, nobody, id); err != nil {
				return nil, "", err
			}
		}
		run := env.Batch.ProcessBatch
		if cached {
			run = env.Batch.ProcessBatchCached
		}
		receipt, err := run(ctx, nobody, list)
		if err != nil {
			return nil, "", err
		}
		observed := ""
		for _, id := range list {
			desc, err := describePlayer(env, id)
			if err != nil {
				return nil, "", err
			}
			observed += desc + ";"
		}
		return receipt, observed, nil
	}
}

// Scenarios returns the catalogue in report order.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "struct-packing",
			Description: "register with the flag declared next to the identity versus after the score",
			baseline:    registerVariant("unpacked", players.WithLayout(players.LayoutUnpacked)),
			optimized:   registerVariant("packed", players.WithLayout(players.LayoutPacked)),
		},
		{
			Name:        "redundant-key",
			Description: "register storing the identity inside its own record versus relying on the mapping key",
			baseline:    registerVariant("keyed-unpacked", players.WithLayout(players.LayoutUnpacked)),
			optimized:   registerVariant("key-only", players.WithLayout(players.LayoutKeyOnly)),
		},
		{
			Name:        "integrity-check",
			Description: "register with and without re-hashing the constant ledger name",
			baseline:    registerVariant("checked", players.WithIntegrityCheck(true)),
			optimized:   registerVariant("unchecked", players.WithIntegrityCheck(false)),
		},
		{
			Name:        "cached-multiplier",
			Description: "heavy compute reading the multiplier every iteration versus once",
			baseline:    variant{label: "per-iteration", run: heavyCompute(false)},
			optimized:   variant{label: "cached", run: heavyCompute(true)},
		},
		{
			Name:        "div-vs-shift",
			Description: "halving by division versus by shift",
			baseline:    variant{label: "div", run: halve(false)},
			optimized:   variant{label: "shift", run: halve(true)},
		},
		{
			Name:        "checked-vs-unchecked",
			Description: "adding with overflow checks versus wrapping arithmetic",
			baseline:    variant{label: "checked", run: add(false)},
			optimized:   variant{label: "unchecked", run: add(true)},
		},
		{
			Name:        "batch-bounds",
			Description: "batch loop re-reading both bounds every iteration versus reading them once",
			baseline:    variant{label: "per-iteration", run: processBatch(false)},
			optimized:   variant{label: "cached", run: processBatch(true)},
		},
	}
}
