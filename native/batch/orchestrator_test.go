package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"

	"gasbench/core/engine"
	"gasbench/core/types"
	nativecommon "gasbench/native/common"
	"gasbench/native/players"
	"gasbench/storage"
)

var (
	owner  = types.DeriveAddress("owner")
	anyone = types.DeriveAddress("anyone")
)

type fixture struct {
	engine  *engine.Engine
	ledger  *players.Ledger
	batch   *Orchestrator
	winners []types.Address
}

func newFixture(t *testing.T, count int, board func(*players.Ledger) ScoreBoard, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.New(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ledger, err := players.New(ctx, eng, DefaultAddress)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	var sb ScoreBoard = ledger
	if board != nil {
		sb = board(ledger)
	}
	orchestrator, err := New(ctx, eng, owner, sb, opts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	f := &fixture{engine: eng, ledger: ledger, batch: orchestrator}
	for i := 0; i < count; i++ {
		id := types.DeriveAddress(fmt.Sprintf("winner-%02d", i))
		if _, err := ledger.Register(ctx, anyone, id); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		f.winners = append(f.winners, id)
	}
	return f
}

func (f *fixture) score(t *testing.T, id types.Address) uint64 {
	t.Helper()
	record, _, err := f.ledger.Player(id)
	if err != nil {
		t.Fatalf("load player: %v", err)
	}
	return record.Score.Uint64()
}

func TestProcessBatchRespectsBatchSize(t *testing.T) {
	f := newFixture(t, 20, nil)
	if size, _ := f.batch.BatchSize(); size != DefaultBatchSize {
		t.Fatalf("expected default batch size %d, got %d", DefaultBatchSize, size)
	}
	if _, err := f.batch.ProcessBatch(context.Background(), anyone, f.winners); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	for i, id := range f.winners {
		want := uint64(0)
		if i < DefaultBatchSize {
			want = Points
		}
		if got := f.score(t, id); got != want {
			t.Fatalf("winner %d: expected score %d, got %d", i, want, got)
		}
	}
}

func TestProcessBatchShortList(t *testing.T) {
	f := newFixture(t, 3, nil)
	if _, err := f.batch.ProcessBatch(context.Background(), anyone, f.winners); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	for i, id := range f.winners {
		if got := f.score(t, id); got != Points {
			t.Fatalf("winner %d: expected %d, got %d", i, Points, got)
		}
	}
	if _, err := f.batch.ProcessBatch(context.Background(), anyone, nil); err != nil {
		t.Fatalf("empty batch must succeed: %v", err)
	}
}

func TestProcessBatchSkipsUnregistered(t *testing.T) {
	f := newFixture(t, 2, nil)
	stranger := types.DeriveAddress("stranger")
	list := []types.Address{f.winners[0], stranger, f.winners[1]}
	if _, err := f.batch.ProcessBatch(context.Background(), anyone, list); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if _, ok, _ := f.ledger.Player(stranger); ok {
		t.Fatalf("unregistered winner must stay unregistered")
	}
	if f.score(t, f.winners[1]) != Points {
		t.Fatalf("batch must continue past an inactive winner")
	}
}

func TestProcessBatchOverflowRollsBackEverything(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()
	near := new(uint256.Int).SetAllOne()
	if _, err := f.engine.Execute(ctx, DefaultAddress, f.ledger.Address(), "seed", func(inv *engine.Invocation) error {
		return f.ledger.UpdateScoreIn(inv, f.winners[5], near)
	}); err != nil {
		t.Fatalf("seed score: %v", err)
	}

	receipt, err := f.batch.ProcessBatch(ctx, anyone, f.winners)
	if !errors.Is(err, nativecommon.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if !receipt.Reverted {
		t.Fatalf("receipt must be reverted")
	}
	for i, id := range f.winners {
		if i == 5 {
			continue
		}
		if got := f.score(t, id); got != 0 {
			t.Fatalf("winner %d kept score %d after rollback", i, got)
		}
	}
	if _, err := f.batch.ProcessBatch(ctx, anyone, f.winners[:5]); err != nil {
		t.Fatalf("lock must be released after a reverted batch: %v", err)
	}
}

// reentrantBoard forwards to the real ledger and calls back into the
// orchestrator once trigger updates have gone through.
type reentrantBoard struct {
	ledger  *players.Ledger
	batch   *Orchestrator
	trigger int
	calls   int
	topLvl  bool
}

func (b *reentrantBoard) Address() types.Address { return b.ledger.Address() }

func (b *reentrantBoard) UpdateScoreIn(inv *engine.Invocation, id types.Address, points *uint256.Int) error {
	if err := b.ledger.UpdateScoreIn(inv, id, points); err != nil {
		return err
	}
	b.calls++
	if b.calls != b.trigger {
		return nil
	}
	if b.topLvl {
		_, err := b.batch.ProcessBatch(inv.Context(), inv.Self(), []types.Address{id})
		return err
	}
	return inv.Call(b.batch.Address(), func(callee *engine.Invocation) error {
		return b.batch.ProcessBatchIn(callee, []types.Address{id})
	})
}

func TestProcessBatchRejectsReentry(t *testing.T) {
	var board *reentrantBoard
	f := newFixture(t, 5, func(l *players.Ledger) ScoreBoard {
		board = &reentrantBoard{ledger: l, trigger: 3}
		return board
	})
	board.batch = f.batch

	receipt, err := f.batch.ProcessBatch(context.Background(), anyone, f.winners)
	if !errors.Is(err, nativecommon.ErrReentrant) {
		t.Fatalf("expected ErrReentrant, got %v", err)
	}
	if !receipt.Reverted {
		t.Fatalf("receipt must be reverted")
	}
	for i, id := range f.winners {
		if got := f.score(t, id); got != 0 {
			t.Fatalf("winner %d kept score %d after reentrancy revert", i, got)
		}
	}
}

func TestProcessBatchRejectsNestedTopLevelEntry(t *testing.T) {
	var board *reentrantBoard
	f := newFixture(t, 2, func(l *players.Ledger) ScoreBoard {
		board = &reentrantBoard{ledger: l, trigger: 1, topLvl: true}
		return board
	})
	board.batch = f.batch

	_, err := f.batch.ProcessBatch(context.Background(), anyone, f.winners)
	if !errors.Is(err, nativecommon.ErrReentrant) {
		t.Fatalf("expected ErrReentrant, got %v", err)
	}
	if !errors.Is(err, engine.ErrNestedInvocation) {
		t.Fatalf("expected the nested entry to be reported, got %v", err)
	}
	if got := f.score(t, f.winners[0]); got != 0 {
		t.Fatalf("nested entry must roll back, score %d", got)
	}
}

// swallowBoard re-enters the orchestrator on its first update and drops
// whatever error comes back.
type swallowBoard struct {
	ledger *players.Ledger
	batch  *Orchestrator
	topLvl bool
	inner  error
	done   bool
}

func (b *swallowBoard) Address() types.Address { return b.ledger.Address() }

func (b *swallowBoard) UpdateScoreIn(inv *engine.Invocation, id types.Address, points *uint256.Int) error {
	if err := b.ledger.UpdateScoreIn(inv, id, points); err != nil {
		return err
	}
	if b.done {
		return nil
	}
	b.done = true
	if b.topLvl {
		_, b.inner = b.batch.ProcessBatch(inv.Context(), inv.Self(), []types.Address{id})
		return nil
	}
	b.inner = inv.Call(b.batch.Address(), func(callee *engine.Invocation) error {
		return b.batch.ProcessBatchIn(callee, []types.Address{id})
	})
	return nil
}

func TestSwallowedReentryStillRollsBack(t *testing.T) {
	for _, topLvl := range []bool{false, true} {
		var board *swallowBoard
		f := newFixture(t, 3, func(l *players.Ledger) ScoreBoard {
			board = &swallowBoard{ledger: l, topLvl: topLvl}
			return board
		})
		board.batch = f.batch

		receipt, err := f.batch.ProcessBatch(context.Background(), anyone, f.winners)
		if !errors.Is(board.inner, nativecommon.ErrReentrant) {
			t.Fatalf("top-level=%v: inner entry must fail with ErrReentrant, got %v", topLvl, board.inner)
		}
		if !errors.Is(err, nativecommon.ErrReentrant) {
			t.Fatalf("top-level=%v: outer batch must fail with ErrReentrant, got %v", topLvl, err)
		}
		if !receipt.Reverted {
			t.Fatalf("top-level=%v: receipt must be reverted", topLvl)
		}
		for i, id := range f.winners {
			if got := f.score(t, id); got != 0 {
				t.Fatalf("top-level=%v: winner %d kept score %d", topLvl, i, got)
			}
		}
		if _, err := f.batch.ProcessBatch(context.Background(), anyone, f.winners); err != nil {
			t.Fatalf("top-level=%v: lock must be released: %v", topLvl, err)
		}
	}
}

func TestCachedBoundsAreCheaper(t *testing.T) {
	naive := newFixture(t, 20, nil)
	cached := newFixture(t, 20, nil)
	ctx := context.Background()

	naiveReceipt, err := naive.batch.ProcessBatch(ctx, anyone, naive.winners)
	if err != nil {
		t.Fatalf("naive batch: %v", err)
	}
	cachedReceipt, err := cached.batch.ProcessBatchCached(ctx, anyone, cached.winners)
	if err != nil {
		t.Fatalf("cached batch: %v", err)
	}
	if cachedReceipt.Cost >= naiveReceipt.Cost {
		t.Fatalf("cached bounds must be cheaper: %d vs %d", cachedReceipt.Cost, naiveReceipt.Cost)
	}
	for i := range naive.winners {
		if naive.score(t, naive.winners[i]) != cached.score(t, cached.winners[i]) {
			t.Fatalf("winner %d differs between variants", i)
		}
	}
	if naiveReceipt.Breakdown["call_cold"].Count != 1 || naiveReceipt.Breakdown["call_warm"].Count != DefaultBatchSize-1 {
		t.Fatalf("expected one cold and %d warm ledger calls, got %+v", DefaultBatchSize-1, naiveReceipt.Breakdown)
	}
}

func TestSetBatchSize(t *testing.T) {
	f := newFixture(t, 6, nil)
	ctx := context.Background()
	if _, err := f.batch.SetBatchSize(ctx, anyone, 2); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.batch.SetBatchSize(ctx, owner, 2); err != nil {
		t.Fatalf("set batch size: %v", err)
	}
	if _, err := f.batch.ProcessBatch(ctx, anyone, f.winners); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if f.score(t, f.winners[1]) != Points || f.score(t, f.winners[2]) != 0 {
		t.Fatalf("batch size 2 not honoured")
	}
}
