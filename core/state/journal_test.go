package state

import (
	"errors"
	"testing"

	"gasbench/core/types"
	"gasbench/storage"
)

func testCell(n uint64) CellID {
	return CellID{Contract: types.DeriveAddress("contract"), Slot: SlotOf(n)}
}

func TestJournalColdThenWarm(t *testing.T) {
	cells := NewCells(storage.NewMemDB())
	j := cells.Begin()

	value, warm := j.Read(testCell(0))
	if warm {
		t.Fatalf("first read must be cold")
	}
	if value != (types.Hash{}) {
		t.Fatalf("never-written cell must read zero")
	}
	if _, warm := j.Read(testCell(0)); !warm {
		t.Fatalf("second read must be warm")
	}
	wasWarm, prev := j.Write(testCell(1), types.BytesToHash([]byte{7}))
	if wasWarm || prev != (types.Hash{}) {
		t.Fatalf("first write must be cold over a zero cell")
	}
	if _, warm := j.Read(testCell(1)); !warm {
		t.Fatalf("write must warm the cell")
	}
	if j.TouchAddress(types.DeriveAddress("x")) {
		t.Fatalf("first address touch must be cold")
	}
	if !j.TouchAddress(types.DeriveAddress("x")) {
		t.Fatalf("second address touch must be warm")
	}
}

func TestJournalCommitAndDiscard(t *testing.T) {
	db := storage.NewMemDB()
	cells := NewCells(db)

	j := cells.Begin()
	j.Write(testCell(1), types.BytesToHash([]byte{1}))
	j.Discard()
	if got, _ := cells.Get(testCell(1)); got != (types.Hash{}) {
		t.Fatalf("discarded write must not reach the store")
	}

	j = cells.Begin()
	j.Write(testCell(1), types.BytesToHash([]byte{2}))
	j.Write(testCell(2), types.BytesToHash([]byte{3}))
	if j.Dirty() != 2 {
		t.Fatalf("expected 2 dirty cells, got %d", j.Dirty())
	}
	if err := j.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := j.Commit(); err != ErrJournalClosed {
		t.Fatalf("expected ErrJournalClosed, got %v", err)
	}
	if got, _ := cells.Get(testCell(2)); got != types.BytesToHash([]byte{3}) {
		t.Fatalf("committed value missing")
	}

	next := cells.Begin()
	if _, warm := next.Read(testCell(1)); warm {
		t.Fatalf("access state must reset between journals")
	}
	next.Write(testCell(1), types.Hash{})
	if err := next.Commit(); err != nil {
		t.Fatalf("commit zero: %v", err)
	}
	n, err := cells.Count(types.DeriveAddress("contract"))
	if err != nil || n != 1 {
		t.Fatalf("zeroed cells must be deleted, have %d (%v)", n, err)
	}
}

func TestJournalFailLatchesFirstError(t *testing.T) {
	cells := NewCells(storage.NewMemDB())
	j := cells.Begin()
	j.Write(testCell(0), types.BytesToHash([]byte{1}))

	first := errors.New("first")
	j.Fail(nil)
	if j.Err() != nil {
		t.Fatalf("nil must not latch")
	}
	j.Fail(first)
	j.Fail(errors.New("second"))
	if !errors.Is(j.Err(), first) {
		t.Fatalf("expected first error latched, got %v", j.Err())
	}
	if err := j.Commit(); !errors.Is(err, first) {
		t.Fatalf("failed journal must refuse to commit, got %v", err)
	}
	if n, err := cells.Count(testCell(0).Contract); err != nil || n != 0 {
		t.Fatalf("failed journal wrote %d cells (%v)", n, err)
	}
}
