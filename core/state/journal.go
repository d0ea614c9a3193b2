package state

import (
	"errors"

	"gasbench/core/types"
)

// ErrJournalClosed is returned when a journal is used after Commit or Discard.
var ErrJournalClosed = errors.New("state: journal closed")

// Journal is the view of the cell store held by one top-level invocation.
// Writes are buffered until Commit; access state (cold or warm) is tracked per
// cell and per called address and is dropped with the journal.
type Journal struct {
	base      *Cells
	dirty     map[CellID]types.Hash
	warm      map[CellID]struct{}
	warmAddrs map[types.Address]struct{}
	err       error
	closed    bool
}

// Begin opens a journal over the committed store. Every cell starts cold.
func (c *Cells) Begin() *Journal {
	return &Journal{
		base:      c,
		dirty:     make(map[CellID]types.Hash),
		warm:      make(map[CellID]struct{}),
		warmAddrs: make(map[types.Address]struct{}),
	}
}

func (j *Journal) touch(id CellID) bool {
	if _, ok := j.warm[id]; ok {
		return true
	}
	j.warm[id] = struct{}{}
	return false
}

func (j *Journal) current(id CellID) types.Hash {
	if value, ok := j.dirty[id]; ok {
		return value
	}
	value, err := j.base.Get(id)
	if err != nil && j.err == nil {
		j.err = err
	}
	return value
}

// Read returns the value of id as seen by this invocation and whether the
// cell was already warm. The cell is warm afterwards.
func (j *Journal) Read(id CellID) (types.Hash, bool) {
	wasWarm := j.touch(id)
	return j.current(id), wasWarm
}

// Write buffers value for id and reports whether the cell was already warm
// together with the value it held before the write.
func (j *Journal) Write(id CellID, value types.Hash) (bool, types.Hash) {
	wasWarm := j.touch(id)
	prev := j.current(id)
	j.dirty[id] = value
	return wasWarm, prev
}

// Fail latches err as the journal's error unless one is already recorded.
// A latched error prevents the invocation from committing.
func (j *Journal) Fail(err error) {
	if err != nil && j.err == nil {
		j.err = err
	}
}

// TouchAddress marks addr as accessed and reports whether it already was.
func (j *Journal) TouchAddress(addr types.Address) bool {
	if _, ok := j.warmAddrs[addr]; ok {
		return true
	}
	j.warmAddrs[addr] = struct{}{}
	return false
}

// Dirty reports how many cells the invocation has written.
func (j *Journal) Dirty() int {
	return len(j.dirty)
}

// Err returns the first backend error hit while reading through the journal.
func (j *Journal) Err() error {
	return j.err
}

// Commit applies every buffered write to the committed store atomically and
// closes the journal. A journal that hit a backend error or a latched failure
// refuses to commit.
func (j *Journal) Commit() error {
	if j.closed {
		return ErrJournalClosed
	}
	j.closed = true
	if j.err != nil {
		return j.err
	}
	return j.base.apply(j.dirty)
}

// Discard drops every buffered write and the access state.
func (j *Journal) Discard() {
	j.closed = true
	j.dirty = nil
	j.warm = nil
	j.warmAddrs = nil
}
