package state

import (
	"errors"
	"fmt"

	"gasbench/core/types"
	"gasbench/storage"
)

var cellPrefix = []byte("cell/")

// CellID addresses one 32-byte storage cell. Cells are namespaced by the
// component (contract) address that owns them.
type CellID struct {
	Contract types.Address
	Slot     types.Hash
}

func (id CellID) String() string {
	return fmt.Sprintf("%s:%s", id.Contract.Hex(), id.Slot.Hex())
}

func cellKey(id CellID) []byte {
	buf := make([]byte, 0, len(cellPrefix)+types.AddressLength+len(id.Slot))
	buf = append(buf, cellPrefix...)
	buf = append(buf, id.Contract[:]...)
	buf = append(buf, id.Slot[:]...)
	return buf
}

// Cells is the committed cell store. It lives for the lifetime of the engine
// and only changes when an invocation commits.
type Cells struct {
	db storage.Database
}

// NewCells wraps db. Zero-valued cells are never persisted.
func NewCells(db storage.Database) *Cells {
	return &Cells{db: db}
}

// Get returns the committed value of id, or the zero word when the cell has
// never been written.
func (c *Cells) Get(id CellID) (types.Hash, error) {
	raw, err := c.db.Get(cellKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, nil
	}
	if err != nil {
		return types.Hash{}, fmt.Errorf("state: load cell %s: %w", id, err)
	}
	if len(raw) != len(types.Hash{}) {
		return types.Hash{}, fmt.Errorf("state: cell %s has %d bytes", id, len(raw))
	}
	return types.BytesToHash(raw), nil
}

// apply persists the dirty cells as one atomic batch.
func (c *Cells) apply(dirty map[CellID]types.Hash) error {
	batch := storage.NewBatch()
	for id, value := range dirty {
		if value == (types.Hash{}) {
			batch.Delete(cellKey(id))
			continue
		}
		batch.Put(cellKey(id), value[:])
	}
	if err := c.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit %d cells: %w", batch.Len(), err)
	}
	return nil
}

// Count returns how many non-zero cells contract currently owns.
func (c *Cells) Count(contract types.Address) (int, error) {
	prefix := append(append([]byte(nil), cellPrefix...), contract[:]...)
	n := 0
	err := c.db.Iterate(prefix, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}
