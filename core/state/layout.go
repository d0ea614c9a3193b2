package state

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"gasbench/core/types"
)

// CellSize is the width of one storage cell in bytes.
const CellSize = 32

// Field declares one member of a composite record and its width in bytes.
type Field struct {
	Name  string
	Width int
}

// FieldRef locates a field inside a record: the cell it lives in relative to
// the record's base slot and its byte offset from the low-order end of that
// cell.
type FieldRef struct {
	Name   string
	Cell   int
	Offset int
	Width  int
}

// Layout assigns record fields to cells greedily in declaration order: a field
// joins the current cell when it still fits, otherwise it opens the next cell.
type Layout struct {
	fields []FieldRef
	byName map[string]FieldRef
	cells  int
}

// NewLayout packs fields. Widths must be between 1 and CellSize and names
// must be unique.
func NewLayout(fields ...Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("state: layout needs at least one field")
	}
	layout := &Layout{byName: make(map[string]FieldRef, len(fields))}
	cell, used := 0, 0
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("state: field %d has no name", i)
		}
		if f.Width <= 0 || f.Width > CellSize {
			return nil, fmt.Errorf("state: field %s width %d out of range", name, f.Width)
		}
		if _, dup := layout.byName[name]; dup {
			return nil, fmt.Errorf("state: duplicate field %s", name)
		}
		if i > 0 && used+f.Width > CellSize {
			cell++
			used = 0
		}
		ref := FieldRef{Name: name, Cell: cell, Offset: used, Width: f.Width}
		used += f.Width
		layout.fields = append(layout.fields, ref)
		layout.byName[name] = ref
	}
	layout.cells = cell + 1
	return layout, nil
}

// MustLayout is NewLayout for static declarations.
func MustLayout(fields ...Field) *Layout {
	layout, err := NewLayout(fields...)
	if err != nil {
		panic(err)
	}
	return layout
}

// Cells returns how many cells one record occupies.
func (l *Layout) Cells() int {
	return l.cells
}

// Fields returns the placed fields in declaration order.
func (l *Layout) Fields() []FieldRef {
	return append([]FieldRef(nil), l.fields...)
}

// Field looks up a field by name.
func (l *Layout) Field(name string) (FieldRef, bool) {
	ref, ok := l.byName[name]
	return ref, ok
}

// Has reports whether the layout declares name.
func (l *Layout) Has(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// FieldsIn returns the fields sharing cell index cell.
func (l *Layout) FieldsIn(cell int) []FieldRef {
	var out []FieldRef
	for _, ref := range l.fields {
		if ref.Cell == cell {
			out = append(out, ref)
		}
	}
	return out
}

func (ref FieldRef) span() (int, int) {
	end := CellSize - ref.Offset
	return end - ref.Width, end
}

// Get extracts the field's value from a cell.
func (ref FieldRef) Get(cell types.Hash) *uint256.Int {
	start, end := ref.span()
	return new(uint256.Int).SetBytes(cell[start:end])
}

// Set returns cell with the field replaced by value. Bytes of value above the
// field width are dropped.
func (ref FieldRef) Set(cell types.Hash, value *uint256.Int) types.Hash {
	start, end := ref.span()
	word := value.Bytes32()
	copy(cell[start:end], word[CellSize-ref.Width:])
	return cell
}

// SetBool stores a boolean as a single 0/1 value.
func (ref FieldRef) SetBool(cell types.Hash, v bool) types.Hash {
	if v {
		return ref.Set(cell, uint256.NewInt(1))
	}
	return ref.Set(cell, new(uint256.Int))
}

// SetAddress stores a 20-byte identity.
func (ref FieldRef) SetAddress(cell types.Hash, addr types.Address) types.Hash {
	return ref.Set(cell, new(uint256.Int).SetBytes(addr[:]))
}

// GetAddress extracts a 20-byte identity.
func (ref FieldRef) GetAddress(cell types.Hash) types.Address {
	word := ref.Get(cell).Bytes32()
	var addr types.Address
	copy(addr[:], word[CellSize-types.AddressLength:])
	return addr
}
