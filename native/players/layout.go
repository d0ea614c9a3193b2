package players

import (
	"fmt"
	"strings"

	"gasbench/core/state"
	"gasbench/core/types"
)

// LayoutKind selects how a PlayerRecord is spread over storage cells.
type LayoutKind string

const (
	// LayoutPacked declares {player, active, score}: the identity and the
	// flag share one cell and the score takes a second.
	LayoutPacked LayoutKind = "packed"
	// LayoutUnpacked declares {active, score, player}: the 32-byte score sits
	// between the small fields so each lands in its own cell.
	LayoutUnpacked LayoutKind = "unpacked"
	// LayoutKeyOnly drops the redundant player field and relies on the
	// mapping key alone: {active, score}.
	LayoutKeyOnly LayoutKind = "key-only"
)

const (
	fieldPlayer = "player"
	fieldActive = "active"
	fieldScore  = "score"
)

var (
	packedLayout   = state.MustLayout(state.Field{Name: fieldPlayer, Width: types.AddressLength}, state.Field{Name: fieldActive, Width: 1}, state.Field{Name: fieldScore, Width: 32})
	unpackedLayout = state.MustLayout(state.Field{Name: fieldActive, Width: 1}, state.Field{Name: fieldScore, Width: 32}, state.Field{Name: fieldPlayer, Width: types.AddressLength})
	keyOnlyLayout  = state.MustLayout(state.Field{Name: fieldActive, Width: 1}, state.Field{Name: fieldScore, Width: 32})
)

// ParseLayoutKind normalises a configured layout name.
func ParseLayoutKind(raw string) (LayoutKind, error) {
	switch kind := LayoutKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return LayoutPacked, nil
	case LayoutPacked, LayoutUnpacked, LayoutKeyOnly:
		return kind, nil
	default:
		return "", fmt.Errorf("players: unknown layout %q", raw)
	}
}

func (k LayoutKind) layout() (*state.Layout, error) {
	switch k {
	case LayoutPacked:
		return packedLayout, nil
	case LayoutUnpacked:
		return unpackedLayout, nil
	case LayoutKeyOnly:
		return keyOnlyLayout, nil
	default:
		return nil, fmt.Errorf("players: unknown layout %q", string(k))
	}
}

// encode renders record into the cells of layout. The returned slice has one
// word per cell.
func encode(layout *state.Layout, record types.PlayerRecord) []types.Hash {
	cells := make([]types.Hash, layout.Cells())
	for _, ref := range layout.Fields() {
		switch ref.Name {
		case fieldPlayer:
			cells[ref.Cell] = ref.SetAddress(cells[ref.Cell], record.Player)
		case fieldActive:
			cells[ref.Cell] = ref.SetBool(cells[ref.Cell], record.Active)
		case fieldScore:
			cells[ref.Cell] = ref.Set(cells[ref.Cell], record.Score)
		}
	}
	return cells
}

func decode(layout *state.Layout, key types.Address, cells []types.Hash) types.PlayerRecord {
	record := types.PlayerRecord{Player: key}
	for _, ref := range layout.Fields() {
		switch ref.Name {
		case fieldPlayer:
			record.Player = ref.GetAddress(cells[ref.Cell])
		case fieldActive:
			record.Active = !ref.Get(cells[ref.Cell]).IsZero()
		case fieldScore:
			record.Score = ref.Get(cells[ref.Cell])
		}
	}
	return record
}
