package gas

import (
	"errors"
	"fmt"
)

// OpKind identifies a primitive operation the accountant knows how to price.
type OpKind uint8

const (
	OpColdAccess OpKind = iota
	OpWarmAccess
	OpWriteSet
	OpWriteReset
	OpCallCold
	OpCallWarm
	OpArithChecked
	OpArithUnchecked
	OpDiv
	OpShift
	OpHash
	OpArgLoad

	numOpKinds
)

var opNames = [numOpKinds]string{
	OpColdAccess:     "cold_access",
	OpWarmAccess:     "warm_access",
	OpWriteSet:       "write_set",
	OpWriteReset:     "write_reset",
	OpCallCold:       "call_cold",
	OpCallWarm:       "call_warm",
	OpArithChecked:   "arith_checked",
	OpArithUnchecked: "arith_unchecked",
	OpDiv:            "div",
	OpShift:          "shift",
	OpHash:           "hash",
	OpArgLoad:        "arg_load",
}

func (k OpKind) String() string {
	if k >= numOpKinds {
		return fmt.Sprintf("op(%d)", uint8(k))
	}
	return opNames[k]
}

// Kinds lists every priced operation in table order.
func Kinds() []OpKind {
	out := make([]OpKind, 0, numOpKinds)
	for k := OpKind(0); k < numOpKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Table is the fixed price list consulted by a Meter. Checked arithmetic is
// priced as the unchecked base plus CheckedSurcharge.
type Table struct {
	ColdAccess       uint64 `toml:"ColdAccess"`
	WarmAccess       uint64 `toml:"WarmAccess"`
	WriteSet         uint64 `toml:"WriteSet"`
	WriteReset       uint64 `toml:"WriteReset"`
	CallCold         uint64 `toml:"CallCold"`
	CallWarm         uint64 `toml:"CallWarm"`
	ArithUnchecked   uint64 `toml:"ArithUnchecked"`
	CheckedSurcharge uint64 `toml:"CheckedSurcharge"`
	Div              uint64 `toml:"Div"`
	Shift            uint64 `toml:"Shift"`
	HashBase         uint64 `toml:"HashBase"`
	HashWord         uint64 `toml:"HashWord"`
	ArgLoad          uint64 `toml:"ArgLoad"`
}

// DefaultTable returns the stock price list.
func DefaultTable() Table {
	return Table{
		ColdAccess:       2100,
		WarmAccess:       100,
		WriteSet:         20000,
		WriteReset:       5000,
		CallCold:         2600,
		CallWarm:         100,
		ArithUnchecked:   3,
		CheckedSurcharge: 3,
		Div:              5,
		Shift:            3,
		HashBase:         30,
		HashWord:         6,
		ArgLoad:          3,
	}
}

// Validate rejects tables that would make a priced operation free, since a
// zero entry hides the cost difference the engine exists to expose.
func (t Table) Validate() error {
	entries := []struct {
		name  string
		value uint64
	}{
		{"ColdAccess", t.ColdAccess},
		{"WarmAccess", t.WarmAccess},
		{"WriteSet", t.WriteSet},
		{"WriteReset", t.WriteReset},
		{"CallCold", t.CallCold},
		{"CallWarm", t.CallWarm},
		{"ArithUnchecked", t.ArithUnchecked},
		{"CheckedSurcharge", t.CheckedSurcharge},
		{"Div", t.Div},
		{"Shift", t.Shift},
		{"HashBase", t.HashBase},
		{"HashWord", t.HashWord},
		{"ArgLoad", t.ArgLoad},
	}
	var errs []error
	for _, entry := range entries {
		if entry.value == 0 {
			errs = append(errs, fmt.Errorf("gas: %s must be positive", entry.name))
		}
	}
	if t.WarmAccess > t.ColdAccess {
		errs = append(errs, fmt.Errorf("gas: WarmAccess (%d) exceeds ColdAccess (%d)", t.WarmAccess, t.ColdAccess))
	}
	if t.CallWarm > t.CallCold {
		errs = append(errs, fmt.Errorf("gas: CallWarm (%d) exceeds CallCold (%d)", t.CallWarm, t.CallCold))
	}
	return errors.Join(errs...)
}

// HashCost prices hashing n bytes: a base fee plus one word fee per started
// 32-byte word.
func (t Table) HashCost(n uint64) uint64 {
	words := (n + 31) / 32
	return t.HashBase + t.HashWord*words
}

// Cost returns the price of one occurrence of kind. For OpHash extra is the
// number of bytes hashed; other kinds ignore it.
func (t Table) Cost(kind OpKind, extra uint64) uint64 {
	switch kind {
	case OpColdAccess:
		return t.ColdAccess
	case OpWarmAccess:
		return t.WarmAccess
	case OpWriteSet:
		return t.WriteSet
	case OpWriteReset:
		return t.WriteReset
	case OpCallCold:
		return t.CallCold
	case OpCallWarm:
		return t.CallWarm
	case OpArithChecked:
		return t.ArithUnchecked + t.CheckedSurcharge
	case OpArithUnchecked:
		return t.ArithUnchecked
	case OpDiv:
		return t.Div
	case OpShift:
		return t.Shift
	case OpHash:
		return t.HashCost(extra)
	case OpArgLoad:
		return t.ArgLoad
	default:
		return 0
	}
}
