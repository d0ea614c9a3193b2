package gas

import (
	"math"

	"gasbench/core/types"
)

// Meter accumulates the cost of one top-level invocation. It is created when
// the invocation starts and discarded once its receipt has been produced.
// Meter is not safe for concurrent use.
type Meter struct {
	table  Table
	total  uint64
	counts [numOpKinds]uint64
	costs  [numOpKinds]uint64
}

// NewMeter returns a meter pricing operations with table.
func NewMeter(table Table) *Meter {
	return &Meter{table: table}
}

// Table exposes the price list the meter charges against.
func (m *Meter) Table() Table {
	return m.table
}

// Charge records one occurrence of kind and returns the cumulative cost so
// far. It never fails; the running total saturates instead of wrapping.
func (m *Meter) Charge(kind OpKind, extra uint64) uint64 {
	if m == nil {
		return 0
	}
	cost := m.table.Cost(kind, extra)
	if kind < numOpKinds {
		m.counts[kind]++
		m.costs[kind] = saturatingAdd(m.costs[kind], cost)
	}
	m.total = saturatingAdd(m.total, cost)
	return m.total
}

// Total returns the cumulative cost.
func (m *Meter) Total() uint64 {
	if m == nil {
		return 0
	}
	return m.total
}

// Count returns how many times kind was charged.
func (m *Meter) Count(kind OpKind) uint64 {
	if m == nil || kind >= numOpKinds {
		return 0
	}
	return m.counts[kind]
}

// Breakdown reports usage per operation kind, omitting kinds never charged.
func (m *Meter) Breakdown() map[string]types.OpUsage {
	out := make(map[string]types.OpUsage)
	if m == nil {
		return out
	}
	for k := OpKind(0); k < numOpKinds; k++ {
		if m.counts[k] == 0 {
			continue
		}
		out[k.String()] = types.OpUsage{Count: m.counts[k], Cost: m.costs[k]}
	}
	return out
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
