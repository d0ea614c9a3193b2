package gas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTablePrices(t *testing.T) {
	table := DefaultTable()
	require.NoError(t, table.Validate())

	cases := []struct {
		kind  OpKind
		extra uint64
		want  uint64
	}{
		{OpColdAccess, 0, 2100},
		{OpWarmAccess, 0, 100},
		{OpWriteSet, 0, 20000},
		{OpWriteReset, 0, 5000},
		{OpCallCold, 0, 2600},
		{OpCallWarm, 0, 100},
		{OpArithChecked, 0, 6},
		{OpArithUnchecked, 0, 3},
		{OpDiv, 0, 5},
		{OpShift, 0, 3},
		{OpHash, 0, 30},
		{OpHash, 1, 36},
		{OpHash, 32, 36},
		{OpHash, 33, 42},
		{OpHash, 64, 42},
		{OpArgLoad, 0, 3},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, table.Cost(tc.kind, tc.extra), "%s extra=%d", tc.kind, tc.extra)
	}
}

func TestTableValidateRejectsZeroEntries(t *testing.T) {
	table := DefaultTable()
	table.Div = 0
	table.WarmAccess = table.ColdAccess + 1
	err := table.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Div must be positive")
	require.Contains(t, err.Error(), "WarmAccess")
}

func TestMeterAccumulates(t *testing.T) {
	meter := NewMeter(DefaultTable())
	if got := meter.Charge(OpColdAccess, 0); got != 2100 {
		t.Fatalf("expected 2100 after cold access, got %d", got)
	}
	if got := meter.Charge(OpWarmAccess, 0); got != 2200 {
		t.Fatalf("expected 2200 after warm access, got %d", got)
	}
	meter.Charge(OpWarmAccess, 0)
	meter.Charge(OpHash, 64)

	if meter.Total() != 2100+100+100+42 {
		t.Fatalf("unexpected total %d", meter.Total())
	}
	if meter.Count(OpWarmAccess) != 2 {
		t.Fatalf("expected 2 warm accesses, got %d", meter.Count(OpWarmAccess))
	}
	breakdown := meter.Breakdown()
	if usage := breakdown["warm_access"]; usage.Count != 2 || usage.Cost != 200 {
		t.Fatalf("unexpected warm usage %+v", usage)
	}
	if _, ok := breakdown["div"]; ok {
		t.Fatalf("uncharged kinds must be omitted")
	}
}

func TestMeterSaturates(t *testing.T) {
	table := DefaultTable()
	table.WriteSet = math.MaxUint64
	meter := NewMeter(table)
	meter.Charge(OpWriteSet, 0)
	if got := meter.Charge(OpWriteSet, 0); got != math.MaxUint64 {
		t.Fatalf("expected saturated total, got %d", got)
	}
}

func TestNilMeterIsInert(t *testing.T) {
	var meter *Meter
	if meter.Charge(OpDiv, 0) != 0 || meter.Total() != 0 {
		t.Fatalf("nil meter must not accumulate")
	}
}
