package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestRowRangeHead(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 2, 3, 4, 5})})

	rr := NewRowRangeHead(2)
	rr.SetComponentManager(mgr)
	rr.SetProcessingConfig(ProcessingConfig{TotalRowCount: 5})
	rr.calculateStartAndEnd(5)

	out, err := rr.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, out, 1)
	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, b.Segment.Column("x").(*segment.Int64Column).Values)
}

func TestRowRangeTail(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 2, 3, 4, 5})})

	rr := NewRowRangeTail(2)
	rr.SetComponentManager(mgr)
	rr.calculateStartAndEnd(5)

	out, err := rr.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5}, b.Segment.Column("x").(*segment.Int64Column).Values)
}

func TestRowRangeNegativeIndexedRange(t *testing.T) {
	rr := NewRowRangeRange(-3, -1)
	rr.calculateStartAndEnd(5)
	require.Equal(t, int64(2), rr.resolvedStart)
	require.Equal(t, int64(4), rr.resolvedEnd)
}

// TestRowRangeStructureForPlanDropsNonIntersectingEntries checks that a
// plan entry entirely outside [resolvedStart,resolvedEnd) never appears
// in the groups StructureForPlan returns, so the driver never fetches it.
func TestRowRangeStructureForPlanDropsNonIntersectingEntries(t *testing.T) {
	plan := []segment.RangesAndKey{
		{StorageKey: "a", Rows: segment.RowRange{Start: 0, End: 5}},
		{StorageKey: "b", Rows: segment.RowRange{Start: 5, End: 10}},
		{StorageKey: "c", Rows: segment.RowRange{Start: 10, End: 15}},
	}

	rr := NewRowRangeHead(5) // keeps rows [0,5)
	rr.SetProcessingConfig(ProcessingConfig{TotalRowCount: 15})

	groups, err := rr.StructureForPlan(plan)
	require.NoError(t, err)

	var kept []string
	for _, g := range groups {
		for _, idx := range g {
			kept = append(kept, plan[idx].StorageKey)
		}
	}
	require.Equal(t, []string{"a"}, kept)
}
