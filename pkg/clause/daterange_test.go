package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestDateRangeKeepsRowsInWindow(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"ts", "v"}, []segment.Column{
		segment.NewTimestampColumn([]int64{0, 5, 10, 15, 20}),
		segment.NewInt64Column([]int64{1, 2, 3, 4, 5}),
	})

	dr := NewDateRange("ts", 5, 15)
	dr.SetComponentManager(mgr)

	out, err := dr.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, b.Segment.Column("v").(*segment.Int64Column).Values)
}

func TestDateRangeAllOutsideWindowDropsEntity(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"ts"}, []segment.Column{segment.NewTimestampColumn([]int64{100, 200})})

	dr := NewDateRange("ts", 0, 10)
	dr.SetComponentManager(mgr)

	out, err := dr.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDateRangeAllInsideWindowRetains(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"ts"}, []segment.Column{segment.NewTimestampColumn([]int64{1, 2})})

	dr := NewDateRange("ts", 0, 10)
	dr.SetComponentManager(mgr)

	out, err := dr.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Equal(t, []entity.ID{id}, out)
}

// TestDateRangeStructureForPlanDropsNonIntersectingKeys checks that a
// plan entry whose recorded time range falls entirely outside [Start,End)
// is pruned before any fetch, while a key with no recorded time range is
// conservatively kept.
func TestDateRangeStructureForPlanDropsNonIntersectingKeys(t *testing.T) {
	plan := []segment.RangesAndKey{
		{StorageKey: "in", Rows: segment.RowRange{Start: 0, End: 2}, HasTimeRange: true, TimeStart: 5, TimeEnd: 15},
		{StorageKey: "out", Rows: segment.RowRange{Start: 2, End: 4}, HasTimeRange: true, TimeStart: 100, TimeEnd: 200},
		{StorageKey: "unknown", Rows: segment.RowRange{Start: 4, End: 6}},
	}

	dr := NewDateRange("ts", 0, 20)
	groups, err := dr.StructureForPlan(plan)
	require.NoError(t, err)

	var kept []string
	for _, g := range groups {
		for _, idx := range g {
			kept = append(kept, plan[idx].StorageKey)
		}
	}
	require.ElementsMatch(t, []string{"in", "unknown"}, kept)
}
