package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestSortOrdersRowsAscending(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"k", "v"}, []segment.Column{
		segment.NewInt64Column([]int64{3, 1, 2}),
		segment.NewStringColumn([]string{"c", "a", "b"}),
	})

	s := NewSort("k")
	s.SetComponentManager(mgr)

	out, err := s.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, b.Segment.Column("k").(*segment.Int64Column).Values)
	vCol := b.Segment.Column("v").(*segment.StringColumn)
	require.Equal(t, "a", vCol.At(0))
	require.Equal(t, "b", vCol.At(1))
	require.Equal(t, "c", vCol.At(2))
}

func TestDropIncompletes(t *testing.T) {
	plan := []segment.RangesAndKey{{}, {}, {}}
	require.Len(t, dropIncompletes(plan, 1), 2)
	require.Nil(t, dropIncompletes(plan, 5))
	require.Len(t, dropIncompletes(plan, 0), 3)
}
