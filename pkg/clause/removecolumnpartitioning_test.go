package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestRemoveColumnPartitioningMergesColumnSlices(t *testing.T) {
	mgr := entity.NewManager(1000)
	id1 := pushSegment(t, mgr, []string{"a"}, []segment.Column{segment.NewInt64Column([]int64{1, 2})})
	id2 := pushSegment(t, mgr, []string{"b"}, []segment.Column{segment.NewInt64Column([]int64{10, 20})})

	rcp := NewRemoveColumnPartitioning()
	rcp.SetComponentManager(mgr)

	out, err := rcp.Process(context.Background(), []entity.ID{id1, id2})
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, b.Segment.Descriptor.Names)
	require.Equal(t, []int64{1, 2}, b.Segment.Column("a").(*segment.Int64Column).Values)
	require.Equal(t, []int64{10, 20}, b.Segment.Column("b").(*segment.Int64Column).Values)
}

func TestRemoveColumnPartitioningSingleEntityRetainsID(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"a"}, []segment.Column{segment.NewInt64Column([]int64{1})})

	rcp := NewRemoveColumnPartitioning()
	rcp.SetComponentManager(mgr)

	out, err := rcp.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Equal(t, []entity.ID{id}, out)
}
