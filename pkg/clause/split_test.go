package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestSplitProducesFixedRowChunks(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 2, 3, 4, 5})})

	s := NewSplit(2)
	s.SetComponentManager(mgr)

	out, err := s.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, out, 3)

	var rowCounts []int
	for _, o := range out {
		b, err := mgr.Get(o)
		require.NoError(t, err)
		rowCounts = append(rowCounts, b.Segment.NumRows())
	}
	require.Equal(t, []int{2, 2, 1}, rowCounts)
}

func TestSplitSmallerThanChunkSizeRetainsWhole(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 2})})

	s := NewSplit(10)
	s.SetComponentManager(mgr)

	out, err := s.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Equal(t, []entity.ID{id}, out)
}
