package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/expr"
	"github.com/colstream/qpipe/pkg/segment"
)

func pushSegment(t *testing.T, mgr *entity.Manager, names []string, cols []segment.Column) entity.ID {
	t.Helper()
	seg := &segment.Segment{
		Descriptor: segment.Descriptor{Names: names, Types: columnTypes(cols)},
		Columns:    cols,
		RowRange:   segment.RowRange{Start: 0, End: int64(cols[0].Len())},
	}
	id, err := mgr.Push(entity.Bundle{Segment: seg, RowRange: seg.RowRange})
	require.NoError(t, err)
	return id
}

func newFilter(t *testing.T, mgr *entity.Manager, op expr.BinaryOp, column string, v int64) *Filter {
	t.Helper()
	nodes := []expr.Node{
		{Kind: expr.KindColumn, ColumnName: column},
		{Kind: expr.KindValue, Value: expr.Value{Type: segment.TypeInt64, Int: v}},
		{Kind: expr.KindBinary, BinaryOp: op, Left: 0, Right: 1},
	}
	ctx := expr.NewContext(nodes, 2, expr.RootBitset)
	f := NewFilter(ctx)
	f.SetComponentManager(mgr)
	f.SetProcessingConfig(ProcessingConfig{})
	return f
}

func TestFilterDropsAndKeepsRows(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 5, 10, 2})})

	f := newFilter(t, mgr, expr.OpGt, "x", 3)
	out, err := f.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, 2, b.Segment.NumRows())
	col := b.Segment.Column("x").(*segment.Int64Column)
	require.Equal(t, []int64{5, 10}, col.Values)
}

func TestFilterAllClearDropsEntity(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 2})})

	f := newFilter(t, mgr, expr.OpGt, "x", 100)
	out, err := f.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestFilterAllSetRetainsOriginalID(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"x"}, []segment.Column{segment.NewInt64Column([]int64{1, 2})})

	f := newFilter(t, mgr, expr.OpGt, "x", 0)
	out, err := f.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Equal(t, []entity.ID{id}, out)
}
