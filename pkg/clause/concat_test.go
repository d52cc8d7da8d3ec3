package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestConcatOuterUnionsColumnsWithNulls(t *testing.T) {
	mgr := entity.NewManager(1000)
	a := pushSegment(t, mgr, []string{"x", "y"}, []segment.Column{
		segment.NewInt64Column([]int64{1, 2}),
		segment.NewInt64Column([]int64{10, 20}),
	})
	b := pushSegment(t, mgr, []string{"y", "z"}, []segment.Column{
		segment.NewInt64Column([]int64{30, 40}),
		segment.NewInt64Column([]int64{100, 200}),
	})

	c := NewConcat(segment.JoinOuter)
	c.SetComponentManager(mgr)

	groups, err := c.StructureForEntities([][]entity.ID{{a}, {b}})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	out, err := c.Process(context.Background(), groups[0])
	require.NoError(t, err)
	require.Len(t, out, 1)

	bundle, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"x", "y", "z"}, bundle.Segment.Descriptor.Names)
	require.Equal(t, 4, bundle.Segment.NumRows())

	xCol := bundle.Segment.Column("x").(*segment.Int64Column)
	require.True(t, xCol.IsNull(2))
	require.True(t, xCol.IsNull(3))

	yCol := bundle.Segment.Column("y").(*segment.Int64Column)
	require.Equal(t, []int64{10, 20, 30, 40}, yCol.Values)
}

func TestConcatInnerKeepsOnlyCommonColumns(t *testing.T) {
	mgr := entity.NewManager(1000)
	a := pushSegment(t, mgr, []string{"x", "y"}, []segment.Column{
		segment.NewInt64Column([]int64{1}),
		segment.NewInt64Column([]int64{10}),
	})
	b := pushSegment(t, mgr, []string{"y", "z"}, []segment.Column{
		segment.NewInt64Column([]int64{30}),
		segment.NewInt64Column([]int64{100}),
	})

	c := NewConcat(segment.JoinInner)
	c.SetComponentManager(mgr)

	groups, err := c.StructureForEntities([][]entity.ID{{a}, {b}})
	require.NoError(t, err)

	out, err := c.Process(context.Background(), groups[0])
	require.NoError(t, err)
	bundle, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, []string{"y"}, bundle.Segment.Descriptor.Names)
}

func TestConcatInvalidAsFirstClause(t *testing.T) {
	c := NewConcat(segment.JoinOuter)
	_, err := c.StructureForPlan(nil)
	require.Error(t, err)
}
