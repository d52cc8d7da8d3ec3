package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestColumnStatsComputesMinMaxNullCount(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"v"}, []segment.Column{segment.NewInt64Column([]int64{5, 1, 9, 3})})

	cs := NewColumnStats([]string{"v"})
	cs.SetComponentManager(mgr)

	out, err := cs.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, 1.0, b.Segment.Column("v_min").(*segment.Float64Column).At(0))
	require.Equal(t, 9.0, b.Segment.Column("v_max").(*segment.Float64Column).At(0))
	require.Equal(t, int64(0), b.Segment.Column("v_null_count").(*segment.Int64Column).At(0))
}

func TestColumnStatsModifySchemaPublishesStatsColumns(t *testing.T) {
	cs := NewColumnStats([]string{"v"})
	out, err := cs.ModifySchema(segment.OutputSchema{})
	require.NoError(t, err)
	require.Equal(t, []string{"v_min", "v_max", "v_null_count"}, out.Descriptor.Names)
}
