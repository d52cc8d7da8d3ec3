package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/clause"
	"github.com/colstream/qpipe/pkg/config"
	"github.com/colstream/qpipe/pkg/pipeline"
	"github.com/colstream/qpipe/pkg/segment"
	"github.com/colstream/qpipe/pkg/storage"
)

func newPriceSegment(start int64, values []int64) *segment.Segment {
	desc := segment.Descriptor{Names: []string{"price"}, Types: []segment.Type{segment.TypeInt64}}
	seg, err := segment.NewSegment(desc, []segment.Column{segment.NewInt64Column(values)}, segment.RowRange{Start: start, End: start + int64(len(values))})
	if err != nil {
		panic(err)
	}
	return seg
}

func TestDriverRunSingleClauseRowRangeHead(t *testing.T) {
	ctx := context.Background()
	collab := storage.NewMemoryCollaborator()
	require.NoError(t, collab.Write(ctx, "a", newPriceSegment(0, []int64{1, 2, 3})))
	require.NoError(t, collab.Write(ctx, "b", newPriceSegment(3, []int64{4, 5, 6})))

	cfg := config.DefaultPipelineConfig("test")
	d := pipeline.NewDriver(collab, cfg, nil, nil)

	rr := clause.NewRowRangeHead(4)
	result, err := d.Run(ctx, []clause.Clause{rr}, pipeline.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 4, result.NumRows())
}

func TestDriverRunRequiresAtLeastOneClause(t *testing.T) {
	ctx := context.Background()
	collab := storage.NewMemoryCollaborator()
	d := pipeline.NewDriver(collab, nil, nil, nil)

	_, err := d.Run(ctx, nil, pipeline.ReadOptions{})
	assert.Error(t, err)
}

func TestDriverRunPartitionThenAggregationOrdersByGroupColumn(t *testing.T) {
	ctx := context.Background()
	collab := storage.NewMemoryCollaborator()
	require.NoError(t, collab.Write(ctx, "a", newPriceSegment(0, []int64{3, 1, 2, 1, 3})))

	cfg := config.DefaultPipelineConfig("test")
	d := pipeline.NewDriver(collab, cfg, nil, nil)

	partition := clause.NewPartition("price", 4)
	sum := clause.NewAggregation("price", []clause.NamedAggregator{
		{Kind: clause.AggSum, InputColumn: "price", OutputColumn: "total"},
	})

	result, err := d.Run(ctx, []clause.Clause{partition, sum}, pipeline.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)

	groupCol := result.Column("price")
	require.NotNil(t, groupCol)
	ic, ok := groupCol.(*segment.Int64Column)
	require.True(t, ok)
	for i := 1; i < ic.Len(); i++ {
		assert.LessOrEqual(t, ic.At(i-1), ic.At(i))
	}
}
