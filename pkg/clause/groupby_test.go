package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestPartitionThenAggregationSumsPerGroup(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"sym", "qty"}, []segment.Column{
		segment.NewStringColumn([]string{"A", "B", "A", "B", "A"}),
		segment.NewInt64Column([]int64{1, 2, 3, 4, 5}),
	})

	part := NewPartition("sym", 4)
	part.SetComponentManager(mgr)
	part.SetProcessingConfig(ProcessingConfig{})
	bucketIDs, err := part.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.NotEmpty(t, bucketIDs)

	agg := NewAggregation("sym", []NamedAggregator{{Kind: AggSum, InputColumn: "qty", OutputColumn: "qty_sum"}})
	agg.SetComponentManager(mgr)
	agg.SetProcessingConfig(ProcessingConfig{})

	groups, err := agg.StructureForEntities([][]entity.ID{bucketIDs})
	require.NoError(t, err)

	// A bucket can hold more than one distinct "sym" value (NumBuckets is
	// caller-chosen and unrelated to key cardinality), so a bucket group's
	// Process call may return more than one output row; gather them all.
	totals := map[string]int64{}
	for _, g := range groups {
		out, err := agg.Process(context.Background(), g)
		require.NoError(t, err)
		for _, outID := range out {
			b, err := mgr.Get(outID)
			require.NoError(t, err)
			sym := b.Segment.Column("sym").(*segment.StringColumn).At(0)
			sum := b.Segment.Column("qty_sum").(*segment.Int64Column).At(0)
			totals[sym] = sum
		}
	}

	require.Equal(t, int64(9), totals["A"])
	require.Equal(t, int64(6), totals["B"])
}

// TestAggregationSeparatesDistinctValuesSharingABucket forces a bucket
// collision (NumBuckets=1, so every distinct "sym" value hashes into
// bucket 0) and checks Aggregation.Process still emits one output row per
// distinct group-key value rather than merging them under whichever value
// happened to be seen first.
func TestAggregationSeparatesDistinctValuesSharingABucket(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"sym", "qty"}, []segment.Column{
		segment.NewStringColumn([]string{"A", "B", "A", "C", "B"}),
		segment.NewInt64Column([]int64{1, 2, 3, 4, 5}),
	})

	part := NewPartition("sym", 1)
	part.SetComponentManager(mgr)
	part.SetProcessingConfig(ProcessingConfig{})
	bucketIDs, err := part.Process(context.Background(), []entity.ID{id})
	require.NoError(t, err)
	require.Len(t, bucketIDs, 1, "NumBuckets=1 must route every row into a single bucket entity")

	agg := NewAggregation("sym", []NamedAggregator{{Kind: AggSum, InputColumn: "qty", OutputColumn: "qty_sum"}})
	agg.SetComponentManager(mgr)
	agg.SetProcessingConfig(ProcessingConfig{})

	groups, err := agg.StructureForEntities([][]entity.ID{bucketIDs})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	out, err := agg.Process(context.Background(), groups[0])
	require.NoError(t, err)
	require.Len(t, out, 3, "one output row per distinct sym value, not one per bucket")

	totals := map[string]int64{}
	for _, outID := range out {
		b, err := mgr.Get(outID)
		require.NoError(t, err)
		sym := b.Segment.Column("sym").(*segment.StringColumn).At(0)
		sum := b.Segment.Column("qty_sum").(*segment.Int64Column).At(0)
		totals[sym] = sum
	}
	require.Equal(t, int64(4), totals["A"])
	require.Equal(t, int64(7), totals["B"])
	require.Equal(t, int64(4), totals["C"])
}

func TestAggregationInvalidAsFirstClause(t *testing.T) {
	agg := NewAggregation("sym", nil)
	_, err := agg.StructureForPlan(nil)
	require.Error(t, err)
}

func TestPartitionAssignsSharedBucketIDAcrossInputs(t *testing.T) {
	mgr := entity.NewManager(1000)
	id1 := pushSegment(t, mgr, []string{"sym", "qty"}, []segment.Column{
		segment.NewStringColumn([]string{"A"}),
		segment.NewInt64Column([]int64{1}),
	})
	id2 := pushSegment(t, mgr, []string{"sym", "qty"}, []segment.Column{
		segment.NewStringColumn([]string{"A"}),
		segment.NewInt64Column([]int64{2}),
	})

	part := NewPartition("sym", 4)
	part.SetComponentManager(mgr)
	part.SetProcessingConfig(ProcessingConfig{})

	out1, err := part.Process(context.Background(), []entity.ID{id1})
	require.NoError(t, err)
	out2, err := part.Process(context.Background(), []entity.ID{id2})
	require.NoError(t, err)

	b1, err := mgr.Get(out1[0])
	require.NoError(t, err)
	b2, err := mgr.Get(out2[0])
	require.NoError(t, err)
	require.Equal(t, b1.BucketID, b2.BucketID)
}
