package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// fixedWidthBuckets is a minimal BucketGenerator used only by tests: it
// slices [rangeStart,rangeEnd) into width-sized intervals, ignoring rule
// and originOffset.
func fixedWidthBuckets(width int64) BucketGenerator {
	return func(rangeStart, rangeEnd int64, rule string, originOffset int64, closed ClosedBoundary) []TimeBucket {
		var out []TimeBucket
		for s := rangeStart; s < rangeEnd; s += width {
			e := s + width
			if e > rangeEnd {
				e = rangeEnd
			}
			out = append(out, TimeBucket{Start: s, End: e})
		}
		return out
	}
}

func TestResampleSumsPerBucket(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"ts", "qty"}, []segment.Column{
		segment.NewTimestampColumn([]int64{0, 1, 10, 11, 20}),
		segment.NewInt64Column([]int64{1, 2, 3, 4, 5}),
	})

	r := NewResample("ts", "10ns", fixedWidthBuckets(10), []NamedAggregator{
		{Kind: AggSum, InputColumn: "qty", OutputColumn: "qty_sum"},
	})
	r.SetComponentManager(mgr)
	r.SetProcessingConfig(ProcessingConfig{})

	groups, err := r.StructureForEntities([][]entity.ID{{id}})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	totalRows := 0
	sums := map[int64]int64{}
	for _, g := range groups {
		out, err := r.Process(context.Background(), g)
		require.NoError(t, err)
		require.Len(t, out, 1)
		b, err := mgr.Get(out[0])
		require.NoError(t, err)
		totalRows += b.Segment.NumRows()
		label := b.Segment.Column("ts").(*segment.TimestampColumn).At(0)
		sums[label] = b.Segment.Column("qty_sum").(*segment.Int64Column).At(0)
	}

	require.Equal(t, int64(3), sums[0])  // rows at ts=0,1 -> 1+2
	require.Equal(t, int64(7), sums[10]) // rows at ts=10,11 -> 3+4
	require.Equal(t, int64(5), sums[20]) // row at ts=20 -> 5
}

// TestResampleRightClosedBoundaryExcludesBucketStart checks that with
// ClosedRight, a row whose timestamp equals a bucket's Start belongs to
// the previous bucket (its End), not this one, and a row at End belongs
// here.
func TestResampleRightClosedBoundaryExcludesBucketStart(t *testing.T) {
	mgr := entity.NewManager(1000)
	id := pushSegment(t, mgr, []string{"ts", "qty"}, []segment.Column{
		segment.NewTimestampColumn([]int64{0, 10, 11, 20}),
		segment.NewInt64Column([]int64{1, 2, 3, 4}),
	})

	r := NewResample("ts", "10ns", fixedWidthBuckets(10), []NamedAggregator{
		{Kind: AggSum, InputColumn: "qty", OutputColumn: "qty_sum"},
	})
	r.ClosedBoundary = ClosedRight
	r.LabelBoundary = LabelRight
	r.SetComponentManager(mgr)
	r.SetProcessingConfig(ProcessingConfig{})

	groups, err := r.StructureForEntities([][]entity.ID{{id}})
	require.NoError(t, err)

	sums := map[int64]int64{}
	for _, g := range groups {
		out, err := r.Process(context.Background(), g)
		require.NoError(t, err)
		if len(out) == 0 {
			// a bucket that no row falls within emits nothing
			continue
		}
		require.Len(t, out, 1)
		b, err := mgr.Get(out[0])
		require.NoError(t, err)
		label := b.Segment.Column("ts").(*segment.TimestampColumn).At(0)
		sum := b.Segment.Column("qty_sum").(*segment.Int64Column).At(0)
		if sum != 0 {
			sums[label] = sum
		}
	}

	// bucket (0,10] contains ts=10 -> 2; ts=0 belongs to the preceding
	// bucket's right edge, not this one.
	require.Equal(t, int64(2), sums[10])
	// bucket (10,20] contains ts=11,20 -> 3+4
	require.Equal(t, int64(7), sums[20])
}
