package clause

import (
	"context"
	"math"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// ColumnStats computes per-column min/max/null-count for each incoming
// segment and emits one summary row per segment, used upstream for index
// pruning. ModifySchema publishes the actual stats schema (three columns
// per tracked input column); the original left this returning an empty
// schema "so unit tests pass" — this implementation is the corrected
// version.
type ColumnStats struct {
	base
	Columns []string
}

func NewColumnStats(columns []string) *ColumnStats { return &ColumnStats{Columns: columns} }

func (c *ColumnStats) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

func (c *ColumnStats) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

func (c *ColumnStats) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	out := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		var names []string
		var cols []segment.Column
		for _, name := range c.Columns {
			col := b.Segment.Column(name)
			if col == nil {
				continue
			}
			mn, mx, nulls := columnStats(col)
			names = append(names, name+"_min", name+"_max", name+"_null_count")
			cols = append(cols, segment.NewFloat64Column([]float64{mn}),
				segment.NewFloat64Column([]float64{mx}),
				segment.NewInt64Column([]int64{nulls}))
		}
		statSeg := &segment.Segment{
			Descriptor: segment.Descriptor{Names: names, Types: columnTypes(cols)},
			Columns:    cols,
			RowRange:   segment.RowRange{Start: 0, End: 1},
		}
		newID, err := c.mgr.Push(entity.Bundle{Segment: statSeg, RowRange: statSeg.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, newID)
	}
	return out, nil
}

// columnStats reduces col to (min, max, null count) as float64s so a
// single stats segment can carry mixed-type source columns uniformly.
func columnStats(col segment.Column) (min, max float64, nullCount int64) {
	min, max = math.Inf(1), math.Inf(-1)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			nullCount++
			continue
		}
		v, ok := numericAt(col, i)
		if !ok {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nullCount
}

func numericAt(col segment.Column, i int) (float64, bool) {
	switch c := col.(type) {
	case *segment.Int64Column:
		return float64(c.At(i)), true
	case *segment.Float64Column:
		return c.At(i), true
	case *segment.TimestampColumn:
		return float64(c.At(i)), true
	default:
		return 0, false
	}
}

func (c *ColumnStats) Info() Info {
	return Info{RequiredColumns: c.Columns, Structuring: StructureRowSlice, ModifiesRowCount: true}
}

func (c *ColumnStats) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	out := segment.OutputSchema{Descriptor: segment.Descriptor{}}
	for _, name := range c.Columns {
		out = out.WithColumn(name+"_min", segment.TypeFloat64)
		out = out.WithColumn(name+"_max", segment.TypeFloat64)
		out = out.WithColumn(name+"_null_count", segment.TypeInt64)
	}
	return out, nil
}
