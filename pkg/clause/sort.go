package clause

import (
	"context"
	"sort"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// Sort reorders a single entity's rows by Column ascending. IncompletesAfter
// drops the first N plan entries before structuring, the mechanism the
// original uses to skip in-flight/incomplete segments already accounted
// for elsewhere.
type Sort struct {
	base
	Column          string
	IncompletesAfter int
}

func NewSort(column string) *Sort { return &Sort{Column: column} }

func (c *Sort) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	plan = dropIncompletes(plan, c.IncompletesAfter)
	return StructureByRowSlicePlan(plan), nil
}

func (c *Sort) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

// dropIncompletes removes the first n entries of plan in place,
// mirroring SortClause's and RemoveColumnPartitioningClause's shared
// incompletes_after_ field.
func dropIncompletes(plan []segment.RangesAndKey, n int) []segment.RangesAndKey {
	if n <= 0 || n >= len(plan) {
		if n >= len(plan) {
			return nil
		}
		return plan
	}
	return plan[n:]
}

func (c *Sort) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	out := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		col := b.Segment.Column(c.Column)
		if col == nil {
			return nil, errInvalidArg("sort: column not found: " + c.Column)
		}
		n := b.Segment.NumRows()
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		less, err := lessFunc(col)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(order, func(a, b int) bool { return less(order[a], order[b]) })

		cols := make([]segment.Column, len(b.Segment.Columns))
		for ci, c := range b.Segment.Columns {
			cols[ci] = gatherColumn(c, order)
		}
		newSeg := &segment.Segment{Descriptor: b.Segment.Descriptor, Columns: cols, RowRange: b.Segment.RowRange}
		newID, err := c.mgr.Push(entity.Bundle{Segment: newSeg, RowRange: newSeg.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, newID)
	}
	return out, nil
}

func lessFunc(col segment.Column) (func(a, b int) bool, error) {
	switch c := col.(type) {
	case *segment.Int64Column:
		return func(a, b int) bool { return c.At(a) < c.At(b) }, nil
	case *segment.Float64Column:
		return func(a, b int) bool { return c.At(a) < c.At(b) }, nil
	case *segment.TimestampColumn:
		return func(a, b int) bool { return c.At(a) < c.At(b) }, nil
	case *segment.StringColumn:
		return func(a, b int) bool { return c.At(a) < c.At(b) }, nil
	default:
		return nil, errInvalidArg("sort: unsupported column type")
	}
}

func (c *Sort) Info() Info {
	return Info{RequiredColumns: []string{c.Column}, Structuring: StructureRowSlice}
}

func (c *Sort) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) { return in, nil }
