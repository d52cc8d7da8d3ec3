package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// DateRange keeps only rows whose index timestamp falls in [Start,End).
type DateRange struct {
	base
	TimeColumn string
	Start      int64
	End        int64
}

func NewDateRange(timeColumn string, start, end int64) *DateRange {
	return &DateRange{TimeColumn: timeColumn, Start: start, End: end}
}

// StructureForPlan drops plan entries whose key-level time range doesn't
// intersect [Start,End) before any segment is fetched. A key with no
// recorded time range (HasTimeRange false) is kept; process() still
// filters at the row level, so an unprunable key costs an extra fetch
// but never an incorrect result.
func (c *DateRange) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	window := segment.RowRange{Start: c.Start, End: c.End}
	return StructureByRowSlicePlanFiltered(plan, func(p segment.RangesAndKey) bool {
		if !p.HasTimeRange {
			return true
		}
		return segment.RowRange{Start: p.TimeStart, End: p.TimeEnd}.Intersects(window)
	}), nil
}

func (c *DateRange) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

func (c *DateRange) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	out := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		tcol, ok := b.Segment.Column(c.TimeColumn).(*segment.TimestampColumn)
		if !ok {
			return nil, errInvalidArg("date_range: time column not found: " + c.TimeColumn)
		}
		keep := make([]int, 0, tcol.Len())
		for row := 0; row < tcol.Len(); row++ {
			ts := tcol.At(row)
			if ts >= c.Start && ts < c.End {
				keep = append(keep, row)
			}
		}
		if len(keep) == 0 {
			continue
		}
		if len(keep) == tcol.Len() {
			if err := c.mgr.Retain(id); err != nil {
				return nil, err
			}
			out = append(out, id)
			continue
		}
		cols := make([]segment.Column, len(b.Segment.Columns))
		for ci, col := range b.Segment.Columns {
			cols[ci] = gatherColumn(col, keep)
		}
		newSeg := &segment.Segment{
			Descriptor: b.Segment.Descriptor,
			Columns:    cols,
			RowRange:   segment.RowRange{Start: b.RowRange.Start, End: b.RowRange.Start + int64(len(keep))},
		}
		newID, err := c.mgr.Push(entity.Bundle{Segment: newSeg, RowRange: newSeg.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, newID)
	}
	return out, nil
}

func (c *DateRange) Info() Info {
	return Info{RequiredColumns: []string{c.TimeColumn}, Structuring: StructureRowSlice, ModifiesRowCount: true}
}

func (c *DateRange) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) { return in, nil }
