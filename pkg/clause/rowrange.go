package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// RowRangeKind selects which rows RowRangeClause keeps.
type RowRangeKind int

const (
	RowRangeHead RowRangeKind = iota
	RowRangeTail
	RowRangeRange
)

// RowRange keeps the first N rows (Head), last N rows (Tail), or an
// explicit [Start,End) slice (Range) of the logical table, mirroring the
// original's RowRangeClause and its calculate_start_and_end(total_rows).
type RowRange struct {
	base
	Kind  RowRangeKind
	N     int64
	Start int64 // user-provided; may be negative (Python-style) for Range
	End   int64

	resolvedStart int64
	resolvedEnd   int64
}

func NewRowRangeHead(n int64) *RowRange { return &RowRange{Kind: RowRangeHead, N: n} }
func NewRowRangeTail(n int64) *RowRange { return &RowRange{Kind: RowRangeTail, N: n} }
func NewRowRangeRange(start, end int64) *RowRange {
	return &RowRange{Kind: RowRangeRange, Start: start, End: end}
}

// calculateStartAndEnd resolves Head/Tail/negative-indexed Range bounds
// against the pipeline's total row count, set via SetProcessingConfig.
func (c *RowRange) calculateStartAndEnd(totalRows int64) {
	switch c.Kind {
	case RowRangeHead:
		c.resolvedStart = 0
		c.resolvedEnd = minInt64(c.N, totalRows)
	case RowRangeTail:
		c.resolvedStart = maxInt64(0, totalRows-c.N)
		c.resolvedEnd = totalRows
	case RowRangeRange:
		start, end := c.Start, c.End
		if start < 0 {
			start += totalRows
		}
		if end < 0 {
			end += totalRows
		}
		c.resolvedStart = maxInt64(0, start)
		c.resolvedEnd = minInt64(totalRows, end)
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (c *RowRange) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	c.calculateStartAndEnd(c.cfg.TotalRowCount)
	window := segment.RowRange{Start: c.resolvedStart, End: c.resolvedEnd}
	return StructureByRowSlicePlanFiltered(plan, func(p segment.RangesAndKey) bool {
		return p.Rows.Intersects(window)
	}), nil
}

func (c *RowRange) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

func (c *RowRange) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	out := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		segStart, segEnd := b.RowRange.Start, b.RowRange.End
		lo := maxInt64(segStart, c.resolvedStart)
		hi := minInt64(segEnd, c.resolvedEnd)
		if lo >= hi {
			continue
		}
		sliced := b.Segment.Slice(int(lo-segStart), int(hi-segStart))
		newID, err := c.mgr.Push(entity.Bundle{Segment: sliced, RowRange: sliced.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, newID)
	}
	return out, nil
}

func (c *RowRange) Info() Info {
	return Info{Structuring: StructureRowSlice, ModifiesRowCount: true}
}

func (c *RowRange) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) { return in, nil }
