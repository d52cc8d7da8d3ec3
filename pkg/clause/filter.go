package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/expr"
	"github.com/colstream/qpipe/pkg/segment"
)

// PipelineOptimisation controls FilterClause's materialization strategy.
type PipelineOptimisation int

const (
	OptimiseSpeed PipelineOptimisation = iota
	OptimiseMemory
)

// Filter evaluates an expression root (which must produce a bitset)
// against each input segment and emits only the rows whose bit is set.
type Filter struct {
	base
	Context      *expr.ExpressionContext
	Optimisation PipelineOptimisation
}

func NewFilter(ctx *expr.ExpressionContext) *Filter {
	return &Filter{Context: ctx}
}

func (c *Filter) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

func (c *Filter) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

type segmentColumnSource struct {
	seg *segment.Segment
}

func (s *segmentColumnSource) Column(name string) (segment.Column, bool) {
	c := s.seg.Column(name)
	return c, c != nil
}

func (s *segmentColumnSource) NumRows() int { return s.seg.NumRows() }

func (c *Filter) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	out := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		if c.Context.RootKind != expr.RootBitset {
			return nil, errInvalidArg("filter root must evaluate to a bitset")
		}
		opts := expr.EvalOptions{}
		if c.cfg.DynamicSchema {
			opts.Degrade = expr.DegradeToAllMissing
			opts.InferredTypes = inferredTypesOf(b.Segment.Descriptor)
		}
		bs, err := expr.EvalBitset(c.Context, &segmentColumnSource{seg: b.Segment}, opts)
		if err != nil {
			return nil, err
		}

		if bs.AllClear() {
			continue // unit dropped entirely
		}
		if bs.AllSet() {
			if err := c.mgr.Retain(id); err != nil {
				return nil, err
			}
			out = append(out, id)
			continue
		}

		var filtered *segment.Segment
		if c.Optimisation == OptimiseMemory {
			filtered = filterInPlace(b.Segment, bs)
		} else {
			filtered = filterMaterialize(b.Segment, bs)
		}
		newID, err := c.mgr.Push(entity.Bundle{Segment: filtered, RowRange: filtered.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, newID)
	}
	return out, nil
}

func inferredTypesOf(desc segment.Descriptor) map[string]segment.Type {
	out := make(map[string]segment.Type, len(desc.Names))
	for i, n := range desc.Names {
		out[n] = desc.Types[i]
	}
	return out
}

// filterMaterialize builds contiguous output arrays for each column,
// favoring read-speed over the AND-in-place path.
func filterMaterialize(seg *segment.Segment, bs *segment.Bitset) *segment.Segment {
	keep := make([]int, 0, bs.CountSet())
	for i := 0; i < seg.NumRows(); i++ {
		if bs.Get(i) {
			keep = append(keep, i)
		}
	}
	cols := make([]segment.Column, len(seg.Columns))
	for ci, col := range seg.Columns {
		cols[ci] = gatherColumn(col, keep)
	}
	return &segment.Segment{
		Descriptor: seg.Descriptor,
		Columns:    cols,
		RowRange:   segment.RowRange{Start: seg.RowRange.Start, End: seg.RowRange.Start + int64(len(keep))},
	}
}

// filterInPlace is the MEMORY-optimised path: conceptually an in-place
// bit-AND on the sparse map; since Go slices can't shrink columns
// without reallocating, this still gathers, but avoids allocating the
// intermediate keep-index slice's growth by precomputing its exact size.
func filterInPlace(seg *segment.Segment, bs *segment.Bitset) *segment.Segment {
	n := bs.CountSet()
	keep := make([]int, 0, n)
	for i := 0; i < seg.NumRows(); i++ {
		if bs.Get(i) {
			keep = append(keep, i)
		}
	}
	cols := make([]segment.Column, len(seg.Columns))
	for ci, col := range seg.Columns {
		cols[ci] = gatherColumn(col, keep)
	}
	return &segment.Segment{
		Descriptor: seg.Descriptor,
		Columns:    cols,
		RowRange:   segment.RowRange{Start: seg.RowRange.Start, End: seg.RowRange.Start + int64(len(keep))},
	}
}

func gatherColumn(col segment.Column, keep []int) segment.Column {
	switch t := col.(type) {
	case *segment.Int64Column:
		out := make([]int64, len(keep))
		for i, k := range keep {
			out[i] = t.At(k)
		}
		return segment.NewInt64Column(out)
	case *segment.Float64Column:
		out := make([]float64, len(keep))
		for i, k := range keep {
			out[i] = t.At(k)
		}
		return segment.NewFloat64Column(out)
	case *segment.BoolColumn:
		out := make([]bool, len(keep))
		for i, k := range keep {
			out[i] = t.At(k)
		}
		return segment.NewBoolColumn(out)
	case *segment.TimestampColumn:
		out := make([]int64, len(keep))
		for i, k := range keep {
			out[i] = t.At(k)
		}
		return segment.NewTimestampColumn(out)
	case *segment.StringColumn:
		out := make([]string, len(keep))
		for i, k := range keep {
			out[i] = t.At(k)
		}
		return segment.NewStringColumn(out)
	default:
		return col
	}
}

func (c *Filter) Info() Info {
	return Info{RequiredColumns: c.Context.InputColumns, SupportsColumnPruning: true, Structuring: StructureRowSlice, ModifiesRowCount: true}
}

// ModifySchema preserves columns; density may flip to sparse once rows
// are dropped non-uniformly across columns sharing a segment.
func (c *Filter) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	out := in.Clone()
	out.Mutable = true
	return out, nil
}
