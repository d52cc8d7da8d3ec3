package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/expr"
	"github.com/colstream/qpipe/pkg/segment"
)

// Project evaluates an expression root (which must produce a column or a
// literal, broadcast on demand) and appends it to the segment under
// OutputColumn.
type Project struct {
	base
	Context      *expr.ExpressionContext
	OutputColumn string
	OutputType   segment.Type
}

func NewProject(ctx *expr.ExpressionContext, outputColumn string, outputType segment.Type) *Project {
	return &Project{Context: ctx, OutputColumn: outputColumn, OutputType: outputType}
}

func (c *Project) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

func (c *Project) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

func (c *Project) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	out := make([]entity.ID, 0, len(ids))
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		opts := expr.EvalOptions{}
		if c.cfg.DynamicSchema {
			opts.Degrade = expr.DegradeToAllMissing
			opts.InferredTypes = inferredTypesOf(b.Segment.Descriptor)
		}
		col, err := expr.EvalColumn(c.Context, &segmentColumnSource{seg: b.Segment}, opts)
		if err != nil {
			return nil, err
		}

		names := append(append([]string{}, b.Segment.Descriptor.Names...), c.OutputColumn)
		types := append(append([]segment.Type{}, b.Segment.Descriptor.Types...), col.Type())
		cols := append(append([]segment.Column{}, b.Segment.Columns...), col)
		newSeg := &segment.Segment{
			Descriptor: segment.Descriptor{Names: names, Types: types},
			Columns:    cols,
			RowRange:   b.Segment.RowRange,
		}
		newID, err := c.mgr.Push(entity.Bundle{Segment: newSeg, RowRange: newSeg.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, newID)
	}
	return out, nil
}

func (c *Project) Info() Info {
	return Info{RequiredColumns: c.Context.InputColumns, SupportsColumnPruning: true, Structuring: StructureRowSlice}
}

func (c *Project) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	return in.WithColumn(c.OutputColumn, c.OutputType), nil
}
