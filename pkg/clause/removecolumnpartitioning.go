package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// RemoveColumnPartitioning re-merges a column-sliced plan back into whole
// row-slices, undoing the column partitioning a prior read stage applied.
// IncompletesAfter drops the first N plan entries before structuring, the
// same mechanism Sort carries, used to skip plan rows already folded into
// an earlier incomplete segment.
type RemoveColumnPartitioning struct {
	base
	IncompletesAfter int
}

func NewRemoveColumnPartitioning() *RemoveColumnPartitioning {
	return &RemoveColumnPartitioning{}
}

func (c *RemoveColumnPartitioning) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	plan = dropIncompletes(plan, c.IncompletesAfter)
	return StructureByRowSlicePlan(plan), nil
}

func (c *RemoveColumnPartitioning) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

// Process merges every entity sharing a row-range into one segment whose
// column set is the union of its inputs' columns, in first-seen order.
func (c *RemoveColumnPartitioning) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) == 1 {
		if err := c.mgr.Retain(ids[0]); err != nil {
			return nil, err
		}
		return ids, nil
	}

	var names []string
	var cols []segment.Column
	seen := make(map[string]bool)
	var rr segment.RowRange
	for i, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			rr = b.RowRange
		}
		for ci, name := range b.Segment.Descriptor.Names {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
			cols = append(cols, b.Segment.Columns[ci])
		}
	}
	newSeg := &segment.Segment{
		Descriptor: segment.Descriptor{Names: names, Types: columnTypes(cols)},
		Columns:    cols,
		RowRange:   rr,
	}
	id, err := c.mgr.Push(entity.Bundle{Segment: newSeg, RowRange: rr})
	if err != nil {
		return nil, err
	}
	return []entity.ID{id}, nil
}

func (c *RemoveColumnPartitioning) Info() Info {
	return Info{Structuring: StructureRowSlice}
}

func (c *RemoveColumnPartitioning) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	return in, nil
}
