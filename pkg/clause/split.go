package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// Split divides each incoming segment into fixed-row chunks of Rows rows;
// the last chunk of a segment may be shorter.
type Split struct {
	base
	Rows int64
}

func NewSplit(rows int64) *Split { return &Split{Rows: rows} }

func (c *Split) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

func (c *Split) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

func (c *Split) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	var out []entity.ID
	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		n := int64(b.Segment.NumRows())
		if n <= c.Rows {
			if err := c.mgr.Retain(id); err != nil {
				return nil, err
			}
			out = append(out, id)
			continue
		}
		for start := int64(0); start < n; start += c.Rows {
			end := start + c.Rows
			if end > n {
				end = n
			}
			sliced := b.Segment.Slice(int(start), int(end))
			newID, err := c.mgr.Push(entity.Bundle{Segment: sliced, RowRange: sliced.RowRange})
			if err != nil {
				return nil, err
			}
			out = append(out, newID)
		}
	}
	return out, nil
}

func (c *Split) Info() Info {
	return Info{Structuring: StructureRowSlice, ModifiesRowCount: true}
}

func (c *Split) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) { return in, nil }
