package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// Passthrough re-publishes its inputs unchanged. Its entity-level
// structuring is a literal identity pass, preserving the caller's order;
// its plan-level structuring, when Passthrough is first, still groups by row-slice like
// every other single-input clause, since an unstructured plan carries no
// row-observable "caller order" yet.
type Passthrough struct {
	base
}

func NewPassthrough() *Passthrough { return &Passthrough{} }

func (c *Passthrough) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

func (c *Passthrough) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return groups, nil
}

func (c *Passthrough) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	for _, id := range ids {
		if err := c.mgr.Retain(id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (c *Passthrough) Info() Info {
	return Info{Structuring: StructureRowSlice}
}

func (c *Passthrough) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	return in, nil
}
