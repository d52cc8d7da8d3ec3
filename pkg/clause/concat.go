package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// Concat assembles multiple inputs end to end, in argument order.
// JoinType INNER keeps only columns common to every input; OUTER keeps
// the union, filling absent cells with nulls.
type Concat struct {
	base
	Join segment.JoinType

	streamOf map[entity.ID]int
}

func NewConcat(join segment.JoinType) *Concat { return &Concat{Join: join} }

func (c *Concat) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return nil, invalidAsFirst("ConcatClause")
}

// StructureForEntities preserves stream order: groups[0]'s entities come
// first in the flattened output, then groups[1]'s, and so on, matching
// the "row order is inputs concatenated in argument order" contract.
func (c *Concat) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	c.streamOf = make(map[entity.ID]int)
	var flat []entity.ID
	for si, g := range groups {
		for _, id := range g {
			c.streamOf[id] = si
			flat = append(flat, id)
		}
	}
	if len(flat) == 0 {
		return nil, nil
	}
	return [][]entity.ID{flat}, nil
}

// JoinSchemas performs the schema union (OUTER) or intersection (INNER)
// of the given input schemas, per c.Join. ModifySchema does not call it
// and returns its input schema unchanged.
func (c *Concat) JoinSchemas(schemas []segment.OutputSchema) (segment.OutputSchema, error) {
	return segment.JoinSchemas(schemas, c.Join)
}

func (c *Concat) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	segs := make([]*segment.Segment, len(ids))
	for i, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		segs[i] = b.Segment
	}

	names, types, err := c.resolvedDescriptor(segs)
	if err != nil {
		return nil, err
	}

	outCols := make([]builderColumn, len(names))
	for i, t := range types {
		outCols[i] = newBuilderColumn(t)
	}
	for _, s := range segs {
		for row := 0; row < s.NumRows(); row++ {
			for ci, name := range names {
				col := s.Column(name)
				if col == nil {
					outCols[ci].appendNull()
					continue
				}
				outCols[ci].appendFrom(col, row)
			}
		}
	}
	cols := make([]segment.Column, len(outCols))
	for i, b := range outCols {
		cols[i] = b.build()
	}
	rowCount := 0
	if len(cols) > 0 {
		rowCount = cols[0].Len()
	}
	out := &segment.Segment{
		Descriptor: segment.Descriptor{Names: names, Types: columnTypes(cols)},
		Columns:    cols,
		RowRange:   segment.RowRange{Start: 0, End: int64(rowCount)},
	}
	id, err := c.mgr.Push(entity.Bundle{Segment: out, RowRange: out.RowRange})
	if err != nil {
		return nil, err
	}
	return []entity.ID{id}, nil
}

func (c *Concat) resolvedDescriptor(segs []*segment.Segment) ([]string, []segment.Type, error) {
	switch c.Join {
	case segment.JoinInner:
		if len(segs) == 0 {
			return nil, nil, nil
		}
		counts := make(map[string]int)
		types := make(map[string]segment.Type)
		for _, s := range segs {
			for i, name := range s.Descriptor.Names {
				counts[name]++
				types[name] = s.Descriptor.Types[i]
			}
		}
		var names []string
		for _, name := range segs[0].Descriptor.Names {
			if counts[name] == len(segs) {
				names = append(names, name)
			}
		}
		outTypes := make([]segment.Type, len(names))
		for i, n := range names {
			outTypes[i] = types[n]
		}
		return names, outTypes, nil
	case segment.JoinOuter:
		var names []string
		seen := make(map[string]bool)
		types := make(map[string]segment.Type)
		for _, s := range segs {
			for i, name := range s.Descriptor.Names {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
				types[name] = s.Descriptor.Types[i]
			}
		}
		outTypes := make([]segment.Type, len(names))
		for i, n := range names {
			outTypes[i] = types[n]
		}
		return names, outTypes, nil
	default:
		return nil, nil, errInvalidArg("concat: unknown join type")
	}
}

func (c *Concat) Info() Info {
	return Info{Structuring: StructureMultiInput, ModifiesRowCount: true}
}

func (c *Concat) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) { return in, nil }
