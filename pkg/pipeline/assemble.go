package pipeline

import (
	"reflect"
	"sort"

	"github.com/colstream/qpipe/pkg/clause"
	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

func clauseTypeName(c clause.Clause) string {
	t := reflect.TypeOf(c)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// assemble concatenates every group's output entities, in group order then
// entity order within each group, per §5's ordering guarantees: within one
// process() call's output the entity order is the row order of that
// group's contribution, and between groups the final assembler concatenates
// in the order the first clause's structure_for_plan produced. When the
// terminal clause is an Aggregation, its documented output order
// (grouping-column ascending by value, not by hash bucket) overrides the
// group-concatenation order, since partitioning groups rows by hash and
// the plan order carries no relationship to the grouping column's value
// order.
func (d *Driver) assemble(clauses []clause.Clause, sourceSchema segment.OutputSchema, idGroups [][]entity.ID) (*segment.Segment, error) {
	terminal := clauses[len(clauses)-1]
	var ordered []entity.ID
	for _, group := range idGroups {
		ordered = append(ordered, group...)
	}
	if len(ordered) == 0 {
		return emptyResult(clauses, sourceSchema)
	}

	segments := make([]*segment.Segment, 0, len(ordered))
	for _, id := range ordered {
		b, err := d.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		segments = append(segments, b.Segment)
	}

	result, err := concatSegments(segments)
	if err != nil {
		return nil, err
	}

	if agg, ok := terminal.(*clause.Aggregation); ok {
		return sortSegmentByColumnAscending(result, agg.GroupColumn)
	}
	return result, nil
}

// emptyResult builds a zero-row segment carrying the schema the clause
// chain would have produced had any rows survived: an empty plan or an
// aggregation with zero input groups are not errors, so the caller
// still gets back a correctly-shaped, empty result rather than a
// failure.
func emptyResult(clauses []clause.Clause, sourceSchema segment.OutputSchema) (*segment.Segment, error) {
	schema := sourceSchema
	for _, c := range clauses {
		var err error
		schema, err = c.ModifySchema(schema)
		if err != nil {
			return nil, err
		}
	}
	desc := schema.Descriptor
	cols := make([]segment.Column, len(desc.Names))
	for i, t := range desc.Types {
		cols[i] = segment.NewColumnLike(t, 0)
	}
	return segment.NewSegment(desc, cols, segment.RowRange{Start: 0, End: 0})
}

// concatSegments stacks seg's rows in order. Every segment is expected to
// share the same descriptor, the invariant every clause's modify_schema
// maintains across one pipeline run.
func concatSegments(segs []*segment.Segment) (*segment.Segment, error) {
	if len(segs) == 1 {
		return segs[0], nil
	}
	desc := segs[0].Descriptor
	var totalRows int
	for _, s := range segs {
		totalRows += s.NumRows()
	}

	cols := make([]segment.Column, len(desc.Names))
	for ci, name := range desc.Names {
		var parts []segment.Column
		for _, s := range segs {
			c := s.Column(name)
			if c == nil {
				return nil, qerrors.Newf(qerrors.TypeSchemaError, "pipeline: assembling result, segment missing column %q", name)
			}
			parts = append(parts, c)
		}
		cols[ci] = concatColumn(parts, totalRows)
	}
	return segment.NewSegment(desc, cols, segment.RowRange{Start: 0, End: int64(totalRows)})
}

func concatColumn(parts []segment.Column, totalRows int) segment.Column {
	switch parts[0].(type) {
	case *segment.Int64Column:
		out := make([]int64, 0, totalRows)
		for _, p := range parts {
			out = append(out, p.(*segment.Int64Column).Values...)
		}
		return segment.NewInt64Column(out)
	case *segment.Float64Column:
		out := make([]float64, 0, totalRows)
		for _, p := range parts {
			out = append(out, p.(*segment.Float64Column).Values...)
		}
		return segment.NewFloat64Column(out)
	case *segment.TimestampColumn:
		out := make([]int64, 0, totalRows)
		for _, p := range parts {
			out = append(out, p.(*segment.TimestampColumn).Values...)
		}
		return segment.NewTimestampColumn(out)
	case *segment.BoolColumn:
		out := make([]bool, 0, totalRows)
		for _, p := range parts {
			bc := p.(*segment.BoolColumn)
			for i := 0; i < bc.Len(); i++ {
				out = append(out, bc.At(i))
			}
		}
		return segment.NewBoolColumn(out)
	case *segment.StringColumn:
		out := make([]string, 0, totalRows)
		for _, p := range parts {
			sc := p.(*segment.StringColumn)
			for i := 0; i < sc.Len(); i++ {
				out = append(out, sc.At(i))
			}
		}
		return segment.NewStringColumn(out)
	default:
		return parts[0]
	}
}

// sortSegmentByColumnAscending reorders seg's rows by col's value,
// ascending, the order AggregationClause's output is documented to use.
func sortSegmentByColumnAscending(seg *segment.Segment, col string) (*segment.Segment, error) {
	c := seg.Column(col)
	if c == nil {
		return nil, qerrors.Newf(qerrors.TypeSchemaError, "pipeline: grouping column %q missing from aggregation result", col)
	}
	n := seg.NumRows()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	less, err := lessFuncFor(c)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })

	cols := make([]segment.Column, len(seg.Columns))
	for ci, column := range seg.Columns {
		cols[ci] = gatherColumnByIndex(column, idx)
	}
	return segment.NewSegment(seg.Descriptor, cols, seg.RowRange)
}

func lessFuncFor(c segment.Column) (func(a, b int) bool, error) {
	switch t := c.(type) {
	case *segment.Int64Column:
		return func(a, b int) bool { return t.At(a) < t.At(b) }, nil
	case *segment.Float64Column:
		return func(a, b int) bool { return t.At(a) < t.At(b) }, nil
	case *segment.TimestampColumn:
		return func(a, b int) bool { return t.At(a) < t.At(b) }, nil
	case *segment.StringColumn:
		return func(a, b int) bool { return t.At(a) < t.At(b) }, nil
	default:
		return nil, qerrors.New(qerrors.TypeSchemaError, "pipeline: cannot order by this column type")
	}
}

func gatherColumnByIndex(col segment.Column, idx []int) segment.Column {
	switch t := col.(type) {
	case *segment.Int64Column:
		out := make([]int64, len(idx))
		for i, k := range idx {
			out[i] = t.At(k)
		}
		return segment.NewInt64Column(out)
	case *segment.Float64Column:
		out := make([]float64, len(idx))
		for i, k := range idx {
			out[i] = t.At(k)
		}
		return segment.NewFloat64Column(out)
	case *segment.TimestampColumn:
		out := make([]int64, len(idx))
		for i, k := range idx {
			out[i] = t.At(k)
		}
		return segment.NewTimestampColumn(out)
	case *segment.BoolColumn:
		out := make([]bool, len(idx))
		for i, k := range idx {
			out[i] = t.At(k)
		}
		return segment.NewBoolColumn(out)
	case *segment.StringColumn:
		out := make([]string, len(idx))
		for i, k := range idx {
			out[i] = t.At(k)
		}
		return segment.NewStringColumn(out)
	default:
		return col
	}
}
