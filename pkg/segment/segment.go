package segment

import "fmt"

// RowRange is a half-open row interval [Start, End) into the logical table.
type RowRange struct {
	Start int64
	End   int64
}

func (r RowRange) Len() int64 { return r.End - r.Start }

// Intersects reports whether r and other share any row.
func (r RowRange) Intersects(other RowRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Contains reports whether row is within [Start, End).
func (r RowRange) Contains(row int64) bool {
	return row >= r.Start && row < r.End
}

// ColRange is a half-open column-index interval [Start, End) into the
// owning segment's column list, used when a clause narrows the set of
// columns it materializes without touching row structure.
type ColRange struct {
	Start int
	End   int
}

func (c ColRange) Len() int { return c.End - c.Start }

// RangesAndKey pairs a storage key with the row/col ranges it covers,
// the unit the driver hands to structure_for_plan/structure_for_entities
// before any bytes are fetched. HasTimeRange and [TimeStart,TimeEnd)
// mirror what a real time-series key carries as its index range: a
// Collaborator sets them from whichever TimestampColumn the stored
// segment has, letting DateRange prune non-intersecting keys before any
// Fetch call, not just at the row level during process().
type RangesAndKey struct {
	StorageKey   string
	Rows         RowRange
	Cols         ColRange
	HasTimeRange bool
	TimeStart    int64
	TimeEnd      int64
}

// Descriptor describes a segment's column set: names, types, and order.
// Two segments with equal Descriptors can be concatenated without a
// schema reconciliation step.
type Descriptor struct {
	Names []string
	Types []Type
}

// IndexOf returns the position of name in the descriptor, or -1.
func (d Descriptor) IndexOf(name string) int {
	for i, n := range d.Names {
		if n == name {
			return i
		}
	}
	return -1
}

func (d Descriptor) Clone() Descriptor {
	out := Descriptor{Names: make([]string, len(d.Names)), Types: make([]Type, len(d.Types))}
	copy(out.Names, d.Names)
	copy(out.Types, d.Types)
	return out
}

// Segment is an immutable columnar slab: a fixed set of named, typed
// columns sharing a common row count, plus the RowRange it occupies in
// the logical table it was read from.
//
// Invariant: every column in Columns has Len() == RowRange.Len(). Builders
// below are responsible for maintaining this; once constructed a Segment
// is read-only and safe to share across goroutines.
type Segment struct {
	Descriptor Descriptor
	Columns    []Column
	RowRange   RowRange
}

// NewSegment validates the length invariant and returns a Segment.
func NewSegment(desc Descriptor, columns []Column, rows RowRange) (*Segment, error) {
	if len(desc.Names) != len(columns) {
		return nil, fmt.Errorf("segment: descriptor has %d columns, got %d", len(desc.Names), len(columns))
	}
	want := int(rows.Len())
	for i, c := range columns {
		if c.Len() != want {
			return nil, fmt.Errorf("segment: column %q has length %d, want %d", desc.Names[i], c.Len(), want)
		}
	}
	return &Segment{Descriptor: desc, Columns: columns, RowRange: rows}, nil
}

// Column returns the named column, or nil if absent.
func (s *Segment) Column(name string) Column {
	idx := s.Descriptor.IndexOf(name)
	if idx < 0 {
		return nil
	}
	return s.Columns[idx]
}

// NumRows is the row count of every column in this segment.
func (s *Segment) NumRows() int { return int(s.RowRange.Len()) }

// TimeBounds scans for the first TimestampColumn in s and returns its
// [min,max+1) span, the same half-open convention as RowRange. ok is
// false when s carries no timestamp column at all, which a Collaborator
// uses to leave a listed key's HasTimeRange unset rather than guess.
func (s *Segment) TimeBounds() (start, end int64, ok bool) {
	for _, c := range s.Columns {
		tc, isTS := c.(*TimestampColumn)
		if !isTS || tc.Len() == 0 {
			continue
		}
		start, end = tc.Values[0], tc.Values[0]
		for _, v := range tc.Values {
			if v < start {
				start = v
			}
			if v > end {
				end = v
			}
		}
		return start, end + 1, true
	}
	return 0, 0, false
}

// Slice returns a new Segment covering the sub-range [start,end) of rows,
// relative to this segment's own row indexing (0-based, not RowRange.Start
// relative).
func (s *Segment) Slice(start, end int) *Segment {
	cols := make([]Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.Slice(start, end)
	}
	return &Segment{
		Descriptor: s.Descriptor,
		Columns:    cols,
		RowRange:   RowRange{Start: s.RowRange.Start + int64(start), End: s.RowRange.Start + int64(end)},
	}
}

// Project returns a new Segment containing only the named columns, in the
// given order, used by ProjectClause and column-pruning reads.
func (s *Segment) Project(names []string) (*Segment, error) {
	desc := Descriptor{Names: make([]string, len(names)), Types: make([]Type, len(names))}
	cols := make([]Column, len(names))
	for i, n := range names {
		idx := s.Descriptor.IndexOf(n)
		if idx < 0 {
			return nil, fmt.Errorf("segment: column %q not found", n)
		}
		desc.Names[i] = n
		desc.Types[i] = s.Descriptor.Types[idx]
		cols[i] = s.Columns[idx]
	}
	return &Segment{Descriptor: desc, Columns: cols, RowRange: s.RowRange}, nil
}

// MemoryUsage sums every column's approximate byte footprint.
func (s *Segment) MemoryUsage() int64 {
	var total int64
	for _, c := range s.Columns {
		total += c.MemoryUsage()
	}
	return total
}

// OutputSchema describes what a clause's process() is expected to
// produce, inferred by modify_schema from the clause's input schema before
// any data flows. Mutable means the clause may change row count per
// input segment (Filter, RowRange); the set of output columns and their
// types is tracked in Descriptor. DynamicSchema mirrors ReadOptions'
// dynamic_schema flag propagating into downstream schema inference: when
// set, a MissingColumn lookup degrades to an all-missing column rather
// than erroring.
type OutputSchema struct {
	Descriptor    Descriptor
	Mutable       bool
	DynamicSchema bool
}

// Clone returns a deep-enough copy safe for a clause to mutate via
// modify_schema without aliasing the caller's OutputSchema.
func (s OutputSchema) Clone() OutputSchema {
	return OutputSchema{
		Descriptor:    s.Descriptor.Clone(),
		Mutable:       s.Mutable,
		DynamicSchema: s.DynamicSchema,
	}
}

// WithColumn returns a copy of s with an additional (or replaced) column
// appended/updated in the descriptor, the common modify_schema operation
// for clauses that add derived columns (Project, Aggregation, ColumnStats).
func (s OutputSchema) WithColumn(name string, t Type) OutputSchema {
	out := s.Clone()
	if idx := out.Descriptor.IndexOf(name); idx >= 0 {
		out.Descriptor.Types[idx] = t
		return out
	}
	out.Descriptor.Names = append(out.Descriptor.Names, name)
	out.Descriptor.Types = append(out.Descriptor.Types, t)
	return out
}

// WithoutColumn returns a copy of s with name removed, used by Project
// when the target column list narrows the schema.
func (s OutputSchema) WithoutColumn(name string) OutputSchema {
	out := s.Clone()
	idx := out.Descriptor.IndexOf(name)
	if idx < 0 {
		return out
	}
	out.Descriptor.Names = append(out.Descriptor.Names[:idx], out.Descriptor.Names[idx+1:]...)
	out.Descriptor.Types = append(out.Descriptor.Types[:idx], out.Descriptor.Types[idx+1:]...)
	return out
}

// JoinType controls how Concat reconciles differing schemas across its
// inputs, mirroring the original's JoinType enum.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinOuter
)

// JoinSchemas reconciles multiple OutputSchemas into one, per JoinType:
// Inner keeps only columns present (by name) in every input with matching
// types; Outer keeps the union, widening missing columns to DynamicSchema
// placeholders downstream. Used by ConcatClause.join_schemas.
func JoinSchemas(schemas []OutputSchema, join JoinType) (OutputSchema, error) {
	if len(schemas) == 0 {
		return OutputSchema{}, fmt.Errorf("segment: join_schemas requires at least one input")
	}
	switch join {
	case JoinInner:
		return joinInner(schemas)
	case JoinOuter:
		return joinOuter(schemas), nil
	default:
		return OutputSchema{}, fmt.Errorf("segment: unknown join type %d", join)
	}
}

func joinInner(schemas []OutputSchema) (OutputSchema, error) {
	base := schemas[0]
	var names []string
	var types []Type
	for i, name := range base.Descriptor.Names {
		t := base.Descriptor.Types[i]
		inAll := true
		for _, other := range schemas[1:] {
			idx := other.Descriptor.IndexOf(name)
			if idx < 0 || other.Descriptor.Types[idx] != t {
				inAll = false
				break
			}
		}
		if inAll {
			names = append(names, name)
			types = append(types, t)
		}
	}
	dynamic := false
	for _, s := range schemas {
		dynamic = dynamic || s.DynamicSchema
	}
	return OutputSchema{Descriptor: Descriptor{Names: names, Types: types}, DynamicSchema: dynamic}, nil
}

func joinOuter(schemas []OutputSchema) OutputSchema {
	var names []string
	var types []Type
	seen := map[string]int{}
	for _, s := range schemas {
		for i, name := range s.Descriptor.Names {
			if _, ok := seen[name]; !ok {
				seen[name] = len(names)
				names = append(names, name)
				types = append(types, s.Descriptor.Types[i])
			}
		}
	}
	// A column absent from some inputs but present in others forces the
	// joined schema into dynamic-schema mode: rows from an input that
	// lacks it materialize an all-missing column at read time.
	return OutputSchema{Descriptor: Descriptor{Names: names, Types: types}, DynamicSchema: true}
}
