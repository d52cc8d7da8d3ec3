package clause

import (
	"context"
	"sort"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// LabelBoundary controls which edge of a bucket interval labels the
// output row's index value: the bucket's start (left) or end (right).
type LabelBoundary int

const (
	LabelLeft LabelBoundary = iota
	LabelRight
)

// Resample is ResampleClause<closed_boundary>: buckets rows by their time
// index into Rule-sized intervals (computed by an injected
// BucketGenerator, never a calendar library inside this package) and
// reduces each bucket with a SortedAggregator per NamedAggregator.
type Resample struct {
	base
	TimeColumn     string
	Rule           string
	LabelBoundary  LabelBoundary
	ClosedBoundary ClosedBoundary
	Generator      BucketGenerator
	Aggregators    []NamedAggregator
	// Origin and Offset both anchor the generator's alignment: Origin is
	// the absolute instant bucket edges are measured from, Offset is an
	// additional fixed shift from there. Generator receives their sum.
	Origin int64
	Offset int64

	buckets []TimeBucket
}

func NewResample(timeColumn, rule string, gen BucketGenerator, aggregators []NamedAggregator) *Resample {
	return &Resample{TimeColumn: timeColumn, Rule: rule, Generator: gen, Aggregators: aggregators}
}

// timeBoundsLookup adapts the component manager to structuring.go's
// TimestampLookup, reading TimeColumn's min/max from each bundle's
// segment.
type timeBoundsLookup struct {
	mgr    *entity.Manager
	column string
}

func (l *timeBoundsLookup) TimeBounds(id entity.ID) (int64, int64, error) {
	b, err := l.mgr.Get(id)
	if err != nil {
		return 0, 0, err
	}
	col, ok := b.Segment.Column(l.column).(*segment.TimestampColumn)
	if !ok || col.Len() == 0 {
		return 0, 0, errInvalidArg("resample: time column missing or empty")
	}
	start, end := col.Values[0], col.Values[0]
	for _, v := range col.Values {
		if v < start {
			start = v
		}
		if v > end {
			end = v
		}
	}
	return start, end + 1, nil
}

func (c *Resample) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

// StructureForEntities computes bucket boundaries over the full span of
// the given entities' time column, then partitions per
// StructureByTimeBucket. The bucket owners StructureByTimeBucket reports
// are not used; Process learns its bucket from a marker entity instead.
func (c *Resample) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	flat := flatten(groups)
	if len(flat) == 0 {
		return nil, nil
	}
	lookup := &timeBoundsLookup{mgr: c.mgr, column: c.TimeColumn}

	globalStart, globalEnd := int64(1<<62), int64(-(1 << 62))
	for _, id := range flat {
		s, e, err := lookup.TimeBounds(id)
		if err != nil {
			return nil, err
		}
		if s < globalStart {
			globalStart = s
		}
		if e > globalEnd {
			globalEnd = e
		}
	}

	buckets := c.Generator(globalStart, globalEnd, c.Rule, c.Origin+c.Offset, c.ClosedBoundary)
	groupsOut, _, err := StructureByTimeBucket(lookup, buckets, flat)
	if err != nil {
		return nil, err
	}

	// Each non-empty group gets a zero-row marker entity carrying its
	// bucket index, appended to the group, so Process can recover which
	// TimeBucket it was called for without guessing from entity identity
	// (entities routinely overlap more than one bucket, so they cannot
	// identify their bucket by themselves).
	var nonEmpty [][]entity.ID
	var nonEmptyBuckets []TimeBucket
	for i, g := range groupsOut {
		if len(g) == 0 {
			continue
		}
		markerSeg := &segment.Segment{RowRange: segment.RowRange{Start: 0, End: 0}}
		markerID, err := c.mgr.Push(entity.Bundle{Segment: markerSeg, BucketID: len(nonEmptyBuckets)})
		if err != nil {
			return nil, err
		}
		nonEmpty = append(nonEmpty, append(g, markerID))
		nonEmptyBuckets = append(nonEmptyBuckets, buckets[i])
	}
	c.buckets = nonEmptyBuckets
	return nonEmpty, nil
}

// Process reduces one bucket's entities into a single output row. The
// bucket itself is recovered via resolveBucket (the marker entity
// StructureForEntities appended to this group); rows are then filtered to
// those whose time value truly falls within that bucket, which makes
// aggregation exactly-once at the row level regardless of how many
// buckets an input entity's row-range nominally overlaps. A bucket that no
// row falls within yields no output row.
func (c *Resample) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	bucket, ids, err := c.resolveBucket(ids)
	if err != nil {
		return nil, err
	}

	aggs := make([]SortedAggregator, len(c.Aggregators))
	states := make([]AggState, len(c.Aggregators))
	for i, na := range c.Aggregators {
		aggs[i] = newSortedAggregator(na.Kind)
		states[i] = aggs[i].Zero()
	}

	type timedRow struct {
		segIdx int
		row    int
		ts     int64
	}
	segs := make([]*segment.Segment, len(ids))
	var rows []timedRow
	for si, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		segs[si] = b.Segment
		tcol, ok := b.Segment.Column(c.TimeColumn).(*segment.TimestampColumn)
		if !ok {
			continue
		}
		for row := 0; row < tcol.Len(); row++ {
			ts := tcol.At(row)
			var inBucket bool
			if c.ClosedBoundary == ClosedRight {
				inBucket = ts > bucket.Start && ts <= bucket.End
			} else {
				inBucket = ts >= bucket.Start && ts < bucket.End
			}
			if inBucket {
				rows = append(rows, timedRow{segIdx: si, row: row, ts: ts})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ts < rows[j].ts })
	if len(rows) == 0 {
		return nil, nil
	}

	for _, tr := range rows {
		for ai, na := range c.Aggregators {
			col := segs[tr.segIdx].Column(na.InputColumn)
			if col == nil {
				continue
			}
			states[ai] = aggs[ai].Accumulate(states[ai], col, tr.row)
		}
	}

	label := bucket.Start
	if c.LabelBoundary == LabelRight {
		label = bucket.End
	}

	names := []string{c.TimeColumn}
	cols := []segment.Column{segment.NewTimestampColumn([]int64{label})}
	for ai, na := range c.Aggregators {
		names = append(names, na.OutputColumn)
		cols = append(cols, aggs[ai].Finalize(states[ai]))
	}
	out := &segment.Segment{
		Descriptor: segment.Descriptor{Names: names, Types: columnTypes(cols)},
		Columns:    cols,
		RowRange:   segment.RowRange{Start: 0, End: 1},
	}
	id, err := c.mgr.Push(entity.Bundle{Segment: out, RowRange: out.RowRange})
	if err != nil {
		return nil, err
	}
	return []entity.ID{id}, nil
}

// resolveBucket finds and strips the zero-row marker entity
// StructureForEntities appended to this group, returning the TimeBucket
// it names and the remaining (real) entity ids.
func (c *Resample) resolveBucket(ids []entity.ID) (TimeBucket, []entity.ID, error) {
	for i, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return TimeBucket{}, nil, err
		}
		if b.Segment.NumRows() == 0 {
			if b.BucketID < 0 || b.BucketID >= len(c.buckets) {
				return TimeBucket{}, nil, errAssertion("resample: marker bucket index out of range")
			}
			bucket := c.buckets[b.BucketID]
			rest := append(append([]entity.ID{}, ids[:i]...), ids[i+1:]...)
			return bucket, rest, nil
		}
	}
	return TimeBucket{}, nil, errAssertion("resample: bucket marker entity missing")
}

func (c *Resample) Info() Info {
	cols := []string{c.TimeColumn}
	for _, a := range c.Aggregators {
		cols = append(cols, a.InputColumn)
	}
	return Info{RequiredColumns: cols, Structuring: StructureTimeBucket, ModifiesRowCount: true}
}

func (c *Resample) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	out := in
	for _, na := range c.Aggregators {
		idx := in.Descriptor.IndexOf(na.InputColumn)
		var inputType segment.Type
		if idx >= 0 {
			inputType = in.Descriptor.Types[idx]
		}
		out = out.WithColumn(na.OutputColumn, na.outputType(inputType))
	}
	return out, nil
}
