package clause

import (
	"context"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// Grouper maps a raw column value at row to a 64-bit hash; the default
// below hashes the value's canonical string form with xxhash rather than
// a hand-rolled FNV loop.
type Grouper func(col segment.Column, row int) uint64

// DefaultGrouper hashes a cell's textual representation with xxhash.
func DefaultGrouper(col segment.Column, row int) uint64 {
	return xxhash.Sum64String(stringify(col, row))
}

// Bucketizer maps a hash to one of numBuckets buckets, fixed per
// pipeline run.
type Bucketizer func(hash uint64, numBuckets int) int

// DefaultBucketizer is a simple modulo reduction.
func DefaultBucketizer(hash uint64, numBuckets int) int { return int(hash % uint64(numBuckets)) }

// Partition is PartitionClause<Grouper,Bucketizer>: it hashes the
// grouping column's values and routes each row into one of NumBuckets
// output entities, fixed per pipeline run. Entities from the same bucket
// across different row-slices share Bundle.BucketID.
type Partition struct {
	base
	GroupColumn string
	NumBuckets  int
	Grouper     Grouper
	Bucketizer  Bucketizer
}

func NewPartition(groupColumn string, numBuckets int) *Partition {
	return &Partition{GroupColumn: groupColumn, NumBuckets: numBuckets, Grouper: DefaultGrouper, Bucketizer: DefaultBucketizer}
}

func (c *Partition) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return StructureByRowSlicePlan(plan), nil
}

func (c *Partition) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	return GroupByRowSliceEntities(c.mgr, groups)
}

func (c *Partition) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	type bucketRows struct {
		rows    []int
		segIdx  []int // which input id each row came from, parallel to rows
	}
	buckets := make(map[int]*bucketRows)

	segs := make([]*segment.Segment, len(ids))
	origStart := make([]int64, len(ids))
	for i, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		segs[i] = b.Segment
		origStart[i] = b.RowRange.Start
	}

	for si, seg := range segs {
		col := seg.Column(c.GroupColumn)
		if col == nil {
			return nil, errInvalidArg("partition: grouping column not found: " + c.GroupColumn)
		}
		for row := 0; row < seg.NumRows(); row++ {
			h := c.Grouper(col, row)
			bucket := c.Bucketizer(h, c.NumBuckets)
			br, ok := buckets[bucket]
			if !ok {
				br = &bucketRows{}
				buckets[bucket] = br
			}
			br.rows = append(br.rows, row)
			br.segIdx = append(br.segIdx, si)
		}
	}

	bucketIDs := make([]int, 0, len(buckets))
	for b := range buckets {
		bucketIDs = append(bucketIDs, b)
	}
	sort.Ints(bucketIDs)

	out := make([]entity.ID, 0, len(bucketIDs))
	for _, bucket := range bucketIDs {
		br := buckets[bucket]
		cols := make([]segment.Column, len(segs[0].Columns))
		origIdx := make([]int64, len(br.rows))
		for ci := range cols {
			cols[ci] = gatherAcross(segs, br.segIdx, br.rows, ci)
		}
		for i, row := range br.rows {
			origIdx[i] = origStart[br.segIdx[i]] + int64(row)
		}
		newSeg := &segment.Segment{
			Descriptor: segs[0].Descriptor,
			Columns:    cols,
			RowRange:   segment.RowRange{Start: 0, End: int64(len(br.rows))},
		}
		id, err := c.mgr.Push(entity.Bundle{Segment: newSeg, RowRange: newSeg.RowRange, BucketID: bucket, OrigRowIndex: origIdx})
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func gatherAcross(segs []*segment.Segment, segIdx []int, rows []int, col int) segment.Column {
	switch segs[0].Columns[col].(type) {
	case *segment.Int64Column:
		out := make([]int64, len(rows))
		for i, r := range rows {
			out[i] = segs[segIdx[i]].Columns[col].(*segment.Int64Column).At(r)
		}
		return segment.NewInt64Column(out)
	case *segment.Float64Column:
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = segs[segIdx[i]].Columns[col].(*segment.Float64Column).At(r)
		}
		return segment.NewFloat64Column(out)
	case *segment.BoolColumn:
		out := make([]bool, len(rows))
		for i, r := range rows {
			out[i] = segs[segIdx[i]].Columns[col].(*segment.BoolColumn).At(r)
		}
		return segment.NewBoolColumn(out)
	case *segment.TimestampColumn:
		out := make([]int64, len(rows))
		for i, r := range rows {
			out[i] = segs[segIdx[i]].Columns[col].(*segment.TimestampColumn).At(r)
		}
		return segment.NewTimestampColumn(out)
	default:
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = segs[segIdx[i]].Columns[col].(*segment.StringColumn).At(r)
		}
		return segment.NewStringColumn(out)
	}
}

func (c *Partition) Info() Info {
	return Info{RequiredColumns: []string{c.GroupColumn}, Structuring: StructureRowSlice, ModifiesRowCount: true}
}

func (c *Partition) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
	return in, nil
}

// Aggregation is AggregationClause: runs after Partition;
// StructureForEntities groups all entities sharing a bucket-id label
// together, since they must be reduced into one output row. It requires
// at least one upstream clause to have already grouped entities by key,
// so it is invalid as the first clause in a pipeline.
type Aggregation struct {
	base
	GroupColumn  string
	Aggregators  []NamedAggregator
}

func NewAggregation(groupColumn string, aggregators []NamedAggregator) *Aggregation {
	return &Aggregation{GroupColumn: groupColumn, Aggregators: aggregators}
}

func (c *Aggregation) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return nil, invalidAsFirst("AggregationClause")
}

func (c *Aggregation) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
	flat := flatten(groups)
	byBucket := make(map[int][]entity.ID)
	order := make([]int, 0)
	for _, id := range flat {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		if _, ok := byBucket[b.BucketID]; !ok {
			order = append(order, b.BucketID)
		}
		byBucket[b.BucketID] = append(byBucket[b.BucketID], id)
	}
	sort.Ints(order)
	out := make([][]entity.ID, len(order))
	for i, bucket := range order {
		out[i] = byBucket[bucket]
	}
	return out, nil
}

func flatten(groups [][]entity.ID) []entity.ID {
	var out []entity.ID
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// groupAccum is one distinct GroupColumn value's running aggregator state,
// accumulated across every entity sharing the bucket Process was called
// with.
type groupAccum struct {
	value  segment.Column // the group key, as a single-row column
	states []AggState
}

// Process reduces every entity sharing a bucket (already grouped by
// StructureForEntities) into one output row per distinct GroupColumn
// value seen in that bucket, not one row per bucket: bucket membership is
// only a sharding mechanism (NumBuckets is caller-chosen and unrelated to
// key cardinality), so two different values that hashed into the same
// bucket must still be kept apart, sub-grouped here by their actual value.
func (c *Aggregation) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	aggs := make([]Aggregator, len(c.Aggregators))
	for i, na := range c.Aggregators {
		aggs[i] = newAggregator(na.Kind)
	}

	groups := make(map[string]*groupAccum)
	order := make([]string, 0)

	for _, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		seg := b.Segment
		groupCol := seg.Column(c.GroupColumn)
		if groupCol == nil {
			return nil, errInvalidArg("aggregation: grouping column not found: " + c.GroupColumn)
		}
		inputCols := make([]segment.Column, len(c.Aggregators))
		for ai, na := range c.Aggregators {
			inputCols[ai] = seg.Column(na.InputColumn)
		}

		for row := 0; row < seg.NumRows(); row++ {
			key := stringify(groupCol, row)
			ga, ok := groups[key]
			if !ok {
				ga = &groupAccum{value: groupCol.Slice(row, row+1), states: make([]AggState, len(aggs))}
				for ai := range aggs {
					ga.states[ai] = aggs[ai].Zero()
				}
				groups[key] = ga
				order = append(order, key)
			}
			origIdx := int64(row)
			if row < len(b.OrigRowIndex) {
				origIdx = b.OrigRowIndex[row]
			}
			for ai := range c.Aggregators {
				if inputCols[ai] == nil {
					continue
				}
				ga.states[ai] = aggs[ai].Accumulate(ga.states[ai], inputCols[ai], row, origIdx)
			}
		}
	}

	sort.Strings(order)

	out := make([]entity.ID, 0, len(order))
	for _, key := range order {
		ga := groups[key]
		names := []string{c.GroupColumn}
		cols := []segment.Column{ga.value}
		for ai, na := range c.Aggregators {
			names = append(names, na.OutputColumn)
			cols = append(cols, aggs[ai].Finalize(ga.states[ai]))
		}
		outSeg, err := segment.NewSegment(segment.Descriptor{Names: names, Types: columnTypes(cols)}, cols, segment.RowRange{Start: 0, End: 1})
		if err != nil {
			return nil, err
		}
		id, err := c.mgr.Push(entity.Bundle{Segment: outSeg, RowRange: outSeg.RowRange})
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func columnTypes(cols []segment.Column) []segment.Type {
	out := make([]segment.Type, len(cols))
	for i, c := range cols {
		out[i] = c.Type()
	}
	return out
}

func (c *Aggregation) Info() Info {
	cols := []string{c.GroupColumn}
	for _, a := range c.Aggregators {
		cols = append(cols, a.InputColumn)
	}
	return Info{RequiredColumns: cols, Structuring: StructureAll, ModifiesRowCount: true}
}

// ModifySchema keeps the grouping column and replaces/appends aggregator
// output columns with their inferred types.
func (c *Aggregation) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) {
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
