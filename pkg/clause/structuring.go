package clause

import (
	"sort"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// StructureByRowSlicePlan sorts plan lexicographically by
// (row_range.start, col_range.start), then partitions it so each group
// contains exactly the entries sharing one row-range — a horizontal slice
// across all column shards for the same rows.
func StructureByRowSlicePlan(plan []segment.RangesAndKey) [][]int {
	idx := make([]int, len(plan))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		pa, pb := plan[idx[a]], plan[idx[b]]
		if pa.Rows.Start != pb.Rows.Start {
			return pa.Rows.Start < pb.Rows.Start
		}
		return pa.Cols.Start < pb.Cols.Start
	})

	var groups [][]int
	var cur []int
	var curStart int64 = -1
	for _, i := range idx {
		rs := plan[i].Rows.Start
		if cur == nil || rs != curStart {
			if cur != nil {
				groups = append(groups, cur)
			}
			cur = nil
			curStart = rs
		}
		cur = append(cur, i)
	}
	if cur != nil {
		groups = append(groups, cur)
	}
	return groups
}

// StructureByRowSlicePlanFiltered is StructureByRowSlicePlan with a
// plan-level prune step: entries for which keep returns false are
// dropped before fetching, never materialised at all, instead of being
// fetched and only then filtered out at the row level in process().
// Returned indexes still refer to the original plan slice.
func StructureByRowSlicePlanFiltered(plan []segment.RangesAndKey, keep func(segment.RangesAndKey) bool) [][]int {
	var kept []segment.RangesAndKey
	var keptIdx []int
	for i, p := range plan {
		if keep(p) {
			kept = append(kept, p)
			keptIdx = append(keptIdx, i)
		}
	}
	groups := StructureByRowSlicePlan(kept)
	for _, g := range groups {
		for i, idx := range g {
			g[i] = keptIdx[idx]
		}
	}
	return groups
}

// bundleLookup looks up an entity's bundle in the component manager.
type bundleLookup interface {
	Get(id entity.ID) (*entity.Bundle, error)
}

// StructureByRowSliceEntities is the entity-level analogue: reads each
// id's row-range out of the component manager and regroups so that ids
// sharing a row-range end up together.
func StructureByRowSliceEntities(mgr bundleLookup, ids []entity.ID) ([]entity.ID, error) {
	// Returns a single flattened order sorted by row-range start;
	// GroupByRowSliceEntities is the variant that returns explicit groups.
	type keyed struct {
		id entity.ID
		rr segment.RowRange
	}
	keys := make([]keyed, len(ids))
	for i, id := range ids {
		b, err := mgr.Get(id)
		if err != nil {
			return nil, err
		}
		keys[i] = keyed{id: id, rr: b.RowRange}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].rr.Start < keys[b].rr.Start })
	out := make([]entity.ID, len(keys))
	for i, k := range keys {
		out[i] = k.id
	}
	return out, nil
}

// GroupByRowSliceEntities partitions ids into groups that share a
// row-range, used by clauses whose StructureForEntities requirement is
// StructureRowSlice.
func GroupByRowSliceEntities(mgr bundleLookup, groups [][]entity.ID) ([][]entity.ID, error) {
	var flat []entity.ID
	for _, g := range groups {
		flat = append(flat, g...)
	}
	type keyed struct {
		id entity.ID
		rr segment.RowRange
	}
	keys := make([]keyed, len(flat))
	for i, id := range flat {
		b, err := mgr.Get(id)
		if err != nil {
			return nil, err
		}
		keys[i] = keyed{id: id, rr: b.RowRange}
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].rr.Start != keys[b].rr.Start {
			return keys[a].rr.Start < keys[b].rr.Start
		}
		return false
	})
	var result [][]entity.ID
	var cur []entity.ID
	var curStart int64 = -1
	for _, k := range keys {
		if cur == nil || k.rr.Start != curStart {
			if cur != nil {
				result = append(result, cur)
			}
			cur = nil
			curStart = k.rr.Start
		}
		cur = append(cur, k.id)
	}
	if cur != nil {
		result = append(result, cur)
	}
	return result, nil
}

// TimeBucket is one [Start,End) bucket boundary produced by a
// BucketGenerator.
type TimeBucket struct {
	Start int64
	End   int64
}

// ClosedBoundary selects which edge of a [Start,End) bucket interval is
// treated as closed when testing row membership: LEFT means a row at
// exactly Start belongs to the bucket and a row at End does not (the
// TimeBucket's own [Start,End) shape); RIGHT flips that, so a row at
// Start belongs to the previous bucket and a row at End belongs to this
// one.
type ClosedBoundary int

const (
	ClosedLeft ClosedBoundary = iota
	ClosedRight
)

// BucketGenerator computes bucket boundaries for Resample, injected by
// the caller rather than computed by a calendar library inside this
// package, so the core stays agnostic to any particular calendar rule
// syntax. closed lets a generator align its leading/trailing bucket edges so
// that every row in [rangeStart,rangeEnd) still lands in exactly one
// bucket under the requested closedness.
type BucketGenerator func(rangeStart, rangeEnd int64, rule string, originOffset int64, closed ClosedBoundary) []TimeBucket

// TimestampLookup reports an entity's row-range time bounds, used by
// StructureByTimeBucket; the time column is whichever column the
// caller designates as the index (resolved by the Resample clause, not
// this primitive).
type TimestampLookup interface {
	TimeBounds(id entity.ID) (start, end int64, err error)
}

// StructureByTimeBucket partitions entities so each group contains every
// entity whose row-range's time index overlaps one bucket interval. An
// entity overlapping k buckets appears in k groups; the first bucket it
// overlaps (in bucket order) is marked as the one it "owns", returned as
// the second result. Resample (resample.go) does not use the owners; it
// keeps aggregation exactly-once by filtering rows to each bucket.
func StructureByTimeBucket(lookup TimestampLookup, buckets []TimeBucket, ids []entity.ID) ([][]entity.ID, []entity.ID, error) {
	groups := make([][]entity.ID, len(buckets))
	owners := make([]entity.ID, len(buckets))
	ownerSet := make([]bool, len(buckets))

	for _, id := range ids {
		start, end, err := lookup.TimeBounds(id)
		if err != nil {
			return nil, nil, err
		}
		firstOverlap := true
		for bi, bucket := range buckets {
			if start < bucket.End && bucket.Start < end {
				groups[bi] = append(groups[bi], id)
				if firstOverlap && !ownerSet[bi] {
					owners[bi] = id
					ownerSet[bi] = true
				}
				firstOverlap = false
			}
		}
	}
	return groups, owners, nil
}
