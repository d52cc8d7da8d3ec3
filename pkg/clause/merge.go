package clause

import (
	"container/heap"
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// Merge k-way merges already-sorted inputs on IndexColumn. Ties break by
// input-stream order (stable): when two rows compare equal, the row from
// the earlier-numbered input stream wins first. When DynamicSchema is on,
// columns missing from one input are filled with nulls in that input's
// rows; otherwise a schema mismatch across streams is fatal.
type Merge struct {
	base
	IndexColumn     string
	AddSymbolColumn bool
	StreamNames     []string // parallel to input stream index, used when AddSymbolColumn

	streamOf map[entity.ID]int
}

func NewMerge(indexColumn string, addSymbol bool, streamNames []string) *Merge {
	return &Merge{IndexColumn: indexColumn, AddSymbolColumn: addSymbol, StreamNames: streamNames}
}

func (c *Merge) StructureForPlan(plan []segment.RangesAndKey) ([][]int, error) {
	return nil, invalidAsFirst("MergeClause")
}

// StructureForEntities records which input stream each entity came from
// (its position in groups) and folds every stream into a single group so
// Process sees the whole merge in one call.
func (c *Merge) StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error) {
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

type mergeRow struct {
	stream int
	seg    int
	row    int
	ts     int64
	seq    int64
}

type mergeHeap []mergeRow

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].ts != h[j].ts {
		return h[i].ts < h[j].ts
	}
	if h[i].stream != h[j].stream {
		return h[i].stream < h[j].stream
	}
	return h[i].seq < h[j].seq
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeRow)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Process performs the k-way merge. Every distinct (stream) source
// segment contributes its rows in original order; the heap always emits
// the globally smallest (index, stream, original position) tuple next,
// giving stable stream-order tie-breaks per row.
func (c *Merge) Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	segs := make([]*segment.Segment, len(ids))
	streams := make([]int, len(ids))
	for i, id := range ids {
		b, err := c.mgr.Get(id)
		if err != nil {
			return nil, err
		}
		segs[i] = b.Segment
		streams[i] = c.streamOf[id]
	}

	unionSchema, err := c.unionDescriptor(segs)
	if err != nil {
		return nil, err
	}

	h := &mergeHeap{}
	heap.Init(h)
	var seq int64
	for si, s := range segs {
		tcol, ok := s.Column(c.IndexColumn).(*segment.TimestampColumn)
		if !ok {
			return nil, errInvalidArg("merge: index column not found: " + c.IndexColumn)
		}
		for row := 0; row < tcol.Len(); row++ {
			heap.Push(h, mergeRow{stream: streams[si], seg: si, row: row, ts: tcol.At(row), seq: seq})
			seq++
		}
	}

	names := unionSchema.Names
	if c.AddSymbolColumn {
		names = append(append([]string{}, names...), "symbol")
	}
	outCols := make([]builderColumn, len(names))
	for i, t := range appendSymbolType(unionSchema.Types, c.AddSymbolColumn) {
		outCols[i] = newBuilderColumn(t)
	}

	for h.Len() > 0 {
		mr := heap.Pop(h).(mergeRow)
		s := segs[mr.seg]
		for ci, name := range unionSchema.Names {
			col := s.Column(name)
			if col == nil {
				outCols[ci].appendNull()
				continue
			}
			outCols[ci].appendFrom(col, mr.row)
		}
		if c.AddSymbolColumn {
			symbol := ""
			if mr.stream < len(c.StreamNames) {
				symbol = c.StreamNames[mr.stream]
			}
			outCols[len(unionSchema.Names)].appendString(symbol)
		}
	}

	cols := make([]segment.Column, len(outCols))
	for i, b := range outCols {
		cols[i] = b.build()
	}
	out := &segment.Segment{
		Descriptor: segment.Descriptor{Names: names, Types: columnTypes(cols)},
		Columns:    cols,
		RowRange:   segment.RowRange{Start: 0, End: int64(cols[0].Len())},
	}
	id, err := c.mgr.Push(entity.Bundle{Segment: out, RowRange: out.RowRange})
	if err != nil {
		return nil, err
	}
	return []entity.ID{id}, nil
}

// unionDescriptor computes the column union across inputs, matching
// types where seen more than once. When DynamicSchema is off, any type
// mismatch on a shared column is fatal, and so is any input whose
// column set isn't exactly the union: a missing column silently
// null-filled is only acceptable once DynamicSchema opts into it.
func (c *Merge) unionDescriptor(segs []*segment.Segment) (segment.Descriptor, error) {
	var names []string
	types := make(map[string]segment.Type)
	seen := make(map[string]bool)
	for _, s := range segs {
		for i, name := range s.Descriptor.Names {
			t := s.Descriptor.Types[i]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
				types[name] = t
				continue
			}
			if types[name] != t && !c.cfg.DynamicSchema {
				return segment.Descriptor{}, errAssertion("merge: schema mismatch on column " + name)
			}
		}
	}
	if !c.cfg.DynamicSchema {
		for _, s := range segs {
			if len(s.Descriptor.Names) != len(names) {
				return segment.Descriptor{}, errAssertion("merge: schema mismatch, input column sets differ")
			}
			for _, name := range names {
				if s.Descriptor.IndexOf(name) < 0 {
					return segment.Descriptor{}, errAssertion("merge: schema mismatch, input missing column " + name)
				}
			}
		}
	}
	outTypes := make([]segment.Type, len(names))
	for i, n := range names {
		outTypes[i] = types[n]
	}
	return segment.Descriptor{Names: names, Types: outTypes}, nil
}

func appendSymbolType(types []segment.Type, addSymbol bool) []segment.Type {
	if !addSymbol {
		return types
	}
	return append(append([]segment.Type{}, types...), segment.TypeString)
}

func (c *Merge) Info() Info {
	return Info{RequiredColumns: []string{c.IndexColumn}, Structuring: StructureMultiInput, ModifiesRowCount: true}
}

func (c *Merge) ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error) { return in, nil }
