package clause

import (
	"github.com/colstream/qpipe/pkg/segment"
)

// AggregatorKind names one of the fixed aggregation functions an
// Aggregation clause can apply to a group.
type AggregatorKind int

const (
	AggSum AggregatorKind = iota
	AggMin
	AggMax
	AggMean
	AggCount
	AggFirst
	AggLast
	AggSet
)

// NamedAggregator pairs one AggregatorKind with the input column it
// reads and the output column it writes, mirroring the original's
// NamedAggregator (aggregation_operator_/input_column_name_/
// output_column_name_).
type NamedAggregator struct {
	Kind         AggregatorKind
	InputColumn  string
	OutputColumn string
}

func (a NamedAggregator) outputType(inputType segment.Type) segment.Type {
	switch a.Kind {
	case AggCount:
		return segment.TypeInt64
	case AggMean:
		return segment.TypeFloat64
	case AggSet:
		return segment.TypeString
	default:
		return inputType
	}
}

// Aggregator is the GroupBy-side two-phase accumulator interface: hash-
// partitioned, order-agnostic combine, independent of Resample's sorted
// streaming aggregator below. The two are kept separate (rather than
// unified behind one interface) because their ordering guarantees differ:
// this one is associative+commutative across buckets; SortedAggregator is
// not.
type Aggregator interface {
	// Zero returns a fresh partial state.
	Zero() AggState
	// Accumulate folds one row (value at col[row], with its original
	// absolute row index origIdx for first/last tie-breaking) into state.
	Accumulate(state AggState, col segment.Column, row int, origIdx int64) AggState
	// Combine merges two partial states computed over disjoint row sets.
	Combine(a, b AggState) AggState
	// Finalize converts a partial state into one output column of length
	// n (n == number of distinct group keys the caller is finalizing in
	// one pass; GroupBy finalizes one group at a time, so n is always 1
	// here — Finalize still returns a Column for symmetry with the
	// column-oriented rest of the pipeline).
	Finalize(state AggState) segment.Column
}

// AggState is an opaque per-aggregator partial accumulator.
type AggState interface{}

type sumState struct {
	sum  float64
	comp float64 // Kahan compensation term
	isInt bool
	intSum int64
	any  bool
}

type sumAggregator struct{ floatInput bool }

func (a *sumAggregator) Zero() AggState { return &sumState{} }

func (a *sumAggregator) Accumulate(state AggState, col segment.Column, row int, _ int64) AggState {
	s := state.(*sumState)
	if col.IsNull(row) {
		return s
	}
	switch c := col.(type) {
	case *segment.Int64Column:
		s.intSum += c.At(row)
		s.isInt = true
	case *segment.Float64Column:
		kahanAdd(s, c.At(row))
	}
	s.any = true
	return s
}

// kahanAdd performs compensated summation, the standard correction for
// float accumulation error over long row runs.
func kahanAdd(s *sumState, v float64) {
	y := v - s.comp
	t := s.sum + y
	s.comp = (t - s.sum) - y
	s.sum = t
}

func (a *sumAggregator) Combine(x, y AggState) AggState {
	sx, sy := x.(*sumState), y.(*sumState)
	out := &sumState{isInt: sx.isInt || sy.isInt, any: sx.any || sy.any}
	out.intSum = sx.intSum + sy.intSum
	kahanAdd(out, sx.sum)
	kahanAdd(out, sy.sum)
	return out
}

func (a *sumAggregator) Finalize(state AggState) segment.Column {
	s := state.(*sumState)
	if s.isInt && s.sum == 0 {
		return segment.NewInt64Column([]int64{s.intSum})
	}
	return segment.NewFloat64Column([]float64{s.sum + float64(s.intSum)})
}

type minMaxState struct {
	set   bool
	f     float64
	i     int64
	isInt bool
}

type minMaxAggregator struct{ isMax bool }

func (a *minMaxAggregator) Zero() AggState { return &minMaxState{} }

func (a *minMaxAggregator) Accumulate(state AggState, col segment.Column, row int, _ int64) AggState {
	s := state.(*minMaxState)
	if col.IsNull(row) {
		return s
	}
	switch c := col.(type) {
	case *segment.Int64Column:
		v := c.At(row)
		if !s.set || (a.isMax && v > s.i) || (!a.isMax && v < s.i) {
			s.i, s.set, s.isInt = v, true, true
		}
	case *segment.Float64Column:
		v := c.At(row)
		if !s.set || (a.isMax && v > s.f) || (!a.isMax && v < s.f) {
			s.f, s.set = v, true
		}
	}
	return s
}

func (a *minMaxAggregator) Combine(x, y AggState) AggState {
	sx, sy := x.(*minMaxState), y.(*minMaxState)
	if !sx.set {
		return sy
	}
	if !sy.set {
		return sx
	}
	if sx.isInt {
		if (a.isMax && sy.i > sx.i) || (!a.isMax && sy.i < sx.i) {
			return sy
		}
		return sx
	}
	if (a.isMax && sy.f > sx.f) || (!a.isMax && sy.f < sx.f) {
		return sy
	}
	return sx
}

func (a *minMaxAggregator) Finalize(state AggState) segment.Column {
	s := state.(*minMaxState)
	if s.isInt {
		return segment.NewInt64Column([]int64{s.i})
	}
	return segment.NewFloat64Column([]float64{s.f})
}

type meanState struct {
	sumState
	count int64
}

type meanAggregator struct{}

func (a *meanAggregator) Zero() AggState { return &meanState{} }

func (a *meanAggregator) Accumulate(state AggState, col segment.Column, row int, _ int64) AggState {
	s := state.(*meanState)
	if col.IsNull(row) {
		return s
	}
	switch c := col.(type) {
	case *segment.Int64Column:
		kahanAdd(&s.sumState, float64(c.At(row)))
	case *segment.Float64Column:
		kahanAdd(&s.sumState, c.At(row))
	}
	s.count++
	return s
}

func (a *meanAggregator) Combine(x, y AggState) AggState {
	sx, sy := x.(*meanState), y.(*meanState)
	out := &meanState{count: sx.count + sy.count}
	kahanAdd(&out.sumState, sx.sum)
	kahanAdd(&out.sumState, sy.sum)
	return out
}

func (a *meanAggregator) Finalize(state AggState) segment.Column {
	s := state.(*meanState)
	if s.count == 0 {
		return segment.NewFloat64Column([]float64{0})
	}
	return segment.NewFloat64Column([]float64{s.sum / float64(s.count)})
}

type countState struct{ count int64 }

type countAggregator struct{}

func (a *countAggregator) Zero() AggState { return &countState{} }

func (a *countAggregator) Accumulate(state AggState, col segment.Column, row int, _ int64) AggState {
	s := state.(*countState)
	if !col.IsNull(row) {
		s.count++
	}
	return s
}

func (a *countAggregator) Combine(x, y AggState) AggState {
	return &countState{count: x.(*countState).count + y.(*countState).count}
}

func (a *countAggregator) Finalize(state AggState) segment.Column {
	return segment.NewInt64Column([]int64{state.(*countState).count})
}

// firstLastState keeps the value at the extreme (minimal for First,
// maximal for Last) original row index seen, giving a deterministic
// tie-break once grouping has reshuffled rows.
type firstLastState struct {
	set     bool
	origIdx int64
	value   result1
}

type result1 struct {
	i     int64
	f     float64
	s     string
	isStr bool
	isInt bool
}

type firstLastAggregator struct{ isLast bool }

func (a *firstLastAggregator) Zero() AggState { return &firstLastState{} }

func (a *firstLastAggregator) Accumulate(state AggState, col segment.Column, row int, origIdx int64) AggState {
	s := state.(*firstLastState)
	if col.IsNull(row) {
		return s
	}
	better := !s.set || (a.isLast && origIdx > s.origIdx) || (!a.isLast && origIdx < s.origIdx)
	if !better {
		return s
	}
	s.set = true
	s.origIdx = origIdx
	switch c := col.(type) {
	case *segment.Int64Column:
		s.value = result1{i: c.At(row), isInt: true}
	case *segment.Float64Column:
		s.value = result1{f: c.At(row)}
	case *segment.StringColumn:
		s.value = result1{s: c.At(row), isStr: true}
	}
	return s
}

func (a *firstLastAggregator) Combine(x, y AggState) AggState {
	sx, sy := x.(*firstLastState), y.(*firstLastState)
	if !sx.set {
		return sy
	}
	if !sy.set {
		return sx
	}
	if (a.isLast && sy.origIdx > sx.origIdx) || (!a.isLast && sy.origIdx < sx.origIdx) {
		return sy
	}
	return sx
}

func (a *firstLastAggregator) Finalize(state AggState) segment.Column {
	s := state.(*firstLastState)
	switch {
	case s.value.isStr:
		return segment.NewStringColumn([]string{s.value.s})
	case s.value.isInt:
		return segment.NewInt64Column([]int64{s.value.i})
	default:
		return segment.NewFloat64Column([]float64{s.value.f})
	}
}

type setState struct {
	seen map[string]struct{}
}

type setAggregator struct{}

func (a *setAggregator) Zero() AggState { return &setState{seen: map[string]struct{}{}} }

func (a *setAggregator) Accumulate(state AggState, col segment.Column, row int, _ int64) AggState {
	s := state.(*setState)
	if col.IsNull(row) {
		return s
	}
	s.seen[stringify(col, row)] = struct{}{}
	return s
}

func (a *setAggregator) Combine(x, y AggState) AggState {
	sx, sy := x.(*setState), y.(*setState)
	for k := range sy.seen {
		sx.seen[k] = struct{}{}
	}
	return sx
}

func (a *setAggregator) Finalize(state AggState) segment.Column {
	s := state.(*setState)
	vals := make([]string, 0, len(s.seen))
	for k := range s.seen {
		vals = append(vals, k)
	}
	return segment.NewStringColumn([]string{joinSet(vals)})
}

func joinSet(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

func stringify(col segment.Column, row int) string {
	switch c := col.(type) {
	case *segment.Int64Column:
		return int64ToString(c.At(row))
	case *segment.Float64Column:
		return float64ToString(c.At(row))
	case *segment.StringColumn:
		return c.At(row)
	default:
		return ""
	}
}

func newAggregator(kind AggregatorKind) Aggregator {
	switch kind {
	case AggSum:
		return &sumAggregator{}
	case AggMin:
		return &minMaxAggregator{isMax: false}
	case AggMax:
		return &minMaxAggregator{isMax: true}
	case AggMean:
		return &meanAggregator{}
	case AggCount:
		return &countAggregator{}
	case AggFirst:
		return &firstLastAggregator{isLast: false}
	case AggLast:
		return &firstLastAggregator{isLast: true}
	case AggSet:
		return &setAggregator{}
	default:
		return &countAggregator{}
	}
}
