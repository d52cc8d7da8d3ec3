package clause

import "github.com/colstream/qpipe/pkg/segment"

// SortedAggregator is Resample's accumulator interface: order-dependent,
// streaming across bucket boundaries, as opposed to Aggregator's
// hash-bucketed, order-agnostic combine. The two are kept as separate
// interfaces because unifying them would blur that distinction — a
// SortedAggregator never needs Combine, since one bucket's rows are
// reduced in a single streaming pass rather than merged from independent
// partial computations.
type SortedAggregator interface {
	Zero() AggState
	Accumulate(state AggState, col segment.Column, row int) AggState
	Finalize(state AggState) segment.Column
}

// sortedAdapter lets the GroupBy Aggregator implementations serve as
// SortedAggregators too: every aggregator in the fixed vocabulary
// (sum/min/max/mean/count/first/last/set) happens to be order-independent
// once "first/last" is tie-broken by a monotonically increasing
// within-bucket counter rather than the original absolute row index, so
// no separate numeric implementation is needed.
type sortedAdapter struct {
	inner   Aggregator
	counter int64
}

func newSortedAggregator(kind AggregatorKind) SortedAggregator {
	return &sortedAdapter{inner: newAggregator(kind)}
}

func (a *sortedAdapter) Zero() AggState { return a.inner.Zero() }

func (a *sortedAdapter) Accumulate(state AggState, col segment.Column, row int) AggState {
	out := a.inner.Accumulate(state, col, row, a.counter)
	a.counter++
	return out
}

func (a *sortedAdapter) Finalize(state AggState) segment.Column { return a.inner.Finalize(state) }
