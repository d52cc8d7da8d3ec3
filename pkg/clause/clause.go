// Package clause implements the polymorphic clause contract and the
// concrete clause set the pipeline driver schedules: Passthrough, Filter,
// Project, Partition+Aggregation (GroupBy), Resample,
// RemoveColumnPartitioning, RowRange, DateRange, Sort, Split, ColumnStats,
// Merge, Concat.
//
// Every clause implements the same Go interface; there is no separate
// tagged-variant or vtable layer on top, since Go interfaces already give
// static dispatch per call site.
package clause

import (
	"context"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

// StructureRequirement declares how a clause wants its inputs batched
// before process() is invoked.
type StructureRequirement int

const (
	StructureRowSlice StructureRequirement = iota
	StructureTimeBucket
	StructureAll
	StructureMultiInput
)

// Info is a static descriptor of a clause, computed once after
// configuration.
type Info struct {
	// RequiredColumns is the input column set the clause reads; nil means
	// "all columns".
	RequiredColumns []string
	// SupportsColumnPruning reports whether the driver may narrow the
	// segment's column set to RequiredColumns before this clause runs.
	SupportsColumnPruning bool
	Structuring           StructureRequirement
	// ModifiesRowCount reports whether process() may change the number
	// of rows per input segment (true for Filter, RowRange, DateRange,
	// Split, Partition, Resample).
	ModifiesRowCount bool
}

// ProcessingConfig carries pipeline-global facts set once, after
// construction, before any process() call.
type ProcessingConfig struct {
	DynamicSchema  bool
	TotalRowCount  int64
	SymbolStartTS  int64
	SymbolEndTS    int64
}

// Clause is the capability set every concrete clause type implements.
type Clause interface {
	// StructureForPlan is invoked only when this clause is first in the
	// pipeline; it may reorder plan in place and returns a partition of
	// indexes, one group per ProcessingUnit to build. Clauses invalid as
	// first (Aggregation, Merge, Concat) return an AssertionFailure.
	StructureForPlan(plan []segment.RangesAndKey) ([][]int, error)
	// StructureForEntities regroups already-materialised entity bundles
	// per this clause's input structuring requirement.
	StructureForEntities(groups [][]entity.ID) ([][]entity.ID, error)
	// Process is the unit of work: reads the listed entities, publishes
	// new ones, returns their ids.
	Process(ctx context.Context, ids []entity.ID) ([]entity.ID, error)
	Info() Info
	SetProcessingConfig(cfg ProcessingConfig)
	SetComponentManager(mgr *entity.Manager)
	// ModifySchema is schema inference; pure.
	ModifySchema(in segment.OutputSchema) (segment.OutputSchema, error)
	// JoinSchemas is only meaningful for multi-input clauses (Concat); a
	// fatal call on single-input clauses.
	JoinSchemas(schemas []segment.OutputSchema) (segment.OutputSchema, error)
}

// base is embedded by every concrete clause to share the
// config/component-manager wiring boilerplate and the fatal default for
// JoinSchemas, since only Concat overrides it meaningfully.
type base struct {
	cfg ProcessingConfig
	mgr *entity.Manager
}

func (b *base) SetProcessingConfig(cfg ProcessingConfig) { b.cfg = cfg }
func (b *base) SetComponentManager(mgr *entity.Manager)  { b.mgr = mgr }

func (b *base) JoinSchemas(schemas []segment.OutputSchema) (segment.OutputSchema, error) {
	return segment.OutputSchema{}, errAssertion("join_schemas called on a single-input clause")
}
