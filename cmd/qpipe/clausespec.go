package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/colstream/qpipe/pkg/clause"
	"github.com/colstream/qpipe/pkg/expr"
	"github.com/colstream/qpipe/pkg/segment"
)

// clauseSpec is the JSON shape of one entry in a clause-spec file: "type"
// selects the clause, the remaining fields are interpreted per type.
// Multi-input clauses (Merge, Concat) aren't representable here, since
// the driver's Run only threads a single chain of entity groups through
// StructureForEntities; wiring a second input stream needs its own entry
// point, not yet built.
type clauseSpec struct {
	Type string `json:"type"`

	// rowrange_head / rowrange_tail
	N int64 `json:"n"`
	// rowrange_range / daterange
	Start int64 `json:"start"`
	End   int64 `json:"end"`

	// filter
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  json.RawMessage `json:"value"`

	// daterange / resample
	TimeColumn string `json:"time_column"`

	// partition
	GroupColumn string `json:"group_column"`
	NumBuckets  int    `json:"num_buckets"`

	// aggregation
	Aggregators []aggregatorSpec `json:"aggregators"`

	// resample
	Rule   string `json:"rule"`
	Closed string `json:"closed"` // "left" (default) or "right"

	// sort
	SortColumn string `json:"sort_column"`

	// columnstats
	Columns []string `json:"columns"`

	// split
	Rows int64 `json:"rows"`
}

type aggregatorSpec struct {
	Kind         string `json:"kind"`
	InputColumn  string `json:"input_column"`
	OutputColumn string `json:"output_column"`
}

var aggregatorKinds = map[string]clause.AggregatorKind{
	"sum":   clause.AggSum,
	"min":   clause.AggMin,
	"max":   clause.AggMax,
	"mean":  clause.AggMean,
	"count": clause.AggCount,
	"first": clause.AggFirst,
	"last":  clause.AggLast,
	"set":   clause.AggSet,
}

var binaryOps = map[string]expr.BinaryOp{
	"eq": expr.OpEq,
	"ne": expr.OpNe,
	"lt": expr.OpLt,
	"le": expr.OpLe,
	"gt": expr.OpGt,
	"ge": expr.OpGe,
}

// loadClauseSpecs reads a JSON array of clauseSpec entries and builds the
// concrete clause.Clause chain the driver runs.
func loadClauseSpecs(path string) ([]clause.Clause, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("qpipe: read clause spec %s: %w", path, err)
	}
	var specs []clauseSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("qpipe: parse clause spec %s: %w", path, err)
	}
	clauses := make([]clause.Clause, 0, len(specs))
	for i, s := range specs {
		c, err := buildClause(s)
		if err != nil {
			return nil, fmt.Errorf("qpipe: clause %d (%s): %w", i, s.Type, err)
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func buildClause(s clauseSpec) (clause.Clause, error) {
	switch s.Type {
	case "passthrough":
		return clause.NewPassthrough(), nil
	case "rowrange_head":
		return clause.NewRowRangeHead(s.N), nil
	case "rowrange_tail":
		return clause.NewRowRangeTail(s.N), nil
	case "rowrange_range":
		return clause.NewRowRangeRange(s.Start, s.End), nil
	case "daterange":
		if s.TimeColumn == "" {
			return nil, fmt.Errorf("time_column is required")
		}
		return clause.NewDateRange(s.TimeColumn, s.Start, s.End), nil
	case "sort":
		if s.SortColumn == "" {
			return nil, fmt.Errorf("sort_column is required")
		}
		return clause.NewSort(s.SortColumn), nil
	case "columnstats":
		return clause.NewColumnStats(s.Columns), nil
	case "removecolumnpartitioning":
		return clause.NewRemoveColumnPartitioning(), nil
	case "split":
		return clause.NewSplit(s.Rows), nil
	case "filter":
		return buildFilter(s)
	case "partition":
		if s.GroupColumn == "" || s.NumBuckets <= 0 {
			return nil, fmt.Errorf("group_column and a positive num_buckets are required")
		}
		return clause.NewPartition(s.GroupColumn, s.NumBuckets), nil
	case "aggregation":
		if s.GroupColumn == "" {
			return nil, fmt.Errorf("group_column is required")
		}
		aggs, err := buildAggregators(s.Aggregators)
		if err != nil {
			return nil, err
		}
		return clause.NewAggregation(s.GroupColumn, aggs), nil
	case "resample":
		if s.TimeColumn == "" || s.Rule == "" {
			return nil, fmt.Errorf("time_column and rule are required")
		}
		aggs, err := buildAggregators(s.Aggregators)
		if err != nil {
			return nil, err
		}
		r := clause.NewResample(s.TimeColumn, s.Rule, TimeBucketGenerator, aggs)
		if s.Closed == "right" {
			r.ClosedBoundary = clause.ClosedRight
			r.LabelBoundary = clause.LabelRight
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unrecognized clause type %q", s.Type)
	}
}

func buildAggregators(specs []aggregatorSpec) ([]clause.NamedAggregator, error) {
	out := make([]clause.NamedAggregator, 0, len(specs))
	for _, a := range specs {
		kind, ok := aggregatorKinds[a.Kind]
		if !ok {
			return nil, fmt.Errorf("unrecognized aggregator kind %q", a.Kind)
		}
		out = append(out, clause.NamedAggregator{Kind: kind, InputColumn: a.InputColumn, OutputColumn: a.OutputColumn})
	}
	return out, nil
}

// buildFilter supports exactly one comparison: column OP literal. Richer
// expression trees (boolean combinators, arithmetic, Project) aren't
// representable in the clause-spec JSON format; callers needing those
// build an *expr.ExpressionContext programmatically and pass a Filter or
// Project into the clause chain directly instead of through this CLI.
func buildFilter(s clauseSpec) (clause.Clause, error) {
	if s.Column == "" {
		return nil, fmt.Errorf("column is required")
	}
	op, ok := binaryOps[s.Op]
	if !ok {
		return nil, fmt.Errorf("unrecognized comparison op %q", s.Op)
	}
	value, err := decodeValue(s.Value)
	if err != nil {
		return nil, err
	}
	nodes := []expr.Node{
		{Kind: expr.KindColumn, ColumnName: s.Column},
		{Kind: expr.KindValue, Value: value},
		{Kind: expr.KindBinary, BinaryOp: op, Left: 0, Right: 1},
	}
	ctx := expr.NewContext(nodes, 2, expr.RootBitset)
	return clause.NewFilter(ctx), nil
}

func decodeValue(raw json.RawMessage) (expr.Value, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return expr.Value{}, fmt.Errorf("decode filter value: %w", err)
	}
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return expr.Value{Type: segment.TypeInt64, Int: int64(t)}, nil
		}
		return expr.Value{Type: segment.TypeFloat64, Float: t}, nil
	case string:
		return expr.Value{Type: segment.TypeString, Str: t}, nil
	case bool:
		return expr.Value{Type: segment.TypeBool, Bool: t}, nil
	default:
		return expr.Value{}, fmt.Errorf("unsupported filter value type %T", v)
	}
}
