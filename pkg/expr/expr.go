// Package expr implements the expression evaluator shared by FilterClause
// and ProjectClause: a directed acyclic graph of expression nodes,
// addressed by index into a flat arena rather than as a pointer graph, so
// the whole context can be copied and handed to worker goroutines without
// chasing pointers.
package expr

import (
	"github.com/colstream/qpipe/pkg/segment"
)

// NodeKind is the tag of one expression node.
type NodeKind int

const (
	KindColumn NodeKind = iota
	KindValue
	KindUnary
	KindBinary
	KindTernary
	KindIsIn
	KindIsNull
)

// UnaryOp is an operator taking one operand.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

// BinaryOp is an operator taking two operands.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

func (op BinaryOp) isComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

func (op BinaryOp) isBoolean() bool {
	return op == OpAnd || op == OpOr
}

// Value is a literal scalar, tagged by which field is meaningful.
type Value struct {
	Type    segment.Type
	Int     int64
	Float   float64
	Str     string
	Bool    bool
	IsNull  bool
}

// Node is one entry in an ExpressionContext's node arena.
type Node struct {
	Kind NodeKind

	// KindColumn
	ColumnName string

	// KindValue
	Value Value

	// KindUnary
	UnaryOp   UnaryOp
	Operand   int

	// KindBinary
	BinaryOp BinaryOp
	Left     int
	Right    int

	// KindTernary: Cond ? Then : Else
	Cond int
	Then int
	Else int

	// KindIsIn
	Haystack int
	Set      []Value

	// KindIsNull
	Target int
}

// RootKind constrains what the root node of an ExpressionContext must
// evaluate to.
type RootKind int

const (
	RootBitset RootKind = iota // FilterClause
	RootColumn                 // ProjectClause
)

// ExpressionContext is the DAG: a flat node arena, the index of the root
// node, the kind the root must evaluate to, and the set of column names
// it reaches (computed once, used for column-pruning reads).
type ExpressionContext struct {
	Nodes        []Node
	RootNode     int
	RootKind     RootKind
	InputColumns []string
}

// NewContext builds an ExpressionContext from a node list, computing the
// reachable column set from RootNode.
func NewContext(nodes []Node, root int, kind RootKind) *ExpressionContext {
	ctx := &ExpressionContext{Nodes: nodes, RootNode: root, RootKind: kind}
	ctx.InputColumns = ctx.collectColumns(root, nil, map[int]bool{})
	return ctx
}

func (ctx *ExpressionContext) collectColumns(idx int, acc []string, seen map[int]bool) []string {
	if seen[idx] {
		return acc
	}
	seen[idx] = true
	n := ctx.Nodes[idx]
	switch n.Kind {
	case KindColumn:
		acc = append(acc, n.ColumnName)
	case KindValue:
	case KindUnary:
		acc = ctx.collectColumns(n.Operand, acc, seen)
	case KindBinary:
		acc = ctx.collectColumns(n.Left, acc, seen)
		acc = ctx.collectColumns(n.Right, acc, seen)
	case KindTernary:
		acc = ctx.collectColumns(n.Cond, acc, seen)
		acc = ctx.collectColumns(n.Then, acc, seen)
		acc = ctx.collectColumns(n.Else, acc, seen)
	case KindIsIn:
		acc = ctx.collectColumns(n.Haystack, acc, seen)
	case KindIsNull:
		acc = ctx.collectColumns(n.Target, acc, seen)
	}
	return acc
}

// ColumnSource resolves a named column for the expression evaluator. The
// clause supplies this from its ProcessingUnit's combined column view.
type ColumnSource interface {
	Column(name string) (segment.Column, bool)
	NumRows() int
}

// Degrade controls how a missing column reference is handled.
type Degrade int

const (
	// DegradeError raises MissingColumn.
	DegradeError Degrade = iota
	// DegradeToAllMissing returns an all-null column of InferredType,
	// the dynamic_schema behavior.
	DegradeToAllMissing
)

// EvalOptions configures one Evaluate call.
type EvalOptions struct {
	Degrade       Degrade
	InferredTypes map[string]segment.Type // used only under DegradeToAllMissing
}
