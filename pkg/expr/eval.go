package expr

import (
	"math"

	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

// result is the post-order evaluator's per-node value: exactly one of
// bitset, column or scalar is set, since every node produces a bitset, a
// typed column or a literal value, never more than one. A scalar is
// broadcast across rows only by the operator that consumes it.
type result struct {
	bitset *segment.Bitset
	column segment.Column
	scalar *Value
}

// Evaluate walks ctx's DAG post-order from RootNode and returns the root's
// result, type-checked against ctx.RootKind.
func Evaluate(ctx *ExpressionContext, src ColumnSource, opts EvalOptions) (*result, error) {
	memo := make(map[int]*result, len(ctx.Nodes))
	res, err := evalNode(ctx, ctx.RootNode, src, opts, memo)
	if err != nil {
		return nil, err
	}
	switch ctx.RootKind {
	case RootBitset:
		if res.bitset == nil {
			return nil, qerrors.New(qerrors.TypeInvalidUserArgument, "expr: filter root must evaluate to a bitset")
		}
	case RootColumn:
		if res.column == nil && res.scalar == nil {
			return nil, qerrors.New(qerrors.TypeInvalidUserArgument, "expr: project root must evaluate to a column or value")
		}
	}
	return res, nil
}

// EvalBitset is the FilterClause entry point.
func EvalBitset(ctx *ExpressionContext, src ColumnSource, opts EvalOptions) (*segment.Bitset, error) {
	res, err := Evaluate(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	return res.bitset, nil
}

// EvalColumn is the ProjectClause entry point; a scalar result is
// broadcast to src.NumRows() rows.
func EvalColumn(ctx *ExpressionContext, src ColumnSource, opts EvalOptions) (segment.Column, error) {
	res, err := Evaluate(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if res.column != nil {
		return res.column, nil
	}
	return broadcast(*res.scalar, src.NumRows()), nil
}

func evalNode(ctx *ExpressionContext, idx int, src ColumnSource, opts EvalOptions, memo map[int]*result) (*result, error) {
	if r, ok := memo[idx]; ok {
		return r, nil
	}
	n := ctx.Nodes[idx]
	var out *result
	var err error
	switch n.Kind {
	case KindColumn:
		out, err = evalColumnRef(n, src, opts)
	case KindValue:
		out = &result{scalar: &n.Value}
	case KindUnary:
		out, err = evalUnary(ctx, n, src, opts, memo)
	case KindBinary:
		out, err = evalBinary(ctx, n, src, opts, memo)
	case KindTernary:
		out, err = evalTernary(ctx, n, src, opts, memo)
	case KindIsIn:
		out, err = evalIsIn(ctx, n, src, opts, memo)
	case KindIsNull:
		out, err = evalIsNull(ctx, n, src, opts, memo)
	default:
		err = qerrors.Newf(qerrors.TypeAssertionFailure, "expr: unknown node kind %d", n.Kind)
	}
	if err != nil {
		return nil, err
	}
	memo[idx] = out
	return out, nil
}

func evalColumnRef(n Node, src ColumnSource, opts EvalOptions) (*result, error) {
	col, ok := src.Column(n.ColumnName)
	if ok {
		return &result{column: col}, nil
	}
	if opts.Degrade == DegradeToAllMissing {
		t := opts.InferredTypes[n.ColumnName]
		return &result{column: segment.NewColumnLike(t, src.NumRows())}, nil
	}
	return nil, qerrors.Newf(qerrors.TypeMissingColumn, "expr: column %q not found", n.ColumnName)
}

func scalarToFloat(v Value) (float64, error) {
	switch v.Type {
	case segment.TypeInt64:
		return float64(v.Int), nil
	case segment.TypeFloat64:
		return v.Float, nil
	default:
		return 0, qerrors.Newf(qerrors.TypeInvalidUserArgument, "expr: value of type %s is not numeric", v.Type)
	}
}

func columnToFloat(c segment.Column) ([]float64, segment.NullMap, error) {
	n := c.Len()
	out := make([]float64, n)
	switch t := c.(type) {
	case *segment.Int64Column:
		for i := 0; i < n; i++ {
			out[i] = float64(t.At(i))
		}
		return out, t.Nulls, nil
	case *segment.Float64Column:
		copy(out, t.Values)
		return out, t.Nulls, nil
	default:
		return nil, nil, qerrors.Newf(qerrors.TypeInvalidUserArgument, "expr: column of type %s is not numeric", c.Type())
	}
}

func evalUnary(ctx *ExpressionContext, n Node, src ColumnSource, opts EvalOptions, memo map[int]*result) (*result, error) {
	operand, err := evalNode(ctx, n.Operand, src, opts, memo)
	if err != nil {
		return nil, err
	}
	switch n.UnaryOp {
	case OpNot:
		if operand.bitset == nil {
			return nil, qerrors.New(qerrors.TypeInvalidUserArgument, "expr: NOT requires a bitset operand")
		}
		out := segment.NewBitset(operand.bitset.Len())
		for i := 0; i < out.Len(); i++ {
			out.Set(i, !operand.bitset.Get(i))
		}
		return &result{bitset: out}, nil
	case OpNeg:
		if operand.scalar != nil {
			v, err := scalarToFloat(*operand.scalar)
			if err != nil {
				return nil, err
			}
			return &result{scalar: &Value{Type: segment.TypeFloat64, Float: -v}}, nil
		}
		vals, nulls, err := columnToFloat(operand.column)
		if err != nil {
			return nil, err
		}
		neg := make([]float64, len(vals))
		for i, v := range vals {
			neg[i] = -v
		}
		return &result{column: &segment.Float64Column{Values: neg, Nulls: nulls}}, nil
	default:
		return nil, qerrors.Newf(qerrors.TypeAssertionFailure, "expr: unknown unary op %d", n.UnaryOp)
	}
}

func evalBinary(ctx *ExpressionContext, n Node, src ColumnSource, opts EvalOptions, memo map[int]*result) (*result, error) {
	left, err := evalNode(ctx, n.Left, src, opts, memo)
	if err != nil {
		return nil, err
	}
	right, err := evalNode(ctx, n.Right, src, opts, memo)
	if err != nil {
		return nil, err
	}

	if n.BinaryOp.isBoolean() {
		return evalBooleanOp(n.BinaryOp, left, right, src.NumRows())
	}
	if n.BinaryOp.isComparison() {
		return evalComparison(n.BinaryOp, left, right, src.NumRows())
	}
	return evalArithmetic(n.BinaryOp, left, right, src.NumRows())
}

// evalBooleanOp implements three-valued AND/OR: missing treated as false
// for AND, true for OR. The evaluator always applies this simplification
// rather than propagating an explicit "unknown" tri-state, since no
// clause in this module observes the distinction
// between "false" and "missing-treated-as-false" once a bitset is
// produced. Missing cells are known only for BoolColumn operands (their
// null map); a comparison's bitset already holds false for missing rows.
func evalBooleanOp(op BinaryOp, left, right *result, n int) (*result, error) {
	lb, err := toBitset(left, n)
	if err != nil {
		return nil, err
	}
	rb, err := toBitset(right, n)
	if err != nil {
		return nil, err
	}
	var lp, rp segment.NullMap
	if bc, ok := left.column.(*segment.BoolColumn); ok {
		lp = bc.Nulls
	}
	if bc, ok := right.column.(*segment.BoolColumn); ok {
		rp = bc.Nulls
	}
	out := segment.NewBitset(n)
	for i := 0; i < n; i++ {
		var v bool
		if op == OpAnd {
			v = (lb.Get(i) && lp.Get(i)) && (rb.Get(i) && rp.Get(i))
		} else {
			v = (lb.Get(i) || !lp.Get(i)) || (rb.Get(i) || !rp.Get(i))
		}
		out.Set(i, v)
	}
	return &result{bitset: out}, nil
}

func toBitset(r *result, n int) (*segment.Bitset, error) {
	if r.bitset != nil {
		return r.bitset, nil
	}
	if r.scalar != nil && r.scalar.Type == segment.TypeBool {
		out := segment.NewBitset(n)
		for i := 0; i < n; i++ {
			out.Set(i, r.scalar.Bool)
		}
		return out, nil
	}
	if bc, ok := r.column.(*segment.BoolColumn); ok {
		return bc.Values, nil
	}
	return nil, qerrors.New(qerrors.TypeInvalidUserArgument, "expr: boolean operator requires a boolean operand")
}

// evalComparison produces a bitset; NaN compares false in every ordering
// comparison (<, <=, >, >=), while equality on floats stays bit-exact:
// Eq/Ne here defer to Go's native float equality, which already yields
// NaN != NaN = true, NaN == NaN = false.
func evalComparison(op BinaryOp, left, right *result, n int) (*result, error) {
	if isStringOperand(left) || isStringOperand(right) {
		return evalStringComparison(op, left, right, n)
	}
	lv, lnulls, err := asFloatSeries(left, n)
	if err != nil {
		return nil, err
	}
	rv, rnulls, err := asFloatSeries(right, n)
	if err != nil {
		return nil, err
	}
	out := segment.NewBitset(n)
	for i := 0; i < n; i++ {
		if !lnulls.Get(i) || !rnulls.Get(i) {
			out.Set(i, false)
			continue
		}
		a, b := lv[i], rv[i]
		out.Set(i, compareFloat(op, a, b))
	}
	return &result{bitset: out}, nil
}

func compareFloat(op BinaryOp, a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		if op == OpNe {
			return true
		}
		return false
	}
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

func isStringOperand(r *result) bool {
	if r.scalar != nil {
		return r.scalar.Type == segment.TypeString
	}
	if r.column != nil {
		return r.column.Type() == segment.TypeString
	}
	return false
}

func evalStringComparison(op BinaryOp, left, right *result, n int) (*result, error) {
	ls, lnulls, err := asStringSeries(left, n)
	if err != nil {
		return nil, err
	}
	rs, rnulls, err := asStringSeries(right, n)
	if err != nil {
		return nil, err
	}
	out := segment.NewBitset(n)
	for i := 0; i < n; i++ {
		if !lnulls.Get(i) || !rnulls.Get(i) {
			out.Set(i, false)
			continue
		}
		var v bool
		switch op {
		case OpEq:
			v = ls[i] == rs[i]
		case OpNe:
			v = ls[i] != rs[i]
		case OpLt:
			v = ls[i] < rs[i]
		case OpLe:
			v = ls[i] <= rs[i]
		case OpGt:
			v = ls[i] > rs[i]
		case OpGe:
			v = ls[i] >= rs[i]
		}
		out.Set(i, v)
	}
	return &result{bitset: out}, nil
}

func asStringSeries(r *result, n int) ([]string, segment.NullMap, error) {
	if r.scalar != nil {
		out := make([]string, n)
		for i := range out {
			out[i] = r.scalar.Str
		}
		return out, nil, nil
	}
	sc, ok := r.column.(*segment.StringColumn)
	if !ok {
		return nil, nil, qerrors.New(qerrors.TypeInvalidUserArgument, "expr: expected a string operand")
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sc.At(i)
	}
	return out, sc.Nulls, nil
}

func asFloatSeries(r *result, n int) ([]float64, segment.NullMap, error) {
	if r.scalar != nil {
		v, err := scalarToFloat(*r.scalar)
		if err != nil {
			return nil, nil, err
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out, nil, nil
	}
	return columnToFloat(r.column)
}

// evalArithmetic promotes operands to the wider numeric type (int/float
// mixing yields float), wrapping on signed-integer overflow by Go's
// native two's-complement semantics; no saturating-unsigned path is
// wired since Value/Int64Column are both signed throughout this module.
func evalArithmetic(op BinaryOp, left, right *result, n int) (*result, error) {
	leftIsInt := operandIsInt(left)
	rightIsInt := operandIsInt(right)

	if leftIsInt && rightIsInt {
		lv, lnulls, err := asIntSeries(left, n)
		if err != nil {
			return nil, err
		}
		rv, rnulls, err := asIntSeries(right, n)
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		nulls := mergeNulls(lnulls, rnulls, n)
		for i := 0; i < n; i++ {
			out[i] = applyIntOp(op, lv[i], rv[i])
		}
		return &result{column: &segment.Int64Column{Values: out, Nulls: nulls}}, nil
	}

	lv, lnulls, err := asFloatSeries(left, n)
	if err != nil {
		return nil, err
	}
	rv, rnulls, err := asFloatSeries(right, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	nulls := mergeNulls(lnulls, rnulls, n)
	for i := 0; i < n; i++ {
		out[i] = applyFloatOp(op, lv[i], rv[i])
	}
	return &result{column: &segment.Float64Column{Values: out, Nulls: nulls}}, nil
}

func operandIsInt(r *result) bool {
	if r.scalar != nil {
		return r.scalar.Type == segment.TypeInt64
	}
	if r.column != nil {
		return r.column.Type() == segment.TypeInt64
	}
	return false
}

func asIntSeries(r *result, n int) ([]int64, segment.NullMap, error) {
	if r.scalar != nil {
		out := make([]int64, n)
		for i := range out {
			out[i] = r.scalar.Int
		}
		return out, nil, nil
	}
	ic, ok := r.column.(*segment.Int64Column)
	if !ok {
		return nil, nil, qerrors.New(qerrors.TypeInvalidUserArgument, "expr: expected an int64 operand")
	}
	return ic.Values, ic.Nulls, nil
}

func applyIntOp(op BinaryOp, a, b int64) int64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

func applyFloatOp(op BinaryOp, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	default:
		return 0
	}
}

// mergeNulls produces the row-wise AND-presence of two null maps: a
// result cell is missing if either operand's cell is missing, so
// arithmetic on a missing cell always yields missing.
func mergeNulls(a, b segment.NullMap, n int) segment.NullMap {
	if a == nil && b == nil {
		return nil
	}
	out := segment.NewNullMap(n)
	for i := 0; i < n; i++ {
		out.Set(i, a.Get(i) && b.Get(i))
	}
	return out
}

func evalTernary(ctx *ExpressionContext, n Node, src ColumnSource, opts EvalOptions, memo map[int]*result) (*result, error) {
	cond, err := evalNode(ctx, n.Cond, src, opts, memo)
	if err != nil {
		return nil, err
	}
	then, err := evalNode(ctx, n.Then, src, opts, memo)
	if err != nil {
		return nil, err
	}
	els, err := evalNode(ctx, n.Else, src, opts, memo)
	if err != nil {
		return nil, err
	}
	rows := src.NumRows()
	cb, err := toBitset(cond, rows)
	if err != nil {
		return nil, err
	}
	thenCol := resultToColumn(then, rows)
	elseCol := resultToColumn(els, rows)
	return &result{column: selectColumn(cb, thenCol, elseCol)}, nil
}

func resultToColumn(r *result, n int) segment.Column {
	if r.column != nil {
		return r.column
	}
	return broadcast(*r.scalar, n)
}

func broadcast(v Value, n int) segment.Column {
	switch v.Type {
	case segment.TypeInt64:
		out := make([]int64, n)
		for i := range out {
			out[i] = v.Int
		}
		return segment.NewInt64Column(out)
	case segment.TypeFloat64:
		out := make([]float64, n)
		for i := range out {
			out[i] = v.Float
		}
		return segment.NewFloat64Column(out)
	case segment.TypeBool:
		out := make([]bool, n)
		for i := range out {
			out[i] = v.Bool
		}
		return segment.NewBoolColumn(out)
	case segment.TypeString:
		out := make([]string, n)
		for i := range out {
			out[i] = v.Str
		}
		return segment.NewStringColumn(out)
	default:
		return segment.NewColumnLike(v.Type, n)
	}
}

func selectColumn(cond *segment.Bitset, then, els segment.Column) segment.Column {
	n := cond.Len()
	switch then.(type) {
	case *segment.Int64Column:
		tc, ec := then.(*segment.Int64Column), els.(*segment.Int64Column)
		out := make([]int64, n)
		for i := 0; i < n; i++ {
			if cond.Get(i) {
				out[i] = tc.At(i)
			} else {
				out[i] = ec.At(i)
			}
		}
		return segment.NewInt64Column(out)
	case *segment.Float64Column:
		tc, ec := then.(*segment.Float64Column), els.(*segment.Float64Column)
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			if cond.Get(i) {
				out[i] = tc.At(i)
			} else {
				out[i] = ec.At(i)
			}
		}
		return segment.NewFloat64Column(out)
	case *segment.StringColumn:
		tc, ec := then.(*segment.StringColumn), els.(*segment.StringColumn)
		out := make([]string, n)
		for i := 0; i < n; i++ {
			if cond.Get(i) {
				out[i] = tc.At(i)
			} else {
				out[i] = ec.At(i)
			}
		}
		return segment.NewStringColumn(out)
	default:
		out := make([]bool, n)
		tc, ec := then.(*segment.BoolColumn), els.(*segment.BoolColumn)
		for i := 0; i < n; i++ {
			if cond.Get(i) {
				out[i] = tc.At(i)
			} else {
				out[i] = ec.At(i)
			}
		}
		return segment.NewBoolColumn(out)
	}
}

// evalIsIn uses a hash probe over Set, matching membership by value
// equality at the haystack column's declared type.
func evalIsIn(ctx *ExpressionContext, n Node, src ColumnSource, opts EvalOptions, memo map[int]*result) (*result, error) {
	hay, err := evalNode(ctx, n.Haystack, src, opts, memo)
	if err != nil {
		return nil, err
	}
	rows := src.NumRows()
	out := segment.NewBitset(rows)

	switch {
	case isStringOperand(hay):
		set := make(map[string]struct{}, len(n.Set))
		for _, v := range n.Set {
			set[v.Str] = struct{}{}
		}
		vals, nulls, err := asStringSeries(hay, rows)
		if err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			if !nulls.Get(i) {
				continue
			}
			_, ok := set[vals[i]]
			out.Set(i, ok)
		}
	case operandIsInt(hay):
		set := make(map[int64]struct{}, len(n.Set))
		for _, v := range n.Set {
			set[v.Int] = struct{}{}
		}
		vals, nulls, err := asIntSeries(hay, rows)
		if err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			if !nulls.Get(i) {
				continue
			}
			_, ok := set[vals[i]]
			out.Set(i, ok)
		}
	default:
		set := make(map[float64]struct{}, len(n.Set))
		for _, v := range n.Set {
			f, _ := scalarToFloat(v)
			set[f] = struct{}{}
		}
		vals, nulls, err := asFloatSeries(hay, rows)
		if err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			if !nulls.Get(i) {
				continue
			}
			_, ok := set[vals[i]]
			out.Set(i, ok)
		}
	}
	return &result{bitset: out}, nil
}

func evalIsNull(ctx *ExpressionContext, n Node, src ColumnSource, opts EvalOptions, memo map[int]*result) (*result, error) {
	target, err := evalNode(ctx, n.Target, src, opts, memo)
	if err != nil {
		return nil, err
	}
	rows := src.NumRows()
	out := segment.NewBitset(rows)
	if target.scalar != nil {
		for i := 0; i < rows; i++ {
			out.Set(i, target.scalar.IsNull)
		}
		return &result{bitset: out}, nil
	}
	for i := 0; i < rows; i++ {
		out.Set(i, target.column.IsNull(i))
	}
	return &result{bitset: out}, nil
}
