package executor

import (
	"sort"
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// containsAggregate reports whether e has a plain (non-windowed) aggregate
// call anywhere in its tree (spec §4.7's GROUP BY/aggregation stage).
func containsAggregate(e ast.Expr) bool {
	switch x := e.(type) {
	case ast.FuncCall:
		if x.Over == nil && ast.AggregateNames[strings.ToUpper(x.Name)] {
			return true
		}
		for _, a := range x.Args {
			if containsAggregate(a) {
				return true
			}
		}
		return false
	case ast.BinaryExpr:
		return containsAggregate(x.Left) || containsAggregate(x.Right)
	case ast.UnaryExpr:
		return containsAggregate(x.Operand)
	case ast.CaseExpr:
		if x.Operand != nil && containsAggregate(x.Operand) {
			return true
		}
		for _, w := range x.Whens {
			if containsAggregate(w.Cond) || containsAggregate(w.Then) {
				return true
			}
		}
		return x.Else != nil && containsAggregate(x.Else)
	default:
		return false
	}
}

// evalGroupExpr evaluates e over one group: subtrees containing an
// aggregate call are resolved against every row in the group, everything
// else is resolved against rep (the group's representative row, normally
// holding the GROUP BY column values).
func evalGroupExpr(ctx *evalContext, e ast.Expr, groupRows []types.Row, rep types.Row) (types.Value, error) {
	if !containsAggregate(e) {
		return evalScalar(ctx, e, rep)
	}
	switch x := e.(type) {
	case ast.FuncCall:
		if x.Over == nil && ast.AggregateNames[strings.ToUpper(x.Name)] {
			return computeAggregate(ctx, x, groupRows)
		}
		return evalScalar(ctx, e, rep)
	case ast.BinaryExpr:
		if x.Op == "AND" || x.Op == "OR" {
			l, err := evalGroupExpr(ctx, x.Left, groupRows, rep)
			if err != nil {
				return types.Value{}, err
			}
			r, err := evalGroupExpr(ctx, x.Right, groupRows, rep)
			if err != nil {
				return types.Value{}, err
			}
			return combineLogic(x.Op, l, r), nil
		}
		l, err := evalGroupExpr(ctx, x.Left, groupRows, rep)
		if err != nil {
			return types.Value{}, err
		}
		r, err := evalGroupExpr(ctx, x.Right, groupRows, rep)
		if err != nil {
			return types.Value{}, err
		}
		return combineBinary(x.Op, l, r)
	case ast.UnaryExpr:
		v, err := evalGroupExpr(ctx, x.Operand, groupRows, rep)
		if err != nil {
			return types.Value{}, err
		}
		return combineUnary(x.Op, v)
	case ast.CaseExpr:
		var operand types.Value
		var err error
		if x.Operand != nil {
			operand, err = evalGroupExpr(ctx, x.Operand, groupRows, rep)
			if err != nil {
				return types.Value{}, err
			}
		}
		for _, w := range x.Whens {
			cv, err := evalGroupExpr(ctx, w.Cond, groupRows, rep)
			if err != nil {
				return types.Value{}, err
			}
			matched := false
			if x.Operand != nil {
				matched = !operand.IsNull() && !cv.IsNull() && types.Equal(operand, cv)
			} else {
				matched = !cv.IsNull() && truthy(cv)
			}
			if matched {
				return evalGroupExpr(ctx, w.Then, groupRows, rep)
			}
		}
		if x.Else != nil {
			return evalGroupExpr(ctx, x.Else, groupRows, rep)
		}
		return types.Null(), nil
	default:
		return evalScalar(ctx, e, rep)
	}
}

func combineLogic(op string, l, r types.Value) types.Value {
	if op == "AND" {
		if !l.IsNull() && !truthy(l) {
			return types.Bool(false)
		}
		if !r.IsNull() && !truthy(r) {
			return types.Bool(false)
		}
		if l.IsNull() || r.IsNull() {
			return types.Null()
		}
		return types.Bool(true)
	}
	if !l.IsNull() && truthy(l) {
		return types.Bool(true)
	}
	if !r.IsNull() && truthy(r) {
		return types.Bool(true)
	}
	if l.IsNull() || r.IsNull() {
		return types.Null()
	}
	return types.Bool(false)
}

func combineBinary(op string, l, r types.Value) (types.Value, error) {
	switch op {
	case "=", "!=", "<>", "<", ">", "<=", ">=":
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(compareOp(op, types.Compare(l, r))), nil
	default:
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		return evalArith(op, l, r)
	}
}

func combineUnary(op string, v types.Value) (types.Value, error) {
	if op == "NOT" {
		if v.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(!truthy(v)), nil
	}
	if v.IsNull() {
		return types.Null(), nil
	}
	f, ok := v.AsFloat()
	if !ok {
		return types.Value{}, dberrors.New(dberrors.TypeMismatch, "cannot negate non-numeric value")
	}
	return types.Float(-f), nil
}

// computeAggregate evaluates one aggregate function over a group's rows
// (spec §4.7: COUNT/SUM/AVG/MIN/MAX/GROUP_CONCAT, with DISTINCT de-dup).
func computeAggregate(ctx *evalContext, f ast.FuncCall, rows []types.Row) (types.Value, error) {
	name := strings.ToUpper(f.Name)
	if name == "COUNT" && f.Star {
		return types.Int(int64(len(rows))), nil
	}

	var arg ast.Expr
	if len(f.Args) > 0 {
		arg = f.Args[0]
	}
	values := make([]types.Value, 0, len(rows))
	for _, row := range rows {
		var v types.Value
		var err error
		if arg == nil {
			v = types.Null()
		} else {
			v, err = evalScalar(ctx, arg, row)
			if err != nil {
				return types.Value{}, err
			}
		}
		values = append(values, v)
	}
	if f.Distinct {
		values = dedupValues(values)
	}

	switch name {
	case "COUNT":
		n := 0
		for _, v := range values {
			if !v.IsNull() {
				n++
			}
		}
		return types.Int(int64(n)), nil
	case "SUM":
		sum := 0.0
		any := false
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			fv, ok := v.AsFloat()
			if !ok {
				return types.Value{}, dberrors.New(dberrors.TypeMismatch, "SUM requires numeric values")
			}
			sum += fv
			any = true
		}
		if !any {
			return types.Null(), nil
		}
		return types.Float(sum), nil
	case "AVG":
		sum := 0.0
		n := 0
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			fv, ok := v.AsFloat()
			if !ok {
				return types.Value{}, dberrors.New(dberrors.TypeMismatch, "AVG requires numeric values")
			}
			sum += fv
			n++
		}
		if n == 0 {
			return types.Null(), nil
		}
		return types.Float(sum / float64(n)), nil
	case "MIN":
		return extreme(values, -1), nil
	case "MAX":
		return extreme(values, 1), nil
	case "GROUP_CONCAT":
		var parts []string
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			parts = append(parts, v.AsString())
		}
		if len(parts) == 0 {
			return types.Null(), nil
		}
		return types.Str(strings.Join(parts, ",")), nil
	default:
		return types.Value{}, dberrors.New(dberrors.Internal, "unsupported aggregate function %s", f.Name)
	}
}

func extreme(values []types.Value, want int) types.Value {
	var best types.Value
	found := false
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if !found {
			best = v
			found = true
			continue
		}
		c := types.Compare(v, best)
		if (want < 0 && c < 0) || (want > 0 && c > 0) {
			best = v
		}
	}
	if !found {
		return types.Null()
	}
	return best
}

func dedupValues(values []types.Value) []types.Value {
	sorted := append([]types.Value(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return types.Compare(sorted[i], sorted[j]) < 0 })
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || !types.Equal(sorted[i-1], v) {
			out = append(out, v)
		}
	}
	return out
}
