package executor

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// evalContext carries the executor/database pair needed to materialize a
// subquery expression (EXISTS/IN/ANY/ALL/scalar subquery, spec §4.2) while
// evaluating a scalar expression tree. Subqueries are evaluated
// uncorrelated: each one is planned and run against its own empty outer
// row, so a subquery that references a column from the enclosing query
// fails with ColumnMissing rather than silently mis-evaluating.
type evalContext struct {
	ex *Executor
	db string
}

// evalScalar evaluates a scalar expression against a flattened row (bare
// column names plus "alias.column" qualified names, spec §9's row-merging
// note for joins). Aggregate/window FuncCalls are rejected here; they are
// resolved by aggregate.go/window.go before projection runs.
func evalScalar(ctx *evalContext, e ast.Expr, row types.Row) (types.Value, error) {
	switch x := e.(type) {
	case ast.Literal:
		return literalValue(x), nil
	case ast.ColumnRef:
		return lookupColumn(row, x)
	case ast.UnaryExpr:
		return evalUnary(ctx, x, row)
	case ast.BinaryExpr:
		return evalBinary(ctx, x, row)
	case ast.IsNullExpr:
		v, err := evalScalar(ctx, x.Operand, row)
		if err != nil {
			return types.Value{}, err
		}
		result := v.IsNull()
		if x.Not {
			result = !result
		}
		return types.Bool(result), nil
	case ast.InExpr:
		return evalIn(ctx, x, row)
	case ast.BetweenExpr:
		return evalBetween(ctx, x, row)
	case ast.LikeExpr:
		return evalLike(ctx, x, row)
	case ast.ExistsExpr:
		return evalExists(ctx, x)
	case ast.QuantifiedExpr:
		return evalQuantified(ctx, x, row)
	case ast.ScalarSubquery:
		return evalScalarSubquery(ctx, x)
	case ast.CaseExpr:
		return evalCase(ctx, x, row)
	case ast.FuncCall:
		return evalScalarFunc(ctx, x, row)
	default:
		return types.Value{}, dberrors.New(dberrors.Internal, "expression %T cannot be evaluated", e)
	}
}

func literalValue(lit ast.Literal) types.Value {
	if lit.IsNil {
		return types.Null()
	}
	switch lit.Kind {
	case ast.LitString:
		return types.Str(lit.Text)
	case ast.LitNumber:
		return types.Decimal(lit.Text)
	case ast.LitBool:
		return types.Bool(lit.Text == "TRUE" || lit.Text == "true" || lit.Text == "1")
	default:
		return types.Null()
	}
}

func lookupColumn(row types.Row, ref ast.ColumnRef) (types.Value, error) {
	if ref.Table != "" {
		if v, ok := row[ref.Table+"."+ref.Column]; ok {
			return v, nil
		}
	}
	if v, ok := row[ref.Column]; ok {
		return v, nil
	}
	return types.Value{}, dberrors.New(dberrors.ColumnMissing, "column %q does not exist", qualifiedName(ref))
}

func qualifiedName(ref ast.ColumnRef) string {
	if ref.Table == "" {
		return ref.Column
	}
	return ref.Table + "." + ref.Column
}

func evalUnary(ctx *evalContext, x ast.UnaryExpr, row types.Row) (types.Value, error) {
	v, err := evalScalar(ctx, x.Operand, row)
	if err != nil {
		return types.Value{}, err
	}
	switch x.Op {
	case "NOT":
		if v.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(!truthy(v)), nil
	case "-":
		if v.IsNull() {
			return types.Null(), nil
		}
		f, ok := v.AsFloat()
		if !ok {
			return types.Value{}, dberrors.New(dberrors.TypeMismatch, "cannot negate non-numeric value")
		}
		return types.Float(-f), nil
	default:
		return types.Value{}, dberrors.New(dberrors.Internal, "unsupported unary operator %q", x.Op)
	}
}

// truthy treats a non-null Bool/numeric value as C-style truthiness for
// boolean contexts, matching the three-valued logic spec §4.7 describes
// (NULL stays NULL, everything else collapses to a definite true/false).
func truthy(v types.Value) bool {
	if v.Kind == types.KindBool {
		return v.Bool
	}
	f, ok := v.AsFloat()
	return ok && f != 0
}

func evalBinary(ctx *evalContext, x ast.BinaryExpr, row types.Row) (types.Value, error) {
	switch x.Op {
	case "AND":
		return evalAnd(ctx, x, row)
	case "OR":
		return evalOr(ctx, x, row)
	}

	l, err := evalScalar(ctx, x.Left, row)
	if err != nil {
		return types.Value{}, err
	}
	r, err := evalScalar(ctx, x.Right, row)
	if err != nil {
		return types.Value{}, err
	}

	switch x.Op {
	case "=", "!=", "<>", "<", ">", "<=", ">=":
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(compareOp(x.Op, types.Compare(l, r))), nil
	case "+", "-", "*", "/", "%":
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		return evalArith(x.Op, l, r)
	default:
		return types.Value{}, dberrors.New(dberrors.Internal, "unsupported binary operator %q", x.Op)
	}
}

// compareOp applies a comparison operator to the sign of a types.Compare
// result; shared by evalBinary, combineBinary, and evalQuantified's
// per-candidate comparisons so the operator table only lives in one place.
func compareOp(op string, c int) bool {
	switch op {
	case "=":
		return c == 0
	case "!=", "<>":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

// evalAnd/evalOr implement SQL three-valued logic (spec §4.7): a NULL
// operand only determines the result when the other side can't short
// circuit it (FALSE AND NULL = FALSE, TRUE OR NULL = TRUE, else NULL).
func evalAnd(ctx *evalContext, x ast.BinaryExpr, row types.Row) (types.Value, error) {
	l, err := evalScalar(ctx, x.Left, row)
	if err != nil {
		return types.Value{}, err
	}
	if !l.IsNull() && !truthy(l) {
		return types.Bool(false), nil
	}
	r, err := evalScalar(ctx, x.Right, row)
	if err != nil {
		return types.Value{}, err
	}
	if !r.IsNull() && !truthy(r) {
		return types.Bool(false), nil
	}
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	return types.Bool(true), nil
}

func evalOr(ctx *evalContext, x ast.BinaryExpr, row types.Row) (types.Value, error) {
	l, err := evalScalar(ctx, x.Left, row)
	if err != nil {
		return types.Value{}, err
	}
	if !l.IsNull() && truthy(l) {
		return types.Bool(true), nil
	}
	r, err := evalScalar(ctx, x.Right, row)
	if err != nil {
		return types.Value{}, err
	}
	if !r.IsNull() && truthy(r) {
		return types.Bool(true), nil
	}
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	return types.Bool(false), nil
}

func evalArith(op string, l, r types.Value) (types.Value, error) {
	lf, lok := l.AsFloat()
	rf, rok := r.AsFloat()
	if !lok || !rok {
		return types.Value{}, dberrors.New(dberrors.TypeMismatch, "arithmetic requires numeric operands")
	}
	switch op {
	case "+":
		return types.Float(lf + rf), nil
	case "-":
		return types.Float(lf - rf), nil
	case "*":
		return types.Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return types.Null(), nil
		}
		return types.Float(lf / rf), nil
	case "%":
		if rf == 0 {
			return types.Null(), nil
		}
		return types.Float(float64(int64(lf) % int64(rf))), nil
	default:
		return types.Value{}, dberrors.New(dberrors.Internal, "unsupported arithmetic operator %q", op)
	}
}

// subqueryColumn runs sel (uncorrelated) and returns its single result
// column's values, erroring if it projects anything but exactly one column
// — the shape IN/ANY/ALL/scalar-subquery all require (spec §4.2).
func subqueryColumn(ctx *evalContext, sel *ast.Select) ([]types.Value, error) {
	rows, cols, err := ctx.ex.execSelect(ctx.db, sel)
	if err != nil {
		return nil, err
	}
	if len(cols) != 1 {
		return nil, dberrors.New(dberrors.TypeMismatch, "subquery must return exactly one column")
	}
	out := make([]types.Value, len(rows))
	for i, r := range rows {
		out[i] = r[cols[0]]
	}
	return out, nil
}

// evalIn implements x IN (a, b, ...) and x IN (SELECT ...); NULL is
// returned when the operand or any candidate is NULL and no exact match
// has already been found, matching spec §4.7's three-valued IN semantics.
func evalIn(ctx *evalContext, x ast.InExpr, row types.Row) (types.Value, error) {
	operand, err := evalScalar(ctx, x.Operand, row)
	if err != nil {
		return types.Value{}, err
	}
	if operand.IsNull() {
		return types.Null(), nil
	}

	var candidates []types.Value
	if x.SubSel != nil {
		candidates, err = subqueryColumn(ctx, x.SubSel)
		if err != nil {
			return types.Value{}, err
		}
	} else {
		candidates = make([]types.Value, len(x.List))
		for i, item := range x.List {
			v, err := evalScalar(ctx, item, row)
			if err != nil {
				return types.Value{}, err
			}
			candidates[i] = v
		}
	}

	sawNull := false
	for _, v := range candidates {
		if v.IsNull() {
			sawNull = true
			continue
		}
		if types.Equal(operand, v) {
			return types.Bool(!x.Not), nil
		}
	}
	if sawNull {
		return types.Null(), nil
	}
	return types.Bool(x.Not), nil
}

// evalExists implements EXISTS/NOT EXISTS (SELECT ...); unlike every other
// subquery form this never yields NULL (spec §4.2).
func evalExists(ctx *evalContext, x ast.ExistsExpr) (types.Value, error) {
	rows, _, err := ctx.ex.execSelect(ctx.db, x.SubSel)
	if err != nil {
		return types.Value{}, err
	}
	result := len(rows) > 0
	if x.Not {
		result = !result
	}
	return types.Bool(result), nil
}

// evalQuantified implements "operand op ANY|SOME|ALL (SELECT ...)" with
// standard SQL NULL propagation: ANY is true as soon as one candidate
// matches, else NULL if any comparison involved a NULL, else false. ALL is
// false as soon as one candidate fails to match (vacuously true over an
// empty set), else NULL if any comparison involved a NULL, else true.
func evalQuantified(ctx *evalContext, x ast.QuantifiedExpr, row types.Row) (types.Value, error) {
	operand, err := evalScalar(ctx, x.Operand, row)
	if err != nil {
		return types.Value{}, err
	}
	candidates, err := subqueryColumn(ctx, x.SubSel)
	if err != nil {
		return types.Value{}, err
	}

	all := strings.EqualFold(x.Kind, "ALL")
	sawNull := operand.IsNull()
	for _, v := range candidates {
		if v.IsNull() {
			sawNull = true
			continue
		}
		if operand.IsNull() {
			continue
		}
		match := compareOp(x.Op, types.Compare(operand, v))
		if all && !match {
			return types.Bool(false), nil
		}
		if !all && match {
			return types.Bool(true), nil
		}
	}
	if sawNull {
		return types.Null(), nil
	}
	return types.Bool(all), nil
}

// evalScalarSubquery implements a bare (SELECT ...) used where a single
// value is expected: zero rows yields NULL, more than one row is an error.
func evalScalarSubquery(ctx *evalContext, x ast.ScalarSubquery) (types.Value, error) {
	vals, err := subqueryColumn(ctx, x.SubSel)
	if err != nil {
		return types.Value{}, err
	}
	if len(vals) == 0 {
		return types.Null(), nil
	}
	if len(vals) > 1 {
		return types.Value{}, dberrors.New(dberrors.TypeMismatch, "subquery used as an expression returned more than one row")
	}
	return vals[0], nil
}

func evalBetween(ctx *evalContext, x ast.BetweenExpr, row types.Row) (types.Value, error) {
	v, err := evalScalar(ctx, x.Operand, row)
	if err != nil {
		return types.Value{}, err
	}
	lo, err := evalScalar(ctx, x.Lo, row)
	if err != nil {
		return types.Value{}, err
	}
	hi, err := evalScalar(ctx, x.Hi, row)
	if err != nil {
		return types.Value{}, err
	}
	if v.IsNull() || lo.IsNull() || hi.IsNull() {
		return types.Null(), nil
	}
	result := types.Compare(v, lo) >= 0 && types.Compare(v, hi) <= 0
	if x.Not {
		result = !result
	}
	return types.Bool(result), nil
}

// likePattern translates a SQL LIKE pattern (% and _, escaped ordinary
// regexp metacharacters) into an anchored, case-insensitive Go regexp.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

func evalLike(ctx *evalContext, x ast.LikeExpr, row types.Row) (types.Value, error) {
	v, err := evalScalar(ctx, x.Operand, row)
	if err != nil {
		return types.Value{}, err
	}
	p, err := evalScalar(ctx, x.Pattern, row)
	if err != nil {
		return types.Value{}, err
	}
	if v.IsNull() || p.IsNull() {
		return types.Null(), nil
	}
	var re *regexp.Regexp
	if x.Regexp {
		re, err = regexp.Compile("(?i)" + p.AsString())
		if err != nil {
			return types.Value{}, dberrors.New(dberrors.Syntax, "invalid regular expression: %s", err)
		}
	} else {
		re = likePattern(p.AsString())
	}
	result := re.MatchString(v.AsString())
	if x.Not {
		result = !result
	}
	return types.Bool(result), nil
}

func evalCase(ctx *evalContext, x ast.CaseExpr, row types.Row) (types.Value, error) {
	var operand types.Value
	var err error
	if x.Operand != nil {
		operand, err = evalScalar(ctx, x.Operand, row)
		if err != nil {
			return types.Value{}, err
		}
	}
	for _, w := range x.Whens {
		if x.Operand != nil {
			cv, err := evalScalar(ctx, w.Cond, row)
			if err != nil {
				return types.Value{}, err
			}
			if !operand.IsNull() && !cv.IsNull() && types.Equal(operand, cv) {
				return evalScalar(ctx, w.Then, row)
			}
			continue
		}
		cv, err := evalScalar(ctx, w.Cond, row)
		if err != nil {
			return types.Value{}, err
		}
		if !cv.IsNull() && truthy(cv) {
			return evalScalar(ctx, w.Then, row)
		}
	}
	if x.Else != nil {
		return evalScalar(ctx, x.Else, row)
	}
	return types.Null(), nil
}

// evalScalarFunc resolves the small set of scalar (non-aggregate) builtin
// functions spec §4.7 names for default-value and projection use.
func evalScalarFunc(ctx *evalContext, f ast.FuncCall, row types.Row) (types.Value, error) {
	args := make([]types.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := evalScalar(ctx, a, row)
		if err != nil {
			return types.Value{}, err
		}
		args[i] = v
	}
	switch strings.ToUpper(f.Name) {
	case "UUID":
		return types.Str(uuid.New().String()), nil
	case "NOW", "CURRENT_TIMESTAMP":
		return types.Str(currentTime().Format("2006-01-02 15:04:05")), nil
	case "COALESCE":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return types.Null(), nil
	case "UPPER":
		if len(args) != 1 || args[0].IsNull() {
			return types.Null(), nil
		}
		return types.Str(strings.ToUpper(args[0].AsString())), nil
	case "LOWER":
		if len(args) != 1 || args[0].IsNull() {
			return types.Null(), nil
		}
		return types.Str(strings.ToLower(args[0].AsString())), nil
	case "LENGTH":
		if len(args) != 1 || args[0].IsNull() {
			return types.Null(), nil
		}
		return types.Int(int64(len(args[0].AsString()))), nil
	case "CONCAT":
		var b strings.Builder
		for _, a := range args {
			if a.IsNull() {
				return types.Null(), nil
			}
			b.WriteString(a.AsString())
		}
		return types.Str(b.String()), nil
	case "ABS":
		if len(args) != 1 || args[0].IsNull() {
			return types.Null(), nil
		}
		v, _ := args[0].AsFloat()
		if v < 0 {
			v = -v
		}
		return types.Float(v), nil
	case "ROUND":
		if len(args) == 0 || args[0].IsNull() {
			return types.Null(), nil
		}
		v, _ := args[0].AsFloat()
		return types.Float(float64(int64(v + 0.5*sign(v)))), nil
	default:
		return types.Value{}, dberrors.New(dberrors.Internal, "unsupported function %s", f.Name)
	}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// currentTime is the executor's single clock access point so tests can
// reason about it without depending on wall-clock time elsewhere.
var currentTime = time.Now
