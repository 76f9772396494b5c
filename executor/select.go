package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// colInfo names one source column for "*"/"alias.*" expansion.
type colInfo struct {
	Qualifier string
	Column    string
}

func (c colInfo) qualifiedKey() string { return c.Qualifier + "." + c.Column }

// execSelect runs the full pipeline spec §4.7 describes: FROM resolution
// -> JOINs -> WHERE -> GROUP BY/aggregation -> HAVING -> window functions
// -> ORDER BY -> DISTINCT -> OFFSET/LIMIT -> projection -> set ops.
func (e *Executor) execSelect(db string, sel *ast.Select) ([]types.Row, []string, error) {
	ctx := &evalContext{ex: e, db: db}
	rows, infos, err := e.loadFrom(db, sel.From)
	if err != nil {
		return nil, nil, err
	}
	for _, j := range sel.Joins {
		rows, infos, err = e.joinStep(db, rows, infos, j)
		if err != nil {
			return nil, nil, err
		}
	}

	if sel.Where != nil {
		filtered := rows[:0:0]
		for _, r := range rows {
			v, err := evalScalar(ctx, sel.Where, r)
			if err != nil {
				return nil, nil, err
			}
			if !v.IsNull() && truthy(v) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	groups, err := groupRows(ctx, sel, rows)
	if err != nil {
		return nil, nil, err
	}

	if sel.Having != nil {
		var kept []rowGroup
		for _, g := range groups {
			v, err := evalGroupExpr(ctx, sel.Having, g.members, g.rep)
			if err != nil {
				return nil, nil, err
			}
			if !v.IsNull() && truthy(v) {
				kept = append(kept, g)
			}
		}
		groups = kept
	}

	colNames := projectionColumns(sel, infos)

	reps := make([]types.Row, len(groups))
	for i, g := range groups {
		reps[i] = g.rep
	}
	winVals := make(map[int][]types.Value)
	for i, item := range sel.Projection {
		if fc, ok := item.Expr.(ast.FuncCall); ok && fc.Over != nil {
			vals, err := computeWindow(ctx, reps, fc)
			if err != nil {
				return nil, nil, err
			}
			winVals[i] = vals
		}
	}

	tuples := make([][]types.Value, len(groups))
	for gi, g := range groups {
		row, err := projectTuple(ctx, sel, g, infos, winVals, gi)
		if err != nil {
			return nil, nil, err
		}
		tuples[gi] = row
	}

	if len(sel.OrderBy) > 0 {
		idx := make([]int, len(groups))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return lessByOrderItems(ctx, sel.OrderBy, groups[idx[a]], groups[idx[b]], tuples[idx[a]], tuples[idx[b]], colNames)
		})
		reordered := make([][]types.Value, len(idx))
		for i, gi := range idx {
			reordered[i] = tuples[gi]
		}
		tuples = reordered
	}

	if sel.Distinct {
		seen := make(map[string]bool, len(tuples))
		var kept [][]types.Value
		for _, t := range tuples {
			sig := tupleSignature(t)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			kept = append(kept, t)
		}
		tuples = kept
	}

	tuples, err = applyOffsetLimit(ctx, sel, tuples)
	if err != nil {
		return nil, nil, err
	}

	outRows := make([]types.Row, len(tuples))
	for i, t := range tuples {
		r := make(types.Row, len(colNames))
		for j, name := range colNames {
			if j < len(t) {
				r[name] = t[j]
			}
		}
		outRows[i] = r
	}

	return e.applySetOps(db, sel, outRows, colNames)
}

type rowGroup struct {
	rep     types.Row
	members []types.Row
}

func groupRows(ctx *evalContext, sel *ast.Select, rows []types.Row) ([]rowGroup, error) {
	hasAgg := false
	for _, item := range sel.Projection {
		if containsAggregate(item.Expr) {
			hasAgg = true
			break
		}
	}
	if !hasAgg && sel.Having != nil && containsAggregate(sel.Having) {
		hasAgg = true
	}

	if len(sel.GroupBy) == 0 {
		if !hasAgg {
			out := make([]rowGroup, len(rows))
			for i, r := range rows {
				out[i] = rowGroup{rep: r, members: []types.Row{r}}
			}
			return out, nil
		}
		rep := types.Row{}
		if len(rows) > 0 {
			rep = rows[0]
		}
		return []rowGroup{{rep: rep, members: rows}}, nil
	}

	order := make([]string, 0)
	byKey := make(map[string]*rowGroup)
	for _, r := range rows {
		key, err := groupKey(ctx, sel.GroupBy, r)
		if err != nil {
			return nil, err
		}
		g, ok := byKey[key]
		if !ok {
			g = &rowGroup{rep: r}
			byKey[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, r)
	}
	out := make([]rowGroup, len(order))
	for i, key := range order {
		out[i] = *byKey[key]
	}
	return out, nil
}

func groupKey(ctx *evalContext, exprs []ast.Expr, row types.Row) (string, error) {
	var b strings.Builder
	for _, e := range exprs {
		v, err := evalScalar(ctx, e, row)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d:%s\x00", v.Kind, v.AsString())
	}
	return b.String(), nil
}

func projectionColumns(sel *ast.Select, infos []colInfo) []string {
	var names []string
	for _, item := range sel.Projection {
		if item.Star {
			for _, ci := range infos {
				if item.Table == "" || item.Table == ci.Qualifier {
					names = append(names, ci.Column)
				}
			}
			continue
		}
		if item.Alias != "" {
			names = append(names, item.Alias)
			continue
		}
		names = append(names, deriveName(item.Expr))
	}
	return names
}

func deriveName(e ast.Expr) string {
	switch x := e.(type) {
	case ast.ColumnRef:
		if x.Table != "" {
			return x.Table + "." + x.Column
		}
		return x.Column
	case ast.FuncCall:
		return strings.ToLower(x.Name)
	default:
		return "?column?"
	}
}

func projectTuple(ctx *evalContext, sel *ast.Select, g rowGroup, infos []colInfo, winVals map[int][]types.Value, groupIdx int) ([]types.Value, error) {
	var out []types.Value
	for i, item := range sel.Projection {
		if item.Star {
			for _, ci := range infos {
				if item.Table != "" && item.Table != ci.Qualifier {
					continue
				}
				v, ok := g.rep[ci.qualifiedKey()]
				if !ok {
					v = g.rep[ci.Column]
				}
				out = append(out, v)
			}
			continue
		}
		if vals, ok := winVals[i]; ok {
			out = append(out, vals[groupIdx])
			continue
		}
		v, err := evalGroupExpr(ctx, item.Expr, g.members, g.rep)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func lessByOrderItems(ctx *evalContext, items []ast.OrderItem, ga, gb rowGroup, ta, tb []types.Value, colNames []string) bool {
	for _, it := range items {
		av, aok := orderValue(ctx, it.Expr, ga, ta, colNames)
		bv, bok := orderValue(ctx, it.Expr, gb, tb, colNames)
		if !aok || !bok {
			continue
		}
		c := types.Compare(av, bv)
		if c == 0 {
			continue
		}
		if it.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// orderValue resolves an ORDER BY expression either as a bare alias of an
// already-projected column, or by re-evaluating it against the group.
func orderValue(ctx *evalContext, e ast.Expr, g rowGroup, tuple []types.Value, colNames []string) (types.Value, bool) {
	if ref, ok := e.(ast.ColumnRef); ok && ref.Table == "" {
		for i, name := range colNames {
			if name == ref.Column && i < len(tuple) {
				return tuple[i], true
			}
		}
	}
	v, err := evalGroupExpr(ctx, e, g.members, g.rep)
	if err != nil {
		return types.Value{}, false
	}
	return v, true
}

func tupleSignature(t []types.Value) string {
	var b strings.Builder
	for _, v := range t {
		fmt.Fprintf(&b, "%d:%s\x00", v.Kind, v.AsString())
	}
	return b.String()
}

func applyOffsetLimit(ctx *evalContext, sel *ast.Select, tuples [][]types.Value) ([][]types.Value, error) {
	offset := 0
	if sel.Offset != nil {
		n, err := scalarInt(ctx, sel.Offset)
		if err != nil {
			return nil, err
		}
		offset = n
	}
	if offset > len(tuples) {
		offset = len(tuples)
	}
	tuples = tuples[offset:]
	if sel.Limit != nil {
		n, err := scalarInt(ctx, sel.Limit)
		if err != nil {
			return nil, err
		}
		if n < len(tuples) {
			tuples = tuples[:n]
		}
	}
	return tuples, nil
}

func scalarInt(ctx *evalContext, e ast.Expr) (int, error) {
	v, err := evalScalar(ctx, e, nil)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, dberrors.New(dberrors.TypeMismatch, "LIMIT/OFFSET requires a numeric value")
	}
	return int(f), nil
}

// loadFrom resolves the FROM clause into a flat row list plus the column
// list each row exposes under both "column" and "qualifier.column" keys.
func (e *Executor) loadFrom(db string, from ast.TableExpr) ([]types.Row, []colInfo, error) {
	if from.Table == "" && from.SubQuery == nil {
		return []types.Row{{}}, nil, nil
	}
	if from.SubQuery != nil {
		subRows, subCols, err := e.execSelect(db, from.SubQuery)
		if err != nil {
			return nil, nil, err
		}
		qualifier := from.Alias
		infos := make([]colInfo, len(subCols))
		for i, c := range subCols {
			infos[i] = colInfo{Qualifier: qualifier, Column: c}
		}
		rows := make([]types.Row, len(subRows))
		for i, r := range subRows {
			rows[i] = envRow(r, subCols, qualifier)
		}
		return rows, infos, nil
	}

	t, ok := e.Storage.GetSchema(db, from.Table)
	if !ok {
		return nil, nil, dberrors.New(dberrors.SchemaMissing, "table %q does not exist", from.Table)
	}
	qualifier := from.Alias
	if qualifier == "" {
		qualifier = from.Table
	}
	stored, err := e.Storage.AllRows(db, from.Table)
	if err != nil {
		return nil, nil, err
	}
	colNames := t.ColumnNames()
	infos := make([]colInfo, len(colNames))
	for i, c := range colNames {
		infos[i] = colInfo{Qualifier: qualifier, Column: c}
	}
	rows := make([]types.Row, len(stored))
	for i, r := range stored {
		rows[i] = envRow(r.Row, colNames, qualifier)
	}
	return rows, infos, nil
}

// envRow builds a flat row exposing every column under both its bare name
// and "qualifier.name" (spec §9's row-merging note for joins/aliases).
func envRow(row types.Row, cols []string, qualifier string) types.Row {
	out := make(types.Row, len(cols)*2)
	for _, c := range cols {
		v := row[c]
		out[c] = v
		if qualifier != "" {
			out[qualifier+"."+c] = v
		}
	}
	return out
}

// joinStep evaluates one JOIN against the accumulated row set, producing a
// merged row set and combined colInfo list (spec §4.7).
func (e *Executor) joinStep(db string, leftRows []types.Row, leftInfos []colInfo, j ast.Join) ([]types.Row, []colInfo, error) {
	rightRows, rightInfos, err := e.loadFrom(db, j.Table)
	if err != nil {
		return nil, nil, err
	}
	infos := append(append([]colInfo{}, leftInfos...), rightInfos...)
	ctx := &evalContext{ex: e, db: db}

	matchFn := func(l, r types.Row) (bool, error) {
		if len(j.Using) > 0 {
			for _, col := range j.Using {
				if !types.Equal(l[col], r[col]) {
					return false, nil
				}
			}
			return true, nil
		}
		if j.On == nil {
			return true, nil
		}
		merged := mergeRows(l, r)
		v, err := evalScalar(ctx, j.On, merged)
		if err != nil {
			return false, err
		}
		return !v.IsNull() && truthy(v), nil
	}

	nullRight := nullRowFor(rightInfos)
	nullLeft := nullRowFor(leftInfos)

	var out []types.Row
	switch j.Kind {
	case ast.JoinCross:
		for _, l := range leftRows {
			for _, r := range rightRows {
				out = append(out, mergeRows(l, r))
			}
		}
	case ast.JoinInner:
		for _, l := range leftRows {
			for _, r := range rightRows {
				ok, err := matchFn(l, r)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					out = append(out, mergeRows(l, r))
				}
			}
		}
	case ast.JoinLeft:
		for _, l := range leftRows {
			matched := false
			for _, r := range rightRows {
				ok, err := matchFn(l, r)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					out = append(out, mergeRows(l, r))
					matched = true
				}
			}
			if !matched {
				out = append(out, mergeRows(l, nullRight))
			}
		}
	case ast.JoinRight:
		for _, r := range rightRows {
			matched := false
			for _, l := range leftRows {
				ok, err := matchFn(l, r)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					out = append(out, mergeRows(l, r))
					matched = true
				}
			}
			if !matched {
				out = append(out, mergeRows(nullLeft, r))
			}
		}
	case ast.JoinFull:
		rightMatched := make([]bool, len(rightRows))
		for _, l := range leftRows {
			matched := false
			for ri, r := range rightRows {
				ok, err := matchFn(l, r)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					out = append(out, mergeRows(l, r))
					matched = true
					rightMatched[ri] = true
				}
			}
			if !matched {
				out = append(out, mergeRows(l, nullRight))
			}
		}
		for ri, r := range rightRows {
			if !rightMatched[ri] {
				out = append(out, mergeRows(nullLeft, r))
			}
		}
	default:
		return nil, nil, dberrors.New(dberrors.Internal, "unsupported join kind %v", j.Kind)
	}
	return out, infos, nil
}

func mergeRows(l, r types.Row) types.Row {
	out := make(types.Row, len(l)+len(r))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range r {
		out[k] = v
	}
	return out
}

func nullRowFor(infos []colInfo) types.Row {
	out := make(types.Row, len(infos)*2)
	for _, ci := range infos {
		out[ci.Column] = types.Null()
		if ci.Qualifier != "" {
			out[ci.qualifiedKey()] = types.Null()
		}
	}
	return out
}
