package planner

import (
	"fmt"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/index"
	"github.com/sqldef/qldb/schema"
)

// predicate is one indexable WHERE fragment resolved to a bare table.
type predicate struct {
	Column    string
	Op        string
	InListLen int
}

// tableRef is one FROM/JOIN participant, in left-to-right order.
type tableRef struct {
	Table string
	Alias string
}

func (r tableRef) key() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Table
}

// Catalog is the planner's view of schemas, indexes, and row-count
// estimates (spec §4.8's inputs).
type Catalog struct {
	Schemas   map[string]*schema.Table
	Indexes   *index.Manager
	RowCounts map[string]int // keyed by table name
}

// Plan produces an execution plan for a parsed SELECT (spec §4.8).
func Plan(sel *ast.Select, cat Catalog) (*Plan, error) {
	refs := collectTableRefs(sel)
	if len(refs) == 0 {
		return nil, dberrors.New(dberrors.Internal, "SELECT has no FROM table")
	}

	aliasToTable := make(map[string]string, len(refs))
	for _, r := range refs {
		aliasToTable[r.key()] = r.Table
	}

	predsByTable := collectPredicates(sel.Where, aliasToTable, singleTable(refs))
	for i, j := range sel.Joins {
		if i+1 >= len(refs) {
			break
		}
		inner := refs[i+1]
		if col, ok := joinKeyOnInner(j, inner, cat); ok {
			predsByTable[inner.key()] = append(predsByTable[inner.key()], predicate{Column: col, Op: "="})
		}
	}

	p := &Plan{}
	for _, r := range refs {
		rowCount := float64(cat.RowCounts[r.Table])
		access := planTableAccess(r, cat, predsByTable[r.key()], rowCount)
		p.TableAccess = append(p.TableAccess, access)
		p.EstimatedRows += access.EstimatedRows
		p.EstimatedCost += access.EstimatedCost
	}

	p.Joins = planJoins(sel, refs, cat, p.TableAccess)
	for _, j := range p.Joins {
		p.EstimatedCost += j.EstimatedCost
	}

	p.Sort = planSort(sel, p.TableAccess, cat)
	if p.Sort != nil {
		p.EstimatedCost += p.Sort.Cost
	}
	p.Aggregation = planAggregation(sel, p.TableAccess)
	if p.Aggregation != nil {
		p.EstimatedCost += p.Aggregation.Cost
	}

	if lim, ok := intLiteral(sel.Limit); ok {
		p.Limit = &lim
	}
	if off, ok := intLiteral(sel.Offset); ok {
		p.Offset = &off
	}

	p.Warnings = collectWarnings(sel, p, cat)
	p.Hints = collectHints(sel, p)

	return p, nil
}

func singleTable(refs []tableRef) string {
	if len(refs) == 1 {
		return refs[0].key()
	}
	return ""
}

func collectTableRefs(sel *ast.Select) []tableRef {
	var refs []tableRef
	if sel.From.Table != "" || sel.From.SubQuery != nil {
		refs = append(refs, tableRef{Table: sel.From.Table, Alias: sel.From.Alias})
	}
	for _, j := range sel.Joins {
		refs = append(refs, tableRef{Table: j.Table.Table, Alias: j.Table.Alias})
	}
	return refs
}

// collectPredicates flattens top-level ANDs in WHERE and classifies each
// fragment as indexable (spec §4.8), bucketed by resolved table key.
// defaultTable is used to resolve unqualified column references when the
// query has exactly one table.
func collectPredicates(where ast.Expr, aliasToTable map[string]string, defaultTable string) map[string][]predicate {
	out := make(map[string][]predicate)
	if where == nil {
		return out
	}
	for _, frag := range flattenAnd(where) {
		tbl, pred, ok := classify(frag, defaultTable)
		if !ok {
			continue
		}
		if _, known := aliasToTable[tbl]; !known && tbl != defaultTable {
			continue
		}
		out[tbl] = append(out[tbl], pred)
	}
	return out
}

func flattenAnd(e ast.Expr) []ast.Expr {
	if b, ok := e.(ast.BinaryExpr); ok && b.Op == "AND" {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []ast.Expr{e}
}

var comparisonOps = map[string]bool{"=": true, "<": true, ">": true, "<=": true, ">=": true}

// classify extracts (table, column, operator) from an indexable WHERE
// fragment (spec §4.8's classification list). Returns ok=false for
// non-indexable fragments (OR, function calls, column-to-column
// comparisons, etc).
func classify(e ast.Expr, defaultTable string) (string, predicate, bool) {
	switch v := e.(type) {
	case ast.BinaryExpr:
		if !comparisonOps[v.Op] {
			return "", predicate{}, false
		}
		if col, ok := v.Left.(ast.ColumnRef); ok {
			if _, ok := v.Right.(ast.Literal); ok {
				return resolveTable(col, defaultTable), predicate{Column: col.Column, Op: v.Op}, true
			}
		}
		if col, ok := v.Right.(ast.ColumnRef); ok {
			if _, ok := v.Left.(ast.Literal); ok {
				return resolveTable(col, defaultTable), predicate{Column: col.Column, Op: flipOp(v.Op)}, true
			}
		}
		return "", predicate{}, false
	case ast.InExpr:
		col, ok := v.Operand.(ast.ColumnRef)
		if !ok || v.SubSel != nil {
			return "", predicate{}, false
		}
		return resolveTable(col, defaultTable), predicate{Column: col.Column, Op: "IN", InListLen: len(v.List)}, true
	case ast.BetweenExpr:
		col, ok := v.Operand.(ast.ColumnRef)
		if !ok {
			return "", predicate{}, false
		}
		return resolveTable(col, defaultTable), predicate{Column: col.Column, Op: "BETWEEN"}, true
	case ast.IsNullExpr:
		col, ok := v.Operand.(ast.ColumnRef)
		if !ok {
			return "", predicate{}, false
		}
		op := "IS NULL"
		if v.Not {
			op = "IS NOT NULL"
		}
		return resolveTable(col, defaultTable), predicate{Column: col.Column, Op: op}, true
	default:
		return "", predicate{}, false
	}
}

func resolveTable(col ast.ColumnRef, defaultTable string) string {
	if col.Table != "" {
		return col.Table
	}
	return defaultTable
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	default:
		return op
	}
}

// planTableAccess scores every index on the table against its resolved
// predicates and picks the best (spec §4.8's table access decision).
func planTableAccess(r tableRef, cat Catalog, preds []predicate, rowCount float64) TableAccess {
	if rowCount == 0 {
		rowCount = 1000 // unknown-size default, avoids a zero-cost illusion
	}

	access := TableAccess{Table: r.Table, Alias: r.Alias, ScanType: FullTableScan, EstimatedRows: rowCount, EstimatedCost: fullScanCost(rowCount)}
	if cat.Indexes == nil {
		return access
	}

	predByCol := make(map[string]predicate, len(preds))
	for _, p := range preds {
		if _, exists := predByCol[p.Column]; !exists {
			predByCol[p.Column] = p
		}
	}

	bestScore := 0
	var bestIdx *index.Index
	bestMatched := 0
	bestEquality := true

	for _, ix := range cat.Indexes.Indexes(r.Table) {
		score, matched, allEquality := scoreIndex(ix, predByCol)
		if score > bestScore {
			bestScore, bestIdx, bestMatched, bestEquality = score, ix, matched, allEquality
		}
	}

	if bestIdx == nil || bestScore <= 0 {
		return access
	}

	sels := make([]float64, 0, bestMatched)
	for i := 0; i < bestMatched; i++ {
		p := predByCol[bestIdx.Columns[i]]
		sels = append(sels, selectivity(p.Op, p.InListLen))
	}
	matchedRows := rowCount * combineSelectivity(sels)
	if matchedRows < 1 {
		matchedRows = 1
	}

	scanType := IndexLookup
	switch {
	case bestIdx.Unique && bestMatched == 1 && len(bestIdx.Columns) == 1 && bestEquality:
		scanType = UniqueScan
	case bestEquality:
		scanType = IndexLookup
	default:
		scanType = IndexRangeScan
	}

	access.ScanType = scanType
	access.Index = bestIdx.Name
	access.EstimatedRows = matchedRows
	access.EstimatedCost = indexScanCost(matchedRows, rowCount)
	return access
}

// scoreIndex implements spec §4.8's (a)-(e) scoring rules.
func scoreIndex(ix *index.Index, predByCol map[string]predicate) (score, matched int, allEquality bool) {
	allEquality = true
	weight := 10
	for i, col := range ix.Columns {
		p, ok := predByCol[col]
		if !ok {
			break
		}
		matched++
		score += weight
		if weight > 2 {
			weight -= 2
		}

		isRange := p.Op == "<" || p.Op == ">" || p.Op == "<=" || p.Op == ">="
		isEquality := p.Op == "=" || p.Op == "IN"
		if i == 0 && isEquality {
			score += 5
		}
		if isRange {
			allEquality = false
			if i == 0 {
				score += 3
			}
			break // rule (c): a range predicate stops further prefix matching
		}
	}
	if ix.Unique && matched == len(ix.Columns) && allEquality && matched > 0 {
		score += 20
	}
	if len(ix.Columns) > matched+2 {
		score -= 2
	}
	return score, matched, allEquality
}

// planJoins chooses a join method per join step (spec §4.8).
func planJoins(sel *ast.Select, refs []tableRef, cat Catalog, access []TableAccess) []JoinStep {
	var steps []JoinStep
	rowsByKey := make(map[string]float64, len(access))
	for _, a := range access {
		rowsByKey[keyOf(a.Alias, a.Table)] = a.EstimatedRows
	}

	outerKey := refs[0].key()
	outerRows := rowsByKey[outerKey]

	for i, j := range sel.Joins {
		inner := refs[i+1]
		innerRows := rowsByKey[inner.key()]
		if j.Kind == ast.JoinCross {
			steps = append(steps, JoinStep{Outer: outerKey, Inner: inner.key(), Method: NestedLoop, EstimatedCost: nestedLoopCost(outerRows, innerRows)})
			outerKey = inner.key()
			outerRows *= innerRows
			continue
		}

		joinCol, hasIndex := joinKeyOnInner(j, inner, cat)
		var step JoinStep
		switch {
		case hasIndex:
			step = JoinStep{Outer: outerKey, Inner: inner.key(), Method: IndexNestedLoop, EstimatedCost: indexNestedLoopCost(outerRows, innerRows*0.1)}
		case innerRows <= workingMemoryThreshold:
			step = JoinStep{Outer: outerKey, Inner: inner.key(), Method: HashJoin, EstimatedCost: hashJoinCost(outerRows, innerRows)}
		default:
			step = JoinStep{Outer: outerKey, Inner: inner.key(), Method: NestedLoop, EstimatedCost: nestedLoopCost(outerRows, innerRows)}
		}
		_ = joinCol
		steps = append(steps, step)
		outerKey = inner.key()
		outerRows = outerRows * innerRows * 0.1
	}
	return steps
}

func keyOf(alias, table string) string {
	if alias != "" {
		return alias
	}
	return table
}

// joinKeyOnInner looks for an equality join condition col1=col2 in j.On
// where one side resolves to the inner table, then checks whether the
// inner table carries an index on that column.
func joinKeyOnInner(j ast.Join, inner tableRef, cat Catalog) (string, bool) {
	if j.On == nil {
		return "", false
	}
	for _, frag := range flattenAnd(j.On) {
		b, ok := frag.(ast.BinaryExpr)
		if !ok || b.Op != "=" {
			continue
		}
		l, lok := b.Left.(ast.ColumnRef)
		r, rok := b.Right.(ast.ColumnRef)
		if !lok || !rok {
			continue
		}
		var col string
		switch {
		case l.Table == inner.Alias || l.Table == inner.Table:
			col = l.Column
		case r.Table == inner.Alias || r.Table == inner.Table:
			col = r.Column
		default:
			continue
		}
		if cat.Indexes == nil {
			continue
		}
		if _, ok := cat.Indexes.FindBest(inner.Table, []string{col}); ok {
			return col, true
		}
	}
	return "", false
}

// planSort builds a sort plan when ORDER BY is present, marking
// using_index when the driving table's chosen index prefix matches the
// ORDER BY column list (spec §4.8). Direction agreement is not modeled
// per-column at the index level since schema.Index carries no per-column
// direction; this approximates with name-prefix matching only.
func planSort(sel *ast.Select, access []TableAccess, cat Catalog) *SortPlan {
	if len(sel.OrderBy) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sel.OrderBy))
	for _, o := range sel.OrderBy {
		if col, ok := o.Expr.(ast.ColumnRef); ok {
			keys = append(keys, col.Column)
		} else {
			keys = append(keys, "")
		}
	}

	usingIndex := false
	if len(access) > 0 && access[0].Index != "" && access[0].ScanType != FullTableScan && cat.Indexes != nil {
		if ix, ok := cat.Indexes.Get(access[0].Table, access[0].Index); ok && len(keys) <= len(ix.Columns) {
			usingIndex = true
			for i, k := range keys {
				if ix.Columns[i] != k {
					usingIndex = false
					break
				}
			}
		}
	}

	rows := 0.0
	for _, a := range access {
		rows += a.EstimatedRows
	}
	cost := 0.0
	if !usingIndex {
		cost = sortCost(rows)
	}
	return &SortPlan{UsingIndex: usingIndex, Keys: keys, Cost: cost}
}

// planAggregation builds an aggregation plan when GROUP BY is present, or
// when an aggregate appears in the projection with no GROUP BY (the
// whole result becomes one group, spec §4.7 step 4).
func planAggregation(sel *ast.Select, access []TableAccess) *AggPlan {
	hasAggregate := false
	for _, item := range sel.Projection {
		if fc, ok := item.Expr.(ast.FuncCall); ok && ast.AggregateNames[fc.Name] {
			hasAggregate = true
		}
	}
	if len(sel.GroupBy) == 0 && !hasAggregate {
		return nil
	}

	rows := 0.0
	for _, a := range access {
		rows += a.EstimatedRows
	}

	strategy := "HASH"
	if len(sel.GroupBy) > 0 && len(access) > 0 && access[0].Index != "" {
		strategy = "INDEX"
	}
	cost := rows * cpuPerTuple
	if strategy == "HASH" {
		cost += rows * hashQualCost
	}
	return &AggPlan{Strategy: strategy, Cost: cost}
}

func intLiteral(e ast.Expr) (int, bool) {
	lit, ok := e.(ast.Literal)
	if !ok || lit.Kind != ast.LitNumber {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(lit.Text, "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

func collectWarnings(sel *ast.Select, p *Plan, cat Catalog) []string {
	var warnings []string
	for _, a := range p.TableAccess {
		if a.ScanType == FullTableScan && cat.RowCounts[a.Table] > largeTableThreshold {
			warnings = append(warnings, fmt.Sprintf("full table scan on large table %q", a.Table))
		}
	}
	for _, item := range sel.Projection {
		if item.Star {
			warnings = append(warnings, "SELECT * retrieves every column")
			break
		}
	}
	if sel.Limit != nil && len(sel.OrderBy) == 0 {
		warnings = append(warnings, "LIMIT without ORDER BY produces a non-deterministic result set")
	}
	return warnings
}

func collectHints(sel *ast.Select, p *Plan) []string {
	var hints []string
	for _, a := range p.TableAccess {
		if a.ScanType == FullTableScan {
			hints = append(hints, fmt.Sprintf("consider adding an index on table %q for the WHERE/JOIN columns used", a.Table))
		}
	}
	if len(p.Joins) > 1 {
		for _, j := range p.Joins {
			if j.Method == NestedLoop {
				hints = append(hints, "reordering joins to put the most selective table first may reduce cost")
				break
			}
		}
	}
	return hints
}
