package executor

import (
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/types"
)

// applySetOps combines base (rows, cols) with every UNION/INTERSECT/EXCEPT
// branch of sel.SetOps, left to right, using the first branch's column
// names for the combined result set (spec §4.7's final pipeline stage).
func (e *Executor) applySetOps(db string, sel *ast.Select, rows []types.Row, cols []string) ([]types.Row, []string, error) {
	for _, op := range sel.SetOps {
		rhsRows, rhsCols, err := e.execSelect(db, op.Select)
		if err != nil {
			return nil, nil, err
		}
		rhsRows = realign(rhsRows, rhsCols, cols)

		switch op.Kind {
		case ast.SetUnion:
			rows = dedupRows(append(rows, rhsRows...), cols)
		case ast.SetUnionAll:
			rows = append(rows, rhsRows...)
		case ast.SetIntersect:
			rows = intersectRows(rows, rhsRows, cols)
		case ast.SetExcept:
			rows = exceptRows(rows, rhsRows, cols)
		}
	}
	return rows, cols, nil
}

// realign renames rhs's columns positionally onto cols (rhsCols gives the
// source order), the way SQL set operations match columns by position
// rather than name.
func realign(rows []types.Row, rhsCols, cols []string) []types.Row {
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		nr := make(types.Row, len(cols))
		for j, c := range cols {
			if j < len(rhsCols) {
				nr[c] = r[rhsCols[j]]
			}
		}
		out[i] = nr
	}
	return out
}

func rowSignature(r types.Row, cols []string) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(r[c].AsString())
		b.WriteByte(0)
	}
	return b.String()
}

func dedupRows(rows []types.Row, cols []string) []types.Row {
	seen := make(map[string]bool, len(rows))
	var out []types.Row
	for _, r := range rows {
		sig := rowSignature(r, cols)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	return out
}

func intersectRows(left, right []types.Row, cols []string) []types.Row {
	present := make(map[string]bool, len(right))
	for _, r := range right {
		present[rowSignature(r, cols)] = true
	}
	seen := make(map[string]bool, len(left))
	var out []types.Row
	for _, r := range left {
		sig := rowSignature(r, cols)
		if present[sig] && !seen[sig] {
			seen[sig] = true
			out = append(out, r)
		}
	}
	return out
}

func exceptRows(left, right []types.Row, cols []string) []types.Row {
	present := make(map[string]bool, len(right))
	for _, r := range right {
		present[rowSignature(r, cols)] = true
	}
	seen := make(map[string]bool, len(left))
	var out []types.Row
	for _, r := range left {
		sig := rowSignature(r, cols)
		if present[sig] || seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	return out
}
