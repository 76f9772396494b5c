package executor

import (
	"sort"
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// computeWindow evaluates one windowed FuncCall over rows (already
// filtered/grouped to the representative row per output tuple), returning
// one value per row in rows' original order (spec §4.7's window stage).
// Frames are not modelled: aggregates see the whole partition, matching
// the implicit RANGE BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING
// default when no explicit frame is parsed.
func computeWindow(ctx *evalContext, rows []types.Row, f ast.FuncCall) ([]types.Value, error) {
	n := len(rows)
	out := make([]types.Value, n)

	partitions := make(map[string][]int)
	var order []string
	for i, row := range rows {
		key, err := partitionKey(ctx, f.Over.PartitionBy, row)
		if err != nil {
			return nil, err
		}
		if _, ok := partitions[key]; !ok {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], i)
	}

	name := strings.ToUpper(f.Name)
	for _, key := range order {
		idxs := partitions[key]
		sorted := append([]int(nil), idxs...)
		sort.SliceStable(sorted, func(a, b int) bool {
			return lessByOrderBy(ctx, rows[sorted[a]], rows[sorted[b]], f.Over.OrderBy)
		})

		switch {
		case name == "ROW_NUMBER":
			for rank, idx := range sorted {
				out[idx] = types.Int(int64(rank + 1))
			}
		case name == "RANK" || name == "DENSE_RANK":
			rank := 0
			dense := 0
			for pos, idx := range sorted {
				if pos == 0 || lessByOrderBy(ctx, rows[sorted[pos-1]], rows[idx], f.Over.OrderBy) {
					rank = pos + 1
					dense++
				}
				if name == "RANK" {
					out[idx] = types.Int(int64(rank))
				} else {
					out[idx] = types.Int(int64(dense))
				}
			}
		case name == "NTILE":
			buckets := 1
			if len(f.Args) > 0 {
				v, err := evalScalar(ctx, f.Args[0], rows[sorted[0]])
				if err == nil {
					if fv, ok := v.AsFloat(); ok && fv >= 1 {
						buckets = int(fv)
					}
				}
			}
			total := len(sorted)
			for pos, idx := range sorted {
				bucket := pos*buckets/total + 1
				out[idx] = types.Int(int64(bucket))
			}
		case name == "LEAD" || name == "LAG":
			offset := 1
			if len(f.Args) > 1 {
				v, err := evalScalar(ctx, f.Args[1], rows[sorted[0]])
				if err == nil {
					if fv, ok := v.AsFloat(); ok {
						offset = int(fv)
					}
				}
			}
			var defVal types.Value = types.Null()
			if len(f.Args) > 2 {
				v, err := evalScalar(ctx, f.Args[2], rows[sorted[0]])
				if err == nil {
					defVal = v
				}
			}
			step := offset
			if name == "LAG" {
				step = -offset
			}
			for pos, idx := range sorted {
				target := pos + step
				if target < 0 || target >= len(sorted) {
					out[idx] = defVal
					continue
				}
				if len(f.Args) == 0 {
					out[idx] = types.Null()
					continue
				}
				v, err := evalScalar(ctx, f.Args[0], rows[sorted[target]])
				if err != nil {
					return nil, err
				}
				out[idx] = v
			}
		case name == "FIRST_VALUE" || name == "LAST_VALUE":
			pick := sorted[0]
			if name == "LAST_VALUE" {
				pick = sorted[len(sorted)-1]
			}
			var v types.Value = types.Null()
			if len(f.Args) > 0 {
				var err error
				v, err = evalScalar(ctx, f.Args[0], rows[pick])
				if err != nil {
					return nil, err
				}
			}
			for _, idx := range sorted {
				out[idx] = v
			}
		case ast.AggregateNames[name]:
			members := make([]types.Row, len(sorted))
			for i, idx := range sorted {
				members[i] = rows[idx]
			}
			v, err := computeAggregate(ctx, f, members)
			if err != nil {
				return nil, err
			}
			for _, idx := range sorted {
				out[idx] = v
			}
		default:
			return nil, dberrors.New(dberrors.Internal, "unsupported window function %s", f.Name)
		}
	}
	return out, nil
}

func partitionKey(ctx *evalContext, exprs []ast.Expr, row types.Row) (string, error) {
	var b strings.Builder
	for _, e := range exprs {
		v, err := evalScalar(ctx, e, row)
		if err != nil {
			return "", err
		}
		b.WriteString(v.AsString())
		b.WriteByte(0)
	}
	return b.String(), nil
}

func lessByOrderBy(ctx *evalContext, a, b types.Row, items []ast.OrderItem) bool {
	for _, it := range items {
		av, aerr := evalScalar(ctx, it.Expr, a)
		bv, berr := evalScalar(ctx, it.Expr, b)
		if aerr != nil || berr != nil {
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
