package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/index"
	"github.com/sqldef/qldb/parser"
)

func mustParseSelect(t *testing.T, sql string) *ast.Select {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	sel, ok := stmt.(ast.Select)
	require.True(t, ok)
	return &sel
}

func TestJoinAndIndexPlanScenario(t *testing.T) {
	sel := mustParseSelect(t, "SELECT u.name, o.id FROM users u INNER JOIN orders o ON o.user_id = u.id WHERE u.id = 7;")

	idx := index.NewManager()
	_, err := idx.CreateIndex("users", "pk_users", []string{"id"}, true, index.KindPrimary, 50)
	require.NoError(t, err)
	_, err = idx.CreateIndex("orders", "idx_orders_user_id", []string{"user_id"}, false, index.KindSecondary, 50)
	require.NoError(t, err)

	cat := Catalog{Indexes: idx, RowCounts: map[string]int{"users": 500, "orders": 5000}}
	p, err := Plan(sel, cat)
	require.NoError(t, err)

	require.Len(t, p.TableAccess, 2)
	assert.Equal(t, UniqueScan, p.TableAccess[0].ScanType)
	assert.Equal(t, "pk_users", p.TableAccess[0].Index)
	assert.Equal(t, IndexLookup, p.TableAccess[1].ScanType)
	assert.Equal(t, "idx_orders_user_id", p.TableAccess[1].Index)

	require.Len(t, p.Joins, 1)
	assert.Equal(t, IndexNestedLoop, p.Joins[0].Method)
}

func TestFullTableScanWhenNoIndexMatches(t *testing.T) {
	sel := mustParseSelect(t, "SELECT * FROM t WHERE name = 'a';")
	idx := index.NewManager()
	cat := Catalog{Indexes: idx, RowCounts: map[string]int{"t": 2000}}

	p, err := Plan(sel, cat)
	require.NoError(t, err)
	require.Len(t, p.TableAccess, 1)
	assert.Equal(t, FullTableScan, p.TableAccess[0].ScanType)
	assert.Contains(t, p.Warnings, `full table scan on large table "t"`)
	assert.Contains(t, p.Warnings, "SELECT * retrieves every column")
}

func TestLimitWithoutOrderByWarns(t *testing.T) {
	sel := mustParseSelect(t, "SELECT id FROM t LIMIT 5;")
	cat := Catalog{Indexes: index.NewManager(), RowCounts: map[string]int{"t": 10}}
	p, err := Plan(sel, cat)
	require.NoError(t, err)
	assert.Contains(t, p.Warnings, "LIMIT without ORDER BY produces a non-deterministic result set")
	require.NotNil(t, p.Limit)
	assert.Equal(t, 5, *p.Limit)
}

func TestRangePredicateStopsIndexMatchingAtLeadingColumn(t *testing.T) {
	sel := mustParseSelect(t, "SELECT * FROM t WHERE a > 5 AND b = 1;")
	idx := index.NewManager()
	_, err := idx.CreateIndex("t", "idx_ab", []string{"a", "b"}, false, index.KindSecondary, 50)
	require.NoError(t, err)

	cat := Catalog{Indexes: idx, RowCounts: map[string]int{"t": 100}}
	p, err := Plan(sel, cat)
	require.NoError(t, err)
	assert.Equal(t, IndexRangeScan, p.TableAccess[0].ScanType)
	assert.Equal(t, "idx_ab", p.TableAccess[0].Index)
}

func TestAggregationWithoutGroupByTreatsWholeResultAsOneGroup(t *testing.T) {
	sel := mustParseSelect(t, "SELECT COUNT(*) FROM t;")
	cat := Catalog{Indexes: index.NewManager(), RowCounts: map[string]int{"t": 10}}
	p, err := Plan(sel, cat)
	require.NoError(t, err)
	require.NotNil(t, p.Aggregation)
	assert.Equal(t, "HASH", p.Aggregation.Strategy)
}
