package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
)

func TestParseSelectSimple(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM t WHERE id = 1 ORDER BY id")
	require.NoError(t, err)
	sel, ok := stmt.(ast.Select)
	require.True(t, ok)
	assert.Len(t, sel.Projection, 2)
	assert.Equal(t, "t", sel.From.Table)
	assert.NotNil(t, sel.Where)
	assert.Len(t, sel.OrderBy, 1)
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users u")
	require.NoError(t, err)
	sel := stmt.(ast.Select)
	require.Len(t, sel.Projection, 1)
	assert.True(t, sel.Projection[0].Star)
	assert.Equal(t, "u", sel.From.Alias)
}

func TestParseJoinWithOn(t *testing.T) {
	stmt, err := Parse(`SELECT u.name, o.id FROM users u INNER JOIN orders o ON o.user_id = u.id WHERE u.id = 7`)
	require.NoError(t, err)
	sel := stmt.(ast.Select)
	require.Len(t, sel.Joins, 1)
	assert.Equal(t, ast.JoinInner, sel.Joins[0].Kind)
	assert.NotNil(t, sel.Joins[0].On)
}

func TestParseWindowFunction(t *testing.T) {
	stmt, err := Parse(`SELECT region, amount, ROW_NUMBER() OVER (PARTITION BY region ORDER BY amount DESC) AS rn FROM sales`)
	require.NoError(t, err)
	sel := stmt.(ast.Select)
	require.Len(t, sel.Projection, 3)
	fc, ok := sel.Projection[2].Expr.(ast.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "ROW_NUMBER", fc.Name)
	require.NotNil(t, fc.Over)
	assert.Len(t, fc.Over.PartitionBy, 1)
	assert.Len(t, fc.Over.OrderBy, 1)
	assert.True(t, fc.Over.OrderBy[0].Desc)
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse(`INSERT INTO t (name) VALUES ('a'), ('b'), ('c')`)
	require.NoError(t, err)
	ins := stmt.(ast.Insert)
	assert.Equal(t, "t", ins.Table)
	assert.Equal(t, []string{"name"}, ins.Columns)
	assert.Len(t, ins.Values, 3)
}

func TestParseCreateTableWithForeignKey(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE c (id INT PRIMARY KEY, pid INT REFERENCES p(id) ON DELETE CASCADE)`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)
	assert.Equal(t, "c", ct.Table)
	require.Len(t, ct.Columns, 2)
	require.NotNil(t, ct.Columns[1].FK)
	assert.Equal(t, ast.Cascade, ct.Columns[1].FK.OnDelete)
}

func TestParseBeginRollbackToSavepoint(t *testing.T) {
	stmt, err := Parse(`ROLLBACK TO SAVEPOINT sp1`)
	require.NoError(t, err)
	rb := stmt.(ast.Rollback)
	assert.Equal(t, "sp1", rb.Savepoint)
}

func TestParseSetTransactionIsolationIgnored(t *testing.T) {
	stmt, err := Parse(`SET TRANSACTION ISOLATION LEVEL READ COMMITTED`)
	require.NoError(t, err)
	sti, ok := stmt.(ast.SetTransactionIsolation)
	require.True(t, ok)
	assert.Equal(t, "READ COMMITTED", sti.Level)
}

func TestParseMultipleStatements(t *testing.T) {
	stmts, err := ParseMultiple(`BEGIN; INSERT INTO t (name) VALUES ('z'); ROLLBACK;`)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	_, ok := stmts[0].(ast.Begin)
	assert.True(t, ok)
}

func TestSyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse("SELECT FROM t")
	require.Error(t, err)
	de, ok := dberrors.As(err)
	require.True(t, ok)
	assert.Equal(t, dberrors.Syntax, de.Code)
	assert.Equal(t, 1, de.Line)
	assert.Equal(t, 8, de.Position)
}

func TestParseBacktickIdentifier(t *testing.T) {
	stmt, err := Parse("SELECT `order` FROM `t`")
	require.NoError(t, err)
	sel := stmt.(ast.Select)
	col := sel.Projection[0].Expr.(ast.ColumnRef)
	assert.Equal(t, "order", col.Column)
	assert.Equal(t, "t", sel.From.Table)
}
