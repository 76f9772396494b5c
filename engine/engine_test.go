package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/parser"
	"github.com/sqldef/qldb/types"
)

func mustParseSelect(t *testing.T, sql string) *ast.Select {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	sel, ok := stmt.(ast.Select)
	require.True(t, ok)
	return &sel
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New("", 10)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, e *Engine, session int64, sql string) *Result {
	t.Helper()
	db := e.CurrentDatabase()
	return e.Query(session, db, sql)
}

func requireOK(t *testing.T, res *Result) *Result {
	t.Helper()
	if !res.Success {
		msg := "unknown error"
		if res.Error != nil {
			msg = res.Error.Message
		}
		t.Fatalf("expected success, got failure: %s", msg)
	}
	return res
}

// TestCRUDAndPrimaryKey exercises scenario 1: create a table with a
// primary key, insert rows, update and delete by key.
func TestCRUDAndPrimaryKey(t *testing.T) {
	e := newTestEngine(t)

	requireOK(t, run(t, e, 1, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, run(t, e, 1, `INSERT INTO users (id, name) VALUES (1, 'alice')`))
	requireOK(t, run(t, e, 1, `INSERT INTO users (id, name) VALUES (2, 'bob')`))

	res := requireOK(t, run(t, e, 1, `SELECT id, name FROM users WHERE id = 2`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Str("bob"), res.Rows[0]["name"])

	requireOK(t, run(t, e, 1, `UPDATE users SET name = 'bobby' WHERE id = 2`))
	res = requireOK(t, run(t, e, 1, `SELECT name FROM users WHERE id = 2`))
	assert.Equal(t, types.Str("bobby"), res.Rows[0]["name"])

	requireOK(t, run(t, e, 1, `DELETE FROM users WHERE id = 1`))
	res = requireOK(t, run(t, e, 1, `SELECT id FROM users`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Decimal("2"), res.Rows[0]["id"])
}

// TestUniqueViolation exercises scenario 2: a UNIQUE index rejects a
// duplicate insert and leaves the table unchanged.
func TestUniqueViolation(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE users (id INT PRIMARY KEY, email VARCHAR(64) UNIQUE)`))
	requireOK(t, run(t, e, 1, `INSERT INTO users (id, email) VALUES (1, 'a@example.com')`))

	res := run(t, e, 1, `INSERT INTO users (id, email) VALUES (2, 'a@example.com')`)
	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, dberrors.UniqueViolation, res.Error.Code)

	res = requireOK(t, run(t, e, 1, `SELECT id FROM users`))
	require.Len(t, res.Rows, 1)
}

// TestForeignKeyCascadeDelete exercises scenario 3: deleting a parent row
// cascades to its children per an ON DELETE CASCADE foreign key.
func TestForeignKeyCascadeDelete(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE authors (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, run(t, e, 1, `CREATE TABLE books (id INT PRIMARY KEY, author_id INT, title VARCHAR(64),
		FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE)`))

	requireOK(t, run(t, e, 1, `INSERT INTO authors (id, name) VALUES (1, 'king')`))
	requireOK(t, run(t, e, 1, `INSERT INTO books (id, author_id, title) VALUES (1, 1, 'it')`))
	requireOK(t, run(t, e, 1, `INSERT INTO books (id, author_id, title) VALUES (2, 1, 'misery')`))

	requireOK(t, run(t, e, 1, `DELETE FROM authors WHERE id = 1`))

	res := requireOK(t, run(t, e, 1, `SELECT id FROM books`))
	assert.Len(t, res.Rows, 0)
}

// TestTransactionRollback exercises scenario 4: a BEGIN...ROLLBACK undoes
// every statement issued inside the transaction.
func TestTransactionRollback(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE counters (id INT PRIMARY KEY, n INT)`))
	requireOK(t, run(t, e, 1, `INSERT INTO counters (id, n) VALUES (1, 0)`))

	requireOK(t, run(t, e, 1, `BEGIN`))
	requireOK(t, run(t, e, 1, `UPDATE counters SET n = 1 WHERE id = 1`))
	requireOK(t, run(t, e, 1, `INSERT INTO counters (id, n) VALUES (2, 99)`))
	requireOK(t, run(t, e, 1, `ROLLBACK`))

	res := requireOK(t, run(t, e, 1, `SELECT id, n FROM counters`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Decimal("0"), res.Rows[0]["n"])
}

// TestTransactionRollbackRestoresDeletedRow checks that rolling back a
// DELETE puts the row back instead of failing to undo it.
func TestTransactionRollbackRestoresDeletedRow(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE counters (id INT PRIMARY KEY, n INT)`))
	requireOK(t, run(t, e, 1, `INSERT INTO counters (id, n) VALUES (1, 7)`))

	requireOK(t, run(t, e, 1, `BEGIN`))
	requireOK(t, run(t, e, 1, `DELETE FROM counters WHERE id = 1`))
	requireOK(t, run(t, e, 1, `ROLLBACK`))

	res := requireOK(t, run(t, e, 1, `SELECT n FROM counters WHERE id = 1`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Decimal("7"), res.Rows[0]["n"])
}

// TestTransactionSavepoint exercises partial rollback to a named
// savepoint, keeping everything recorded before it.
func TestTransactionSavepoint(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE counters (id INT PRIMARY KEY, n INT)`))

	requireOK(t, run(t, e, 1, `BEGIN`))
	requireOK(t, run(t, e, 1, `INSERT INTO counters (id, n) VALUES (1, 1)`))
	requireOK(t, run(t, e, 1, `SAVEPOINT sp1`))
	requireOK(t, run(t, e, 1, `INSERT INTO counters (id, n) VALUES (2, 2)`))
	requireOK(t, run(t, e, 1, `ROLLBACK TO sp1`))
	requireOK(t, run(t, e, 1, `COMMIT`))

	res := requireOK(t, run(t, e, 1, `SELECT id FROM counters`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Decimal("1"), res.Rows[0]["id"])
}

// TestGroupByAggregateAndWindow exercises scenario 5: a GROUP BY aggregate
// query, then a window function query, over the same table.
func TestGroupByAggregateAndWindow(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE sales (id INT PRIMARY KEY, region VARCHAR(32), amount INT)`))
	requireOK(t, run(t, e, 1, `INSERT INTO sales (id, region, amount) VALUES (1, 'east', 10)`))
	requireOK(t, run(t, e, 1, `INSERT INTO sales (id, region, amount) VALUES (2, 'east', 20)`))
	requireOK(t, run(t, e, 1, `INSERT INTO sales (id, region, amount) VALUES (3, 'west', 5)`))

	res := requireOK(t, run(t, e, 1, `SELECT region, SUM(amount) FROM sales GROUP BY region ORDER BY region`))
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Str("east"), res.Rows[0]["region"])
	assert.Equal(t, types.Float(30), res.Rows[0]["sum"])

	res = requireOK(t, run(t, e, 1,
		`SELECT id, region, ROW_NUMBER() OVER (PARTITION BY region ORDER BY amount DESC) AS rn FROM sales ORDER BY region, rn`))
	require.Len(t, res.Rows, 3)
	assert.Equal(t, types.Int(1), res.Rows[0]["rn"])
}

// TestJoinAcrossTables exercises scenario 6: an INNER JOIN across two
// tables through the full engine pipeline (parse, plan-eligible, execute).
func TestJoinAcrossTables(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, run(t, e, 1, `CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, total INT)`))
	requireOK(t, run(t, e, 1, `INSERT INTO users (id, name) VALUES (1, 'alice')`))
	requireOK(t, run(t, e, 1, `INSERT INTO orders (id, user_id, total) VALUES (1, 1, 100)`))
	requireOK(t, run(t, e, 1, `INSERT INTO orders (id, user_id, total) VALUES (2, 1, 50)`))

	res := requireOK(t, run(t, e, 1,
		`SELECT u.name, o.total FROM users u INNER JOIN orders o ON o.user_id = u.id ORDER BY o.total`))
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Decimal("50"), res.Rows[0]["total"])
	assert.Equal(t, types.Str("alice"), res.Rows[0]["name"])

	plan, err := e.Plan(e.CurrentDatabase(), mustParseSelect(t,
		`SELECT u.name FROM users u INNER JOIN orders o ON o.user_id = u.id WHERE u.id = 1`))
	require.NoError(t, err)
	require.Len(t, plan.Joins, 1)
}

// TestQueryMultipleStopsOnFirstFailure exercises that a batch of
// statements halts at the first error, leaving later statements unrun.
func TestQueryMultipleStopsOnFirstFailure(t *testing.T) {
	e := newTestEngine(t)
	requireOK(t, run(t, e, 1, `CREATE TABLE t (id INT PRIMARY KEY)`))

	results := e.QueryMultiple(1, e.CurrentDatabase(), `INSERT INTO t (id) VALUES (1); INSERT INTO missing (id) VALUES (1); INSERT INTO t (id) VALUES (2);`)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)

	res := requireOK(t, run(t, e, 1, `SELECT id FROM t`))
	require.Len(t, res.Rows, 1)
}
