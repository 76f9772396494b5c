package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/index"
	"github.com/sqldef/qldb/parser"
	"github.com/sqldef/qldb/storage"
	"github.com/sqldef/qldb/txn"
	"github.com/sqldef/qldb/types"
)

const testDB = "main"

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	st, err := storage.NewEngine("")
	require.NoError(t, err)
	require.NoError(t, st.CreateDatabase(testDB))
	require.NoError(t, st.UseDatabase(testDB))
	return New(st, index.NewManager(), txn.NewManager())
}

func mustStmt(t *testing.T, sql string) ast.Statement {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	return stmt
}

func exec(t *testing.T, e *Executor, sql string) *QueryResult {
	t.Helper()
	return e.Execute(testDB, mustStmt(t, sql), 0)
}

func requireOK(t *testing.T, res *QueryResult) *QueryResult {
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

// TestExecCRUDAndPrimaryKey drives CREATE TABLE/INSERT/SELECT/UPDATE/DELETE
// straight through the executor, bypassing the session/transaction layer.
func TestExecCRUDAndPrimaryKey(t *testing.T) {
	e := newTestExecutor(t)

	requireOK(t, exec(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, exec(t, e, `INSERT INTO users (id, name) VALUES (1, 'alice')`))
	requireOK(t, exec(t, e, `INSERT INTO users (id, name) VALUES (2, 'bob')`))

	res := requireOK(t, exec(t, e, `SELECT id, name FROM users WHERE id = 2`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Str("bob"), res.Rows[0]["name"])

	requireOK(t, exec(t, e, `UPDATE users SET name = 'bobby' WHERE id = 2`))
	res = requireOK(t, exec(t, e, `SELECT name FROM users WHERE id = 2`))
	assert.Equal(t, types.Str("bobby"), res.Rows[0]["name"])

	requireOK(t, exec(t, e, `DELETE FROM users WHERE id = 1`))
	res = requireOK(t, exec(t, e, `SELECT id FROM users`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Decimal("2"), res.Rows[0]["id"])
}

// TestExecUniqueViolation checks that an inline UNIQUE column rejects a
// duplicate value and leaves the prior row untouched.
func TestExecUniqueViolation(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE users (id INT PRIMARY KEY, email VARCHAR(64) UNIQUE)`))
	requireOK(t, exec(t, e, `INSERT INTO users (id, email) VALUES (1, 'a@example.com')`))

	res := exec(t, e, `INSERT INTO users (id, email) VALUES (2, 'a@example.com')`)
	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, dberrors.UniqueViolation, res.Error.Code)

	res = requireOK(t, exec(t, e, `SELECT id FROM users`))
	require.Len(t, res.Rows, 1)
}

// TestExecForeignKeyCascadeDelete checks that deleting a parent row
// cascades to referencing child rows via an ON DELETE CASCADE foreign key.
func TestExecForeignKeyCascadeDelete(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE authors (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, exec(t, e, `CREATE TABLE books (id INT PRIMARY KEY, author_id INT, title VARCHAR(64),
		FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE)`))

	requireOK(t, exec(t, e, `INSERT INTO authors (id, name) VALUES (1, 'king')`))
	requireOK(t, exec(t, e, `INSERT INTO books (id, author_id, title) VALUES (1, 1, 'it')`))
	requireOK(t, exec(t, e, `INSERT INTO books (id, author_id, title) VALUES (2, 1, 'misery')`))

	requireOK(t, exec(t, e, `DELETE FROM authors WHERE id = 1`))

	res := requireOK(t, exec(t, e, `SELECT id FROM books`))
	assert.Len(t, res.Rows, 0)
}

// TestExecForeignKeyRestrict checks that a RESTRICT (the default) foreign
// key blocks deleting a parent row that still has children.
func TestExecForeignKeyRestrict(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE authors (id INT PRIMARY KEY)`))
	requireOK(t, exec(t, e, `CREATE TABLE books (id INT PRIMARY KEY, author_id INT,
		FOREIGN KEY (author_id) REFERENCES authors(id))`))
	requireOK(t, exec(t, e, `INSERT INTO authors (id) VALUES (1)`))
	requireOK(t, exec(t, e, `INSERT INTO books (id, author_id) VALUES (1, 1)`))

	res := exec(t, e, `DELETE FROM authors WHERE id = 1`)
	require.False(t, res.Success)
	require.NotNil(t, res.Error)
}

// TestExecTransactionUndoLog checks that the executor logs one inverse-
// applicable entry per mutation, retrievable by rolling the transaction
// back through the manager.
func TestExecTransactionUndoLog(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE counters (id INT PRIMARY KEY, n INT)`))

	tx := e.Txns.Begin()
	res := e.Execute(testDB, mustStmt(t, `INSERT INTO counters (id, n) VALUES (1, 0)`), tx)
	requireOK(t, res)
	res = e.Execute(testDB, mustStmt(t, `UPDATE counters SET n = 5 WHERE id = 1`), tx)
	requireOK(t, res)

	entries, err := e.Txns.Rollback(tx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, txn.OpUpdate, entries[0].Kind)
	assert.Equal(t, "counters", entries[0].Table)
	assert.Equal(t, txn.OpInsert, entries[1].Kind)
}

// TestExecGroupByAggregate checks GROUP BY + SUM through the executor
// directly.
func TestExecGroupByAggregate(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE sales (id INT PRIMARY KEY, region VARCHAR(32), amount INT)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, region, amount) VALUES (1, 'east', 10)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, region, amount) VALUES (2, 'east', 20)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, region, amount) VALUES (3, 'west', 5)`))

	res := requireOK(t, exec(t, e, `SELECT region, SUM(amount) FROM sales GROUP BY region ORDER BY region`))
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Str("east"), res.Rows[0]["region"])
	assert.Equal(t, types.Float(30), res.Rows[0]["sum"])
}

// TestExecWindowRowNumber checks ROW_NUMBER() OVER (PARTITION BY ... ORDER
// BY ...) through the executor directly.
func TestExecWindowRowNumber(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE sales (id INT PRIMARY KEY, region VARCHAR(32), amount INT)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, region, amount) VALUES (1, 'east', 10)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, region, amount) VALUES (2, 'east', 20)`))

	res := requireOK(t, exec(t, e,
		`SELECT id, ROW_NUMBER() OVER (PARTITION BY region ORDER BY amount DESC) AS rn FROM sales ORDER BY rn`))
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Int(1), res.Rows[0]["rn"])
	assert.Equal(t, types.Decimal("2"), res.Rows[0]["id"])
}

// TestExecJoin checks an INNER JOIN across two tables through the
// executor, joining on the users table's primary key.
func TestExecJoin(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, exec(t, e, `CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, total INT)`))
	requireOK(t, exec(t, e, `INSERT INTO users (id, name) VALUES (1, 'alice')`))
	requireOK(t, exec(t, e, `INSERT INTO orders (id, user_id, total) VALUES (1, 1, 100)`))
	requireOK(t, exec(t, e, `INSERT INTO orders (id, user_id, total) VALUES (2, 1, 50)`))

	res := requireOK(t, exec(t, e,
		`SELECT u.name, o.total FROM users u INNER JOIN orders o ON o.user_id = u.id ORDER BY o.total`))
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Decimal("50"), res.Rows[0]["total"])
	assert.Equal(t, types.Str("alice"), res.Rows[0]["name"])
}

// TestExecTransactionControlRejected checks that BEGIN/COMMIT/ROLLBACK
// reach Execute only by misuse — the session layer is supposed to
// intercept them before the executor ever sees them.
func TestExecTransactionControlRejected(t *testing.T) {
	e := newTestExecutor(t)
	res := e.Execute(testDB, ast.Begin{}, 0)
	require.False(t, res.Success)
	assert.Equal(t, dberrors.Internal, res.Error.Code)
}

// TestExecSubqueryIn checks membership against an uncorrelated subquery,
// including the NOT IN case.
func TestExecSubqueryIn(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE authors (id INT PRIMARY KEY, name VARCHAR(64))`))
	requireOK(t, exec(t, e, `CREATE TABLE books (id INT PRIMARY KEY, author_id INT)`))
	requireOK(t, exec(t, e, `INSERT INTO authors (id, name) VALUES (1, 'king')`))
	requireOK(t, exec(t, e, `INSERT INTO authors (id, name) VALUES (2, 'pratchett')`))
	requireOK(t, exec(t, e, `INSERT INTO books (id, author_id) VALUES (1, 1)`))

	res := requireOK(t, exec(t, e, `SELECT name FROM authors WHERE id IN (SELECT author_id FROM books)`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Str("king"), res.Rows[0]["name"])

	res = requireOK(t, exec(t, e, `SELECT name FROM authors WHERE id NOT IN (SELECT author_id FROM books)`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Str("pratchett"), res.Rows[0]["name"])
}

// TestExecSubqueryExists checks EXISTS/NOT EXISTS against an uncorrelated
// subquery.
func TestExecSubqueryExists(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE books (id INT PRIMARY KEY)`))

	res := requireOK(t, exec(t, e, `SELECT 1 FROM books WHERE EXISTS (SELECT id FROM books)`))
	assert.Len(t, res.Rows, 0)

	res = requireOK(t, exec(t, e, `SELECT 1 WHERE NOT EXISTS (SELECT id FROM books)`))
	assert.Len(t, res.Rows, 1)

	requireOK(t, exec(t, e, `INSERT INTO books (id) VALUES (1)`))
	res = requireOK(t, exec(t, e, `SELECT 1 WHERE EXISTS (SELECT id FROM books)`))
	assert.Len(t, res.Rows, 1)
}

// TestExecSubqueryQuantified checks "= ANY(...)" and "> ALL(...)" against
// an uncorrelated subquery.
func TestExecSubqueryQuantified(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE sales (id INT PRIMARY KEY, amount INT)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, amount) VALUES (1, 10)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, amount) VALUES (2, 20)`))
	requireOK(t, exec(t, e, `INSERT INTO sales (id, amount) VALUES (3, 30)`))

	res := requireOK(t, exec(t, e, `SELECT id FROM sales WHERE amount = ANY (SELECT amount FROM sales WHERE amount >= 20) ORDER BY id`))
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Decimal("2"), res.Rows[0]["id"])

	res = requireOK(t, exec(t, e, `SELECT id FROM sales WHERE amount > ALL (SELECT amount FROM sales WHERE amount < 20)`))
	require.Len(t, res.Rows, 2)
}

// TestExecForeignKeyOnUpdateCascade checks that updating a referenced
// parent column propagates to children via ON UPDATE CASCADE.
func TestExecForeignKeyOnUpdateCascade(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE authors (id INT PRIMARY KEY)`))
	requireOK(t, exec(t, e, `CREATE TABLE books (id INT PRIMARY KEY, author_id INT,
		FOREIGN KEY (author_id) REFERENCES authors(id) ON UPDATE CASCADE)`))
	requireOK(t, exec(t, e, `INSERT INTO authors (id) VALUES (1)`))
	requireOK(t, exec(t, e, `INSERT INTO books (id, author_id) VALUES (1, 1)`))

	requireOK(t, exec(t, e, `UPDATE authors SET id = 2 WHERE id = 1`))

	res := requireOK(t, exec(t, e, `SELECT author_id FROM books`))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Decimal("2"), res.Rows[0]["author_id"])
}

// TestExecForeignKeyOnUpdateRestrict checks that a RESTRICT (the default)
// ON UPDATE action blocks changing a referenced parent column that still
// has children.
func TestExecForeignKeyOnUpdateRestrict(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE authors (id INT PRIMARY KEY)`))
	requireOK(t, exec(t, e, `CREATE TABLE books (id INT PRIMARY KEY, author_id INT,
		FOREIGN KEY (author_id) REFERENCES authors(id))`))
	requireOK(t, exec(t, e, `INSERT INTO authors (id) VALUES (1)`))
	requireOK(t, exec(t, e, `INSERT INTO books (id, author_id) VALUES (1, 1)`))

	res := exec(t, e, `UPDATE authors SET id = 2 WHERE id = 1`)
	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, dberrors.FKViolation, res.Error.Code)
}

// TestExecTransactionUndoLogCapturesDelete checks that deleting a row under
// a transaction logs an OpDelete entry carrying the row's prior contents
// (the engine layer's undoEntry is what actually replays this to restore
// the row on rollback; see engine_test.go's rollback-of-delete coverage).
func TestExecTransactionUndoLogCapturesDelete(t *testing.T) {
	e := newTestExecutor(t)
	requireOK(t, exec(t, e, `CREATE TABLE counters (id INT PRIMARY KEY, n INT)`))
	requireOK(t, exec(t, e, `INSERT INTO counters (id, n) VALUES (1, 7)`))

	tx := e.Txns.Begin()
	requireOK(t, e.Execute(testDB, mustStmt(t, `DELETE FROM counters WHERE id = 1`), tx))

	entries, err := e.Txns.Rollback(tx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, txn.OpDelete, entries[0].Kind)
	assert.Equal(t, types.Decimal("7"), entries[0].Before["n"])
}
