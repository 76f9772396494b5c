package executor

import (
	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/index"
	"github.com/sqldef/qldb/storage"
	"github.com/sqldef/qldb/txn"
)

// Executor wires storage, the index manager, and the transaction manager
// together to run one parsed statement (spec §4.7).
type Executor struct {
	Storage *storage.Engine
	Indexes *index.Manager
	Txns    *txn.Manager
}

// New creates an Executor over the given components.
func New(st *storage.Engine, idx *index.Manager, tx *txn.Manager) *Executor {
	return &Executor{Storage: st, Indexes: idx, Txns: tx}
}

// Execute runs one statement against database db under transaction tx (0
// means auto-commit; the caller is expected to have begun/will commit
// around this call per its own policy).
func (e *Executor) Execute(db string, stmt ast.Statement, tx txn.TxnID) *QueryResult {
	switch s := stmt.(type) {
	case ast.Select:
		rows, cols, err := e.execSelect(db, &s)
		if err != nil {
			return errResult(err)
		}
		return okResult(rows, cols)
	case ast.Insert:
		return e.execInsert(db, s, tx)
	case ast.Update:
		return e.execUpdate(db, s, tx)
	case ast.Delete:
		return e.execDelete(db, s, tx)
	case ast.CreateTable:
		return e.execCreateTable(db, s)
	case ast.DropTable:
		return e.execDropTable(db, s)
	case ast.AlterTable:
		return e.execAlterTable(db, s)
	case ast.CreateIndex:
		return e.execCreateIndex(db, s)
	case ast.DropIndex:
		return e.execDropIndex(db, s)
	case ast.CreateDatabase:
		return e.execCreateDatabase(s)
	case ast.DropDatabase:
		return e.execDropDatabase(s)
	case ast.Use:
		return e.execUse(s)
	case ast.Truncate:
		return e.execTruncate(db, s, tx)
	case ast.Begin, ast.Commit, ast.Rollback, ast.Savepoint, ast.ReleaseSavepoint:
		return errResult(dberrors.New(dberrors.Internal, "transaction control statements are handled by the session layer, not the executor"))
	case ast.SetTransactionIsolation:
		// spec.md §9 Open Question 2: parsed and accepted, no isolation
		// semantics are implemented (no MVCC, a non-goal).
		return okDML(0, 0)
	default:
		return errResult(dberrors.New(dberrors.Internal, "unsupported statement type %T", stmt))
	}
}

func (e *Executor) execCreateDatabase(s ast.CreateDatabase) *QueryResult {
	if s.IfNotExists {
		if err := e.Storage.CreateDatabase(s.Name); err != nil {
			return okDML(0, 0)
		}
		return okDML(0, 0)
	}
	if err := e.Storage.CreateDatabase(s.Name); err != nil {
		return errResult(err)
	}
	return okDML(0, 0)
}

func (e *Executor) execDropDatabase(s ast.DropDatabase) *QueryResult {
	if err := e.Storage.DropDatabase(s.Name); err != nil {
		if s.IfExists {
			return okDML(0, 0)
		}
		return errResult(err)
	}
	return okDML(0, 0)
}

func (e *Executor) execUse(s ast.Use) *QueryResult {
	if err := e.Storage.UseDatabase(s.Database); err != nil {
		return errResult(err)
	}
	return okDML(0, 0)
}
