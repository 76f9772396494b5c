// Package txn implements the transaction manager (spec §4.6): an
// operation log with savepoints and table-level locks, grounded on the
// teacher's database/concurrent.go (bounded fan-out shape) and
// database.RunDDLs's transaction-then-rollback-on-error flow, generalized
// to a full undo log here.
package txn

import (
	"sync"

	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// OpKind classifies a logged mutation for inverse application on rollback.
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
	OpDelete
)

// LogEntry records one mutation's pre/post row images (spec §4.6).
type LogEntry struct {
	Kind   OpKind
	Table  string
	RowID  int64
	Before types.Row // nil for OpInsert
	After  types.Row // nil for OpDelete
}

// TxnID identifies one active transaction.
type TxnID int64

type transaction struct {
	id         TxnID
	log        []LogEntry
	savepoints map[string]int
	locks      map[string]bool
}

// Manager tracks every active transaction and the table locks they hold.
type Manager struct {
	mu      sync.Mutex
	next    TxnID
	active  map[TxnID]*transaction
	lockOf  map[string]TxnID // table -> holding txn
}

// NewManager creates an empty transaction manager.
func NewManager() *Manager {
	return &Manager{active: make(map[TxnID]*transaction), lockOf: make(map[string]TxnID)}
}

// Begin starts a new transaction and returns its id (spec §4.6).
func (m *Manager) Begin() TxnID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	m.active[id] = &transaction{id: id, savepoints: make(map[string]int), locks: make(map[string]bool)}
	return id
}

func (m *Manager) txn(id TxnID) (*transaction, error) {
	tx, ok := m.active[id]
	if !ok {
		return nil, dberrors.New(dberrors.Internal, "no active transaction %d", id)
	}
	return tx, nil
}

// IsLocked reports whether table is held by a transaction other than
// except (spec §4.6). except may be zero to ask "is it locked at all".
func (m *Manager) IsLocked(table string, except TxnID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	holder, ok := m.lockOf[table]
	return ok && holder != except
}

// Lock acquires table's lock for a transaction, failing with
// LockConflict when another transaction already holds it.
func (m *Manager) Lock(id TxnID, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return err
	}
	if holder, ok := m.lockOf[table]; ok && holder != id {
		return dberrors.New(dberrors.LockConflict, "table %q is locked by another transaction", table)
	}
	m.lockOf[table] = id
	tx.locks[table] = true
	return nil
}

// RecordInsert/RecordUpdate/RecordDelete append an undo log entry (spec
// §4.6). The caller must hold the table's lock already.
func (m *Manager) RecordInsert(id TxnID, table string, rowID int64, after types.Row) error {
	return m.record(id, LogEntry{Kind: OpInsert, Table: table, RowID: rowID, After: after.Clone()})
}

func (m *Manager) RecordUpdate(id TxnID, table string, rowID int64, before, after types.Row) error {
	return m.record(id, LogEntry{Kind: OpUpdate, Table: table, RowID: rowID, Before: before.Clone(), After: after.Clone()})
}

func (m *Manager) RecordDelete(id TxnID, table string, rowID int64, before types.Row) error {
	return m.record(id, LogEntry{Kind: OpDelete, Table: table, RowID: rowID, Before: before.Clone()})
}

func (m *Manager) record(id TxnID, e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return err
	}
	tx.log = append(tx.log, e)
	return nil
}

// Savepoint records the current log length under name (spec §4.6).
func (m *Manager) Savepoint(id TxnID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return err
	}
	tx.savepoints[name] = len(tx.log)
	return nil
}

// ReleaseSavepoint forgets a named mark without discarding log entries.
func (m *Manager) ReleaseSavepoint(id TxnID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return err
	}
	if _, ok := tx.savepoints[name]; !ok {
		return dberrors.New(dberrors.Internal, "no such savepoint %q", name)
	}
	delete(tx.savepoints, name)
	return nil
}

// RollbackToSavepoint truncates the log to the saved length and returns
// the discarded entries in reverse (newest-first) order so the executor
// can undo them (spec §4.6).
func (m *Manager) RollbackToSavepoint(id TxnID, name string) ([]LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return nil, err
	}
	mark, ok := tx.savepoints[name]
	if !ok {
		return nil, dberrors.New(dberrors.Internal, "no such savepoint %q", name)
	}
	discarded := tx.log[mark:]
	reversed := make([]LogEntry, len(discarded))
	for i, e := range discarded {
		reversed[len(discarded)-1-i] = e
	}
	tx.log = tx.log[:mark]
	for savedName, savedMark := range tx.savepoints {
		if savedMark > mark {
			delete(tx.savepoints, savedName)
		}
	}
	return reversed, nil
}

// Commit drops the log and releases every lock held by id.
func (m *Manager) Commit(id TxnID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return err
	}
	m.releaseLocksLocked(tx)
	delete(m.active, id)
	return nil
}

// Rollback returns the full log reversed (newest-first) and releases
// every lock (spec §4.6).
func (m *Manager) Rollback(id TxnID) ([]LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.txn(id)
	if err != nil {
		return nil, err
	}
	reversed := make([]LogEntry, len(tx.log))
	for i, e := range tx.log {
		reversed[len(tx.log)-1-i] = e
	}
	m.releaseLocksLocked(tx)
	delete(m.active, id)
	return reversed, nil
}

func (m *Manager) releaseLocksLocked(tx *transaction) {
	for table := range tx.locks {
		if m.lockOf[table] == tx.id {
			delete(m.lockOf, table)
		}
	}
}
