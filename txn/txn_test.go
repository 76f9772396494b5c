package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

func TestLockConflictAcrossTransactions(t *testing.T) {
	m := NewManager()
	tx1 := m.Begin()
	tx2 := m.Begin()

	require.NoError(t, m.Lock(tx1, "users"))
	err := m.Lock(tx2, "users")
	require.Error(t, err)
	dberr, ok := dberrors.As(err)
	require.True(t, ok)
	assert.Equal(t, dberrors.LockConflict, dberr.Code)

	require.NoError(t, m.Commit(tx1))
	require.NoError(t, m.Lock(tx2, "users"))
}

func TestSameTransactionCanRelock(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, m.Lock(tx, "users"))
	require.NoError(t, m.Lock(tx, "users"))
}

func TestRollbackReturnsLogReversed(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, m.Lock(tx, "users"))
	require.NoError(t, m.RecordInsert(tx, "users", 1, types.Row{"name": types.Str("a")}))
	require.NoError(t, m.RecordInsert(tx, "users", 2, types.Row{"name": types.Str("b")}))

	entries, err := m.Rollback(tx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].RowID)
	assert.Equal(t, int64(1), entries[1].RowID)

	assert.False(t, m.IsLocked("users", 0))
}

func TestSavepointRollbackDiscardsOnlyNewerEntries(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, m.Lock(tx, "users"))
	require.NoError(t, m.RecordInsert(tx, "users", 1, types.Row{"name": types.Str("a")}))
	require.NoError(t, m.Savepoint(tx, "sp1"))
	require.NoError(t, m.RecordInsert(tx, "users", 2, types.Row{"name": types.Str("b")}))
	require.NoError(t, m.RecordInsert(tx, "users", 3, types.Row{"name": types.Str("c")}))

	discarded, err := m.RollbackToSavepoint(tx, "sp1")
	require.NoError(t, err)
	require.Len(t, discarded, 2)
	assert.Equal(t, int64(3), discarded[0].RowID)
	assert.Equal(t, int64(2), discarded[1].RowID)

	entries, err := m.Rollback(tx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].RowID)
}

func TestReleaseSavepointForgetsMark(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, m.Savepoint(tx, "sp1"))
	require.NoError(t, m.ReleaseSavepoint(tx, "sp1"))

	_, err := m.RollbackToSavepoint(tx, "sp1")
	require.Error(t, err)
}

func TestCommitReleasesLocksAndForgetsTransaction(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, m.Lock(tx, "users"))
	require.NoError(t, m.Commit(tx))

	assert.False(t, m.IsLocked("users", 0))
	_, err := m.Rollback(tx)
	require.Error(t, err)
}
