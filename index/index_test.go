package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

func row(id int64, name string) types.Row {
	return types.Row{"id": types.Int(id), "name": types.Str(name)}
}

func TestCreateIndexRejectsDuplicateName(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "idx_name", []string{"name"}, false, KindSecondary, 3)
	require.NoError(t, err)
	_, err = m.CreateIndex("users", "idx_name", []string{"name"}, false, KindSecondary, 3)
	require.Error(t, err)
}

func TestUniqueIndexRejectsDuplicateKey(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "uq_email", []string{"email"}, true, KindSecondary, 3)
	require.NoError(t, err)

	err = m.AddRowToAll("users", types.Row{"email": types.Str("a@example.com")}, 1)
	require.NoError(t, err)

	err = m.AddRowToAll("users", types.Row{"email": types.Str("a@example.com")}, 2)
	require.Error(t, err)
	dberr, ok := dberrors.As(err)
	require.True(t, ok)
	assert.Equal(t, dberrors.UniqueViolation, dberr.Code)
}

func TestAddRemoveRowToAllFanOut(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "idx_name", []string{"name"}, false, KindSecondary, 3)
	require.NoError(t, err)
	_, err = m.CreateIndex("users", "pk_users", []string{"id"}, true, KindPrimary, 3)
	require.NoError(t, err)

	require.NoError(t, m.AddRowToAll("users", row(1, "alice"), 1))
	require.NoError(t, m.AddRowToAll("users", row(2, "bob"), 2))

	byName, _ := m.Get("users", "idx_name")
	ids, ok := byName.Search(types.CompositeKey{types.Str("alice")})
	require.True(t, ok)
	assert.Equal(t, []int64{1}, ids)

	m.RemoveRowFromAll("users", row(1, "alice"), 1)
	_, ok = byName.Search(types.CompositeKey{types.Str("alice")})
	assert.False(t, ok)
}

func TestUpdateRowInAllMovesChangedKeysOnly(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "idx_name", []string{"name"}, false, KindSecondary, 3)
	require.NoError(t, err)
	_, err = m.CreateIndex("users", "pk_users", []string{"id"}, true, KindPrimary, 3)
	require.NoError(t, err)

	require.NoError(t, m.AddRowToAll("users", row(1, "alice"), 1))

	newRow := row(1, "alicia")
	require.NoError(t, m.UpdateRowInAll("users", row(1, "alice"), newRow, 1))

	nameIdx, _ := m.Get("users", "idx_name")
	_, ok := nameIdx.Search(types.CompositeKey{types.Str("alice")})
	assert.False(t, ok)
	ids, ok := nameIdx.Search(types.CompositeKey{types.Str("alicia")})
	require.True(t, ok)
	assert.Equal(t, []int64{1}, ids)

	pkIdx, _ := m.Get("users", "pk_users")
	ids, ok = pkIdx.Search(types.CompositeKey{types.Int(1)})
	require.True(t, ok)
	assert.Equal(t, []int64{1}, ids)
}

func TestFindBestPicksLongestPrefixMatch(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("orders", "idx_user_created", []string{"user_id", "created_at"}, false, KindSecondary, 3)
	require.NoError(t, err)
	_, err = m.CreateIndex("orders", "idx_user", []string{"user_id"}, false, KindSecondary, 3)
	require.NoError(t, err)

	best, ok := m.FindBest("orders", []string{"user_id", "created_at"})
	require.True(t, ok)
	assert.Equal(t, "idx_user_created", best)
}

func TestFindBestFavorsUniqueSingleColumnEquality(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "pk_users", []string{"id"}, true, KindPrimary, 3)
	require.NoError(t, err)
	_, err = m.CreateIndex("users", "idx_wide", []string{"id", "name", "email", "created_at"}, false, KindSecondary, 3)
	require.NoError(t, err)

	best, ok := m.FindBest("users", []string{"id"})
	require.True(t, ok)
	assert.Equal(t, "pk_users", best)
}

func TestDropTableIndexesRemovesEverything(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "idx_name", []string{"name"}, false, KindSecondary, 3)
	require.NoError(t, err)
	m.DropTableIndexes("users")
	assert.Empty(t, m.Indexes("users"))
}

func TestRebuildAllReconstructsIndexesFromRows(t *testing.T) {
	m := NewManager()
	_, err := m.CreateIndex("users", "idx_name", []string{"name"}, false, KindSecondary, 3)
	require.NoError(t, err)

	rows := map[string]map[int64]types.Row{
		"users": {1: row(1, "alice"), 2: row(2, "bob")},
	}
	require.NoError(t, m.RebuildAll(rows, 4))

	ix, _ := m.Get("users", "idx_name")
	ids, ok := ix.Search(types.CompositeKey{types.Str("bob")})
	require.True(t, ok)
	assert.Equal(t, []int64{2}, ids)
}
