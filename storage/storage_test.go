package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/schema"
	"github.com/sqldef/qldb/types"
)

func testTable(name string) *schema.Table {
	return &schema.Table{
		Name: name,
		Columns: []schema.Column{
			{Name: "id", Type: schema.DataType{Family: schema.FamilyInt}, AutoIncrement: true, PrimaryKey: true, NotNull: true},
			{Name: "name", Type: schema.DataType{Family: schema.FamilyVarchar, Length: 64}},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestCreateTableAndInsertFillsAutoIncrement(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	db := e.CurrentDatabase()
	require.NoError(t, e.CreateTable(db, testTable("users")))

	id, row, err := e.Insert(db, "users", types.Row{"name": types.Str("alice")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, types.Int(1), row["id"])

	id2, row2, err := e.Insert(db, "users", types.Row{"name": types.Str("bob")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)
	assert.Equal(t, types.Int(2), row2["id"])
}

func TestUpdateAndDeleteRow(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	db := e.CurrentDatabase()
	require.NoError(t, e.CreateTable(db, testTable("users")))

	id, row, err := e.Insert(db, "users", types.Row{"name": types.Str("alice")})
	require.NoError(t, err)

	row["name"] = types.Str("alicia")
	require.NoError(t, e.UpdateRow(db, "users", id, row))

	got, ok := e.GetRow(db, "users", id)
	require.True(t, ok)
	assert.Equal(t, types.Str("alicia"), got["name"])

	require.NoError(t, e.DeleteRow(db, "users", id))
	_, ok = e.GetRow(db, "users", id)
	assert.False(t, ok)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	e1, err := NewEngine(dir)
	require.NoError(t, err)
	db := e1.CurrentDatabase()
	require.NoError(t, e1.CreateTable(db, testTable("users")))
	_, _, err = e1.Insert(db, "users", types.Row{"name": types.Str("alice")})
	require.NoError(t, err)

	e2, err := NewEngine(dir)
	require.NoError(t, err)
	rows, err := e2.AllRows(db, "users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Str("alice"), rows[0].Row["name"])
}

func TestDropTableRemovesRows(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	db := e.CurrentDatabase()
	require.NoError(t, e.CreateTable(db, testTable("users")))
	require.NoError(t, e.DropTable(db, "users"))

	_, ok := e.GetSchema(db, "users")
	assert.False(t, ok)
}

func TestSelectWithPredicate(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	db := e.CurrentDatabase()
	require.NoError(t, e.CreateTable(db, testTable("users")))
	_, _, _ = e.Insert(db, "users", types.Row{"name": types.Str("alice")})
	_, _, _ = e.Insert(db, "users", types.Row{"name": types.Str("bob")})

	rows, err := e.Select(db, "users", func(r types.Row) bool {
		return r["name"] == types.Str("bob")
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Str("bob"), rows[0].Row["name"])
}

func TestCreateDatabaseAndUse(t *testing.T) {
	e, err := NewEngine("")
	require.NoError(t, err)
	require.NoError(t, e.CreateDatabase("analytics"))
	require.NoError(t, e.UseDatabase("analytics"))
	assert.Equal(t, "analytics", e.CurrentDatabase())
	assert.Contains(t, e.ListDatabases(), "analytics")
}
