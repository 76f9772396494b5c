package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/parser"
)

func mustCreateTable(t *testing.T, sql string) ast.CreateTable {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	ct, ok := stmt.(ast.CreateTable)
	require.True(t, ok)
	return ct
}

func TestFromCreateTableBasicColumns(t *testing.T) {
	ct := mustCreateTable(t, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(64) NOT NULL)`)
	tbl, err := FromCreateTable(ct)
	require.NoError(t, err)

	assert.Equal(t, "users", tbl.Name)
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey)
	col := tbl.Column("name")
	require.NotNil(t, col)
	assert.True(t, col.NotNull)
	assert.Equal(t, FamilyVarchar, col.Type.Family)
	assert.Equal(t, 64, col.Type.Length)
}

// TestFromCreateTableInlineUniqueBuildsIndex guards against the inline
// UNIQUE column annotation being recorded on the Column but never turned
// into an enforceable index.
func TestFromCreateTableInlineUniqueBuildsIndex(t *testing.T) {
	ct := mustCreateTable(t, `CREATE TABLE users (id INT PRIMARY KEY, email VARCHAR(64) UNIQUE)`)
	tbl, err := FromCreateTable(ct)
	require.NoError(t, err)

	require.Len(t, tbl.Indexes, 1)
	idx := tbl.Indexes[0]
	assert.True(t, idx.Unique)
	assert.Equal(t, []string{"email"}, idx.Columns)
}

func TestFromCreateTableTableLevelUniqueAndForeignKey(t *testing.T) {
	ct := mustCreateTable(t, `CREATE TABLE books (
		id INT PRIMARY KEY,
		isbn VARCHAR(32),
		author_id INT,
		UNIQUE (isbn),
		FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE
	)`)
	tbl, err := FromCreateTable(ct)
	require.NoError(t, err)

	require.Len(t, tbl.Indexes, 1)
	assert.True(t, tbl.Indexes[0].Unique)
	assert.Equal(t, []string{"isbn"}, tbl.Indexes[0].Columns)

	require.Len(t, tbl.ForeignKeys, 1)
	fk := tbl.ForeignKeys[0]
	assert.Equal(t, "authors", fk.RefTable)
	assert.Equal(t, Cascade, fk.OnDelete)
}

func TestValidateRejectsDuplicateColumns(t *testing.T) {
	tbl := &Table{Name: "t", Columns: []Column{
		{Name: "id", Type: DataType{Family: FamilyInt}},
		{Name: "id", Type: DataType{Family: FamilyInt}},
	}}
	assert.Error(t, tbl.Validate())
}

func TestValidateRejectsMultipleAutoIncrement(t *testing.T) {
	tbl := &Table{
		Name:       "t",
		PrimaryKey: []string{"a", "b"},
		Columns: []Column{
			{Name: "a", Type: DataType{Family: FamilyInt}, AutoIncrement: true},
			{Name: "b", Type: DataType{Family: FamilyInt}, AutoIncrement: true},
		},
	}
	assert.Error(t, tbl.Validate())
}

func TestValidateRequiresAutoIncrementInPrimaryKey(t *testing.T) {
	tbl := &Table{
		Name:       "t",
		PrimaryKey: []string{"b"},
		Columns: []Column{
			{Name: "a", Type: DataType{Family: FamilyInt}, AutoIncrement: true},
			{Name: "b", Type: DataType{Family: FamilyInt}},
		},
	}
	assert.Error(t, tbl.Validate())
}

func TestFamilyFromName(t *testing.T) {
	f, ok := FamilyFromName("VARCHAR")
	assert.True(t, ok)
	assert.Equal(t, FamilyVarchar, f)

	_, ok = FamilyFromName("NOT_A_TYPE")
	assert.False(t, ok)
}

func TestCompatibleFamilies(t *testing.T) {
	assert.True(t, Compatible(FamilyInt, FamilyFloat))
	assert.True(t, Compatible(FamilyVarchar, FamilyText))
	assert.False(t, Compatible(FamilyInt, FamilyVarchar))
}

func TestDataTypeString(t *testing.T) {
	assert.Equal(t, "VARCHAR(64)", DataType{Family: FamilyVarchar, Length: 64}.String())
	assert.Equal(t, "DECIMAL(10,2)", DataType{Family: FamilyDecimal, Precision: 10, Scale: 2}.String())
	assert.Equal(t, "INT", DataType{Family: FamilyInt}.String())
}
