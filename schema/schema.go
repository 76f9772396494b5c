package schema

import (
	"fmt"
	"time"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// ReferentialAction is an alias of ast.ReferentialAction, so foreign keys
// converted from the AST (FromCreateTable) keep their actions unchanged.
type ReferentialAction = ast.ReferentialAction

const (
	NoAction   = ast.NoAction
	Restrict   = ast.Restrict
	Cascade    = ast.Cascade
	SetNull    = ast.SetNull
	SetDefault = ast.SetDefault
)

// ForeignKey is a column-level or table-level FK descriptor (spec §3).
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   ReferentialAction
	OnUpdate   ReferentialAction
}

// Index is a per-table index descriptor (spec §3/§4.5).
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// Column is a single column descriptor (spec §3).
type Column struct {
	Name          string
	Type          DataType
	NotNull       bool
	Default       ast.Expr
	PrimaryKey    bool
	Unique        bool
	AutoIncrement bool
	Comment       string
	FK            *ForeignKey
}

// Table is a full table schema (spec §3).
type Table struct {
	Name        string
	Columns     []Column
	Indexes     []Index
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Engine      string
	Charset     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ColumnNames returns the ordered list of column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name, nil if absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Index looks up an index by name, nil if absent.
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// AutoIncrementColumn returns the name of the table's auto-increment
// column, if any.
func (t *Table) AutoIncrementColumn() (string, bool) {
	for _, c := range t.Columns {
		if c.AutoIncrement {
			return c.Name, true
		}
	}
	return "", false
}

// Validate checks the column/PK/enum invariants of spec §3 that don't
// require cross-table lookups (FK target existence is checked at CREATE
// TABLE / ALTER TABLE time by the executor, which has catalog access).
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	autoIncCount := 0
	for _, c := range t.Columns {
		if seen[c.Name] {
			return dberrors.New(dberrors.Internal, "duplicate column name %q in table %q", c.Name, t.Name)
		}
		seen[c.Name] = true
		if c.AutoIncrement {
			autoIncCount++
		}
		if (c.Type.Family == FamilyEnum || c.Type.Family == FamilySet) && len(c.Type.Values) == 0 {
			return dberrors.New(dberrors.Internal, "enum/set column %q must carry a nonempty value list", c.Name)
		}
	}
	if autoIncCount > 1 {
		return dberrors.New(dberrors.Internal, "table %q may have at most one auto-increment column", t.Name)
	}
	if autoIncCount == 1 {
		name, _ := t.AutoIncrementColumn()
		if !containsStr(t.PrimaryKey, name) {
			return dberrors.New(dberrors.Internal, "auto-increment column %q must participate in the primary key", name)
		}
	}
	return nil
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// FromCreateTable converts a parsed CreateTable statement into a Table
// schema (spec §4.7's "CREATE TABLE: store the schema").
func FromCreateTable(ct ast.CreateTable) (*Table, error) {
	t := &Table{Name: ct.Table, Engine: ct.Engine, Charset: ct.Charset, CreatedAt: time.Time{}, UpdatedAt: time.Time{}}

	for _, cd := range ct.Columns {
		col, err := columnFromAST(cd)
		if err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, col)
		if cd.PrimaryKey {
			t.PrimaryKey = append(t.PrimaryKey, cd.Name)
		}
		if cd.Unique {
			t.Indexes = append(t.Indexes, Index{Name: fmt.Sprintf("uq_%s_%s", ct.Table, cd.Name), Columns: []string{cd.Name}, Unique: true})
		}
		if cd.FK != nil {
			t.ForeignKeys = append(t.ForeignKeys, foreignKeyFromAST(*cd.FK))
		}
	}

	if len(ct.PrimaryKey) > 0 {
		t.PrimaryKey = append(t.PrimaryKey, ct.PrimaryKey...)
	}

	for _, cols := range ct.Uniques {
		t.Indexes = append(t.Indexes, Index{Name: fmt.Sprintf("uq_%s_%s", ct.Table, joinCols(cols)), Columns: cols, Unique: true})
	}
	for _, idx := range ct.Indexes {
		name := idx.Name
		if name == "" {
			name = fmt.Sprintf("idx_%s_%s", ct.Table, joinCols(idx.Columns))
		}
		t.Indexes = append(t.Indexes, Index{Name: name, Columns: idx.Columns, Unique: idx.Unique})
	}
	for _, fk := range ct.ForeignKeys {
		t.ForeignKeys = append(t.ForeignKeys, foreignKeyFromAST(fk))
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func columnFromAST(cd ast.ColumnDef) (Column, error) {
	fam, ok := FamilyFromName(cd.Type.Name)
	if !ok {
		return Column{}, dberrors.New(dberrors.TypeMismatch, "unknown type %q for column %q", cd.Type.Name, cd.Name)
	}
	dt := DataType{Family: fam, Length: cd.Type.Length, Precision: cd.Type.Precision, Scale: cd.Type.Scale, Values: cd.Type.Values}
	col := Column{
		Name: cd.Name, Type: dt, NotNull: cd.NotNull, Default: cd.Default,
		PrimaryKey: cd.PrimaryKey, Unique: cd.Unique, AutoIncrement: cd.AutoIncrement,
		Comment: cd.Comment,
	}
	if cd.FK != nil {
		fk := foreignKeyFromAST(*cd.FK)
		col.FK = &fk
	}
	return col, nil
}

func foreignKeyFromAST(fk ast.ForeignKeyDef) ForeignKey {
	return ForeignKey{
		Columns: fk.Columns, RefTable: fk.RefTable, RefColumns: fk.RefColumns,
		OnDelete: fk.OnDelete, OnUpdate: fk.OnUpdate,
	}
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += "_"
		}
		out += c
	}
	return out
}

// DefaultValue evaluates a column's constant DEFAULT expression (literal
// only; the executor resolves non-literal defaults like UUID generation).
func DefaultValue(col *Column) (types.Value, bool) {
	lit, ok := col.Default.(ast.Literal)
	if !ok {
		return types.Value{}, false
	}
	if lit.IsNil {
		return types.Null(), true
	}
	switch lit.Kind {
	case ast.LitString:
		return types.Str(lit.Text), true
	case ast.LitNumber:
		return types.Decimal(lit.Text), true
	default:
		return types.Value{}, false
	}
}
