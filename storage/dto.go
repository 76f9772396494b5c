package storage

import (
	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/schema"
	"github.com/sqldef/qldb/types"
)

// These DTOs are the on-disk catalog/row shapes (spec §4.3's persistence
// contract: "the on-disk format is an implementation detail; the only
// cross-version guarantee is round-trip of the logical data model"). They
// exist because schema.Column.Default is an ast.Expr interface and
// types.Value is a tagged union, neither of which yaml.v3 can marshal
// directly without a concrete, field-based shape.

type columnDTO struct {
	Name          string   `yaml:"name"`
	Family        int      `yaml:"family"`
	Length        int      `yaml:"length,omitempty"`
	Precision     int      `yaml:"precision,omitempty"`
	Scale         int      `yaml:"scale,omitempty"`
	Values        []string `yaml:"values,omitempty"`
	NotNull       bool     `yaml:"not_null,omitempty"`
	HasDefault    bool     `yaml:"has_default,omitempty"`
	DefaultIsNull bool     `yaml:"default_is_null,omitempty"`
	DefaultKind   string   `yaml:"default_kind,omitempty"`
	DefaultText   string   `yaml:"default_text,omitempty"`
	PrimaryKey    bool     `yaml:"primary_key,omitempty"`
	Unique        bool     `yaml:"unique,omitempty"`
	AutoIncrement bool     `yaml:"auto_increment,omitempty"`
	Comment       string   `yaml:"comment,omitempty"`
	FK            *fkDTO   `yaml:"fk,omitempty"`
}

type fkDTO struct {
	Name       string `yaml:"name,omitempty"`
	Columns    []string `yaml:"columns"`
	RefTable   string `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
	OnDelete   int    `yaml:"on_delete"`
	OnUpdate   int    `yaml:"on_update"`
}

type indexDTO struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
	Primary bool     `yaml:"primary"`
}

type tableDTO struct {
	Name        string      `yaml:"name"`
	Columns     []columnDTO `yaml:"columns"`
	Indexes     []indexDTO  `yaml:"indexes"`
	PrimaryKey  []string    `yaml:"primary_key"`
	ForeignKeys []fkDTO     `yaml:"foreign_keys"`
	Engine      string      `yaml:"engine,omitempty"`
	Charset     string      `yaml:"charset,omitempty"`
}

type valueDTO struct {
	Kind  int     `yaml:"kind"`
	Int   int64   `yaml:"int,omitempty"`
	Float float64 `yaml:"float,omitempty"`
	Str   string  `yaml:"str,omitempty"`
	Bool  bool    `yaml:"bool,omitempty"`
}

type rowDTO struct {
	ID     int64               `yaml:"id"`
	Values map[string]valueDTO `yaml:"values"`
}

type tableFileDTO struct {
	Table             tableDTO `yaml:"table"`
	Rows              []rowDTO `yaml:"rows"`
	NextRowID         int64    `yaml:"next_row_id"`
	AutoIncrementNext int64    `yaml:"auto_increment_next"`
}

func toValueDTO(v types.Value) valueDTO {
	return valueDTO{Kind: int(v.Kind), Int: v.Int, Float: v.Float, Str: v.Str, Bool: v.Bool}
}

func fromValueDTO(d valueDTO) types.Value {
	return types.Value{Kind: types.Kind(d.Kind), Int: d.Int, Float: d.Float, Str: d.Str, Bool: d.Bool}
}

func toRowDTO(id int64, row types.Row) rowDTO {
	values := make(map[string]valueDTO, len(row))
	for col, v := range row {
		values[col] = toValueDTO(v)
	}
	return rowDTO{ID: id, Values: values}
}

func fromRowDTO(d rowDTO) (int64, types.Row) {
	row := make(types.Row, len(d.Values))
	for col, v := range d.Values {
		row[col] = fromValueDTO(v)
	}
	return d.ID, row
}

func toFKDTO(fk schema.ForeignKey) fkDTO {
	return fkDTO{Name: fk.Name, Columns: fk.Columns, RefTable: fk.RefTable, RefColumns: fk.RefColumns, OnDelete: int(fk.OnDelete), OnUpdate: int(fk.OnUpdate)}
}

func fromFKDTO(d fkDTO) schema.ForeignKey {
	return schema.ForeignKey{Name: d.Name, Columns: d.Columns, RefTable: d.RefTable, RefColumns: d.RefColumns, OnDelete: schema.ReferentialAction(d.OnDelete), OnUpdate: schema.ReferentialAction(d.OnUpdate)}
}

func toColumnDTO(c schema.Column) columnDTO {
	d := columnDTO{
		Name: c.Name, Family: int(c.Type.Family), Length: c.Type.Length, Precision: c.Type.Precision, Scale: c.Type.Scale,
		Values: c.Type.Values, NotNull: c.NotNull, PrimaryKey: c.PrimaryKey, Unique: c.Unique,
		AutoIncrement: c.AutoIncrement, Comment: c.Comment,
	}
	if c.FK != nil {
		fk := toFKDTO(*c.FK)
		d.FK = &fk
	}
	if lit, ok := c.Default.(ast.Literal); ok {
		d.HasDefault = true
		d.DefaultIsNull = lit.IsNil
		d.DefaultKind = litKindName(lit.Kind)
		d.DefaultText = lit.Text
	}
	return d
}

func fromColumnDTO(d columnDTO) schema.Column {
	col := schema.Column{
		Name: d.Name,
		Type: schema.DataType{Family: schema.Family(d.Family), Length: d.Length, Precision: d.Precision, Scale: d.Scale, Values: d.Values},
		NotNull: d.NotNull, PrimaryKey: d.PrimaryKey, Unique: d.Unique, AutoIncrement: d.AutoIncrement, Comment: d.Comment,
	}
	if d.FK != nil {
		fk := fromFKDTO(*d.FK)
		col.FK = &fk
	}
	if d.HasDefault {
		col.Default = ast.Literal{Kind: litKindFromName(d.DefaultKind), Text: d.DefaultText, IsNil: d.DefaultIsNull}
	}
	return col
}

func litKindName(k ast.LiteralKind) string {
	switch k {
	case ast.LitNumber:
		return "number"
	case ast.LitString:
		return "string"
	case ast.LitBool:
		return "bool"
	default:
		return "null"
	}
}

func litKindFromName(name string) ast.LiteralKind {
	switch name {
	case "number":
		return ast.LitNumber
	case "string":
		return ast.LitString
	case "bool":
		return ast.LitBool
	default:
		return ast.LitNull
	}
}

func toTableDTO(t *schema.Table) tableDTO {
	d := tableDTO{Name: t.Name, PrimaryKey: t.PrimaryKey, Engine: t.Engine, Charset: t.Charset}
	for _, c := range t.Columns {
		d.Columns = append(d.Columns, toColumnDTO(c))
	}
	for _, idx := range t.Indexes {
		d.Indexes = append(d.Indexes, indexDTO{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique, Primary: idx.Primary})
	}
	for _, fk := range t.ForeignKeys {
		d.ForeignKeys = append(d.ForeignKeys, toFKDTO(fk))
	}
	return d
}

func fromTableDTO(d tableDTO) *schema.Table {
	t := &schema.Table{Name: d.Name, PrimaryKey: d.PrimaryKey, Engine: d.Engine, Charset: d.Charset}
	for _, c := range d.Columns {
		t.Columns = append(t.Columns, fromColumnDTO(c))
	}
	for _, idx := range d.Indexes {
		t.Indexes = append(t.Indexes, schema.Index{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique, Primary: idx.Primary})
	}
	for _, fk := range d.ForeignKeys {
		t.ForeignKeys = append(t.ForeignKeys, fromFKDTO(fk))
	}
	return t
}
