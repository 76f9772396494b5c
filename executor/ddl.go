package executor

import (
	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/index"
	"github.com/sqldef/qldb/schema"
	"github.com/sqldef/qldb/txn"
)

// execCreateTable stores the schema and creates a synthetic primary-key
// index pk_<table> plus every UNIQUE/INDEX declaration (spec §4.7).
func (e *Executor) execCreateTable(db string, ct ast.CreateTable) *QueryResult {
	if ct.IfNotExists {
		if _, ok := e.Storage.GetSchema(db, ct.Table); ok {
			return okDML(0, 0)
		}
	}

	t, err := schema.FromCreateTable(ct)
	if err != nil {
		return errResult(err)
	}
	for _, fk := range t.ForeignKeys {
		if err := e.validateForeignKeyTarget(db, fk); err != nil {
			return errResult(err)
		}
	}

	if err := e.Storage.CreateTable(db, t); err != nil {
		return errResult(err)
	}

	if len(t.PrimaryKey) > 0 {
		if _, err := e.Indexes.CreateIndex(t.Name, "pk_"+t.Name, t.PrimaryKey, true, index.KindPrimary, 50); err != nil {
			return errResult(err)
		}
	}
	for _, idx := range t.Indexes {
		kind := index.KindSecondary
		if idx.Primary {
			kind = index.KindPrimary
		}
		if _, err := e.Indexes.CreateIndex(t.Name, idx.Name, idx.Columns, idx.Unique, kind, 50); err != nil {
			return errResult(err)
		}
	}
	return okDML(0, 0)
}

func (e *Executor) execDropTable(db string, dt ast.DropTable) *QueryResult {
	if err := e.Storage.DropTable(db, dt.Table); err != nil {
		if dt.IfExists {
			return okDML(0, 0)
		}
		return errResult(err)
	}
	e.Indexes.DropTableIndexes(dt.Table)
	return okDML(0, 0)
}

func (e *Executor) execCreateIndex(db string, ci ast.CreateIndex) *QueryResult {
	t, ok := e.Storage.GetSchema(db, ci.Table)
	if !ok {
		return errResult(dberrors.New(dberrors.SchemaMissing, "table %q does not exist", ci.Table))
	}
	for _, col := range ci.Columns {
		if t.Column(col) == nil {
			return errResult(dberrors.New(dberrors.ColumnMissing, "column %q does not exist on table %q", col, ci.Table))
		}
	}

	rows, err := e.Storage.AllRows(db, ci.Table)
	if err != nil {
		return errResult(err)
	}

	ix, err := e.Indexes.CreateIndex(ci.Table, ci.Name, ci.Columns, ci.Unique, index.KindSecondary, 50)
	if err != nil {
		return errResult(err)
	}
	for _, r := range rows {
		if err := ix.Add(ix.Key(r.Row), r.ID); err != nil {
			e.Indexes.DropIndex(ci.Table, ci.Name)
			return errResult(err)
		}
	}

	t.Indexes = append(t.Indexes, schema.Index{Name: ci.Name, Columns: ci.Columns, Unique: ci.Unique})
	if err := e.Storage.SetSchema(db, ci.Table, t); err != nil {
		return errResult(err)
	}
	return okDML(0, 0)
}

func (e *Executor) execDropIndex(db string, di ast.DropIndex) *QueryResult {
	t, ok := e.Storage.GetSchema(db, di.Table)
	if !ok {
		return errResult(dberrors.New(dberrors.SchemaMissing, "table %q does not exist", di.Table))
	}
	if err := e.Indexes.DropIndex(di.Table, di.Name); err != nil {
		return errResult(err)
	}
	filtered := t.Indexes[:0]
	for _, idx := range t.Indexes {
		if idx.Name != di.Name {
			filtered = append(filtered, idx)
		}
	}
	t.Indexes = filtered
	if err := e.Storage.SetSchema(db, di.Table, t); err != nil {
		return errResult(err)
	}
	return okDML(0, 0)
}

func (e *Executor) execTruncate(db string, tr ast.Truncate, _ txn.TxnID) *QueryResult {
	rows, err := e.Storage.AllRows(db, tr.Table)
	if err != nil {
		return errResult(err)
	}
	for _, r := range rows {
		e.Indexes.RemoveRowFromAll(tr.Table, r.Row, r.ID)
		if err := e.Storage.DeleteRow(db, tr.Table, r.ID); err != nil {
			return errResult(err)
		}
	}
	return okDML(len(rows), 0)
}

// execAlterTable rewrites the schema and, for column/PK renames, every
// row's affected key plus each index's column list (spec §4.7).
func (e *Executor) execAlterTable(db string, at ast.AlterTable) *QueryResult {
	t, ok := e.Storage.GetSchema(db, at.Table)
	if !ok {
		return errResult(dberrors.New(dberrors.SchemaMissing, "table %q does not exist", at.Table))
	}

	switch a := at.Action.(type) {
	case ast.AddColumn:
		col := columnFromDef(a.Column)
		t.Columns = append(t.Columns, col)
		if def, ok := schema.DefaultValue(&col); ok {
			rows, err := e.Storage.AllRows(db, at.Table)
			if err != nil {
				return errResult(err)
			}
			for _, r := range rows {
				r.Row[col.Name] = def
				if err := e.Storage.UpdateRow(db, at.Table, r.ID, r.Row); err != nil {
					return errResult(err)
				}
			}
		}
	case ast.DropColumn:
		kept := t.Columns[:0]
		for _, c := range t.Columns {
			if c.Name != a.Name {
				kept = append(kept, c)
			}
		}
		t.Columns = kept
		rows, err := e.Storage.AllRows(db, at.Table)
		if err != nil {
			return errResult(err)
		}
		for _, r := range rows {
			delete(r.Row, a.Name)
			if err := e.Storage.UpdateRow(db, at.Table, r.ID, r.Row); err != nil {
				return errResult(err)
			}
		}
	case ast.ModifyColumn:
		newCol := columnFromDef(a.Column)
		for i, c := range t.Columns {
			if c.Name == newCol.Name {
				t.Columns[i] = newCol
			}
		}
	case ast.RenameColumn:
		for i, c := range t.Columns {
			if c.Name == a.From {
				t.Columns[i].Name = a.To
			}
		}
		for i, pk := range t.PrimaryKey {
			if pk == a.From {
				t.PrimaryKey[i] = a.To
			}
		}
		for i := range t.Indexes {
			renameCols(t.Indexes[i].Columns, a.From, a.To)
		}
		rows, err := e.Storage.AllRows(db, at.Table)
		if err != nil {
			return errResult(err)
		}
		for _, r := range rows {
			if v, ok := r.Row[a.From]; ok {
				r.Row[a.To] = v
				delete(r.Row, a.From)
				if err := e.Storage.UpdateRow(db, at.Table, r.ID, r.Row); err != nil {
					return errResult(err)
				}
			}
		}
		for _, ix := range e.Indexes.Indexes(at.Table) {
			renameCols(ix.Columns, a.From, a.To)
		}
	case ast.AddIndex:
		if _, err := e.Indexes.CreateIndex(at.Table, a.Index.Name, a.Index.Columns, a.Index.Unique, index.KindSecondary, 50); err != nil {
			return errResult(err)
		}
		t.Indexes = append(t.Indexes, schema.Index{Name: a.Index.Name, Columns: a.Index.Columns, Unique: a.Index.Unique})
	case ast.DropIndex2:
		if err := e.Indexes.DropIndex(at.Table, a.Name); err != nil {
			return errResult(err)
		}
		filtered := t.Indexes[:0]
		for _, idx := range t.Indexes {
			if idx.Name != a.Name {
				filtered = append(filtered, idx)
			}
		}
		t.Indexes = filtered
	case ast.AddPK:
		t.PrimaryKey = a.Columns
		if _, err := e.Indexes.CreateIndex(at.Table, "pk_"+at.Table, a.Columns, true, index.KindPrimary, 50); err != nil {
			return errResult(err)
		}
	case ast.DropPK:
		t.PrimaryKey = nil
		e.Indexes.DropIndex(at.Table, "pk_"+at.Table)
	case ast.AddFK:
		if err := e.validateForeignKeyTarget(db, fkFromDef(a.Name, a.FK)); err != nil {
			return errResult(err)
		}
		t.ForeignKeys = append(t.ForeignKeys, fkFromDef(a.Name, a.FK))
	case ast.DropFK:
		kept := t.ForeignKeys[:0]
		for _, fk := range t.ForeignKeys {
			if fk.Name != a.Name {
				kept = append(kept, fk)
			}
		}
		t.ForeignKeys = kept
	case ast.RenameTable:
		rows, err := e.Storage.AllRows(db, at.Table)
		if err != nil {
			return errResult(err)
		}
		newTable := *t
		newTable.Name = a.To
		if err := e.Storage.CreateTable(db, &newTable); err != nil {
			return errResult(err)
		}
		for _, r := range rows {
			if _, _, err := e.Storage.Insert(db, a.To, r.Row); err != nil {
				return errResult(err)
			}
		}
		if err := e.Storage.DropTable(db, at.Table); err != nil {
			return errResult(err)
		}
		return okDML(0, 0)
	default:
		return errResult(dberrors.New(dberrors.Internal, "unsupported ALTER TABLE action %T", at.Action))
	}

	if err := e.Storage.SetSchema(db, at.Table, t); err != nil {
		return errResult(err)
	}
	return okDML(0, 0)
}

func renameCols(cols []string, from, to string) {
	for i, c := range cols {
		if c == from {
			cols[i] = to
		}
	}
}

func columnFromDef(cd ast.ColumnDef) schema.Column {
	fam, _ := schema.FamilyFromName(cd.Type.Name)
	col := schema.Column{
		Name: cd.Name, Type: schema.DataType{Family: fam, Length: cd.Type.Length, Precision: cd.Type.Precision, Scale: cd.Type.Scale, Values: cd.Type.Values},
		NotNull: cd.NotNull, Default: cd.Default, PrimaryKey: cd.PrimaryKey, Unique: cd.Unique, AutoIncrement: cd.AutoIncrement, Comment: cd.Comment,
	}
	return col
}

func fkFromDef(name string, fk ast.ForeignKeyDef) schema.ForeignKey {
	return schema.ForeignKey{Name: name, Columns: fk.Columns, RefTable: fk.RefTable, RefColumns: fk.RefColumns, OnDelete: fk.OnDelete, OnUpdate: fk.OnUpdate}
}

// validateForeignKeyTarget checks that a foreign key names an existing
// table and column (spec §3's Table schema invariant).
func (e *Executor) validateForeignKeyTarget(db string, fk schema.ForeignKey) error {
	refTable, ok := e.Storage.GetSchema(db, fk.RefTable)
	if !ok {
		return dberrors.New(dberrors.SchemaMissing, "foreign key references unknown table %q", fk.RefTable)
	}
	for i, col := range fk.RefColumns {
		c := refTable.Column(col)
		if c == nil {
			return dberrors.New(dberrors.ColumnMissing, "foreign key references unknown column %q on table %q", col, fk.RefTable)
		}
		if i < len(fk.Columns) {
			_ = c // the referencing column's type is not compared with c's type
		}
	}
	return nil
}
