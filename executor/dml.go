package executor

import (
	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/schema"
	"github.com/sqldef/qldb/storage"
	"github.com/sqldef/qldb/txn"
	"github.com/sqldef/qldb/types"
)

func (e *Executor) lockTable(tx txn.TxnID, table string) error {
	if tx == 0 {
		return nil
	}
	return e.Txns.Lock(tx, table)
}

// execInsert applies each value tuple in order; IGNORE skips a row that
// fails validation instead of aborting, and a non-IGNORE failure leaves
// every prior row applied and reports it as the error (spec §7).
func (e *Executor) execInsert(db string, s ast.Insert, tx txn.TxnID) *QueryResult {
	t, ok := e.Storage.GetSchema(db, s.Table)
	if !ok {
		return errResult(dberrors.New(dberrors.SchemaMissing, "table %q does not exist", s.Table))
	}
	if err := e.lockTable(tx, s.Table); err != nil {
		return errResult(err)
	}

	columns := s.Columns
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	ctx := &evalContext{ex: e, db: db}

	applied := 0
	var lastID int64
tuples:
	for _, tuple := range s.Values {
		row := make(types.Row, len(columns))
		for i, col := range columns {
			if i >= len(tuple) {
				continue
			}
			v, err := evalScalar(ctx, tuple[i], nil)
			if err != nil {
				if s.Ignore {
					continue tuples
				}
				return errResult(err)
			}
			row[col] = v
		}
		if err := materializeDefaults(ctx, t, row); err != nil {
			if s.Ignore {
				continue
			}
			return errResult(err)
		}
		if err := validateRow(t, row); err != nil {
			if s.Ignore {
				continue
			}
			return errResult(err)
		}
		if err := e.checkForeignKeys(db, t, row); err != nil {
			if s.Ignore {
				continue
			}
			return errResult(err)
		}

		id, stored, err := e.Storage.Insert(db, s.Table, row)
		if err != nil {
			if s.Ignore {
				continue
			}
			return errResult(err)
		}
		if err := e.Indexes.AddRowToAll(s.Table, stored, id); err != nil {
			e.Storage.DeleteRow(db, s.Table, id)
			if s.Ignore {
				continue
			}
			return errResult(err)
		}
		if tx != 0 {
			if err := e.Txns.RecordInsert(tx, s.Table, id, stored); err != nil {
				return errResult(err)
			}
		}
		applied++
		lastID = id
	}
	return okDML(applied, lastID)
}

// materializeDefaults fills any absent/null column with its DEFAULT,
// generating UUID()/NOW() defaults at insert time since schema.DefaultValue
// only resolves constant literals (spec §3's Column.Default).
func materializeDefaults(ctx *evalContext, t *schema.Table, row types.Row) error {
	for _, col := range t.Columns {
		v, present := row[col.Name]
		if present && !v.IsNull() {
			continue
		}
		if col.AutoIncrement {
			continue
		}
		if col.Default == nil {
			continue
		}
		if lit, ok := schema.DefaultValue(&col); ok {
			row[col.Name] = lit
			continue
		}
		dv, err := evalScalar(ctx, col.Default, nil)
		if err != nil {
			return err
		}
		row[col.Name] = dv
	}
	return nil
}

// validateRow enforces NOT NULL (spec §3) for every column lacking an
// auto-increment/default fallback.
func validateRow(t *schema.Table, row types.Row) error {
	for _, col := range t.Columns {
		v, present := row[col.Name]
		if col.NotNull && (!present || v.IsNull()) && !col.AutoIncrement {
			return dberrors.New(dberrors.NotNullViolation, "column %q may not be null", col.Name)
		}
	}
	return nil
}

// checkForeignKeys validates that every non-null FK column combination in
// row resolves to an existing row in the referenced table (spec §3/§8
// scenario 3).
func (e *Executor) checkForeignKeys(db string, t *schema.Table, row types.Row) error {
	for _, fk := range t.ForeignKeys {
		allNull := true
		key := make([]types.Value, len(fk.Columns))
		for i, col := range fk.Columns {
			v := row[col]
			if !v.IsNull() {
				allNull = false
			}
			key[i] = v
		}
		if allNull {
			continue
		}
		refRows, err := e.Storage.AllRows(db, fk.RefTable)
		if err != nil {
			return dberrors.New(dberrors.FKViolation, "foreign key %q references missing table %q", fk.Name, fk.RefTable)
		}
		found := false
		for _, r := range refRows {
			match := true
			for i, refCol := range fk.RefColumns {
				if !types.Equal(r.Row[refCol], key[i]) {
					match = false
					break
				}
			}
			if match {
				found = true
				break
			}
		}
		if !found {
			return dberrors.New(dberrors.FKViolation, "foreign key %q has no matching row in %q", fk.Name, fk.RefTable)
		}
	}
	return nil
}

func (e *Executor) execUpdate(db string, s ast.Update, tx txn.TxnID) *QueryResult {
	t, ok := e.Storage.GetSchema(db, s.Table)
	if !ok {
		return errResult(dberrors.New(dberrors.SchemaMissing, "table %q does not exist", s.Table))
	}
	if err := e.lockTable(tx, s.Table); err != nil {
		return errResult(err)
	}

	rows, err := e.Storage.AllRows(db, s.Table)
	if err != nil {
		return errResult(err)
	}
	ctx := &evalContext{ex: e, db: db}

	affected := 0
	for _, r := range rows {
		if s.Where != nil {
			cond, err := evalScalar(ctx, s.Where, r.Row)
			if err != nil {
				return errResult(err)
			}
			if cond.IsNull() || !truthy(cond) {
				continue
			}
		}
		newRow := r.Row.Clone()
		for _, a := range s.Set {
			v, err := evalScalar(ctx, a.Value, r.Row)
			if err != nil {
				return errResult(err)
			}
			newRow[a.Column] = v
		}
		if err := validateRow(t, newRow); err != nil {
			return errResult(err)
		}
		if err := e.checkForeignKeys(db, t, newRow); err != nil {
			return errResult(err)
		}
		if err := e.applyUpdateReferencingActions(db, s.Table, r, newRow, tx); err != nil {
			return errResult(err)
		}
		if err := e.Indexes.UpdateRowInAll(s.Table, r.Row, newRow, r.ID); err != nil {
			return errResult(err)
		}
		if err := e.Storage.UpdateRow(db, s.Table, r.ID, newRow); err != nil {
			return errResult(err)
		}
		if tx != 0 {
			if err := e.Txns.RecordUpdate(tx, s.Table, r.ID, r.Row, newRow); err != nil {
				return errResult(err)
			}
		}
		affected++
	}
	return okDML(affected, 0)
}

// execDelete removes matching rows after applying each referencing FK's
// ON DELETE action (CASCADE/SET NULL/SET DEFAULT/RESTRICT/NO ACTION,
// spec §8 scenario 3).
func (e *Executor) execDelete(db string, s ast.Delete, tx txn.TxnID) *QueryResult {
	if _, ok := e.Storage.GetSchema(db, s.Table); !ok {
		return errResult(dberrors.New(dberrors.SchemaMissing, "table %q does not exist", s.Table))
	}
	if err := e.lockTable(tx, s.Table); err != nil {
		return errResult(err)
	}

	rows, err := e.Storage.AllRows(db, s.Table)
	if err != nil {
		return errResult(err)
	}
	ctx := &evalContext{ex: e, db: db}

	var toDelete []storage.RowWithID
	for _, r := range rows {
		if s.Where != nil {
			cond, err := evalScalar(ctx, s.Where, r.Row)
			if err != nil {
				return errResult(err)
			}
			if cond.IsNull() || !truthy(cond) {
				continue
			}
		}
		toDelete = append(toDelete, r)
	}

	for _, r := range toDelete {
		if err := e.applyReferencingActions(db, s.Table, r, tx); err != nil {
			return errResult(err)
		}
		e.Indexes.RemoveRowFromAll(s.Table, r.Row, r.ID)
		if err := e.Storage.DeleteRow(db, s.Table, r.ID); err != nil {
			return errResult(err)
		}
		if tx != 0 {
			if err := e.Txns.RecordDelete(tx, s.Table, r.ID, r.Row); err != nil {
				return errResult(err)
			}
		}
	}
	return okDML(len(toDelete), 0)
}

// applyReferencingActions walks every table for foreign keys that point at
// table and enforces their ON DELETE action against the row being removed.
func (e *Executor) applyReferencingActions(db, table string, victim storage.RowWithID, tx txn.TxnID) error {
	names, err := e.Storage.ListTables(db)
	if err != nil {
		return err
	}
	for _, other := range names {
		ot, ok := e.Storage.GetSchema(db, other)
		if !ok {
			continue
		}
		for _, fk := range ot.ForeignKeys {
			if fk.RefTable != table {
				continue
			}
			if err := e.applyOneReferencingAction(db, other, ot, fk, victim); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) applyOneReferencingAction(db, childTable string, childSchema *schema.Table, fk schema.ForeignKey, victim storage.RowWithID) error {
	rows, err := e.Storage.AllRows(db, childTable)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !fkKeyMatches(fk, r.Row, victim.Row) {
			continue
		}
		switch fk.OnDelete {
		case schema.Cascade:
			e.Indexes.RemoveRowFromAll(childTable, r.Row, r.ID)
			if err := e.Storage.DeleteRow(db, childTable, r.ID); err != nil {
				return err
			}
		case schema.SetNull:
			newRow := r.Row.Clone()
			for _, c := range fk.Columns {
				newRow[c] = types.Null()
			}
			if err := e.Indexes.UpdateRowInAll(childTable, r.Row, newRow, r.ID); err != nil {
				return err
			}
			if err := e.Storage.UpdateRow(db, childTable, r.ID, newRow); err != nil {
				return err
			}
		case schema.SetDefault:
			newRow := r.Row.Clone()
			for _, c := range fk.Columns {
				if col := childSchema.Column(c); col != nil {
					if def, ok := schema.DefaultValue(col); ok {
						newRow[c] = def
						continue
					}
				}
				newRow[c] = types.Null()
			}
			if err := e.Indexes.UpdateRowInAll(childTable, r.Row, newRow, r.ID); err != nil {
				return err
			}
			if err := e.Storage.UpdateRow(db, childTable, r.ID, newRow); err != nil {
				return err
			}
		case schema.Restrict, schema.NoAction:
			return dberrors.New(dberrors.FKViolation, "cannot delete: row is referenced by %q via foreign key %q", childTable, fk.Name)
		}
	}
	return nil
}

// applyUpdateReferencingActions mirrors applyReferencingActions for UPDATE:
// it walks every table for foreign keys that point at table and enforces
// their ON UPDATE action, but only when the update actually changes a
// column the foreign key references (spec §4.7's "referential actions on
// UPDATE of a referenced column").
func (e *Executor) applyUpdateReferencingActions(db, table string, old storage.RowWithID, newRow types.Row, tx txn.TxnID) error {
	names, err := e.Storage.ListTables(db)
	if err != nil {
		return err
	}
	for _, other := range names {
		ot, ok := e.Storage.GetSchema(db, other)
		if !ok {
			continue
		}
		for _, fk := range ot.ForeignKeys {
			if fk.RefTable != table || !referencedColumnsChanged(fk, old.Row, newRow) {
				continue
			}
			if err := e.applyOneUpdateReferencingAction(db, other, ot, fk, old, newRow); err != nil {
				return err
			}
		}
	}
	return nil
}

func referencedColumnsChanged(fk schema.ForeignKey, oldRow, newRow types.Row) bool {
	for _, c := range fk.RefColumns {
		if !types.Equal(oldRow[c], newRow[c]) {
			return true
		}
	}
	return false
}

func (e *Executor) applyOneUpdateReferencingAction(db, childTable string, childSchema *schema.Table, fk schema.ForeignKey, old storage.RowWithID, newParent types.Row) error {
	rows, err := e.Storage.AllRows(db, childTable)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !fkKeyMatches(fk, r.Row, old.Row) {
			continue
		}
		switch fk.OnUpdate {
		case schema.Cascade:
			newRow := r.Row.Clone()
			for i, c := range fk.Columns {
				newRow[c] = newParent[fk.RefColumns[i]]
			}
			if err := e.Indexes.UpdateRowInAll(childTable, r.Row, newRow, r.ID); err != nil {
				return err
			}
			if err := e.Storage.UpdateRow(db, childTable, r.ID, newRow); err != nil {
				return err
			}
		case schema.SetNull:
			newRow := r.Row.Clone()
			for _, c := range fk.Columns {
				newRow[c] = types.Null()
			}
			if err := e.Indexes.UpdateRowInAll(childTable, r.Row, newRow, r.ID); err != nil {
				return err
			}
			if err := e.Storage.UpdateRow(db, childTable, r.ID, newRow); err != nil {
				return err
			}
		case schema.SetDefault:
			newRow := r.Row.Clone()
			for _, c := range fk.Columns {
				if col := childSchema.Column(c); col != nil {
					if def, ok := schema.DefaultValue(col); ok {
						newRow[c] = def
						continue
					}
				}
				newRow[c] = types.Null()
			}
			if err := e.Indexes.UpdateRowInAll(childTable, r.Row, newRow, r.ID); err != nil {
				return err
			}
			if err := e.Storage.UpdateRow(db, childTable, r.ID, newRow); err != nil {
				return err
			}
		case schema.Restrict, schema.NoAction:
			return dberrors.New(dberrors.FKViolation, "cannot update: row is referenced by %q via foreign key %q", childTable, fk.Name)
		}
	}
	return nil
}

func fkKeyMatches(fk schema.ForeignKey, childRow, parentRow types.Row) bool {
	for i, c := range fk.Columns {
		refCol := fk.RefColumns[i]
		if childRow[c].IsNull() {
			return false
		}
		if !types.Equal(childRow[c], parentRow[refCol]) {
			return false
		}
	}
	return true
}
