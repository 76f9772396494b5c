package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sqldef/qldb/types"
)

// tableFileName turns a table name into its on-disk file name. Table
// names are validated identifiers (no path separators), so this is a
// straight suffix.
func tableFileName(name string) string {
	return name + ".qltab.yaml"
}

func (e *Engine) mkdirLocked(dbName string) error {
	if e.dataDir == "" {
		return nil
	}
	return os.MkdirAll(filepath.Join(e.dataDir, dbName), 0o755)
}

func (e *Engine) rmdirLocked(dbName string) error {
	if e.dataDir == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(e.dataDir, dbName))
}

func (e *Engine) removeTableFileLocked(dbName, tableName string) error {
	if e.dataDir == "" {
		return nil
	}
	return os.Remove(filepath.Join(e.dataDir, dbName, tableFileName(tableName)))
}

// flushTableLocked persists one table's schema and rows. Called with
// e.mu already held.
func (e *Engine) flushTableLocked(dbName, tableName string) error {
	if e.dataDir == "" {
		return nil
	}
	d, err := e.db(dbName)
	if err != nil {
		return err
	}
	tb, ok := d.tables[tableName]
	if !ok {
		return nil
	}

	dto := tableFileDTO{
		Table:             toTableDTO(tb.schema),
		NextRowID:         tb.nextRowID,
		AutoIncrementNext: tb.autoInc,
	}
	for id, row := range tb.rows {
		dto.Rows = append(dto.Rows, toRowDTO(id, row))
	}

	if err := e.mkdirLocked(dbName); err != nil {
		return err
	}
	data, err := yaml.Marshal(dto)
	if err != nil {
		return err
	}
	path := filepath.Join(e.dataDir, dbName, tableFileName(tableName))
	return os.WriteFile(path, data, 0o644)
}

// loadAll walks the data directory's database subdirectories and loads
// each table file found in them (spec §4.3: "reads its catalog and row
// data from a directory at startup").
func (e *Engine) loadAll() error {
	if e.dataDir == "" {
		return nil
	}
	entries, err := os.ReadDir(e.dataDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		dbName := ent.Name()
		e.databases[dbName] = &database{name: dbName, tables: make(map[string]*table)}

		files, err := os.ReadDir(filepath.Join(e.dataDir, dbName))
		if err != nil {
			return err
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".qltab.yaml") {
				continue
			}
			if err := e.loadTableFile(dbName, filepath.Join(e.dataDir, dbName, f.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) loadTableFile(dbName, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var dto tableFileDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return err
	}

	sch := fromTableDTO(dto.Table)
	tb := &table{schema: sch, rows: make(map[int64]types.Row), nextRowID: dto.NextRowID, autoInc: dto.AutoIncrementNext}
	for _, rd := range dto.Rows {
		id, row := fromRowDTO(rd)
		tb.rows[id] = row
	}
	e.databases[dbName].tables[sch.Name] = tb
	return nil
}
