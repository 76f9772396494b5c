// Package index implements the per-table named B-tree index manager
// (spec §4.5), grounded on the teacher's per-index bookkeeping in
// schema/ast.go and the diff-oriented traversal in schema/generator.go,
// adapted here from "describe an index for DDL diffing" to "maintain a
// live B-tree per index across row mutations".
package index

import (
	"sort"

	"github.com/sqldef/qldb/btree"
	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/internal/util"
	"github.com/sqldef/qldb/types"
)

// RowIDSet is the value payload stored at each B-tree key (spec §3's
// "logical key → sorted set of row-ids").
type RowIDSet map[int64]struct{}

func (s RowIDSet) sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Kind distinguishes the synthetic primary-key index from ordinary ones;
// both are backed by the same B-tree machinery.
type Kind int

const (
	KindSecondary Kind = iota
	KindPrimary
)

// Index is one named B-tree over a column list (spec §4.5).
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Kind    Kind
	Order   int
	tree    *btree.Tree[RowIDSet]
}

func newIndex(table, name string, columns []string, unique bool, kind Kind, order int) *Index {
	if order <= 0 {
		order = 50
	}
	return &Index{Name: name, Table: table, Columns: columns, Unique: unique, Kind: kind, Order: order, tree: btree.New[RowIDSet](order)}
}

// Key derives this index's composite key from a row.
func (ix *Index) Key(row types.Row) types.CompositeKey {
	k := make(types.CompositeKey, len(ix.Columns))
	for i, c := range ix.Columns {
		k[i] = row[c]
	}
	return k
}

// Manager owns every table's indexes, keyed by (table, index name).
type Manager struct {
	tables map[string]map[string]*Index
}

// NewManager creates an empty index manager.
func NewManager() *Manager {
	return &Manager{tables: make(map[string]map[string]*Index)}
}

// CreateIndex registers a new named index on a table (spec §4.5: "fails
// if the index name already exists on that table").
func (m *Manager) CreateIndex(table, name string, columns []string, unique bool, kind Kind, order int) (*Index, error) {
	byName, ok := m.tables[table]
	if !ok {
		byName = make(map[string]*Index)
		m.tables[table] = byName
	}
	if _, exists := byName[name]; exists {
		return nil, dberrors.New(dberrors.Internal, "index %q already exists on table %q", name, table)
	}
	ix := newIndex(table, name, columns, unique, kind, order)
	byName[name] = ix
	return ix, nil
}

// DropIndex removes a single named index.
func (m *Manager) DropIndex(table, name string) error {
	byName, ok := m.tables[table]
	if !ok {
		return dberrors.New(dberrors.SchemaMissing, "no indexes registered for table %q", table)
	}
	if _, exists := byName[name]; !exists {
		return dberrors.New(dberrors.Internal, "index %q not found on table %q", name, table)
	}
	delete(byName, name)
	return nil
}

// DropTableIndexes removes every index of a table (spec §4.7: "DROP
// TABLE: remove schema and all its indexes").
func (m *Manager) DropTableIndexes(table string) {
	delete(m.tables, table)
}

// Indexes returns every index registered on a table.
func (m *Manager) Indexes(table string) []*Index {
	byName := m.tables[table]
	out := make([]*Index, 0, len(byName))
	for _, ix := range byName {
		out = append(out, ix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a single named index, if registered.
func (m *Manager) Get(table, name string) (*Index, bool) {
	byName, ok := m.tables[table]
	if !ok {
		return nil, false
	}
	ix, ok := byName[name]
	return ix, ok
}

// Add appends row_id to key's row-id set (spec §4.5). A unique index with
// a non-empty set that doesn't already contain row_id fails with
// UniqueViolation.
func (ix *Index) Add(key types.CompositeKey, rowID int64) error {
	set, ok := ix.tree.Search(key)
	if !ok {
		set = RowIDSet{}
	}
	if ix.Unique {
		if _, present := set[rowID]; len(set) > 0 && !present {
			return dberrors.New(dberrors.UniqueViolation, "duplicate key value violates unique index %q", ix.Name)
		}
	}
	set[rowID] = struct{}{}
	ix.tree.Insert(key, set)
	return nil
}

// Remove removes row_id from key's set; when the set empties the key
// itself is removed from the tree (spec §4.5).
func (ix *Index) Remove(key types.CompositeKey, rowID int64) {
	set, ok := ix.tree.Search(key)
	if !ok {
		return
	}
	delete(set, rowID)
	if len(set) == 0 {
		ix.tree.Delete(key)
		return
	}
	ix.tree.Insert(key, set)
}

// Search returns the row-ids stored at key, in ascending order.
func (ix *Index) Search(key types.CompositeKey) ([]int64, bool) {
	set, ok := ix.tree.Search(key)
	if !ok {
		return nil, false
	}
	return set.sorted(), true
}

// SearchRange returns matching row-ids for lo <= key <= hi, in ascending
// key order (duplicates across keys are not deduplicated; callers already
// iterate per key).
func (ix *Index) SearchRange(lo, hi types.CompositeKey) []int64 {
	var out []int64
	for _, e := range ix.tree.SearchRange(lo, hi) {
		out = append(out, e.Value.sorted()...)
	}
	return out
}

// SearchWithOperator returns matching row-ids in ascending key order for
// op ∈ {>,>=,<,<=} (spec §4.4/§9).
func (ix *Index) SearchWithOperator(key types.CompositeKey, op btree.Operator) []int64 {
	var out []int64
	for _, e := range ix.tree.SearchWithOperator(key, op) {
		out = append(out, e.Value.sorted()...)
	}
	return out
}

// Height and Size expose the underlying B-tree's shape for planner cost
// estimates and diagnostics.
func (ix *Index) Height() int { return ix.tree.Height() }
func (ix *Index) Size() int   { return ix.tree.Size() }

// AddRowToAll derives each index's key from row and adds row_id, rolling
// back already-applied indexes if a later one fails uniqueness (spec
// §4.7's INSERT: "update every affected index").
func (m *Manager) AddRowToAll(table string, row types.Row, rowID int64) error {
	applied := make([]*Index, 0, len(m.tables[table]))
	for _, ix := range m.Indexes(table) {
		if err := ix.Add(ix.Key(row), rowID); err != nil {
			for _, done := range applied {
				done.Remove(done.Key(row), rowID)
			}
			return err
		}
		applied = append(applied, ix)
	}
	return nil
}

// RemoveRowFromAll removes row_id from every index of table.
func (m *Manager) RemoveRowFromAll(table string, row types.Row, rowID int64) {
	for _, ix := range m.Indexes(table) {
		ix.Remove(ix.Key(row), rowID)
	}
}

// UpdateRowInAll moves row_id from its old key to its new key in every
// index whose key actually changed (spec §4.7's UPDATE: "update indexes
// for changed keys only").
func (m *Manager) UpdateRowInAll(table string, oldRow, newRow types.Row, rowID int64) error {
	indexes := m.Indexes(table)
	type pending struct {
		ix     *Index
		oldKey types.CompositeKey
	}
	var applied []pending
	for _, ix := range indexes {
		oldKey := ix.Key(oldRow)
		newKey := ix.Key(newRow)
		if types.EqualKeys(oldKey, newKey) {
			continue
		}
		if err := ix.Add(newKey, rowID); err != nil {
			for _, p := range applied {
				p.ix.Remove(p.ix.Key(newRow), rowID)
				p.ix.Add(p.oldKey, rowID) //nolint:errcheck // reverting a just-applied add cannot violate uniqueness
			}
			return err
		}
		ix.Remove(oldKey, rowID)
		applied = append(applied, pending{ix: ix, oldKey: oldKey})
	}
	return nil
}

// FindBest returns the name of the index scoring highest for a requested
// column prefix (spec §4.5/§4.8): 10 per leading matched column (decaying
// by position), +20 when unique and the match is a full single-column
// equality, -2 when the index is significantly wider than the requested
// columns. Returns ok=false when no index scores positively.
func (m *Manager) FindBest(table string, cols []string) (string, bool) {
	best := ""
	bestScore := 0
	for _, ix := range m.Indexes(table) {
		score := prefixScore(ix.Columns, cols)
		if ix.Unique && len(cols) == 1 && len(ix.Columns) == 1 && ix.Columns[0] == cols[0] {
			score += 20
		}
		if len(ix.Columns) > len(cols)+2 {
			score -= 2
		}
		if score > bestScore || (score == bestScore && score > 0 && best == "") {
			bestScore = score
			best = ix.Name
		}
	}
	if bestScore <= 0 {
		return "", false
	}
	return best, true
}

func prefixScore(idxCols, reqCols []string) int {
	score := 0
	weight := 10
	for i, c := range idxCols {
		if i >= len(reqCols) || reqCols[i] != c {
			break
		}
		score += weight
		if weight > 2 {
			weight -= 2
		}
	}
	return score
}

// RebuildAll rebuilds every table's indexes from its current row set,
// concurrently across tables (spec §4.6's reload-from-disk path); rows
// maps table name to its live rows keyed by row-id.
func (m *Manager) RebuildAll(rows map[string]map[int64]types.Row, concurrency int) error {
	tables := make([]string, 0, len(rows))
	for t := range rows {
		tables = append(tables, t)
	}
	_, err := util.ConcurrentMap(tables, concurrency, func(table string) (struct{}, error) {
		for _, ix := range m.Indexes(table) {
			for rowID, row := range rows[table] {
				if err := ix.Add(ix.Key(row), rowID); err != nil {
					return struct{}{}, err
				}
			}
		}
		return struct{}{}, nil
	})
	return err
}
