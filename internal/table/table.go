// Package table implements the row store: an ordered row collection per
// table, row-position assignment, and the per-column secondary indexes that
// back equality lookups.
package table

import (
	"fmt"
	"sort"

	"zapd/internal/core"
)

// Mutation is the declarative column->new-value map an update applies to a
// matching row. A nil *core.Value under a key is the "delete this key"
// marker (the key reverts to the table's implicit Null); a non-nil value
// overwrites the column. Restricting mutators to this shape (rather than an
// arbitrary function) is what makes a transactional update WAL-replayable
//.
type Mutation map[string]*core.Value

// Table is an ordered row collection with a fixed, declared column set and
// a secondary index per column explicitly requested via CreateIndex. Row
// order is insertion order with deletes compacted.
type Table struct {
	Name    string
	Columns []core.Column

	colPos     map[string]int
	rows       []core.Row
	indexes    map[string]*index
	merkleRoot [32]byte
}

// New validates columns and returns an empty table: the column list must
// be non-empty, names must be unique, and every declared DataType must be
// one of the known variants.
func New(name string, columns []core.Column) (*Table, error) {
	if !core.ValidName(name) {
		return nil, &core.BadSchemaError{Reason: "table name must not be empty"}
	}
	if len(columns) == 0 {
		return nil, &core.BadSchemaError{Reason: "table must declare at least one column"}
	}
	colPos := make(map[string]int, len(columns))
	for i, c := range columns {
		if !core.ValidName(c.Name) {
			return nil, &core.BadSchemaError{Reason: "column name must not be empty"}
		}
		if !core.ValidDataType(c.Type) {
			return nil, &core.BadSchemaError{Reason: fmt.Sprintf("column %q declares unknown type %q", c.Name, c.Type)}
		}
		if _, dup := colPos[c.Name]; dup {
			return nil, &core.BadSchemaError{Reason: fmt.Sprintf("duplicate column name %q", c.Name)}
		}
		colPos[c.Name] = i
	}
	return &Table{
		Name:    name,
		Columns: append([]core.Column(nil), columns...),
		colPos:  colPos,
		indexes: make(map[string]*index),
	}, nil
}

// Column returns the declared column named name, if any.
func (t *Table) Column(name string) (core.Column, bool) {
	i, ok := t.colPos[name]
	if !ok {
		return core.Column{}, false
	}
	return t.Columns[i], true
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colPos[name]
	return ok
}

// Len reports the number of live rows.
func (t *Table) Len() int { return len(t.rows) }

// RowAt returns a copy of the row at position pos.
func (t *Table) RowAt(pos int) (core.Row, bool) {
	if pos < 0 || pos >= len(t.rows) {
		return nil, false
	}
	return t.rows[pos].Clone(), true
}

// Scan returns copies of every live row, in insertion order.
func (t *Table) Scan() []core.Row {
	out := make([]core.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// HasValue reports whether column currently holds v anywhere in the table.
// A Null v always reports true. It prefers an index when one exists on column.
func (t *Table) HasValue(column string, v core.Value) bool {
	if v.IsNull() {
		return true
	}
	if ix, ok := t.indexes[column]; ok {
		return ix.hasValue(v)
	}
	for _, r := range t.rows {
		if r.Get(column).Equal(v) {
			return true
		}
	}
	return false
}

// UniqueConflict reports whether some row other than excludePos already
// holds v in column. excludePos of -1 excludes nothing (used by insert).
func (t *Table) UniqueConflict(column string, v core.Value, excludePos int) bool {
	if v.IsNull() {
		return false
	}
	if ix, ok := t.indexes[column]; ok {
		for _, pos := range ix.positions(v) {
			if pos != excludePos {
				return true
			}
		}
		return false
	}
	for pos, r := range t.rows {
		if pos == excludePos {
			continue
		}
		if r.Get(column).Equal(v) {
			return true
		}
	}
	return false
}

// Insert appends row and returns its position. The caller (the constraint
// checker) is responsible for validating row before calling Insert; Insert
// itself only maintains row storage and index consistency.
func (t *Table) Insert(row core.Row) int {
	pos := len(t.rows)
	t.rows = append(t.rows, row.Clone())
	for col, ix := range t.indexes {
		ix.add(row.Get(col), pos)
	}
	return pos
}

// ApplyMutation overwrites row in place at pos with m applied, refreshing
// any indexes on changed columns. The caller has already validated the
// resulting row.
func (t *Table) ApplyMutation(pos int, m Mutation) {
	old := t.rows[pos]
	next := old.Clone()
	for col, v := range m {
		if v == nil {
			delete(next, col)
		} else {
			next[col] = *v
		}
	}
	for col, ix := range t.indexes {
		oldVal := old.Get(col)
		newVal := next.Get(col)
		if !oldVal.Equal(newVal) {
			ix.remove(oldVal, pos)
			ix.add(newVal, pos)
		}
	}
	t.rows[pos] = next
}

// DeletePositions removes the rows at the given positions (need not be
// sorted) and compacts the remaining rows, renumbering every index so it
// stays a faithful inverse of the post-compaction row sequence.
func (t *Table) DeletePositions(positions []int) int {
	if len(positions) == 0 {
		return 0
	}
	doomed := make(map[int]bool, len(positions))
	for _, p := range positions {
		doomed[p] = true
	}
	remap := make([]int, len(t.rows))
	fresh := make([]core.Row, 0, len(t.rows)-len(doomed))
	for pos, r := range t.rows {
		if doomed[pos] {
			remap[pos] = -1
			continue
		}
		remap[pos] = len(fresh)
		fresh = append(fresh, r)
	}
	removed := len(t.rows) - len(fresh)
	t.rows = fresh
	for _, ix := range t.indexes {
		ix.renumber(remap)
	}
	return removed
}

// CreateIndex scans the table once and builds the inverse map for column,
// then publishes it atomically: concurrent readers of the pre-build
// state see nothing change until the new index is installed wholesale.
func (t *Table) CreateIndex(column string) error {
	if !t.HasColumn(column) {
		return &core.NoSuchColumnError{Table: t.Name, Column: column}
	}
	ix := newIndex()
	ix.build(column, t.rows)
	t.indexes[column] = ix
	return nil
}

// DropIndex removes the index on column, if any. Subsequent Condition
// evaluation on that column falls back to a linear scan.
func (t *Table) DropIndex(column string) {
	delete(t.indexes, column)
}

// HasIndex reports whether column currently has a secondary index.
func (t *Table) HasIndex(column string) bool {
	_, ok := t.indexes[column]
	return ok
}

// IndexPositions returns the row positions holding v in column's index.
// The second return is false if column has no index.
func (t *Table) IndexPositions(column string, v core.Value) ([]int, bool) {
	ix, ok := t.indexes[column]
	if !ok {
		return nil, false
	}
	return ix.positions(v), true
}

// IndexedColumns returns the names of every column currently indexed, in
// lexical order, used by the persistence pipeline to record index metadata
// in a snapshot.
func (t *Table) IndexedColumns() []string {
	out := make([]string, 0, len(t.indexes))
	for col := range t.indexes {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

// Checkpoint is a deep copy of a table's mutable state (rows and indexes),
// taken before a transaction touches the table so a failed operation
// partway through the batch can be undone by restoring it wholesale.
type Checkpoint struct {
	rows    []core.Row
	indexes map[string]*index
}

// Checkpoint captures t's current rows and indexes.
func (t *Table) Checkpoint() Checkpoint {
	rows := make([]core.Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = r.Clone()
	}
	indexes := make(map[string]*index, len(t.indexes))
	for col, ix := range t.indexes {
		indexes[col] = ix.clone()
	}
	return Checkpoint{rows: rows, indexes: indexes}
}

// Restore replaces t's rows and indexes with a previously captured Checkpoint.
func (t *Table) Restore(c Checkpoint) {
	t.rows = c.rows
	t.indexes = c.indexes
}

// SetMerkleRoot records root as t's commitment, computed by the
// persistence pipeline over t's current rows.
func (t *Table) SetMerkleRoot(root [32]byte) { t.merkleRoot = root }

// MerkleRoot returns the commitment last recorded by SetMerkleRoot (the
// zero value if none has been recorded yet).
func (t *Table) MerkleRoot() [32]byte { return t.merkleRoot }
