// Package constraint implements the per-column constraint checker:
// NOT NULL, UNIQUE, and FOREIGN KEY validation run before a row is handed to
// the table store for insertion or a mutation is applied. It is the one
// place in the engine that needs to look across table boundaries (a foreign
// key references another table's column), so unlike table.Table it takes a
// lookup over the whole table map rather than owning a single table.
package constraint

import (
	"fmt"

	"zapd/internal/core"
	"zapd/internal/table"
)

// Lookup resolves a table by name, the same narrow view of the database
// the checker needs to validate a FOREIGN KEY against another table.
type Lookup func(name string) (*table.Table, bool)

// ValidateInsert checks row against t's column types and constraint set,
// plus any FOREIGN KEY constraints resolved through lookup. It returns the
// first violation encountered; t is left unchanged either way, since
// validation never mutates.
func ValidateInsert(lookup Lookup, t *table.Table, row core.Row) error {
	return validateRow(lookup, t, row, -1)
}

// ValidateMutation builds the row that would result from applying m to the
// row currently at pos and validates it, excluding pos itself from UNIQUE
// conflict checks (a row is never unique-conflicting with itself).
func ValidateMutation(lookup Lookup, t *table.Table, pos int, m table.Mutation) (core.Row, error) {
	current, ok := t.RowAt(pos)
	if !ok {
		return nil, fmt.Errorf("constraint: no row at position %d", pos)
	}
	next := current.Clone()
	for col, v := range m {
		if v == nil {
			delete(next, col)
		} else {
			next[col] = *v
		}
	}
	if err := validateRow(lookup, t, next, pos); err != nil {
		return nil, err
	}
	return next, nil
}

func validateRow(lookup Lookup, t *table.Table, row core.Row, excludePos int) error {
	for name := range row {
		if !t.HasColumn(name) {
			return &core.NoSuchColumnError{Table: t.Name, Column: name}
		}
	}
	for _, col := range t.Columns {
		v := row.Get(col.Name)
		if !v.MatchesType(col.Type) {
			return &core.TypeMismatchError{Table: t.Name, Column: col.Name}
		}
		for _, c := range col.Constraints {
			switch c.Kind {
			case core.ConstraintNotNull:
				if v.IsNull() {
					return &core.NotNullViolationError{Column: col.Name}
				}
			case core.ConstraintUnique:
				if t.UniqueConflict(col.Name, v, excludePos) {
					return &core.UniqueViolationError{Column: col.Name}
				}
			case core.ConstraintForeignKey:
				if v.IsNull() {
					continue
				}
				ref, ok := lookup(c.RefTable)
				if !ok {
					return &core.NoSuchTableError{Table: c.RefTable}
				}
				if !ref.HasValue(c.RefColumn, v) {
					return &core.ForeignKeyViolationError{Column: col.Name, RefTable: c.RefTable, RefColumn: c.RefColumn}
				}
			}
		}
	}
	return nil
}
