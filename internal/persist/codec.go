// Package persist implements the persistence pipeline: a compact,
// explicitly length-prefixed binary encoding of the database state,
// written directly with encoding/binary. The snapshot's byte layout is
// part of the engine's observable contract and must not drift.
package persist

import (
	"encoding/binary"
	"fmt"

	"zapd/internal/core"
	"zapd/internal/merkle"
)

// TableSnapshot is one table's serializable state: everything needed to
// reconstruct a table.Table and its indexes on load.
type TableSnapshot struct {
	Name       string
	Columns    []core.Column
	Rows       []core.Row
	Indexes    []string
	MerkleRoot merkle.Root
}

// Encode serializes tables to the deterministic binary layout: number of
// tables, then each table as (name, columns, rows, index metadata,
// merkle_root).
func Encode(tables []TableSnapshot) []byte {
	buf := make([]byte, 0, 4096)
	buf = appendUint32(buf, uint32(len(tables)))
	for _, t := range tables {
		buf = appendString(buf, t.Name)
		buf = encodeColumns(buf, t.Columns)
		buf = encodeRows(buf, t.Rows)
		buf = appendUint32(buf, uint32(len(t.Indexes)))
		for _, col := range t.Indexes {
			buf = appendString(buf, col)
		}
		buf = append(buf, t.MerkleRoot[:]...)
	}
	return buf
}

func encodeColumns(buf []byte, cols []core.Column) []byte {
	buf = appendUint32(buf, uint32(len(cols)))
	for _, c := range cols {
		buf = appendString(buf, c.Name)
		buf = appendString(buf, string(c.Type))
		buf = appendUint32(buf, uint32(len(c.Constraints)))
		for _, con := range c.Constraints {
			buf = append(buf, byte(con.Kind))
			buf = appendString(buf, con.RefTable)
			buf = appendString(buf, con.RefColumn)
		}
	}
	return buf
}

func encodeRows(buf []byte, rows []core.Row) []byte {
	buf = appendUint32(buf, uint32(len(rows)))
	for _, row := range rows {
		cols := row.SortedColumns()
		buf = appendUint32(buf, uint32(len(cols)))
		for _, col := range cols {
			buf = appendString(buf, col)
			buf = row[col].Encode(buf)
		}
	}
	return buf
}

// Decode parses the layout Encode produces. Any structural inconsistency
// (truncated input, a length prefix running past the buffer) is reported as
// DeserializationFailedError rather than panicking.
func Decode(data []byte) ([]TableSnapshot, error) {
	r := &reader{buf: data}
	numTables, err := r.uint32()
	if err != nil {
		return nil, err
	}
	tables := make([]TableSnapshot, numTables)
	for i := range tables {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		cols, err := r.columns()
		if err != nil {
			return nil, err
		}
		rows, err := r.rows()
		if err != nil {
			return nil, err
		}
		numIdx, err := r.uint32()
		if err != nil {
			return nil, err
		}
		indexes := make([]string, numIdx)
		for j := range indexes {
			indexes[j], err = r.string()
			if err != nil {
				return nil, err
			}
		}
		rootBytes, err := r.take(32)
		if err != nil {
			return nil, err
		}
		var root merkle.Root
		copy(root[:], rootBytes)
		tables[i] = TableSnapshot{Name: name, Columns: cols, Rows: rows, Indexes: indexes, MerkleRoot: root}
	}
	return tables, nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, &core.DeserializationFailedError{Reason: "unexpected end of snapshot payload"}
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) columns() ([]core.Column, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	cols := make([]core.Column, n)
	for i := range cols {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		typ, err := r.string()
		if err != nil {
			return nil, err
		}
		numCon, err := r.uint32()
		if err != nil {
			return nil, err
		}
		constraints := make([]core.Constraint, numCon)
		for j := range constraints {
			kindByte, err := r.take(1)
			if err != nil {
				return nil, err
			}
			refTable, err := r.string()
			if err != nil {
				return nil, err
			}
			refCol, err := r.string()
			if err != nil {
				return nil, err
			}
			constraints[j] = core.Constraint{
				Kind:      core.ConstraintKind(kindByte[0]),
				RefTable:  refTable,
				RefColumn: refCol,
			}
		}
		cols[i] = core.Column{Name: name, Type: core.DataType(typ), Constraints: constraints}
	}
	return cols, nil
}

func (r *reader) rows() ([]core.Row, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	rows := make([]core.Row, n)
	for i := range rows {
		numCols, err := r.uint32()
		if err != nil {
			return nil, err
		}
		row := make(core.Row, numCols)
		for j := uint32(0); j < numCols; j++ {
			col, err := r.string()
			if err != nil {
				return nil, err
			}
			if r.pos >= len(r.buf) {
				return nil, &core.DeserializationFailedError{Reason: "truncated value"}
			}
			v, consumed, err := core.DecodeValue(r.buf[r.pos:])
			if err != nil {
				return nil, &core.DeserializationFailedError{Reason: fmt.Sprintf("row %d column %q: %v", i, col, err)}
			}
			r.pos += consumed
			row[col] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func appendUint32(buf []byte, x uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], x)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
