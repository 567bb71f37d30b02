package txn

import (
	"encoding/binary"
	"fmt"

	"zapd/internal/core"
	"zapd/internal/query"
	"zapd/internal/table"
)

// EncodeOp serializes op to the byte payload stored in a WAL Op frame.
// Only Predicate-shaped queries (MatchAll/Condition/And/Or/Not) are valid
// inside a transactional Update/Delete; a Join or Aggregate here is
// a caller error, reported rather than silently dropped.
func EncodeOp(op Operation) ([]byte, error) {
	buf := []byte{byte(op.Kind)}
	buf = appendString(buf, op.Table)
	switch op.Kind {
	case OpInsert:
		buf = encodeRow(buf, op.Row)
	case OpUpdate:
		var err error
		buf, err = encodePredicate(buf, op.Query)
		if err != nil {
			return nil, err
		}
		buf = encodeMutation(buf, op.Mutation)
	case OpDelete:
		var err error
		buf, err = encodePredicate(buf, op.Query)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("txn: unknown operation kind %d", op.Kind)
	}
	return buf, nil
}

// DecodeOp parses the inverse of EncodeOp, used during WAL replay.
func DecodeOp(data []byte) (Operation, error) {
	r := &reader{buf: data}
	kindByte, err := r.take(1)
	if err != nil {
		return Operation{}, err
	}
	kind := OpKind(kindByte[0])
	tableName, err := r.string()
	if err != nil {
		return Operation{}, err
	}
	op := Operation{Kind: kind, Table: tableName}
	switch kind {
	case OpInsert:
		op.Row, err = r.row()
	case OpUpdate:
		op.Query, err = r.predicate()
		if err != nil {
			return Operation{}, err
		}
		op.Mutation, err = r.mutation()
	case OpDelete:
		op.Query, err = r.predicate()
	default:
		return Operation{}, fmt.Errorf("txn: unknown operation kind %d", kind)
	}
	if err != nil {
		return Operation{}, err
	}
	return op, nil
}

func encodeRow(buf []byte, row core.Row) []byte {
	cols := row.SortedColumns()
	buf = appendUint32(buf, uint32(len(cols)))
	for _, col := range cols {
		buf = appendString(buf, col)
		buf = row[col].Encode(buf)
	}
	return buf
}

func encodeMutation(buf []byte, m table.Mutation) []byte {
	buf = appendUint32(buf, uint32(len(m)))
	for col, v := range m {
		buf = appendString(buf, col)
		if v == nil {
			buf = append(buf, 0)
		} else {
			buf = append(buf, 1)
			buf = v.Encode(buf)
		}
	}
	return buf
}

const (
	predMatchAll byte = 0
	predCond     byte = 1
	predAnd      byte = 2
	predOr       byte = 3
	predNot      byte = 4
)

func encodePredicate(buf []byte, p query.Predicate) ([]byte, error) {
	switch pr := p.(type) {
	case nil:
		buf = append(buf, predMatchAll)
		return buf, nil
	case query.MatchAll, *query.MatchAll:
		buf = append(buf, predMatchAll)
		return buf, nil
	case query.Condition:
		return encodeCondition(buf, pr), nil
	case *query.Condition:
		return encodeCondition(buf, *pr), nil
	case query.And:
		return encodeChildren(buf, predAnd, pr.Children)
	case *query.And:
		return encodeChildren(buf, predAnd, pr.Children)
	case query.Or:
		return encodeChildren(buf, predOr, pr.Children)
	case *query.Or:
		return encodeChildren(buf, predOr, pr.Children)
	case query.Not:
		buf = append(buf, predNot)
		return encodePredicate(buf, pr.Inner)
	case *query.Not:
		buf = append(buf, predNot)
		return encodePredicate(buf, pr.Inner)
	default:
		return nil, &core.UnsupportedOperatorError{Operator: "non-predicate query in transactional operation"}
	}
}

func encodeCondition(buf []byte, c query.Condition) []byte {
	buf = append(buf, predCond)
	buf = appendString(buf, c.Column)
	buf = append(buf, byte(c.Op))
	buf = c.Value.Encode(buf)
	return buf
}

func encodeChildren(buf []byte, tag byte, children []query.Predicate) ([]byte, error) {
	buf = append(buf, tag)
	buf = appendUint32(buf, uint32(len(children)))
	for _, child := range children {
		var err error
		buf, err = encodePredicate(buf, child)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("txn: unexpected end of operation payload")
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

func (r *reader) value() (core.Value, error) {
	if r.pos >= len(r.buf) {
		return core.Value{}, fmt.Errorf("txn: truncated value")
	}
	v, consumed, err := core.DecodeValue(r.buf[r.pos:])
	if err != nil {
		return core.Value{}, err
	}
	r.pos += consumed
	return v, nil
}

func (r *reader) row() (core.Row, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	row := make(core.Row, n)
	for i := uint32(0); i < n; i++ {
		col, err := r.string()
		if err != nil {
			return nil, err
		}
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		row[col] = v
	}
	return row, nil
}

func (r *reader) mutation() (table.Mutation, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	m := make(table.Mutation, n)
	for i := uint32(0); i < n; i++ {
		col, err := r.string()
		if err != nil {
			return nil, err
		}
		present, err := r.take(1)
		if err != nil {
			return nil, err
		}
		if present[0] == 0 {
			m[col] = nil
			continue
		}
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		m[col] = &v
	}
	return m, nil
}

func (r *reader) predicate() (query.Predicate, error) {
	tagByte, err := r.take(1)
	if err != nil {
		return nil, err
	}
	switch tagByte[0] {
	case predMatchAll:
		return query.MatchAll{}, nil
	case predCond:
		col, err := r.string()
		if err != nil {
			return nil, err
		}
		opByte, err := r.take(1)
		if err != nil {
			return nil, err
		}
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		return query.Condition{Column: col, Op: query.Operator(opByte[0]), Value: v}, nil
	case predAnd, predOr:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		children := make([]query.Predicate, n)
		for i := range children {
			children[i], err = r.predicate()
			if err != nil {
				return nil, err
			}
		}
		if tagByte[0] == predAnd {
			return query.And{Children: children}, nil
		}
		return query.Or{Children: children}, nil
	case predNot:
		inner, err := r.predicate()
		if err != nil {
			return nil, err
		}
		return query.Not{Inner: inner}, nil
	default:
		return nil, fmt.Errorf("txn: unknown predicate tag %d", tagByte[0])
	}
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
