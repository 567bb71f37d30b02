// Package core contains the single source of truth for the database's value
// and schema model: the tagged scalar Value type, the DataType enum columns
// declare, and the Column/Constraint pair that together describe a table's
// shape.
package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DataType identifies the declared variant expected for a column. Inserts
// whose value disagrees with the column's DataType are rejected by the
// constraint checker before they ever reach the table store.
type DataType string

const (
	TypeInteger  DataType = "integer"
	TypeFloat    DataType = "float"
	TypeString   DataType = "string"
	TypeBoolean  DataType = "boolean"
	TypeDateTime DataType = "datetime"
	TypeUUID     DataType = "uuid"
	TypeJSON     DataType = "json"
)

// ValidDataType reports whether d is one of the declared DataType constants.
func ValidDataType(d DataType) bool {
	switch d {
	case TypeInteger, TypeFloat, TypeString, TypeBoolean, TypeDateTime, TypeUUID, TypeJSON:
		return true
	default:
		return false
	}
}

// Kind identifies which variant a Value currently holds. It is distinct from
// DataType: Kind tags a runtime Value, DataType is what a Column declares.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindDateTime
	KindUUID
	KindJSON
)

// Value is a tagged scalar. Only the field matching Kind is meaningful; the
// zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	t    time.Time
	u    uuid.UUID
}

// Null is the single Null value shared by every column and every DataType.
var Null = Value{kind: KindNull}

func NewInteger(i int64) Value { return Value{kind: KindInteger, i: i} }
func NewFloat(f float64) Value { return Value{kind: KindFloat, f: f} }
func NewString(s string) Value { return Value{kind: KindString, s: s} }
func NewBoolean(b bool) Value  { return Value{kind: KindBoolean, b: b} }
func NewJSON(s string) Value   { return Value{kind: KindJSON, s: s} }
func NewUUID(u uuid.UUID) Value {
	return Value{kind: KindUUID, u: u}
}

// NewDateTime truncates t to second precision and fixes it to UTC, so that
// two values built from the same wall-clock second compare equal regardless
// of the original Location or monotonic reading.
func NewDateTime(t time.Time) Value {
	return Value{kind: KindDateTime, t: t.UTC().Truncate(time.Second)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Integer() (int64, bool)      { return v.i, v.kind == KindInteger }
func (v Value) Float() (float64, bool)      { return v.f, v.kind == KindFloat }
func (v Value) String() (string, bool)      { return v.s, v.kind == KindString }
func (v Value) Boolean() (bool, bool)       { return v.b, v.kind == KindBoolean }
func (v Value) DateTime() (time.Time, bool) { return v.t, v.kind == KindDateTime }
func (v Value) UUID() (uuid.UUID, bool)     { return v.u, v.kind == KindUUID }
func (v Value) JSON() (string, bool)        { return v.s, v.kind == KindJSON }

// MatchesType reports whether v is Null (always allowed) or matches the
// declared DataType.
func (v Value) MatchesType(t DataType) bool {
	if v.kind == KindNull {
		return true
	}
	switch t {
	case TypeInteger:
		return v.kind == KindInteger
	case TypeFloat:
		return v.kind == KindFloat
	case TypeString:
		return v.kind == KindString
	case TypeBoolean:
		return v.kind == KindBoolean
	case TypeDateTime:
		return v.kind == KindDateTime
	case TypeUUID:
		return v.kind == KindUUID
	case TypeJSON:
		return v.kind == KindJSON
	default:
		return false
	}
}

// Equal implements cross-variant-safe equality: values of different Kinds
// are never equal (including Null compared to anything but Null), and
// Null.Equal(Null) is true.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInteger:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString, KindJSON:
		return v.s == other.s
	case KindBoolean:
		return v.b == other.b
	case KindDateTime:
		return v.t.Equal(other.t)
	case KindUUID:
		return v.u == other.u
	default:
		return false
	}
}

// Less implements the ordering used by Lt/Lte/Gt/Gte and by Min/Max
// aggregates. Cross-variant comparisons (including either side Null) are
// always false, mirroring Equal.
func (v Value) Less(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i < other.i
	case KindFloat:
		return v.f < other.f
	case KindString, KindJSON:
		return v.s < other.s
	case KindBoolean:
		return !v.b && other.b
	case KindDateTime:
		return v.t.Before(other.t)
	case KindUUID:
		return v.u.String() < other.u.String()
	default:
		return false
	}
}

// Numeric reports whether v carries Integer or Float, returning its value as
// a float64 for uniform arithmetic.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "Null"
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("Float(%v)", v.f)
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	case KindBoolean:
		return fmt.Sprintf("Boolean(%v)", v.b)
	case KindDateTime:
		return fmt.Sprintf("DateTime(%s)", v.t.Format(time.RFC3339))
	case KindUUID:
		return fmt.Sprintf("UUID(%s)", v.u.String())
	case KindJSON:
		return fmt.Sprintf("Json(%s)", v.s)
	default:
		return "Value(?)"
	}
}

// Encode appends the same type-tagged byte encoding canonicalBytes produces
// to buf and returns the extended slice. It is the one wire format shared by
// the snapshot codec, the WAL codec, and the Merkle leaf hash: whatever
// round-trips through Encode/DecodeValue is also what gets hashed.
func (v Value) Encode(buf []byte) []byte {
	return v.canonicalBytes(buf)
}

// DecodeValue parses one Value from the front of b, returning the value and
// the number of bytes consumed. It is the exact inverse of Value.Encode.
func DecodeValue(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, fmt.Errorf("decode value: empty input")
	}
	kind := Kind(b[0])
	rest := b[1:]
	consumed := 1
	switch kind {
	case KindNull:
		return Null, consumed, nil
	case KindInteger:
		if len(rest) < 8 {
			return Value{}, 0, fmt.Errorf("decode value: short integer payload")
		}
		return Value{kind: KindInteger, i: int64(readUint64(rest))}, consumed + 8, nil
	case KindFloat:
		if len(rest) < 8 {
			return Value{}, 0, fmt.Errorf("decode value: short float payload")
		}
		return Value{kind: KindFloat, f: math.Float64frombits(readUint64(rest))}, consumed + 8, nil
	case KindString, KindJSON:
		if len(rest) < 8 {
			return Value{}, 0, fmt.Errorf("decode value: short string length")
		}
		n := int(readUint64(rest))
		rest = rest[8:]
		if len(rest) < n {
			return Value{}, 0, fmt.Errorf("decode value: short string payload")
		}
		s := string(rest[:n])
		if kind == KindJSON {
			return Value{kind: KindJSON, s: s}, consumed + 8 + n, nil
		}
		return Value{kind: KindString, s: s}, consumed + 8 + n, nil
	case KindBoolean:
		if len(rest) < 1 {
			return Value{}, 0, fmt.Errorf("decode value: short boolean payload")
		}
		return Value{kind: KindBoolean, b: rest[0] != 0}, consumed + 1, nil
	case KindDateTime:
		if len(rest) < 8 {
			return Value{}, 0, fmt.Errorf("decode value: short datetime payload")
		}
		return Value{kind: KindDateTime, t: time.Unix(int64(readUint64(rest)), 0).UTC()}, consumed + 8, nil
	case KindUUID:
		if len(rest) < 16 {
			return Value{}, 0, fmt.Errorf("decode value: short uuid payload")
		}
		var u uuid.UUID
		copy(u[:], rest[:16])
		return Value{kind: KindUUID, u: u}, consumed + 16, nil
	default:
		return Value{}, 0, fmt.Errorf("decode value: unknown kind tag %d", b[0])
	}
}

// canonicalBytes appends a deterministic, type-tagged encoding of v to buf.
// It is used both by the binary snapshot encoding and by the Merkle leaf
// hash, so the two must never diverge.
func (v Value) canonicalBytes(buf []byte) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindNull:
		// no payload
	case KindInteger:
		buf = appendUint64(buf, uint64(v.i))
	case KindFloat:
		buf = appendUint64(buf, math.Float64bits(v.f))
	case KindString, KindJSON:
		buf = appendUint64(buf, uint64(len(v.s)))
		buf = append(buf, v.s...)
	case KindBoolean:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindDateTime:
		buf = appendUint64(buf, uint64(v.t.Unix()))
	case KindUUID:
		buf = append(buf, v.u[:]...)
	}
	return buf
}

func appendUint64(buf []byte, x uint64) []byte {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(x >> (8 * i))
	}
	return append(buf, tmp[:]...)
}

func readUint64(b []byte) uint64 {
	var x uint64
	for i := 0; i < 8; i++ {
		x |= uint64(b[i]) << (8 * i)
	}
	return x
}

// ParseDataType normalizes a free-form type name (as it might arrive from a
// config file or CLI flag) into a DataType, folding common SQL keyword
// aliases into the canonical variant.
func ParseDataType(raw string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "integer", "int", "bigint":
		return TypeInteger, nil
	case "float", "double", "real":
		return TypeFloat, nil
	case "string", "varchar", "text":
		return TypeString, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "datetime", "timestamp":
		return TypeDateTime, nil
	case "uuid":
		return TypeUUID, nil
	case "json":
		return TypeJSON, nil
	default:
		return "", fmt.Errorf("unrecognized data type %q", raw)
	}
}
