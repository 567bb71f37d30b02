// Package zapd is the embedded, in-memory, SQL-flavored database engine:
// typed tabular storage, a composable query algebra, per-column
// constraints, transactional batch mutation with a write-ahead log, and
// snapshot persistence sealed with AES-256-GCM and committed with a Blake3
// Merkle root (see Database). The storage-and-query engine is the whole of
// this package's surface; a command-line front end, network transport, and
// connection pooling are deliberately left as external collaborators
// (cmd/zapd demonstrates one such front end without adding behavior here).
package zapd

import (
	"zapd/internal/core"
	"zapd/internal/merkle"
	"zapd/internal/query"
	"zapd/internal/table"
)

// Root is a table's 32-byte Blake3 Merkle commitment, returned by Select
// alongside the matching rows.
type Root = merkle.Root

// Value, DataType and Column are the typed scalar and schema model.
// They are defined in internal/core and re-exported here as the public
// vocabulary callers build rows, columns, and conditions out of.
type (
	Value      = core.Value
	DataType   = core.DataType
	Column     = core.Column
	Constraint = core.Constraint
	Row        = core.Row
)

const (
	TypeInteger  = core.TypeInteger
	TypeFloat    = core.TypeFloat
	TypeString   = core.TypeString
	TypeBoolean  = core.TypeBoolean
	TypeDateTime = core.TypeDateTime
	TypeUUID     = core.TypeUUID
	TypeJSON     = core.TypeJSON
)

var Null = core.Null

var (
	NewInteger  = core.NewInteger
	NewFloat    = core.NewFloat
	NewString   = core.NewString
	NewBoolean  = core.NewBoolean
	NewDateTime = core.NewDateTime
	NewUUID     = core.NewUUID
	NewJSON     = core.NewJSON
)

var (
	NotNull    = core.NotNull
	Unique     = core.Unique
	ForeignKey = core.ForeignKey
)

// ParseDataType normalizes a free-form type name ("int", "varchar", ...)
// into a DataType, for callers that accept type names from flags or config.
var ParseDataType = core.ParseDataType

// Query algebra: MatchAll, Condition (with Operator), And/Or/Not,
// Join (with JoinType), and Aggregate (with AggregateFunc). Defined in
// internal/query and re-exported so a caller never has to reach into an
// internal package to build one.
type (
	Query         = query.Query
	Predicate     = query.Predicate
	MatchAll      = query.MatchAll
	Condition     = query.Condition
	And           = query.And
	Or            = query.Or
	Not           = query.Not
	Operator      = query.Operator
	Join          = query.Join
	JoinType      = query.JoinType
	Aggregate     = query.Aggregate
	AggregateFunc = query.AggregateFunc
)

const (
	Eq  = query.Eq
	Neq = query.Neq
	Lt  = query.Lt
	Lte = query.Lte
	Gt  = query.Gt
	Gte = query.Gte
)

const (
	InnerJoin = query.InnerJoin
	LeftJoin  = query.LeftJoin
	RightJoin = query.RightJoin
)

const (
	Count = query.Count
	Sum   = query.Sum
	Avg   = query.Avg
	Min   = query.Min
	Max   = query.Max
)

// Mutation is the declarative column->Value map an update applies;
// a nil *Value under a key deletes that key. Defined in internal/table.
type Mutation = table.Mutation
