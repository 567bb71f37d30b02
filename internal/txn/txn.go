// Package txn implements the transaction manager: a Transaction is a
// sequence of (table, operation) entries, built up by the caller and
// committed against the database as one atomic step. Operation encoding
// here is what makes a transaction WAL-replayable: mutators are restricted
// to table.Mutation's declarative column->Value map rather than an
// arbitrary function, so recovery can redo the mutation without running
// caller code.
package txn

import (
	"zapd/internal/core"
	"zapd/internal/query"
	"zapd/internal/table"
)

// OpKind identifies which of the three operation shapes an Operation is.
type OpKind byte

const (
	OpInsert OpKind = 1
	OpUpdate OpKind = 2
	OpDelete OpKind = 3
)

// Operation is one step of a Transaction: an Insert carries Row, an Update
// carries Query and Mutation, a Delete carries only Query.
type Operation struct {
	Kind     OpKind
	Table    string
	Row      core.Row
	Query    query.Predicate
	Mutation table.Mutation
}

// Transaction buffers a batch of operations for atomic commit. It is
// created empty and only ever appended to before being committed once.
type Transaction struct {
	Ops []Operation
}

// New returns an empty transaction.
func New() *Transaction { return &Transaction{} }

// Insert appends an insert operation.
func (t *Transaction) Insert(tableName string, row core.Row) {
	t.Ops = append(t.Ops, Operation{Kind: OpInsert, Table: tableName, Row: row})
}

// Update appends an update operation. mutation must be a declarative
// column->Value map: this is the only mutator shape a transactional
// update accepts.
func (t *Transaction) Update(tableName string, q query.Predicate, mutation table.Mutation) {
	t.Ops = append(t.Ops, Operation{Kind: OpUpdate, Table: tableName, Query: q, Mutation: mutation})
}

// Delete appends a delete operation.
func (t *Transaction) Delete(tableName string, q query.Predicate) {
	t.Ops = append(t.Ops, Operation{Kind: OpDelete, Table: tableName, Query: q})
}
