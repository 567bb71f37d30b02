package zapd

import (
	"context"
	"sync"

	"zapd/internal/constraint"
	"zapd/internal/core"
	"zapd/internal/merkle"
	"zapd/internal/persist"
	"zapd/internal/query"
	"zapd/internal/table"
	"zapd/internal/txn"
	"zapd/internal/wal"
)

// Transaction is the handle returned by BeginTransaction and passed to
// Commit.
type Transaction = txn.Transaction

// Database is the single public handle aggregating the table store, the
// constraint checker, the query evaluator, the transaction manager, and
// the persistence pipeline. All exported methods are safe to call
// concurrently: a shared sync.RWMutex around the table map linearizes
// structural writes while letting reads proceed concurrently with each
// other.
type Database struct {
	mu         sync.RWMutex
	tables     map[string]*table.Table
	tableOrder []string

	key     [32]byte
	walPath string
	wal     *wal.Writer

	sharder Sharder
}

// New returns a fresh, empty database handle keyed by key (used to seal
// and open snapshots) and backed by a write-ahead log at walPath.
func New(key [32]byte, walPath string, opts ...Option) (*Database, error) {
	w, err := wal.OpenWriter(walPath)
	if err != nil {
		return nil, err
	}
	db := &Database{
		tables:  make(map[string]*table.Table),
		key:     key,
		walPath: walPath,
		wal:     w,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close releases the handle's open write-ahead log file.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.wal.Close()
}

func (db *Database) lookup(name string) (*table.Table, bool) {
	t, ok := db.tables[name]
	return t, ok
}

// CreateTable declares a new table. name must be unused and columns
// non-empty with unique names and declared DataTypes.
func (db *Database) CreateTable(name string, columns []core.Column) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.tables[name]; exists {
		return &core.TableExistsError{Table: name}
	}
	t, err := table.New(name, columns)
	if err != nil {
		return err
	}
	db.tables[name] = t
	db.tableOrder = append(db.tableOrder, name)
	return nil
}

// CreateIndex builds a secondary index over table/column.
func (db *Database) CreateIndex(tableName, column string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return &core.NoSuchTableError{Table: tableName}
	}
	return t.CreateIndex(column)
}

// DropIndex removes a secondary index over table/column, if one exists.
func (db *Database) DropIndex(tableName, column string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return &core.NoSuchTableError{Table: tableName}
	}
	t.DropIndex(column)
	return nil
}

// Insert validates row against table's schema and constraints and
// appends it on success; on failure the table is unchanged.
func (db *Database) Insert(tableName string, row core.Row) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return &core.NoSuchTableError{Table: tableName}
	}
	if err := constraint.ValidateInsert(db.lookup, t, row); err != nil {
		return err
	}
	t.Insert(row)
	return nil
}

// Update applies mutation to every row of table matching q, validating and
// applying one match at a time so that later rows are checked against the
// already-mutated earlier ones (a batch collapsing two rows onto one UNIQUE
// value must fail). A violation anywhere in the batch restores the table to
// its pre-Update state. It returns the count of rows changed.
func (db *Database) Update(tableName string, q query.Predicate, mutation table.Mutation) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return 0, &core.NoSuchTableError{Table: tableName}
	}
	positions, err := query.MatchPositions(t, q)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}
	cp := t.Checkpoint()
	for _, pos := range positions {
		if _, err := constraint.ValidateMutation(db.lookup, t, pos, mutation); err != nil {
			t.Restore(cp)
			return 0, err
		}
		t.ApplyMutation(pos, mutation)
	}
	return len(positions), nil
}

// Delete removes every row of table matching q and returns the count
// removed; indexes are pruned synchronously.
func (db *Database) Delete(tableName string, q query.Predicate) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return 0, &core.NoSuchTableError{Table: tableName}
	}
	positions, err := query.MatchPositions(t, q)
	if err != nil {
		return 0, err
	}
	return t.DeletePositions(positions), nil
}

// Select evaluates q (a Predicate, Join, or Aggregate) against table
// and returns the matching rows alongside that table's Merkle root
// computed over its current rows.
func (db *Database) Select(tableName string, q query.Query) ([]core.Row, merkle.Root, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[tableName]
	if !ok {
		return nil, merkle.Root{}, &core.NoSuchTableError{Table: tableName}
	}
	rows, err := query.Select(db.lookup, t, q)
	if err != nil {
		return nil, merkle.Root{}, err
	}
	return rows, merkle.RootOf(t.Scan()), nil
}

// BeginTransaction returns a new, empty transaction.
func (db *Database) BeginTransaction() *Transaction {
	return txn.New()
}

// Commit applies tr atomically against the database: the batch is
// first durably appended to the write-ahead log, then applied in memory in
// order; if any operation fails, the already-applied operations in this
// transaction are undone and an Abort frame is appended, otherwise a
// Commit frame is appended. Observers see either none of tr's effects or
// all of them.
func (db *Database) Commit(ctx context.Context, tr *Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := db.wal.Append(wal.KindBegin, nil); err != nil {
		return err
	}
	for _, op := range tr.Ops {
		payload, err := txn.EncodeOp(op)
		if err != nil {
			return err
		}
		if err := db.wal.Append(wal.KindOp, payload); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		_ = db.wal.Append(wal.KindAbort, nil)
		return err
	}

	checkpoints := make(map[string]table.Checkpoint)
	for _, op := range tr.Ops {
		if _, done := checkpoints[op.Table]; done {
			continue
		}
		if t, ok := db.tables[op.Table]; ok {
			checkpoints[op.Table] = t.Checkpoint()
		}
	}

	if err := db.applyTransaction(tr); err != nil {
		for name, cp := range checkpoints {
			db.tables[name].Restore(cp)
		}
		_ = db.wal.Append(wal.KindAbort, nil)
		return err
	}
	return db.wal.Append(wal.KindCommit, nil)
}

// applyTransaction runs every operation in tr against the in-memory store,
// in order, stopping at the first failure. It never suspends, so a
// cancellation cannot land between the WAL commit and the in-memory apply.
func (db *Database) applyTransaction(tr *Transaction) error {
	for i, op := range tr.Ops {
		t, ok := db.tables[op.Table]
		if !ok {
			return &core.TransactionAbortedError{OpIndex: i, Err: &core.NoSuchTableError{Table: op.Table}}
		}
		switch op.Kind {
		case txn.OpInsert:
			if err := constraint.ValidateInsert(db.lookup, t, op.Row); err != nil {
				return &core.TransactionAbortedError{OpIndex: i, Err: err}
			}
			t.Insert(op.Row)
		case txn.OpUpdate:
			positions, err := query.MatchPositions(t, op.Query)
			if err != nil {
				return &core.TransactionAbortedError{OpIndex: i, Err: err}
			}
			for _, pos := range positions {
				if _, err := constraint.ValidateMutation(db.lookup, t, pos, op.Mutation); err != nil {
					return &core.TransactionAbortedError{OpIndex: i, Err: err}
				}
				t.ApplyMutation(pos, op.Mutation)
			}
		case txn.OpDelete:
			positions, err := query.MatchPositions(t, op.Query)
			if err != nil {
				return &core.TransactionAbortedError{OpIndex: i, Err: err}
			}
			t.DeletePositions(positions)
		}
	}
	return nil
}

// Save writes a snapshot of the current database state to path and
// truncates the write-ahead log, since everything it recorded is now
// folded into the snapshot.
func (db *Database) Save(ctx context.Context, path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshots := make([]persist.TableSnapshot, 0, len(db.tableOrder))
	for _, name := range db.tableOrder {
		t := db.tables[name]
		rows := t.Scan()
		root := merkle.RootOf(rows)
		t.SetMerkleRoot(root)
		snapshots = append(snapshots, persist.TableSnapshot{
			Name:       t.Name,
			Columns:    t.Columns,
			Rows:       rows,
			Indexes:    t.IndexedColumns(),
			MerkleRoot: root,
		})
	}

	if err := persist.Save(path, db.key, snapshots); err != nil {
		return err
	}
	if err := db.wal.Close(); err != nil {
		return err
	}
	if err := wal.Truncate(db.walPath); err != nil {
		return err
	}
	w, err := wal.OpenWriter(db.walPath)
	if err != nil {
		return err
	}
	db.wal = w
	return nil
}

// Load restores state from the snapshot at path, replays every
// Commit-terminated transaction recorded in the write-ahead log since the
// snapshot was taken, and verifies the Merkle root of every restored
// table. On any failure the database keeps whatever state it had before
// Load was called: nothing is published until every table has been rebuilt
// and verified.
func (db *Database) Load(ctx context.Context, path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshots, err := persist.Load(path, db.key)
	if err != nil {
		return err
	}

	newTables := make(map[string]*table.Table, len(snapshots))
	order := make([]string, 0, len(snapshots))
	for _, snap := range snapshots {
		t, err := table.New(snap.Name, snap.Columns)
		if err != nil {
			return err
		}
		for _, row := range snap.Rows {
			t.Insert(row)
		}
		for _, col := range snap.Indexes {
			if err := t.CreateIndex(col); err != nil {
				return err
			}
		}
		t.SetMerkleRoot(snap.MerkleRoot)
		newTables[snap.Name] = t
		order = append(order, snap.Name)
	}

	for _, name := range order {
		t := newTables[name]
		if merkle.RootOf(t.Scan()) != t.MerkleRoot() {
			return &core.IntegrityFailureError{Table: name}
		}
	}

	records, err := wal.ReadAll(db.walPath)
	if err != nil {
		return err
	}
	for _, frames := range wal.Transactions(records) {
		last := frames[len(frames)-1]
		if last.Kind != wal.KindCommit {
			continue
		}
		for _, rec := range frames[1 : len(frames)-1] {
			if rec.Kind != wal.KindOp {
				continue
			}
			op, err := txn.DecodeOp(rec.Payload)
			if err != nil {
				return &core.DeserializationFailedError{Reason: "corrupt WAL operation frame"}
			}
			t, ok := newTables[op.Table]
			if !ok {
				continue
			}
			switch op.Kind {
			case txn.OpInsert:
				t.Insert(op.Row)
			case txn.OpUpdate:
				positions, _ := query.MatchPositions(t, op.Query)
				for _, pos := range positions {
					t.ApplyMutation(pos, op.Mutation)
				}
			case txn.OpDelete:
				positions, _ := query.MatchPositions(t, op.Query)
				t.DeletePositions(positions)
			}
		}
	}

	// Replay mutated rows past the snapshot's commitments; refresh every
	// table's stored root so VerifyIntegrity holds immediately after Load.
	for _, name := range order {
		t := newTables[name]
		t.SetMerkleRoot(merkle.RootOf(t.Scan()))
	}

	db.tables = newTables
	db.tableOrder = order
	return nil
}

// VerifyIntegrity rebuilds every table's Merkle tree and compares it
// against the root recorded by the last Save or Load.
func (db *Database) VerifyIntegrity() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, name := range db.tableOrder {
		t := db.tables[name]
		if t.MerkleRoot() == (merkle.Root{}) {
			// No commitment recorded yet: the table was created since the
			// last Save/Load and has nothing to verify against.
			continue
		}
		if merkle.RootOf(t.Scan()) != t.MerkleRoot() {
			return false
		}
	}
	return true
}
