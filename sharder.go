package zapd

// Sharder is the optional sharding hook: an opaque interface the
// facade constructor may accept, routing a table name to a shard
// identifier. The default Database never calls a Sharder; nothing in the
// read/write path is wired to it. It exists only so the facade's
// constructor shape matches what a multi-shard deployment would plug in.
// The engine holds no network client and shares no state with whatever
// implements this interface.
type Sharder interface {
	// RouteTable reports which shard owns tableName, if the sharder has
	// an opinion. ok is false when the sharder defers to the single
	// local instance (the only behavior this package ever exercises).
	RouteTable(tableName string) (shardID string, ok bool)
}

// Option configures New.
type Option func(*Database)

// WithSharder attaches a Sharder to a Database for a caller that wants to
// carry shard-routing metadata alongside a handle. It does not change how
// the handle behaves: no operation in this package ever calls RouteTable.
func WithSharder(s Sharder) Option {
	return func(db *Database) { db.sharder = s }
}
