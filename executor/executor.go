// Package executor defines the relational backend consumed by the engine.
//
// The engine owns identifier safety: table and column names arrive here only
// after whitelisting, already interpolated into Query.SQL. Implementations
// own value binding and MUST bind Query.Args as parameters - never splice
// them into the statement text.
package executor

import "context"

// Row is one result row, column name to raw driver value. The engine applies
// declared-type coercion on top; executors return driver values as-is.
type Row map[string]any

// Query is a fully-bound read: statement text with `?` placeholders plus the
// values for them. The pair doubles as the canonical request descriptor the
// engine fingerprints for cache keys, so the same logical query must always
// produce identical SQL and args.
type Query struct {
	SQL  string
	Args []any
}

// Cond is the single-column predicate used by writes (column already
// whitelisted by the engine).
type Cond struct {
	Column string
	Value  any
}

// Executor is the query-execution surface. Implementations must be safe for
// concurrent use. Reads distinguish "no row" (ok=false, err=nil) from
// failure; writes report affected counts.
type Executor interface {
	// QueryRow runs q and returns the first row, or ok=false when there is
	// no matching row.
	QueryRow(ctx context.Context, q Query) (Row, bool, error)

	// QueryValue runs q and returns the first column of the first row.
	QueryValue(ctx context.Context, q Query) (any, bool, error)

	// Insert writes one row and returns the newly assigned auto-increment id.
	Insert(ctx context.Context, table string, data Row) (int64, error)

	// Update modifies rows matching where and returns the affected count
	// (zero when nothing matched).
	Update(ctx context.Context, table string, data Row, where Cond) (int64, error)

	// Delete removes rows matching where and returns the affected count.
	Delete(ctx context.Context, table string, where Cond) (int64, error)

	// Exec runs a DDL or metadata statement with bound args.
	Exec(ctx context.Context, stmt string, args ...any) error

	// TableExists reports whether the physical table is present.
	TableExists(ctx context.Context, table string) (bool, error)

	// Dialect identifies the backend ("mysql", "sqlite3") for the rare
	// statements that differ per engine (DDL fragments).
	Dialect() string

	// Close releases the underlying connections.
	Close() error
}
