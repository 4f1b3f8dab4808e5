package tablekit

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/tablekit/codec"
	ep "github.com/unkn0wn-root/tablekit/epoch"
	ex "github.com/unkn0wn-root/tablekit/executor"
	pr "github.com/unkn0wn-root/tablekit/provider"
)

// Row is one logical row, column name to value. Values returned by reads are
// coerced to the column's declared type; values passed to the sanitizing
// writes may be anything and are converted.
type Row = ex.Row

// Table is the typed access surface for one declared table. All operations
// validate caller input against the Schema before any SQL is constructed:
// row identifiers must be positive, column arguments must be declared
// columns. Reads are served from the cache when the table's generation
// allows it; every successful write advances the generation.
type Table interface {
	Schema() *Schema
	Close(context.Context) error

	// Reads. ok=false with a nil error means "no such row".
	Get(ctx context.Context, id int64) (row Row, ok bool, err error)
	GetBy(ctx context.Context, column string, value any) (row Row, ok bool, err error)
	Column(ctx context.Context, column string, id int64) (v any, ok bool, err error)
	ColumnBy(ctx context.Context, column, whereColumn string, whereValue any) (v any, ok bool, err error)

	// Exists reports whether a row with column = value exists. An undeclared
	// column yields (false, nil) rather than an error - lenient on purpose,
	// unlike the strict validation everywhere else.
	Exists(ctx context.Context, value any, column string) (bool, error)

	// Writes. Insert/Update run every value through declared-type
	// sanitization; the *Sanitized variants trust the caller to pass
	// already-typed values and skip that pass. Both whitelist column names.
	Insert(ctx context.Context, data Row) (id int64, err error)
	InsertSanitized(ctx context.Context, data Row) (id int64, err error)
	Update(ctx context.Context, id int64, data Row) (affected int64, err error)
	UpdateSanitized(ctx context.Context, id int64, data Row) (affected int64, err error)
	UpdateBy(ctx context.Context, whereColumn string, id int64, data Row) (affected int64, err error)
	Delete(ctx context.Context, id int64) (affected int64, err error)

	// DDL. CreateTable is idempotent; with no explicit definitions the
	// column list is derived from the Schema. AlterTable is restricted to
	// the Add/Drop/Alter/Modify vocabulary.
	CreateTable(ctx context.Context, defs ...string) error
	AlterTable(ctx context.Context, action AlterAction, column, definition string) error
}

// Options tune one Table. Schema and Executor are required; with a nil
// Provider (or an empty Schema.CacheGroup) the engine runs uncached.
type Options struct {
	// Required
	Schema   *Schema
	Executor ex.Executor

	Provider pr.Provider     // nil => no caching
	Codec    c.Codec[Row]    // nil => JSON
	Epochs   ep.Store        // nil => epoch.NewLocal (in-process)
	Logger   Logger          // nil => NopLogger
	Hooks    Hooks           // nil => NopHooks
	Coerce   CoerceFunc      // optional per-column override, wins over the type switch
	// CacheTTL bounds the lifetime of cached query results. Zero selects the
	// 10m default; a negative value means entries never expire (providers
	// treat a non-positive TTL as "no expiry").
	CacheTTL time.Duration
	Disabled bool            // force-disable caching regardless of the above
}

func New(opts Options) (Table, error) {
	return newTable(opts)
}
