// Package tablekit implements a schema-driven access layer for logical tables.
// An application declares a Schema (table name, typed columns, primary key,
// defaults, version) and gets validated, cached CRUD against it without writing
// per-table SQL. Column names accepted from callers are whitelisted against the
// Schema before they reach identifier position; values are always bound.
//
// Components:
//   - executor.Executor: the relational backend (database/sql implementation
//     for mysql and sqlite3 included).
//   - provider.Provider: byte store with TTL and add-if-absent semantics
//     (Redis, BigCache, Ristretto).
//   - epoch.Store: per-group last-changed generation. Local (in-process) by
//     default, optional Redis implementation for multi-replica coherence.
//   - codec.Codec[V]: (de)serializes cached rows <-> []byte.
//
// Invalidation is epoch-embedding: cache keys carry the table group's current
// generation, so a successful write bumps the generation and every key minted
// before it simply stops being addressed. Nothing is enumerated or deleted;
// stale entries age out of the provider naturally.
//
// Keys:
//
//	q:<group>:<table>:<epoch>:<hash>  - cached query results
//	epoch:<group>                     - generation counters (Redis store)
//
// The cache is strictly best-effort: any provider or epoch store failure is
// treated as a miss and the query falls through to the executor.
package tablekit
