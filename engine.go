package tablekit

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/tablekit/codec"
	ep "github.com/unkn0wn-root/tablekit/epoch"
	ex "github.com/unkn0wn-root/tablekit/executor"
	"github.com/unkn0wn-root/tablekit/internal/keys"
	pr "github.com/unkn0wn-root/tablekit/provider"
)

const defaultCacheTTL = 10 * time.Minute

type table struct {
	schema *Schema
	exec   ex.Executor
	prov   pr.Provider
	codec  c.Codec[Row]
	epochs ep.Store
	log    Logger
	hooks  Hooks
	coerce CoerceFunc
	ttl    time.Duration

	// caching is fixed at construction: a nil provider, an empty cache
	// group, or Disabled all mean every cache operation is a no-op.
	caching bool

	ownEpochs bool // close the epoch store only when we created it

	cols map[string]ColumnType // whitelist index over schema.Columns
}

func newTable(opts Options) (*table, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("tablekit: executor is required")
	}
	if err := opts.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("tablekit: %w", err)
	}

	t := &table{
		schema: opts.Schema,
		exec:   opts.Executor,
		prov:   opts.Provider,
		coerce: opts.Coerce,
	}

	t.log = coalesce[Logger](opts.Logger, NopLogger{})
	t.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	switch {
	case opts.CacheTTL < 0:
		t.ttl = 0 // no expiry
	case opts.CacheTTL == 0:
		t.ttl = defaultCacheTTL
	default:
		t.ttl = opts.CacheTTL
	}

	if opts.Codec != nil {
		t.codec = opts.Codec
	} else {
		t.codec = c.JSONCodec[Row]{}
	}

	t.caching = !opts.Disabled && t.prov != nil && t.schema.CacheGroup != ""
	if opts.Epochs != nil {
		t.epochs = opts.Epochs
	} else if t.caching {
		t.epochs = ep.NewLocal(0, 0)
		t.ownEpochs = true
	}

	t.cols = make(map[string]ColumnType, len(t.schema.Columns))
	for _, col := range t.schema.Columns {
		t.cols[col.Name] = col.Type
	}

	return t, nil
}

func (t *table) Schema() *Schema { return t.schema }

func (t *table) Close(ctx context.Context) error {
	if t.ownEpochs && t.epochs != nil {
		_ = t.epochs.Close(ctx)
	}
	if t.prov != nil {
		return t.prov.Close(ctx)
	}
	return nil
}

// ----- read path -----

func (t *table) Get(ctx context.Context, id int64) (Row, bool, error) {
	const op = "get"
	if err := t.requireID(op, id); err != nil {
		return nil, false, err
	}
	q := ex.Query{
		SQL:  fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", t.schema.Table, t.schema.PrimaryKey),
		Args: []any{id},
	}
	return t.fetchRow(ctx, op, q)
}

func (t *table) GetBy(ctx context.Context, column string, value any) (Row, bool, error) {
	const op = "get_by"
	ct, err := t.requireColumn(op, column)
	if err != nil {
		return nil, false, err
	}
	bound, err := t.bindWhereValue(op, ct, value)
	if err != nil {
		return nil, false, err
	}
	q := ex.Query{
		SQL:  fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", t.schema.Table, column),
		Args: []any{bound},
	}
	return t.fetchRow(ctx, op, q)
}

func (t *table) Column(ctx context.Context, column string, id int64) (any, bool, error) {
	const op = "get_column"
	if _, err := t.requireColumn(op, column); err != nil {
		return nil, false, err
	}
	if err := t.requireID(op, id); err != nil {
		return nil, false, err
	}
	q := ex.Query{
		SQL:  fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", column, t.schema.Table, t.schema.PrimaryKey),
		Args: []any{id},
	}
	return t.fetchValue(ctx, op, column, q)
}

func (t *table) ColumnBy(ctx context.Context, column, whereColumn string, whereValue any) (any, bool, error) {
	const op = "get_column_by"
	if _, err := t.requireColumn(op, column); err != nil {
		return nil, false, err
	}
	wt, err := t.requireColumn(op, whereColumn)
	if err != nil {
		return nil, false, err
	}
	bound, err := t.bindWhereValue(op, wt, whereValue)
	if err != nil {
		return nil, false, err
	}
	q := ex.Query{
		SQL:  fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", column, t.schema.Table, whereColumn),
		Args: []any{bound},
	}
	return t.fetchValue(ctx, op, column, q)
}

// Exists is deliberately lenient: asking about a column the schema does not
// declare answers "no such row" instead of failing, so callers can probe
// optional columns without guarding.
func (t *table) Exists(ctx context.Context, value any, column string) (bool, error) {
	if column == "" {
		column = t.schema.PrimaryKey
	}
	if !t.schema.HasColumn(column) {
		return false, nil
	}
	v, ok, err := t.ColumnBy(ctx, column, column, value)
	if err != nil {
		return false, err
	}
	return ok && v != nil, nil
}

// fetchRow serves q from the cache when possible, falling through to the
// executor on a miss. The raw executor row is cached (first-write-wins);
// coercion happens after, on the way out. The cache key is computed exactly
// once, before the query runs, so the result is only ever stored under the
// epoch that was current when the query began - a writer bumping mid-query
// cannot get a pre-write row filed under its post-write epoch.
func (t *table) fetchRow(ctx context.Context, op string, q ex.Query) (Row, bool, error) {
	key, cacheable := t.cacheKey(ctx, q)
	if cacheable {
		if row, ok := t.cachedRow(ctx, key); ok {
			return t.coerceRow(row), true, nil
		}
	}
	row, found, err := t.exec.QueryRow(ctx, q)
	if err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return nil, false, e
	}
	if !found {
		return nil, false, nil
	}
	if cacheable {
		t.storeRow(ctx, key, row)
	}
	return t.coerceRow(row), true, nil
}

func (t *table) fetchValue(ctx context.Context, op, column string, q ex.Query) (any, bool, error) {
	key, cacheable := t.cacheKey(ctx, q)
	if cacheable {
		if row, ok := t.cachedRow(ctx, key); ok {
			if v, present := row[column]; present {
				return t.coerceValue(column, v), true, nil
			}
		}
	}
	v, found, err := t.exec.QueryValue(ctx, q)
	if err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return nil, false, e
	}
	if !found {
		return nil, false, nil
	}
	if cacheable {
		t.storeRow(ctx, key, Row{column: v})
	}
	return t.coerceValue(column, v), true, nil
}

// ----- write path -----

func (t *table) Insert(ctx context.Context, data Row) (int64, error) {
	return t.insert(ctx, "insert", t.sanitizeRow(data))
}

func (t *table) InsertSanitized(ctx context.Context, data Row) (int64, error) {
	return t.insert(ctx, "insert_sanitized", t.whitelistRow(data))
}

func (t *table) insert(ctx context.Context, op string, data Row) (int64, error) {
	t.applyDefaults(data)
	if len(data) == 0 {
		e := invalidArgf(op, "no declared columns in payload")
		t.logErr(e)
		return 0, e
	}

	id, err := t.exec.Insert(ctx, t.schema.Table, data)
	if err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return 0, e
	}
	if id == 0 {
		e := dbErrf(op, "no row written")
		t.logErr(e)
		return 0, e
	}

	t.bumpEpoch(ctx)
	return id, nil
}

func (t *table) Update(ctx context.Context, id int64, data Row) (int64, error) {
	return t.update(ctx, "update", t.schema.PrimaryKey, id, t.sanitizeRow(data))
}

func (t *table) UpdateSanitized(ctx context.Context, id int64, data Row) (int64, error) {
	return t.update(ctx, "update_sanitized", t.schema.PrimaryKey, id, t.whitelistRow(data))
}

func (t *table) UpdateBy(ctx context.Context, whereColumn string, id int64, data Row) (int64, error) {
	const op = "update_by"
	if whereColumn == "" {
		whereColumn = t.schema.PrimaryKey
	}
	if _, err := t.requireColumn(op, whereColumn); err != nil {
		return 0, err
	}
	return t.update(ctx, op, whereColumn, id, t.sanitizeRow(data))
}

func (t *table) update(ctx context.Context, op, whereColumn string, id int64, data Row) (int64, error) {
	if err := t.requireID(op, id); err != nil {
		return 0, err
	}

	// The primary key is never mutated through this path.
	delete(data, t.schema.PrimaryKey)
	if len(data) == 0 {
		e := invalidArgf(op, "no declared columns to update")
		t.logErr(e)
		return 0, e
	}

	affected, err := t.exec.Update(ctx, t.schema.Table, data, ex.Cond{Column: whereColumn, Value: id})
	if err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return 0, e
	}

	// Zero affected rows means "nothing matched the predicate" and is a
	// valid outcome; the write still succeeded, so the epoch advances.
	t.bumpEpoch(ctx)
	return affected, nil
}

func (t *table) Delete(ctx context.Context, id int64) (int64, error) {
	const op = "delete"
	if err := t.requireID(op, id); err != nil {
		return 0, err
	}

	affected, err := t.exec.Delete(ctx, t.schema.Table, ex.Cond{Column: t.schema.PrimaryKey, Value: id})
	if err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return 0, e
	}

	t.bumpEpoch(ctx)
	return affected, nil
}

// ----- validation -----

func (t *table) requireID(op string, id int64) error {
	if id <= 0 {
		e := invalidArgf(op, "row id must be a positive integer, got %d", id)
		t.logErr(e)
		return e
	}
	return nil
}

func (t *table) requireColumn(op, column string) (ColumnType, error) {
	if column == "" {
		e := invalidArgf(op, "column name is empty")
		t.logErr(e)
		return 0, e
	}
	ct, ok := t.cols[column]
	if !ok {
		e := invalidArgf(op, "column %q is not declared on table %s", column, t.schema.Table)
		t.logErr(e)
		return 0, e
	}
	return ct, nil
}

// bindWhereValue prepares a predicate value for binding. Integer columns
// keep the positive-identifier rule the primary key obeys; other types go
// through the usual inbound sanitization.
func (t *table) bindWhereValue(op string, ct ColumnType, v any) (any, error) {
	if ct == Integer {
		id := toInt64(v)
		if id <= 0 {
			e := invalidArgf(op, "row id must be a positive integer, got %v", v)
			t.logErr(e)
			return nil, e
		}
		return id, nil
	}
	if sv := Sanitize(ct, v); sv != nil {
		return sv, nil
	}
	return v, nil
}

// ----- sanitization -----

// sanitizeRow drops undeclared columns and converts every kept value to its
// declared type, consulting the override hook first.
func (t *table) sanitizeRow(data Row) Row {
	out := make(Row, len(data))
	for name, v := range data {
		ct, ok := t.cols[name]
		if !ok {
			continue
		}
		out[name] = t.applyCoerce(name, ct, v)
	}
	return out
}

// whitelistRow drops undeclared columns but keeps values as-is: the caller
// vouched that they are already typed.
func (t *table) whitelistRow(data Row) Row {
	out := make(Row, len(data))
	for name, v := range data {
		if _, ok := t.cols[name]; !ok {
			continue
		}
		out[name] = v
	}
	return out
}

func (t *table) applyDefaults(data Row) {
	for name, dv := range t.schema.Defaults {
		if _, present := data[name]; !present {
			data[name] = dv
		}
	}
}

func (t *table) coerceRow(row Row) Row {
	out := make(Row, len(row))
	for name, v := range row {
		out[name] = t.coerceValue(name, v)
	}
	return out
}

func (t *table) coerceValue(name string, v any) any {
	ct, ok := t.cols[name]
	if !ok {
		return v // columns outside the schema (joins, aliases) pass through
	}
	return t.applyCoerce(name, ct, v)
}

func (t *table) applyCoerce(name string, ct ColumnType, v any) any {
	if t.coerce != nil {
		if nv, ok := t.coerce(name, ct, v); ok {
			return nv
		}
	}
	return Coerce(ct, v)
}

// ----- cache plumbing -----
//
// Every failure below degrades to "miss" or "skip"; the cache must never
// decide the outcome of a call.

// cacheKey resolves q to its provider key under the group's current epoch.
// ok=false means "don't touch the cache for this call": caching is off or the
// epoch could not be read. Callers resolve the key once per logical call and
// reuse it for both the lookup and the post-query store.
func (t *table) cacheKey(ctx context.Context, q ex.Query) (string, bool) {
	if !t.caching {
		return "", false
	}
	epochNow, err := t.epochs.Current(ctx, t.schema.CacheGroup)
	if err != nil {
		t.hooks.EpochReadError(t.schema.CacheGroup, err)
		t.log.Warn("epoch read failed; skipping cache", Fields{"group": t.schema.CacheGroup, "err": err})
		return "", false
	}
	return keys.QueryKey(t.schema.CacheGroup, t.schema.Table, epochNow, q.SQL, q.Args), true
}

func (t *table) cachedRow(ctx context.Context, key string) (Row, bool) {
	raw, ok, err := t.prov.Get(ctx, key)
	if err != nil {
		t.hooks.CacheReadError(t.schema.Table, key, err)
		t.log.Warn("cache read failed; treating as miss", Fields{"key": key, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	row, err := t.codec.Decode(raw)
	if err != nil {
		_ = t.prov.Del(ctx, key) // self-heal corrupt entry
		t.hooks.CacheDecodeError(t.schema.Table, key)
		t.log.Debug("cached entry dropped (decode failure)", Fields{"key": key})
		return nil, false
	}
	return row, true
}

// storeRow files row under key, which carries the epoch observed before the
// row's query ran. Storing under a re-read epoch would let a result that
// predates a concurrent write masquerade as post-write.
func (t *table) storeRow(ctx context.Context, key string, row Row) {
	payload, err := t.codec.Encode(row)
	if err != nil {
		t.log.Debug("cache encode failed; result not stored", Fields{"err": err})
		return
	}
	ok, err := t.prov.Add(ctx, key, payload, int64(len(payload)), t.ttl)
	if err != nil {
		t.log.Debug("cache add failed", Fields{"key": key, "err": err})
		return
	}
	if !ok {
		// A concurrent fill won the race (or the store declined); either
		// way the loser's value is discarded.
		t.hooks.ProviderAddRejected(t.schema.Table, key)
	}
}

// bumpEpoch runs after the executor confirmed the write and before the call
// returns, so any read that starts after the write observes the new
// generation. A failed bump is best-effort: logged, hooked, never surfaced.
func (t *table) bumpEpoch(ctx context.Context) {
	if !t.caching {
		return
	}
	if _, err := t.epochs.Bump(ctx, t.schema.CacheGroup); err != nil {
		t.hooks.EpochBumpError(t.schema.CacheGroup, err)
		t.log.Warn("epoch bump failed; cached reads may serve pre-write rows until TTL",
			Fields{"group": t.schema.CacheGroup, "err": err})
	}
}

func (t *table) logErr(e *Error) {
	t.log.Error(e.Error(), Fields{"table": t.schema.Table, "op": e.Op})
}
