package tablekit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ep "github.com/unkn0wn-root/tablekit/epoch"
	ex "github.com/unkn0wn-root/tablekit/executor"
	pr "github.com/unkn0wn-root/tablekit/provider"
)

// ==============================
// test doubles
// ==============================

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	m       map[string]memEntry
	gets    int
	adds    int
	lastTTL time.Duration

	getErr error // when set, every Get fails
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.gets++
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Add(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.adds++
	p.lastTTL = ttl
	if _, ok := p.m[key]; ok {
		return false, nil // first write wins
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error { delete(p.m, key); return nil }
func (p *memProvider) Close(_ context.Context) error           { return nil }

// fakeExecutor is a scriptable executor that records every call, so tests can
// assert both results and that validation short-circuited before any SQL.
type fakeExecutor struct {
	queries []ex.Query
	inserts []ex.Row
	updates []ex.Row
	wheres  []ex.Cond
	stmts   []string

	row      ex.Row
	rowFound bool
	rowErr   error

	value      any
	valueFound bool
	valueErr   error

	insertID  int64
	insertErr error

	affected  int64
	writeErr  error
	hasTable  bool
	execErr   error
	dialect   string

	onQueryRow func() // runs while the query is "in flight"
}

var _ ex.Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) QueryRow(_ context.Context, q ex.Query) (ex.Row, bool, error) {
	f.queries = append(f.queries, q)
	row := f.row
	if f.onQueryRow != nil {
		f.onQueryRow()
	}
	return row, f.rowFound, f.rowErr
}

func (f *fakeExecutor) QueryValue(_ context.Context, q ex.Query) (any, bool, error) {
	f.queries = append(f.queries, q)
	return f.value, f.valueFound, f.valueErr
}

func (f *fakeExecutor) Insert(_ context.Context, _ string, data ex.Row) (int64, error) {
	f.inserts = append(f.inserts, data)
	return f.insertID, f.insertErr
}

func (f *fakeExecutor) Update(_ context.Context, _ string, data ex.Row, where ex.Cond) (int64, error) {
	f.updates = append(f.updates, data)
	f.wheres = append(f.wheres, where)
	return f.affected, f.writeErr
}

func (f *fakeExecutor) Delete(_ context.Context, _ string, where ex.Cond) (int64, error) {
	f.wheres = append(f.wheres, where)
	return f.affected, f.writeErr
}

func (f *fakeExecutor) Exec(_ context.Context, stmt string, _ ...any) error {
	f.stmts = append(f.stmts, stmt)
	return f.execErr
}

func (f *fakeExecutor) TableExists(context.Context, string) (bool, error) { return f.hasTable, nil }

func (f *fakeExecutor) Dialect() string {
	if f.dialect == "" {
		return "mysql"
	}
	return f.dialect
}

func (f *fakeExecutor) Close() error { return nil }

func testSchema() *Schema {
	return &Schema{
		Table: "profiles",
		Columns: []Column{
			{Name: "id", Type: Integer},
			{Name: "name", Type: MarkupText},
			{Name: "score", Type: Float},
		},
		PrimaryKey: "id",
		Defaults:   map[string]any{"score": 0.0},
		Version:    "1.2.0",
		CacheGroup: "profiles",
	}
}

func newTestTable(t *testing.T, fe *fakeExecutor, mp *memProvider, mod func(*Options)) Table {
	t.Helper()
	opts := Options{
		Schema:   testSchema(),
		Executor: fe,
	}
	if mp != nil {
		opts.Provider = mp
	}
	if mod != nil {
		mod(&opts)
	}
	tbl, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = tbl.Close(context.Background()) })
	return tbl
}

// ==============================
// validation / whitelisting
// ==============================

// TestUndeclaredColumnRejectedBeforeSQL verifies that every operation taking
// a column argument fails with ErrInvalidArgument and never reaches the
// executor when the column is not declared.
func TestUndeclaredColumnRejectedBeforeSQL(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	if _, _, err := tbl.GetBy(ctx, "missing_col", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("GetBy: want ErrInvalidArgument, got %v", err)
	}
	if _, _, err := tbl.Column(ctx, "missing_col", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Column: want ErrInvalidArgument, got %v", err)
	}
	if _, _, err := tbl.ColumnBy(ctx, "name", "missing_col", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("ColumnBy: want ErrInvalidArgument, got %v", err)
	}
	if _, err := tbl.UpdateBy(ctx, "missing_col", 1, Row{"name": "x"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("UpdateBy: want ErrInvalidArgument, got %v", err)
	}
	if _, _, err := tbl.GetBy(ctx, "", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("GetBy empty column: want ErrInvalidArgument, got %v", err)
	}

	if n := len(fe.queries) + len(fe.updates); n != 0 {
		t.Fatalf("executor reached %d times on invalid input", n)
	}
}

func TestNonPositiveIDRejected(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	for _, id := range []int64{0, -3} {
		if _, _, err := tbl.Get(ctx, id); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Get(%d): want ErrInvalidArgument, got %v", id, err)
		}
		if _, err := tbl.Update(ctx, id, Row{"name": "x"}); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Update(%d): want ErrInvalidArgument, got %v", id, err)
		}
		if _, err := tbl.Delete(ctx, id); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Delete(%d): want ErrInvalidArgument, got %v", id, err)
		}
	}
	if n := len(fe.queries) + len(fe.updates) + len(fe.wheres); n != 0 {
		t.Fatalf("executor reached %d times on invalid input", n)
	}
}

func TestSchemaValidationAtConstruction(t *testing.T) {
	s := testSchema()
	s.PrimaryKey = "nope"
	if _, err := New(Options{Schema: s, Executor: &fakeExecutor{}}); err == nil {
		t.Fatal("expected error for primary key outside columns")
	}

	s = testSchema()
	s.Table = "bad-name;drop"
	if _, err := New(Options{Schema: s, Executor: &fakeExecutor{}}); err == nil {
		t.Fatal("expected error for unsafe table name")
	}

	if _, err := New(Options{Schema: testSchema()}); err == nil {
		t.Fatal("expected error for missing executor")
	}
}

// ==============================
// read path + caching
// ==============================

func TestGetCachesRowByEpoch(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 1.5}, rowFound: true}
	mp := newMemProvider()
	tbl := newTestTable(t, fe, mp, nil)

	row, ok, err := tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if row["name"] != "Ann" {
		t.Fatalf("row=%v", row)
	}
	if len(fe.queries) != 1 {
		t.Fatalf("want 1 executor query, got %d", len(fe.queries))
	}

	// Second read is served from the provider; the executor is not consulted.
	row2, ok, err := tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get#2: ok=%v err=%v", ok, err)
	}
	if len(fe.queries) != 1 {
		t.Fatalf("cache hit expected; executor queried %d times", len(fe.queries))
	}
	if row2["score"] != 1.5 {
		t.Fatalf("cached row lost coercion: %v", row2["score"])
	}
}

func TestMissingRowIsNotAnError(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{rowFound: false}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	row, ok, err := tbl.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get on absent row errored: %v", err)
	}
	if ok || row != nil {
		t.Fatalf("want (nil, false), got (%v, %v)", row, ok)
	}
}

func TestWriteInvalidatesCachedReads(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 1.0}, rowFound: true, affected: 1}
	mp := newMemProvider()
	tbl := newTestTable(t, fe, mp, nil)

	if _, _, err := tbl.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tbl.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if len(fe.queries) != 1 {
		t.Fatalf("warmup failed; %d executor queries", len(fe.queries))
	}

	if _, err := tbl.Update(ctx, 1, Row{"score": 2}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The pre-write entry still sits in the store, but its key embeds the
	// old epoch, so the next read must go back to the executor.
	fe.row = ex.Row{"id": int64(1), "name": "Ann", "score": 2.0}
	row, ok, err := tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get after write: ok=%v err=%v", ok, err)
	}
	if len(fe.queries) != 2 {
		t.Fatalf("stale cache served after write; %d executor queries", len(fe.queries))
	}
	if row["score"] != 2.0 {
		t.Fatalf("post-write row=%v", row)
	}
}

// TestInFlightReadNotCachedUnderNewEpoch pins down the write-race rule: a
// reader whose query is already executing when a writer bumps the epoch must
// file its (pre-write) result under the epoch it observed before querying.
// Were the epoch re-read at store time, the stale row would land under the
// post-write key and poison every read issued after the write returned.
func TestInFlightReadNotCachedUnderNewEpoch(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 1.0}, rowFound: true}
	mp := newMemProvider()
	epochs := ep.NewLocal(0, 0)
	t.Cleanup(func() { _ = epochs.Close(ctx) })
	tbl := newTestTable(t, fe, mp, func(o *Options) { o.Epochs = epochs })

	// While the first read's query is in flight, a writer commits: the row
	// changes and the group's epoch advances.
	fe.onQueryRow = func() {
		fe.onQueryRow = nil
		if _, err := epochs.Bump(ctx, "profiles"); err != nil {
			t.Fatalf("Bump: %v", err)
		}
		fe.row = ex.Row{"id": int64(1), "name": "Ann", "score": 2.0}
	}

	row, ok, err := tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if row["score"] != 1.0 {
		t.Fatalf("in-flight read row=%v", row)
	}

	// This read starts strictly after the write; it must reach the executor
	// and see the post-write row, not the first reader's stale snapshot.
	row, ok, err = tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get after write: ok=%v err=%v", ok, err)
	}
	if len(fe.queries) != 2 {
		t.Fatalf("stale entry served under post-write epoch; %d executor queries", len(fe.queries))
	}
	if row["score"] != 2.0 {
		t.Fatalf("post-write row=%v", row)
	}
}

func TestCacheTTLZeroAndNegative(t *testing.T) {
	ctx := context.Background()

	// Zero selects the default.
	fe := &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 0.0}, rowFound: true}
	mp := newMemProvider()
	tbl := newTestTable(t, fe, mp, nil)
	if _, _, err := tbl.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if mp.lastTTL != defaultCacheTTL {
		t.Fatalf("default TTL = %v, want %v", mp.lastTTL, defaultCacheTTL)
	}

	// Negative means entries never expire (providers read 0 as no expiry).
	fe = &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 0.0}, rowFound: true}
	mp = newMemProvider()
	tbl = newTestTable(t, fe, mp, func(o *Options) { o.CacheTTL = -1 })
	if _, _, err := tbl.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if mp.lastTTL != 0 {
		t.Fatalf("no-expiry TTL = %v, want 0", mp.lastTTL)
	}
}

func TestCacheFailureFallsThroughToExecutor(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 0.0}, rowFound: true}
	mp := newMemProvider()
	mp.getErr = errors.New("store down")
	tbl := newTestTable(t, fe, mp, nil)

	row, ok, err := tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("cache failure leaked to caller: ok=%v err=%v", ok, err)
	}
	if row["name"] != "Ann" {
		t.Fatalf("row=%v", row)
	}
}

func TestEmptyCacheGroupDisablesCaching(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{row: ex.Row{"id": int64(1), "name": "Ann", "score": 0.0}, rowFound: true, affected: 1, insertID: 7}
	mp := newMemProvider()
	tbl := newTestTable(t, fe, mp, func(o *Options) {
		s := testSchema()
		s.CacheGroup = ""
		o.Schema = s
	})

	if _, _, err := tbl.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Insert(ctx, Row{"name": "Bob"}); err != nil {
		t.Fatal(err)
	}
	if mp.gets != 0 || mp.adds != 0 {
		t.Fatalf("provider touched with caching disabled: gets=%d adds=%d", mp.gets, mp.adds)
	}
}

func TestColumnByReturnsScalar(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{value: "12.5", valueFound: true}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	v, ok, err := tbl.ColumnBy(ctx, "score", "name", "Ann")
	if err != nil || !ok {
		t.Fatalf("ColumnBy: ok=%v err=%v", ok, err)
	}
	if v != 12.5 {
		t.Fatalf("scalar not coerced to float: %v (%T)", v, v)
	}
}

// ==============================
// Exists
// ==============================

func TestExistsUndeclaredColumnIsFalseNotError(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	ok, err := tbl.Exists(ctx, "anything", "nonexistent_column")
	if err != nil {
		t.Fatalf("Exists errored: %v", err)
	}
	if ok {
		t.Fatal("Exists reported true for an undeclared column")
	}
	if len(fe.queries) != 0 {
		t.Fatalf("executor reached for undeclared column")
	}
}

func TestExistsFindsRow(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{value: "Ann", valueFound: true}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	ok, err := tbl.Exists(ctx, "Ann", "name")
	if err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}
}

// ==============================
// write path
// ==============================

// TestInsertSanitizesDefaultsAndCoerces walks the documented scenario: a raw
// payload with markup, a junk column and a missing defaulted column.
func TestInsertSanitizesDefaultsAndCoerces(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{insertID: 1}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	id, err := tbl.Insert(ctx, Row{
		"name":  `<b>Ann</b><script>alert(1)</script>`,
		"other": "ignored",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != 1 {
		t.Fatalf("id=%d", id)
	}

	if len(fe.inserts) != 1 {
		t.Fatalf("inserts=%d", len(fe.inserts))
	}
	written := fe.inserts[0]
	if _, junk := written["other"]; junk {
		t.Fatal("undeclared column reached the executor")
	}
	name, _ := written["name"].(string)
	if strings.Contains(name, "script") {
		t.Fatalf("markup not sanitized: %q", name)
	}
	if !strings.Contains(name, "<b>Ann</b>") {
		t.Fatalf("allow-listed markup stripped too: %q", name)
	}
	if written["score"] != 0.0 {
		t.Fatalf("default not backfilled: %v", written["score"])
	}

	// Reading back yields declared-type values regardless of what the
	// driver hands us.
	fe.row = ex.Row{"id": "1", "name": "<b>Ann</b>", "score": "0"}
	fe.rowFound = true
	row, ok, err := tbl.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if v, isInt := row["id"].(int64); !isInt || v != 1 {
		t.Fatalf("id not Integer-typed: %v (%T)", row["id"], row["id"])
	}
	if v, isFloat := row["score"].(float64); !isFloat || v != 0.0 {
		t.Fatalf("score not Float-typed: %v (%T)", row["score"], row["score"])
	}
}

func TestInsertSanitizedTrustsValues(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{insertID: 2}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	if _, err := tbl.InsertSanitized(ctx, Row{"name": "<b>kept as-is</b>", "junk": 1}); err != nil {
		t.Fatalf("InsertSanitized: %v", err)
	}
	written := fe.inserts[0]
	if written["name"] != "<b>kept as-is</b>" {
		t.Fatalf("trusted value modified: %v", written["name"])
	}
	if _, junk := written["junk"]; junk {
		t.Fatal("whitelisting skipped for trusted payload")
	}
}

func TestInsertZeroIDIsDatabaseError(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{insertID: 0}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	if _, err := tbl.Insert(ctx, Row{"name": "x"}); !errors.Is(err, ErrDatabase) {
		t.Fatalf("want ErrDatabase, got %v", err)
	}
}

func TestUpdateZeroAffectedIsValid(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{affected: 0}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	n, err := tbl.Update(ctx, 99, Row{"name": "x"})
	if err != nil {
		t.Fatalf("Update on absent row errored: %v", err)
	}
	if n != 0 {
		t.Fatalf("affected=%d", n)
	}
}

func TestUpdateStripsPrimaryKey(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{affected: 1}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	if _, err := tbl.Update(ctx, 1, Row{"id": 9, "name": "x"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, present := fe.updates[0]["id"]; present {
		t.Fatal("primary key reached the SET clause")
	}
	if fe.wheres[0].Column != "id" || fe.wheres[0].Value != int64(1) {
		t.Fatalf("predicate=%+v", fe.wheres[0])
	}
}

func TestUpdateOnlyPrimaryKeyIsInvalid(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	if _, err := tbl.Update(ctx, 1, Row{"id": 9}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if len(fe.updates) != 0 {
		t.Fatal("executor reached with empty update set")
	}
}

func TestDeleteReportsAffected(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{affected: 1}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	n, err := tbl.Delete(ctx, 1)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected=%d", n)
	}
	if fe.wheres[0].Column != "id" {
		t.Fatalf("predicate=%+v", fe.wheres[0])
	}
}

func TestExecutorFailureIsDatabaseError(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{rowErr: errors.New("connection refused"), writeErr: errors.New("deadlock")}
	tbl := newTestTable(t, fe, newMemProvider(), nil)

	if _, _, err := tbl.Get(ctx, 1); !errors.Is(err, ErrDatabase) {
		t.Fatalf("Get: want ErrDatabase, got %v", err)
	}
	if _, err := tbl.Delete(ctx, 1); !errors.Is(err, ErrDatabase) {
		t.Fatalf("Delete: want ErrDatabase, got %v", err)
	}
}

// ==============================
// coercion override
// ==============================

func TestCoerceOverrideWins(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExecutor{insertID: 1}
	tbl := newTestTable(t, fe, newMemProvider(), func(o *Options) {
		o.Coerce = func(column string, _ ColumnType, v any) (any, bool) {
			if column == "name" {
				return "override", true
			}
			return nil, false
		}
	})

	if _, err := tbl.Insert(ctx, Row{"name": "<b>Ann</b>"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if fe.inserts[0]["name"] != "override" {
		t.Fatalf("override ignored: %v", fe.inserts[0]["name"])
	}
}
