package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// SQLOptions configure the database/sql backed executor. DSN wins when set;
// otherwise one is assembled from the discrete fields.
type SQLOptions struct {
	Driver   string // "mysql" (default) or "sqlite3"
	DSN      string
	Host     string
	Port     string
	Database string // file path (or ":memory:") for sqlite3
	Username string
	Password string
	Charset  string
	MaxConns int
	MaxIdle  int
}

// SQLExecutor implements Executor on top of database/sql.
type SQLExecutor struct {
	db     *sql.DB
	driver string
}

var _ Executor = (*SQLExecutor)(nil)

func NewSQLExecutor(opts SQLOptions) (*SQLExecutor, error) {
	driver := opts.Driver
	if driver == "" {
		driver = "mysql"
	}

	dsn := opts.DSN
	if dsn == "" {
		switch driver {
		case "mysql":
			host := opts.Host
			if host == "" {
				host = "localhost"
			}
			port := opts.Port
			if port == "" {
				port = "3306"
			}
			charset := opts.Charset
			if charset == "" {
				charset = "utf8mb4"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
				opts.Username, opts.Password, host, port, opts.Database, charset)
		case "sqlite3":
			dsn = opts.Database
		default:
			return nil, fmt.Errorf("executor: unsupported driver: %s", driver)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLExecutor{db: db, driver: driver}, nil
}

// NewSQLExecutorFromDB wraps an existing pool. The caller keeps ownership of
// closing the *sql.DB when Close is never used.
func NewSQLExecutorFromDB(db *sql.DB, driver string) *SQLExecutor {
	return &SQLExecutor{db: db, driver: driver}
}

func (e *SQLExecutor) Dialect() string { return e.driver }

func (e *SQLExecutor) Close() error { return e.db.Close() }

func (e *SQLExecutor) QueryRow(ctx context.Context, q Query) (Row, bool, error) {
	rows, err := e.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (e *SQLExecutor) QueryValue(ctx context.Context, q Query) (any, bool, error) {
	rows, err := e.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, false, err
	}
	return normalize(values[0]), true, nil
}

func (e *SQLExecutor) Insert(ctx context.Context, table string, data Row) (int64, error) {
	cols := sortedColumns(data)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = data[c]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	res, err := e.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (e *SQLExecutor) Update(ctx context.Context, table string, data Row, where Cond) (int64, error) {
	cols := sortedColumns(data)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, data[c])
	}
	args = append(args, where.Value)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		table, strings.Join(sets, ", "), where.Column)

	res, err := e.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e *SQLExecutor) Delete(ctx context.Context, table string, where Cond) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, where.Column)
	res, err := e.db.ExecContext(ctx, stmt, where.Value)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e *SQLExecutor) Exec(ctx context.Context, stmt string, args ...any) error {
	_, err := e.db.ExecContext(ctx, stmt, args...)
	return err
}

func (e *SQLExecutor) TableExists(ctx context.Context, table string) (bool, error) {
	var q Query
	switch e.driver {
	case "sqlite3":
		q = Query{SQL: "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", Args: []any{table}}
	default:
		q = Query{SQL: "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", Args: []any{table}}
	}
	_, ok, err := e.QueryValue(ctx, q)
	return ok, err
}

// sortedColumns fixes the column order so that the same logical write always
// produces identical statement text.
func sortedColumns(data Row) []string {
	cols := make([]string, 0, len(data))
	for c := range data {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func scanRow(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(Row, len(cols))
	for i, c := range cols {
		row[c] = normalize(values[i])
	}
	return row, nil
}

// normalize keeps text readable across drivers: mysql hands strings back as
// []byte, which stringifies badly in logs and JSON cache payloads.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
