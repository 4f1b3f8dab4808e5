package tablekit

import (
	"context"
	"fmt"
	"strings"
)

// AlterAction is the fixed vocabulary AlterTable accepts. Anything else is
// rejected before reaching the executor.
type AlterAction string

const (
	AlterAdd    AlterAction = "ADD"
	AlterDrop   AlterAction = "DROP"
	AlterAlter  AlterAction = "ALTER"
	AlterModify AlterAction = "MODIFY"
)

// versionTable is the shared metadata table recording each created table's
// schema version.
const versionTable = "schema_versions"

// CreateTable creates the physical table. A table that already exists is a
// no-op success. When no explicit column definitions are supplied, one
// fragment per schema column is derived from its declared type and the
// primary-key constraint is appended. The schema version is persisted as
// metadata afterwards, best-effort.
func (t *table) CreateTable(ctx context.Context, defs ...string) error {
	const op = "create_table"

	exists, err := t.exec.TableExists(ctx, t.schema.Table)
	if err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return e
	}
	if exists {
		return nil
	}

	if len(defs) == 0 {
		defs = t.columnDefs()
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", t.schema.Table, strings.Join(defs, ", "))

	if err := t.exec.Exec(ctx, stmt); err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return e
	}

	if err := t.saveVersion(ctx); err != nil {
		// Metadata only; the table itself is in place.
		t.log.Warn("schema version not persisted", Fields{"table": t.schema.Table, "err": err})
	}
	return nil
}

// AlterTable applies one column-level change. The action must be one of
// Add/Drop/Alter/Modify; the column must be a valid identifier (it may be a
// new column, so the schema whitelist does not apply).
func (t *table) AlterTable(ctx context.Context, action AlterAction, column, definition string) error {
	const op = "alter_table"

	switch action {
	case AlterAdd, AlterDrop, AlterAlter, AlterModify:
	default:
		e := invalidArgf(op, "unsupported action %q", string(action))
		t.logErr(e)
		return e
	}
	if !validIdent(column) {
		e := invalidArgf(op, "column name %q is not a valid identifier", column)
		t.logErr(e)
		return e
	}

	var stmt string
	if action == AlterDrop {
		stmt = fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", t.schema.Table, column)
	} else {
		stmt = fmt.Sprintf("ALTER TABLE %s %s COLUMN %s %s", t.schema.Table, string(action), column, definition)
	}

	if err := t.exec.Exec(ctx, stmt); err != nil {
		e := dbErr(op, err)
		t.logErr(e)
		return e
	}
	return nil
}

// columnDefs derives one DDL fragment per declared column. The mapping is
// intentionally coarse - table creation is rare and hosts needing precise
// types pass explicit definitions.
func (t *table) columnDefs() []string {
	sqlite := t.exec.Dialect() == "sqlite3"

	defs := make([]string, 0, len(t.schema.Columns)+1)
	for _, col := range t.schema.Columns {
		pk := col.Name == t.schema.PrimaryKey
		defs = append(defs, columnDef(col, pk, sqlite))
	}
	if !sqlite {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", t.schema.PrimaryKey))
	}
	return defs
}

func columnDef(col Column, pk, sqlite bool) string {
	var typ string
	switch col.Type {
	case Integer:
		if sqlite {
			typ = "INTEGER"
			if pk {
				// sqlite auto-increments only this exact column form
				return col.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
			}
		} else {
			typ = "BIGINT"
			if pk {
				typ = "BIGINT NOT NULL AUTO_INCREMENT"
			}
		}
	case Float:
		if sqlite {
			typ = "REAL"
		} else {
			typ = "DOUBLE"
		}
	case MarkupText:
		if sqlite {
			typ = "TEXT"
		} else {
			typ = "VARCHAR(255)"
		}
	default:
		typ = "TEXT"
	}
	if sqlite && pk {
		return col.Name + " " + typ + " PRIMARY KEY"
	}
	return col.Name + " " + typ
}

// saveVersion upserts the schema version into the shared metadata table,
// creating that table on first use.
func (t *table) saveVersion(ctx context.Context) error {
	if t.schema.Version == "" {
		return nil
	}

	exists, err := t.exec.TableExists(ctx, versionTable)
	if err != nil {
		return err
	}
	if !exists {
		create := fmt.Sprintf("CREATE TABLE %s (table_name VARCHAR(191) PRIMARY KEY, version VARCHAR(64))", versionTable)
		if t.exec.Dialect() == "sqlite3" {
			create = fmt.Sprintf("CREATE TABLE %s (table_name TEXT PRIMARY KEY, version TEXT)", versionTable)
		}
		if err := t.exec.Exec(ctx, create); err != nil {
			return err
		}
	}

	var upsert string
	switch t.exec.Dialect() {
	case "sqlite3":
		upsert = fmt.Sprintf("INSERT INTO %s (table_name, version) VALUES (?, ?) ON CONFLICT(table_name) DO UPDATE SET version = excluded.version", versionTable)
	default:
		upsert = fmt.Sprintf("INSERT INTO %s (table_name, version) VALUES (?, ?) ON DUPLICATE KEY UPDATE version = VALUES(version)", versionTable)
	}
	return t.exec.Exec(ctx, upsert, t.schema.Table, t.schema.Version)
}
