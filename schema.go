package tablekit

import "fmt"

// ColumnType is the closed set of declared column types. The coercer handles
// Integer, Float and MarkupText; the remaining legacy placeholder types are
// declared for schema compatibility but pass through the coercer unchanged.
type ColumnType int

const (
	// Integer columns coerce to int64 (non-numeric input truncates to 0).
	Integer ColumnType = iota + 1
	// Float columns coerce to float64.
	Float
	// MarkupText columns are stripped to an allow-listed safe-HTML subset.
	MarkupText

	// Legacy placeholder types. Values of these types are NOT coerced or
	// escaped; they pass through untouched. Known gap carried over from the
	// original schema format - do not widen silently.
	Bool
	Null
	Percent
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case MarkupText:
		return "markup_text"
	case Bool:
		return "bool"
	case Null:
		return "null"
	case Percent:
		return "percent"
	}
	return fmt.Sprintf("column_type(%d)", int(t))
}

// Column is one declared column: name plus declared type.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the immutable description of one logical table. It is constructed
// once at startup and referenced read-only by the engine; nothing in this
// package mutates it after Validate.
type Schema struct {
	// Table is the physical table name. Never derive it from untrusted input.
	Table string

	// Columns in declaration order. Order matters for generated DDL.
	Columns []Column

	// PrimaryKey must name one of Columns.
	PrimaryKey string

	// Defaults maps a subset of Columns to values backfilled when absent
	// from insert payloads.
	Defaults map[string]any

	// Version is opaque to CRUD logic; it is persisted as metadata when the
	// table is created.
	Version string

	// CacheGroup namespaces cached reads and the generation counter.
	// Empty disables caching entirely - a valid, supported mode.
	CacheGroup string
}

// Validate checks the structural invariants: a non-empty safe table name,
// at least one column, unique safe column names, a primary key that is a
// declared column, and defaults that only name declared columns.
func (s *Schema) Validate() error {
	if s == nil {
		return fmt.Errorf("schema is nil")
	}
	if !validIdent(s.Table) {
		return fmt.Errorf("table name %q is not a valid identifier", s.Table)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %s declares no columns", s.Table)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if !validIdent(c.Name) {
			return fmt.Errorf("table %s: column name %q is not a valid identifier", s.Table, c.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table %s: duplicate column %q", s.Table, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if _, ok := seen[s.PrimaryKey]; !ok {
		return fmt.Errorf("table %s: primary key %q is not a declared column", s.Table, s.PrimaryKey)
	}
	for name := range s.Defaults {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("table %s: default for undeclared column %q", s.Table, name)
		}
	}
	return nil
}

// HasColumn reports whether name is a declared column. This is the whitelist
// gate: every caller-supplied column name must pass it before reaching
// identifier position in SQL.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.Type(name)
	return ok
}

// Type returns the declared type of a column.
func (s *Schema) Type(name string) (ColumnType, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return 0, false
}

// validIdent accepts [A-Za-z_][A-Za-z0-9_]* - the only shape ever interpolated
// into SQL identifier position.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
