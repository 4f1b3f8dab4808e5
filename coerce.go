package tablekit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CoerceFunc optionally overrides the built-in conversion for a column.
// It runs before the type switch; returning ok=true makes its value win
// outright. Lets hosts customize per-column handling without wrapping the
// engine.
type CoerceFunc func(column string, t ColumnType, v any) (any, bool)

// markupPolicy is the allow-listed safe-HTML subset applied to MarkupText
// columns. Sanitization with this policy is idempotent.
var markupPolicy = bluemonday.UGCPolicy()

// Coerce converts an outbound raw value into its declared-type-correct,
// escaped representation. Pure and total over the supported types; legacy
// placeholder types return the value unchanged.
func Coerce(t ColumnType, v any) any {
	return convert(t, v)
}

// Sanitize converts caller-supplied input into its declared-type-correct,
// escaped representation for storage. The inbound and outbound conversions
// coincide for every supported type, so Sanitize(t, Coerce(t, v)) is stable.
func Sanitize(t ColumnType, v any) any {
	return convert(t, v)
}

func convert(t ColumnType, v any) any {
	switch t {
	case Integer:
		return toInt64(v)
	case Float:
		return toFloat64(v)
	case MarkupText:
		return markupPolicy.Sanitize(toString(v))
	default:
		// Bool/Null/Percent are declared but unhandled; see ColumnType.
		return v
	}
}

// toInt64 truncates or parses v into an int64. Non-numeric input becomes 0.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	case uint:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		return parseInt64(n)
	case []byte:
		return parseInt64(string(n))
	case nil:
		return 0
	default:
		return parseInt64(fmt.Sprint(v))
	}
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// "42.9" and friends truncate rather than fail
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// toFloat64 parses v into a float64. Non-numeric input becomes 0.
func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int16:
		return float64(n)
	case int8:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case uint16:
		return float64(n)
	case uint8:
		return float64(n)
	case uint:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		return parseFloat64(n)
	case []byte:
		return parseFloat64(string(n))
	case nil:
		return 0
	default:
		return parseFloat64(fmt.Sprint(v))
	}
}

func parseFloat64(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
