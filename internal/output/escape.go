package output

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// EscapeCopyValue escapes a single value for tab-separated text output,
// using PostgreSQL COPY text conventions. NULL is represented as \N.
func EscapeCopyValue(val any) string {
	if val == nil {
		return `\N`
	}

	switch v := val.(type) {
	case bool:
		if v {
			return "t"
		}
		return "f"
	case []byte:
		// bytea: output as hex-encoded with \x prefix
		return `\\x` + hex.EncodeToString(v)
	case time.Time:
		return escapeString(v.Format("2006-01-02 15:04:05.999999-07"))
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = EscapeCopyValue(e)
		}
		return "{" + strings.Join(parts, ",") + "}"
	case string:
		return escapeString(v)
	case fmt.Stringer:
		return escapeString(v.String())
	default:
		return escapeString(fmt.Sprintf("%v", v))
	}
}

// escapeString applies COPY text format escaping.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QuoteIdent quotes a PostgreSQL identifier.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteTable quotes a schema-qualified table name.
func QuoteTable(schemaName, table string) string {
	return pgx.Identifier{schemaName, table}.Sanitize()
}

// QuoteLiteral renders val as a SQL literal for display.
func QuoteLiteral(val any) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = QuoteLiteral(e)
		}
		return "ARRAY[" + strings.Join(parts, ", ") + "]"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
	}
}
