package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavor a query is sent to.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured driver name onto a Dialect.
// "tidb" is accepted as an alias for mysql.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx", "":
		return DialectPostgres, nil
	case "mysql", "tidb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported database dialect %q", name)
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(sql string) string {
	if d != DialectPostgres || !strings.Contains(sql, "?") {
		return sql
	}

	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			sb.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// BoolValue returns the literal used to compare boolean columns.
// SQLite and MySQL store booleans as integers.
func (d Dialect) BoolValue(v bool) interface{} {
	if d == DialectPostgres {
		return v
	}
	if v {
		return 1
	}
	return 0
}

// LikeEscape returns the ESCAPE clause needed for backslash-escaped LIKE
// patterns. Postgres and MySQL already default to backslash.
func (d Dialect) LikeEscape() string {
	if d == DialectSQLite {
		return ` ESCAPE '\'`
	}
	return ""
}

// LikeAny builds "(LOWER(a) LIKE ? OR LOWER(b) LIKE ?)" matching term as a
// case-insensitive substring of any of columns.
func (d Dialect) LikeAny(columns []string, term string) (string, []interface{}) {
	pattern := LikePattern(term)
	parts := make([]string, len(columns))
	params := make([]interface{}, len(columns))
	for i, col := range columns {
		parts[i] = "LOWER(" + col + ") LIKE ?" + d.LikeEscape()
		params[i] = pattern
	}
	return "(" + strings.Join(parts, " OR ") + ")", params
}
