package render

import (
	"fmt"
	"strings"

	"github.com/schemakit/schemakit/schema"
)

// Dialect selects the SQL flavor to render.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect resolves a user-supplied dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (supported: postgres, sqlite)", s)
	}
}

// Statements renders the full CREATE script for a finalized schema, one SQL
// statement per element. Namespaces, tables, and constraints come out in
// definition order so the script is stable across runs.
func Statements(s *schema.Schema, dialect Dialect) ([]string, error) {
	switch dialect {
	case Postgres:
		return postgresStatements(s), nil
	case SQLite:
		return sqliteStatements(s), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// Script renders the statements as one executable SQL file.
func Script(s *schema.Schema, dialect Dialect) (string, error) {
	statements, err := Statements(s, dialect)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Rendered for %s\n", dialect)
	for _, stmt := range statements {
		b.WriteString("\n")
		b.WriteString(stmt)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// quote wraps an identifier in double quotes, doubling embedded quotes.
// Works for both dialects.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

// quoteLiteral renders a default literal: numeric and boolean literals pass
// through bare, everything else becomes a single-quoted string.
func quoteLiteral(literal string) string {
	if isBareLiteral(literal) {
		return literal
	}
	return "'" + strings.ReplaceAll(literal, "'", "''") + "'"
}

func isBareLiteral(literal string) bool {
	switch strings.ToLower(literal) {
	case "true", "false", "null":
		return true
	}
	if literal == "" {
		return false
	}
	for i, r := range literal {
		if r >= '0' && r <= '9' || r == '.' {
			continue
		}
		if i == 0 && (r == '-' || r == '+') {
			continue
		}
		return false
	}
	return true
}
