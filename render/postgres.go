package render

import (
	"fmt"
	"strings"

	"github.com/schemakit/schemakit/schema"
)

// postgresStatements renders namespaces as schemas, then tables, then every
// foreign key as an ALTER so that definition order never matters, then
// indexes.
func postgresStatements(s *schema.Schema) []string {
	var statements []string

	for _, ns := range s.Namespaces() {
		statements = append(statements, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, quote(ns.Name)))
	}

	for _, ns := range s.Namespaces() {
		for _, t := range ns.Tables {
			statements = append(statements, pgCreateTable(ns.Name, &t))
		}
	}

	for _, ns := range s.Namespaces() {
		for _, t := range ns.Tables {
			for _, fk := range t.ForeignKeys {
				statements = append(statements, pgAddForeignKey(ns.Name, t.Name, &fk))
			}
		}
	}

	for _, ns := range s.Namespaces() {
		for _, t := range ns.Tables {
			for _, ix := range t.Indexes {
				statements = append(statements, pgCreateIndex(ns.Name, t.Name, &ix))
			}
		}
	}

	return statements
}

func pgCreateTable(nsName string, t *schema.Table) string {
	var parts []string

	for _, col := range t.Columns {
		part := fmt.Sprintf(`%s %s`, quote(col.Name), pgColumnType(col.Type))
		if !col.Nullable {
			part += " NOT NULL"
		}
		if col.Default != nil {
			part += fmt.Sprintf(" DEFAULT %s", pgDefault(col.Default))
		}
		if col.Unique {
			part += " UNIQUE"
		}
		parts = append(parts, part)
	}

	if len(t.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(t.PrimaryKey)))
	}
	for _, u := range t.Uniques {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", quote(u.Name), quoteList(u.Columns)))
	}
	for _, c := range t.Checks {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", quote(c.Name), c.Expression))
	}

	return fmt.Sprintf("CREATE TABLE %s.%s (\n  %s\n);",
		quote(nsName), quote(t.Name), strings.Join(parts, ",\n  "))
}

func pgAddForeignKey(nsName, tableName string, fk *schema.ForeignKey) string {
	stmt := fmt.Sprintf(`ALTER TABLE %s.%s ADD`, quote(nsName), quote(tableName))
	if fk.Name != "" {
		stmt += fmt.Sprintf(` CONSTRAINT %s`, quote(fk.Name))
	}
	stmt += fmt.Sprintf(` FOREIGN KEY (%s) REFERENCES %s.%s (%s)`,
		quoteList(fk.Columns),
		quote(fk.References.Namespace), quote(fk.References.Table),
		quoteList(fk.RefColumns),
	)
	if fk.OnDelete != schema.NoAction {
		stmt += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != schema.NoAction {
		stmt += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
	}
	return stmt + ";"
}

func pgCreateIndex(nsName, tableName string, ix *schema.Index) string {
	stmt := "CREATE"
	if ix.Unique {
		stmt += " UNIQUE"
	}
	stmt += fmt.Sprintf(" INDEX %s ON %s.%s (%s)",
		quote(ix.Name), quote(nsName), quote(tableName), quoteList(ix.Columns))
	if ix.Predicate != "" {
		stmt += fmt.Sprintf(" WHERE %s", ix.Predicate)
	}
	return stmt + ";"
}

func pgColumnType(ct schema.ColumnType) string {
	switch ct.Kind {
	case schema.Smallint:
		return "smallint"
	case schema.Integer:
		return "integer"
	case schema.Bigint:
		return "bigint"
	case schema.Decimal:
		if ct.Precision > 0 && ct.Scale > 0 {
			return fmt.Sprintf("numeric(%d,%d)", ct.Precision, ct.Scale)
		}
		if ct.Precision > 0 {
			return fmt.Sprintf("numeric(%d)", ct.Precision)
		}
		return "numeric"
	case schema.Text:
		if ct.MaxLength > 0 {
			return fmt.Sprintf("varchar(%d)", ct.MaxLength)
		}
		return "text"
	case schema.Boolean:
		return "boolean"
	case schema.Timestamp:
		if ct.WithTimezone {
			return "timestamptz"
		}
		return "timestamp"
	case schema.Date:
		return "date"
	case schema.Time:
		return "time"
	case schema.Interval:
		return "interval"
	case schema.JSON:
		return "jsonb"
	case schema.UUID:
		return "uuid"
	case schema.Inet:
		return "inet"
	case schema.Array:
		return pgColumnType(schema.ColumnType{Kind: ct.Element}) + "[]"
	default:
		return string(ct.Kind)
	}
}

// pgDefault renders a default. PostgreSQL has no ON UPDATE trigger shorthand,
// so on-update-now degrades to a plain now() default.
func pgDefault(d *schema.Default) string {
	switch d.Kind {
	case schema.DefaultNow, schema.DefaultOnUpdateNow:
		return "now()"
	default:
		return quoteLiteral(d.Literal)
	}
}
