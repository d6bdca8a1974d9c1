package render

import (
	"fmt"
	"strings"

	"github.com/schemakit/schemakit/schema"
)

// sqliteStatements renders the schema for SQLite. The engine has no
// namespaces, so tables are flattened to namespace_table names, and foreign
// keys go inline because ALTER TABLE cannot add constraints. SQLite resolves
// foreign keys at write time, so definition order never matters.
func sqliteStatements(s *schema.Schema) []string {
	statements := []string{"PRAGMA foreign_keys = ON;"}

	for _, ns := range s.Namespaces() {
		for _, t := range ns.Tables {
			statements = append(statements, sqliteCreateTable(ns.Name, &t))
		}
	}

	for _, ns := range s.Namespaces() {
		for _, t := range ns.Tables {
			for _, ix := range t.Indexes {
				statements = append(statements, sqliteCreateIndex(ns.Name, t.Name, &ix))
			}
		}
	}

	return statements
}

// flatten joins namespace and table into the single flat name SQLite gets.
func flatten(nsName, tableName string) string {
	return nsName + "_" + tableName
}

func sqliteCreateTable(nsName string, t *schema.Table) string {
	var parts []string

	for _, col := range t.Columns {
		part := fmt.Sprintf(`%s %s`, quote(col.Name), sqliteColumnType(col.Type))
		if !col.Nullable {
			part += " NOT NULL"
		}
		if col.Default != nil {
			part += fmt.Sprintf(" DEFAULT %s", sqliteDefault(col.Default, col.Type))
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
	for _, fk := range t.ForeignKeys {
		parts = append(parts, sqliteForeignKey(&fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);",
		quote(flatten(nsName, t.Name)), strings.Join(parts, ",\n  "))
}

func sqliteForeignKey(fk *schema.ForeignKey) string {
	part := ""
	if fk.Name != "" {
		part = fmt.Sprintf("CONSTRAINT %s ", quote(fk.Name))
	}
	part += fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteList(fk.Columns),
		quote(flatten(fk.References.Namespace, fk.References.Table)),
		quoteList(fk.RefColumns),
	)
	if fk.OnDelete != schema.NoAction {
		part += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != schema.NoAction {
		part += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
	}
	return part
}

func sqliteCreateIndex(nsName, tableName string, ix *schema.Index) string {
	stmt := "CREATE"
	if ix.Unique {
		stmt += " UNIQUE"
	}
	stmt += fmt.Sprintf(" INDEX %s ON %s (%s)",
		quote(flatten(nsName, ix.Name)), quote(flatten(nsName, tableName)), quoteList(ix.Columns))
	if ix.Predicate != "" {
		stmt += fmt.Sprintf(" WHERE %s", ix.Predicate)
	}
	return stmt + ";"
}

// sqliteColumnType folds the model's types onto SQLite's storage classes.
// Timestamps, intervals, uuids, json, and arrays all live in TEXT columns.
func sqliteColumnType(ct schema.ColumnType) string {
	switch ct.Kind {
	case schema.Smallint, schema.Integer, schema.Bigint, schema.Boolean:
		return "INTEGER"
	case schema.Decimal:
		return "NUMERIC"
	case schema.Text:
		if ct.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", ct.MaxLength)
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

func sqliteDefault(d *schema.Default, ct schema.ColumnType) string {
	switch d.Kind {
	case schema.DefaultNow, schema.DefaultOnUpdateNow:
		return "CURRENT_TIMESTAMP"
	default:
		if ct.Kind == schema.Boolean {
			switch strings.ToLower(d.Literal) {
			case "true", "1":
				return "1"
			case "false", "0":
				return "0"
			}
		}
		return quoteLiteral(d.Literal)
	}
}
