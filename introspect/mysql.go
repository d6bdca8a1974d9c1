package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/schemakit/schemakit/schema"
)

// MySQL reads the named database and maps it to a declarative spec with a
// single namespace. When dbName is empty the server's current database is
// used.
func MySQL(ctx context.Context, db *sql.DB, dbName string) (schema.Spec, error) {
	if dbName == "" {
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&dbName); err != nil {
			return schema.Spec{}, fmt.Errorf("failed to determine database name: %v", err)
		}
	}
	if dbName == "" {
		return schema.Spec{}, fmt.Errorf("no database selected, put the database name in the DSN")
	}

	tables, err := mysqlTables(ctx, db, dbName)
	if err != nil {
		return schema.Spec{}, err
	}

	ns := schema.Namespace{Name: dbName}
	for _, tableName := range tables {
		t, err := mysqlTable(ctx, db, dbName, tableName)
		if err != nil {
			return schema.Spec{}, fmt.Errorf("failed to read table %s: %v", tableName, err)
		}
		ns.Tables = append(ns.Tables, *t)
	}

	return schema.Spec{Namespaces: []schema.Namespace{ns}}, nil
}

func mysqlTables(ctx context.Context, db *sql.DB, dbName string) ([]string, error) {
	query := `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
	rows, err := db.QueryContext(ctx, query, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %v", err)
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func mysqlTable(ctx context.Context, db *sql.DB, dbName, tableName string) (*schema.Table, error) {
	t := &schema.Table{Name: tableName}

	if err := mysqlColumns(ctx, db, dbName, tableName, t); err != nil {
		return nil, err
	}
	if err := mysqlKeys(ctx, db, dbName, tableName, t); err != nil {
		return nil, err
	}
	if err := mysqlForeignKeys(ctx, db, dbName, tableName, t); err != nil {
		return nil, err
	}
	if err := mysqlChecks(ctx, db, dbName, tableName, t); err != nil {
		return nil, err
	}

	return t, nil
}

func mysqlColumns(ctx context.Context, db *sql.DB, dbName, tableName string, t *schema.Table) error {
	query := `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := db.QueryContext(ctx, query, dbName, tableName)
	if err != nil {
		return fmt.Errorf("failed to get columns: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, columnType, nullable, extra string
		var defaultValue sql.NullString

		if err := rows.Scan(&name, &columnType, &nullable, &defaultValue, &extra); err != nil {
			return fmt.Errorf("failed to scan column: %v", err)
		}

		col := schema.Column{
			Name:     name,
			Type:     mapMySQLType(columnType),
			Nullable: nullable == "YES",
		}
		col.Default = parseMySQLDefault(defaultValue, extra)
		t.Columns = append(t.Columns, col)
	}

	return rows.Err()
}

// mysqlKeys loads the primary key, unique constraints, and plain indexes
// from the statistics table in one pass.
func mysqlKeys(ctx context.Context, db *sql.DB, dbName, tableName string, t *schema.Table) error {
	query := `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`
	rows, err := db.QueryContext(ctx, query, dbName, tableName)
	if err != nil {
		return fmt.Errorf("failed to get indexes: %v", err)
	}
	defer rows.Close()

	type keyGroup struct {
		name    string
		columns []string
		unique  bool
	}
	var order []string
	groups := make(map[string]*keyGroup)

	for rows.Next() {
		var indexName, columnName string
		var nonUnique int
		if err := rows.Scan(&indexName, &columnName, &nonUnique); err != nil {
			return fmt.Errorf("failed to scan index: %v", err)
		}
		g, ok := groups[indexName]
		if !ok {
			g = &keyGroup{name: indexName, unique: nonUnique == 0}
			groups[indexName] = g
			order = append(order, indexName)
		}
		g.columns = append(g.columns, columnName)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range order {
		g := groups[name]
		switch {
		case g.name == "PRIMARY":
			t.PrimaryKey = g.columns
		case g.unique && len(g.columns) == 1:
			for i := range t.Columns {
				if t.Columns[i].Name == g.columns[0] {
					t.Columns[i].Unique = true
				}
			}
		case g.unique:
			t.Uniques = append(t.Uniques, schema.UniqueConstraint{Name: g.name, Columns: g.columns})
		default:
			t.Indexes = append(t.Indexes, schema.Index{Name: g.name, Columns: g.columns})
		}
	}

	return nil
}

func mysqlForeignKeys(ctx context.Context, db *sql.DB, dbName, tableName string, t *schema.Table) error {
	query := `
		SELECT
			kcu.CONSTRAINT_NAME,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_SCHEMA,
			kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME,
			rc.DELETE_RULE,
			rc.UPDATE_RULE
		FROM information_schema.KEY_COLUMN_USAGE kcu
		JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
			ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE kcu.TABLE_SCHEMA = ? AND kcu.TABLE_NAME = ?
			AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION
	`
	rows, err := db.QueryContext(ctx, query, dbName, tableName)
	if err != nil {
		return fmt.Errorf("failed to get foreign keys: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var constraintName, columnName, refSchema, refTable, refColumn, deleteRule, updateRule string
		if err := rows.Scan(&constraintName, &columnName, &refSchema, &refTable, &refColumn, &deleteRule, &updateRule); err != nil {
			return fmt.Errorf("failed to scan foreign key: %v", err)
		}

		if n := len(t.ForeignKeys); n > 0 && t.ForeignKeys[n-1].Name == constraintName {
			t.ForeignKeys[n-1].Columns = append(t.ForeignKeys[n-1].Columns, columnName)
			t.ForeignKeys[n-1].RefColumns = append(t.ForeignKeys[n-1].RefColumns, refColumn)
			continue
		}

		onDelete, err := schema.ParseReferentialAction(deleteRule)
		if err != nil {
			return fmt.Errorf("foreign key %s: %v", constraintName, err)
		}
		onUpdate, err := schema.ParseReferentialAction(updateRule)
		if err != nil {
			return fmt.Errorf("foreign key %s: %v", constraintName, err)
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
			Name:       constraintName,
			Columns:    []string{columnName},
			References: schema.TableRef{Namespace: refSchema, Table: refTable},
			RefColumns: []string{refColumn},
			OnDelete:   onDelete,
			OnUpdate:   onUpdate,
		})
	}

	return rows.Err()
}

func mysqlChecks(ctx context.Context, db *sql.DB, dbName, tableName string, t *schema.Table) error {
	// CHECK_CONSTRAINTS only exists on MySQL 8.0.16+, older servers reject
	// the catalog table itself and genuinely have no checks to report.
	query := `
		SELECT cc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
		FROM information_schema.TABLE_CONSTRAINTS tc
		JOIN information_schema.CHECK_CONSTRAINTS cc
			ON cc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
			AND cc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		WHERE tc.TABLE_SCHEMA = ? AND tc.TABLE_NAME = ?
			AND tc.CONSTRAINT_TYPE = 'CHECK'
		ORDER BY cc.CONSTRAINT_NAME
	`
	rows, err := db.QueryContext(ctx, query, dbName, tableName)
	if err != nil {
		if isMissingChecksTable(err) {
			return nil
		}
		return fmt.Errorf("failed to get check constraints: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var constraintName, clause string
		if err := rows.Scan(&constraintName, &clause); err != nil {
			return fmt.Errorf("failed to scan check constraint: %v", err)
		}
		t.Checks = append(t.Checks, schema.CheckConstraint{
			Name:       constraintName,
			Expression: trimOuterParens(clause),
		})
	}

	return rows.Err()
}

// isMissingChecksTable reports whether the server rejected the
// CHECK_CONSTRAINTS catalog table itself (ER_UNKNOWN_TABLE or
// ER_NO_SUCH_TABLE), as servers before 8.0.16 do. Anything else, connection
// loss included, is a real failure.
func isMissingChecksTable(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1109 || me.Number == 1146)
}

// mapMySQLType folds a MySQL column type like "varchar(255)" or
// "decimal(10,2)" into the model's vocabulary.
func mapMySQLType(columnType string) schema.ColumnType {
	lower := strings.ToLower(columnType)
	base, args, _ := strings.Cut(lower, "(")
	base = strings.TrimSpace(base)
	args = strings.TrimSuffix(args, ")")

	switch base {
	case "tinyint":
		if args == "1" {
			return schema.ColumnType{Kind: schema.Boolean}
		}
		return schema.ColumnType{Kind: schema.Smallint}
	case "smallint":
		return schema.ColumnType{Kind: schema.Smallint}
	case "int", "integer", "mediumint":
		return schema.ColumnType{Kind: schema.Integer}
	case "bigint":
		return schema.ColumnType{Kind: schema.Bigint}
	case "decimal", "numeric":
		ct := schema.ColumnType{Kind: schema.Decimal}
		if p, s, ok := strings.Cut(args, ","); ok {
			fmt.Sscanf(p, "%d", &ct.Precision)
			fmt.Sscanf(s, "%d", &ct.Scale)
		} else if args != "" {
			fmt.Sscanf(args, "%d", &ct.Precision)
		}
		return ct
	case "float", "double", "real":
		return schema.ColumnType{Kind: schema.Decimal}
	case "varchar", "char":
		ct := schema.ColumnType{Kind: schema.Text}
		if args != "" {
			fmt.Sscanf(args, "%d", &ct.MaxLength)
		}
		return ct
	case "datetime":
		return schema.ColumnType{Kind: schema.Timestamp}
	case "timestamp":
		return schema.ColumnType{Kind: schema.Timestamp, WithTimezone: true}
	case "date":
		return schema.ColumnType{Kind: schema.Date}
	case "time":
		return schema.ColumnType{Kind: schema.Time}
	case "json":
		return schema.ColumnType{Kind: schema.JSON}
	default:
		// text variants, enums, and binary types all fold to text
		return schema.ColumnType{Kind: schema.Text}
	}
}

func parseMySQLDefault(defaultValue sql.NullString, extra string) *schema.Default {
	if strings.Contains(strings.ToLower(extra), "on update current_timestamp") {
		return &schema.Default{Kind: schema.DefaultOnUpdateNow}
	}
	if !defaultValue.Valid {
		return nil
	}
	raw := defaultValue.String
	if strings.HasPrefix(strings.ToLower(raw), "current_timestamp") {
		return &schema.Default{Kind: schema.DefaultNow}
	}
	return &schema.Default{Kind: schema.DefaultLiteral, Literal: strings.Trim(raw, "'")}
}
