package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/schemakit/schemakit/schema"
)

// SQLite reads the connected database file and maps it to a declarative spec
// with a single "main" namespace. Check constraints live only inside the
// CREATE TABLE text and are not recovered.
func SQLite(ctx context.Context, db *sql.DB) (schema.Spec, error) {
	tables, err := sqliteTables(ctx, db)
	if err != nil {
		return schema.Spec{}, err
	}

	ns := schema.Namespace{Name: "main"}
	for _, tableName := range tables {
		t, err := sqliteTable(ctx, db, tableName)
		if err != nil {
			return schema.Spec{}, fmt.Errorf("failed to read table %s: %v", tableName, err)
		}
		ns.Tables = append(ns.Tables, *t)
	}

	return schema.Spec{Namespaces: []schema.Namespace{ns}}, nil
}

func sqliteTables(ctx context.Context, db *sql.DB) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func sqliteTable(ctx context.Context, db *sql.DB, tableName string) (*schema.Table, error) {
	t := &schema.Table{Name: tableName}

	if err := sqliteColumns(ctx, db, tableName, t); err != nil {
		return nil, fmt.Errorf("failed to extract columns: %v", err)
	}
	if err := sqliteForeignKeys(ctx, db, tableName, t); err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %v", err)
	}
	if err := sqliteIndexes(ctx, db, tableName, t); err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %v", err)
	}

	return t, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, tableName string, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	type pkMember struct {
		order int
		name  string
	}
	var pk []pkMember

	for rows.Next() {
		var cid, notNull, pkOrder int
		var name, declType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &declType, &notNull, &defaultValue, &pkOrder); err != nil {
			return err
		}

		col := schema.Column{
			Name:     name,
			Type:     mapSQLiteType(declType),
			Nullable: notNull == 0,
		}
		if defaultValue.Valid {
			col.Default = parseSQLiteDefault(defaultValue.String)
		}
		if pkOrder > 0 {
			pk = append(pk, pkMember{order: pkOrder, name: name})
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// the pk field in table_info is the 1-based position within the key
	sort.Slice(pk, func(i, j int) bool { return pk[i].order < pk[j].order })
	for _, m := range pk {
		t.PrimaryKey = append(t.PrimaryKey, m.name)
	}

	return nil
}

func sqliteForeignKeys(ctx context.Context, db *sql.DB, tableName string, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	// Rows arrive one per column pair, grouped by the id field so composite
	// keys reassemble in seq order. SQLite keys are anonymous, names are
	// synthesized from the id.
	lastID := -1
	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return err
		}

		if id == lastID {
			n := len(t.ForeignKeys) - 1
			t.ForeignKeys[n].Columns = append(t.ForeignKeys[n].Columns, fromCol)
			t.ForeignKeys[n].RefColumns = append(t.ForeignKeys[n].RefColumns, toCol.String)
			continue
		}
		lastID = id

		od, err := schema.ParseReferentialAction(onDelete)
		if err != nil {
			return err
		}
		ou, err := schema.ParseReferentialAction(onUpdate)
		if err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
			Name:       fmt.Sprintf("%s_fk%d", tableName, id),
			Columns:    []string{fromCol},
			References: schema.TableRef{Namespace: "main", Table: targetTable},
			RefColumns: []string{toCol.String},
			OnDelete:   od,
			OnUpdate:   ou,
		})
	}

	return rows.Err()
}

func sqliteIndexes(ctx context.Context, db *sql.DB, tableName string, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	type listedIndex struct {
		name    string
		unique  bool
		origin  string
		partial bool
	}
	var listed []listedIndex
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		listed = append(listed, listedIndex{name: name, unique: unique == 1, origin: origin, partial: partial == 1})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ix := range listed {
		// origin "pk" indexes duplicate the primary key
		if ix.origin == "pk" || strings.HasPrefix(ix.name, "sqlite_autoindex") && ix.origin != "u" {
			continue
		}

		columns, err := sqliteIndexColumns(ctx, db, ix.name)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			continue
		}

		// origin "u" marks indexes created by UNIQUE constraints
		if ix.origin == "u" {
			if len(columns) == 1 {
				for i := range t.Columns {
					if t.Columns[i].Name == columns[0] {
						t.Columns[i].Unique = true
					}
				}
				continue
			}
			name := ix.name
			if strings.HasPrefix(name, "sqlite_autoindex") {
				name = fmt.Sprintf("%s_%s_key", tableName, strings.Join(columns, "_"))
			}
			t.Uniques = append(t.Uniques, schema.UniqueConstraint{Name: name, Columns: columns})
			continue
		}

		index := schema.Index{Name: ix.name, Columns: columns, Unique: ix.unique}
		if ix.partial {
			pred, err := sqliteIndexPredicate(ctx, db, ix.name)
			if err != nil {
				return err
			}
			index.Predicate = pred
		}
		t.Indexes = append(t.Indexes, index)
	}

	return nil
}

func sqliteIndexColumns(ctx context.Context, db *sql.DB, indexName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", indexName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

// sqliteIndexPredicate recovers a partial index's WHERE clause from the
// stored CREATE INDEX statement, the pragmas do not expose it.
func sqliteIndexPredicate(ctx context.Context, db *sql.DB, indexName string) (string, error) {
	var ddl sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?", indexName).Scan(&ddl)
	if err != nil {
		return "", err
	}
	if !ddl.Valid {
		return "", nil
	}
	upper := strings.ToUpper(ddl.String)
	where := strings.LastIndex(upper, " WHERE ")
	if where < 0 {
		return "", nil
	}
	return strings.TrimSpace(ddl.String[where+len(" WHERE "):]), nil
}

// mapSQLiteType resolves a declared column type. Declarations the model
// already speaks (varchar(255), timestamptz, uuid) parse directly, anything
// else folds by SQLite's affinity rules.
func mapSQLiteType(declType string) schema.ColumnType {
	decl := strings.ToLower(strings.TrimSpace(declType))
	if ct, err := schema.ParseColumnType(decl); err == nil {
		return ct
	}

	switch {
	case strings.Contains(decl, "int"):
		return schema.ColumnType{Kind: schema.Integer}
	case strings.Contains(decl, "char"), strings.Contains(decl, "clob"), strings.Contains(decl, "text"):
		return schema.ColumnType{Kind: schema.Text}
	case strings.Contains(decl, "real"), strings.Contains(decl, "floa"), strings.Contains(decl, "doub"),
		strings.Contains(decl, "dec"), strings.Contains(decl, "num"):
		return schema.ColumnType{Kind: schema.Decimal}
	case strings.Contains(decl, "bool"):
		return schema.ColumnType{Kind: schema.Boolean}
	default:
		return schema.ColumnType{Kind: schema.Text}
	}
}

func parseSQLiteDefault(raw string) *schema.Default {
	upper := strings.ToUpper(raw)
	if upper == "CURRENT_TIMESTAMP" || strings.HasPrefix(strings.ToLower(raw), "now()") {
		return &schema.Default{Kind: schema.DefaultNow}
	}
	return &schema.Default{Kind: schema.DefaultLiteral, Literal: strings.Trim(raw, "'")}
}
