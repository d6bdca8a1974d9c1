package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemakit/schemakit/schema"
)

// Postgres reads every user schema in the connected database and maps it to
// a declarative spec. Each PostgreSQL schema becomes one namespace.
func Postgres(ctx context.Context, pool *pgxpool.Pool) (schema.Spec, error) {
	namespaces, err := pgNamespaces(ctx, pool)
	if err != nil {
		return schema.Spec{}, err
	}

	var spec schema.Spec
	for _, nsName := range namespaces {
		ns := schema.Namespace{Name: nsName}

		tableNames, err := pgTables(ctx, pool, nsName)
		if err != nil {
			return schema.Spec{}, err
		}
		for _, tableName := range tableNames {
			t, err := pgTable(ctx, pool, nsName, tableName)
			if err != nil {
				return schema.Spec{}, fmt.Errorf("reading table %s.%s: %v", nsName, tableName, err)
			}
			ns.Tables = append(ns.Tables, *t)
		}

		if len(ns.Tables) > 0 {
			spec.Namespaces = append(spec.Namespaces, ns)
		}
	}

	return spec, nil
}

func pgNamespaces(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	query := `
	SELECT schema_name
	FROM information_schema.schemata
	WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		AND schema_name NOT LIKE 'pg_toast%'
		AND schema_name NOT LIKE 'pg_temp%'
	ORDER BY schema_name;
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying schemas: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning schema name: %v", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func pgTables(ctx context.Context, pool *pgxpool.Pool, nsName string) ([]string, error) {
	query := `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = $1 AND table_type = 'BASE TABLE'
	ORDER BY table_name;
	`

	rows, err := pool.Query(ctx, query, nsName)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %v", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func pgTable(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) (*schema.Table, error) {
	t := &schema.Table{Name: tableName}

	columns, err := pgColumns(ctx, pool, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("getting columns: %v", err)
	}
	t.Columns = columns

	pk, err := pgPrimaryKey(ctx, pool, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("getting primary key: %v", err)
	}
	t.PrimaryKey = pk

	uniques, err := pgUniques(ctx, pool, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("getting unique constraints: %v", err)
	}
	for _, u := range uniques {
		if len(u.Columns) == 1 {
			for i := range t.Columns {
				if t.Columns[i].Name == u.Columns[0] {
					t.Columns[i].Unique = true
				}
			}
			continue
		}
		t.Uniques = append(t.Uniques, u)
	}

	fks, err := pgForeignKeys(ctx, pool, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("getting foreign keys: %v", err)
	}
	t.ForeignKeys = fks

	checks, err := pgChecks(ctx, pool, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("getting check constraints: %v", err)
	}
	t.Checks = checks

	indexes, err := pgIndexes(ctx, pool, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("getting indexes: %v", err)
	}
	t.Indexes = indexes

	return t, nil
}

func pgColumns(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) ([]schema.Column, error) {
	query := `
	SELECT
		c.column_name,
		c.data_type,
		c.udt_name,
		(c.is_nullable = 'YES') AS is_nullable,
		c.column_default,
		c.character_maximum_length,
		c.numeric_precision,
		c.numeric_scale
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position;
	`

	rows, err := pool.Query(ctx, query, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %v", err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			name, dataType, udtName string
			nullable                bool
			columnDefault           *string
			charMax, prec, scale    *int
		)
		if err := rows.Scan(&name, &dataType, &udtName, &nullable, &columnDefault, &charMax, &prec, &scale); err != nil {
			return nil, fmt.Errorf("scanning column: %v", err)
		}

		col := schema.Column{
			Name:     name,
			Type:     mapPostgresType(dataType, udtName, charMax, prec, scale),
			Nullable: nullable,
		}
		if columnDefault != nil {
			col.Default = parsePostgresDefault(*columnDefault)
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func pgPrimaryKey(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) ([]string, error) {
	query := `
	SELECT kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name
		AND kcu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2
	ORDER BY kcu.ordinal_position;
	`

	rows, err := pool.Query(ctx, query, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying primary key: %v", err)
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning primary key column: %v", err)
		}
		pk = append(pk, name)
	}

	return pk, rows.Err()
}

func pgUniques(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) ([]schema.UniqueConstraint, error) {
	query := `
	SELECT tc.constraint_name, kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name
		AND kcu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'UNIQUE'
		AND tc.table_schema = $1
		AND tc.table_name = $2
	ORDER BY tc.constraint_name, kcu.ordinal_position;
	`

	rows, err := pool.Query(ctx, query, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying unique constraints: %v", err)
	}
	defer rows.Close()

	var uniques []schema.UniqueConstraint
	for rows.Next() {
		var constraintName, columnName string
		if err := rows.Scan(&constraintName, &columnName); err != nil {
			return nil, fmt.Errorf("scanning unique constraint: %v", err)
		}
		if n := len(uniques); n > 0 && uniques[n-1].Name == constraintName {
			uniques[n-1].Columns = append(uniques[n-1].Columns, columnName)
			continue
		}
		uniques = append(uniques, schema.UniqueConstraint{
			Name:    constraintName,
			Columns: []string{columnName},
		})
	}

	return uniques, rows.Err()
}

func pgForeignKeys(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) ([]schema.ForeignKey, error) {
	// kcu2 is the key usage of the referenced unique constraint, matched by
	// position so composite keys pair up in declaration order.
	query := `
	SELECT
		tc.constraint_name,
		kcu.column_name,
		kcu2.table_schema AS foreign_table_schema,
		kcu2.table_name AS foreign_table_name,
		kcu2.column_name AS foreign_column_name,
		rc.delete_rule,
		rc.update_rule
	FROM information_schema.table_constraints AS tc
	JOIN information_schema.referential_constraints AS rc
		ON rc.constraint_name = tc.constraint_name
		AND rc.constraint_schema = tc.table_schema
	JOIN information_schema.key_column_usage AS kcu
		ON kcu.constraint_name = tc.constraint_name
		AND kcu.table_schema = tc.table_schema
	JOIN information_schema.key_column_usage AS kcu2
		ON kcu2.constraint_name = rc.unique_constraint_name
		AND kcu2.table_schema = rc.unique_constraint_schema
		AND kcu2.ordinal_position = kcu.position_in_unique_constraint
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2
	ORDER BY tc.constraint_name, kcu.ordinal_position;
	`

	rows, err := pool.Query(ctx, query, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %v", err)
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var constraintName, columnName, refSchema, refTable, refColumn, deleteRule, updateRule string
		if err := rows.Scan(&constraintName, &columnName, &refSchema, &refTable, &refColumn, &deleteRule, &updateRule); err != nil {
			return nil, fmt.Errorf("scanning foreign key: %v", err)
		}

		if n := len(fks); n > 0 && fks[n-1].Name == constraintName {
			fks[n-1].Columns = append(fks[n-1].Columns, columnName)
			fks[n-1].RefColumns = append(fks[n-1].RefColumns, refColumn)
			continue
		}

		onDelete, err := schema.ParseReferentialAction(deleteRule)
		if err != nil {
			return nil, fmt.Errorf("foreign key %s: %v", constraintName, err)
		}
		onUpdate, err := schema.ParseReferentialAction(updateRule)
		if err != nil {
			return nil, fmt.Errorf("foreign key %s: %v", constraintName, err)
		}
		fks = append(fks, schema.ForeignKey{
			Name:       constraintName,
			Columns:    []string{columnName},
			References: schema.TableRef{Namespace: refSchema, Table: refTable},
			RefColumns: []string{refColumn},
			OnDelete:   onDelete,
			OnUpdate:   onUpdate,
		})
	}

	return fks, rows.Err()
}

func pgChecks(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) ([]schema.CheckConstraint, error) {
	// NOT NULL is surfaced as synthetic "*_not_null" checks, which the column
	// nullability already covers.
	query := `
	SELECT cc.constraint_name, cc.check_clause
	FROM information_schema.table_constraints tc
	JOIN information_schema.check_constraints cc
		ON cc.constraint_name = tc.constraint_name
		AND cc.constraint_schema = tc.table_schema
	WHERE tc.constraint_type = 'CHECK'
		AND tc.table_schema = $1
		AND tc.table_name = $2
		AND tc.constraint_name NOT LIKE '%not_null'
	ORDER BY cc.constraint_name;
	`

	rows, err := pool.Query(ctx, query, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying check constraints: %v", err)
	}
	defer rows.Close()

	var checks []schema.CheckConstraint
	for rows.Next() {
		var constraintName, clause string
		if err := rows.Scan(&constraintName, &clause); err != nil {
			return nil, fmt.Errorf("scanning check constraint: %v", err)
		}
		checks = append(checks, schema.CheckConstraint{
			Name:       constraintName,
			Expression: trimOuterParens(clause),
		})
	}

	return checks, rows.Err()
}

func pgIndexes(ctx context.Context, pool *pgxpool.Pool, nsName, tableName string) ([]schema.Index, error) {
	// Indexes backing primary keys and unique constraints are excluded, those
	// already appear as constraints.
	query := `
	SELECT
		i.relname AS index_name,
		ix.indisunique AS is_unique,
		pg_get_expr(ix.indpred, ix.indrelid) AS predicate,
		array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
	FROM pg_class t
	JOIN pg_index ix ON t.oid = ix.indrelid
	JOIN pg_class i ON i.oid = ix.indexrelid
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
	JOIN pg_namespace n ON n.oid = t.relnamespace
	WHERE t.relkind = 'r'
		AND n.nspname = $1
		AND t.relname = $2
		AND NOT ix.indisprimary
		AND NOT EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid)
	GROUP BY i.relname, ix.indisunique, ix.indpred, ix.indrelid
	ORDER BY i.relname;
	`

	rows, err := pool.Query(ctx, query, nsName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %v", err)
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var ix schema.Index
		var predicate *string
		if err := rows.Scan(&ix.Name, &ix.Unique, &predicate, &ix.Columns); err != nil {
			return nil, fmt.Errorf("scanning index: %v", err)
		}
		if predicate != nil {
			ix.Predicate = trimOuterParens(*predicate)
		}
		indexes = append(indexes, ix)
	}

	return indexes, rows.Err()
}

// pgUDTKinds maps pg_type names (as seen in udt_name) to model kinds, used
// for array element types.
var pgUDTKinds = map[string]schema.TypeKind{
	"int2":        schema.Smallint,
	"int4":        schema.Integer,
	"int8":        schema.Bigint,
	"numeric":     schema.Decimal,
	"float4":      schema.Decimal,
	"float8":      schema.Decimal,
	"text":        schema.Text,
	"varchar":     schema.Text,
	"bpchar":      schema.Text,
	"bool":        schema.Boolean,
	"timestamp":   schema.Timestamp,
	"timestamptz": schema.Timestamp,
	"date":        schema.Date,
	"time":        schema.Time,
	"timetz":      schema.Time,
	"interval":    schema.Interval,
	"json":        schema.JSON,
	"jsonb":       schema.JSON,
	"uuid":        schema.UUID,
	"inet":        schema.Inet,
}

// mapPostgresType folds an information_schema column description into the
// model's type vocabulary. Types the model cannot express come back as text.
func mapPostgresType(dataType, udtName string, charMax, prec, scale *int) schema.ColumnType {
	switch dataType {
	case "smallint":
		return schema.ColumnType{Kind: schema.Smallint}
	case "integer":
		return schema.ColumnType{Kind: schema.Integer}
	case "bigint":
		return schema.ColumnType{Kind: schema.Bigint}
	case "numeric", "double precision", "real":
		ct := schema.ColumnType{Kind: schema.Decimal}
		if dataType == "numeric" && prec != nil {
			ct.Precision = *prec
			if scale != nil {
				ct.Scale = *scale
			}
		}
		return ct
	case "character varying", "character":
		ct := schema.ColumnType{Kind: schema.Text}
		if charMax != nil {
			ct.MaxLength = *charMax
		}
		return ct
	case "text":
		return schema.ColumnType{Kind: schema.Text}
	case "boolean":
		return schema.ColumnType{Kind: schema.Boolean}
	case "timestamp with time zone":
		return schema.ColumnType{Kind: schema.Timestamp, WithTimezone: true}
	case "timestamp without time zone":
		return schema.ColumnType{Kind: schema.Timestamp}
	case "date":
		return schema.ColumnType{Kind: schema.Date}
	case "time with time zone", "time without time zone":
		return schema.ColumnType{Kind: schema.Time}
	case "interval":
		return schema.ColumnType{Kind: schema.Interval}
	case "json", "jsonb":
		return schema.ColumnType{Kind: schema.JSON}
	case "uuid":
		return schema.ColumnType{Kind: schema.UUID}
	case "inet":
		return schema.ColumnType{Kind: schema.Inet}
	case "ARRAY":
		elem := strings.TrimPrefix(udtName, "_")
		if kind, ok := pgUDTKinds[elem]; ok {
			return schema.ColumnType{Kind: schema.Array, Element: kind}
		}
		return schema.ColumnType{Kind: schema.Array, Element: schema.Text}
	default:
		return schema.ColumnType{Kind: schema.Text}
	}
}

// parsePostgresDefault turns a catalog default expression into a model
// default. Sequence-backed defaults have no declarative equivalent and are
// dropped.
func parsePostgresDefault(raw string) *schema.Default {
	if strings.Contains(raw, "nextval(") {
		return nil
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "now()") || strings.HasPrefix(lower, "current_timestamp") {
		return &schema.Default{Kind: schema.DefaultNow}
	}
	// strip the ::type cast and surrounding quotes from literals
	if i := strings.Index(raw, "::"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.Trim(raw, "'")
	return &schema.Default{Kind: schema.DefaultLiteral, Literal: raw}
}

func trimOuterParens(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		depth := 0
		balanced := true
		for i, r := range s {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 && i < len(s)-1 {
					balanced = false
				}
			}
		}
		if !balanced {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
