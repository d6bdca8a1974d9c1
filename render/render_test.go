package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemakit/schemakit/schema"
)

func buildFixture(t *testing.T) *schema.Schema {
	t.Helper()

	spec := schema.Spec{
		Namespaces: []schema.Namespace{
			{
				Name: "auth",
				Tables: []schema.Table{
					{
						Name: "users",
						Columns: []schema.Column{
							{Name: "id", Type: schema.ColumnType{Kind: schema.UUID}},
							{Name: "email", Type: schema.ColumnType{Kind: schema.Text, MaxLength: 255}, Unique: true},
							{Name: "display_name", Type: schema.ColumnType{Kind: schema.Text}, Nullable: true},
						},
						PrimaryKey: []string{"id"},
					},
				},
			},
			{
				Name: "blog",
				Tables: []schema.Table{
					{
						Name: "posts",
						Columns: []schema.Column{
							{Name: "id", Type: schema.ColumnType{Kind: schema.UUID}},
							{Name: "author_id", Type: schema.ColumnType{Kind: schema.UUID}},
							{Name: "status", Type: schema.ColumnType{Kind: schema.Text},
								Default: &schema.Default{Kind: schema.DefaultLiteral, Literal: "draft"}},
							{Name: "published", Type: schema.ColumnType{Kind: schema.Boolean},
								Default: &schema.Default{Kind: schema.DefaultLiteral, Literal: "false"}},
							{Name: "tags", Type: schema.ColumnType{Kind: schema.Array, Element: schema.Text}},
							{Name: "created_at", Type: schema.ColumnType{Kind: schema.Timestamp, WithTimezone: true},
								Default: &schema.Default{Kind: schema.DefaultNow}},
						},
						PrimaryKey: []string{"id"},
						ForeignKeys: []schema.ForeignKey{
							{
								Name:       "posts_author_fkey",
								Columns:    []string{"author_id"},
								References: schema.TableRef{Namespace: "auth", Table: "users"},
								RefColumns: []string{"id"},
								OnDelete:   schema.Cascade,
							},
						},
						Checks: []schema.CheckConstraint{
							{Name: "posts_status_check", Expression: "status in ('draft', 'live')", Columns: []string{"status"}},
						},
						Indexes: []schema.Index{
							{Name: "posts_author_live_idx", Columns: []string{"author_id"}, Predicate: "published"},
						},
					},
				},
			},
		},
	}

	s, err := schema.Build(spec)
	require.NoError(t, err)
	return s
}

func TestPostgresRender(t *testing.T) {
	s := buildFixture(t)

	statements, err := Statements(s, Postgres)
	require.NoError(t, err)
	script := strings.Join(statements, "\n")

	assert.Contains(t, statements, `CREATE SCHEMA IF NOT EXISTS "auth";`)
	assert.Contains(t, statements, `CREATE SCHEMA IF NOT EXISTS "blog";`)

	assert.Contains(t, statements, `CREATE TABLE "auth"."users" (
  "id" uuid NOT NULL,
  "email" varchar(255) NOT NULL UNIQUE,
  "display_name" text,
  PRIMARY KEY ("id")
);`)

	assert.Contains(t, script, `"status" text NOT NULL DEFAULT 'draft'`)
	assert.Contains(t, script, `"published" boolean NOT NULL DEFAULT false`)
	assert.Contains(t, script, `"tags" text[] NOT NULL`)
	assert.Contains(t, script, `"created_at" timestamptz NOT NULL DEFAULT now()`)
	assert.Contains(t, script, `CONSTRAINT "posts_status_check" CHECK (status in ('draft', 'live'))`)

	assert.Contains(t, statements,
		`ALTER TABLE "blog"."posts" ADD CONSTRAINT "posts_author_fkey" FOREIGN KEY ("author_id") REFERENCES "auth"."users" ("id") ON DELETE CASCADE;`)
	assert.Contains(t, statements,
		`CREATE INDEX "posts_author_live_idx" ON "blog"."posts" ("author_id") WHERE published;`)

	t.Run("schemas come before tables, constraints after", func(t *testing.T) {
		schemaPos := strings.Index(script, "CREATE SCHEMA")
		tablePos := strings.Index(script, "CREATE TABLE")
		alterPos := strings.Index(script, "ALTER TABLE")
		indexPos := strings.Index(script, "CREATE INDEX")
		assert.Less(t, schemaPos, tablePos)
		assert.Less(t, tablePos, alterPos)
		assert.Less(t, alterPos, indexPos)
	})

	t.Run("deterministic", func(t *testing.T) {
		again, err := Statements(s, Postgres)
		require.NoError(t, err)
		assert.Equal(t, statements, again)
	})
}

func TestSQLiteRender(t *testing.T) {
	s := buildFixture(t)

	statements, err := Statements(s, SQLite)
	require.NoError(t, err)
	script := strings.Join(statements, "\n")

	require.NotEmpty(t, statements)
	assert.Equal(t, "PRAGMA foreign_keys = ON;", statements[0])

	assert.Contains(t, statements, `CREATE TABLE "auth_users" (
  "id" TEXT NOT NULL,
  "email" VARCHAR(255) NOT NULL UNIQUE,
  "display_name" TEXT,
  PRIMARY KEY ("id")
);`)

	t.Run("types fold to storage classes", func(t *testing.T) {
		assert.Contains(t, script, `"published" INTEGER NOT NULL DEFAULT 0`)
		assert.Contains(t, script, `"tags" TEXT NOT NULL`)
		assert.Contains(t, script, `"created_at" TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP`)
	})

	t.Run("foreign keys go inline", func(t *testing.T) {
		assert.NotContains(t, script, "ALTER TABLE")
		assert.Contains(t, script,
			`CONSTRAINT "posts_author_fkey" FOREIGN KEY ("author_id") REFERENCES "auth_users" ("id") ON DELETE CASCADE`)
	})

	t.Run("index names are flattened too", func(t *testing.T) {
		assert.Contains(t, statements,
			`CREATE INDEX "blog_posts_author_live_idx" ON "blog_posts" ("author_id") WHERE published;`)
	})
}

func TestScript(t *testing.T) {
	s := buildFixture(t)

	script, err := Script(s, Postgres)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "-- Rendered for postgres\n"))
	assert.Contains(t, script, "CREATE TABLE")
	assert.True(t, strings.HasSuffix(script, "\n"))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"postgres":   Postgres,
		"PostgreSQL": Postgres,
		"pg":         Postgres,
		"sqlite":     SQLite,
		"sqlite3":    SQLite,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "0", quoteLiteral("0"))
	assert.Equal(t, "-3.5", quoteLiteral("-3.5"))
	assert.Equal(t, "true", quoteLiteral("true"))
	assert.Equal(t, "'draft'", quoteLiteral("draft"))
	assert.Equal(t, "'it''s'", quoteLiteral("it's"))
}
