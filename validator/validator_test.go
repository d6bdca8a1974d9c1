package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemakit/schemakit/schema"
)

func typesOf(problems []ValidationError) []string {
	out := make([]string, 0, len(problems))
	for _, p := range problems {
		out = append(out, p.Type)
	}
	return out
}

func cleanSpec() schema.Spec {
	return schema.Spec{
		Namespaces: []schema.Namespace{
			{
				Name: "auth",
				Tables: []schema.Table{
					{
						Name: "users",
						Columns: []schema.Column{
							{Name: "id", Type: schema.ColumnType{Kind: schema.UUID}},
							{Name: "email", Type: schema.ColumnType{Kind: schema.Text, MaxLength: 255}, Unique: true},
						},
						PrimaryKey: []string{"id"},
					},
					{
						Name: "sessions",
						Columns: []schema.Column{
							{Name: "id", Type: schema.ColumnType{Kind: schema.UUID}},
							{Name: "user_id", Type: schema.ColumnType{Kind: schema.UUID}},
						},
						PrimaryKey: []string{"id"},
						ForeignKeys: []schema.ForeignKey{
							{
								Name:       "sessions_user_fkey",
								Columns:    []string{"user_id"},
								References: schema.TableRef{Namespace: "auth", Table: "users"},
								RefColumns: []string{"id"},
								OnDelete:   schema.Cascade,
							},
						},
						Indexes: []schema.Index{
							{Name: "sessions_user_idx", Columns: []string{"user_id"}},
						},
					},
				},
			},
		},
	}
}

func TestValidateCleanSpec(t *testing.T) {
	result := Validate(cleanSpec())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Info)
}

func TestValidateCollectsEveryError(t *testing.T) {
	spec := cleanSpec()
	// Break two independent things: a duplicate column and a foreign key
	// aimed at a table that does not exist.
	users := &spec.Namespaces[0].Tables[0]
	users.Columns = append(users.Columns, schema.Column{Name: "id", Type: schema.ColumnType{Kind: schema.Text}})
	sessions := &spec.Namespaces[0].Tables[1]
	sessions.ForeignKeys[0].References = schema.TableRef{Namespace: "auth", Table: "accounts"}

	result := Validate(spec)

	require.False(t, result.Valid)
	types := typesOf(result.Errors)
	assert.Contains(t, types, "duplicate_column_name")
	assert.Contains(t, types, "unknown_table_reference")
	assert.Len(t, result.Errors, 2)
}

func TestValidateKeepsGoingAfterTableError(t *testing.T) {
	spec := cleanSpec()
	// The users table fails to define, so the sessions foreign key target
	// is gone too. Both findings must surface in one pass.
	spec.Namespaces[0].Tables[0].PrimaryKey = []string{"missing"}

	result := Validate(spec)

	require.False(t, result.Valid)
	types := typesOf(result.Errors)
	assert.Contains(t, types, "unknown_column_reference")
	assert.Contains(t, types, "unknown_table_reference")
}

func TestMissingPrimaryKeyWarning(t *testing.T) {
	spec := cleanSpec()
	// keep the sessions foreign key target unique without the key
	spec.Namespaces[0].Tables[0].PrimaryKey = nil
	spec.Namespaces[0].Tables[0].Columns[0].Unique = true

	result := Validate(spec)

	assert.True(t, result.Valid)
	types := typesOf(result.Warnings)
	assert.Contains(t, types, "no_primary_key")
}

func TestEmptyTableWarning(t *testing.T) {
	spec := cleanSpec()
	spec.Namespaces[0].Tables = append(spec.Namespaces[0].Tables, schema.Table{Name: "audit"})

	result := Validate(spec)

	assert.True(t, result.Valid)
	types := typesOf(result.Warnings)
	assert.Contains(t, types, "no_columns")
	assert.Contains(t, types, "no_primary_key")
}

func TestUnindexedForeignKeyInfo(t *testing.T) {
	t.Run("reported without index", func(t *testing.T) {
		spec := cleanSpec()
		spec.Namespaces[0].Tables[1].Indexes = nil

		result := Validate(spec)

		require.True(t, result.Valid)
		require.Len(t, result.Info, 1)
		info := result.Info[0]
		assert.Equal(t, "unindexed_foreign_key", info.Type)
		assert.Equal(t, "sessions", info.Table)
		assert.Equal(t, "sessions_user_fkey", info.Constraint)
		assert.Contains(t, info.Message, "user_id")
	})

	t.Run("index prefix covers", func(t *testing.T) {
		spec := cleanSpec()
		spec.Namespaces[0].Tables[1].Indexes = []schema.Index{
			{Name: "sessions_user_created_idx", Columns: []string{"user_id", "id"}},
		}

		result := Validate(spec)

		assert.Empty(t, result.Info)
	})

	t.Run("primary key prefix covers", func(t *testing.T) {
		spec := cleanSpec()
		sessions := &spec.Namespaces[0].Tables[1]
		sessions.Indexes = nil
		sessions.PrimaryKey = []string{"user_id", "id"}

		result := Validate(spec)

		assert.Empty(t, result.Info)
	})

	t.Run("unique column covers", func(t *testing.T) {
		spec := cleanSpec()
		sessions := &spec.Namespaces[0].Tables[1]
		sessions.Indexes = nil
		sessions.Columns[1].Unique = true

		result := Validate(spec)

		assert.Empty(t, result.Info)
	})
}

func TestIdentifierLint(t *testing.T) {
	t.Run("length", func(t *testing.T) {
		spec := cleanSpec()
		long := strings.Repeat("x", 64)
		spec.Namespaces[0].Tables[0].Columns = append(spec.Namespaces[0].Tables[0].Columns,
			schema.Column{Name: long, Type: schema.ColumnType{Kind: schema.Text}})

		result := Validate(spec)

		require.True(t, result.Valid)
		types := typesOf(result.Warnings)
		assert.Contains(t, types, "identifier_length")
	})

	t.Run("characters", func(t *testing.T) {
		spec := cleanSpec()
		spec.Namespaces[0].Tables = append(spec.Namespaces[0].Tables, schema.Table{
			Name: "login-attempts",
			Columns: []schema.Column{
				{Name: "id", Type: schema.ColumnType{Kind: schema.UUID}},
			},
			PrimaryKey: []string{"id"},
		})

		result := Validate(spec)

		require.True(t, result.Valid)
		var found *ValidationError
		for i := range result.Warnings {
			if result.Warnings[i].Type == "identifier_chars" {
				found = &result.Warnings[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "login-attempts", found.Table)
		assert.Contains(t, found.Message, "'-'")
	})
}

func TestModelWarningsSurface(t *testing.T) {
	spec := cleanSpec()
	users := &spec.Namespaces[0].Tables[0]
	users.Uniques = append(users.Uniques, schema.UniqueConstraint{
		Name:    "users_pkey_again",
		Columns: []string{"id"},
	})

	result := Validate(spec)

	assert.True(t, result.Valid)
	types := typesOf(result.Warnings)
	assert.Contains(t, types, "redundant_unique_constraint")
}

func TestSeverityTagging(t *testing.T) {
	spec := cleanSpec()
	spec.Namespaces[0].Tables[1].Indexes = nil
	spec.Namespaces[0].Tables[0].PrimaryKey = []string{"missing"}

	result := Validate(spec)

	for _, e := range result.Errors {
		assert.Equal(t, "error", e.Severity)
	}
	for _, w := range result.Warnings {
		assert.Equal(t, "warning", w.Severity)
	}
	for _, i := range result.Info {
		assert.Equal(t, "info", i.Severity)
	}
}
