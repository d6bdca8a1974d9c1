package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, kind, se.Kind, "unexpected violation: %v", err)
	return se
}

func usersTable() Table {
	return Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: ColumnType{Kind: UUID}},
			{Name: "email", Type: ColumnType{Kind: Text, MaxLength: 255}, Unique: true},
			{Name: "bio", Type: ColumnType{Kind: Text}, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestDefineNamespace(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.DefineNamespace("auth"))

	requireKind(t, b.DefineNamespace("auth"), DuplicateNamespace)
	requireKind(t, b.DefineNamespace(""), InvalidDefinition)

	// same table name under different namespaces is fine
	require.NoError(t, b.DefineNamespace("billing"))
	require.NoError(t, b.DefineTable("auth", usersTable()))
	require.NoError(t, b.DefineTable("billing", usersTable()))
}

func TestDefineTable(t *testing.T) {
	t.Run("unknown namespace", func(t *testing.T) {
		b := NewBuilder()
		requireKind(t, b.DefineTable("auth", usersTable()), UnknownNamespace)
	})

	t.Run("duplicate table", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		require.NoError(t, b.DefineTable("auth", usersTable()))
		requireKind(t, b.DefineTable("auth", usersTable()), DuplicateTableName)
	})

	t.Run("duplicate column", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		err := b.DefineTable("auth", Table{
			Name: "users",
			Columns: []Column{
				{Name: "id", Type: ColumnType{Kind: Integer}},
				{Name: "id", Type: ColumnType{Kind: Text}},
			},
		})
		se := requireKind(t, err, DuplicateColumnName)
		assert.Equal(t, "id", se.Column)
	})

	t.Run("invalid column type", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		err := b.DefineTable("auth", Table{
			Name:    "users",
			Columns: []Column{{Name: "balance", Type: ColumnType{Kind: Decimal, Precision: 2, Scale: 5}}},
		})
		requireKind(t, err, InvalidColumnType)
	})

	t.Run("primary key references unknown column", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		err := b.DefineTable("auth", Table{
			Name:       "users",
			Columns:    []Column{{Name: "id", Type: ColumnType{Kind: Integer}}},
			PrimaryKey: []string{"uid"},
		})
		requireKind(t, err, UnknownColumnReference)
	})

	t.Run("primary key lists column twice", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		err := b.DefineTable("auth", Table{
			Name:       "users",
			Columns:    []Column{{Name: "id", Type: ColumnType{Kind: Integer}}},
			PrimaryKey: []string{"id", "id"},
		})
		requireKind(t, err, DuplicateColumnName)
	})

	t.Run("primary key members become not null", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("iot"))
		require.NoError(t, b.DefineTable("iot", Table{
			Name: "readings",
			Columns: []Column{
				{Name: "device_id", Type: ColumnType{Kind: UUID}, Nullable: true},
				{Name: "recorded_at", Type: ColumnType{Kind: Timestamp, WithTimezone: true}, Nullable: true},
				{Name: "value", Type: ColumnType{Kind: Decimal, Precision: 10, Scale: 2}},
			},
			PrimaryKey: []string{"device_id", "recorded_at"},
		}))
		s, err := b.Finalize()
		require.NoError(t, err)
		tbl, ok := s.Table(TableRef{Namespace: "iot", Table: "readings"})
		require.True(t, ok)
		for _, name := range []string{"device_id", "recorded_at"} {
			col, ok := tbl.Column(name)
			require.True(t, ok)
			assert.False(t, col.Nullable, "%s must be NOT NULL as a key member", name)
		}
	})

	t.Run("constraint name collision", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		tbl := usersTable()
		tbl.Uniques = []UniqueConstraint{{Name: "users_email_key", Columns: []string{"email"}}}
		tbl.Indexes = []Index{{Name: "users_email_key", Columns: []string{"email"}}}
		requireKind(t, b.DefineTable("auth", tbl), DuplicateConstraintName)
	})

	t.Run("unique constraint without columns", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		tbl := usersTable()
		tbl.Uniques = []UniqueConstraint{{Name: "users_key"}}
		requireKind(t, b.DefineTable("auth", tbl), InvalidDefinition)
	})

	t.Run("index references unknown column", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		tbl := usersTable()
		tbl.Indexes = []Index{{Name: "idx_users_handle", Columns: []string{"handle"}}}
		requireKind(t, b.DefineTable("auth", tbl), UnknownColumnReference)
	})

	t.Run("check constraint column must exist", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		tbl := usersTable()
		tbl.Checks = []CheckConstraint{{
			Name:       "users_age_positive",
			Expression: "age > 0",
			Columns:    []string{"age"},
		}}
		requireKind(t, b.DefineTable("auth", tbl), UnknownColumnReference)
	})

	t.Run("caller mutation after define has no effect", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		tbl := usersTable()
		require.NoError(t, b.DefineTable("auth", tbl))
		tbl.Columns[0].Name = "mutated"
		tbl.PrimaryKey[0] = "mutated"

		s, err := b.Finalize()
		require.NoError(t, err)
		got, ok := s.Table(TableRef{Namespace: "auth", Table: "users"})
		require.True(t, ok)
		assert.True(t, got.HasColumn("id"))
		assert.Equal(t, []string{"id"}, got.PrimaryKey)
	})
}

func TestDefineForeignKey(t *testing.T) {
	setup := func(t *testing.T) *Builder {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("auth"))
		require.NoError(t, b.DefineNamespace("blog"))
		require.NoError(t, b.DefineTable("auth", usersTable()))
		require.NoError(t, b.DefineTable("blog", Table{
			Name: "posts",
			Columns: []Column{
				{Name: "id", Type: ColumnType{Kind: UUID}},
				{Name: "author_id", Type: ColumnType{Kind: UUID}},
				{Name: "editor_id", Type: ColumnType{Kind: UUID}, Nullable: true},
			},
			PrimaryKey: []string{"id"},
		}))
		return b
	}
	users := TableRef{Namespace: "auth", Table: "users"}
	posts := TableRef{Namespace: "blog", Table: "posts"}

	t.Run("unknown source table", func(t *testing.T) {
		b := setup(t)
		err := b.DefineForeignKey(TableRef{Namespace: "blog", Table: "commentz"}, ForeignKey{
			Columns: []string{"author_id"}, References: users, RefColumns: []string{"id"},
		})
		requireKind(t, err, UnknownTableReference)
	})

	t.Run("length mismatch", func(t *testing.T) {
		b := setup(t)
		err := b.DefineForeignKey(posts, ForeignKey{
			Columns: []string{"author_id", "editor_id"}, References: users, RefColumns: []string{"id"},
		})
		requireKind(t, err, ForeignKeyLengthMismatch)
	})

	t.Run("empty column lists", func(t *testing.T) {
		b := setup(t)
		err := b.DefineForeignKey(posts, ForeignKey{References: users})
		requireKind(t, err, ForeignKeyLengthMismatch)
	})

	t.Run("unknown source column", func(t *testing.T) {
		b := setup(t)
		err := b.DefineForeignKey(posts, ForeignKey{
			Columns: []string{"writer_id"}, References: users, RefColumns: []string{"id"},
		})
		requireKind(t, err, UnknownColumnReference)
	})

	t.Run("invalid action", func(t *testing.T) {
		b := setup(t)
		err := b.DefineForeignKey(posts, ForeignKey{
			Columns: []string{"author_id"}, References: users, RefColumns: []string{"id"},
			OnDelete: "EXPLODE",
		})
		requireKind(t, err, InvalidReferentialAction)
	})

	t.Run("set null requires nullable source", func(t *testing.T) {
		b := setup(t)
		err := b.DefineForeignKey(posts, ForeignKey{
			Columns: []string{"author_id"}, References: users, RefColumns: []string{"id"},
			OnDelete: SetNull,
		})
		se := requireKind(t, err, ForeignKeySetNullOnNonNullable)
		assert.Equal(t, "author_id", se.Column)

		// nullable source column is fine
		require.NoError(t, b.DefineForeignKey(posts, ForeignKey{
			Columns: []string{"editor_id"}, References: users, RefColumns: []string{"id"},
			OnDelete: SetNull,
		}))
	})

	t.Run("action spellings normalize", func(t *testing.T) {
		b := setup(t)
		require.NoError(t, b.DefineForeignKey(posts, ForeignKey{
			Columns: []string{"author_id"}, References: users, RefColumns: []string{"id"},
			OnDelete: "cascade", OnUpdate: "no-action",
		}))
		s, err := b.Finalize()
		require.NoError(t, err)
		tbl, _ := s.Table(posts)
		require.Len(t, tbl.ForeignKeys, 1)
		assert.Equal(t, Cascade, tbl.ForeignKeys[0].OnDelete)
		assert.Equal(t, NoAction, tbl.ForeignKeys[0].OnUpdate)
	})

	t.Run("target may be defined later", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineNamespace("blog"))
		require.NoError(t, b.DefineNamespace("auth"))
		require.NoError(t, b.DefineTable("blog", Table{
			Name: "posts",
			Columns: []Column{
				{Name: "id", Type: ColumnType{Kind: UUID}},
				{Name: "author_id", Type: ColumnType{Kind: UUID}},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{
				Columns: []string{"author_id"}, References: users, RefColumns: []string{"id"},
			}},
		}))
		// auth.users does not exist yet, the reference resolves at Finalize
		require.NoError(t, b.DefineTable("auth", usersTable()))
		_, err := b.Finalize()
		require.NoError(t, err)
	})
}

func TestDefineRelationship(t *testing.T) {
	users := TableRef{Namespace: "auth", Table: "users"}
	posts := TableRef{Namespace: "blog", Table: "posts"}

	t.Run("invalid cardinality", func(t *testing.T) {
		b := NewBuilder()
		err := b.DefineRelationship(Relationship{From: posts, To: users, Cardinality: "many-to-many"})
		requireKind(t, err, InvalidCardinality)
	})

	t.Run("endpoints must be qualified", func(t *testing.T) {
		b := NewBuilder()
		err := b.DefineRelationship(Relationship{From: TableRef{Table: "posts"}, To: users, Cardinality: ManyToOne})
		requireKind(t, err, InvalidDefinition)
	})

	t.Run("second untagged for the same pair", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineRelationship(Relationship{From: posts, To: users, Cardinality: ManyToOne}))
		err := b.DefineRelationship(Relationship{From: posts, To: users, Cardinality: ManyToOne})
		requireKind(t, err, AmbiguousRelationship)
	})

	t.Run("duplicate tag in the same direction", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.DefineRelationship(Relationship{Name: "author", From: posts, To: users, Cardinality: ManyToOne}))
		err := b.DefineRelationship(Relationship{Name: "author", From: posts, To: users, Cardinality: ManyToOne})
		requireKind(t, err, AmbiguousRelationship)
	})

	t.Run("self-referential tag holds both directions", func(t *testing.T) {
		cat := TableRef{Namespace: "shop", Table: "categories"}
		b := NewBuilder()
		require.NoError(t, b.DefineRelationship(Relationship{Name: "parent", From: cat, To: cat, Cardinality: ManyToOne}))
		require.NoError(t, b.DefineRelationship(Relationship{Name: "parent", From: cat, To: cat, Cardinality: OneToMany}))
		// a third leg under the same tag is one too many
		err := b.DefineRelationship(Relationship{Name: "parent", From: cat, To: cat, Cardinality: ManyToOne})
		requireKind(t, err, AmbiguousRelationship)
	})
}
