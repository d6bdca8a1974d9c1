package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemakit/schemakit/schema"
)

func testSchema(t *testing.T, withSessions bool) *schema.Schema {
	t.Helper()

	ns := schema.Namespace{
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
		},
	}
	if withSessions {
		ns.Tables = append(ns.Tables, schema.Table{
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
		})
	}

	s, err := schema.Build(schema.Spec{Namespaces: []schema.Namespace{ns}})
	require.NoError(t, err)
	return s
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	s := testSchema(t, true)

	entry, err := store.Save(ctx, "production", s)
	require.NoError(t, err)
	assert.Equal(t, "production", entry.Name)
	assert.Equal(t, 2, entry.Tables)
	_, err = uuid.Parse(entry.ID)
	assert.NoError(t, err, "snapshot ids are uuids")

	spec, loaded, err := store.Load(ctx, "production")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, loaded.ID)
	assert.Equal(t, s.Spec(), spec, "the stored spec survives the round trip exactly")

	rebuilt, err := schema.Build(spec)
	require.NoError(t, err)
	_, ok := rebuilt.Table(schema.TableRef{Namespace: "auth", Table: "sessions"})
	assert.True(t, ok)
}

func TestNameResolvesToLatestVersion(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	first, err := store.Save(ctx, "production", testSchema(t, false))
	require.NoError(t, err)
	second, err := store.Save(ctx, "production", testSchema(t, true))
	require.NoError(t, err)

	_, latest, err := store.Load(ctx, "production")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 2, latest.Tables)

	t.Run("old versions stay reachable by id", func(t *testing.T) {
		spec, entry, err := store.Load(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, entry.ID)
		assert.Equal(t, 1, entry.Tables)
		require.Len(t, spec.Namespaces, 1)
		assert.Len(t, spec.Namespaces[0].Tables, 1)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.Save(ctx, "staging", testSchema(t, false))
	require.NoError(t, err)
	_, err = store.Save(ctx, "production", testSchema(t, true))
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "production", entries[0].Name, "newest first")
	assert.Equal(t, "staging", entries[1].Name)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestLoadUnknownRef(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, _, err := store.Load(ctx, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `snapshot "nope" not found`)
}

func TestSaveRequiresName(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.Save(ctx, "", testSchema(t, false))
	assert.Error(t, err)
}
