package loader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemakit/schemakit/schema"
)

func TestLoadBlogFixture(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)

	require.Len(t, spec.Namespaces, 2)
	assert.Equal(t, "auth", spec.Namespaces[0].Name)
	assert.Equal(t, "blog", spec.Namespaces[1].Name)

	users := spec.Namespaces[0].Tables[0]
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	email := users.Columns[1]
	assert.Equal(t, schema.ColumnType{Kind: schema.Text, MaxLength: 255}, email.Type)
	assert.True(t, email.Unique)
	created := users.Columns[3]
	require.NotNil(t, created.Default)
	assert.Equal(t, schema.DefaultNow, created.Default.Kind)

	posts := spec.Namespaces[1].Tables[0]
	tags, ok := posts.Column("tags")
	require.True(t, ok)
	assert.Equal(t, schema.ColumnType{Kind: schema.Array, Element: schema.Text}, tags.Type)

	require.Len(t, posts.ForeignKeys, 1)
	fk := posts.ForeignKeys[0]
	assert.Equal(t, schema.TableRef{Namespace: "auth", Table: "users"}, fk.References)
	assert.Equal(t, "cascade", string(fk.OnDelete), "actions normalize later, at build time")

	// a bare references target stays within the namespace
	categories := spec.Namespaces[1].Tables[1]
	require.Len(t, categories.ForeignKeys, 1)
	assert.Equal(t, schema.TableRef{Namespace: "blog", Table: "categories"}, categories.ForeignKeys[0].References)

	require.Len(t, spec.Relationships, 4)
	assert.Equal(t, schema.ManyToOne, spec.Relationships[0].Cardinality)

	// the fixture validates as a whole
	s, err := schema.Build(spec)
	require.NoError(t, err)

	cat := schema.TableRef{Namespace: "blog", Table: "categories"}
	assert.Len(t, s.RelationshipNamed(cat, "parent"), 2)
}

func TestParseErrors(t *testing.T) {
	t.Run("not yaml", func(t *testing.T) {
		_, err := Parse([]byte("{nope"))
		assert.ErrorContains(t, err, "unmarshalling YAML")
	})

	t.Run("bad column type carries location", func(t *testing.T) {
		_, err := Parse([]byte(`
namespaces:
  - name: app
    tables:
      - name: events
        columns:
          - name: id
            type: serial
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, `table "events"`)
		assert.ErrorContains(t, err, `column "id"`)
	})

	t.Run("foreign key without target", func(t *testing.T) {
		_, err := Parse([]byte(`
namespaces:
  - name: app
    tables:
      - name: events
        columns:
          - name: id
            type: uuid
        foreign_keys:
          - columns: [id]
            ref_columns: [id]
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "missing references")
	})

	t.Run("relationship endpoints must be qualified", func(t *testing.T) {
		_, err := Parse([]byte(`
relationships:
  - name: author
    from: posts
    to: auth.users
    cardinality: many-to-one
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "namespace.table")
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorContains(t, err, "reading schema file")
}

func TestMarshalRoundTrip(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)

	s, err := schema.Build(spec)
	require.NoError(t, err)
	derived := s.Spec()

	data, err := Marshal(derived)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)

	s2, err := schema.Build(again)
	require.NoError(t, err)
	assert.Equal(t, derived, s2.Spec())
}
