package odm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	odm "github.com/ramzitannous/mongo-odm"
)

func userSchema(t *testing.T) *odm.Schema {
	t.Helper()
	return odm.NewRegistry().MustRegister("User",
		odm.Field("name", odm.String()).Required(),
		odm.Field("age", odm.Int()).Default(int64(0)),
		odm.Field("nick", odm.String()).Nullable(),
	)
}

func TestDocumentDefaultsOnNew(t *testing.T) {
	doc := userSchema(t).New()
	assert.Equal(t, int64(0), doc.MustGet("age"))
	assert.True(t, doc.DefaultApplied("age"))
	assert.Empty(t, doc.DirtyFields(), "defaults are not mutations")
}

func TestDocumentSetGet(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("name", "Ann"))

	v, err := doc.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Ann", v)
	assert.Equal(t, []string{"name"}, doc.DirtyFields())

	// setting over a default clears the defaulted mark
	require.NoError(t, doc.Set("age", int64(30)))
	assert.False(t, doc.DefaultApplied("age"))
}

func TestDocumentUnknownFieldLeavesInstanceUnchanged(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("name", "Ann"))

	err := doc.Set("salary", 100.0)
	assert.ErrorIs(t, err, odm.ErrUnknownField)
	_, err = doc.Get("salary")
	assert.ErrorIs(t, err, odm.ErrUnknownField)

	assert.Equal(t, "Ann", doc.MustGet("name"))
	assert.Equal(t, []string{"name"}, doc.DirtyFields())
}

func TestDocumentSetInvalidIsAtomic(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("age", int64(3)))

	err := doc.Set("age", "three")
	assert.ErrorIs(t, err, odm.ErrValidation)
	assert.Equal(t, int64(3), doc.MustGet("age"), "failed set must not mutate")
}

func TestDocumentDirtyLifecycle(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("name", "Ann"))
	require.NoError(t, doc.Set("age", int64(1)))
	assert.Equal(t, []string{"age", "name"}, doc.DirtyFields())

	doc.ClearDirty()
	assert.Empty(t, doc.DirtyFields())

	require.NoError(t, doc.Unset("age"))
	assert.Equal(t, []string{"age"}, doc.DirtyFields())
	assert.False(t, doc.Has("age"))
}

func TestDocumentNullable(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("nick", nil))
	assert.True(t, doc.Has("nick"))
	assert.Nil(t, doc.MustGet("nick"))

	err := doc.Set("name", nil)
	assert.ErrorIs(t, err, odm.ErrValidation)
}

func TestDocumentID(t *testing.T) {
	doc := userSchema(t).New()
	_, ok := doc.ID()
	assert.False(t, ok)

	oid := primitive.NewObjectID()
	doc.SetID(oid)
	got, ok := doc.ID()
	assert.True(t, ok)
	assert.Equal(t, oid, got)
	assert.Empty(t, doc.DirtyFields(), "driver-assigned id is not a mutation")
}

func TestDocumentValidate(t *testing.T) {
	doc := userSchema(t).New()
	err := doc.Validate()
	require.ErrorIs(t, err, odm.ErrValidation)
	iss, ok := odm.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, "/name", iss[0].Path)
	assert.Equal(t, odm.CodeRequired, iss[0].Code)

	require.NoError(t, doc.Set("name", "Ann"))
	assert.NoError(t, doc.Validate())
}

func TestDocumentJSON(t *testing.T) {
	reg := odm.NewRegistry()
	addr := reg.MustRegister("Address", odm.Field("city", odm.String()).Required())
	person := reg.MustRegister("Person",
		odm.Field("name", odm.String()).Required(),
		odm.Field("address", odm.Embedded(odm.Ref(addr))),
		odm.Field("tags", odm.Array(odm.String())),
	)

	doc := person.New()
	require.NoError(t, doc.Set("name", "Ann"))
	require.NoError(t, doc.Set("address", map[string]any{"city": "Berlin"}))
	require.NoError(t, doc.Set("tags", []any{"a", "b"}))
	oid := primitive.NewObjectID()
	doc.SetID(oid)

	out, err := doc.JSON()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `"name":"Ann"`)
	assert.Contains(t, s, `"city":"Berlin"`)
	assert.Contains(t, s, oid.Hex())
}
