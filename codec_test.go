package odm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	odm "github.com/ramzitannous/mongo-odm"
)

func TestEncode_DefaultsAndOmission(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("name", "Ann"))

	wire, err := odm.Encode(doc)
	require.NoError(t, err)

	// schema order, defaults filled, unset optionals (nick, _id) omitted
	assert.Equal(t, bson.D{
		{Key: "name", Value: "Ann"},
		{Key: "age", Value: int64(0)},
	}, wire)
}

func TestEncode_MissingRequired(t *testing.T) {
	doc := userSchema(t).New()
	_, err := odm.Encode(doc)
	require.ErrorIs(t, err, odm.ErrMissingRequiredField)
	iss, ok := odm.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, "/name", iss[0].Path)
}

func TestEncode_ExplicitNull(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("name", "Ann"))
	require.NoError(t, doc.Set("nick", nil))

	wire, err := odm.Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, wire, bson.E{Key: "nick", Value: nil})
}

func TestDecode_DefaultsForOmittedFields(t *testing.T) {
	doc, err := odm.Decode(userSchema(t), bson.M{"name": "Ann"}, odm.DecodeOpt{})
	require.NoError(t, err)

	assert.Equal(t, "Ann", doc.MustGet("name"))
	assert.Equal(t, int64(0), doc.MustGet("age"))
	assert.True(t, doc.DefaultApplied("age"))
	assert.Empty(t, doc.DirtyFields(), "deserialized values are clean")
}

func TestDecode_UnknownKeys(t *testing.T) {
	sch := userSchema(t)
	wire := bson.M{"name": "Ann", "legacy": 1}

	doc, err := odm.Decode(sch, wire, odm.DecodeOpt{})
	require.NoError(t, err, "unknown keys ignored by default")
	assert.False(t, doc.Has("legacy"))

	_, err = odm.Decode(sch, wire, odm.DecodeOpt{Unknown: odm.UnknownStrict})
	require.ErrorIs(t, err, odm.ErrDeserialization)
	iss, ok := odm.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, "/legacy", iss[0].Path)
	assert.Equal(t, odm.CodeUnknownKey, iss[0].Code)
}

func TestDecode_ShapeMismatch(t *testing.T) {
	_, err := odm.Decode(userSchema(t), bson.M{"name": "Ann", "age": "thirty"}, odm.DecodeOpt{})
	require.ErrorIs(t, err, odm.ErrDeserialization)
	iss, ok := odm.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, "/age", iss[0].Path)
}

func TestRoundTripIdentity(t *testing.T) {
	reg := odm.NewRegistry()
	addr := reg.MustRegister("Address",
		odm.Field("city", odm.String()).Required(),
		odm.Field("zip", odm.String()).Default("00000"),
	)
	person := reg.MustRegister("Person",
		odm.Field("name", odm.String()).Required(),
		odm.Field("age", odm.Int()).Default(int64(0)),
		odm.Field("joined", odm.Time()).Required(),
		odm.Field("address", odm.Embedded(odm.Ref(addr))).Required(),
		odm.Field("tags", odm.Array(odm.String())).Default([]any{}),
	)

	home := addr.New()
	require.NoError(t, home.Set("city", "Berlin"))

	doc := person.New()
	require.NoError(t, doc.Set("name", "Ann"))
	require.NoError(t, doc.Set("age", int64(30)))
	require.NoError(t, doc.Set("joined", time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, doc.Set("address", home))
	require.NoError(t, doc.Set("tags", []any{"a", "b"}))

	wire, err := odm.Encode(doc)
	require.NoError(t, err)

	back, err := odm.Decode(person, wire, odm.DecodeOpt{})
	require.NoError(t, err)

	for _, f := range person.Fields() {
		name := f.Name()
		if name == odm.PrimaryKey {
			continue
		}
		if name == "address" {
			got := back.MustGet(name).(*odm.Document)
			assert.Equal(t, "Berlin", got.MustGet("city"))
			assert.Equal(t, "00000", got.MustGet("zip"))
			continue
		}
		assert.Equal(t, doc.MustGet(name), back.MustGet(name), "field %s", name)
	}
}

func TestDecode_ArrayOfEmbedded_IndexContext(t *testing.T) {
	reg := odm.NewRegistry()
	item := reg.MustRegister("Item", odm.Field("sku", odm.String()).Required())
	order := reg.MustRegister("Order",
		odm.Field("items", odm.Array(odm.Embedded(odm.Ref(item)))),
	)

	wire := bson.M{"items": bson.A{
		bson.M{"sku": "a-1"},
		bson.M{"sku": 42}, // wrong shape
	}}
	_, err := odm.Decode(order, wire, odm.DecodeOpt{})
	require.ErrorIs(t, err, odm.ErrDeserialization)
	iss, ok := odm.AsIssues(err)
	require.True(t, ok)
	assert.Equal(t, "/items/1/sku", iss[0].Path)

	doc, err := odm.Decode(order, bson.M{"items": bson.A{bson.M{"sku": "a-1"}}}, odm.DecodeOpt{})
	require.NoError(t, err)
	items := doc.MustGet("items").([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "a-1", items[0].(*odm.Document).MustGet("sku"))
}

func TestDecode_BSONTypes(t *testing.T) {
	reg := odm.NewRegistry()
	sch := reg.MustRegister("Event",
		odm.Field("at", odm.Time()).Required(),
		odm.Field("count", odm.Int()),
	)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	wire := bson.M{
		"_id":   primitive.NewObjectID(),
		"at":    primitive.NewDateTimeFromTime(at),
		"count": int32(7), // the driver decodes small ints as int32
	}
	doc, err := odm.Decode(sch, wire, odm.DecodeOpt{})
	require.NoError(t, err)
	assert.Equal(t, at, doc.MustGet("at"))
	assert.Equal(t, int64(7), doc.MustGet("count"))
}

func TestEncodeDirty(t *testing.T) {
	doc := userSchema(t).New()
	require.NoError(t, doc.Set("name", "Ann"))
	require.NoError(t, doc.Set("age", int64(3)))
	doc.ClearDirty()
	require.NoError(t, doc.Set("age", int64(4)))

	wire, err := odm.EncodeDirty(doc)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "age", Value: int64(4)}}, wire)
}

func TestDecode_NullHandling(t *testing.T) {
	sch := userSchema(t)

	doc, err := odm.Decode(sch, bson.M{"name": "Ann", "nick": nil}, odm.DecodeOpt{})
	require.NoError(t, err)
	assert.True(t, doc.Has("nick"))
	assert.Nil(t, doc.MustGet("nick"))

	_, err = odm.Decode(sch, bson.M{"name": nil}, odm.DecodeOpt{})
	require.ErrorIs(t, err, odm.ErrDeserialization)
}
