package structured

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structflow/structured/content"
)

type simpleStruct struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Active  bool   `json:"active"`
	Score   float64
	private string
}

type taggedStruct struct {
	Status  string   `json:"status" jsonschema:"required,enum=success,failure,pending"`
	Message string   `json:"message,omitempty" jsonschema:"required,description=The result message"`
	Score   float64  `json:"score" jsonschema:"minimum=0,maximum=100"`
	Tags    []string `json:"tags" jsonschema:"minItems=1,maxItems=10"`
	Email   string   `json:"email" jsonschema:"format=email,pattern=^[a-z]+@[a-z]+\\.[a-z]+$"`
	Count   int      `json:"count" jsonschema:"optional,minimum=0,default=3"`
}

type nestedStruct struct {
	ID     string        `json:"id"`
	Inner  simpleStruct  `json:"inner"`
	InnerP *simpleStruct `json:"inner_ptr,omitempty"`
	Extra  string        `json:"extra,omitzero"`
	Hidden string        `json:"-"`
}

type treeNode struct {
	Value    string     `json:"value"`
	Children []treeNode `json:"children,omitempty"`
}

type listNode struct {
	Next *listNode `json:"next"`
}

type forest struct {
	Trees []listNode `json:"trees"`
}

type embeddedBase struct {
	ID string `json:"id"`
}

type withEmbedded struct {
	embeddedBase
	Name string `json:"name"`
}

type specialTypes struct {
	At    time.Time       `json:"at"`
	Raw   json.RawMessage `json:"raw"`
	Any   content.Value   `json:"any"`
	Bytes []byte          `json:"bytes"`
	Meta  map[int]string  `json:"meta"`
	Iface any             `json:"iface"`
}

type customSchema struct{}

func (customSchema) JSONSchema() *JSONSchema {
	return NewSchema(TypeString).WithDescription("custom")
}

type usesCustom struct {
	C customSchema `json:"c" jsonschema:"description=overridden"`
}

func TestSchemaGenerator_BasicTypes(t *testing.T) {
	tests := []struct {
		value any
		want  SchemaType
	}{
		{"", TypeString},
		{0, TypeInteger},
		{uint8(0), TypeInteger},
		{0.5, TypeNumber},
		{float32(0), TypeNumber},
		{true, TypeBoolean},
		{[]int{}, TypeArray},
		{map[string]int{}, TypeObject},
		{simpleStruct{}, TypeObject},
	}
	for _, tt := range tests {
		schema, err := NewSchemaGenerator().GenerateSchemaFromValue(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, schema.Type, "%T", tt.value)
	}

	_, err := NewSchemaGenerator().GenerateSchema(nil)
	assert.Error(t, err)
	_, err = NewSchemaGenerator().GenerateSchemaFromValue(nil)
	assert.Error(t, err)
	_, err = NewSchemaGenerator().GenerateSchemaFromValue(make(chan int))
	assert.Error(t, err)
}

func TestSchemaGenerator_SimpleStruct(t *testing.T) {
	schema, err := SchemaFor[simpleStruct]()
	require.NoError(t, err)

	assert.Len(t, schema.Properties, 4)
	assert.Equal(t, TypeString, schema.Properties["name"].Type)
	assert.Equal(t, TypeNumber, schema.Properties["Score"].Type)
	assert.NotContains(t, schema.Properties, "private")
	assert.ElementsMatch(t, []string{"name", "age", "active", "Score"}, schema.Required)
}

func TestSchemaGenerator_Tags(t *testing.T) {
	schema, err := SchemaFor[taggedStruct]()
	require.NoError(t, err)

	status := schema.Properties["status"]
	assert.Equal(t, []any{"success", "failure", "pending"}, status.Enum)
	assert.Equal(t, "The result message", schema.Properties["message"].Description)
	assert.Equal(t, 100.0, *schema.Properties["score"].Maximum)
	assert.Equal(t, 10, *schema.Properties["tags"].MaxItems)
	assert.Equal(t, FormatEmail, schema.Properties["email"].Format)
	assert.Equal(t, `^[a-z]+@[a-z]+\.[a-z]+$`, schema.Properties["email"].Pattern)
	assert.Equal(t, int64(3), schema.Properties["count"].Default)

	// omitempty is overridden by required, a plain field by optional
	assert.True(t, schema.IsRequired("message"))
	assert.False(t, schema.IsRequired("count"))
}

func TestSchemaGenerator_NestedStruct(t *testing.T) {
	schema, err := SchemaFor[nestedStruct]()
	require.NoError(t, err)

	assert.Equal(t, TypeObject, schema.Properties["inner"].Type)
	assert.Equal(t, TypeObject, schema.Properties["inner_ptr"].Type)
	assert.NotContains(t, schema.Properties, "Hidden")
	assert.NotContains(t, schema.Properties, "-")
	assert.ElementsMatch(t, []string{"id", "inner"}, schema.Required)
}

func TestSchemaGenerator_Recursive(t *testing.T) {
	schema, err := SchemaFor[treeNode]()
	require.NoError(t, err)
	assert.Equal(t, "#", schema.Properties["children"].Items.Ref)

	schema, err = SchemaFor[forest]()
	require.NoError(t, err)
	items := schema.Properties["trees"].Items
	assert.Equal(t, "#/$defs/listNode", items.Ref)
	require.Contains(t, schema.Defs, "listNode")
	assert.Equal(t, "#/$defs/listNode", schema.Defs["listNode"].Properties["next"].Ref)
}

func TestSchemaGenerator_Embedded(t *testing.T) {
	schema, err := SchemaFor[withEmbedded]()
	require.NoError(t, err)
	assert.Contains(t, schema.Properties, "id")
	assert.Contains(t, schema.Properties, "name")
	assert.NotContains(t, schema.Properties, "embeddedBase")
}

func TestSchemaGenerator_SpecialTypes(t *testing.T) {
	schema, err := SchemaFor[specialTypes]()
	require.NoError(t, err)

	assert.Equal(t, TypeString, schema.Properties["at"].Type)
	assert.Equal(t, FormatDateTime, schema.Properties["at"].Format)
	assert.Equal(t, SchemaType(""), schema.Properties["raw"].Type)
	assert.Equal(t, SchemaType(""), schema.Properties["any"].Type)
	assert.Equal(t, TypeString, schema.Properties["bytes"].Type)
	assert.Equal(t, TypeString, schema.Properties["meta"].AdditionalProperties.Schema.Type)
	assert.Equal(t, SchemaType(""), schema.Properties["iface"].Type)
}

func TestSchemaGenerator_SchemaProvider(t *testing.T) {
	schema, err := SchemaFor[usesCustom]()
	require.NoError(t, err)
	assert.Equal(t, "overridden", schema.Properties["c"].Description)

	// the provider's own schema is untouched
	direct, err := SchemaFor[customSchema]()
	require.NoError(t, err)
	assert.Equal(t, "custom", direct.Description)
}

func TestSchemaGenerator_Pointer(t *testing.T) {
	schema, err := NewSchemaGenerator().GenerateSchema(reflect.TypeFor[**simpleStruct]())
	require.NoError(t, err)
	assert.Equal(t, TypeObject, schema.Type)
}

func TestParseTagOptions(t *testing.T) {
	tests := []struct {
		tag  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"required", map[string]string{"required": ""}},
		{"required,enum=a,b,c", map[string]string{"required": "", "enum": "a,b,c"}},
		{"enum=a,b,required,minimum=1", map[string]string{"enum": "a,b", "required": "", "minimum": "1"}},
		{"description=x, y", map[string]string{"description": "x, y"}},
		{"pattern=a=b", map[string]string{"pattern": "a=b"}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTagOptions(tt.tag))
		})
	}
}

func TestParseDefaultValue(t *testing.T) {
	assert.Equal(t, "x", parseDefaultValue("x", reflect.TypeFor[string]()))
	assert.Equal(t, true, parseDefaultValue("true", reflect.TypeFor[*bool]()))
	assert.Equal(t, int64(-2), parseDefaultValue("-2", reflect.TypeFor[int]()))
	assert.Equal(t, uint64(2), parseDefaultValue("2", reflect.TypeFor[uint]()))
	assert.Equal(t, 1.5, parseDefaultValue("1.5", reflect.TypeFor[float64]()))
	assert.Equal(t, "nope", parseDefaultValue("nope", reflect.TypeFor[int]()))
}
