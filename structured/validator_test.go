package structured

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structflow/structured/content"
)

func userSchema() *JSONSchema {
	return NewObjectSchema().
		AddProperty("name", NewSchema(TypeString)).
		AddProperty("age", NewSchema(TypeInteger)).
		AddProperty("nick", NewSchema(TypeString)).
		AddProperty("tags", NewArraySchema(NewSchema(TypeString))).
		AddRequired("name", "age")
}

func validationPaths(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve), "want *ValidationErrors, got %v", err)
	paths := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		paths[i] = e.Path
	}
	return paths
}

func TestValidator_Shape(t *testing.T) {
	v := NewValidator()
	schema := userSchema()

	tests := []struct {
		name  string
		input string
		paths []string
	}{
		{name: "valid", input: `{"name":"Ada","age":36,"tags":["x"]}`},
		{name: "optional null", input: `{"name":"Ada","age":36,"nick":null}`},
		{name: "missing required", input: `{"name":"Ada"}`, paths: []string{"age"}},
		{name: "required null", input: `{"name":null,"age":1}`, paths: []string{"name"}},
		{name: "wrong type", input: `{"name":1,"age":1}`, paths: []string{"name"}},
		{name: "non integral", input: `{"name":"x","age":1.5}`, paths: []string{"age"}},
		{name: "array item", input: `{"name":"x","age":1,"tags":["a",2]}`, paths: []string{"tags[1]"}},
		{name: "root type", input: `[]`, paths: []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.input), schema)
			if tt.paths == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.paths, validationPaths(t, err))
			assert.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
}

func TestValidator_InvalidJSON(t *testing.T) {
	err := NewValidator().Validate([]byte(`{"name":`), userSchema())
	assert.ErrorContains(t, err, "invalid JSON")
	assert.NoError(t, NewValidator().Validate([]byte(`{`), nil))
}

func TestValidator_AdditionalProperties(t *testing.T) {
	v := NewValidator()

	closed := NewObjectSchema().AddProperty("a", NewSchema(TypeInteger)).WithAdditionalProperties(false)
	assert.Equal(t, []string{"b"}, validationPaths(t, v.Validate([]byte(`{"a":1,"b":2}`), closed)))

	typed := NewObjectSchema().WithAdditionalPropertiesSchema(NewSchema(TypeInteger))
	assert.NoError(t, v.Validate([]byte(`{"x":1,"y":2}`), typed))
	assert.Equal(t, []string{"y"}, validationPaths(t, v.Validate([]byte(`{"x":1,"y":"2"}`), typed)))

	// no additionalProperties keyword: anything goes
	assert.NoError(t, v.Validate([]byte(`{"a":1,"zzz":[true]}`), NewObjectSchema().AddProperty("a", NewSchema(TypeInteger))))
}

func TestValidator_Unions(t *testing.T) {
	v := NewValidator()
	nullableString := NewUnionSchema(NewSchema(TypeString), NewSchema(TypeNull))

	schema := NewObjectSchema().AddProperty("s", nullableString).AddRequired("s")
	assert.NoError(t, v.Validate([]byte(`{"s":"x"}`), schema))
	assert.NoError(t, v.Validate([]byte(`{"s":null}`), schema), "required but nullable")
	assert.Error(t, v.Validate([]byte(`{"s":1}`), schema))

	oneOf := &JSONSchema{OneOf: []*JSONSchema{NewSchema(TypeNumber), NewSchema(TypeInteger)}}
	assert.NoError(t, v.Validate([]byte(`1.5`), oneOf))
	assert.ErrorContains(t, v.Validate([]byte(`2`), oneOf), "matches 2 oneOf alternatives")

	allOf := &JSONSchema{AllOf: []*JSONSchema{
		NewObjectSchema().AddRequired("a"),
		NewObjectSchema().AddRequired("b"),
	}}
	assert.ElementsMatch(t, []string{"b"}, validationPaths(t, v.Validate([]byte(`{"a":1}`), allOf)))
}

func TestValidator_Refs(t *testing.T) {
	schema, err := SchemaFor[treeNode]()
	require.NoError(t, err)
	v := NewValidator()

	assert.NoError(t, v.Validate([]byte(`{"value":"root","children":[{"value":"a","children":[{"value":"b"}]}]}`), schema))
	paths := validationPaths(t, v.Validate([]byte(`{"value":"root","children":[{"children":[{"value":3}]}]}`), schema))
	assert.ElementsMatch(t, []string{"children[0].value", "children[0].children[0].value"}, paths)

	broken := NewObjectSchema().AddProperty("x", NewRefSchema("Nope"))
	assert.Equal(t, []string{"x"}, validationPaths(t, v.Validate([]byte(`{"x":1}`), broken)))
}

func TestValidator_PrefixItems(t *testing.T) {
	schema := &JSONSchema{
		Type:        TypeArray,
		PrefixItems: []*JSONSchema{NewSchema(TypeString), NewSchema(TypeInteger)},
		Items:       NewSchema(TypeBoolean),
	}
	v := NewValidator()
	assert.NoError(t, v.Validate([]byte(`["a",1,true,false]`), schema))
	assert.Equal(t, []string{"[1]", "[2]"}, validationPaths(t, v.Validate([]byte(`["a","b",3]`), schema)))
}

func TestValidator_NonFinite(t *testing.T) {
	schema := NewObjectSchema().AddProperty("x", NewSchema(TypeNumber)).AddProperty("n", NewSchema(TypeInteger))
	assert.Error(t, NewValidator().Validate([]byte(`{"x":NaN}`), schema))

	v := NewValidatorWithOptions(content.ParseOptions{AllowNonFinite: true})
	assert.NoError(t, v.Validate([]byte(`{"x":NaN}`), schema))
	assert.Equal(t, []string{"n"}, validationPaths(t, v.Validate([]byte(`{"n":Infinity}`), schema)))
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "validation failed", (&ValidationErrors{}).Error())
	one := &ValidationErrors{Errors: []ParseError{{Path: "a", Message: "bad"}}}
	assert.Equal(t, "a: bad", one.Error())
	two := &ValidationErrors{Errors: []ParseError{{Message: "x"}, {Path: "b", Message: "y"}}}
	assert.Equal(t, "validation failed with 2 errors: x; b: y", two.Error())
}
