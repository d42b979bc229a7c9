package structured

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeNull    SchemaType = "null"
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
)

// StringFormat represents common string format annotations.
type StringFormat string

const (
	FormatDateTime StringFormat = "date-time"
	FormatDate     StringFormat = "date"
	FormatEmail    StringFormat = "email"
	FormatURI      StringFormat = "uri"
	FormatUUID     StringFormat = "uuid"
)

// JSONSchema describes the shape used to interpret Structured Content.
//
// Only the structural keywords (type, properties, required,
// additionalProperties, items, prefixItems, allOf/anyOf/oneOf, $ref/$defs)
// take part in validation and partial projection. Constraint keywords such as
// enum, pattern, format and numeric or length bounds are carried so the
// schema can be shown to a model, but they are never enforced.
type JSONSchema struct {
	Schema      string `json:"$schema,omitempty"`
	ID          string `json:"$id,omitempty"`
	Ref         string `json:"$ref,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Type SchemaType `json:"type,omitempty"`

	// Object shape
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *AdditionalProperties  `json:"additionalProperties,omitempty"`

	// Array shape
	Items       *JSONSchema   `json:"items,omitempty"`
	PrefixItems []*JSONSchema `json:"prefixItems,omitempty"`

	// Unions
	AllOf []*JSONSchema `json:"allOf,omitempty"`
	AnyOf []*JSONSchema `json:"anyOf,omitempty"`
	OneOf []*JSONSchema `json:"oneOf,omitempty"`

	Defs map[string]*JSONSchema `json:"$defs,omitempty"`

	// Annotations, not validated
	Enum      []any        `json:"enum,omitempty"`
	Const     any          `json:"const,omitempty"`
	Format    StringFormat `json:"format,omitempty"`
	Pattern   string       `json:"pattern,omitempty"`
	MinLength *int         `json:"minLength,omitempty"`
	MaxLength *int         `json:"maxLength,omitempty"`
	Minimum   *float64     `json:"minimum,omitempty"`
	Maximum   *float64     `json:"maximum,omitempty"`
	MinItems  *int         `json:"minItems,omitempty"`
	MaxItems  *int         `json:"maxItems,omitempty"`
	Default   any          `json:"default,omitempty"`
	Examples  []any        `json:"examples,omitempty"`
}

// AdditionalProperties represents the additionalProperties field which can be
// either a boolean or a schema.
type AdditionalProperties struct {
	Allowed bool
	Schema  *JSONSchema
}

// MarshalJSON implements json.Marshaler for AdditionalProperties.
func (ap *AdditionalProperties) MarshalJSON() ([]byte, error) {
	if ap == nil {
		return json.Marshal(nil)
	}
	if ap.Schema != nil {
		return json.Marshal(ap.Schema)
	}
	return json.Marshal(ap.Allowed)
}

// UnmarshalJSON implements json.Unmarshaler for AdditionalProperties.
func (ap *AdditionalProperties) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		ap.Allowed = b
		ap.Schema = nil
		return nil
	}

	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err == nil {
		ap.Allowed = true
		ap.Schema = &schema
		return nil
	}

	return fmt.Errorf("additionalProperties must be boolean or schema")
}

// NewSchema creates a new JSONSchema with the specified type.
func NewSchema(t SchemaType) *JSONSchema {
	return &JSONSchema{Type: t}
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       TypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewArraySchema creates a new array schema with the specified items schema.
func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{
		Type:  TypeArray,
		Items: items,
	}
}

// NewRefSchema creates a reference to a definition under $defs.
func NewRefSchema(name string) *JSONSchema {
	return &JSONSchema{Ref: "#/$defs/" + name}
}

// NewUnionSchema creates an anyOf union of the given alternatives.
func NewUnionSchema(alternatives ...*JSONSchema) *JSONSchema {
	return &JSONSchema{AnyOf: alternatives}
}

// WithDescription sets the description and returns the schema for chaining.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names to an object schema.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

// AddDef registers a reusable definition under $defs.
func (s *JSONSchema) AddDef(name string, def *JSONSchema) *JSONSchema {
	if s.Defs == nil {
		s.Defs = make(map[string]*JSONSchema)
	}
	s.Defs[name] = def
	return s
}

// WithAdditionalProperties sets the additionalProperties constraint.
func (s *JSONSchema) WithAdditionalProperties(allowed bool) *JSONSchema {
	s.AdditionalProperties = &AdditionalProperties{Allowed: allowed}
	return s
}

// WithAdditionalPropertiesSchema sets the additionalProperties to a schema.
func (s *JSONSchema) WithAdditionalPropertiesSchema(schema *JSONSchema) *JSONSchema {
	s.AdditionalProperties = &AdditionalProperties{Allowed: true, Schema: schema}
	return s
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToJSONIndent serializes the schema to indented JSON.
func (s *JSONSchema) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON deserializes a schema from JSON.
func FromJSON(data []byte) (*JSONSchema, error) {
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	return &schema, nil
}

// IsRequired checks if a property is required.
func (s *JSONSchema) IsRequired(name string) bool {
	for _, req := range s.Required {
		if req == name {
			return true
		}
	}
	return false
}

// GetProperty returns a property schema by name.
func (s *JSONSchema) GetProperty(name string) *JSONSchema {
	if s.Properties == nil {
		return nil
	}
	return s.Properties[name]
}

// resolver follows local "$ref" pointers against a root schema.
type resolver struct {
	root *JSONSchema
}

// maxRefHops bounds chains like a -> b -> a.
const maxRefHops = 32

// resolve returns the schema s refers to, or s itself when it has no $ref.
func (r resolver) resolve(s *JSONSchema) (*JSONSchema, error) {
	for hops := 0; s != nil && s.Ref != ""; hops++ {
		if hops == maxRefHops {
			return nil, fmt.Errorf("$ref chain too long at %q", s.Ref)
		}
		next, err := r.lookup(s.Ref)
		if err != nil {
			return nil, err
		}
		s = next
	}
	return s, nil
}

func (r resolver) lookup(ref string) (*JSONSchema, error) {
	if ref == "#" {
		return r.root, nil
	}
	for _, prefix := range []string{"#/$defs/", "#/definitions/"} {
		if name, ok := strings.CutPrefix(ref, prefix); ok {
			if def, ok := r.root.Defs[name]; ok && def != nil {
				return def, nil
			}
			return nil, fmt.Errorf("unresolved $ref %q", ref)
		}
	}
	return nil, fmt.Errorf("unsupported $ref %q: only local references are resolved", ref)
}
