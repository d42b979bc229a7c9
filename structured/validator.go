package structured

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/types"
)

// ErrShapeMismatch matches every *ValidationErrors via errors.Is.
var ErrShapeMismatch = types.NewError(types.ErrShapeMismatch, "content does not match schema shape")

// SchemaValidator validates JSON data against a JSONSchema.
type SchemaValidator interface {
	Validate(data []byte, schema *JSONSchema) error
	ValidateContent(value content.Value, schema *JSONSchema) error
}

// ParseError represents a validation error with field path.
type ParseError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors struct {
	Errors []ParseError `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i := range e.Errors {
		msgs[i] = e.Errors[i].Error()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Is reports a match against ErrShapeMismatch.
func (e *ValidationErrors) Is(target error) bool {
	t, ok := target.(*types.Error)
	return ok && t.Code == types.ErrShapeMismatch
}

// DefaultValidator checks structural shape only: types, required members,
// additionalProperties, array items, unions and local references. Constraint
// keywords (enum, pattern, ranges, lengths, formats) are ignored.
type DefaultValidator struct {
	parseOpts content.ParseOptions
}

// NewValidator creates a DefaultValidator.
func NewValidator() *DefaultValidator {
	return &DefaultValidator{}
}

// NewValidatorWithOptions creates a DefaultValidator that parses raw input
// with the given options.
func NewValidatorWithOptions(opts content.ParseOptions) *DefaultValidator {
	return &DefaultValidator{parseOpts: opts}
}

// Validate parses data and validates the result against schema.
func (v *DefaultValidator) Validate(data []byte, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	value, err := content.Parse(data, v.parseOpts)
	if err != nil {
		return &ValidationErrors{
			Errors: []ParseError{{Path: "", Message: fmt.Sprintf("invalid JSON: %v", err)}},
		}
	}
	return v.ValidateContent(value, schema)
}

// ValidateContent validates already parsed content against schema.
func (v *DefaultValidator) ValidateContent(value content.Value, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	var errs []ParseError
	shapeCheck{refs: resolver{root: schema}}.value(value, schema, "", &errs)
	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

type shapeCheck struct {
	refs resolver
}

func (c shapeCheck) value(value content.Value, schema *JSONSchema, path string, errs *[]ParseError) {
	schema, err := c.refs.resolve(schema)
	if err != nil {
		*errs = append(*errs, ParseError{Path: path, Message: err.Error()})
		return
	}
	if schema == nil {
		return
	}

	for _, sub := range schema.AllOf {
		c.value(value, sub, path, errs)
	}
	if len(schema.AnyOf) > 0 && c.matching(value, schema.AnyOf, path) == 0 {
		*errs = append(*errs, ParseError{Path: path, Message: "value does not match any anyOf alternative"})
	}
	if len(schema.OneOf) > 0 {
		if n := c.matching(value, schema.OneOf, path); n != 1 {
			*errs = append(*errs, ParseError{
				Path:    path,
				Message: fmt.Sprintf("value matches %d oneOf alternatives, want exactly 1", n),
			})
		}
	}

	if schema.Type != "" && !kindMatches(value, schema.Type) {
		*errs = append(*errs, ParseError{
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", schema.Type, value.Kind()),
		})
		return
	}

	switch value.Kind() {
	case content.KindObject:
		c.object(value, schema, path, errs)
	case content.KindArray:
		c.array(value, schema, path, errs)
	}
}

// matching counts the alternatives value satisfies.
func (c shapeCheck) matching(value content.Value, alternatives []*JSONSchema, path string) int {
	n := 0
	for _, alt := range alternatives {
		var scratch []ParseError
		c.value(value, alt, path, &scratch)
		if len(scratch) == 0 {
			n++
		}
	}
	return n
}

func (c shapeCheck) object(value content.Value, schema *JSONSchema, path string, errs *[]ParseError) {
	obj, _ := value.AsObject()

	for _, req := range schema.Required {
		member, exists := obj.Get(req)
		switch {
		case !exists:
			*errs = append(*errs, ParseError{Path: joinPath(path, req), Message: "required field is missing"})
		case member.IsNull() && !allowsNull(c.refs, schema.Properties[req]):
			*errs = append(*errs, ParseError{Path: joinPath(path, req), Message: "required field must not be null"})
		}
	}

	for key, member := range obj.All() {
		propPath := joinPath(path, key)
		if propSchema, ok := schema.Properties[key]; ok {
			// optional members may be null; required ones were checked above
			if member.IsNull() {
				continue
			}
			c.value(member, propSchema, propPath, errs)
			continue
		}
		if ap := schema.AdditionalProperties; ap != nil {
			if ap.Schema != nil {
				c.value(member, ap.Schema, propPath, errs)
			} else if !ap.Allowed {
				*errs = append(*errs, ParseError{Path: propPath, Message: "additional property not allowed"})
			}
		}
	}
}

func (c shapeCheck) array(value content.Value, schema *JSONSchema, path string, errs *[]ParseError) {
	for i, item := range value.Elements() {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		switch {
		case i < len(schema.PrefixItems):
			c.value(item, schema.PrefixItems[i], itemPath, errs)
		case schema.Items != nil:
			c.value(item, schema.Items, itemPath, errs)
		}
	}
}

// allowsNull reports whether schema explicitly admits null.
func allowsNull(refs resolver, schema *JSONSchema) bool {
	if schema == nil {
		return true
	}
	schema, err := refs.resolve(schema)
	if err != nil {
		return false
	}
	if schema.Type == TypeNull {
		return true
	}
	if schema.Type == "" && len(schema.AnyOf) == 0 && len(schema.OneOf) == 0 && len(schema.AllOf) == 0 {
		// unconstrained
		return true
	}
	for _, alt := range slices.Concat(schema.AnyOf, schema.OneOf) {
		if allowsNull(refs, alt) {
			return true
		}
	}
	return false
}

func kindMatches(v content.Value, t SchemaType) bool {
	switch t {
	case TypeString:
		return v.Kind() == content.KindString
	case TypeNumber:
		return v.Kind() == content.KindNumber
	case TypeInteger:
		n, ok := v.AsNumber()
		return ok && !math.IsInf(n, 0) && n == math.Trunc(n)
	case TypeBoolean:
		return v.Kind() == content.KindBool
	case TypeNull:
		return v.IsNull()
	case TypeObject:
		return v.Kind() == content.KindObject
	case TypeArray:
		return v.Kind() == content.KindArray
	}
	return true
}

// joinPath joins path segments.
func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}
