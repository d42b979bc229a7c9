package structured

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/structflow/structured/content"
)

// SchemaProvider lets a type supply its own schema instead of the reflected one.
type SchemaProvider interface {
	JSONSchema() *JSONSchema
}

var (
	schemaProviderType = reflect.TypeFor[SchemaProvider]()
	timeType           = reflect.TypeFor[time.Time]()
	rawMessageType     = reflect.TypeFor[json.RawMessage]()
	contentValueType   = reflect.TypeFor[content.Value]()
)

// SchemaGenerator利用反射从Go类型生成了JSON Schema.
//
// 字段名遵循 encoding/json 规则（json 标签、匿名结构体展开、"-" 跳过）。
// 一个字段为必填，当它带有 jsonschema:"required"，或者既不是指针也没有
// omitempty 且未标记 jsonschema:"optional"。
//
// 支持的 jsonschema 标签选项（仅作为注解输出，不参与校验）:
//   - description=...: 字段说明
//   - enum=a,b,c: 枚举值
//   - format=email: 字符串格式
//   - pattern=^[a-z]+$: 正则
//   - minimum= / maximum=: 数值范围
//   - minLength= / maxLength=: 字符串长度
//   - minItems= / maxItems=: 数组长度
//   - default=...: 默认值
type SchemaGenerator struct {
	root       reflect.Type
	inProgress map[reflect.Type]bool
	recursive  map[reflect.Type]bool
	defs       map[string]*JSONSchema
}

// NewSchemaGenerator创建了一个新的SchemaGenerator实例.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{}
}

// GenerateSchema 从 Go 类型生成 JSON Schema。自引用的结构体以 $ref 表示：
// 根类型引用 "#"，其他类型放入 $defs。
func (g *SchemaGenerator) GenerateSchema(t reflect.Type) (*JSONSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	g.root = t
	g.inProgress = make(map[reflect.Type]bool)
	g.recursive = make(map[reflect.Type]bool)
	g.defs = make(map[string]*JSONSchema)

	schema, err := g.generateSchema(t)
	if err != nil {
		return nil, err
	}
	for name, def := range g.defs {
		schema.AddDef(name, def)
	}
	return schema, nil
}

// GenerateSchemaFromValue 从一个值的类型生成 JSON Schema.
func (g *SchemaGenerator) GenerateSchemaFromValue(v any) (*JSONSchema, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot generate schema from nil value")
	}
	return g.GenerateSchema(reflect.TypeOf(v))
}

// SchemaFor 生成类型 T 的 Schema。
func SchemaFor[T any]() (*JSONSchema, error) {
	return NewSchemaGenerator().GenerateSchema(reflect.TypeFor[T]())
}

func (g *SchemaGenerator) generateSchema(t reflect.Type) (*JSONSchema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Implements(schemaProviderType) || reflect.PointerTo(t).Implements(schemaProviderType) {
		if s := reflect.New(t).Interface().(SchemaProvider).JSONSchema(); s != nil {
			return s, nil
		}
	}

	switch t {
	case timeType:
		return &JSONSchema{Type: TypeString, Format: FormatDateTime}, nil
	case rawMessageType, contentValueType:
		return &JSONSchema{}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return NewSchema(TypeString), nil

	case reflect.Bool:
		return NewSchema(TypeBoolean), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewSchema(TypeInteger), nil

	case reflect.Float32, reflect.Float64:
		return NewSchema(TypeNumber), nil

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			// encoding/json writes []byte as base64 text
			return NewSchema(TypeString), nil
		}
		items, err := g.generateSchema(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for array element: %w", err)
		}
		return NewArraySchema(items), nil

	case reflect.Map:
		values, err := g.generateSchema(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for map value: %w", err)
		}
		return NewObjectSchema().WithAdditionalPropertiesSchema(values), nil

	case reflect.Struct:
		return g.generateStructSchema(t)

	case reflect.Interface:
		return &JSONSchema{}, nil

	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

func defName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return strings.NewReplacer(" ", "", "{", "_", "}", "_", ";", "_").Replace(t.String())
}

func (g *SchemaGenerator) generateStructSchema(t reflect.Type) (*JSONSchema, error) {
	if g.inProgress[t] {
		if t == g.root {
			return &JSONSchema{Ref: "#"}, nil
		}
		g.recursive[t] = true
		return NewRefSchema(defName(t)), nil
	}
	g.inProgress[t] = true
	defer delete(g.inProgress, t)

	schema := NewObjectSchema()
	if err := g.addStructFields(schema, t); err != nil {
		return nil, err
	}

	if g.recursive[t] && t != g.root {
		g.defs[defName(t)] = schema
		return NewRefSchema(defName(t)), nil
	}
	return schema, nil
}

func (g *SchemaGenerator) addStructFields(schema *JSONSchema, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, opts := jsonFieldName(field)
		if name == "-" {
			continue
		}

		// untagged embedded structs are flattened, as encoding/json does
		if field.Anonymous && name == "" {
			ft := field.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if err := g.addStructFields(schema, ft); err != nil {
					return err
				}
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema, err := g.generateSchema(field.Type)
		if err != nil {
			return fmt.Errorf("failed to generate schema for field %s: %w", field.Name, err)
		}

		tagOpts := parseTagOptions(field.Tag.Get("jsonschema"))
		if len(tagOpts) > 0 && fieldSchema.Ref == "" {
			// shared schemas from SchemaProvider must not be mutated
			c := *fieldSchema
			fieldSchema = &c
			applyTagOptions(fieldSchema, tagOpts, field.Type)
		}

		if isFieldRequired(field, opts, tagOpts) && !schema.IsRequired(name) {
			schema.Required = append(schema.Required, name)
		}
		schema.Properties[name] = fieldSchema
	}
	return nil
}

// jsonFieldName returns the json tag name ("" when absent) and whether
// omitempty or omitzero is set.
func jsonFieldName(field reflect.StructField) (string, bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false
	}
	name, rest, _ := strings.Cut(tag, ",")
	omit := false
	for opt := range strings.SplitSeq(rest, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omit = true
		}
	}
	return name, omit
}

func isFieldRequired(field reflect.StructField, omitEmpty bool, tagOpts map[string]string) bool {
	if _, ok := tagOpts["required"]; ok {
		return true
	}
	if _, ok := tagOpts["optional"]; ok {
		return false
	}
	return !omitEmpty && field.Type.Kind() != reflect.Pointer
}

func applyTagOptions(schema *JSONSchema, options map[string]string, t reflect.Type) {
	if desc, ok := options["description"]; ok {
		schema.Description = desc
	}
	if def, ok := options["default"]; ok {
		schema.Default = parseDefaultValue(def, t)
	}
	if enumStr, ok := options["enum"]; ok {
		values := strings.Split(enumStr, ",")
		schema.Enum = make([]any, len(values))
		for i, v := range values {
			schema.Enum[i] = strings.TrimSpace(v)
		}
	}
	if pattern, ok := options["pattern"]; ok {
		schema.Pattern = pattern
	}
	if format, ok := options["format"]; ok {
		schema.Format = StringFormat(format)
	}

	intOpt := func(key string) *int {
		if v, err := strconv.Atoi(options[key]); err == nil {
			return &v
		}
		return nil
	}
	floatOpt := func(key string) *float64 {
		if v, err := strconv.ParseFloat(options[key], 64); err == nil {
			return &v
		}
		return nil
	}
	if _, ok := options["minLength"]; ok {
		schema.MinLength = intOpt("minLength")
	}
	if _, ok := options["maxLength"]; ok {
		schema.MaxLength = intOpt("maxLength")
	}
	if _, ok := options["minItems"]; ok {
		schema.MinItems = intOpt("minItems")
	}
	if _, ok := options["maxItems"]; ok {
		schema.MaxItems = intOpt("maxItems")
	}
	if _, ok := options["minimum"]; ok {
		schema.Minimum = floatOpt("minimum")
	}
	if _, ok := options["maximum"]; ok {
		schema.Maximum = floatOpt("maximum")
	}
}

// tagFlags are jsonschema options that take no value.
var tagFlags = map[string]bool{"required": true, "optional": true}

// parseTagOptions 把 "required,enum=a,b,c,description=x" 解析为选项表。
// 不含 "=" 且不是已知标志的片段视为上一个值的延续（例如枚举值）。
func parseTagOptions(tag string) map[string]string {
	options := make(map[string]string)
	lastKey := ""
	for part := range strings.SplitSeq(tag, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if key, value, ok := strings.Cut(trimmed, "="); ok && isTagKey(key) {
			options[key] = value
			lastKey = key
			continue
		}
		if tagFlags[trimmed] || lastKey == "" {
			options[trimmed] = ""
			lastKey = ""
			continue
		}
		options[lastKey] += "," + part
	}
	return options
}

func isTagKey(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func parseDefaultValue(value string, t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return value
	case reflect.Bool:
		return value == "true"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return value
}
