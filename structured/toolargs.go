package structured

import (
	"fmt"

	"github.com/BaSui01/structflow/llm"
	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

// toolArgumentOptions repairs arguments instead of null-padding them: a
// half-written key is dropped and an empty payload reads as {}.
var toolArgumentOptions = content.Options{
	Complete: jsoncomplete.Options{Policy: jsoncomplete.Repair},
}

// ParseToolArguments reads the arguments of a tool call, which may still be
// truncated while the call is streaming.
func ParseToolArguments(call llm.ToolCall) (content.Value, error) {
	v, err := content.CompleteThenParse(string(call.Arguments), toolArgumentOptions)
	if err != nil {
		return content.Value{}, fmt.Errorf("tool call %q (%s) arguments: %w", call.Name, call.ID, err)
	}
	return v, nil
}

// DecodeToolArguments projects the arguments of a tool call onto T. The
// result may be partial; check Partial.IsComplete before acting on it.
func DecodeToolArguments[T any](call llm.ToolCall, schema *JSONSchema) (Partial[T], error) {
	v, err := ParseToolArguments(call)
	if err != nil {
		return Partial[T]{}, err
	}
	if schema == nil {
		if schema, err = SchemaFor[T](); err != nil {
			return Partial[T]{}, err
		}
	}
	return Project[T](v, schema, true)
}
