package structured

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/structflow/llm"
	"github.com/BaSui01/structflow/llm/streaming"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

// StructuredOutputProvider 扩展 llm.Provider，声明是否支持原生结构化输出
// （如 OpenAI 的 json_schema 响应格式）。
type StructuredOutputProvider interface {
	llm.Provider
	SupportsStructuredOutput() bool
}

// ParseResult 是一次解析的详细结果。
type ParseResult[T any] struct {
	Value  *T           `json:"value,omitempty"`
	Raw    string       `json:"raw"`
	Errors []ParseError `json:"errors,omitempty"`
}

// IsValid 在解析成功且无校验错误时返回 true。
func (r *ParseResult[T]) IsValid() bool {
	return r.Value != nil && len(r.Errors) == 0
}

// StructuredOutput 通过 Provider 生成类型安全的输出。同步响应与流式响应
// 走同一套补全与解析语义。
type StructuredOutput[T any] struct {
	provider llm.Provider
	decoder  *Decoder[T]
}

// NewStructuredOutput 为 T 创建处理器，Schema 由类型参数自动生成。
func NewStructuredOutput[T any](provider llm.Provider, opts ...DecoderOption) (*StructuredOutput[T], error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	dec, err := NewDecoder[T](opts...)
	if err != nil {
		return nil, err
	}
	return &StructuredOutput[T]{provider: provider, decoder: dec}, nil
}

// NewStructuredOutputWithSchema 使用自定义 Schema 创建处理器。
func NewStructuredOutputWithSchema[T any](provider llm.Provider, schema *JSONSchema, opts ...DecoderOption) (*StructuredOutput[T], error) {
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	return NewStructuredOutput[T](provider, append(opts, WithSchema(schema))...)
}

// Schema 返回用于投影和校验的 Schema。
func (s *StructuredOutput[T]) Schema() *JSONSchema {
	return s.decoder.schema
}

// Decoder 返回底层解码器。
func (s *StructuredOutput[T]) Decoder() *Decoder[T] {
	return s.decoder
}

// Generate 根据单条 prompt 生成结构化输出。
func (s *StructuredOutput[T]) Generate(ctx context.Context, prompt string) (*T, error) {
	return s.GenerateWithMessages(ctx, userMessages(prompt))
}

// GenerateWithMessages 根据消息列表生成结构化输出。
func (s *StructuredOutput[T]) GenerateWithMessages(ctx context.Context, messages []llm.Message) (*T, error) {
	raw, err := s.complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	return s.Parse(raw)
}

// GenerateWithParse 生成结构化输出并返回详细解析结果。
func (s *StructuredOutput[T]) GenerateWithParse(ctx context.Context, prompt string) (*ParseResult[T], error) {
	raw, err := s.complete(ctx, userMessages(prompt))
	if err != nil {
		return nil, err
	}
	return s.ParseWithResult(raw), nil
}

// Stream 以流式方式生成结构化输出。上游请求在首次迭代时才发出，
// 迭代结束（包括提前 break）时取消；从未迭代的 Stream 不会发出请求。
func (s *StructuredOutput[T]) Stream(ctx context.Context, prompt string) *Stream[T] {
	return s.StreamWithMessages(ctx, userMessages(prompt))
}

// StreamWithMessages 是 Stream 的消息列表版本。
func (s *StructuredOutput[T]) StreamWithMessages(ctx context.Context, messages []llm.Message) *Stream[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.decoder.Decode(ctx, s.providerSource(ctx, messages))
}

// providerSource opens the provider stream when iteration starts.
func (s *StructuredOutput[T]) providerSource(ctx context.Context, messages []llm.Message) streaming.Source {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		req, err := s.buildRequest(messages)
		if err != nil {
			yield("", fmt.Errorf("provider stream failed: %w", err))
			return
		}
		ch, err := s.provider.Stream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("provider stream failed: %w", err))
			return
		}
		for delta, err := range streaming.FromChunks(ctx, ch) {
			if !yield(delta, err) {
				return
			}
		}
	}
}

// Parse 解析一段完整响应。响应可以带有 markdown 代码块或前后说明文字，
// 截断的 JSON 按解码器的补全策略补齐。
func (s *StructuredOutput[T]) Parse(raw string) (*T, error) {
	v, err := s.decoder.DecodeString(ExtractJSON(raw))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseWithResult 解析响应并返回详细结果，不返回 error。
func (s *StructuredOutput[T]) ParseWithResult(raw string) *ParseResult[T] {
	result := &ParseResult[T]{Raw: raw}
	v, err := s.Parse(raw)
	if err == nil {
		result.Value = v
		return result
	}
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		result.Errors = ve.Errors
	} else {
		result.Errors = []ParseError{{Message: err.Error()}}
	}
	return result
}

// ValidateValue 对照 Schema 校验一个值。
func (s *StructuredOutput[T]) ValidateValue(value *T) error {
	if value == nil {
		return fmt.Errorf("value cannot be nil")
	}
	return s.decoder.ValidateValue(*value)
}

func (s *StructuredOutput[T]) complete(ctx context.Context, messages []llm.Message) (string, error) {
	req, err := s.buildRequest(messages)
	if err != nil {
		return "", err
	}
	resp, err := s.provider.Completion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("provider completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoContent.WithCause(fmt.Errorf("no response choices returned"))
	}
	msg := resp.Choices[0].Message
	if msg.Content == "" && len(msg.ToolCalls) > 0 {
		return string(msg.ToolCalls[0].Arguments), nil
	}
	return msg.Content, nil
}

// buildRequest 在 Provider 支持原生结构化输出时附带 response_format，
// 否则通过系统提示约束输出格式。
func (s *StructuredOutput[T]) buildRequest(messages []llm.Message) (*llm.ChatRequest, error) {
	if s.supportsNativeStructuredOutput() {
		schemaJSON, err := s.decoder.schema.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		return &llm.ChatRequest{
			Messages: messages,
			ResponseFormat: &llm.ResponseFormat{
				Type:   "json_schema",
				Name:   schemaName(s.decoder.schema),
				Schema: schemaJSON,
				Strict: true,
			},
		}, nil
	}

	schemaJSON, err := s.decoder.schema.ToJSONIndent()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	system := llm.Message{Role: llm.RoleSystem, Content: buildStructuredOutputPrompt(string(schemaJSON))}
	return &llm.ChatRequest{
		Messages: append([]llm.Message{system}, messages...),
	}, nil
}

func (s *StructuredOutput[T]) supportsNativeStructuredOutput() bool {
	if sp, ok := s.provider.(StructuredOutputProvider); ok {
		return sp.SupportsStructuredOutput()
	}
	return false
}

func schemaName(schema *JSONSchema) string {
	if schema.Title != "" {
		return schema.Title
	}
	return "response"
}

func userMessages(prompt string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: prompt}}
}

func buildStructuredOutputPrompt(schemaJSON string) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful assistant that generates structured JSON output.\n\n")
	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. You MUST respond with valid JSON that conforms to the schema below.\n")
	sb.WriteString("2. Do NOT include any text before or after the JSON.\n")
	sb.WriteString("3. Do NOT wrap the JSON in markdown code blocks.\n")
	sb.WriteString("4. Emit object members in the order the schema lists them.\n")
	sb.WriteString("5. Ensure all required fields are present.\n\n")
	sb.WriteString("JSON Schema:\n")
	sb.WriteString(schemaJSON)
	sb.WriteString("\n\nRespond with ONLY the JSON value.")

	return sb.String()
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON 从可能带有 markdown 代码块或说明文字的响应中取出 JSON。
// 未闭合的代码块和截断的 JSON 会原样保留开头部分，交给补全器处理。
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		if m := fencedJSON.FindStringSubmatch(response); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		// 只有开头的代码块标记，响应被截断
		_, rest, _ := strings.Cut(response, "```")
		rest = strings.TrimPrefix(rest, "json")
		response = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(response, "{[")
	if start < 0 {
		return response
	}
	response = response[start:]
	// 整段是合法 JSON 前缀时保留，截断的尾部交给补全器
	if _, err := jsoncomplete.CompleteString(response, jsoncomplete.Options{Policy: jsoncomplete.Repair}); err == nil {
		return response
	}
	closer := "}"
	if response[0] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(response, closer); end > 0 {
		return response[:end+1]
	}
	return response
}
