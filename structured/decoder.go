package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/structflow/llm/streaming"
	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
	"github.com/BaSui01/structflow/types"
)

const instrumentationName = "github.com/BaSui01/structflow/structured"

// ErrNoContent reports a stream that finished without producing a single
// snapshot. It is distinct from a legitimately empty object or array.
var ErrNoContent = types.NewError(types.ErrNoContent, "stream produced no content")

// ErrStreamConsumed is returned when a Stream is iterated a second time.
var ErrStreamConsumed = types.NewError(types.ErrInvalidRequest, "stream already consumed")

// Decoder turns streams of JSON text deltas into typed values of T.
// A Decoder is immutable and may start any number of concurrent streams.
type Decoder[T any] struct {
	schema    *JSONSchema
	validator SchemaValidator
	complete  jsoncomplete.Options
	parse     content.ParseOptions
	logger    *zap.Logger
	observer  Observer
	tracer    trace.Tracer
}

type decoderConfig struct {
	schema    *JSONSchema
	validator SchemaValidator
	complete  jsoncomplete.Options
	logger    *zap.Logger
	observer  Observer
	tracer    trace.Tracer
}

// DecoderOption configures a Decoder.
type DecoderOption func(*decoderConfig)

// WithSchema uses schema instead of the one generated from T.
func WithSchema(schema *JSONSchema) DecoderOption {
	return func(c *decoderConfig) { c.schema = schema }
}

// WithValidator replaces the shape validator used on the final value.
func WithValidator(v SchemaValidator) DecoderOption {
	return func(c *decoderConfig) { c.validator = v }
}

// WithCompleteOptions sets depth limit, policy and non-finite handling.
// Streams default to the conservative policy.
func WithCompleteOptions(opts jsoncomplete.Options) DecoderOption {
	return func(c *decoderConfig) { c.complete = opts }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) DecoderOption {
	return func(c *decoderConfig) { c.logger = logger }
}

// WithObserver receives per-delta and per-stream events.
func WithObserver(o Observer) DecoderOption {
	return func(c *decoderConfig) { c.observer = o }
}

// WithTracer sets the tracer for decode spans. The default is the global
// provider's tracer.
func WithTracer(t trace.Tracer) DecoderOption {
	return func(c *decoderConfig) { c.tracer = t }
}

// NewDecoder creates a Decoder for T. Without WithSchema the schema is
// generated from T by reflection.
func NewDecoder[T any](opts ...DecoderOption) (*Decoder[T], error) {
	cfg := decoderConfig{complete: jsoncomplete.DefaultOptions()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.schema == nil {
		schema, err := NewSchemaGenerator().GenerateSchema(reflect.TypeFor[T]())
		if err != nil {
			var zero T
			return nil, fmt.Errorf("failed to generate schema for type %T: %w", zero, err)
		}
		cfg.schema = schema
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.observer == nil {
		cfg.observer = nopObserver{}
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	parse := content.ParseOptions{MaxDepth: cfg.complete.MaxDepth, AllowNonFinite: cfg.complete.AllowNonFinite}
	if cfg.validator == nil {
		cfg.validator = NewValidatorWithOptions(parse)
	}

	return &Decoder[T]{
		schema:    cfg.schema,
		validator: cfg.validator,
		complete:  cfg.complete,
		parse:     parse,
		logger:    cfg.logger.With(zap.String("component", "structured_decoder")),
		observer:  cfg.observer,
		tracer:    cfg.tracer,
	}, nil
}

// Schema returns the schema used for projection and validation.
func (d *Decoder[T]) Schema() *JSONSchema { return d.schema }

// Decode starts a stream over src. Nothing is read until the returned
// Stream is iterated.
func (d *Decoder[T]) Decode(ctx context.Context, src streaming.Source) *Stream[T] {
	return newStream(ctx, d, src)
}

// DecodeString decodes a complete response in one shot, with the same
// completion semantics a stream would apply.
func (d *Decoder[T]) DecodeString(text string) (T, error) {
	return d.decodeText(text)
}

// decodeText runs the final completion, parse and projection pass.
func (d *Decoder[T]) decodeText(text string) (T, error) {
	var zero T
	v, err := content.CompleteThenParse(text, content.Options{Complete: d.complete})
	if err != nil {
		if errors.Is(err, jsoncomplete.ErrDepthExceeded) || errors.Is(err, content.ErrParseFailed) {
			return zero, err
		}
		return zero, content.ErrParseFailed.WithCause(err)
	}
	return d.finalize(v)
}

// DecodeContent projects already parsed content and validates it.
func (d *Decoder[T]) DecodeContent(v content.Value) (T, error) {
	return d.finalize(v)
}

// ValidateValue checks the shape of an already built value.
func (d *Decoder[T]) ValidateValue(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return d.validator.Validate(data, d.schema)
}

// finalize builds the concrete value and checks its shape.
func (d *Decoder[T]) finalize(v content.Value) (T, error) {
	var zero T
	if err := d.validator.ValidateContent(v, d.schema); err != nil {
		return zero, err
	}
	p, err := Project[T](v, d.schema, false)
	if err != nil {
		return zero, content.ErrParseFailed.WithCause(err)
	}
	return p.Value(), nil
}
