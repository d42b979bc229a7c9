// =============================================================================
// StructFlow OpenTelemetry 初始化
// =============================================================================
// Sets up the trace and metric pipelines for decode streams and hands back
// the Observer that records onto them. When telemetry is disabled, nothing
// is exported and Providers.Observer returns nil.
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/BaSui01/structflow/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Resource attribute keys describing how the process decodes.
const (
	attrPolicy    = attribute.Key("structflow.completion.policy")
	attrMaxDepth  = attribute.Key("structflow.max_depth")
	attrNonFinite = attribute.Key("structflow.non_finite")
)

// Providers holds the SDK providers and the decode Observer bound to them.
// When telemetry is disabled all fields are nil and Shutdown is a no-op.
type Providers struct {
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	observer *Observer
}

// Option customises Init.
type Option func(*initOptions)

type initOptions struct {
	decode  *config.StructuredConfig
	readers []sdkmetric.Reader
}

// WithDecodeSettings tags the resource with the completion policy, depth
// limit and non-finite mode, so exported series can be split by them.
func WithDecodeSettings(cfg config.StructuredConfig) Option {
	return func(o *initOptions) { o.decode = &cfg }
}

// WithMetricReader attaches an extra reader next to the OTLP exporter.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *initOptions) { o.readers = append(o.readers, r) }
}

// Init sets up OTLP export. When cfg.Enabled is false it returns empty
// Providers without dialling anything.
func Init(cfg config.TelemetryConfig, logger *zap.Logger, opts ...Option) (*Providers, error) {
	if !cfg.Enabled {
		logger.Info("telemetry disabled, decode streams are not exported")
		return &Providers{}, nil
	}
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg, o.decode)...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	mpOpts := []sdkmetric.Option{
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	}
	for _, r := range o.readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	observer, err := NewObserver(mp)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create decode observer: %w", err), tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	// the decoder resolves its tracer from the global provider
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate),
	)
	return &Providers{tp: tp, mp: mp, observer: observer}, nil
}

func resourceAttributes(cfg config.TelemetryConfig, decode *config.StructuredConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(buildVersion()),
	}
	if decode != nil {
		attrs = append(attrs,
			attrPolicy.String(decode.Policy),
			attrMaxDepth.Int(decode.MaxDepth),
			attrNonFinite.String(decode.NonFinite),
		)
	}
	return attrs
}

// Observer returns the decode observer recording onto the exported meter,
// or nil when telemetry is disabled.
func (p *Providers) Observer() *Observer {
	if p == nil {
		return nil
	}
	return p.observer
}

// MeterProvider returns the exported MeterProvider, falling back to the
// global one when telemetry is disabled.
func (p *Providers) MeterProvider() metric.MeterProvider {
	if p == nil || p.mp == nil {
		return otel.GetMeterProvider()
	}
	return p.mp
}

// Shutdown flushes pending spans and metrics. Safe on empty Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildVersion reports the module version, "dev" for local builds.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
