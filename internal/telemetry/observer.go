package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/structflow/structured"
)

const meterName = "github.com/BaSui01/structflow"

// Observer records decode events as OTel instruments. It complements the
// Prometheus collector when metrics are pushed over OTLP instead of scraped.
type Observer struct {
	completions metric.Int64Counter
	snapshots   metric.Int64Counter
	streams     metric.Int64Counter
	duration    metric.Float64Histogram
	size        metric.Int64Histogram
}

var _ structured.Observer = (*Observer)(nil)

// NewObserver creates instruments on mp, or on the global MeterProvider when
// mp is nil.
func NewObserver(mp metric.MeterProvider) (*Observer, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var o Observer
	var err, e error
	o.completions, e = meter.Int64Counter("structflow.completions",
		metric.WithDescription("Completion passes by outcome"))
	err = errors.Join(err, e)
	o.snapshots, e = meter.Int64Counter("structflow.snapshots",
		metric.WithDescription("Snapshots emitted"))
	err = errors.Join(err, e)
	o.streams, e = meter.Int64Counter("structflow.decode.streams",
		metric.WithDescription("Finished decode streams by status"))
	err = errors.Join(err, e)
	o.duration, e = meter.Float64Histogram("structflow.decode.duration",
		metric.WithDescription("Decode stream duration"),
		metric.WithUnit("s"))
	err = errors.Join(err, e)
	o.size, e = meter.Int64Histogram("structflow.decode.size",
		metric.WithDescription("Accumulated text size of a decode stream"),
		metric.WithUnit("By"))
	err = errors.Join(err, e)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Observe calls have no caller context; instruments are recorded against
// the background context.

func (o *Observer) ObserveCompletion(outcome string) {
	o.completions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (o *Observer) ObserveSnapshot(complete bool) {
	o.snapshots.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("complete", complete)))
}

func (o *Observer) ObserveStreamEnd(status string, stats structured.StreamStats) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("status", status))
	o.streams.Add(ctx, 1, attrs)
	o.duration.Record(ctx, stats.Duration.Seconds(), attrs)
	o.size.Record(ctx, int64(stats.Bytes), attrs)
}
