// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/structflow/structured"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现 structured.Observer
type Collector struct {
	// 补全指标
	completionsTotal *prometheus.CounterVec

	// 快照指标
	snapshotsTotal *prometheus.CounterVec

	// 流指标
	streamsTotal   *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	streamBytes    *prometheus.HistogramVec
	streamDeltas   *prometheus.HistogramVec

	logger *zap.Logger
}

var _ structured.Observer = (*Collector)(nil)

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.completionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Total number of completion passes by outcome",
		},
		[]string{"outcome"},
	)

	c.snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of snapshots emitted",
		},
		[]string{"complete"},
	)

	c.streamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_streams_total",
			Help:      "Total number of finished decode streams",
		},
		[]string{"status"},
	)

	c.streamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_stream_duration_seconds",
			Help:      "Decode stream duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	c.streamBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_stream_size_bytes",
			Help:      "Accumulated text size of a decode stream in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"status"},
	)

	c.streamDeltas = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_stream_deltas",
			Help:      "Number of deltas consumed by a decode stream",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 📝 记录方法
// =============================================================================

// ObserveCompletion 记录一次补全结果
func (c *Collector) ObserveCompletion(outcome string) {
	c.completionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSnapshot 记录一次快照
func (c *Collector) ObserveSnapshot(complete bool) {
	c.snapshotsTotal.WithLabelValues(boolLabel(complete)).Inc()
}

// ObserveStreamEnd 记录流结束
func (c *Collector) ObserveStreamEnd(status string, stats structured.StreamStats) {
	c.streamsTotal.WithLabelValues(status).Inc()
	c.streamDuration.WithLabelValues(status).Observe(stats.Duration.Seconds())
	c.streamBytes.WithLabelValues(status).Observe(float64(stats.Bytes))
	c.streamDeltas.WithLabelValues(status).Observe(float64(stats.Deltas))

	if status == structured.StatusFailed {
		c.logger.Debug("decode stream failed",
			zap.Int("deltas", stats.Deltas),
			zap.Int("bytes", stats.Bytes),
		)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
