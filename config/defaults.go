// =============================================================================
// 📦 StructFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Structured: DefaultStructuredConfig(),
		Log:        DefaultLogConfig(),
		Metrics:    DefaultMetricsConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultStructuredConfig 返回默认补全配置：保守策略、拒绝非有限数
func DefaultStructuredConfig() StructuredConfig {
	return StructuredConfig{
		MaxDepth:  jsoncomplete.DefaultMaxDepth,
		Policy:    jsoncomplete.Conservative.String(),
		NonFinite: NonFiniteReject,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "structflow",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:         false,
		OTLPEndpoint:    "localhost:4317",
		ServiceName:     "structflow",
		SampleRate:      0.1,
		ShutdownTimeout: 5 * time.Second,
	}
}
