package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 64, cfg.Structured.MaxDepth)
	assert.Equal(t, "conservative", cfg.Structured.Policy)
	assert.Equal(t, NonFiniteReject, cfg.Structured.NonFinite)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"stderr"}, cfg.Log.OutputPaths)
	assert.Equal(t, "structflow", cfg.Metrics.Namespace)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.ShutdownTimeout)
}

func TestStructuredConfig_Options(t *testing.T) {
	tests := []struct {
		name       string
		cfg        StructuredConfig
		complete   jsoncomplete.Options
		nonFinite  content.NonFinite
		allowParse bool
	}{
		{
			name:      "defaults",
			cfg:       DefaultStructuredConfig(),
			complete:  jsoncomplete.Options{MaxDepth: 64, Policy: jsoncomplete.Conservative},
			nonFinite: content.NonFiniteNull,
		},
		{
			name:       "accept literals",
			cfg:        StructuredConfig{MaxDepth: 8, Policy: "repair", NonFinite: NonFiniteAccept},
			complete:   jsoncomplete.Options{MaxDepth: 8, Policy: jsoncomplete.Repair, AllowNonFinite: true},
			nonFinite:  content.NonFiniteLiteral,
			allowParse: true,
		},
		{
			name:       "quote for strict consumers",
			cfg:        StructuredConfig{MaxDepth: 8, Policy: "aggressive", NonFinite: NonFiniteString, Indent: "\t"},
			complete:   jsoncomplete.Options{MaxDepth: 8, Policy: jsoncomplete.Repair, AllowNonFinite: true},
			nonFinite:  content.NonFiniteString,
			allowParse: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.complete, tt.cfg.CompleteOptions())
			assert.Equal(t, content.ParseOptions{MaxDepth: tt.cfg.MaxDepth, AllowNonFinite: tt.allowParse}, tt.cfg.ParseOptions())
			enc := tt.cfg.EncodeOptions()
			assert.Equal(t, tt.nonFinite, enc.NonFinite)
			assert.Equal(t, tt.cfg.Indent, enc.Indent)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero depth", func(c *Config) { c.Structured.MaxDepth = 0 }, "max_depth"},
		{"policy", func(c *Config) { c.Structured.Policy = "lenient" }, "unknown completion policy"},
		{"non finite", func(c *Config) { c.Structured.NonFinite = "maybe" }, "non_finite"},
		{"indent", func(c *Config) { c.Structured.Indent = "--" }, "indent"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"sample rate", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.SampleRate = 2
		}, "sample_rate"},
		{"endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.OTLPEndpoint = ""
		}, "otlp_endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := DefaultConfig()
	cfg.Structured.MaxDepth = -1
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "max_depth")
	assert.ErrorContains(t, err, "log.format")

	// telemetry settings are only checked when enabled
	cfg = DefaultConfig()
	cfg.Telemetry.SampleRate = 7
	assert.NoError(t, cfg.Validate())
}
