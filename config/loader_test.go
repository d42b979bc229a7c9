// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "structflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
structured:
  max_depth: 16
  policy: repair
  non_finite: string
  indent: "  "
log:
  level: debug
  format: console
metrics:
  addr: ":9464"
telemetry:
  enabled: true
  otlp_endpoint: "collector:4317"
  sample_rate: 1
  shutdown_timeout: 2s
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Structured.MaxDepth)
	assert.Equal(t, "repair", cfg.Structured.Policy)
	assert.Equal(t, NonFiniteString, cfg.Structured.NonFinite)
	assert.Equal(t, "  ", cfg.Structured.Indent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	assert.Equal(t, "structflow", cfg.Metrics.Namespace, "untouched defaults survive")
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.ShutdownTimeout)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "structured: [unclosed")
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("STRUCTFLOW_STRUCTURED_MAX_DEPTH", "8")
	t.Setenv("STRUCTFLOW_STRUCTURED_POLICY", "repair")
	t.Setenv("STRUCTFLOW_LOG_LEVEL", "warn")
	t.Setenv("STRUCTFLOW_LOG_OUTPUT_PATHS", "stdout, /tmp/structflow.log")
	t.Setenv("STRUCTFLOW_TELEMETRY_SAMPLE_RATE", "0.25")
	t.Setenv("STRUCTFLOW_TELEMETRY_SHUTDOWN_TIMEOUT", "750ms")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Structured.MaxDepth)
	assert.Equal(t, "repair", cfg.Structured.Policy)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stdout", "/tmp/structflow.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRate)
	assert.Equal(t, 750*time.Millisecond, cfg.Telemetry.ShutdownTimeout)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
structured:
  max_depth: 16
  indent: "\t"
log:
  level: debug
`)
	t.Setenv("STRUCTFLOW_STRUCTURED_MAX_DEPTH", "32")
	t.Setenv("STRUCTFLOW_STRUCTURED_INDENT", "")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Structured.MaxDepth)
	assert.Equal(t, "", cfg.Structured.Indent, "an empty string clears the YAML value")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_FORMAT", "console")
	t.Setenv("STRUCTFLOW_LOG_FORMAT", "json")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("STRUCTFLOW_STRUCTURED_MAX_DEPTH", "deep")
	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "STRUCTFLOW_STRUCTURED_MAX_DEPTH")

	t.Setenv("STRUCTFLOW_STRUCTURED_MAX_DEPTH", "")
	_, err = NewLoader().Load()
	assert.NoError(t, err, "empty non-string values are ignored")
}

func TestLoader_Validation(t *testing.T) {
	t.Setenv("STRUCTFLOW_STRUCTURED_POLICY", "yolo")
	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "structured.policy")
}

func TestLoader_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Metrics.Addr == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMustLoad(t *testing.T) {
	assert.NotPanics(t, func() { MustLoad("") })

	path := writeConfig(t, "log:\n  level: loud\n")
	assert.Panics(t, func() { MustLoad(path) })
}
