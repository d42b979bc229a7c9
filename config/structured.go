package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

// 非有限数（NaN、Infinity、-Infinity）处理方式
const (
	// NonFiniteReject 解析时拒绝，严格 JSON 输出为 null
	NonFiniteReject = "reject"
	// NonFiniteAccept 解析时接受，输出为裸字面量
	NonFiniteAccept = "accept"
	// NonFiniteString 解析时接受，输出为带引号的字符串
	NonFiniteString = "string"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
)

func (c StructuredConfig) allowNonFinite() bool {
	return c.NonFinite == NonFiniteAccept || c.NonFinite == NonFiniteString
}

// CompleteOptions 转换为补全器选项。策略非法时回退为保守策略，
// 调用方应先执行 Validate。
func (c StructuredConfig) CompleteOptions() jsoncomplete.Options {
	policy, _ := jsoncomplete.ParsePolicy(c.Policy)
	return jsoncomplete.Options{
		MaxDepth:       c.MaxDepth,
		Policy:         policy,
		AllowNonFinite: c.allowNonFinite(),
	}
}

// ParseOptions 转换为解析器选项
func (c StructuredConfig) ParseOptions() content.ParseOptions {
	return content.ParseOptions{
		MaxDepth:       c.MaxDepth,
		AllowNonFinite: c.allowNonFinite(),
	}
}

// EncodeOptions 转换为编码选项
func (c StructuredConfig) EncodeOptions() content.EncodeOptions {
	opts := content.EncodeOptions{Indent: c.Indent}
	switch c.NonFinite {
	case NonFiniteAccept:
		opts.NonFinite = content.NonFiniteLiteral
	case NonFiniteString:
		opts.NonFinite = content.NonFiniteString
	default:
		opts.NonFinite = content.NonFiniteNull
	}
	return opts
}

// Validate 检查补全配置
func (c StructuredConfig) Validate() error {
	var errs []error
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("structured.max_depth must be positive, got %d", c.MaxDepth))
	}
	if _, err := jsoncomplete.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, fmt.Errorf("structured.policy: %w", err))
	}
	switch c.NonFinite {
	case NonFiniteReject, NonFiniteAccept, NonFiniteString:
	default:
		errs = append(errs, fmt.Errorf("structured.non_finite must be one of reject, accept, string; got %q", c.NonFinite))
	}
	if strings.Trim(c.Indent, " \t") != "" {
		errs = append(errs, fmt.Errorf("structured.indent may contain only spaces and tabs"))
	}
	return errors.Join(errs...)
}

// Validate 检查整份配置，返回所有问题
func (c *Config) Validate() error {
	var errs []error
	if err := c.Structured.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s; got %q", strings.Join(logLevels, ", "), c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be json or console; got %q", c.Log.Format))
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %g", c.Telemetry.SampleRate))
		}
	}
	return errors.Join(errs...)
}
