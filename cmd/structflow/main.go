// =============================================================================
// StructFlow 命令行入口
// =============================================================================
// 对标准输入中的（可能被截断的）JSON 执行补全、解析与流式解码
//
// 使用方法:
//
//	structflow complete < partial.json           # 输出补全后的文档
//	structflow repair < partial.json             # 以修复策略补全
//	structflow parse --indent "  " < partial.json # 补全并规范化输出
//	structflow decode --chunk 8 < stream.json    # 按块解码并输出每个快照
//	structflow version                           # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/structflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "complete":
		err = runComplete(args[1:], stdin, stdout)
	case "repair":
		// a later --policy flag still wins
		err = runComplete(append([]string{"--policy", "repair"}, args[1:]...), stdin, stdout)
	case "parse":
		err = runParse(args[1:], stdin, stdout)
	case "decode":
		err = runDecode(ctx, args[1:], stdin, stdout)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}

	if err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
			return 2
		}
		fmt.Fprintf(stderr, "%s failed: %v\n", args[0], err)
		return 1
	}
	return 0
}

// usageError marks bad flags or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "StructFlow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `StructFlow - incremental JSON completion and decoding

Usage:
  structflow <command> [options] < input

Commands:
  complete  Print the completion of a possibly truncated JSON document
  repair    Same as complete with --policy repair
  parse     Complete, parse and re-encode a document in key order
  decode    Feed input in chunks and print one snapshot per chunk
  version   Show version information
  help      Show this help message

Common options:
  --config <path>       Path to configuration file (YAML)
  --policy <name>       conservative | repair
  --max-depth <n>       Nesting limit
  --non-finite <mode>   reject | accept | string

Options for 'parse':
  --indent <s>          Indent string (spaces or tabs)

Options for 'decode':
  --chunk <n>           Bytes per chunk (default 16)
  --schema <path>       JSON Schema the final value must satisfy
  --metrics-addr <addr> Serve Prometheus metrics while decoding

Examples:
  echo '{"a": [1, 2' | structflow complete
  echo '{"a": 1, "b":' | structflow repair
  structflow decode --chunk 4 --schema user.schema.json < user.json
  structflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		// stdout carries command output
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          "json",
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
