package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/structflow/config"
	"github.com/BaSui01/structflow/internal/metrics"
	"github.com/BaSui01/structflow/internal/server"
	"github.com/BaSui01/structflow/internal/telemetry"
	"github.com/BaSui01/structflow/llm/streaming"
	"github.com/BaSui01/structflow/structured"
	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

// =============================================================================
// ⚙️ 公共参数
// =============================================================================

// commonFlags 覆盖配置文件中的补全设置
type commonFlags struct {
	configPath string
	policy     string
	maxDepth   int
	nonFinite  string
}

func newFlagSet(name string, cf *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cf.configPath, "config", "", "Path to config file")
	fs.StringVar(&cf.policy, "policy", "", "Completion policy: conservative or repair")
	fs.IntVar(&cf.maxDepth, "max-depth", 0, "Nesting limit")
	fs.StringVar(&cf.nonFinite, "non-finite", "", "NaN/Infinity handling: reject, accept or string")
	return fs
}

// load 解析参数并加载配置，命令行参数优先于配置文件与环境变量
func (cf *commonFlags) load(fs *flag.FlagSet, args []string) (*config.Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError{err}
	}
	if fs.NArg() > 0 {
		return nil, usageError{fmt.Errorf("unexpected arguments: %v", fs.Args())}
	}

	cfg, err := config.NewLoader().WithConfigPath(cf.configPath).Load()
	if err != nil {
		return nil, usageError{err}
	}
	if cf.policy != "" {
		cfg.Structured.Policy = cf.policy
	}
	if cf.maxDepth != 0 {
		cfg.Structured.MaxDepth = cf.maxDepth
	}
	if cf.nonFinite != "" {
		cfg.Structured.NonFinite = cf.nonFinite
	}
	if err := cfg.Structured.Validate(); err != nil {
		return nil, usageError{err}
	}
	return cfg, nil
}

func writeLine(w io.Writer, b []byte) error {
	if _, err := w.Write(bytes.TrimRight(b, " \t\r\n")); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// =============================================================================
// 🧩 complete / parse 命令
// =============================================================================

func runComplete(args []string, stdin io.Reader, stdout io.Writer) error {
	var cf commonFlags
	fs := newFlagSet("complete", &cf)
	cfg, err := cf.load(fs, args)
	if err != nil {
		return err
	}

	text, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	res, err := jsoncomplete.Complete(text, cfg.Structured.CompleteOptions())
	if err != nil {
		return err
	}
	return writeLine(stdout, res.Apply(text))
}

func runParse(args []string, stdin io.Reader, stdout io.Writer) error {
	var cf commonFlags
	fs := newFlagSet("parse", &cf)
	indent := fs.String("indent", "", "Indent string (spaces or tabs)")
	cfg, err := cf.load(fs, args)
	if err != nil {
		return err
	}
	if *indent != "" {
		cfg.Structured.Indent = *indent
		if err := cfg.Structured.Validate(); err != nil {
			return usageError{err}
		}
	}

	text, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	v, err := content.CompleteThenParse(string(text), content.Options{
		Complete: cfg.Structured.CompleteOptions(),
	})
	if err != nil {
		return err
	}
	return writeLine(stdout, content.Encode(v, cfg.Structured.EncodeOptions()))
}

// =============================================================================
// 🌊 decode 命令
// =============================================================================

func runDecode(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var cf commonFlags
	fs := newFlagSet("decode", &cf)
	chunk := fs.Int("chunk", 16, "Bytes per chunk")
	schemaPath := fs.String("schema", "", "Path to a JSON Schema")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cfg, err := cf.load(fs, args)
	if err != nil {
		return err
	}
	if *chunk < 1 {
		return usageError{fmt.Errorf("--chunk must be positive, got %d", *chunk)}
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	opts := []structured.DecoderOption{
		structured.WithCompleteOptions(cfg.Structured.CompleteOptions()),
		structured.WithLogger(logger),
	}
	if *schemaPath != "" {
		data, err := os.ReadFile(*schemaPath)
		if err != nil {
			return usageError{fmt.Errorf("read schema: %w", err)}
		}
		schema, err := structured.FromJSON(data)
		if err != nil {
			return usageError{err}
		}
		opts = append(opts, structured.WithSchema(schema))
	}

	observers, shutdown, err := startInstrumentation(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()
	opts = append(opts, structured.WithObserver(structured.MultiObserver(observers...)))

	dec, err := structured.NewDecoder[content.Value](opts...)
	if err != nil {
		return err
	}
	stream := dec.Decode(ctx, streaming.FromReader(ctx, stdin, *chunk))

	lineOpts := cfg.Structured.EncodeOptions()
	lineOpts.Indent = ""
	for snap, err := range stream.Snapshots() {
		if err != nil {
			return err
		}
		line := content.ObjectOf(
			content.Member{Key: "seq", Value: content.Number(float64(snap.Seq))},
			content.Member{Key: "complete", Value: content.Bool(snap.Complete)},
			content.Member{Key: "stale", Value: content.Bool(snap.Stale)},
			content.Member{Key: "value", Value: snap.Content()},
		)
		if err := writeLine(stdout, content.Encode(line, lineOpts)); err != nil {
			return err
		}
	}

	final, err := stream.Final()
	if err != nil {
		return err
	}
	out := content.ObjectOf(content.Member{Key: "final", Value: final})
	return writeLine(stdout, content.Encode(out, lineOpts))
}

// startInstrumentation 按配置启用 OTel 与 Prometheus，返回需要挂到解码器上的观察者
func startInstrumentation(cfg *config.Config, logger *zap.Logger) ([]structured.Observer, func(), error) {
	var observers []structured.Observer
	var closers []func(context.Context) error

	providers, err := telemetry.Init(cfg.Telemetry, logger, telemetry.WithDecodeSettings(cfg.Structured))
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		closers = append(closers, providers.Shutdown)
		if obs := providers.Observer(); obs != nil {
			observers = append(observers, obs)
		}
	}

	if cfg.Metrics.Addr != "" {
		observers = append(observers, metrics.NewCollector(cfg.Metrics.Namespace, logger))

		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		srv := server.NewMetricsManager(nil, srvCfg, logger)
		if err := srv.Start(); err != nil {
			for _, c := range closers {
				_ = c(context.Background())
			}
			return nil, nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		closers = append(closers, srv.Shutdown)
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.ShutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				logger.Warn("shutdown error", zap.Error(err))
			}
		}
	}
	return observers, shutdown, nil
}
