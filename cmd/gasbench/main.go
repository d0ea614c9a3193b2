package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"gasbench/bench"
	"gasbench/config"
	"gasbench/native/players"
	"gasbench/observability/logging"
	"gasbench/observability/metrics"
	telemetry "gasbench/observability/otel"
	"gasbench/storage"
)

func main() {
	configFile := flag.String("config", "./gasbench.toml", "Path to the configuration file")
	scenarios := flag.String("scenarios", "", "Comma-separated scenario names (default: all)")
	format := flag.String("format", "yaml", "Report format: yaml or json")
	keep := flag.Bool("keep", false, "Keep the per-variant databases under DataDir/runs")
	list := flag.Bool("list", false, "List the available scenarios and exit")
	flag.Parse()

	if *list {
		for _, sc := range bench.Scenarios() {
			fmt.Printf("%-22s %s\n", sc.Name, sc.Description)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	level, err := logging.ParseLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	env := strings.TrimSpace(os.Getenv("GASBENCH_ENV"))
	if env == "" {
		env = cfg.Telemetry.Environment
	}
	// Logs go to stderr so the report on stdout stays machine readable.
	logger := logging.SetupWriter(os.Stderr, "gasbench", env, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "gasbench",
		Environment: env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.OTLPInsecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Traces:      cfg.Telemetry.TracesEnabled,
	})
	if err != nil {
		logger.Error("Failed to initialise telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	var engineMetrics *metrics.EngineMetrics
	if addr := strings.TrimSpace(cfg.Telemetry.MetricsAddr); addr != "" {
		engineMetrics = metrics.Engine()
		server := &http.Server{Addr: addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
		defer server.Close()
	}

	opts, err := options(cfg, *keep, logger)
	if err != nil {
		logger.Error("Invalid benchmark options", slog.Any("error", err))
		os.Exit(1)
	}
	opts.Metrics = engineMetrics

	results, err := bench.Run(ctx, opts, splitNames(*scenarios)...)
	if err != nil {
		logger.Error("Benchmark failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writeReport(os.Stdout, *format, results); err != nil {
		logger.Error("Failed to write report", slog.Any("error", err))
		os.Exit(1)
	}
}

func options(cfg *config.Config, keep bool, logger *slog.Logger) (bench.Options, error) {
	layout, err := players.ParseLayoutKind(cfg.Ledger.Layout)
	if err != nil {
		return bench.Options{}, err
	}
	runsDir := filepath.Join(cfg.DataDir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return bench.Options{}, err
	}
	opts := bench.DefaultOptions()
	opts.Owner = cfg.OwnerAddress()
	opts.Table = cfg.Costs
	opts.BatchSize = cfg.Batch.BatchSize
	opts.Multiplier = cfg.Arith.Multiplier
	opts.Name = cfg.Ledger.Name
	opts.Layout = layout
	opts.IntegrityCheck = cfg.Ledger.IntegrityCheck
	opts.Logger = logger
	opts.Open = func(label string) (storage.Database, func(), error) {
		dir, err := os.MkdirTemp(runsDir, label+"-")
		if err != nil {
			return nil, nil, err
		}
		db, err := storage.Open(cfg.Backend, dir)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			db.Close()
			if keep {
				return
			}
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("Failed to remove run database", slog.String("dir", dir), slog.Any("error", err))
			}
		}
		return db, release, nil
	}
	return opts, nil
}

func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func writeReport(w io.Writer, format string, results []bench.Result) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
