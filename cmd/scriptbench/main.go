// Command scriptbench partitions handwriting-benchmark results into viewer
// artifacts and serves them.
//
// Usage:
//
//	scriptbench partition [-config config.yaml] [-input FILE] [-output DIR] [-dry-run]
//	scriptbench recompute [-config config.yaml] [-input FILE] [-ground-truth-dir DIR]
//	scriptbench serve     [-config config.yaml] [-listen ADDR] [-data DIR]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hallgrim/scriptbench/internal/config"
	"github.com/hallgrim/scriptbench/internal/observe"
	"github.com/hallgrim/scriptbench/internal/partition"
	"github.com/hallgrim/scriptbench/internal/recompute"
	"github.com/hallgrim/scriptbench/internal/results"
	"github.com/hallgrim/scriptbench/internal/viewer"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}

	switch os.Args[1] {
	case "partition":
		return runPartition(os.Args[2:])
	case "recompute":
		return runRecompute(os.Args[2:])
	case "serve":
		return runServe(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "scriptbench: unknown command %q\n\n", os.Args[1])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `scriptbench — benchmark results partitioner and viewer

Commands:
  partition   split a results document into summary, index, and fragments
  recompute   rescore a results document from its raw texts
  serve       serve partitioned artifacts and the comparison API
`)
}

// loadConfig loads the YAML config when the file exists. A missing default
// config is not an error: every setting has a flag or a default.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		cfg = &config.Config{}
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return nil, err
}

func runPartition(args []string) int {
	fs := flag.NewFlagSet("partition", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	input := fs.String("input", "", "results document (overrides partition.input)")
	output := fs.String("output", "", "artifact directory (overrides partition.output_dir)")
	dryRun := fs.Bool("dry-run", false, "partition and report, but write nothing")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, flagSet(fs, "config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptbench: %v\n", err)
		return 1
	}
	if *input != "" {
		cfg.Partition.Input = *input
	}
	if *output != "" {
		cfg.Partition.OutputDir = *output
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	if cfg.Partition.Input == "" {
		fmt.Fprintln(os.Stderr, "scriptbench: no input document (set -input or partition.input)")
		return 2
	}
	if cfg.Partition.OutputDir == "" && !*dryRun {
		fmt.Fprintln(os.Stderr, "scriptbench: no output directory (set -output or partition.output_dir)")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer shutdown(context.Background())
	met := observe.DefaultMetrics()

	start := time.Now()
	err = partitionRun(cfg, *dryRun)
	status := "ok"
	if err != nil {
		status = "error"
	}
	met.PartitionRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	met.PartitionDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		slog.Error("partition failed", "err", err)
		return 1
	}
	return 0
}

func partitionRun(cfg *config.Config, dryRun bool) error {
	doc, err := results.Load(cfg.Partition.Input)
	if err != nil {
		return err
	}
	slog.Info("document loaded",
		"input", cfg.Partition.Input,
		"benchmark", doc.Benchmark.Name,
		"rows", len(doc.Results),
		"models", len(doc.ModelSummaries),
	)

	index, fragments, err := partition.Partition(doc)
	if err != nil {
		return err
	}
	slog.Info("document partitioned",
		"samples", len(index.Samples),
		"ranked_models", len(index.QualityRankedModelOrder),
	)

	if dryRun {
		slog.Info("dry run, nothing written", "would_write", len(fragments)+2)
		return nil
	}

	if err := partition.WriteArtifacts(partition.BuildSummary(doc), index, fragments, cfg.Partition.OutputDir); err != nil {
		return err
	}
	slog.Info("artifacts written", "dir", cfg.Partition.OutputDir, "fragments", len(fragments))
	return nil
}

func runRecompute(args []string) int {
	fs := flag.NewFlagSet("recompute", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	input := fs.String("input", "", "results document (overrides partition.input)")
	gtDir := fs.String("ground-truth-dir", "", "ground truth directory (overrides partition.ground_truth_dir)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, flagSet(fs, "config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptbench: %v\n", err)
		return 1
	}
	if *input != "" {
		cfg.Partition.Input = *input
		// Re-derive the ground-truth default from the overridden input.
		if *gtDir == "" {
			cfg.Partition.GroundTruthDir = ""
		}
	}
	if *gtDir != "" {
		cfg.Partition.GroundTruthDir = *gtDir
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	if cfg.Partition.Input == "" {
		fmt.Fprintln(os.Stderr, "scriptbench: no input document (set -input or partition.input)")
		return 2
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "scriptbench: %v\n", err)
		return 1
	}

	doc, err := results.Load(cfg.Partition.Input)
	if err != nil {
		slog.Error("load failed", "err", err)
		return 1
	}

	report, err := recompute.Run(doc, cfg.Partition.GroundTruthDir)
	if err != nil {
		slog.Error("recompute failed", "err", err)
		return 1
	}
	slog.Info("document rescored",
		"scored", report.RowsScored,
		"skipped", report.RowsSkipped,
		"missing_ground_truths", len(report.MissingGroundTruth),
	)

	if err := results.Write(doc, cfg.Partition.Input); err != nil {
		slog.Error("write failed", "err", err)
		return 1
	}
	slog.Info("document rewritten", "path", cfg.Partition.Input)
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	listen := fs.String("listen", "", "listen address (overrides viewer.listen_addr)")
	dataDir := fs.String("data", "", "artifact directory (overrides viewer.data_dir)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, flagSet(fs, "config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptbench: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.Viewer.ListenAddr = *listen
	}
	if *dataDir != "" {
		cfg.Viewer.DataDir = *dataDir
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	if cfg.Viewer.DataDir == "" {
		fmt.Fprintln(os.Stderr, "scriptbench: no data directory (set -data or viewer.data_dir)")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer shutdown(context.Background())

	srv, err := viewer.New(cfg.Viewer, observe.DefaultMetrics())
	if err != nil {
		slog.Error("viewer init failed", "err", err)
		return 1
	}

	if err := srv.Run(ctx); err != nil {
		slog.Error("serve error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// flagSet reports whether the named flag was set explicitly on the command
// line, as opposed to carrying its default.
func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
