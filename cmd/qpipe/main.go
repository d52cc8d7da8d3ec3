package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/colstream/qpipe/pkg/config"
	"github.com/colstream/qpipe/pkg/pipeline"
	"github.com/colstream/qpipe/pkg/storage"
	"github.com/colstream/qpipe/pkg/telemetry"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "qpipe",
		Short: "qpipe runs a columnar clause pipeline against a storage collaborator",
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qpipe v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newRunCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	var configFile, clausesFile, readOptionsFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a clause pipeline",
		Long: `Run executes a chain of clauses, read from a JSON clause-spec file, against
the storage backend named in a PipelineConfig YAML file.

Example:
  qpipe run --config pipeline.yaml --clauses clauses.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), configFile, clausesFile, readOptionsFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to PipelineConfig YAML file (required)")
	cmd.Flags().StringVarP(&clausesFile, "clauses", "l", "", "Path to clause-spec JSON file (required)")
	cmd.Flags().StringVarP(&readOptionsFile, "read-options", "r", "", "Path to a ReadOptions JSON file (optional)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("clauses")

	return cmd
}

func runPipeline(ctx context.Context, configFile, clausesFile, readOptionsFile string) error {
	cfg := config.DefaultPipelineConfig("qpipe-cli")
	if err := config.Load(configFile, cfg); err != nil {
		return fmt.Errorf("qpipe: load config: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("qpipe: invalid config: %w", err)
	}

	clauses, err := loadClauseSpecs(clausesFile)
	if err != nil {
		return err
	}
	if len(clauses) == 0 {
		return fmt.Errorf("qpipe: clause spec %s defines no clauses", clausesFile)
	}

	opts, err := loadReadOptions(readOptionsFile)
	if err != nil {
		return err
	}

	collaborator, err := buildCollaborator(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	zapLogger, err := newZapLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("qpipe: build logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	var tracer trace.Tracer
	if cfg.Observability.EnableTracing {
		t, shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			ServiceName:  cfg.Name,
			SamplingRate: cfg.Observability.TracingSampleRate,
		})
		if err != nil {
			return fmt.Errorf("qpipe: init tracing: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
		tracer = t
	}

	logger := telemetry.NewStructuredLogger(zapLogger, "")
	d := pipeline.NewDriver(collaborator, cfg, logger, tracer)

	logger.Info("starting pipeline run", zap.String("run_id", d.RunID), zap.Int("clauses", len(clauses)))

	result, err := d.Run(ctx, clauses, opts)
	if err != nil {
		return fmt.Errorf("qpipe: pipeline run failed: %w", err)
	}

	fmt.Printf("run %s completed: %d rows, columns: %v\n", d.RunID, result.NumRows(), result.Descriptor.Names)
	return nil
}

func loadReadOptions(path string) (pipeline.ReadOptions, error) {
	if path == "" {
		return pipeline.ReadOptions{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.ReadOptions{}, fmt.Errorf("qpipe: read read-options %s: %w", path, err)
	}
	var opts pipeline.ReadOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return pipeline.ReadOptions{}, fmt.Errorf("qpipe: parse read-options %s: %w", path, err)
	}
	return opts, nil
}

// applyEnvOverrides lets a deployment override a handful of PipelineConfig
// fields via QPIPE_-prefixed environment variables without editing the
// YAML file, the same InitFromViper(v) role viper plays in other
// deployments: read whatever the environment set, leave the YAML value
// alone otherwise.
func applyEnvOverrides(cfg *config.PipelineConfig) {
	v := viper.New()
	v.SetEnvPrefix("QPIPE")
	_ = v.BindEnv("storage_backend")
	_ = v.BindEnv("storage_root")
	_ = v.BindEnv("storage_bucket")
	_ = v.BindEnv("worker_pool_size")

	if v.IsSet("storage_backend") {
		cfg.Storage.Backend = v.GetString("storage_backend")
	}
	if v.IsSet("storage_root") {
		cfg.Storage.Root = v.GetString("storage_root")
	}
	if v.IsSet("storage_bucket") {
		cfg.Storage.Bucket = v.GetString("storage_bucket")
	}
	if v.IsSet("worker_pool_size") {
		cfg.Performance.WorkerPoolSize = v.GetInt("worker_pool_size")
	}
}

func buildCollaborator(ctx context.Context, sc config.StorageConfig) (storage.Collaborator, error) {
	switch sc.Backend {
	case "memory":
		return storage.NewMemoryCollaborator(), nil
	case "filesystem":
		return storage.NewFilesystemCollaborator(sc.Root)
	case "s3":
		return storage.NewS3Collaborator(ctx, sc.Bucket, sc.Prefix, sc.Region, sc.MaxConcurrency)
	default:
		return nil, fmt.Errorf("qpipe: unrecognized storage backend %q", sc.Backend)
	}
}

func newZapLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		zapCfg.Level.SetLevel(zap.InfoLevel)
	}
	return zapCfg.Build()
}
