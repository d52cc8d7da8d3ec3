// Package config loads the pipeline-wide settings that stay fixed for a
// process's lifetime — worker pool sizing, storage retry/backoff, the
// component manager's backpressure high-water mark, and which storage
// backend to run against. Per-run query knobs (ReadOptions, in package
// pipeline) are a separate caller-constructed struct: they vary per query,
// not per deployment, so they are never loaded from this file.
package config

import (
	"fmt"
	"time"
)

// PipelineConfig is the YAML-tagged settings block Load populates.
type PipelineConfig struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	Performance   PerformanceConfig   `yaml:"performance" json:"performance"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
}

// PerformanceConfig controls the driver's concurrency and sizing.
type PerformanceConfig struct {
	// WorkerPoolSize bounds the number of concurrent process() tasks the
	// driver runs at once, across every currently-runnable group.
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size"`
	// ComponentManagerHighWaterMark caps live entity slots before Push
	// blocks; the driver's backpressure policy.
	ComponentManagerHighWaterMark int64 `yaml:"component_manager_high_water_mark" json:"component_manager_high_water_mark"`
	// DefaultBatchSize hints how many rows a plan-level group should
	// target when a clause's own structuring doesn't otherwise constrain
	// it; informational only, since structuring primitives are
	// authoritative over actual grouping.
	DefaultBatchSize int `yaml:"default_batch_size" json:"default_batch_size"`
}

// ReliabilityConfig controls the driver's storage-fetch retry loop. Only
// qerrors.TypeStorageError is retried (see qerrors.IsRetryable); every
// other error category fails the run on first occurrence.
type ReliabilityConfig struct {
	// StorageRetryMax is the number of additional attempts after the
	// first failed fetch before the driver gives up and fails the run.
	StorageRetryMax int `yaml:"storage_retry_max" json:"storage_retry_max"`
	// StorageRetryBaseDelay is the initial backoff delay; each retry
	// doubles it, capped at StorageRetryMaxDelay.
	StorageRetryBaseDelay time.Duration `yaml:"storage_retry_base_delay" json:"storage_retry_base_delay"`
	StorageRetryMaxDelay  time.Duration `yaml:"storage_retry_max_delay" json:"storage_retry_max_delay"`
}

// ObservabilityConfig controls the telemetry collaborators the driver
// wires up at startup.
type ObservabilityConfig struct {
	EnableMetrics     bool    `yaml:"enable_metrics" json:"enable_metrics"`
	EnableTracing     bool    `yaml:"enable_tracing" json:"enable_tracing"`
	LogLevel          string  `yaml:"log_level" json:"log_level"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// StorageConfig selects and parameterizes the storage.Collaborator
// backend cmd/qpipe wires the driver against.
type StorageConfig struct {
	// Backend is one of "memory", "filesystem", "s3".
	Backend string `yaml:"backend" json:"backend"`
	// Root is the FilesystemCollaborator's root directory.
	Root string `yaml:"root" json:"root"`
	// Bucket, Prefix, Region configure the S3Collaborator.
	Bucket         string `yaml:"bucket" json:"bucket"`
	Prefix         string `yaml:"prefix" json:"prefix"`
	Region         string `yaml:"region" json:"region"`
	MaxConcurrency int    `yaml:"max_concurrency" json:"max_concurrency"`
}

// DefaultPipelineConfig returns conservative defaults suitable for local
// runs and tests; name identifies the deployment (e.g. "qpipe-dev").
func DefaultPipelineConfig(name string) *PipelineConfig {
	return &PipelineConfig{
		Name:    name,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			WorkerPoolSize:                4,
			ComponentManagerHighWaterMark: 10_000,
			DefaultBatchSize:              10_000,
		},
		Reliability: ReliabilityConfig{
			StorageRetryMax:       3,
			StorageRetryBaseDelay: 50 * time.Millisecond,
			StorageRetryMaxDelay:  2 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
	}
}

// Validate checks required fields and value ranges, catching
// misconfiguration before the driver starts a run.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: name is required")
	}
	if c.Performance.WorkerPoolSize <= 0 {
		return fmt.Errorf("config: worker_pool_size must be positive")
	}
	if c.Performance.ComponentManagerHighWaterMark <= 0 {
		return fmt.Errorf("config: component_manager_high_water_mark must be positive")
	}
	if c.Reliability.StorageRetryMax < 0 {
		return fmt.Errorf("config: storage_retry_max cannot be negative")
	}
	switch c.Storage.Backend {
	case "memory", "filesystem", "s3":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "filesystem" && c.Storage.Root == "" {
		return fmt.Errorf("config: storage.root is required for the filesystem backend")
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("config: storage.bucket is required for the s3 backend")
	}
	return nil
}
