package config_test

import (
	"fmt"

	"github.com/colstream/qpipe/pkg/config"
)

// ExampleDefaultPipelineConfig demonstrates the sensible defaults a fresh
// PipelineConfig starts with.
func ExampleDefaultPipelineConfig() {
	cfg := config.DefaultPipelineConfig("qpipe-dev")

	fmt.Printf("Worker Pool Size: %d\n", cfg.Performance.WorkerPoolSize)
	fmt.Printf("Storage Retry Max: %d\n", cfg.Reliability.StorageRetryMax)
	fmt.Printf("Storage Backend: %s\n", cfg.Storage.Backend)

	// Output:
	// Worker Pool Size: 4
	// Storage Retry Max: 3
	// Storage Backend: memory
}

// ExamplePipelineConfig_Validate shows validation catching a missing
// required field for the chosen storage backend.
func ExamplePipelineConfig_Validate() {
	cfg := config.DefaultPipelineConfig("qpipe-dev")
	cfg.Storage.Backend = "filesystem"

	err := cfg.Validate()
	fmt.Println(err)

	// Output:
	// config: storage.root is required for the filesystem backend
}
