// Package config loads the pipeline's deployment-wide settings.
//
// # Usage
//
//	cfg := config.DefaultPipelineConfig("qpipe-dev")
//	if err := config.Load("pipeline.yaml", cfg); err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Environment variable substitution
//
// Load replaces every ${VAR_NAME} occurrence in the YAML file with the
// named environment variable's value before unmarshalling, so secrets
// like bucket credentials never need to live in the file itself.
package config
