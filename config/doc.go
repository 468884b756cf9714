// Package config loads and validates service configuration from YAML
// files and environment variables via viper, and defines the processing
// mode table that drives chunking, concurrency, and retry behavior.
package config
