package config

import (
	"fmt"
	"time"
)

// Config is the top-level service configuration.
type Config struct {
	Server   ServerSection   `mapstructure:"server"`
	Logging  LoggingSection  `mapstructure:"logging"`
	Storage  StorageSection  `mapstructure:"storage"`
	Redis    RedisSection    `mapstructure:"redis"`
	Usage    UsageSection    `mapstructure:"usage"`
	Whisper  WhisperSection  `mapstructure:"whisper"`
	Metrics  MetricsSection  `mapstructure:"metrics"`
	Pipeline PipelineSection `mapstructure:"pipeline"`
}

// MetricsSection configures the OTLP metric exporter.
type MetricsSection struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	Environment string        `mapstructure:"environment"`
	Interval    time.Duration `mapstructure:"interval"`
}

// ServerSection configures the HTTP API listener.
type ServerSection struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // seconds
}

// WhisperSection configures the speech-to-text backend.
type WhisperSection struct {
	URL      string        `mapstructure:"url"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingSection mirrors logger.Config at the service config level.
type LoggingSection struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// StorageSection selects and configures the chunk storage backend.
type StorageSection struct {
	// Provider selects the backend: "local" or "s3".
	Provider string `mapstructure:"provider"`
	// BasePath is the root directory for local storage.
	BasePath string `mapstructure:"base_path"`
	// Bucket is the S3 bucket for chunk audio.
	Bucket string `mapstructure:"bucket"`
	// Region is the AWS region for S3.
	Region string `mapstructure:"region"`
	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `mapstructure:"endpoint"`
	// AccessKey is the AWS access key ID.
	AccessKey string `mapstructure:"access_key"`
	// SecretKey is the AWS secret access key.
	SecretKey string `mapstructure:"secret_key"`
}

// RedisSection configures the optional transcript idempotency cache.
type RedisSection struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// UsageSection configures the usage-tracking event publisher.
type UsageSection struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// PipelineSection holds input limits, job retention, and the mode table.
type PipelineSection struct {
	// MaxUploadBytes rejects uploads larger than this many bytes.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	// MaxAudioDuration rejects audio longer than this, in seconds.
	MaxAudioDuration float64 `mapstructure:"max_audio_duration"`
	// MaxJobAge is how long finished or abandoned jobs are retained before
	// the sweep evicts them.
	MaxJobAge time.Duration `mapstructure:"max_job_age"`
	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// DefaultMode is the mode used when a request names none.
	DefaultMode string `mapstructure:"default_mode"`
	// Modes overrides or extends the built-in mode table.
	Modes map[string]ModeConfig `mapstructure:"modes"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = "local"
	}
	if c.Storage.BasePath == "" {
		c.Storage.BasePath = "/tmp/scribe/chunks"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Usage.Topic == "" {
		c.Usage.Topic = "scribe.usage"
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "localhost:4318"
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = "development"
	}
	c.Pipeline.ApplyDefaults()
}

// ApplyDefaults fills in zero-valued pipeline fields with sensible defaults.
func (p *PipelineSection) ApplyDefaults() {
	if p.MaxUploadBytes <= 0 {
		p.MaxUploadBytes = 200 * 1024 * 1024
	}
	if p.MaxAudioDuration <= 0 {
		p.MaxAudioDuration = 4 * 60 * 60
	}
	if p.MaxJobAge <= 0 {
		p.MaxJobAge = 24 * time.Hour
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = 10 * time.Minute
	}
	if p.DefaultMode == "" {
		p.DefaultMode = ModeBalanced
	}
	if p.Modes == nil {
		p.Modes = BuiltinModes()
	} else {
		merged := BuiltinModes()
		for name, mode := range p.Modes {
			if mode.Name == "" {
				mode.Name = name
			}
			mode.ApplyDefaults()
			merged[name] = mode
		}
		p.Modes = merged
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.Storage.Provider != "local" && c.Storage.Provider != "s3" {
		return fmt.Errorf("storage.provider must be \"local\" or \"s3\", got %q", c.Storage.Provider)
	}
	if c.Storage.Provider == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 provider")
	}
	if c.Usage.Enabled && len(c.Usage.Brokers) == 0 {
		return fmt.Errorf("usage.brokers is required when usage tracking is enabled")
	}
	return c.Pipeline.Validate()
}

// Validate checks the pipeline section, including every configured mode.
func (p *PipelineSection) Validate() error {
	if _, ok := p.Modes[p.DefaultMode]; !ok {
		return fmt.Errorf("pipeline.default_mode %q is not a configured mode", p.DefaultMode)
	}
	for name, mode := range p.Modes {
		if err := mode.Validate(); err != nil {
			return fmt.Errorf("pipeline.modes[%s]: %w", name, err)
		}
	}
	return nil
}

// Mode returns the named mode configuration, or the default mode when name
// is empty. The second return is false if the mode is unknown.
func (p *PipelineSection) Mode(name string) (ModeConfig, bool) {
	if name == "" {
		name = p.DefaultMode
	}
	mode, ok := p.Modes[name]
	return mode, ok
}
