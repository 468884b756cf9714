package config

import (
	"fmt"
	"time"
)

// BackoffShape selects how retry delays grow with the attempt number.
type BackoffShape string

const (
	// BackoffExponential doubles the delay per attempt up to a cap.
	BackoffExponential BackoffShape = "exponential"
	// BackoffLinear grows the delay by a fixed increment per attempt.
	BackoffLinear BackoffShape = "linear"
)

// Mode names for the built-in processing modes.
const (
	// ModeBalanced favors boundary accuracy: overlapping chunks processed
	// strictly sequentially so the assembler's alignment stays meaningful.
	ModeBalanced = "balanced"
	// ModeTurbo favors throughput: non-overlapping chunks processed in
	// parallel, joined without alignment.
	ModeTurbo = "turbo"
)

// ModeConfig describes how one processing mode chunks audio and paces
// provider calls.
type ModeConfig struct {
	// Name is the mode identifier used in submit requests.
	Name string `mapstructure:"name"`

	// ChunkDuration is the nominal chunk length in seconds.
	ChunkDuration float64 `mapstructure:"chunk_duration"`

	// OverlapDuration is the extra audio, in seconds, copied from the head
	// of the following segment onto every chunk except the last. Zero
	// disables overlap.
	OverlapDuration float64 `mapstructure:"overlap_duration"`

	// SubChunkDuration is the shorter chunk length, in seconds, used when a
	// persistently failing chunk is auto-split.
	SubChunkDuration float64 `mapstructure:"sub_chunk_duration"`

	// MaxConcurrent caps in-flight provider calls. Must be 1 when
	// OverlapDuration > 0.
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// MaxRetries is the per-chunk retry cap.
	MaxRetries int `mapstructure:"max_retries"`

	// BackoffShape selects the retry delay curve.
	BackoffShape BackoffShape `mapstructure:"backoff_shape"`

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration `mapstructure:"backoff_base"`

	// BackoffMax caps the exponential delay.
	BackoffMax time.Duration `mapstructure:"backoff_max"`

	// BackoffIncrement is the per-attempt increase for the linear shape.
	BackoffIncrement time.Duration `mapstructure:"backoff_increment"`

	// RetryBudget caps total retries across all chunks of a job.
	RetryBudget int `mapstructure:"retry_budget"`

	// SplitBudget caps auto-split events across all chunks of a job.
	SplitBudget int `mapstructure:"split_budget"`

	// DegradedThreshold is the run of consecutive provider rate-limit
	// rejections that forces the governor into degraded mode.
	DegradedThreshold int `mapstructure:"degraded_threshold"`

	// RecoveryThreshold is the run of consecutive successes that lifts
	// degraded mode.
	RecoveryThreshold int `mapstructure:"recovery_threshold"`

	// DegradedDelay is the extra delay inserted before each permit while
	// degraded.
	DegradedDelay time.Duration `mapstructure:"degraded_delay"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (m *ModeConfig) ApplyDefaults() {
	if m.ChunkDuration <= 0 {
		m.ChunkDuration = 180
	}
	if m.SubChunkDuration <= 0 {
		m.SubChunkDuration = m.ChunkDuration / 3
	}
	if m.MaxConcurrent <= 0 {
		m.MaxConcurrent = 1
	}
	if m.MaxRetries <= 0 {
		m.MaxRetries = 3
	}
	if m.BackoffShape == "" {
		m.BackoffShape = BackoffExponential
	}
	if m.BackoffBase <= 0 {
		m.BackoffBase = 2 * time.Second
	}
	if m.BackoffMax <= 0 {
		m.BackoffMax = 30 * time.Second
	}
	if m.BackoffIncrement <= 0 {
		m.BackoffIncrement = 2 * time.Second
	}
	if m.RetryBudget <= 0 {
		m.RetryBudget = 10
	}
	if m.SplitBudget <= 0 {
		m.SplitBudget = 3
	}
	if m.DegradedThreshold <= 0 {
		m.DegradedThreshold = 3
	}
	if m.RecoveryThreshold <= 0 {
		m.RecoveryThreshold = 3
	}
	if m.DegradedDelay <= 0 {
		m.DegradedDelay = 5 * time.Second
	}
}

// Validate checks that the mode configuration is internally consistent.
func (m *ModeConfig) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("mode: name is required")
	}
	if m.ChunkDuration <= 0 {
		return fmt.Errorf("mode %s: chunk_duration must be positive, got %f", m.Name, m.ChunkDuration)
	}
	if m.OverlapDuration < 0 {
		return fmt.Errorf("mode %s: overlap_duration cannot be negative, got %f", m.Name, m.OverlapDuration)
	}
	if m.OverlapDuration >= m.ChunkDuration {
		return fmt.Errorf("mode %s: overlap_duration (%f) must be smaller than chunk_duration (%f)",
			m.Name, m.OverlapDuration, m.ChunkDuration)
	}
	if m.SubChunkDuration <= 0 || m.SubChunkDuration >= m.ChunkDuration {
		return fmt.Errorf("mode %s: sub_chunk_duration must be in (0, chunk_duration), got %f",
			m.Name, m.SubChunkDuration)
	}
	if m.MaxConcurrent < 1 {
		return fmt.Errorf("mode %s: max_concurrent must be at least 1, got %d", m.Name, m.MaxConcurrent)
	}
	// Overlap trimming assumes chunks complete in index order.
	if m.OverlapDuration > 0 && m.MaxConcurrent != 1 {
		return fmt.Errorf("mode %s: overlap requires max_concurrent == 1, got %d", m.Name, m.MaxConcurrent)
	}
	if m.BackoffShape != BackoffExponential && m.BackoffShape != BackoffLinear {
		return fmt.Errorf("mode %s: backoff_shape must be %q or %q, got %q",
			m.Name, BackoffExponential, BackoffLinear, m.BackoffShape)
	}
	return nil
}

// BuiltinModes returns the default mode table keyed by mode name.
func BuiltinModes() map[string]ModeConfig {
	balanced := ModeConfig{
		Name:             ModeBalanced,
		ChunkDuration:    180,
		OverlapDuration:  3,
		SubChunkDuration: 60,
		MaxConcurrent:    1,
		MaxRetries:       3,
		BackoffShape:     BackoffExponential,
		BackoffBase:      2 * time.Second,
		BackoffMax:       30 * time.Second,
		RetryBudget:      10,
		SplitBudget:      3,
	}
	balanced.ApplyDefaults()

	turbo := ModeConfig{
		Name:             ModeTurbo,
		ChunkDuration:    120,
		OverlapDuration:  0,
		SubChunkDuration: 45,
		MaxConcurrent:    4,
		MaxRetries:       2,
		BackoffShape:     BackoffLinear,
		BackoffBase:      time.Second,
		BackoffIncrement: 2 * time.Second,
		RetryBudget:      12,
		SplitBudget:      4,
	}
	turbo.ApplyDefaults()

	return map[string]ModeConfig{
		ModeBalanced: balanced,
		ModeTurbo:    turbo,
	}
}
