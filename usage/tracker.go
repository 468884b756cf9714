// Package usage records transcription consumption per owner so downstream
// billing and quota systems can meter jobs. Events go out through Kafka;
// deployments without a broker fall back to the no-op tracker.
package usage

import (
	"context"
	"time"
)

// Event is one usage record emitted when a job finishes transcribing.
type Event struct {
	JobID           string    `json:"job_id"`
	OwnerID         string    `json:"owner_id,omitempty"`
	Mode            string    `json:"mode"`
	DurationSeconds float64   `json:"duration_seconds"`
	Chunks          int       `json:"chunks"`
	Retries         int       `json:"retries"`
	Timestamp       time.Time `json:"timestamp"`
}

// Tracker records usage events.
type Tracker interface {
	// Record emits one usage event. Failures are the caller's to log;
	// usage tracking never blocks job completion.
	Record(ctx context.Context, event Event) error

	// Close flushes and releases the tracker.
	Close() error
}

// Noop is the Tracker used when usage tracking is disabled.
type Noop struct{}

func (Noop) Record(context.Context, Event) error { return nil }
func (Noop) Close() error                        { return nil }

var _ Tracker = Noop{}
