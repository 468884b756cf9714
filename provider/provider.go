package provider

import "context"

// Provider is the minimal contract every pluggable backend implements.
// The pipeline needs a stable name for logging and health output, and a
// liveness probe for the health endpoint.
type Provider interface {
	// Name identifies the backend, e.g. "whisper".
	Name() string
	// IsAvailable reports whether the backend can take requests right now.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a backend instance from its raw configuration map, as
// loaded from the service config.
type Factory[T Provider] func(cfg map[string]any) (T, error)
