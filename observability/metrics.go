package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the metric instruments for the transcription
// pipeline.
type PipelineMetrics struct {
	jobsSubmitted    metric.Int64Counter
	jobsFinished     metric.Int64Counter
	jobDuration      metric.Float64Histogram
	chunksProcessed  metric.Int64Counter
	chunkRetries     metric.Int64Counter
	chunkSplits      metric.Int64Counter
	rateLimitHits    metric.Int64Counter
	degradedEntries  metric.Int64Counter
	transcribedAudio metric.Float64Counter
}

// NewPipelineMetrics creates the pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	jobsSubmitted, err := meter.Int64Counter("pipeline.jobs.submitted",
		metric.WithDescription("Jobs accepted for processing"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.jobs.submitted counter: %w", err)
	}

	jobsFinished, err := meter.Int64Counter("pipeline.jobs.finished",
		metric.WithDescription("Jobs reaching a terminal state, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.jobs.finished counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("pipeline.job.duration",
		metric.WithDescription("Wall-clock time from submit to terminal state"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.job.duration histogram: %w", err)
	}

	chunksProcessed, err := meter.Int64Counter("pipeline.chunks.processed",
		metric.WithDescription("Chunks completing transcription"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.chunks.processed counter: %w", err)
	}

	chunkRetries, err := meter.Int64Counter("pipeline.chunks.retries",
		metric.WithDescription("Chunk retry attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.chunks.retries counter: %w", err)
	}

	chunkSplits, err := meter.Int64Counter("pipeline.chunks.splits",
		metric.WithDescription("Chunk auto-split events"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.chunks.splits counter: %w", err)
	}

	rateLimitHits, err := meter.Int64Counter("pipeline.provider.rate_limited",
		metric.WithDescription("Provider rate-limit rejections"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.provider.rate_limited counter: %w", err)
	}

	degradedEntries, err := meter.Int64Counter("pipeline.governor.degraded_entries",
		metric.WithDescription("Times a job governor entered degraded mode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.governor.degraded_entries counter: %w", err)
	}

	transcribedAudio, err := meter.Float64Counter("pipeline.audio.transcribed",
		metric.WithDescription("Seconds of audio transcribed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.audio.transcribed counter: %w", err)
	}

	return &PipelineMetrics{
		jobsSubmitted:    jobsSubmitted,
		jobsFinished:     jobsFinished,
		jobDuration:      jobDuration,
		chunksProcessed:  chunksProcessed,
		chunkRetries:     chunkRetries,
		chunkSplits:      chunkSplits,
		rateLimitHits:    rateLimitHits,
		degradedEntries:  degradedEntries,
		transcribedAudio: transcribedAudio,
	}, nil
}

// RecordJobSubmitted counts one accepted job.
func (m *PipelineMetrics) RecordJobSubmitted(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordJobFinished counts one terminal job and its wall-clock duration.
func (m *PipelineMetrics) RecordJobFinished(ctx context.Context, mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	m.jobsFinished.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordChunkProcessed counts one transcribed chunk and its audio seconds.
func (m *PipelineMetrics) RecordChunkProcessed(ctx context.Context, mode string, audioSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.chunksProcessed.Add(ctx, 1, attrs)
	m.transcribedAudio.Add(ctx, audioSeconds, attrs)
}

// RecordRetry counts one chunk retry.
func (m *PipelineMetrics) RecordRetry(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.chunkRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordSplit counts one auto-split event.
func (m *PipelineMetrics) RecordSplit(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.chunkSplits.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordRateLimited counts one provider rate-limit rejection.
func (m *PipelineMetrics) RecordRateLimited(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordDegradedEntry counts one governor transition into degraded mode.
func (m *PipelineMetrics) RecordDegradedEntry(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.degradedEntries.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
