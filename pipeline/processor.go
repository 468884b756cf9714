package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/governor"
	"github.com/skillsenselab/scribe/job"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/observability"
	"github.com/skillsenselab/scribe/redis"
	"github.com/skillsenselab/scribe/transcription"
)

// processor runs one job's chunks against the provider: cache lookups,
// governed provider calls, retries with mode backoff, and auto-splitting of
// chunks that keep failing.
type processor struct {
	chunker     *audio.Chunker
	provider    transcription.Provider
	cache       redis.TranscriptCache
	store       *job.Store
	gov         *governor.Governor
	mode        config.ModeConfig
	language    string
	providerKey string
	metrics     *observability.PipelineMetrics
	log         *logger.Logger
}

// processChunk transcribes one chunk and records its result on the job.
// The returned text has already been written to the job's chunk status.
func (p *processor) processChunk(ctx context.Context, jobID string, chunk audio.Chunk) (string, error) {
	if cached, err := p.cache.Load(ctx, chunk.Hash); err != nil {
		p.log.Warn("transcript cache unavailable", logger.ErrorFields("cache load", err))
	} else if cached != nil {
		p.log.Debug("transcript cache hit", map[string]interface{}{
			logger.FieldJobID: jobID,
			logger.FieldChunk: chunk.Index,
		})
		p.completeChunk(ctx, jobID, chunk, cached.Text)
		return cached.Text, nil
	}

	text, err := p.transcribeWithRetry(ctx, jobID, chunk)
	if err == nil {
		p.completeChunk(ctx, jobID, chunk, text)
		return text, nil
	}
	if errors.IsCode(err, errors.ErrCodeCancelled) || !errors.IsRetryable(err) {
		p.failChunk(jobID, chunk.Index, err)
		return "", err
	}

	// Retries exhausted on a retryable failure: split the chunk into
	// shorter pieces and process those, if the job's split budget allows.
	text, splitErr := p.splitAndProcess(ctx, jobID, chunk)
	if splitErr != nil {
		p.failChunk(jobID, chunk.Index, splitErr)
		return "", splitErr
	}
	p.completeChunk(ctx, jobID, chunk, text)
	return text, nil
}

// transcribeWithRetry runs the governed provider call with up to the mode's
// retry count, spending the job-wide retry budget on each retry.
func (p *processor) transcribeWithRetry(ctx context.Context, jobID string, chunk audio.Chunk) (string, error) {
	data, err := p.chunker.Fetch(ctx, chunk)
	if err != nil {
		return "", err
	}

	var lastErr error
	maxAttempts := p.mode.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.store.IsCancelled(jobID) {
			return "", errors.Cancelled(jobID)
		}

		state := job.ChunkInProgress
		if attempt > 1 {
			state = job.ChunkRetrying
		}
		p.updateChunk(jobID, chunk.Index, job.ChunkUpdate{State: state, Attempts: attempt})

		text, err := p.transcribeOnce(ctx, jobID, chunk, data)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.IsCode(err, errors.ErrCodeCancelled) || !errors.IsRetryable(err) {
			return "", err
		}
		if attempt == maxAttempts {
			break
		}

		retries, err := p.store.AddRetry(jobID)
		if err != nil {
			return "", err
		}
		if retries > p.mode.RetryBudget {
			return "", errors.BudgetExceeded("retry", p.mode.RetryBudget)
		}
		p.metrics.RecordRetry(ctx, p.mode.Name)

		backoff := governor.Backoff(p.mode, attempt)
		p.log.Info("retrying chunk", map[string]interface{}{
			logger.FieldJobID: jobID,
			logger.FieldChunk: chunk.Index,
			"attempt":         attempt,
			"backoff":         backoff.String(),
		})
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", errors.Cancelled(jobID)
		}
	}
	return "", lastErr
}

// transcribeOnce makes a single governed provider call.
func (p *processor) transcribeOnce(ctx context.Context, jobID string, chunk audio.Chunk, data []byte) (string, error) {
	release, err := p.gov.Acquire(ctx)
	if err != nil {
		return "", errors.Cancelled(jobID)
	}
	defer release()

	resp, err := p.provider.Transcribe(ctx, transcription.Request{
		Audio:    data,
		Filename: chunk.StoragePath,
		Language: p.language,
		APIKey:   p.providerKey,
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeProviderRateLimited) {
			p.gov.RecordOutcome(governor.OutcomeRateLimited)
			p.metrics.RecordRateLimited(ctx, p.provider.Name())
			if p.gov.Degraded() {
				p.metrics.RecordDegradedEntry(ctx, p.mode.Name)
			}
		} else {
			p.gov.RecordOutcome(governor.OutcomeFailure)
		}
		return "", err
	}

	p.gov.RecordOutcome(governor.OutcomeSuccess)
	p.metrics.RecordChunkProcessed(ctx, p.mode.Name, chunk.Duration)

	if err := p.cache.Save(ctx, chunk.Hash, &redis.CachedTranscript{
		Text:     resp.Text,
		Duration: chunk.Duration,
		Language: resp.Language,
	}); err != nil {
		p.log.Warn("transcript cache save failed", logger.ErrorFields("cache save", err))
	}
	return resp.Text, nil
}

// splitAndProcess cuts a persistently failing chunk into sub-chunks and
// transcribes each. A sub-chunk no longer than the mode's sub-chunk duration
// cannot split again, so recursion bottoms out after one level.
func (p *processor) splitAndProcess(ctx context.Context, jobID string, chunk audio.Chunk) (string, error) {
	if chunk.Duration <= p.mode.SubChunkDuration {
		return "", errors.TooShortToSplit(chunk.Duration, p.mode.SubChunkDuration)
	}

	splits, err := p.store.AddSplit(jobID)
	if err != nil {
		return "", err
	}
	if splits > p.mode.SplitBudget {
		return "", errors.BudgetExceeded("split", p.mode.SplitBudget)
	}
	p.metrics.RecordSplit(ctx, p.mode.Name)
	p.updateChunk(jobID, chunk.Index, job.ChunkUpdate{State: job.ChunkSplitting, WasSplit: true})

	subs, err := p.chunker.Split(ctx, jobID, chunk, p.mode.SubChunkDuration)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(subs))
	for _, sub := range subs {
		if p.store.IsCancelled(jobID) {
			return "", errors.Cancelled(jobID)
		}
		text, err := p.transcribeWithRetry(ctx, jobID, sub)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeCancelled) || !errors.IsRetryable(err) {
				return "", err
			}
			// One level deeper, then give up for good.
			text, err = p.splitAndProcess(ctx, jobID, sub)
			if err != nil {
				return "", err
			}
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, " "), nil
}

func (p *processor) completeChunk(ctx context.Context, jobID string, chunk audio.Chunk, text string) {
	p.updateChunk(jobID, chunk.Index, job.ChunkUpdate{
		State:      job.ChunkCompleted,
		Transcript: text,
	})
}

func (p *processor) failChunk(jobID string, index int, err error) {
	p.updateChunk(jobID, index, job.ChunkUpdate{
		State: job.ChunkFailed,
		Error: err.Error(),
	})
}

func (p *processor) updateChunk(jobID string, index int, update job.ChunkUpdate) {
	if err := p.store.UpdateChunkStatus(jobID, index, update); err != nil {
		p.log.Warn("chunk status update failed", logger.Fields(
			logger.FieldJobID, jobID,
			logger.FieldChunk, index,
			logger.FieldError, err.Error(),
		))
	}
}
