package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/governor"
	"github.com/skillsenselab/scribe/job"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/transcription"
	"github.com/skillsenselab/scribe/usage"
)

// runParams carries the per-job inputs from Submit into the background run.
type runParams struct {
	jobID       string
	audio       []byte
	mode        config.ModeConfig
	language    string
	diarize     bool
	duration    float64
	providerKey string
}

// run drives one job from pending to a terminal state. It owns the job's
// stored chunks: whatever happens, they are cleaned up before run returns.
func (s *Service) run(ctx context.Context, p runParams) {
	started := time.Now()
	outcome := "completed"
	defer func() {
		s.metrics.RecordJobFinished(context.Background(), p.mode.Name, outcome, time.Since(started))
		s.forgetCancel(p.jobID)
	}()

	err := s.execute(ctx, p)
	if err == nil {
		return
	}

	if errors.IsCode(err, errors.ErrCodeCancelled) || s.store.IsCancelled(p.jobID) {
		outcome = "cancelled"
		s.log.Info("job cancelled", logger.Fields(logger.FieldJobID, p.jobID))
	} else {
		outcome = "failed"
		if ferr := s.store.UpdateStatus(p.jobID, job.StatusFailed, err); ferr != nil {
			s.log.Error("failed to record job failure", logger.ErrorFields("update status", ferr))
		}
		s.log.Error("job failed", logger.Fields(
			logger.FieldJobID, p.jobID,
			logger.FieldError, err.Error(),
		))
	}

	// Best-effort cleanup on every non-completed exit.
	if cerr := s.chunker.Cleanup(context.Background(), p.jobID); cerr != nil {
		s.log.Warn("chunk cleanup failed", logger.ErrorFields("cleanup", cerr))
	}
}

// execute performs the chunk, transcribe, and assemble stages.
func (s *Service) execute(ctx context.Context, p runParams) error {
	if err := s.store.UpdateStatus(p.jobID, job.StatusChunking, nil); err != nil {
		return err
	}

	mode := p.mode
	if p.diarize {
		// Diarized jobs go to the provider whole so speaker labels stay
		// consistent across the recording. The chunker still runs so the
		// audio is normalized and stored with the usual cleanup path, but
		// the oversized chunk duration yields exactly one chunk and no
		// overlap or splitting applies.
		mode.ChunkDuration = p.duration + 1
		mode.OverlapDuration = 0
	}

	chunks, err := s.chunker.Chunk(ctx, p.jobID, p.audio, mode)
	if err != nil {
		return err
	}
	if err := s.store.InitializeChunks(p.jobID, chunks); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(p.jobID, job.StatusTranscribing, nil); err != nil {
		return err
	}

	proc := &processor{
		chunker:     s.chunker,
		provider:    s.provider,
		cache:       s.cache,
		store:       s.store,
		gov:         s.governorFor(p.jobID),
		mode:        mode,
		language:    p.language,
		providerKey: p.providerKey,
		metrics:     s.metrics,
		log:         s.log,
	}

	var (
		texts      []string
		utterances []transcription.Utterance
	)
	if p.diarize {
		utterances, texts, err = s.transcribeDiarized(ctx, proc, p.jobID, chunks[0])
	} else {
		texts, err = s.transcribeChunks(ctx, proc, p.jobID, chunks, mode)
	}
	if err != nil {
		return err
	}

	if err := s.store.UpdateStatus(p.jobID, job.StatusAssembling, nil); err != nil {
		return err
	}
	transcript := Assemble(chunks, texts, mode.OverlapDuration)
	if err := s.store.SetTranscript(p.jobID, transcript); err != nil {
		return err
	}
	if len(utterances) > 0 {
		if err := s.store.SetUtterances(p.jobID, utterances); err != nil {
			return err
		}
	}

	if err := s.chunker.Cleanup(ctx, p.jobID); err != nil {
		s.log.Warn("chunk cleanup failed", logger.ErrorFields("cleanup", err))
	}
	if err := s.store.UpdateStatus(p.jobID, job.StatusCompleted, nil); err != nil {
		return err
	}

	s.recordUsage(ctx, p.jobID, mode)
	return nil
}

// transcribeChunks processes every chunk. Modes with overlap run strictly in
// index order; parallel modes fan out and let the governor cap concurrency.
func (s *Service) transcribeChunks(ctx context.Context, proc *processor, jobID string, chunks []audio.Chunk, mode config.ModeConfig) ([]string, error) {
	texts := make([]string, len(chunks))

	if mode.MaxConcurrent <= 1 {
		for _, chunk := range chunks {
			if s.store.IsCancelled(jobID) {
				return nil, errors.Cancelled(jobID)
			}
			text, err := proc.processChunk(ctx, jobID, chunk)
			if err != nil {
				return nil, err
			}
			texts[chunk.Index] = text
		}
		return texts, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk audio.Chunk) {
			defer wg.Done()

			mu.Lock()
			stop := firstErr != nil
			mu.Unlock()
			if stop || s.store.IsCancelled(jobID) {
				return
			}

			text, err := proc.processChunk(ctx, jobID, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			texts[chunk.Index] = text
		}(chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if s.store.IsCancelled(jobID) {
		return nil, errors.Cancelled(jobID)
	}
	return texts, nil
}

// transcribeDiarized sends the whole recording in one governed call and
// returns speaker-attributed utterances alongside the plain text.
func (s *Service) transcribeDiarized(ctx context.Context, proc *processor, jobID string, chunk audio.Chunk) ([]transcription.Utterance, []string, error) {
	data, err := s.chunker.Fetch(ctx, chunk)
	if err != nil {
		return nil, nil, err
	}

	release, err := proc.gov.Acquire(ctx)
	if err != nil {
		return nil, nil, errors.Cancelled(jobID)
	}
	resp, err := s.provider.Transcribe(ctx, transcription.Request{
		Audio:    data,
		Filename: chunk.StoragePath,
		Language: proc.language,
		APIKey:   proc.providerKey,
		Diarize:  true,
	})
	release()
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeProviderRateLimited) {
			proc.gov.RecordOutcome(governor.OutcomeRateLimited)
		} else {
			proc.gov.RecordOutcome(governor.OutcomeFailure)
		}
		return nil, nil, err
	}
	proc.gov.RecordOutcome(governor.OutcomeSuccess)

	proc.completeChunk(ctx, jobID, chunk, resp.Text)
	return resp.Utterances, []string{resp.Text}, nil
}

func (s *Service) recordUsage(ctx context.Context, jobID string, mode config.ModeConfig) {
	j, err := s.store.Get(jobID)
	if err != nil {
		return
	}
	event := usage.Event{
		JobID:           j.ID,
		OwnerID:         j.OwnerID,
		Mode:            mode.Name,
		DurationSeconds: j.Duration,
		Chunks:          j.TotalChunks,
		Retries:         j.RetryCount,
		Timestamp:       time.Now(),
	}
	if err := s.tracker.Record(ctx, event); err != nil {
		s.log.Warn("usage event dropped", logger.ErrorFields("usage record", err))
	}
}
