package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/governor"
	"github.com/skillsenselab/scribe/job"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/observability"
	"github.com/skillsenselab/scribe/redis"
	"github.com/skillsenselab/scribe/transcription"
	"github.com/skillsenselab/scribe/usage"
	"github.com/skillsenselab/scribe/validation"
)

// SubmitRequest carries one audio upload into the pipeline.
type SubmitRequest struct {
	// Audio is the WAV-encoded recording.
	Audio []byte
	// Filename is the original upload name, kept for status reporting.
	Filename string
	// Mode selects the processing mode; empty means the configured default.
	Mode string
	// OwnerID ties the job to a caller. Empty creates an ownerless job
	// that anyone holding the job ID can inspect or cancel.
	OwnerID string
	// Language is an optional language hint passed to the provider.
	Language string
	// Diarize requests speaker-attributed utterances. Diarized jobs are
	// transcribed whole instead of chunked.
	Diarize bool
	// ProviderKey is an optional caller-supplied credential forwarded to
	// the transcription backend for this job only, overriding the
	// service-configured key.
	ProviderKey string
}

// StatusResponse is the external view of a job.
type StatusResponse struct {
	JobID           string                    `json:"job_id"`
	Status          job.Status                `json:"status"`
	Mode            string                    `json:"mode"`
	Filename        string                    `json:"filename,omitempty"`
	Progress        int                       `json:"progress"`
	CompletedChunks int                       `json:"completed_chunks"`
	TotalChunks     int                       `json:"total_chunks"`
	Chunks          []job.ChunkStatus         `json:"chunks,omitempty"`
	Transcript      string                    `json:"transcript,omitempty"`
	Utterances      []transcription.Utterance `json:"utterances,omitempty"`
	ErrorCode       string                    `json:"error_code,omitempty"`
	ErrorMessage    string                    `json:"error_message,omitempty"`
	Governor        *governor.Stats           `json:"governor,omitempty"`
}

// Params collects the Service dependencies.
type Params struct {
	Config   config.PipelineSection
	Store    *job.Store
	Chunker  *audio.Chunker
	Provider transcription.Provider
	Cache    redis.TranscriptCache
	Tracker  usage.Tracker
	Metrics  *observability.PipelineMetrics
	Logger   *logger.Logger
}

// Service is the transcription pipeline entry point: it accepts uploads,
// runs each job in the background, and answers status and cancel calls.
type Service struct {
	cfg      config.PipelineSection
	store    *job.Store
	chunker  *audio.Chunker
	provider transcription.Provider
	cache    redis.TranscriptCache
	tracker  usage.Tracker
	metrics  *observability.PipelineMetrics
	log      *logger.Logger

	mu        sync.Mutex
	governors map[string]*governor.Governor
	cancels   map[string]context.CancelFunc
}

// New creates the pipeline service. Store, Chunker, and Provider are
// required; Cache and Tracker default to no-ops when nil.
func New(p Params) (*Service, error) {
	if p.Store == nil || p.Chunker == nil || p.Provider == nil {
		return nil, fmt.Errorf("pipeline: store, chunker, and provider are required")
	}
	if p.Cache == nil {
		p.Cache = redis.NoopCache{}
	}
	if p.Tracker == nil {
		p.Tracker = usage.Noop{}
	}
	if p.Logger == nil {
		p.Logger = logger.NewDefault("scribe")
	}
	p.Config.ApplyDefaults()
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:       p.Config,
		store:     p.Store,
		chunker:   p.Chunker,
		provider:  p.Provider,
		cache:     p.Cache,
		tracker:   p.Tracker,
		metrics:   p.Metrics,
		log:       p.Logger.WithComponent("pipeline"),
		governors: make(map[string]*governor.Governor),
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// Start launches the background sweeper that evicts stale jobs and releases
// their stored chunks. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	s.store.StartSweeper(ctx, s.cfg.SweepInterval, s.cfg.MaxJobAge, func(jobID string) {
		if err := s.chunker.Cleanup(context.Background(), jobID); err != nil {
			s.log.Warn("evicted job cleanup failed", logger.ErrorFields("cleanup", err))
		}
		// Eviction is the one place the run context is cancelled outright:
		// the job record is gone, so there is nothing left to finish for.
		s.mu.Lock()
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
			delete(s.cancels, jobID)
		}
		delete(s.governors, jobID)
		s.mu.Unlock()
	})
}

// submitCheck is the validated shape of a submit request.
type submitCheck struct {
	Mode      string  `json:"mode" validate:"required"`
	SizeBytes int64   `json:"size_bytes" validate:"gt=0"`
	Duration  float64 `json:"duration" validate:"gt=0"`
}

// Submit validates the upload, registers a job, and starts processing in the
// background. It returns the job ID as soon as the job is accepted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", errors.MissingField("audio")
	}
	if int64(len(req.Audio)) > s.cfg.MaxUploadBytes {
		return "", errors.InvalidInput("audio",
			fmt.Sprintf("upload of %d bytes exceeds the %d byte limit", len(req.Audio), s.cfg.MaxUploadBytes))
	}

	mode, ok := s.cfg.Mode(req.Mode)
	if !ok {
		return "", errors.InvalidInput("mode", fmt.Sprintf("unknown mode %q", req.Mode))
	}

	duration, err := audio.Duration(req.Audio)
	if err != nil {
		return "", err
	}
	if duration > s.cfg.MaxAudioDuration {
		return "", errors.InvalidInput("audio",
			fmt.Sprintf("duration %.1fs exceeds the %.1fs limit", duration, s.cfg.MaxAudioDuration))
	}

	if err := validation.Validate(submitCheck{
		Mode:      mode.Name,
		SizeBytes: int64(len(req.Audio)),
		Duration:  duration,
	}); err != nil {
		return "", err
	}

	j, err := s.store.Create(job.CreateParams{
		OwnerID:   req.OwnerID,
		Filename:  req.Filename,
		Mode:      mode.Name,
		SizeBytes: int64(len(req.Audio)),
		Duration:  duration,
	})
	if err != nil {
		return "", err
	}

	gov := governor.New(mode, s.log)
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.governors[j.ID] = gov
	s.cancels[j.ID] = cancel
	s.mu.Unlock()

	s.metrics.RecordJobSubmitted(ctx, mode.Name)
	s.log.Info("job submitted", logger.Fields(
		logger.FieldJobID, j.ID,
		logger.FieldMode, mode.Name,
		"duration", duration,
	))

	go s.run(runCtx, runParams{
		jobID:       j.ID,
		audio:       req.Audio,
		mode:        mode,
		language:    req.Language,
		diarize:     req.Diarize,
		duration:    duration,
		providerKey: req.ProviderKey,
	})
	return j.ID, nil
}

// GetStatus returns the job's current state, progress, transcript when
// complete, and the governor's pacing statistics.
func (s *Service) GetStatus(jobID, ownerID string) (*StatusResponse, error) {
	if err := s.store.ValidateOwnership(jobID, ownerID); err != nil {
		return nil, err
	}
	j, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{
		JobID:           j.ID,
		Status:          j.Status,
		Mode:            j.Mode,
		Filename:        j.Filename,
		Progress:        j.Progress,
		CompletedChunks: j.CompletedChunks,
		TotalChunks:     j.TotalChunks,
		Chunks:          j.Chunks,
		ErrorCode:       j.ErrorCode,
		ErrorMessage:    j.ErrorMessage,
	}
	if j.Status == job.StatusCompleted {
		resp.Transcript = j.Transcript
		resp.Utterances = j.Utterances
	}

	s.mu.Lock()
	gov, ok := s.governors[jobID]
	s.mu.Unlock()
	if ok {
		stats := gov.Stats()
		resp.Governor = &stats
	}
	return resp, nil
}

// Cancel stops a job cooperatively. Terminal jobs cannot be cancelled. An
// in-flight provider call is left to finish or fail on its own; the
// processing loop observes the cancelled status before picking up the next
// chunk, and the background run releases the job's stored chunks.
func (s *Service) Cancel(jobID, ownerID string) error {
	if err := s.store.ValidateOwnership(jobID, ownerID); err != nil {
		return err
	}
	j, err := s.store.Get(jobID)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() {
		return errors.InvalidState("cancel", string(j.Status))
	}
	if err := s.store.UpdateStatus(jobID, job.StatusCancelled, nil); err != nil {
		return err
	}

	// Pending jobs have no background run to do the cleanup.
	if j.Status == job.StatusPending {
		if err := s.chunker.Cleanup(context.Background(), jobID); err != nil {
			s.log.Warn("chunk cleanup failed", logger.ErrorFields("cleanup", err))
		}
	}

	s.log.Info("job cancel requested", logger.Fields(logger.FieldJobID, jobID))
	return nil
}

// governorFor returns the job's governor, creating one if Submit did not
// (which only happens in tests that drive run directly).
func (s *Service) governorFor(jobID string) *governor.Governor {
	s.mu.Lock()
	defer s.mu.Unlock()
	gov, ok := s.governors[jobID]
	if !ok {
		mode, _ := s.cfg.Mode("")
		gov = governor.New(mode, s.log)
		s.governors[jobID] = gov
	}
	return gov
}

func (s *Service) forgetCancel(jobID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
	s.mu.Unlock()
}
