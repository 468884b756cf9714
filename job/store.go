package job

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/transcription"
)

// CreateParams carries the validated inputs for a new job.
type CreateParams struct {
	OwnerID   string
	Filename  string
	Mode      string
	SizeBytes int64
	Duration  float64
}

// ChunkUpdate carries a partial update to one chunk's status. Zero-valued
// fields are left untouched.
type ChunkUpdate struct {
	State      ChunkState
	Attempts   int
	WasSplit   bool
	Transcript string
	Error      string
}

// Store is an in-memory job registry guarded by a single mutex. All reads
// return copies; callers never see live internal state.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	log  *logger.Logger
}

// NewStore creates an empty job store.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		log:  log.WithComponent("jobstore"),
	}
}

// Create registers a new job in pending state and returns a snapshot of it.
func (s *Store) Create(p CreateParams) (*Job, error) {
	if p.SizeBytes <= 0 {
		return nil, errors.InvalidInput("size_bytes", "must be positive")
	}
	if p.Mode == "" {
		return nil, errors.MissingField("mode")
	}

	now := time.Now()
	j := &Job{
		ID:        uuid.NewString(),
		OwnerID:   p.OwnerID,
		Filename:  p.Filename,
		Mode:      p.Mode,
		SizeBytes: p.SizeBytes,
		Duration:  p.Duration,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	s.log.Info("job created", map[string]interface{}{
		logger.FieldJobID: j.ID,
		logger.FieldMode:  j.Mode,
		"size_bytes":      j.SizeBytes,
	})
	return snapshot(j), nil
}

// Get returns a snapshot of the job, or a not-found error.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	return snapshot(j), nil
}

// UpdateStatus applies a lifecycle transition. Repeating the current status
// is a no-op; anything not on the transition table is rejected. Moving to
// failed records the error's code and message on the job.
func (s *Store) UpdateStatus(id string, status Status, jobErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if j.Status == status {
		return nil
	}
	if !isValidTransition(j.Status, status) {
		return errors.InvalidTransition(string(j.Status), string(status))
	}
	if status == StatusFailed && jobErr == nil {
		return errors.InvalidInput("error", "failed status requires an error")
	}

	j.Status = status
	j.UpdatedAt = time.Now()
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}
	if status == StatusFailed {
		j.ErrorCode = string(errors.CodeOf(jobErr))
		j.ErrorMessage = jobErr.Error()
	}

	s.log.Info("job status changed", map[string]interface{}{
		logger.FieldJobID:  id,
		logger.FieldStatus: string(status),
	})
	return nil
}

// InitializeChunks records the chunk plan. Only legal while the job is in
// chunking state, and only once.
func (s *Store) InitializeChunks(id string, descriptors []audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if j.Status != StatusChunking {
		return errors.InvalidState("initialize chunks", string(j.Status))
	}
	if j.TotalChunks > 0 {
		return errors.InvalidState("initialize chunks", "chunks already initialized")
	}
	if len(descriptors) == 0 {
		return errors.InvalidInput("chunks", "must not be empty")
	}

	now := time.Now()
	j.Descriptors = append([]audio.Chunk(nil), descriptors...)
	j.TotalChunks = len(descriptors)
	j.Chunks = make([]ChunkStatus, len(descriptors))
	for i := range j.Chunks {
		j.Chunks[i] = ChunkStatus{Index: i, State: ChunkPending, UpdatedAt: now}
	}
	j.UpdatedAt = now
	return nil
}

// UpdateChunkStatus merges a partial chunk update and recomputes the job's
// completed count and progress in the same critical section.
func (s *Store) UpdateChunkStatus(id string, index int, update ChunkUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if index < 0 || index >= len(j.Chunks) {
		return errors.InvalidInput("chunk_index", "out of range")
	}

	c := &j.Chunks[index]
	if update.State != "" {
		c.State = update.State
	}
	if update.Attempts > 0 {
		c.Attempts = update.Attempts
	}
	if update.WasSplit {
		c.WasSplit = true
	}
	if update.Transcript != "" {
		c.Transcript = update.Transcript
	}
	if update.Error != "" {
		c.Error = update.Error
	}
	c.UpdatedAt = time.Now()

	completed := 0
	for i := range j.Chunks {
		if j.Chunks[i].State == ChunkCompleted {
			completed++
		}
	}
	j.CompletedChunks = completed
	j.Progress = int(math.Round(100 * float64(completed) / float64(j.TotalChunks)))
	j.UpdatedAt = time.Now()
	return nil
}

// AddRetry increments the job-wide retry counter and returns the new total.
func (s *Store) AddRetry(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return 0, errors.NotFound("job", id)
	}
	j.RetryCount++
	return j.RetryCount, nil
}

// AddSplit increments the job-wide split counter and returns the new total.
func (s *Store) AddSplit(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return 0, errors.NotFound("job", id)
	}
	j.SplitCount++
	return j.SplitCount, nil
}

// SetTranscript stores the final assembled transcript. Setting it a second
// time is only allowed when the text is identical.
func (s *Store) SetTranscript(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if j.Transcript != "" && j.Transcript != text {
		return errors.InvalidState("set transcript", "transcript already set")
	}
	j.Transcript = text
	j.UpdatedAt = time.Now()
	return nil
}

// SetUtterances stores speaker-attributed utterances for a diarized job.
// Like SetTranscript, repeating the call with identical content is a no-op.
func (s *Store) SetUtterances(id string, utts []transcription.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if len(j.Utterances) > 0 && !slices.Equal(j.Utterances, utts) {
		return errors.InvalidState("set utterances", "utterances already set")
	}
	j.Utterances = append([]transcription.Utterance(nil), utts...)
	j.UpdatedAt = time.Now()
	return nil
}

// IsCancelled reports whether the job has been moved to cancelled state.
// Unknown jobs read as cancelled so in-flight work for evicted jobs stops.
func (s *Store) IsCancelled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return true
	}
	return j.Status == StatusCancelled
}

// ValidateOwnership checks that ownerID may act on the job. Jobs created
// without an owner are open to any caller holding the job ID.
func (s *Store) ValidateOwnership(id, ownerID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if j.OwnerID != "" && j.OwnerID != ownerID {
		return errors.NotFound("job", id)
	}
	return nil
}

// Sweep removes jobs whose last update is older than maxAge and returns the
// evicted IDs so the caller can release their stored chunks.
func (s *Store) Sweep(maxAge time.Duration) []string {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, j := range s.jobs {
		if j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		s.log.Info("swept stale jobs", map[string]interface{}{"count": len(evicted)})
	}
	return evicted
}

// StartSweeper runs Sweep every interval until ctx is done, invoking
// onEvict for each removed job.
func (s *Store) StartSweeper(ctx context.Context, interval, maxAge time.Duration, onEvict func(jobID string)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range s.Sweep(maxAge) {
					if onEvict != nil {
						onEvict(id)
					}
				}
			}
		}
	}()
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusChunking || to == StatusFailed || to == StatusCancelled
	case StatusChunking:
		return to == StatusTranscribing || to == StatusFailed || to == StatusCancelled
	case StatusTranscribing:
		return to == StatusAssembling || to == StatusFailed || to == StatusCancelled
	case StatusAssembling:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}

func snapshot(j *Job) *Job {
	cp := *j
	cp.Chunks = append([]ChunkStatus(nil), j.Chunks...)
	cp.Descriptors = append([]audio.Chunk(nil), j.Descriptors...)
	cp.Utterances = append([]transcription.Utterance(nil), j.Utterances...)
	return &cp
}
