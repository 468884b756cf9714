package job

import (
	"fmt"
	"testing"
	"time"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/transcription"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(logger.NewDefault("test"))
}

func createTestJob(t *testing.T, s *Store) *Job {
	t.Helper()
	j, err := s.Create(CreateParams{Mode: "balanced", SizeBytes: 1024, Filename: "call.wav"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return j
}

func descriptors(n int) []audio.Chunk {
	chunks := make([]audio.Chunk, n)
	for i := range chunks {
		chunks[i] = audio.Chunk{Index: i, Start: float64(i) * 180, End: float64(i+1) * 180}
	}
	return chunks
}

func TestCreate_Validation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create(CreateParams{Mode: "balanced", SizeBytes: 0}); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("zero size: want invalid input, got %v", err)
	}
	if _, err := s.Create(CreateParams{SizeBytes: 10}); !errors.IsCode(err, errors.ErrCodeMissingField) {
		t.Errorf("missing mode: want missing field, got %v", err)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	steps := []Status{StatusChunking, StatusTranscribing, StatusAssembling, StatusCompleted}
	for _, st := range steps {
		if err := s.UpdateStatus(j.ID, st, nil); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}

	got, err := s.Get(j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.CompletedAt.IsZero() {
		t.Error("terminal job must record completion time")
	}
}

func TestUpdateStatus_InvalidTransitions(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	// Skipping stages is rejected.
	if err := s.UpdateStatus(j.ID, StatusAssembling, nil); !errors.IsCode(err, errors.ErrCodeInvalidTransition) {
		t.Errorf("pending -> assembling: want invalid transition, got %v", err)
	}

	// Repeating the current status is a no-op.
	if err := s.UpdateStatus(j.ID, StatusPending, nil); err != nil {
		t.Errorf("pending -> pending should be a no-op, got %v", err)
	}

	// Terminal states are sticky.
	if err := s.UpdateStatus(j.ID, StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.UpdateStatus(j.ID, StatusChunking, nil); !errors.IsCode(err, errors.ErrCodeInvalidTransition) {
		t.Errorf("cancelled -> chunking: want invalid transition, got %v", err)
	}
}

func TestUpdateStatus_FailedRequiresError(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	if err := s.UpdateStatus(j.ID, StatusFailed, nil); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("failed without error: want invalid input, got %v", err)
	}

	cause := errors.Provider("whisper", fmt.Errorf("boom"))
	if err := s.UpdateStatus(j.ID, StatusFailed, cause); err != nil {
		t.Fatalf("fail with error: %v", err)
	}
	got, _ := s.Get(j.ID)
	if got.ErrorCode != string(errors.ErrCodeProvider) {
		t.Errorf("ErrorCode = %q, want %q", got.ErrorCode, errors.ErrCodeProvider)
	}
}

func TestInitializeChunks(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	// Not legal before chunking.
	if err := s.InitializeChunks(j.ID, descriptors(3)); !errors.IsCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("init in pending: want invalid state, got %v", err)
	}

	s.UpdateStatus(j.ID, StatusChunking, nil)
	if err := s.InitializeChunks(j.ID, descriptors(3)); err != nil {
		t.Fatalf("InitializeChunks() error = %v", err)
	}

	// Only once.
	if err := s.InitializeChunks(j.ID, descriptors(3)); !errors.IsCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("double init: want invalid state, got %v", err)
	}

	got, _ := s.Get(j.ID)
	if got.TotalChunks != 3 || len(got.Chunks) != 3 {
		t.Errorf("TotalChunks = %d, len(Chunks) = %d, want 3, 3", got.TotalChunks, len(got.Chunks))
	}
	for i, c := range got.Chunks {
		if c.State != ChunkPending || c.Index != i {
			t.Errorf("chunk %d = %+v, want pending with matching index", i, c)
		}
	}
}

func TestUpdateChunkStatus_Progress(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)
	s.UpdateStatus(j.ID, StatusChunking, nil)
	s.InitializeChunks(j.ID, descriptors(3))

	wantProgress := []int{33, 67, 100}
	for i := 0; i < 3; i++ {
		if err := s.UpdateChunkStatus(j.ID, i, ChunkUpdate{State: ChunkCompleted, Transcript: "text"}); err != nil {
			t.Fatalf("UpdateChunkStatus(%d) error = %v", i, err)
		}
		got, _ := s.Get(j.ID)
		if got.CompletedChunks != i+1 {
			t.Errorf("after chunk %d: CompletedChunks = %d, want %d", i, got.CompletedChunks, i+1)
		}
		if got.Progress != wantProgress[i] {
			t.Errorf("after chunk %d: Progress = %d, want %d", i, got.Progress, wantProgress[i])
		}
	}
}

func TestUpdateChunkStatus_OutOfRange(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)
	s.UpdateStatus(j.ID, StatusChunking, nil)
	s.InitializeChunks(j.ID, descriptors(2))

	if err := s.UpdateChunkStatus(j.ID, 5, ChunkUpdate{State: ChunkCompleted}); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("want invalid input, got %v", err)
	}
}

func TestUpdateChunkStatus_SplitFlagSticks(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)
	s.UpdateStatus(j.ID, StatusChunking, nil)
	s.InitializeChunks(j.ID, descriptors(2))

	if err := s.UpdateChunkStatus(j.ID, 0, ChunkUpdate{State: ChunkSplitting, WasSplit: true}); err != nil {
		t.Fatalf("UpdateChunkStatus() error = %v", err)
	}
	// Later updates without the flag must not clear it.
	if err := s.UpdateChunkStatus(j.ID, 0, ChunkUpdate{State: ChunkCompleted, Transcript: "merged"}); err != nil {
		t.Fatalf("UpdateChunkStatus() error = %v", err)
	}

	got, _ := s.Get(j.ID)
	if !got.Chunks[0].WasSplit {
		t.Error("chunk 0 should keep its split flag after completing")
	}
	if got.Chunks[1].WasSplit {
		t.Error("chunk 1 was never split")
	}
	if got.Chunks[0].UpdatedAt.IsZero() {
		t.Error("updated chunk must carry a timestamp")
	}
}

func TestSetTranscript_Idempotent(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	if err := s.SetTranscript(j.ID, "hello"); err != nil {
		t.Fatalf("SetTranscript() error = %v", err)
	}
	if err := s.SetTranscript(j.ID, "hello"); err != nil {
		t.Errorf("identical rewrite should be allowed, got %v", err)
	}
	if err := s.SetTranscript(j.ID, "different"); !errors.IsCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("conflicting rewrite: want invalid state, got %v", err)
	}
}

func TestSetUtterances_Idempotent(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	utts := []transcription.Utterance{
		{Speaker: "S1", Start: 0, End: 2, Text: "Hello."},
		{Speaker: "S2", Start: 2, End: 4, Text: "Hi."},
	}
	if err := s.SetUtterances(j.ID, utts); err != nil {
		t.Fatalf("SetUtterances() error = %v", err)
	}
	if err := s.SetUtterances(j.ID, utts); err != nil {
		t.Errorf("identical rewrite should be allowed, got %v", err)
	}
	different := []transcription.Utterance{{Speaker: "S3", Start: 0, End: 1, Text: "No."}}
	if err := s.SetUtterances(j.ID, different); !errors.IsCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("conflicting rewrite: want invalid state, got %v", err)
	}
}

func TestValidateOwnership(t *testing.T) {
	s := newTestStore(t)

	owned, _ := s.Create(CreateParams{Mode: "balanced", SizeBytes: 10, OwnerID: "alice"})
	open, _ := s.Create(CreateParams{Mode: "balanced", SizeBytes: 10})

	if err := s.ValidateOwnership(owned.ID, "alice"); err != nil {
		t.Errorf("owner access: %v", err)
	}
	// Wrong owner reads as not-found so job IDs are not probeable.
	if err := s.ValidateOwnership(owned.ID, "bob"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("foreign access: want not found, got %v", err)
	}
	if err := s.ValidateOwnership(open.ID, "anyone"); err != nil {
		t.Errorf("ownerless job should accept any caller: %v", err)
	}
}

func TestBudgetCounters(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	for want := 1; want <= 3; want++ {
		got, err := s.AddRetry(j.ID)
		if err != nil || got != want {
			t.Fatalf("AddRetry() = %d, %v; want %d, nil", got, err, want)
		}
	}
	if got, _ := s.AddSplit(j.ID); got != 1 {
		t.Errorf("AddSplit() = %d, want 1", got)
	}
}

func TestSweep(t *testing.T) {
	s := newTestStore(t)
	stale := createTestJob(t, s)
	fresh := createTestJob(t, s)

	// Age the first job by rewriting its update time directly.
	s.mu.Lock()
	s.jobs[stale.ID].UpdatedAt = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	evicted := s.Sweep(time.Hour)
	if len(evicted) != 1 || evicted[0] != stale.ID {
		t.Fatalf("Sweep() = %v, want [%s]", evicted, stale.ID)
	}
	if _, err := s.Get(stale.ID); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Error("stale job should be gone")
	}
	if _, err := s.Get(fresh.ID); err != nil {
		t.Errorf("fresh job should survive: %v", err)
	}
}

func TestIsCancelled(t *testing.T) {
	s := newTestStore(t)
	j := createTestJob(t, s)

	if s.IsCancelled(j.ID) {
		t.Error("pending job reads as cancelled")
	}
	s.UpdateStatus(j.ID, StatusCancelled, nil)
	if !s.IsCancelled(j.ID) {
		t.Error("cancelled job reads as active")
	}
	if !s.IsCancelled("unknown") {
		t.Error("unknown job should read as cancelled")
	}
}
