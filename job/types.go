package job

import (
	"time"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/transcription"
)

// Status is the lifecycle state of a transcription job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusChunking     Status = "chunking"
	StatusTranscribing Status = "transcribing"
	StatusAssembling   Status = "assembling"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal jobs accept no
// further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ChunkState is the processing state of one chunk.
type ChunkState string

const (
	ChunkPending    ChunkState = "pending"
	ChunkInProgress ChunkState = "in_progress"
	ChunkRetrying   ChunkState = "retrying"
	ChunkSplitting  ChunkState = "splitting"
	ChunkCompleted  ChunkState = "completed"
	ChunkFailed     ChunkState = "failed"
)

// ChunkStatus tracks one chunk's progress through the processor.
type ChunkStatus struct {
	Index      int        `json:"index"`
	State      ChunkState `json:"state"`
	Attempts   int        `json:"attempts"`
	WasSplit   bool       `json:"was_split,omitempty"`
	Transcript string     `json:"transcript,omitempty"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
}

// Job is the full record of a transcription job.
type Job struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Mode     string `json:"mode"`

	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration,omitempty"`

	Status          Status        `json:"status"`
	TotalChunks     int           `json:"total_chunks"`
	CompletedChunks int           `json:"completed_chunks"`
	Progress        int           `json:"progress"`
	Chunks          []ChunkStatus `json:"chunks,omitempty"`
	Descriptors     []audio.Chunk `json:"-"`

	// RetryCount and SplitCount accumulate across all chunks and are
	// checked against the mode's job-wide budgets.
	RetryCount int `json:"retry_count"`
	SplitCount int `json:"split_count"`

	Transcript string                    `json:"transcript,omitempty"`
	Utterances []transcription.Utterance `json:"utterances,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
