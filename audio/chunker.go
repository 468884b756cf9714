package audio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/storage"
)

// Chunk describes one stored segment of a job's audio.
type Chunk struct {
	// Index is the zero-based position of the chunk in the source timeline.
	Index int `json:"index"`
	// Start is the nominal start offset in source seconds.
	Start float64 `json:"start"`
	// End is the nominal end offset in source seconds. Chunks tile the
	// source: each chunk's End equals the next chunk's Start.
	End float64 `json:"end"`
	// Duration is End - Start, excluding any overlap tail.
	Duration float64 `json:"duration"`
	// HasOverlap reports whether the stored audio extends past End into
	// the following segment.
	HasOverlap bool `json:"has_overlap"`
	// AudioEnd is the actual end of the stored audio, including overlap.
	AudioEnd float64 `json:"audio_end"`
	// Hash is the hex-encoded SHA-256 of the stored WAV bytes. Used as the
	// idempotency cache key.
	Hash string `json:"hash"`
	// StoragePath is where the chunk WAV lives in the storage backend.
	StoragePath string `json:"storage_path"`
	// SizeBytes is the stored WAV size.
	SizeBytes int64 `json:"size_bytes"`
}

// Chunker splits normalized audio into mode-sized segments and persists
// them to the storage backend.
type Chunker struct {
	store storage.ByteClient
	log   *logger.Logger
}

// NewChunker creates a chunker writing segments through the given store.
func NewChunker(store storage.ByteClient, log *logger.Logger) *Chunker {
	return &Chunker{
		store: store,
		log:   log.WithComponent("chunker"),
	}
}

// Chunk normalizes wavData to 16 kHz mono, splits it according to the mode's
// chunk and overlap durations, and uploads each segment. Segment boundaries
// tile the source exactly; overlap audio is appended past each boundary
// (except the last chunk) without shifting the boundaries themselves.
func (c *Chunker) Chunk(ctx context.Context, jobID string, wavData []byte, mode config.ModeConfig) ([]Chunk, error) {
	samples, err := Normalize(wavData)
	if err != nil {
		return nil, err
	}

	rate := TargetSampleRate
	total := len(samples)
	chunkSamples := int(mode.ChunkDuration * float64(rate))
	overlapSamples := int(mode.OverlapDuration * float64(rate))
	if chunkSamples <= 0 {
		return nil, errors.InvalidInput("mode", "chunk duration too small for sample rate")
	}

	var chunks []Chunk
	for start := 0; start < total; start += chunkSamples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + chunkSamples
		if end > total {
			end = total
		}

		audioEnd := end
		hasOverlap := overlapSamples > 0 && end < total
		if hasOverlap {
			audioEnd = end + overlapSamples
			if audioEnd > total {
				audioEnd = total
			}
		}

		index := len(chunks)
		encoded, err := EncodeWAV(samples[start:audioEnd], rate)
		if err != nil {
			return nil, fmt.Errorf("audio: encode chunk %d: %w", index, err)
		}

		path := chunkPath(jobID, index)
		if err := c.store.Upload(ctx, path, encoded); err != nil {
			return nil, errors.Storage("upload chunk", err)
		}

		sum := sha256.Sum256(encoded)
		chunks = append(chunks, Chunk{
			Index:       index,
			Start:       float64(start) / float64(rate),
			End:         float64(end) / float64(rate),
			Duration:    float64(end-start) / float64(rate),
			HasOverlap:  hasOverlap,
			AudioEnd:    float64(audioEnd) / float64(rate),
			Hash:        hex.EncodeToString(sum[:]),
			StoragePath: path,
			SizeBytes:   int64(len(encoded)),
		})
	}

	if len(chunks) == 0 {
		return nil, errors.InvalidInput("audio", "no audio to chunk")
	}

	c.log.Debug("audio chunked", map[string]interface{}{
		logger.FieldJobID: jobID,
		"chunks":          len(chunks),
		"mode":            mode.Name,
	})
	return chunks, nil
}

// Split downloads a stored chunk and re-splits it into shorter sub-chunks of
// the mode's sub-chunk duration, without overlap. Sub-chunks keep the parent
// index and tile the parent's audio span exactly.
func (c *Chunker) Split(ctx context.Context, jobID string, parent Chunk, subDuration float64) ([]Chunk, error) {
	data, err := c.store.Download(ctx, parent.StoragePath)
	if err != nil {
		return nil, errors.Storage("download chunk for split", err)
	}

	samples, rate, channels, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	samples = Downmix(samples, channels)

	subSamples := int(subDuration * float64(rate))
	if subSamples <= 0 || subSamples >= len(samples) {
		return nil, errors.InvalidInput("sub_chunk_duration",
			fmt.Sprintf("%f seconds does not split a %d-sample chunk", subDuration, len(samples)))
	}

	var subs []Chunk
	for start := 0; start < len(samples); start += subSamples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + subSamples
		if end > len(samples) {
			end = len(samples)
		}

		encoded, err := EncodeWAV(samples[start:end], rate)
		if err != nil {
			return nil, fmt.Errorf("audio: encode sub-chunk %d of chunk %d: %w", len(subs), parent.Index, err)
		}

		path := subChunkPath(jobID, parent.Index, len(subs))
		if err := c.store.Upload(ctx, path, encoded); err != nil {
			return nil, errors.Storage("upload sub-chunk", err)
		}

		sum := sha256.Sum256(encoded)
		startSec := parent.Start + float64(start)/float64(rate)
		endSec := parent.Start + float64(end)/float64(rate)
		subs = append(subs, Chunk{
			Index:       parent.Index,
			Start:       startSec,
			End:         endSec,
			Duration:    endSec - startSec,
			Hash:        hex.EncodeToString(sum[:]),
			StoragePath: path,
			SizeBytes:   int64(len(encoded)),
		})
	}

	c.log.Info("chunk split", map[string]interface{}{
		logger.FieldJobID: jobID,
		logger.FieldChunk: parent.Index,
		"sub_chunks":      len(subs),
	})
	return subs, nil
}

// Fetch returns the stored WAV bytes for a chunk.
func (c *Chunker) Fetch(ctx context.Context, chunk Chunk) ([]byte, error) {
	data, err := c.store.Download(ctx, chunk.StoragePath)
	if err != nil {
		return nil, errors.Storage("download chunk", err)
	}
	return data, nil
}

// Cleanup removes every stored segment belonging to a job. It is safe to
// call repeatedly; missing objects are not an error.
func (c *Chunker) Cleanup(ctx context.Context, jobID string) error {
	if err := c.store.DeletePrefix(ctx, chunkPrefix(jobID)); err != nil {
		return errors.Storage("cleanup chunks", err)
	}
	return nil
}

func chunkPrefix(jobID string) string {
	return fmt.Sprintf("jobs/%s/", jobID)
}

func chunkPath(jobID string, index int) string {
	return fmt.Sprintf("jobs/%s/chunk-%03d.wav", jobID, index)
}

func subChunkPath(jobID string, index, sub int) string {
	return fmt.Sprintf("jobs/%s/chunk-%03d-sub-%02d.wav", jobID, index, sub)
}
