// Package pipeline orchestrates transcription jobs end to end: accepting
// uploads, chunking audio, pacing provider calls through a per-job governor,
// retrying and auto-splitting failing chunks, and assembling the final
// transcript with overlap deduplication.
package pipeline
