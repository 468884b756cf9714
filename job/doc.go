// Package job holds the transcription job model: lifecycle states, per-chunk
// progress, and an in-memory store that enforces the state machine and keeps
// progress consistent with chunk completion.
package job
