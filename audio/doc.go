// Package audio provides a PCM-16 WAV codec, normalization to 16 kHz mono,
// and the mode-aware chunker that splits job audio into storage-backed
// segments with optional boundary overlap.
package audio
