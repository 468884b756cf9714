// Package observability wires OpenTelemetry metrics for the transcription
// pipeline: an OTLP meter provider and the pipeline's counter and histogram
// instruments.
package observability
