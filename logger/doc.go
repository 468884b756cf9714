// Package logger provides structured logging for the transcription
// pipeline using zerolog.
//
// It supports JSON and console output formats, log level configuration,
// and component-scoped loggers with structured fields.
//
// # Usage
//
//	log := logger.Get("pipeline")
//	log.Info("job submitted", logger.Fields("job_id", id))
package logger
