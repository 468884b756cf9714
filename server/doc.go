// Package server exposes the transcription pipeline over HTTP: a Gin engine
// with recovery, request-ID, and request-logging middleware, a job API
// (submit, status, cancel), and AppError-aware response helpers.
package server
