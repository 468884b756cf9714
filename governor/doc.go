// Package governor paces provider calls per job: a concurrency semaphore,
// retry backoff curves, and a degraded mode that throttles to sequential
// delayed calls after repeated provider rate-limit rejections.
package governor
