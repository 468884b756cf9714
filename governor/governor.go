package governor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/logger"
)

// Outcome classifies the result of one provider call for the governor.
type Outcome int

const (
	// OutcomeSuccess is a completed provider call.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited is a call the provider rejected for pacing.
	OutcomeRateLimited
	// OutcomeFailure is any other failed call. It breaks a recovery streak
	// without deepening the rate-limit streak.
	OutcomeFailure
)

// Stats is a snapshot of a governor's counters.
type Stats struct {
	Attempts            int64 `json:"attempts"`
	Successes           int64 `json:"successes"`
	RateLimitRejections int64 `json:"rate_limit_rejections"`
	DegradedEntries     int64 `json:"degraded_entries"`
	Degraded            bool  `json:"degraded"`
	InFlight            int   `json:"in_flight"`
	PeakConcurrency     int   `json:"peak_concurrency"`
}

// Governor paces provider calls for one job. It combines a concurrency
// semaphore with a degraded mode that kicks in after a run of consecutive
// rate-limit rejections: while degraded, calls are serialized and each
// permit waits an extra delay, until enough consecutive successes
// accumulate to recover.
type Governor struct {
	mode config.ModeConfig
	sem  chan struct{}
	// single holds the one permit available while degraded.
	single chan struct{}
	log    *logger.Logger

	mu              sync.Mutex
	degraded        bool
	rateLimitStreak int
	successStreak   int
	inFlight        int
	stats           Stats
}

// New creates a governor for one job using the mode's pacing settings.
func New(mode config.ModeConfig, log *logger.Logger) *Governor {
	maxConcurrent := mode.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Governor{
		mode:   mode,
		sem:    make(chan struct{}, maxConcurrent),
		single: make(chan struct{}, 1),
		log:    log.WithComponent("governor"),
	}
}

// Acquire blocks until a permit is available or ctx is done, and returns the
// function that releases the permit. While degraded, permits are handed out
// one at a time and each waits the mode's degraded delay before being
// granted, which spaces calls out even at concurrency 1.
func (g *Governor) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	degraded := g.degraded
	delay := g.mode.DegradedDelay
	g.mu.Unlock()

	holdsSingle := false
	if degraded {
		select {
		case g.single <- struct{}{}:
			holdsSingle = true
		case <-ctx.Done():
			<-g.sem
			return nil, ctx.Err()
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				<-g.single
				<-g.sem
				return nil, ctx.Err()
			}
		}
	}

	g.mu.Lock()
	g.inFlight++
	g.stats.Attempts++
	g.stats.InFlight = g.inFlight
	if g.inFlight > g.stats.PeakConcurrency {
		g.stats.PeakConcurrency = g.inFlight
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.inFlight--
			g.stats.InFlight = g.inFlight
			g.mu.Unlock()
			if holdsSingle {
				<-g.single
			}
			<-g.sem
		})
	}, nil
}

// RecordOutcome feeds a provider call result into the degraded-mode state
// machine.
func (g *Governor) RecordOutcome(outcome Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch outcome {
	case OutcomeSuccess:
		g.stats.Successes++
		g.rateLimitStreak = 0
		if g.degraded {
			g.successStreak++
			if g.successStreak >= g.mode.RecoveryThreshold {
				g.degraded = false
				g.successStreak = 0
				g.stats.Degraded = false
				g.log.Info("governor recovered", map[string]interface{}{
					logger.FieldMode: g.mode.Name,
				})
			}
		}
	case OutcomeRateLimited:
		g.stats.RateLimitRejections++
		g.successStreak = 0
		g.rateLimitStreak++
		if !g.degraded && g.rateLimitStreak >= g.mode.DegradedThreshold {
			g.degraded = true
			g.stats.Degraded = true
			g.stats.DegradedEntries++
			g.log.Warn("governor entering degraded mode", map[string]interface{}{
				logger.FieldMode:  g.mode.Name,
				"rate_limit_runs": g.rateLimitStreak,
			})
		}
	case OutcomeFailure:
		g.successStreak = 0
		g.rateLimitStreak = 0
	}
}

// Degraded reports whether the governor is currently in degraded mode.
func (g *Governor) Degraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}

// Stats returns a snapshot of the governor's counters.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Backoff returns the delay before retry number attempt (1-based), following
// the mode's backoff shape: exponential doubling capped at the mode maximum,
// or linear growth by a fixed increment.
func Backoff(mode config.ModeConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch mode.BackoffShape {
	case config.BackoffLinear:
		return mode.BackoffBase + time.Duration(attempt-1)*mode.BackoffIncrement
	default:
		d := float64(mode.BackoffBase) * math.Pow(2, float64(attempt-1))
		if d > float64(mode.BackoffMax) {
			return mode.BackoffMax
		}
		return time.Duration(d)
	}
}
