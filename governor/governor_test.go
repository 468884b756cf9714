package governor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/logger"
)

func testMode(maxConcurrent int) config.ModeConfig {
	mode := config.ModeConfig{
		Name:              "test",
		ChunkDuration:     180,
		SubChunkDuration:  60,
		MaxConcurrent:     maxConcurrent,
		DegradedThreshold: 3,
		RecoveryThreshold: 2,
		DegradedDelay:     time.Millisecond,
	}
	mode.ApplyDefaults()
	// Overlap defaults to zero, so parallel modes validate cleanly.
	return mode
}

func TestAcquire_ConcurrencyLimit(t *testing.T) {
	g := New(testMode(2), logger.NewDefault("test"))
	ctx := context.Background()

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			release()
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if s := g.Stats(); s.Attempts != 8 {
		t.Errorf("Attempts = %d, want 8", s.Attempts)
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	g := New(testMode(1), logger.NewDefault("test"))

	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Acquire(ctx); err == nil {
		t.Error("second Acquire() should fail while permit is held")
	}
}

func TestDegradedMode_EntryAndRecovery(t *testing.T) {
	g := New(testMode(4), logger.NewDefault("test"))

	// Two rejections are below the threshold of three.
	g.RecordOutcome(OutcomeRateLimited)
	g.RecordOutcome(OutcomeRateLimited)
	if g.Degraded() {
		t.Fatal("degraded before threshold")
	}

	g.RecordOutcome(OutcomeRateLimited)
	if !g.Degraded() {
		t.Fatal("not degraded after threshold run")
	}
	if s := g.Stats(); s.DegradedEntries != 1 {
		t.Errorf("DegradedEntries = %d, want 1", s.DegradedEntries)
	}

	// One success is below the recovery threshold of two.
	g.RecordOutcome(OutcomeSuccess)
	if !g.Degraded() {
		t.Fatal("recovered too early")
	}
	g.RecordOutcome(OutcomeSuccess)
	if g.Degraded() {
		t.Fatal("still degraded after recovery run")
	}
}

func TestDegradedMode_StreakResets(t *testing.T) {
	g := New(testMode(4), logger.NewDefault("test"))

	// A success in the middle resets the rate-limit streak.
	g.RecordOutcome(OutcomeRateLimited)
	g.RecordOutcome(OutcomeRateLimited)
	g.RecordOutcome(OutcomeSuccess)
	g.RecordOutcome(OutcomeRateLimited)
	g.RecordOutcome(OutcomeRateLimited)
	if g.Degraded() {
		t.Error("non-consecutive rejections should not trigger degraded mode")
	}

	// While degraded, a plain failure resets the recovery streak.
	g.RecordOutcome(OutcomeRateLimited)
	if !g.Degraded() {
		t.Fatal("expected degraded")
	}
	g.RecordOutcome(OutcomeSuccess)
	g.RecordOutcome(OutcomeFailure)
	g.RecordOutcome(OutcomeSuccess)
	if g.Degraded() == false {
		t.Error("failure mid-recovery should have reset the streak")
	}
}

func TestDegraded_SerializesPermits(t *testing.T) {
	g := New(testMode(4), logger.NewDefault("test"))
	for i := 0; i < 3; i++ {
		g.RecordOutcome(OutcomeRateLimited)
	}
	if !g.Degraded() {
		t.Fatal("expected degraded")
	}

	ctx := context.Background()
	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			release()
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p != 1 {
		t.Errorf("degraded peak concurrency = %d, want 1", p)
	}
}

func TestBackoff_Exponential(t *testing.T) {
	mode := config.ModeConfig{
		BackoffShape: config.BackoffExponential,
		BackoffBase:  2 * time.Second,
		BackoffMax:   30 * time.Second,
	}

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second,
	}
	for i, w := range want {
		if got := Backoff(mode, i+1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_Linear(t *testing.T) {
	mode := config.ModeConfig{
		BackoffShape:     config.BackoffLinear,
		BackoffBase:      time.Second,
		BackoffIncrement: 2 * time.Second,
	}

	want := []time.Duration{
		time.Second,
		3 * time.Second,
		5 * time.Second,
	}
	for i, w := range want {
		if got := Backoff(mode, i+1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}
