package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/skillsenselab/scribe/logger"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := New(Config{Enabled: true, Addr: mr.Addr()}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewCache(client, time.Hour)
}

func TestCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	hash := "deadbeef"
	if got, err := cache.Load(ctx, hash); err != nil || got != nil {
		t.Fatalf("Load() on miss = %v, %v; want nil, nil", got, err)
	}

	want := &CachedTranscript{Text: "hello world", Duration: 180, Language: "en"}
	if err := cache.Save(ctx, hash, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := cache.Load(ctx, hash)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.Text != want.Text || got.Duration != want.Duration {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(Config{Enabled: true, Addr: mr.Addr()}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	if err := cache.Save(ctx, "abc", &CachedTranscript{Text: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)
	got, err := cache.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Error("entry should have expired")
	}
}

func TestNoopCache(t *testing.T) {
	var cache TranscriptCache = NoopCache{}
	ctx := context.Background()

	if err := cache.Save(ctx, "h", &CachedTranscript{Text: "x"}); err != nil {
		t.Errorf("Save() error = %v", err)
	}
	if got, err := cache.Load(ctx, "h"); err != nil || got != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", got, err)
	}
}
