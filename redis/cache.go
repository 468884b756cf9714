package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "scribe:transcript"

// CachedTranscript is the cache record for one chunk's transcription,
// keyed by the chunk's content hash.
type CachedTranscript struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"`
	Language string  `json:"language,omitempty"`
}

// TranscriptCache stores chunk transcriptions by audio content hash so a
// retried or re-submitted chunk with identical audio never hits the
// provider twice.
type TranscriptCache interface {
	// Load returns the cached transcription, or (nil, nil) on a miss.
	Load(ctx context.Context, hash string) (*CachedTranscript, error)

	// Save stores the transcription under the content hash.
	Save(ctx context.Context, hash string, t *CachedTranscript) error
}

// Cache implements TranscriptCache on a Redis client with a TTL.
type Cache struct {
	client *Client
	ttl    time.Duration
}

// NewCache creates a transcript cache. A TTL of 0 means entries never expire.
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(hash string) string {
	return cacheKeyPrefix + ":" + hash
}

// Load deserializes a cached transcription. Misses return (nil, nil).
func (c *Cache) Load(ctx context.Context, hash string) (*CachedTranscript, error) {
	raw, err := c.client.Get(ctx, cacheKey(hash))
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("transcript cache load %q: %w", hash, err)
	}

	var t CachedTranscript
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("transcript cache unmarshal %q: %w", hash, err)
	}
	return &t, nil
}

// Save serializes the transcription to JSON and stores it with the TTL.
func (c *Cache) Save(ctx context.Context, hash string, t *CachedTranscript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("transcript cache marshal %q: %w", hash, err)
	}
	if err := c.client.Set(ctx, cacheKey(hash), string(data), c.ttl); err != nil {
		return fmt.Errorf("transcript cache save %q: %w", hash, err)
	}
	return nil
}

// NoopCache is the TranscriptCache used when Redis is disabled. Every load
// is a miss and saves are dropped.
type NoopCache struct{}

func (NoopCache) Load(context.Context, string) (*CachedTranscript, error) { return nil, nil }
func (NoopCache) Save(context.Context, string, *CachedTranscript) error   { return nil }

var (
	_ TranscriptCache = (*Cache)(nil)
	_ TranscriptCache = NoopCache{}
)
