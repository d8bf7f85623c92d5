package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"lukechampine.com/blake3"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
)

const (
	// infoCacheKeyPrefix is the prefix for metadata cache keys in Redis.
	infoCacheKeyPrefix = "info:"
)

// infoJSON is the JSON representation of VideoInfo for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type infoJSON struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Uploader   string            `json:"uploader"`
	Duration   float64           `json:"duration"`
	ViewCount  int64             `json:"view_count"`
	Thumbnail  string            `json:"thumbnail"`
	WebpageURL string            `json:"webpage_url"`
	StreamURL  string            `json:"stream_url"`
	Formats    []json.RawMessage `json:"formats,omitempty"`
}

// RedisInfoCache implements InfoCache using Redis as the backing store.
type RedisInfoCache struct {
	client *redis.Client
}

// Compile-time verification that RedisInfoCache implements InfoCache.
var _ InfoCache = (*RedisInfoCache)(nil)

// NewRedisInfoCache creates a new Redis-backed metadata cache.
func NewRedisInfoCache(client *redis.Client) *RedisInfoCache {
	return &RedisInfoCache{
		client: client,
	}
}

// Get retrieves metadata from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisInfoCache) Get(ctx context.Context, sourceURL string) (*model.VideoInfo, error) {
	data, err := c.client.Get(ctx, c.buildKey(sourceURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	info, err := c.deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize info: %w", err)
	}

	return info, nil
}

// Set stores metadata in Redis cache with the specified TTL.
func (c *RedisInfoCache) Set(ctx context.Context, sourceURL string, info *model.VideoInfo, ttl time.Duration) error {
	data, err := c.serialize(info)
	if err != nil {
		return fmt.Errorf("serialize info: %w", err)
	}

	if err := c.client.Set(ctx, c.buildKey(sourceURL), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a source URL.
// URLs are hashed to keep keys short and free of separators.
func (c *RedisInfoCache) buildKey(sourceURL string) string {
	sum := blake3.Sum256([]byte(sourceURL))
	return infoCacheKeyPrefix + hex.EncodeToString(sum[:])
}

// serialize converts VideoInfo to JSON bytes.
func (c *RedisInfoCache) serialize(info *model.VideoInfo) ([]byte, error) {
	return json.Marshal(infoJSON{
		ID:         info.ID,
		Title:      info.Title,
		Uploader:   info.Uploader,
		Duration:   info.Duration,
		ViewCount:  info.ViewCount,
		Thumbnail:  info.Thumbnail,
		WebpageURL: info.WebpageURL,
		StreamURL:  info.StreamURL,
		Formats:    info.Formats,
	})
}

// deserialize converts JSON bytes to VideoInfo.
func (c *RedisInfoCache) deserialize(data []byte) (*model.VideoInfo, error) {
	var v infoJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	return &model.VideoInfo{
		ID:         v.ID,
		Title:      v.Title,
		Uploader:   v.Uploader,
		Duration:   v.Duration,
		ViewCount:  v.ViewCount,
		Thumbnail:  v.Thumbnail,
		WebpageURL: v.WebpageURL,
		StreamURL:  v.StreamURL,
		Formats:    v.Formats,
	}, nil
}
