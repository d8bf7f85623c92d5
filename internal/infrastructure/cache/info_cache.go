package cache

import (
	"context"
	"time"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
)

// InfoCache defines the interface for caching extracted video metadata.
// Implementations should handle serialization/deserialization transparently.
type InfoCache interface {
	// Get retrieves metadata for a source URL.
	// Returns nil, nil if the URL is not found in cache (cache miss).
	Get(ctx context.Context, sourceURL string) (*model.VideoInfo, error)

	// Set stores metadata for a source URL with the specified TTL.
	Set(ctx context.Context, sourceURL string, info *model.VideoInfo, ttl time.Duration) error
}
