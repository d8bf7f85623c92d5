package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
	"github.com/hszk-dev/tubeproxy/internal/infrastructure/cache"
	"github.com/hszk-dev/tubeproxy/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

// CachedMediaServiceConfig holds configuration for CachedMediaService.
type CachedMediaServiceConfig struct {
	// InfoCacheTTL is the TTL for metadata stored in the info cache.
	InfoCacheTTL time.Duration
}

// DefaultCachedMediaServiceConfig returns the default configuration.
func DefaultCachedMediaServiceConfig() CachedMediaServiceConfig {
	return CachedMediaServiceConfig{
		InfoCacheTTL: 10 * time.Minute,
	}
}

// CachedMediaService is a MediaService that also owns the stream cache.
type CachedMediaService interface {
	MediaService

	// SweepStreams runs a cleanup of the stream cache and returns the number of removed entries.
	SweepStreams(now time.Time) int

	// StreamEntries returns the number of entries in the stream cache, stale ones included.
	StreamEntries() int
}

// cachedMediaService wraps MediaService with caching capabilities.
// Stream lookups go through an in-memory expiring cache. Metadata lookups
// go through an optional info cache.
type cachedMediaService struct {
	delegate  MediaService
	streams   *cache.ExpiringCache[model.StreamResult]
	infoCache cache.InfoCache
	sfGroup   singleflight.Group

	infoCacheTTL time.Duration
	now          func() time.Time
}

// NewCachedMediaService creates a new CachedMediaService wrapping the provided MediaService.
// infoCache may be nil to disable metadata caching.
func NewCachedMediaService(
	delegate MediaService,
	streams *cache.ExpiringCache[model.StreamResult],
	infoCache cache.InfoCache,
	cfg CachedMediaServiceConfig,
) CachedMediaService {
	return newCachedMediaServiceWithClock(delegate, streams, infoCache, cfg, time.Now)
}

// newCachedMediaServiceWithClock creates a cachedMediaService with a given clock.
// This is used for dependency injection in tests.
func newCachedMediaServiceWithClock(
	delegate MediaService,
	streams *cache.ExpiringCache[model.StreamResult],
	infoCache cache.InfoCache,
	cfg CachedMediaServiceConfig,
	now func() time.Time,
) *cachedMediaService {
	return &cachedMediaService{
		delegate:     delegate,
		streams:      streams,
		infoCache:    infoCache,
		infoCacheTTL: cfg.InfoCacheTTL,
		now:          now,
	}
}

// Play serves stream lookups from the stream cache.
// The cache is swept first; on a miss the delegate is called once per URL
// across concurrent requests and only a successful result is stored.
func (s *cachedMediaService) Play(ctx context.Context, url string) (*model.StreamResult, error) {
	if err := model.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	s.SweepStreams(s.now())

	if cached, ok := s.streams.Get(url); ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeMemory).Inc()
		return &cached, nil
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeMemory).Inc()

	result, err, shared := s.sfGroup.Do("play:"+url, func() (any, error) {
		res, err := s.delegate.Play(ctx, url)
		if err != nil {
			return nil, err
		}
		s.streams.Put(url, *res)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeMemory).Inc()
		return *res, nil
	})
	recordSingleflight(shared)

	if err != nil {
		return nil, err
	}

	res := result.(model.StreamResult)
	return &res, nil
}

// GetInfo implements the cache-aside pattern over the info cache.
func (s *cachedMediaService) GetInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
	if s.infoCache == nil {
		return s.delegate.GetInfo(ctx, url)
	}

	if err := model.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	result, err, shared := s.sfGroup.Do("info:"+url, func() (any, error) {
		return s.getInfoWithCache(ctx, url)
	})
	recordSingleflight(shared)

	if err != nil {
		return nil, err
	}

	// Copy so callers cannot mutate a result shared across requests.
	info := *result.(*model.VideoInfo)
	return &info, nil
}

func (s *cachedMediaService) getInfoWithCache(ctx context.Context, url string) (*model.VideoInfo, error) {
	info, err := s.infoCache.Get(ctx, url)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		slog.Warn("info cache get failed, falling back to extractor",
			"url", url,
			"error", err,
		)
	}

	if info != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
		return info, nil
	}
	if err == nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()
	}

	info, err = s.delegate.GetInfo(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := s.infoCache.Set(ctx, url, info, s.infoCacheTTL); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		slog.Warn("failed to cache info",
			"url", url,
			"error", err,
		)
	} else {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	}

	return info, nil
}

// Search delegates to the underlying service. Results are not cached.
func (s *cachedMediaService) Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error) {
	return s.delegate.Search(ctx, query, limit)
}

// Trending delegates to the underlying service. Results are not cached.
func (s *cachedMediaService) Trending(ctx context.Context, region string) ([]json.RawMessage, error) {
	return s.delegate.Trending(ctx, region)
}

// DownloadFile delegates to the underlying service.
func (s *cachedMediaService) DownloadFile(ctx context.Context, input DownloadInput) (*DownloadOutput, error) {
	return s.delegate.DownloadFile(ctx, input)
}

// SweepStreams removes expired and overflowing stream cache entries.
func (s *cachedMediaService) SweepStreams(now time.Time) int {
	removed := s.streams.Cleanup(now)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpCleanup, metrics.CacheStatusSuccess, metrics.CacheTypeMemory).Inc()
	if removed > 0 {
		metrics.CacheEvictionsTotal.Add(float64(removed))
		slog.Debug("stream cache swept",
			"removed", removed,
			"remaining", s.streams.Len(),
		)
	}
	return removed
}

// StreamEntries returns the current stream cache size.
func (s *cachedMediaService) StreamEntries() int {
	return s.streams.Len()
}

func recordSingleflight(shared bool) {
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}
}
