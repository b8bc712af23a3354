package clinic

import (
	"context"
	"time"

	"github.com/jdavido74/medical-pro/internal/cache"
	"github.com/jdavido74/medical-pro/internal/scheduling"
)

// CacheKey is the cache entry holding the loaded clinic settings.
var CacheKey = cache.Key("clinic", "settings")

// CachedSource serves clinic settings from the process cache, falling back to
// the underlying source on a miss.
type CachedSource struct {
	source scheduling.ClinicSettingsSource
	cache  *cache.Cache
	ttl    time.Duration
}

func NewCachedSource(source scheduling.ClinicSettingsSource, c *cache.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: c, ttl: ttl}
}

func (s *CachedSource) ClinicSettings(ctx context.Context) (*scheduling.ClinicSettings, error) {
	return cache.Remember(ctx, s.cache, CacheKey, s.ttl, s.source.ClinicSettings)
}
