// Package cache provides Redis-backed caching decorators for external
// lookups. Geocoding results are stable for months, so caching them cuts
// both latency and provider quota usage.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/geo"
)

// DefaultGeocodeTTL is how long resolved coordinates stay cached.
const DefaultGeocodeTTL = 30 * 24 * time.Hour

// GeocodeCacheConfig configures the geocode cache decorator.
type GeocodeCacheConfig struct {
	// Client is the Redis client (required).
	Client *redis.Client

	// Inner is the geocoder to decorate (required).
	Inner geo.Geocoder

	// TTL for cached entries (optional, defaults to DefaultGeocodeTTL).
	TTL time.Duration

	Logger zerolog.Logger
}

// GeocodeCache decorates a geocoder with a Redis read-through cache.
// Cache failures are fail-open: a Redis error degrades to a direct provider
// call, never to a geocoding failure.
type GeocodeCache struct {
	client *redis.Client
	inner  geo.Geocoder
	ttl    time.Duration
	logger zerolog.Logger
}

// NewGeocodeCache creates a caching geocoder decorator.
func NewGeocodeCache(cfg GeocodeCacheConfig) *GeocodeCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultGeocodeTTL
	}
	return &GeocodeCache{
		client: cfg.Client,
		inner:  cfg.Inner,
		ttl:    ttl,
		logger: cfg.Logger.With().Str("component", "geocode_cache").Logger(),
	}
}

// Name returns the decorated geocoder's name.
func (c *GeocodeCache) Name() string {
	return c.inner.Name()
}

type cachedCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Resolve returns the cached coordinate for the address, or resolves it
// through the inner geocoder and caches the result.
func (c *GeocodeCache) Resolve(ctx context.Context, address string) (geo.Coordinate, error) {
	key := cacheKey(address)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var cached cachedCoordinate
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			c.logger.Debug().Str("address", address).Msg("geocode cache hit")
			return geo.Coordinate{Lat: cached.Lat, Lon: cached.Lon}, nil
		}
		c.logger.Warn().Str("key", key).Msg("dropping corrupt geocode cache entry")
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Msg("geocode cache read failed, resolving directly")
	}

	coord, err := c.inner.Resolve(ctx, address)
	if err != nil {
		return geo.Coordinate{}, err
	}

	if raw, err := json.Marshal(cachedCoordinate{Lat: coord.Lat, Lon: coord.Lon}); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("geocode cache write failed")
		}
	}

	return coord, nil
}

func cacheKey(address string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	return fmt.Sprintf("geocode:%s", normalized)
}
