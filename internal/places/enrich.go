// Package places enriches coordinates with a human-readable place label.
// The cache key is derived from rounded coordinates so nearby points reuse
// one cached answer instead of producing a lookup per GPS fix.
package places

import (
	"context"
	"fmt"
	"time"

	"fleet-insights/internal/cache"
	"fleet-insights/internal/common/logger"
)

// Place is the enrichment result for one coordinate neighborhood.
type Place struct {
	Label     string  `json:"label"`
	Locality  string  `json:"locality,omitempty"`
	Region    string  `json:"region,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolver is the slow reverse-geocoding collaborator.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (*Place, error)
}

// CacheKey rounds to ~100m so nearby fixes share a cache entry.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("places:%.3f,%.3f", lat, lon)
}

// Enricher wraps a Resolver with the shared cache/fallback layer.
type Enricher struct {
	resolver Resolver
	fallback *cache.Fallback
	ttl      time.Duration
	logger   logger.Logger
}

func NewEnricher(resolver Resolver, fallback *cache.Fallback, ttl time.Duration, log logger.Logger) *Enricher {
	return &Enricher{
		resolver: resolver,
		fallback: fallback,
		ttl:      ttl,
		logger:   log.WithFields(map[string]interface{}{"component": "places"}),
	}
}

// Enrich resolves a coordinate, serving from cache whenever a nearby point
// was already resolved.
func (e *Enricher) Enrich(ctx context.Context, lat, lon float64) (*Place, bool, error) {
	key := CacheKey(lat, lon)
	return cache.WithFallback(ctx, e.fallback, key, e.ttl,
		func(ctx context.Context) (*Place, error) {
			return e.resolver.Resolve(ctx, lat, lon)
		})
}

// InvalidateArea clears every cached place, e.g. after a map-data refresh.
func (e *Enricher) InvalidateArea(ctx context.Context) error {
	return e.fallback.InvalidateByPrefix(ctx, "places:")
}
