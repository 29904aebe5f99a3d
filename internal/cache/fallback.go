// Package cache wraps any slow or unreliable producer with memory-cache,
// stale-cache and static-file-fallback semantics. It is the only layer
// allowed to convert a failure into a degraded success, and it always
// signals the degradation through the fromCache flag.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"fleet-insights/internal/common/errors"
	"fleet-insights/internal/common/logger"
	"fleet-insights/internal/common/metrics"
)

// Options configures a Fallback.
type Options struct {
	FallbackDir string
	DefaultTTL  time.Duration
	// DemoMode disables all live calls; only cache entries and fallback
	// files are served.
	DemoMode bool
	// StaleBias divides the TTL when seeding from a fallback file, so the
	// next call retries the producer sooner than a full TTL away. The
	// fraction is a tunable, not a contract.
	StaleBias int
}

// Fallback wraps a Store with the two-tier cache/fallback policy.
type Fallback struct {
	store  Store
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

func New(store Store, opts Options, log logger.Logger) *Fallback {
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = 15 * time.Minute
	}
	if opts.StaleBias < 1 {
		opts.StaleBias = 2
	}
	return &Fallback{
		store:  store,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "cache-fallback"}),
		now:    time.Now,
	}
}

// DemoMode reports whether live calls are disabled.
func (f *Fallback) DemoMode() bool {
	return f.opts.DemoMode
}

// WithFallback serves key from cache when fresh, otherwise runs the producer
// and degrades through stale cache and the static fallback directory.
//
// One key must not be shared across an expanding-search-window sequence: an
// empty-but-successful narrow result would be cached and then served
// verbatim for every wider window. Such call sites need one key per window.
func WithFallback[T any](ctx context.Context, f *Fallback, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if ttl <= 0 {
		ttl = f.opts.DefaultTTL
	}

	entry, err := f.store.Get(ctx, key)
	if err != nil {
		f.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		entry = nil
	}

	if entry != nil && f.now().Sub(entry.CachedAt) < ttl {
		var data T
		if err := json.Unmarshal(entry.Payload, &data); err == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return data, true, nil
		}
		f.logger.Warn("cache entry undecodable, discarding", map[string]interface{}{"key": key})
		entry = nil
	}

	if f.opts.DemoMode {
		metrics.CacheRequests.WithLabelValues("demo").Inc()
		return fromFallbackFile[T](ctx, f, key, ttl, true, nil)
	}

	data, prodErr := producer(ctx)
	if prodErr == nil {
		payload, err := json.Marshal(data)
		if err != nil {
			f.logger.Error("produced value not cacheable", map[string]interface{}{"key": key, "error": err.Error()})
			return data, false, nil
		}
		if err := f.store.Set(ctx, key, Entry{Payload: payload, CachedAt: f.now()}); err != nil {
			f.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return data, false, nil
	}

	// Graceful degradation beats hard failure whenever any prior data
	// exists, however stale.
	if entry != nil {
		var stale T
		if err := json.Unmarshal(entry.Payload, &stale); err == nil {
			f.logger.Warn("producer failed, serving stale cache entry", map[string]interface{}{
				"key":      key,
				"cachedAt": entry.CachedAt,
				"error":    prodErr.Error(),
			})
			metrics.CacheRequests.WithLabelValues("stale").Inc()
			return stale, true, nil
		}
	}

	result, fromCache, err := fromFallbackFile[T](ctx, f, key, ttl, false, prodErr)
	if err != nil {
		return zero, false, err
	}
	return result, fromCache, nil
}

// fromFallbackFile loads the pre-baked file for key and seeds the cache with
// a half-aged timestamp so the next call retries the producer promptly.
func fromFallbackFile[T any](ctx context.Context, f *Fallback, key string, ttl time.Duration, demo bool, prodErr error) (T, bool, error) {
	var zero T

	payload, found, err := loadFallbackFile(f.opts.FallbackDir, key)
	if err != nil {
		f.logger.Error("fallback file unreadable", map[string]interface{}{"key": key, "error": err.Error()})
		found = false
	}
	if !found {
		if demo {
			return zero, false, errors.Newf(errors.ErrCodeNoFallback, "no fallback for key %q", key)
		}
		// No prior data anywhere; the producer's original error goes back
		// unchanged.
		return zero, false, prodErr
	}

	var data T
	if err := json.Unmarshal(payload, &data); err != nil {
		f.logger.Error("fallback file is not shaped like the producer result", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		if demo {
			return zero, false, errors.Newf(errors.ErrCodeNoFallback, "fallback for key %q is unusable", key)
		}
		return zero, false, prodErr
	}

	cachedAt := f.now().Add(-ttl / time.Duration(f.opts.StaleBias))
	if err := f.store.Set(ctx, key, Entry{Payload: payload, CachedAt: cachedAt}); err != nil {
		f.logger.Warn("cache seed from fallback file failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	f.logger.Info("served fallback file", map[string]interface{}{"key": key, "demo": demo})
	metrics.CacheRequests.WithLabelValues("file").Inc()
	return data, true, nil
}

// Set seeds the cache without a producer, e.g. after a background prefetch.
func Set[T any](ctx context.Context, f *Fallback, key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return f.store.Set(ctx, key, Entry{Payload: payload, CachedAt: f.now()})
}

// Invalidate removes one key.
func (f *Fallback) Invalidate(ctx context.Context, key string) error {
	return f.store.Delete(ctx, key)
}

// InvalidateByPrefix bulk-clears a family of related keys.
func (f *Fallback) InvalidateByPrefix(ctx context.Context, prefix string) error {
	return f.store.DeleteByPrefix(ctx, prefix)
}
