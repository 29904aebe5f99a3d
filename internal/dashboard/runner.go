// Package dashboard runs the named catalog queries behind the dashboard
// view. Queries run sequentially (the remote service does not tolerate
// concurrent chats) and individual failures do not abort the set.
package dashboard

import (
	"context"
	"time"

	"fleet-insights/internal/cache"
	"fleet-insights/internal/common/errors"
	"fleet-insights/internal/common/logger"
	"fleet-insights/internal/common/metrics"
	"fleet-insights/internal/models"
	"fleet-insights/pkg/catalog"
)

// Result is the outcome for one query key: an Insight, or the user-facing
// rendering of its failure.
type Result struct {
	Key         string             `json:"key"`
	Insight     *models.Insight    `json:"insight,omitempty"`
	Unavailable *errors.UserFacing `json:"unavailable,omitempty"`
}

// Querier runs one question end-to-end. Satisfied by *analytics.Client.
type Querier interface {
	Query(ctx context.Context, question string) (*models.Insight, error)
}

type Runner struct {
	client   Querier
	fallback *cache.Fallback
	catalog  *catalog.Catalog
	logger   logger.Logger
}

func NewRunner(client Querier, fallback *cache.Fallback, cat *catalog.Catalog, log logger.Logger) *Runner {
	return &Runner{
		client:   client,
		fallback: fallback,
		catalog:  cat,
		logger:   log.WithFields(map[string]interface{}{"component": "dashboard"}),
	}
}

// Run executes each named query through the cache layer and collects
// per-key results. A failed query yields an Unavailable result; the rest of
// the set still runs.
func (r *Runner) Run(ctx context.Context, keys []string) []Result {
	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		results = append(results, r.runOne(ctx, key))
	}
	return results
}

// RunAll executes every catalog query in catalog order.
func (r *Runner) RunAll(ctx context.Context) []Result {
	return r.Run(ctx, r.catalog.Keys())
}

func (r *Runner) runOne(ctx context.Context, key string) Result {
	entry, err := r.catalog.Lookup(key)
	if err != nil {
		r.logger.Warn("query key not in catalog", map[string]interface{}{"key": key})
		uf := errors.Translate(err)
		return Result{Key: key, Unavailable: &uf}
	}

	start := time.Now()
	insight, fromCache, err := cache.WithFallback(ctx, r.fallback, key, entry.TTLDuration(),
		func(ctx context.Context) (*models.Insight, error) {
			return r.client.Query(ctx, entry.Question)
		})
	if err != nil {
		metrics.QueriesFailed.WithLabelValues(key, string(errors.CodeOf(err))).Inc()
		r.logger.Error("dashboard query failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		uf := errors.Translate(err)
		return Result{Key: key, Unavailable: &uf}
	}

	metrics.QueriesCompleted.WithLabelValues(key).Inc()
	metrics.QueryDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())

	// The freshness flag is owned by the cache layer; upstream code never
	// infers staleness itself.
	insight.FromCache = fromCache

	return Result{Key: key, Insight: insight}
}
