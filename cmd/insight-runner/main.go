// cmd/insight-runner/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleet-insights/internal/analytics"
	"fleet-insights/internal/cache"
	"fleet-insights/internal/common/auth"
	"fleet-insights/internal/common/config"
	httpclient "fleet-insights/internal/common/http"
	"fleet-insights/internal/common/logger"
	"fleet-insights/internal/common/observability"
	"fleet-insights/internal/dashboard"
	"fleet-insights/internal/models"
	"fleet-insights/pkg/catalog"
)

func main() {
	question := flag.String("question", "", "Run a single ad-hoc question instead of the dashboard set")
	keysFlag := flag.String("keys", "", "Comma-separated catalog keys to run (default: all)")
	flag.Parse()

	bootLog := logger.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting insight runner...")

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			mux := nethttp.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := nethttp.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				zapLog.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	// --- Cache store: in-memory by default, Redis when configured ---
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Cache.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLog.Fatal("redis ping failed", zap.Error(err))
		}
		defer rdb.Close()
		store = cache.NewRedisStore(rdb)
		zapLog.Info("Redis cache store connected")
	}

	fallback := cache.New(store, cache.Options{
		FallbackDir: cfg.Cache.FallbackDir,
		DefaultTTL:  cfg.Cache.DefaultTTL,
		DemoMode:    cfg.Cache.DemoMode,
		StaleBias:   cfg.Cache.StaleBias,
	}, log)

	// --- Credentials collaborator ---
	var creds auth.Provider
	if cfg.Auth.TokenURL != "" {
		creds = auth.NewTokenProvider(cfg.Auth.TokenURL, cfg.Auth.ClientID, cfg.Auth.ClientSecret)
	} else {
		creds = &auth.StaticProvider{Token: cfg.Auth.StaticToken}
	}

	caller := analytics.NewHTTPCaller(
		cfg.Analytics.BaseURL,
		cfg.Analytics.ServiceID,
		httpclient.NewClient(cfg.Analytics.RequestTimeout),
	)

	client := analytics.NewClient(analytics.Config{
		CreateAttempts:   cfg.Analytics.CreateAttempts,
		CreateRetryDelay: cfg.Analytics.CreateRetryDelay,
		Poll: analytics.PollOptions{
			FirstDelay:  cfg.Analytics.Poll.FirstDelay,
			Interval:    cfg.Analytics.Poll.Interval,
			MaxAttempts: cfg.Analytics.Poll.MaxAttempts,
		},
	}, caller, creds, log, obs)

	if *question != "" {
		runAdhoc(ctx, zapLog, client, fallback, *question)
		return
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}

	runner := dashboard.NewRunner(client, fallback, cat, log)

	keys := cat.Keys()
	if *keysFlag != "" {
		keys = strings.Split(*keysFlag, ",")
	}

	results := runner.Run(ctx, keys)
	printJSON(results)
}

func runAdhoc(ctx context.Context, zapLog *zap.Logger, client *analytics.Client, fallback *cache.Fallback, question string) {
	key := fmt.Sprintf("adhoc:%s", question)
	insight, fromCache, err := cache.WithFallback(ctx, fallback, key, 5*time.Minute,
		func(ctx context.Context) (*models.Insight, error) {
			return client.Query(ctx, question)
		})
	if err != nil {
		zapLog.Fatal("query failed", zap.Error(err))
	}
	insight.FromCache = fromCache
	printJSON(insight)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
