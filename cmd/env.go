package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/cache"
	"github.com/sells-group/leadgen-mx/internal/dedup"
	"github.com/sells-group/leadgen-mx/internal/extract"
	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/leads"
	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/resilience"
	"github.com/sells-group/leadgen-mx/internal/scraper"
	"github.com/sells-group/leadgen-mx/internal/session"
	"github.com/sells-group/leadgen-mx/internal/store"
	"github.com/sells-group/leadgen-mx/pkg/firecrawl"
)

// scraperEnv holds the initialized store, cache, and scraper service
// shared by the scrape/serve commands.
type scraperEnv struct {
	Store   store.Store
	Cache   cache.Cache
	Metrics *metrics.Prometheus
	Tracker *session.Tracker
	Scraper *scraper.Service
}

// Close releases resources held by the environment.
func (e *scraperEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, cache, fetchers, and the scraper service.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*scraperEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	kv := initCache()
	rec := metrics.NewPrometheus(prometheus.DefaultRegisterer)
	checker := dedup.NewChecker(kv, st, cfg.Scraper.DedupTTL)
	saver := leads.NewSaver(st, checker, rec)
	tracker := session.NewTracker(st, kv, rec)

	fetchers := map[model.FetchStrategy]fetch.Fetcher{
		model.StrategyHTML: fetch.NewHTTPFetcher(cfg.Sources, kv, rec, fetch.HTTPOptions{
			Timeout:       cfg.Scraper.FetchTimeout,
			MaxRetries:    cfg.Scraper.MaxRetries,
			RetryDelay:    cfg.Scraper.RetryDelay,
			MaxConcurrent: cfg.Scraper.MaxConcurrent,
			BlockOnBudget: cfg.Scraper.BlockOnBudget,
		}),
	}
	if cfg.Firecrawl.Key != "" {
		var opts []firecrawl.Option
		if cfg.Firecrawl.BaseURL != "" {
			opts = append(opts, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		}
		client := firecrawl.NewClient(cfg.Firecrawl.Key, opts...)
		fetchers[model.StrategyFirecrawl] = fetch.NewFirecrawlFetcher(client, rec)
		zap.L().Info("firecrawl backend enabled")
	}

	svc := scraper.NewService(cfg.Scraper, cfg.Sources, fetchers, extract.DefaultRegistry(), saver, tracker, rec)

	return &scraperEnv{
		Store:   st,
		Cache:   kv,
		Metrics: rec,
		Tracker: tracker,
		Scraper: svc,
	}, nil
}

// initStore opens the configured database backend, waiting out transient
// connection failures at startup.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		retryCfg := resilience.RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			OnRetry:        resilience.RetryLogger("store", "connect"),
		}
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache connects to Redis when configured. Returns nil on failure or
// when no address is set; the pipeline runs without cache-tier dedup and
// budget enforcement.
func initCache() cache.Cache {
	if cfg.Redis.Address == "" {
		zap.L().Info("redis not configured, running without cache")
		return nil
	}
	kv, err := cache.NewRedis(cache.Options{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		zap.L().Warn("redis unavailable, running without cache", zap.Error(err))
		return nil
	}
	return kv
}
