package fetch

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-mx/internal/cache"
	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/resilience"
)

// defaultUserAgents is the rotation pool. One is chosen uniformly at random
// per attempt to blunt trivial fingerprint-based blocking.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

const maxBodyBytes = 2 << 20

// budgetWindow is the rolling window for per-source request budgets.
const budgetWindow = time.Hour

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	Timeout       time.Duration // per-request hard timeout
	MaxRetries    int           // retries after the first attempt
	RetryDelay    time.Duration // linear backoff unit: delay * (attempt+1)
	MaxConcurrent int           // token-bucket permits replenished per second
	BlockOnBudget bool          // block until the budget window rolls instead of failing
	UserAgents    []string
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 5
	}
	if len(o.UserAgents) == 0 {
		o.UserAgents = defaultUserAgents
	}
	return o
}

// HTTPFetcher implements Fetcher using net/http with per-source token
// buckets, an hourly request budget backed by the cache, and linear-backoff
// retries.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[model.Source]*rate.Limiter
	budgets  map[model.Source]int
	cache    cache.Cache // may be nil; budget enforcement degrades to off
	metrics  metrics.Recorder
}

// NewHTTPFetcher creates an HTTPFetcher for the given sources. The cache is
// optional; without it per-source budgets are not enforced (the token bucket
// still applies).
func NewHTTPFetcher(sources []model.SourceConfig, kv cache.Cache, rec metrics.Recorder, opts HTTPOptions) *HTTPFetcher {
	opts = opts.withDefaults()
	if rec == nil {
		rec = metrics.Nop{}
	}

	limiters := make(map[model.Source]*rate.Limiter, len(sources))
	budgets := make(map[model.Source]int, len(sources))
	for _, sc := range sources {
		limiters[sc.ID] = rate.NewLimiter(rate.Limit(opts.MaxConcurrent), opts.MaxConcurrent)
		budgets[sc.ID] = sc.RequestsPerHour
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
		budgets:  budgets,
		cache:    kv,
		metrics:  rec,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// Fetch retrieves a directory page. Transient failures (network errors,
// timeouts, 429, 5xx) are retried up to MaxRetries with linear backoff;
// exhausted retries return a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, source model.Source) (*Document, error) {
	if err := f.consumeBudget(ctx, source); err != nil {
		f.metrics.RecordRequest(source.String(), "rate_limited")
		return nil, err
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if lim := f.limiters[source]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetch: rate limiter wait")
			}
		}

		attempts++
		doc, err := f.attempt(ctx, url)
		if err == nil {
			f.metrics.RecordRequest(source.String(), "success")
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		// A 404 or other permanent failure will not clear on retry.
		if !resilience.IsTransient(err) {
			break
		}
		if attempt < f.opts.MaxRetries {
			delay := f.opts.RetryDelay * time.Duration(attempt+1)
			zap.L().Warn("fetch failed, retrying",
				zap.String("url", url),
				zap.String("source", source.String()),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				f.metrics.RecordRequest(source.String(), "error")
				return nil, &FetchError{URL: url, Attempts: attempts, Cause: ctx.Err()}
			case <-timer.C:
			}
		}
	}

	f.metrics.RecordRequest(source.String(), "error")
	return nil, &FetchError{URL: url, Attempts: attempts, Cause: lastErr}
}

func (f *HTTPFetcher) attempt(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgents[rand.IntN(len(f.opts.UserAgents))])
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("fetch: status %d from %s", resp.StatusCode, url)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return &Document{URL: url, HTML: string(body), StatusCode: resp.StatusCode}, nil
}

// consumeBudget increments the source's hourly request counter. Cache
// failures disable enforcement for the call: the budget is advisory and
// must never take the pipeline down with it.
func (f *HTTPFetcher) consumeBudget(ctx context.Context, source model.Source) error {
	budget := f.budgets[source]
	if f.cache == nil || budget <= 0 {
		return nil
	}

	key := budgetKey(source)
	for {
		count, err := f.cache.Increment(ctx, key)
		if err != nil {
			zap.L().Debug("fetch: budget counter unavailable, skipping enforcement",
				zap.String("source", source.String()), zap.Error(err))
			return nil
		}
		if count == 1 {
			if err := f.cache.Expire(ctx, key, budgetWindow); err != nil {
				zap.L().Debug("fetch: budget expire failed", zap.Error(err))
			}
		}
		if count <= int64(budget) {
			return nil
		}

		if !f.opts.BlockOnBudget {
			return eris.Wrapf(ErrRateLimited, "fetch: source %s used %d of %d requests this hour", source, count-1, budget)
		}

		// Wait for the window to roll, rechecking periodically. The extra
		// increments above the budget are harmless: the key expires whole.
		zap.L().Info("fetch: budget exhausted, waiting for window",
			zap.String("source", source.String()), zap.Int("budget", budget))
		timer := time.NewTimer(30 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrap(ctx.Err(), "fetch: budget wait")
		case <-timer.C:
		}
	}
}

func budgetKey(source model.Source) string {
	return "budget:" + source.String() + ":" + strconv.FormatInt(time.Now().Unix()/int64(budgetWindow.Seconds()), 10)
}
