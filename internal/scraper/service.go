// Package scraper orchestrates scraping runs: it walks the configured
// sources, iterates their categories page by page, and hands extracted
// candidates to the lead saver, recording the run as a session.
package scraper

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-mx/internal/config"
	"github.com/sells-group/leadgen-mx/internal/extract"
	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/leads"
	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/session"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is in flight.
	ErrAlreadyRunning = eris.New("scraper: a run is already in progress")
	// ErrUnknownSource is returned for a requested source with no config.
	ErrUnknownSource = eris.New("scraper: unknown source")
	// ErrSourceDisabled is returned for a requested source that is
	// configured but switched off.
	ErrSourceDisabled = eris.New("scraper: source disabled")
)

// Service runs scraping sessions. All collaborators are injected; the
// zero value is not usable.
type Service struct {
	cfg      config.ScraperConfig
	sources  []model.SourceConfig
	fetchers map[model.FetchStrategy]fetch.Fetcher
	registry *extract.Registry
	saver    *leads.Saver
	tracker  *session.Tracker
	metrics  metrics.Recorder

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	sessionID string
	startedAt time.Time
	lastRun   *RunSummary
}

// NewService wires a scraper service from its collaborators. metrics may
// be nil.
func NewService(cfg config.ScraperConfig, sources []model.SourceConfig, fetchers map[model.FetchStrategy]fetch.Fetcher, registry *extract.Registry, saver *leads.Saver, tracker *session.Tracker, m metrics.Recorder) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		cfg:      cfg,
		sources:  sources,
		fetchers: fetchers,
		registry: registry,
		saver:    saver,
		tracker:  tracker,
		metrics:  m,
	}
}

// StartOptions narrows a run. Empty slices mean "all enabled".
type StartOptions struct {
	// Sources restricts the run to the named sources. Each must exist and
	// be enabled or Start fails before opening a session.
	Sources []model.Source
	// Categories overrides every selected source's configured categories.
	Categories []string
	// MaxPages caps pages per category below the configured maximum.
	MaxPages int
	// Type tags the session; defaults to manual.
	Type model.SessionType
}

// RunHandle identifies an in-flight run. Done is closed when the run
// finishes, after the summary is published.
type RunHandle struct {
	SessionID string
	Done      <-chan *RunSummary
}

// Start launches a scraping run in the background. It fails fast with
// ErrAlreadyRunning, ErrUnknownSource, or ErrSourceDisabled before any
// session is opened. The run stops early only via Stop or parent context
// cancellation.
func (s *Service) Start(ctx context.Context, opts StartOptions) (*RunHandle, error) {
	selected, err := s.selectSources(opts.Sources)
	if err != nil {
		return nil, err
	}
	if opts.Type == "" {
		opts.Type = model.SessionManual
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	// The store insert happens outside the lock so a slow database
	// cannot block Status or Stop while the session opens.
	sess := s.tracker.Open(runCtx, opts.Type)

	s.mu.Lock()
	s.sessionID = sess.UUID
	s.startedAt = sess.StartedAt
	s.mu.Unlock()

	done := make(chan *RunSummary, 1)
	go func() {
		defer cancel()
		summary := s.run(runCtx, sess, selected, opts)

		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.sessionID = ""
		s.lastRun = summary
		s.mu.Unlock()

		done <- summary
		close(done)
	}()

	return &RunHandle{SessionID: sess.UUID, Done: done}, nil
}

// Stop requests cooperative cancellation of the current run. The run
// winds down at the next page boundary; Stop does not wait for it.
// Returns false when nothing is running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cancel == nil {
		return false
	}
	zap.L().Info("scraper: stop requested", zap.String("session", s.sessionID))
	s.cancel()
	return true
}

// Status describes the service's current state.
type Status struct {
	Running   bool        `json:"running"`
	SessionID string      `json:"session_id,omitempty"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	LastRun   *RunSummary `json:"last_run,omitempty"`
}

// Status reports whether a run is in flight and the last finished summary.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, LastRun: s.lastRun}
	if s.running {
		st.SessionID = s.sessionID
		started := s.startedAt
		st.StartedAt = &started
	}
	return st
}

// AvailableSources lists every configured source and its enabled flag.
func (s *Service) AvailableSources() []model.SourceConfig {
	out := make([]model.SourceConfig, len(s.sources))
	copy(out, s.sources)
	return out
}

// selectSources resolves the requested sources against configuration.
// With no explicit request, every enabled source is selected.
func (s *Service) selectSources(requested []model.Source) ([]model.SourceConfig, error) {
	if len(requested) == 0 {
		var enabled []model.SourceConfig
		for _, cfg := range s.sources {
			if cfg.Enabled {
				enabled = append(enabled, cfg)
			}
		}
		return enabled, nil
	}

	byID := make(map[model.Source]model.SourceConfig, len(s.sources))
	for _, cfg := range s.sources {
		byID[cfg.ID] = cfg
	}
	var selected []model.SourceConfig
	for _, id := range requested {
		cfg, ok := byID[id]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownSource, "%s", id)
		}
		if !cfg.Enabled {
			return nil, eris.Wrapf(ErrSourceDisabled, "%s", id)
		}
		selected = append(selected, cfg)
	}
	return selected, nil
}

// run executes the full source/category/page iteration and closes the
// session. Sources run concurrently; pages within a category are strictly
// sequential with the configured inter-page delay.
func (s *Service) run(ctx context.Context, sess *model.Session, selected []model.SourceConfig, opts StartOptions) *RunSummary {
	summary := newRunSummary(sess.UUID, sess.StartedAt)

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrent > 0 {
		g.SetLimit(s.cfg.MaxConcurrent)
	}
	for _, cfg := range selected {
		g.Go(func() error {
			stats := s.scrapeSource(gctx, cfg, sess.UUID, opts)
			summary.merge(cfg.ID, stats)
			return nil
		})
	}
	// Workers report through their stats, never through errors.
	_ = g.Wait()

	summary.finish()

	status := model.SessionCompleted
	errorMessage := ""
	if summary.TotalPages == 0 && summary.Errors > 0 {
		// Nothing was fetched anywhere: the run as a whole failed.
		status = model.SessionFailed
		errorMessage = "all sources failed"
	}
	if err := ctx.Err(); err != nil {
		errorMessage = "stopped before completion"
	}
	summary.Status = status

	if err := s.tracker.Close(context.WithoutCancel(ctx), sess, status, summary, errorMessage); err != nil {
		zap.L().Error("scraper: close session", zap.String("session", sess.UUID), zap.Error(err))
	}

	zap.L().Info("scraper: run finished",
		zap.String("session", sess.UUID),
		zap.String("status", string(status)),
		zap.Int("pages", summary.TotalPages),
		zap.Int("new_leads", summary.NewLeads),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration))
	return summary
}

// scrapeSource walks one source's categories. A category failure is
// isolated: it aborts that category and moves on to the next.
func (s *Service) scrapeSource(ctx context.Context, cfg model.SourceConfig, sessionID string, opts StartOptions) *SourceStats {
	stats := &SourceStats{}
	categories := cfg.Categories
	if len(opts.Categories) > 0 {
		categories = opts.Categories
	}

	fetcher := s.fetcher(cfg.Strategy)
	if fetcher == nil {
		zap.L().Error("scraper: no fetcher for strategy",
			zap.String("source", cfg.ID.String()), zap.String("strategy", string(cfg.Strategy)))
		stats.Errors++
		return stats
	}

	for i, category := range categories {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			// Longer pause between categories than between pages.
			if !sleepCtx(ctx, 2*s.cfg.RateLimitDelay) {
				break
			}
		}
		if err := s.scrapeCategory(ctx, fetcher, cfg, category, sessionID, opts, stats); err != nil {
			stats.Errors++
			stats.category(category).Errors++
			zap.L().Warn("scraper: category aborted",
				zap.String("source", cfg.ID.String()),
				zap.String("category", category),
				zap.Error(err))
		}
	}
	return stats
}

// scrapeCategory pages through one category until the source reports no
// next page, the page cap is reached, or a fetch fails.
func (s *Service) scrapeCategory(ctx context.Context, fetcher fetch.Fetcher, cfg model.SourceConfig, category, sessionID string, opts StartOptions, stats *SourceStats) error {
	maxPages := s.cfg.MaxPagesPerCategory
	if opts.MaxPages > 0 && opts.MaxPages < maxPages {
		maxPages = opts.MaxPages
	}
	cs := stats.category(category)

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if page > 1 {
			if !sleepCtx(ctx, s.cfg.RateLimitDelay) {
				return nil
			}
		}

		pageURL := BuildSearchURL(cfg.SearchURL, category, page)
		doc, err := fetcher.Fetch(ctx, pageURL, cfg.ID)
		if err != nil {
			return eris.Wrapf(err, "page %d", page)
		}
		stats.Pages++
		cs.Pages++

		result := s.registry.Parse(doc, cfg.ID, pageURL)
		for i := range result.Leads {
			stats.Candidates++
			cs.Candidates++
			res, err := s.saver.Save(ctx, cfg.ID, sessionID, &result.Leads[i])
			if err != nil {
				stats.Errors++
				cs.Errors++
				zap.L().Warn("scraper: save lead",
					zap.String("source", cfg.ID.String()),
					zap.String("company", result.Leads[i].CompanyName),
					zap.Error(err))
				continue
			}
			switch {
			case res.Invalid:
				stats.Invalid++
				cs.Invalid++
			case res.IsNew:
				stats.NewLeads++
				cs.NewLeads++
			default:
				stats.Duplicates++
				cs.Duplicates++
			}
		}

		if !result.HasNextPage {
			return nil
		}
		if page == maxPages {
			// More pages exist past the cap; note the truncation so the
			// summary can surface it instead of dropping it silently.
			stats.Truncated = append(stats.Truncated, category)
			zap.L().Info("scraper: category truncated at page cap",
				zap.String("source", cfg.ID.String()),
				zap.String("category", category),
				zap.Int("max_pages", maxPages))
		}
	}
	return nil
}

func (s *Service) fetcher(strategy model.FetchStrategy) fetch.Fetcher {
	if strategy == "" {
		strategy = model.StrategyHTML
	}
	if f, ok := s.fetchers[strategy]; ok {
		return f
	}
	return s.fetchers[model.StrategyHTML]
}

// BuildSearchURL expands a source's search template with the category and
// page number. The category is path-escaped; templates use {category} and
// {page} placeholders.
func BuildSearchURL(template, category string, page int) string {
	out := strings.ReplaceAll(template, "{category}", url.PathEscape(category))
	return strings.ReplaceAll(out, "{page}", strconv.Itoa(page))
}

// sleepCtx sleeps for d unless the context ends first. Returns false when
// interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
