package scraper

import (
	"sync"
	"time"

	"github.com/sells-group/leadgen-mx/internal/model"
)

// SourceStats tallies one source's results within a run, with a
// per-category breakdown.
type SourceStats struct {
	Pages      int `json:"pages"`
	Candidates int `json:"candidates"`
	NewLeads   int `json:"new_leads"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Errors     int `json:"errors"`

	Categories map[string]*CategoryStats `json:"categories,omitempty"`
	// Truncated lists categories that still had pages past the cap.
	Truncated []string `json:"truncated,omitempty"`
}

// CategoryStats tallies one category's results within a source.
type CategoryStats struct {
	Pages      int `json:"pages"`
	Candidates int `json:"candidates"`
	NewLeads   int `json:"new_leads"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Errors     int `json:"errors"`
}

// category returns the per-category tally, creating it on first use.
func (s *SourceStats) category(name string) *CategoryStats {
	if s.Categories == nil {
		s.Categories = make(map[string]*CategoryStats)
	}
	cs, ok := s.Categories[name]
	if !ok {
		cs = &CategoryStats{}
		s.Categories[name] = cs
	}
	return cs
}

// Truncation names a source/category pair cut short by the page cap.
type Truncation struct {
	Source   model.Source `json:"source"`
	Category string       `json:"category"`
}

// RunSummary is the final accounting of one scraping run. It is stored
// as the session's final stats and returned from the run handle.
type RunSummary struct {
	SessionID   string              `json:"session_id"`
	Status      model.SessionStatus `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
	Duration    time.Duration       `json:"-"`

	TotalPages int `json:"total_pages"`
	Candidates int `json:"candidates"`
	NewLeads   int `json:"new_leads"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Errors     int `json:"errors"`

	Sources   map[model.Source]*SourceStats `json:"sources"`
	Truncated []Truncation                  `json:"truncated,omitempty"`

	mu sync.Mutex
}

func newRunSummary(sessionID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		SessionID: sessionID,
		StartedAt: startedAt,
		Sources:   make(map[model.Source]*SourceStats),
	}
}

// merge folds one source's stats into the totals. Safe for concurrent use
// by the per-source workers.
func (r *RunSummary) merge(source model.Source, stats *SourceStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sources[source] = stats
	r.TotalPages += stats.Pages
	r.Candidates += stats.Candidates
	r.NewLeads += stats.NewLeads
	r.Duplicates += stats.Duplicates
	r.Invalid += stats.Invalid
	r.Errors += stats.Errors
	for _, category := range stats.Truncated {
		r.Truncated = append(r.Truncated, Truncation{Source: source, Category: category})
	}
}

// finish stamps the completion time.
func (r *RunSummary) finish() {
	r.CompletedAt = time.Now().UTC()
	r.Duration = r.CompletedAt.Sub(r.StartedAt)
}
