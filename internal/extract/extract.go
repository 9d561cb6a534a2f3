// Package extract turns fetched directory pages into candidate leads.
// One extractor per source encapsulates that directory's markup rules.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/model"
)

// Extractor parses one source's listing pages. Implementations are pure:
// no I/O, no shared state.
type Extractor interface {
	Source() model.Source
	Extract(doc *fetch.Document, pageURL string) []model.CandidateLead
	HasNextPage(doc *fetch.Document) bool
}

// Registry resolves extractors by source via a lookup table.
type Registry struct {
	extractors map[model.Source]Extractor
}

// NewRegistry builds a registry from the given extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	m := make(map[model.Source]Extractor, len(extractors))
	for _, e := range extractors {
		m[e.Source()] = e
	}
	return &Registry{extractors: m}
}

// DefaultRegistry returns a registry covering every known source.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&PaginasAmarillas{},
		&SeccionAmarilla{},
		&PymesOrgMx{},
	)
}

// Extract parses the document with the extractor registered for source.
// An unknown source yields no candidates and a logged warning, not an
// error: a misconfigured source must not poison the rest of the run.
func (r *Registry) Extract(doc *fetch.Document, source model.Source, pageURL string) []model.CandidateLead {
	e, ok := r.extractors[source]
	if !ok {
		zap.L().Warn("extract: no extractor registered for source",
			zap.String("source", source.String()))
		return nil
	}
	return e.Extract(doc, pageURL)
}

// HasNextPage reports the pagination continuation signal for source.
func (r *Registry) HasNextPage(doc *fetch.Document, source model.Source) bool {
	e, ok := r.extractors[source]
	if !ok {
		return false
	}
	return e.HasNextPage(doc)
}

// Parse extracts the page's candidates and pagination signal in one pass.
func (r *Registry) Parse(doc *fetch.Document, source model.Source, pageURL string) model.PageResult {
	return model.PageResult{
		Leads:       r.Extract(doc, source, pageURL),
		HasNextPage: r.HasNextPage(doc, source),
	}
}

// parseHTML parses a fetched document into a goquery document.
func parseHTML(doc *fetch.Document) (*goquery.Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	return gq, nil
}

// nextPageIndicator reports whether the page carries one of the structural
// next-page signals: a rel=next link, a next-class pagination anchor, or an
// anchor labeled "Siguiente". Deliberately conservative: a false negative
// stops paging early, a false positive costs one empty fetch.
func nextPageIndicator(gq *goquery.Document) bool {
	if gq.Find(`a[rel="next"]`).Length() > 0 {
		return true
	}
	if gq.Find(`.pagination a.next, .paginador a.siguiente, li.next a`).Length() > 0 {
		return true
	}
	found := false
	gq.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "siguiente" || text == "siguiente »" || text == "»" {
			found = true
			return false
		}
		return true
	})
	return found
}
