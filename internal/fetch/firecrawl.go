package fetch

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/pkg/firecrawl"
)

// FirecrawlFetcher fetches pages through the hosted Firecrawl backend for
// sources whose markup cannot be retrieved directly. It satisfies the same
// Fetcher contract as the HTTP fetcher, so the orchestrator stays
// backend-agnostic.
type FirecrawlFetcher struct {
	client  firecrawl.Client
	metrics metrics.Recorder
}

// NewFirecrawlFetcher creates a fetcher backed by the Firecrawl API.
func NewFirecrawlFetcher(client firecrawl.Client, rec metrics.Recorder) *FirecrawlFetcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &FirecrawlFetcher{client: client, metrics: rec}
}

func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string, source model.Source) (*Document, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{"html"},
	})
	if err != nil {
		f.metrics.RecordRequest(source.String(), "error")
		return nil, &FetchError{URL: url, Attempts: 1, Cause: err}
	}
	if !resp.Success || resp.Data.HTML == "" {
		f.metrics.RecordRequest(source.String(), "error")
		return nil, &FetchError{URL: url, Attempts: 1, Cause: eris.Errorf("firecrawl returned no html for %s", url)}
	}

	f.metrics.RecordRequest(source.String(), "success")
	status := resp.Data.StatusCode
	if status == 0 {
		status = 200
	}
	return &Document{URL: url, HTML: resp.Data.HTML, StatusCode: status}, nil
}
