// Package fetch issues outbound requests to directory sites, enforcing
// per-source rate limits and retrying transient failures.
package fetch

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-mx/internal/model"
)

// Document is one fetched listing page.
type Document struct {
	URL        string
	HTML       string
	StatusCode int
}

// Fetcher fetches a single directory URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, source model.Source) (*Document, error)
	Name() string
}

// ErrRateLimited is returned when a source's hourly request budget is
// exhausted and the fetcher is configured to fail rather than block.
var ErrRateLimited = eris.New("fetch: request budget exhausted")

// FetchError is the terminal failure after all retry attempts.
type FetchError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch: %s failed after %d attempts: %v", e.URL, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }
