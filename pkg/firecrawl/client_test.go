package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.mx/busqueda/restaurantes", req.URL)
		assert.Equal(t, []string{"html"}, req.Formats)

		_ = json.NewEncoder(w).Encode(ScrapeResponse{
			Success: true,
			Data:    PageData{URL: req.URL, HTML: "<html><body>ok</body></html>", StatusCode: 200},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.Scrape(context.Background(), ScrapeRequest{
		URL:     "https://example.mx/busqueda/restaurantes",
		Formats: []string{"html"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Data.HTML, "ok")
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(402)
		_, _ = w.Write([]byte(`{"error":"payment required"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.mx"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 402, apiErr.StatusCode)
}

func TestPollBatchScrape_CompletesAfterPending(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := "scraping"
		if calls >= 2 {
			status = "completed"
		}
		_ = json.NewEncoder(w).Encode(BatchScrapeStatusResponse{
			Status: status,
			Total:  1,
			Data:   []PageData{{URL: "https://example.mx", HTML: "<html></html>"}},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	status, err := PollBatchScrape(context.Background(), c, "batch-1",
		WithPollInterval(1), WithPollCap(2))
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestPollBatchScrape_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(BatchScrapeStatusResponse{Status: "failed"})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := PollBatchScrape(context.Background(), c, "batch-1", WithPollInterval(1))
	assert.Error(t, err)
}
