// Package metrics exposes Prometheus counters for the scraping pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives pipeline events. The scraper, fetcher, and session
// tracker depend on this interface so tests can pass a Nop.
type Recorder interface {
	RecordRequest(source, outcome string)
	RecordLeadProcessed(source, action string)
	RecordSession(status string, duration time.Duration)
}

// Prometheus implements Recorder with promauto collectors.
type Prometheus struct {
	requests        *prometheus.CounterVec
	leadsProcessed  *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
}

// NewPrometheus registers the pipeline collectors on the given registerer.
// Pass prometheus.DefaultRegisterer in production.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_requests_total",
			Help: "Outbound directory requests by source and outcome.",
		}, []string{"source", "outcome"}),
		leadsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_leads_processed_total",
			Help: "Candidate leads processed by source and action (saved, duplicate, invalid, error).",
		}, []string{"source", "action"}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_sessions_total",
			Help: "Completed scraping sessions by terminal status.",
		}, []string{"status"}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadgen_session_duration_seconds",
			Help:    "Wall-clock duration of scraping sessions.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

func (p *Prometheus) RecordRequest(source, outcome string) {
	p.requests.WithLabelValues(source, outcome).Inc()
}

func (p *Prometheus) RecordLeadProcessed(source, action string) {
	p.leadsProcessed.WithLabelValues(source, action).Inc()
}

func (p *Prometheus) RecordSession(status string, duration time.Duration) {
	p.sessions.WithLabelValues(status).Inc()
	p.sessionDuration.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Nop discards all events.
type Nop struct{}

func (Nop) RecordRequest(string, string) {}
func (Nop) RecordLeadProcessed(string, string) {}
func (Nop) RecordSession(string, time.Duration) {}
