package model

import "github.com/rotisserie/eris"

// Source identifies one external directory site with its own parsing rules
// and rate budget.
type Source string

const (
	SourcePaginasAmarillas Source = "paginas_amarillas"
	SourceSeccionAmarilla  Source = "seccion_amarilla"
	SourcePymesOrgMx       Source = "pymes_org_mx"
)

// AllSources returns every known source in declaration order.
func AllSources() []Source {
	return []Source{SourcePaginasAmarillas, SourceSeccionAmarilla, SourcePymesOrgMx}
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourcePaginasAmarillas, SourceSeccionAmarilla, SourcePymesOrgMx:
		return true
	}
	return false
}

func (s Source) String() string { return string(s) }

// ParseSource converts a raw string into a Source.
func ParseSource(raw string) (Source, error) {
	s := Source(raw)
	if !s.Valid() {
		return "", eris.Errorf("model: unknown source %q", raw)
	}
	return s, nil
}

// FetchStrategy selects the extraction backend for a source.
type FetchStrategy string

const (
	StrategyHTML      FetchStrategy = "html"
	StrategyFirecrawl FetchStrategy = "firecrawl"
)

// SourceConfig is the static per-source configuration loaded at startup.
// It is read-only process-wide state for the lifetime of the scraper service.
type SourceConfig struct {
	ID              Source        `yaml:"id" mapstructure:"id"`
	Name            string        `yaml:"name" mapstructure:"name"`
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	SearchURL       string        `yaml:"search_url" mapstructure:"search_url"` // template with {category} and {page}
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Categories      []string      `yaml:"categories" mapstructure:"categories"`
	RequestsPerHour int           `yaml:"requests_per_hour" mapstructure:"requests_per_hour"`
	Strategy        FetchStrategy `yaml:"strategy" mapstructure:"strategy"`
}
