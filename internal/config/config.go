package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadgen-mx/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig          `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig          `yaml:"redis" mapstructure:"redis"`
	Scraper   ScraperConfig        `yaml:"scraper" mapstructure:"scraper"`
	Firecrawl FirecrawlConfig      `yaml:"firecrawl" mapstructure:"firecrawl"`
	Scheduler SchedulerConfig      `yaml:"scheduler" mapstructure:"scheduler"`
	Server    ServerConfig         `yaml:"server" mapstructure:"server"`
	Log       LogConfig            `yaml:"log" mapstructure:"log"`
	Sources   []model.SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres | sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the cache. An empty address disables caching;
// the pipeline degrades to store-only dedup checks.
type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ScraperConfig tunes the orchestration loop and fetcher.
type ScraperConfig struct {
	MaxPagesPerCategory int           `yaml:"max_pages_per_category" mapstructure:"max_pages_per_category"`
	MaxConcurrent       int           `yaml:"max_concurrent" mapstructure:"max_concurrent"` // token-bucket permits per second
	MaxRetries          int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	RateLimitDelay      time.Duration `yaml:"rate_limit_delay" mapstructure:"rate_limit_delay"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	BlockOnBudget       bool          `yaml:"block_on_budget" mapstructure:"block_on_budget"`
	DedupTTL            time.Duration `yaml:"dedup_ttl" mapstructure:"dedup_ttl"`
}

// FirecrawlConfig holds Firecrawl API settings for sources using the
// hosted extraction backend.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SchedulerConfig configures the periodic trigger.
type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Schedule string `yaml:"schedule" mapstructure:"schedule"` // cron expression
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("scraper.max_pages_per_category", 10)
	v.SetDefault("scraper.max_concurrent", 5)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.retry_delay", "1s")
	v.SetDefault("scraper.rate_limit_delay", "200ms")
	v.SetDefault("scraper.fetch_timeout", "15s")
	v.SetDefault("scraper.block_on_budget", false)
	v.SetDefault("scraper.dedup_ttl", "24h")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.schedule", "0 */2 * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// DefaultSources returns the built-in directory configurations used when the
// config file does not override them.
func DefaultSources() []model.SourceConfig {
	return []model.SourceConfig{
		{
			ID:              model.SourcePaginasAmarillas,
			Name:            "Páginas Amarillas",
			BaseURL:         "https://www.paginasamarillas.com.mx",
			SearchURL:       "https://www.paginasamarillas.com.mx/busqueda/{category}?page={page}",
			Enabled:         true,
			Categories:      []string{"restaurantes", "ferreterias", "consultorios-medicos"},
			RequestsPerHour: 300,
			Strategy:        model.StrategyHTML,
		},
		{
			ID:              model.SourceSeccionAmarilla,
			Name:            "Sección Amarilla",
			BaseURL:         "https://www.seccionamarilla.com.mx",
			SearchURL:       "https://www.seccionamarilla.com.mx/resultados/{category}/{page}",
			Enabled:         true,
			Categories:      []string{"restaurantes", "talleres-mecanicos"},
			RequestsPerHour: 300,
			Strategy:        model.StrategyHTML,
		},
		{
			ID:              model.SourcePymesOrgMx,
			Name:            "PyMES.org.mx",
			BaseURL:         "https://pymes.org.mx",
			SearchURL:       "https://pymes.org.mx/directorio/{category}/pagina-{page}.html",
			Enabled:         true,
			Categories:      []string{"restaurantes"},
			RequestsPerHour: 120,
			Strategy:        model.StrategyHTML,
		},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
