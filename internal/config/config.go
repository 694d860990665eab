// Package config loads and validates scout configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firmscout/internal/scout"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Census  CensusConfig  `mapstructure:"census"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Render  RenderConfig  `mapstructure:"render"`
	Export  ExportConfig  `mapstructure:"export"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CensusConfig controls how the working location set is resolved. When
// Locations is non-empty the population data source is never queried.
type CensusConfig struct {
	Locations     []LocationConfig `mapstructure:"locations"`
	MaxPopulation int              `mapstructure:"max_population"`
	Vintages      []int            `mapstructure:"vintages"`
	APIKey        string           `mapstructure:"api_key"`
	BaseURL       string           `mapstructure:"base_url"`
}

// LocationConfig is one statically configured (city, region) pair.
type LocationConfig struct {
	City   string `mapstructure:"city"`
	Region string `mapstructure:"region"`
}

// HTTPConfig configures the shared page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	PerDomainRPS   int    `mapstructure:"per_domain_rps"`
}

// ScrapeConfig governs pipeline fan-out behavior.
type ScrapeConfig struct {
	SourceConcurrency  int `mapstructure:"source_concurrency"`
	ContactConcurrency int `mapstructure:"contact_concurrency"`
}

// RenderConfig configures the optional headless rendering fallback.
type RenderConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	MaxParallel    int  `mapstructure:"max_parallel"`
	MinHTMLBytes   int  `mapstructure:"min_html_bytes"`
}

// ExportConfig selects the export sink for the final record set.
type ExportConfig struct {
	Format      string `mapstructure:"format"`
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table"`
}

// MetricsConfig controls the optional status/metrics HTTP server. A zero
// port disables the server.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Export formats understood by the exporter factory.
const (
	FormatXLSX     = "xlsx"
	FormatCSV      = "csv"
	FormatPostgres = "postgres"
)

// DefaultUserAgent is the realistic browser header sent with every outbound
// request; listing sites reject obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("census.max_population", 50000)
	v.SetDefault("census.vintages", []int{2023, 2022, 2017})
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.per_domain_rps", 2)
	v.SetDefault("scrape.source_concurrency", 4)
	v.SetDefault("scrape.contact_concurrency", 8)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.timeout_seconds", 15)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.min_html_bytes", 2000)
	v.SetDefault("export.format", FormatXLSX)
	v.SetDefault("export.path", "architecture_jobs.xlsx")
	v.SetDefault("export.table", "job_records")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Census.Locations) == 0 {
		if c.Census.MaxPopulation <= 0 {
			return fmt.Errorf("census.max_population must be > 0 when no static locations are set")
		}
		if len(c.Census.Vintages) == 0 {
			return fmt.Errorf("census.vintages must include at least one year")
		}
		if c.Census.BaseURL == "" {
			return fmt.Errorf("census.base_url must be set")
		}
	}
	for _, loc := range c.Census.Locations {
		if loc.City == "" || len(loc.Region) != 2 {
			return fmt.Errorf("census.locations entries need a city and a 2-letter region, got %q/%q", loc.City, loc.Region)
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if c.HTTP.PerDomainRPS <= 0 {
		return fmt.Errorf("http.per_domain_rps must be > 0")
	}
	if c.Scrape.SourceConcurrency <= 0 {
		return fmt.Errorf("scrape.source_concurrency must be > 0")
	}
	if c.Scrape.ContactConcurrency <= 0 {
		return fmt.Errorf("scrape.contact_concurrency must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	switch c.Export.Format {
	case FormatXLSX, FormatCSV:
		if c.Export.Path == "" {
			return fmt.Errorf("export.path must be set for %s export", c.Export.Format)
		}
	case FormatPostgres:
		if c.Export.PostgresDSN == "" {
			return fmt.Errorf("export.postgres_dsn must be set for postgres export")
		}
	default:
		return fmt.Errorf("unknown export.format %q", c.Export.Format)
	}
	if c.Metrics.Port < 0 {
		return fmt.Errorf("metrics.port must be >= 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout knob into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RenderTimeout converts the render timeout knob into a duration.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// StaticLocations converts configured pairs into scout values.
func (c Config) StaticLocations() []scout.Location {
	out := make([]scout.Location, 0, len(c.Census.Locations))
	for _, loc := range c.Census.Locations {
		out = append(out, scout.Location{City: loc.City, Region: strings.ToUpper(loc.Region)})
	}
	return out
}
