// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig identifies the upstream listing site and the defaults
// seeded into records from that source.
type SourceConfig struct {
	Tag          string `mapstructure:"tag"`
	BaseURL      string `mapstructure:"base_url"`
	BuyerCountry string `mapstructure:"buyer_country"`
	Currency     string `mapstructure:"currency"`
	RegionCode   string `mapstructure:"region_code"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	ArchiveTable  string `mapstructure:"archive_table"`
	RegistryTable string `mapstructure:"registry_table"`
}

// PipelineConfig governs batch job behavior.
type PipelineConfig struct {
	PageCount    int `mapstructure:"page_count"`
	PerPageCap   int `mapstructure:"per_page_cap"`
	PacingMillis int `mapstructure:"pacing_millis"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTICECRAWLER")
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
	v.SetDefault("source.tag", "uk_cf")
	v.SetDefault("source.base_url", "https://www.contractsfinder.service.gov.uk")
	v.SetDefault("source.buyer_country", "GB")
	v.SetDefault("source.currency", "GBP")
	v.SetDefault("source.region_code", "UK")
	v.SetDefault("http.user_agent", "noticecrawler/1.0")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("db.archive_table", "raw_documents")
	v.SetDefault("db.registry_table", "notices")
	v.SetDefault("pipeline.page_count", 5)
	v.SetDefault("pipeline.per_page_cap", 100)
	v.SetDefault("pipeline.pacing_millis", 400)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.Tag == "" {
		return fmt.Errorf("source.tag must be set")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Pipeline.PageCount <= 0 {
		return fmt.Errorf("pipeline.page_count must be > 0")
	}
	if c.Pipeline.PerPageCap <= 0 {
		return fmt.Errorf("pipeline.per_page_cap must be > 0")
	}
	if c.Pipeline.PacingMillis < 0 {
		return fmt.Errorf("pipeline.pacing_millis must be >= 0")
	}
	return nil
}

// HTTPTimeout returns the fetch timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Pacing returns the inter-unit delay as a duration.
func (c Config) Pacing() time.Duration {
	return time.Duration(c.Pipeline.PacingMillis) * time.Millisecond
}
