// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Screen  ScreenConfig  `yaml:"screen" mapstructure:"screen"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CatalogConfig configures the remote procurement notice catalog.
type CatalogConfig struct {
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	PublishedFrom  string   `yaml:"published_from" mapstructure:"published_from"`
	PublishedTo    string   `yaml:"published_to" mapstructure:"published_to"`
	PageSize       int      `yaml:"page_size" mapstructure:"page_size"`
	PageDelayMS    int      `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	Prefixes       []string `yaml:"prefixes" mapstructure:"prefixes"`
	StrictPrefixes []string `yaml:"strict_prefixes" mapstructure:"strict_prefixes"`
	CursorPath     string   `yaml:"cursor_path" mapstructure:"cursor_path"`
}

// PageDelay returns the inter-page delay as a duration.
func (c CatalogConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMS) * time.Millisecond
}

// FetchConfig configures the retrying HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffSecs int    `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ScreenConfig configures the carbon-risk screening stage.
type ScreenConfig struct {
	MinSpend      float64 `yaml:"min_spend" mapstructure:"min_spend"`
	ReferencePath string  `yaml:"reference_path" mapstructure:"reference_path"`
}

// ExportConfig configures output artifact paths.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
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
	v.SetEnvPrefix("CARBONSCREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.base_url", "https://www.contractsfinder.service.gov.uk/Published/Notices/OCDS/Search")
	v.SetDefault("catalog.published_from", "2025-01-01")
	v.SetDefault("catalog.published_to", "2025-12-31")
	v.SetDefault("catalog.page_size", 100)
	v.SetDefault("catalog.page_delay_ms", 700)
	v.SetDefault("catalog.prefixes", []string{"45", "71"})
	v.SetDefault("catalog.strict_prefixes", []string{"451", "4520", "4522", "4523", "4524", "4525"})
	v.SetDefault("catalog.cursor_path", "data/last_cursor.txt")
	v.SetDefault("fetch.timeout_secs", 40)
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.backoff_secs", 2)
	v.SetDefault("fetch.user_agent", "carbonscreen/1.0")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/carbonscreen.db")
	v.SetDefault("screen.min_spend", 5000)
	v.SetDefault("screen.reference_path", "data/material_reference.csv")
	v.SetDefault("export.dir", "data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
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
