// Package config loads homeswipe settings from config.yaml, .env and
// HOMESWIPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Alerts     AlertsConfig     `yaml:"alerts" mapstructure:"alerts"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScrapeConfig configures where snapshots come from and how passes are run.
// SourceFile takes precedence over FeedURL when both are set.
type ScrapeConfig struct {
	SourceFile             string        `yaml:"source_file" mapstructure:"source_file"`
	FeedURL                string        `yaml:"feed_url" mapstructure:"feed_url"`
	FeedPageSize           int           `yaml:"feed_page_size" mapstructure:"feed_page_size"`
	MaxPages               int           `yaml:"max_pages" mapstructure:"max_pages"`
	PageRetries            int           `yaml:"page_retries" mapstructure:"page_retries"`
	ScheduleInterval       time.Duration `yaml:"schedule_interval" mapstructure:"schedule_interval"`
	StaleRunAfter          time.Duration `yaml:"stale_run_after" mapstructure:"stale_run_after"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
}

// ReconcileConfig configures listing retirement.
type ReconcileConfig struct {
	RetirementGrace time.Duration `yaml:"retirement_grace" mapstructure:"retirement_grace"`
}

// AlertsConfig selects which users receive listing alerts.
type AlertsConfig struct {
	InterestPolicy string `yaml:"interest_policy" mapstructure:"interest_policy"`
}

// GeocodeConfig configures coordinate enrichment.
type GeocodeConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	GoogleAPIKey            string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimitRPS            float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	Region                  string  `yaml:"region" mapstructure:"region"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
}

// ServerConfig configures the feed API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures scrape health checks.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MaxPassAgeHours      int     `yaml:"max_pass_age_hours" mapstructure:"max_pass_age_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml, an optional .env file and the
// environment. Environment variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HOMESWIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can override it.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("scrape.source_file", "")
	v.SetDefault("scrape.feed_url", "")
	v.SetDefault("scrape.feed_page_size", 100)
	v.SetDefault("scrape.max_pages", 50)
	v.SetDefault("scrape.page_retries", 3)
	v.SetDefault("scrape.schedule_interval", "1h")
	v.SetDefault("scrape.stale_run_after", "6h")
	v.SetDefault("scrape.max_consecutive_failures", 5)
	v.SetDefault("reconcile.retirement_grace", "24h")
	v.SetDefault("alerts.interest_policy", "all")
	v.SetDefault("geocode.enabled", false)
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit_rps", 1.0)
	v.SetDefault("geocode.region", "es")
	v.SetDefault("geocode.circuit_failure_threshold", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.max_pass_age_hours", 6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings needed by the given mode: "migrate",
// "query", "scrape" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}
	// sqlite falls back to a local file.
	if c.Store.DatabaseURL == "" && c.Store.Driver != "sqlite" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "migrate", "query":
	case "scrape", "serve":
		if c.Scrape.SourceFile == "" && c.Scrape.FeedURL == "" {
			errs = append(errs, "scrape.source_file or scrape.feed_url is required")
		}
		switch c.Alerts.InterestPolicy {
		case "", "all", "favorites", "saved_searches":
		default:
			errs = append(errs, fmt.Sprintf("alerts.interest_policy %q is not one of all, favorites, saved_searches", c.Alerts.InterestPolicy))
		}
		if c.Reconcile.RetirementGrace <= 0 {
			errs = append(errs, "reconcile.retirement_grace must be > 0")
		}
		if c.Geocode.Enabled && c.Geocode.GoogleAPIKey == "" {
			errs = append(errs, "geocode.google_api_key is required when geocode.enabled")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			if c.Scrape.ScheduleInterval <= 0 {
				errs = append(errs, "scrape.schedule_interval must be > 0")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
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
