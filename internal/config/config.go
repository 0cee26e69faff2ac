// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Render    RenderConfig    `mapstructure:"render"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Output    OutputConfig    `mapstructure:"output"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig governs the worker pool and crawl limits.
type CrawlerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	MaxDepth    int    `mapstructure:"max_depth"`
	MaxPages    int    `mapstructure:"max_pages"`
	Force       string `mapstructure:"force"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures the static fetch client and its retries.
type HTTPConfig struct {
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
	MaxRetries          int `mapstructure:"max_retries"`
	InitialRetryDelayMs int `mapstructure:"initial_retry_delay_ms"`
}

// RateLimitConfig bounds the jittered per-domain dispatch delay.
type RateLimitConfig struct {
	MinDelayMs int `mapstructure:"min_delay_ms"`
	MaxDelayMs int `mapstructure:"max_delay_ms"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	NavTimeoutSec   int     `mapstructure:"nav_timeout_seconds"`
	MaxScrolls      int     `mapstructure:"max_scrolls"`
	ScrollPauseMs   int     `mapstructure:"scroll_pause_ms"`
	DomainQPS       float64 `mapstructure:"domain_qps"`
	RecycleAttempts int     `mapstructure:"recycle_attempts"`
}

// DetectorConfig tunes the dynamic-content heuristic.
type DetectorConfig struct {
	MinTextChars int `mapstructure:"min_text_chars"`
}

// SitemapConfig toggles seed discovery from /sitemap.xml.
type SitemapConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// OutputConfig sets where and how crawl results are written.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// APIConfig controls the optional status/metrics HTTP server.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WORMY")
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
	v.SetDefault("crawler.concurrency", 6)
	v.SetDefault("crawler.max_depth", 1)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.force", "")
	v.SetDefault("crawler.user_agent", "wormy/1.0")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.initial_retry_delay_ms", 1000)
	v.SetDefault("ratelimit.min_delay_ms", 1000)
	v.SetDefault("ratelimit.max_delay_ms", 5000)
	v.SetDefault("render.enabled", true)
	v.SetDefault("render.nav_timeout_seconds", 30)
	v.SetDefault("render.max_scrolls", 10)
	v.SetDefault("render.scroll_pause_ms", 1000)
	v.SetDefault("render.domain_qps", 1)
	v.SetDefault("render.recycle_attempts", 2)
	v.SetDefault("detector.min_text_chars", 500)
	v.SetDefault("sitemap.enabled", true)
	v.SetDefault("output.dir", "scrapes")
	v.SetDefault("output.format", "json")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	switch c.Crawler.Force {
	case "", "static", "rendered":
	default:
		return fmt.Errorf("crawler.force must be empty, static, or rendered")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.RateLimit.MinDelayMs < 0 || c.RateLimit.MaxDelayMs < c.RateLimit.MinDelayMs {
		return fmt.Errorf("ratelimit delays must satisfy 0 <= min <= max")
	}
	if c.Render.Enabled && c.Render.NavTimeoutSec <= 0 {
		return fmt.Errorf("render.nav_timeout_seconds must be > 0 when rendering is enabled")
	}
	if c.Detector.MinTextChars < 0 {
		return fmt.Errorf("detector.min_text_chars must be >= 0")
	}
	switch c.Output.Format {
	case "json", "csv":
	default:
		return fmt.Errorf("output.format must be json or csv")
	}
	if c.API.Enabled && c.API.Port <= 0 {
		return fmt.Errorf("api.port must be > 0 when the api is enabled")
	}
	return nil
}

// HTTPTimeout converts the fetch timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// InitialRetryDelay converts the backoff base into a duration.
func (c Config) InitialRetryDelay() time.Duration {
	return time.Duration(c.HTTP.InitialRetryDelayMs) * time.Millisecond
}

// MinDelay converts the rate limit floor into a duration.
func (c Config) MinDelay() time.Duration {
	return time.Duration(c.RateLimit.MinDelayMs) * time.Millisecond
}

// MaxDelay converts the rate limit ceiling into a duration.
func (c Config) MaxDelay() time.Duration {
	return time.Duration(c.RateLimit.MaxDelayMs) * time.Millisecond
}

// NavTimeout converts the render navigation budget into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSec) * time.Second
}

// ScrollPause converts the lazy-load pause into a duration.
func (c Config) ScrollPause() time.Duration {
	return time.Duration(c.Render.ScrollPauseMs) * time.Millisecond
}
