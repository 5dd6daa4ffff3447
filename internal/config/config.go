// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Renderer kinds.
const (
	RendererChromedp = "chromedp"
	RendererColly    = "colly"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendRedis    = "redis"
)

// Notifier kinds.
const (
	NotifyNone   = "none"
	NotifyPubSub = "pubsub"
	NotifyRedis  = "redis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Source    SourceConfig    `mapstructure:"source"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int      `mapstructure:"port"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins            []string `mapstructure:"cors_origins"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SourceConfig identifies the catalogue being crawled.
type SourceConfig struct {
	ListURL string `mapstructure:"list_url"`
	// BaseURL resolves relative links; defaults to ListURL's origin.
	BaseURL        string `mapstructure:"base_url"`
	ItemPath       string `mapstructure:"item_path"`
	EstimatedTotal int    `mapstructure:"estimated_total"`
}

// DiscoveryConfig tunes list discovery convergence.
type DiscoveryConfig struct {
	NoGrowthThreshold int `mapstructure:"no_growth_threshold"`
	SettleIntervalMs  int `mapstructure:"settle_interval_ms"`
}

// CrawlConfig governs the driver.
type CrawlConfig struct {
	// RequestDelayMs spaces item fetches per host; negative disables pacing.
	RequestDelayMs      int  `mapstructure:"request_delay_ms"`
	FullRefreshDefault  bool `mapstructure:"full_refresh_default"`
	CheckpointOnFailure bool `mapstructure:"checkpoint_on_failure"`
}

// RendererConfig selects and configures the page rendering facility.
type RendererConfig struct {
	Kind             string `mapstructure:"kind"`
	Headless         bool   `mapstructure:"headless"`
	ExecPath         string `mapstructure:"exec_path"`
	NavTimeoutSec    int    `mapstructure:"nav_timeout_seconds"`
	ListWaitMs       int    `mapstructure:"list_wait_ms"`
	PageWaitMs       int    `mapstructure:"page_wait_ms"`
	UserAgent        string `mapstructure:"user_agent"`
	LoadMoreSelector string `mapstructure:"load_more_selector"`
	PageParam        string `mapstructure:"page_param"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
}

// StorageConfig picks the record and checkpoint backends.
type StorageConfig struct {
	Records        string `mapstructure:"records"`
	Checkpoint     string `mapstructure:"checkpoint"`
	CheckpointPath string `mapstructure:"checkpoint_path"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	GCSObject      string `mapstructure:"gcs_object"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisKey       string `mapstructure:"redis_key"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// NotifyConfig holds record-updated notification settings. The redis kind
// shares storage.redis_addr.
type NotifyConfig struct {
	Kind      string `mapstructure:"kind"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
	Stream    string `mapstructure:"stream"`
}

// ProgressConfig sizes the progress hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// LoggingConfig toggles zap development features. Level is a zap level name
// ("debug", "info", ...); empty keeps the preset's level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory, when present, seeds the environment first.
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetEnvPrefix("FILAMENT")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("source.list_url", "https://filamentcolors.xyz/library/")
	v.SetDefault("source.item_path", "/swatch/")
	v.SetDefault("source.estimated_total", 3056)
	v.SetDefault("discovery.no_growth_threshold", 5)
	v.SetDefault("discovery.settle_interval_ms", 1500)
	v.SetDefault("crawl.request_delay_ms", 500)
	v.SetDefault("crawl.full_refresh_default", false)
	v.SetDefault("crawl.checkpoint_on_failure", true)
	v.SetDefault("renderer.kind", RendererChromedp)
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.nav_timeout_seconds", 45)
	v.SetDefault("renderer.list_wait_ms", 3000)
	v.SetDefault("renderer.page_wait_ms", 1000)
	v.SetDefault("storage.records", BackendMemory)
	v.SetDefault("storage.checkpoint", BackendLocal)
	v.SetDefault("storage.checkpoint_path", "scrape_progress.json")
	v.SetDefault("storage.gcs_object", "filament-catalog/checkpoint.json")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_key", "filament-catalog:checkpoint")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("notify.kind", NotifyNone)
	v.SetDefault("notify.stream", "filament-catalog:materials")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 1000)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if err := validateAbsURL("source.list_url", c.Source.ListURL); err != nil {
		return err
	}
	if c.Source.BaseURL != "" {
		if err := validateAbsURL("source.base_url", c.Source.BaseURL); err != nil {
			return err
		}
	}
	if c.Source.ItemPath == "" {
		return fmt.Errorf("source.item_path must be set")
	}
	if c.Discovery.NoGrowthThreshold <= 0 {
		return fmt.Errorf("discovery.no_growth_threshold must be > 0")
	}
	if c.Discovery.SettleIntervalMs < 0 {
		return fmt.Errorf("discovery.settle_interval_ms must be >= 0")
	}
	switch c.Renderer.Kind {
	case RendererChromedp, RendererColly:
	default:
		return fmt.Errorf("renderer.kind must be %q or %q, got %q", RendererChromedp, RendererColly, c.Renderer.Kind)
	}
	if c.Renderer.NavTimeoutSec <= 0 {
		return fmt.Errorf("renderer.nav_timeout_seconds must be > 0")
	}
	switch c.Storage.Records {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when storage.records is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("storage.records must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Storage.Records)
	}
	switch c.Storage.Checkpoint {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.CheckpointPath == "" {
			return fmt.Errorf("storage.checkpoint_path must be set for the local checkpoint store")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs checkpoint store")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr must be set for the redis checkpoint store")
		}
	default:
		return fmt.Errorf("storage.checkpoint %q is not supported", c.Storage.Checkpoint)
	}
	switch c.Notify.Kind {
	case NotifyNone, "":
	case NotifyPubSub:
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set for pubsub")
		}
	case NotifyRedis:
		if c.Storage.RedisAddr == "" || c.Notify.Stream == "" {
			return fmt.Errorf("storage.redis_addr and notify.stream must be set for redis notifications")
		}
	default:
		return fmt.Errorf("notify.kind %q is not supported", c.Notify.Kind)
	}
	return nil
}

// BaseURL returns Source.BaseURL or the origin of Source.ListURL.
func (c Config) BaseURL() string {
	if c.Source.BaseURL != "" {
		return c.Source.BaseURL
	}
	u, err := url.Parse(c.Source.ListURL)
	if err != nil {
		return c.Source.ListURL
	}
	return u.Scheme + "://" + u.Host
}

// RequestDelay converts crawl.request_delay_ms into a duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawl.RequestDelayMs) * time.Millisecond
}

// SettleInterval converts discovery.settle_interval_ms into a duration.
func (c Config) SettleInterval() time.Duration {
	return time.Duration(c.Discovery.SettleIntervalMs) * time.Millisecond
}

// NavTimeout converts renderer.nav_timeout_seconds into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Renderer.NavTimeoutSec) * time.Second
}

// ShutdownTimeout converts server.shutdown_timeout_seconds into a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func validateAbsURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must be set", key)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", key, raw)
	}
	return nil
}
