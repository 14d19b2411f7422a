// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// PipelineConfig governs worker fan-out and event topics.
type PipelineConfig struct {
	Workers               int    `mapstructure:"workers"`
	QueueDepth            int    `mapstructure:"queue_depth"`
	TopicIngested         string `mapstructure:"topic_ingested"`
	TopicValidationFailed string `mapstructure:"topic_validation_failed"`
}

// QualityConfig tunes the content quality gate.
type QualityConfig struct {
	MinLength int `mapstructure:"min_length"`
	MaxLength int `mapstructure:"max_length"`
}

// DatabaseConfig controls access to the relational database.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PublisherConfig selects and configures the event publisher backend.
type PublisherConfig struct {
	Provider string       `mapstructure:"provider"`
	PubSub   PubSubConfig `mapstructure:"pubsub"`
	Kafka    KafkaConfig  `mapstructure:"kafka"`
}

// PubSubConfig holds Google Pub/Sub settings.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// DedupConfig selects the seen-hash cache backend.
type DedupConfig struct {
	Provider string      `mapstructure:"provider"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// ArchiveConfig selects and configures raw-content archival.
type ArchiveConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// HeadlessConfig configures the JS rendering fallback.
type HeadlessConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	MaxParallel   int      `mapstructure:"max_parallel"`
	NavTimeoutSec int      `mapstructure:"nav_timeout_seconds"`
	UserAgent     string   `mapstructure:"user_agent"`
	Denylist      []string `mapstructure:"denylist"`
}

// RetryConfig tunes the job retry policy.
type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// BreakerConfig tunes the per-dependency circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	FailureWindowSec int `mapstructure:"failure_window_seconds"`
	ResetTimeoutSec  int `mapstructure:"reset_timeout_seconds"`
	SuccessThreshold int `mapstructure:"success_threshold"`
}

// SourcesConfig configures the edge source adapters.
type SourcesConfig struct {
	UserAgent         string   `mapstructure:"user_agent"`
	RespectRobots     bool     `mapstructure:"respect_robots"`
	FetchTimeoutSec   int      `mapstructure:"fetch_timeout_seconds"`
	RateLimitRPS      float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst    int      `mapstructure:"rate_limit_burst"`
	WebURLs           []string `mapstructure:"web_urls"`
	RSSFeeds          []string `mapstructure:"rss_feeds"`
	WebSourceID       string   `mapstructure:"web_source_id"`
	RSSSourceID       string   `mapstructure:"rss_source_id"`
	CollectIntervalMs int      `mapstructure:"collect_interval_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRYPTOINGEST")
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
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_depth", 64)
	v.SetDefault("pipeline.topic_ingested", "content.ingested")
	v.SetDefault("pipeline.topic_validation_failed", "content.validation_failed")
	v.SetDefault("quality.min_length", 10)
	v.SetDefault("database.provider", "memory")
	v.SetDefault("publisher.provider", "memory")
	v.SetDefault("dedup.provider", "memory")
	v.SetDefault("dedup.redis.key", "cryptoingest:seen_hashes")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("archive.content_type", "text/plain; charset=utf-8")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.denylist", []string{"twitter.com", "x.com", "medium.com", "dexscreener.com"})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_initial_ms", 250)
	v.SetDefault("retry.backoff_max_ms", 5000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.failure_window_seconds", 60)
	v.SetDefault("breaker.reset_timeout_seconds", 30)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("sources.user_agent", "cryptoingest-bot/0.1")
	v.SetDefault("sources.respect_robots", true)
	v.SetDefault("sources.fetch_timeout_seconds", 15)
	v.SetDefault("sources.rate_limit_rps", 2)
	v.SetDefault("sources.rate_limit_burst", 1)
	v.SetDefault("sources.web_source_id", "web")
	v.SetDefault("sources.rss_source_id", "rss")
	v.SetDefault("sources.collect_interval_ms", 60000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.QueueDepth <= 0 {
		return fmt.Errorf("pipeline.queue_depth must be > 0")
	}
	switch c.Database.Provider {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("database.provider %q is not supported", c.Database.Provider)
	}
	switch c.Publisher.Provider {
	case "memory", "noop":
	case "pubsub":
		if c.Publisher.PubSub.ProjectID == "" {
			return fmt.Errorf("publisher.pubsub.project_id must be set for the pubsub provider")
		}
	case "kafka":
		if len(c.Publisher.Kafka.Brokers) == 0 {
			return fmt.Errorf("publisher.kafka.brokers must be set for the kafka provider")
		}
	default:
		return fmt.Errorf("publisher.provider %q is not supported", c.Publisher.Provider)
	}
	switch c.Dedup.Provider {
	case "memory":
	case "redis":
		if c.Dedup.Redis.Addr == "" {
			return fmt.Errorf("dedup.redis.addr must be set for the redis provider")
		}
	default:
		return fmt.Errorf("dedup.provider %q is not supported", c.Dedup.Provider)
	}
	switch c.Archive.Provider {
	case "memory", "noop":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
		}
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not supported", c.Archive.Provider)
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	return nil
}

// FetchTimeout converts the source fetch timeout into a duration.
func (c SourcesConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// CollectInterval converts the polling interval into a duration.
func (c SourcesConfig) CollectInterval() time.Duration {
	return time.Duration(c.CollectIntervalMs) * time.Millisecond
}

// BackoffInitial converts the initial backoff into a duration.
func (c RetryConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff ceiling into a duration.
func (c RetryConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// FailureWindow converts the breaker window into a duration.
func (c BreakerConfig) FailureWindow() time.Duration {
	return time.Duration(c.FailureWindowSec) * time.Second
}

// ResetTimeout converts the breaker reset timeout into a duration.
func (c BreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutSec) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}
