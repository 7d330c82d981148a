// Package config loads and validates stock watcher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Notifier kinds.
const (
	NotifierPubSub = "pubsub"
	NotifierSNS    = "sns"
	NotifierLog    = "log"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Checker  CheckerConfig  `mapstructure:"checker"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	SNS      SNSConfig      `mapstructure:"sns"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the trigger HTTP server.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	// RequestsPerSecond throttles fetches per host; 0 disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HeadlessConfig configures the optional browser fetcher.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// CheckerConfig tunes the check pipeline.
type CheckerConfig struct {
	VariantConcurrency int `mapstructure:"variant_concurrency"`
}

// NotifierConfig selects the notification transport.
type NotifierConfig struct {
	Kind string `mapstructure:"kind"`
}

// PubSubConfig holds Google Cloud Pub/Sub settings.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// SNSConfig holds AWS SNS settings.
type SNSConfig struct {
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
}

// TriggerConfig decides how run failures are reported to the invoker.
type TriggerConfig struct {
	// ReportFailures makes failed runs visible to the scheduler (non-zero
	// exit, HTTP 500). Off by default: failures are only logged.
	ReportFailures bool `mapstructure:"report_failures"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is applied to the process environment first.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("STOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("sns.topic_arn", "STOCK_SNS_TOPIC_ARN", "TopicArn"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

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

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "stockwatcher/0.1")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("checker.variant_concurrency", 1)
	v.SetDefault("notifier.kind", NotifierPubSub)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("sns.region", "")
	v.SetDefault("sns.topic_arn", "")
	v.SetDefault("trigger.report_failures", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits. The notification
// topic is deliberately not required: an unset topic fails at publish time.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Checker.VariantConcurrency <= 0 {
		return fmt.Errorf("checker.variant_concurrency must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Notifier.Kind {
	case NotifierPubSub, NotifierSNS, NotifierLog:
	default:
		return fmt.Errorf("notifier.kind must be one of %s, %s, %s; got %q",
			NotifierPubSub, NotifierSNS, NotifierLog, c.Notifier.Kind)
	}
	return nil
}

// Topic returns the destination for the configured notifier kind.
func (c Config) Topic() string {
	if c.Notifier.Kind == NotifierSNS {
		return c.SNS.TopicARN
	}
	return c.PubSub.Topic
}

// FetchTimeout is the per-request fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one triggered check over HTTP.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// NavigationTimeout bounds one headless page navigation.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
