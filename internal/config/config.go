// Package config centralizes application configuration via viper with
// built-in defaults, an optional YAML file, and DAILYBRIEF_* env overrides.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Brief      Brief      `mapstructure:"brief"`
	Ingest     Ingest     `mapstructure:"ingest"`
	Processing Processing `mapstructure:"processing"`
	Server     Server     `mapstructure:"server"`
}

// App holds general application configuration.
type App struct {
	DataDir    string `mapstructure:"data_dir"`
	LogLevel   string `mapstructure:"log_level"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds model client configuration. Temperature binds at client creation,
// not per call.
type AI struct {
	Provider                     string  `mapstructure:"provider"`
	Model                        string  `mapstructure:"model"`
	APIKey                       string  `mapstructure:"api_key"`
	Temperature                  float32 `mapstructure:"temperature"`
	RunTimeoutSeconds            int     `mapstructure:"run_timeout_seconds"`
	ClassificationTimeoutSeconds int     `mapstructure:"classification_timeout_seconds"`
	ExtractionTimeoutSeconds     int     `mapstructure:"extraction_timeout_seconds"`
	VideoTimeoutSeconds          int     `mapstructure:"video_timeout_seconds"`
	VideoExtractionEnabled       bool    `mapstructure:"video_extraction_enabled"`
}

// Brief holds ranking, selection, and topic-brief knobs.
type Brief struct {
	LookbackHours            int `mapstructure:"lookback_hours"`
	MaxItems                 int `mapstructure:"max_items"`
	MaxPerTopic              int `mapstructure:"max_per_topic"`
	TopicBriefTimeoutSeconds int `mapstructure:"topic_brief_timeout_seconds"`
	TopicBriefBatchSize      int `mapstructure:"topic_brief_batch_size"`
}

// Ingest holds connector configuration.
type Ingest struct {
	RSSMaxItems         int `mapstructure:"rss_max_items"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
}

// Processing holds run-loop configuration.
type Processing struct {
	RateLimitDelaySeconds int `mapstructure:"rate_limit_delay_seconds"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

var (
	cfg *Config
	mu  sync.RWMutex
)

// Load reads configuration from defaults, an optional config file, and
// environment variables. A missing file is not an error; a malformed file or
// out-of-range value falls back to defaults rather than failing.
func Load(cfgFile string) (*Config, error) {
	// .env is optional and only feeds env lookups below.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DAILYBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".dailybrief")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		// Malformed settings fall back to built-in defaults.
		c = Config{}
		d := viper.New()
		setDefaults(d)
		_ = d.Unmarshal(&c)
	}
	c.App.ConfigFile = v.ConfigFileUsed()
	c.sanitize()

	mu.Lock()
	cfg = &c
	mu.Unlock()
	return &c, nil
}

// Get returns the loaded configuration, loading defaults if Load was never
// called.
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c != nil {
		return c
	}
	c, _ = Load("")
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".dailybrief-data")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ai.provider", "google")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.run_timeout_seconds", 900)
	v.SetDefault("ai.classification_timeout_seconds", 60)
	v.SetDefault("ai.extraction_timeout_seconds", 90)
	v.SetDefault("ai.video_timeout_seconds", 90)
	v.SetDefault("ai.video_extraction_enabled", true)

	v.SetDefault("brief.lookback_hours", 48)
	v.SetDefault("brief.max_items", 15)
	v.SetDefault("brief.max_per_topic", 3)
	v.SetDefault("brief.topic_brief_timeout_seconds", 60)
	v.SetDefault("brief.topic_brief_batch_size", 10)

	v.SetDefault("ingest.rss_max_items", 10)
	v.SetDefault("ingest.fetch_timeout_seconds", 30)

	v.SetDefault("processing.rate_limit_delay_seconds", 1)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
}

// sanitize clamps out-of-range values back to defaults so that a bad settings
// source degrades rather than breaks runs.
func (c *Config) sanitize() {
	if c.AI.RunTimeoutSeconds <= 0 {
		c.AI.RunTimeoutSeconds = 900
	}
	if c.AI.ClassificationTimeoutSeconds <= 0 {
		c.AI.ClassificationTimeoutSeconds = 60
	}
	if c.AI.ExtractionTimeoutSeconds <= 0 {
		c.AI.ExtractionTimeoutSeconds = 90
	}
	if c.AI.VideoTimeoutSeconds <= 0 {
		c.AI.VideoTimeoutSeconds = 90
	}
	if c.Brief.LookbackHours < 1 {
		c.Brief.LookbackHours = 48
	}
	if c.Brief.MaxItems < 0 {
		c.Brief.MaxItems = 15
	}
	if c.Brief.MaxPerTopic < 0 {
		c.Brief.MaxPerTopic = 3
	}
	if c.Brief.TopicBriefTimeoutSeconds <= 0 {
		c.Brief.TopicBriefTimeoutSeconds = 60
	}
	if c.Brief.TopicBriefBatchSize < 1 {
		c.Brief.TopicBriefBatchSize = 10
	}
	if c.Ingest.RSSMaxItems < 1 {
		c.Ingest.RSSMaxItems = 10
	}
	if c.Ingest.FetchTimeoutSeconds <= 0 {
		c.Ingest.FetchTimeoutSeconds = 30
	}
	if c.Processing.RateLimitDelaySeconds < 0 {
		c.Processing.RateLimitDelaySeconds = 1
	}
}

// RunTimeout returns the run-level supervisor timeout.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.AI.RunTimeoutSeconds) * time.Second
}

// ClassificationTimeout returns the per-call classification budget.
func (c *Config) ClassificationTimeout() time.Duration {
	return time.Duration(c.AI.ClassificationTimeoutSeconds) * time.Second
}

// ExtractionTimeout returns the per-call text extraction budget.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.AI.ExtractionTimeoutSeconds) * time.Second
}

// VideoTimeout returns the per-call video extraction budget.
func (c *Config) VideoTimeout() time.Duration {
	return time.Duration(c.AI.VideoTimeoutSeconds) * time.Second
}

// TopicBriefTimeout returns the per-topic summarization budget.
func (c *Config) TopicBriefTimeout() time.Duration {
	return time.Duration(c.Brief.TopicBriefTimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-request feed fetch budget.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Ingest.FetchTimeoutSeconds) * time.Second
}

// RateLimitDelay returns the pause inserted between pipeline items.
func (c *Config) RateLimitDelay() time.Duration {
	return time.Duration(c.Processing.RateLimitDelaySeconds) * time.Second
}
