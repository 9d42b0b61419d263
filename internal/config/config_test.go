package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AI.Provider != "google" || cfg.AI.Model != "gemini-2.0-flash" {
		t.Errorf("AI defaults = %q/%q", cfg.AI.Provider, cfg.AI.Model)
	}
	if cfg.RunTimeout() != 900*time.Second {
		t.Errorf("run timeout = %v, want 900s", cfg.RunTimeout())
	}
	if cfg.ClassificationTimeout() != 60*time.Second {
		t.Errorf("classification timeout = %v, want 60s", cfg.ClassificationTimeout())
	}
	if cfg.ExtractionTimeout() != 90*time.Second {
		t.Errorf("extraction timeout = %v, want 90s", cfg.ExtractionTimeout())
	}
	if cfg.Brief.LookbackHours != 48 || cfg.Brief.MaxItems != 15 || cfg.Brief.MaxPerTopic != 3 {
		t.Errorf("brief defaults = %+v", cfg.Brief)
	}
	if cfg.TopicBriefTimeout() != 60*time.Second || cfg.Brief.TopicBriefBatchSize != 10 {
		t.Errorf("topic brief defaults = %v / %d", cfg.TopicBriefTimeout(), cfg.Brief.TopicBriefBatchSize)
	}
	if cfg.RateLimitDelay() != time.Second {
		t.Errorf("rate limit delay = %v, want 1s", cfg.RateLimitDelay())
	}
	if !cfg.AI.VideoExtractionEnabled {
		t.Error("video extraction should default to enabled")
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`ai:
  run_timeout_seconds: 300
brief:
  max_items: 5
  lookback_hours: 24
server:
  port: 9999
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RunTimeout() != 300*time.Second {
		t.Errorf("run timeout = %v, want 300s", cfg.RunTimeout())
	}
	if cfg.Brief.MaxItems != 5 || cfg.Brief.LookbackHours != 24 {
		t.Errorf("brief overrides = %+v", cfg.Brief)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	// Untouched keys keep their defaults.
	if cfg.Brief.MaxPerTopic != 3 {
		t.Errorf("max_per_topic = %d, want default 3", cfg.Brief.MaxPerTopic)
	}
}

func TestSanitize_ClampsOutOfRangeValues(t *testing.T) {
	c := Config{}
	c.AI.RunTimeoutSeconds = -5
	c.AI.ClassificationTimeoutSeconds = 0
	c.Brief.LookbackHours = 0
	c.Brief.MaxItems = -1
	c.Brief.TopicBriefBatchSize = 0
	c.Ingest.RSSMaxItems = 0
	c.Processing.RateLimitDelaySeconds = -2
	c.sanitize()

	if c.AI.RunTimeoutSeconds != 900 {
		t.Errorf("run timeout = %d", c.AI.RunTimeoutSeconds)
	}
	if c.AI.ClassificationTimeoutSeconds != 60 {
		t.Errorf("classification timeout = %d", c.AI.ClassificationTimeoutSeconds)
	}
	if c.Brief.LookbackHours != 48 || c.Brief.MaxItems != 15 {
		t.Errorf("brief = %+v", c.Brief)
	}
	if c.Brief.TopicBriefBatchSize != 10 {
		t.Errorf("batch size = %d", c.Brief.TopicBriefBatchSize)
	}
	if c.Ingest.RSSMaxItems != 10 {
		t.Errorf("rss max items = %d", c.Ingest.RSSMaxItems)
	}
	if c.Processing.RateLimitDelaySeconds != 1 {
		t.Errorf("rate limit delay = %d", c.Processing.RateLimitDelaySeconds)
	}
}

func TestGet_ReturnsLoadedConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if Get() != cfg {
		t.Error("Get() should return the last loaded config")
	}
}
