package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Pipeline.PollInterval != "2m" {
		t.Errorf("expected default poll interval 2m, got %v", config.Pipeline.PollInterval)
	}
	if config.Pipeline.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", config.Pipeline.MaxRetries)
	}
	if config.Composer.TargetLength != 240 {
		t.Errorf("expected default compose target 240, got %d", config.Composer.TargetLength)
	}
	if config.Publisher.Twitter.CharacterLimit != 280 {
		t.Errorf("expected default character limit 280, got %d", config.Publisher.Twitter.CharacterLimit)
	}
	if config.TestMode {
		t.Error("test mode should default to off")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nuntius.toml")

	content := `environment = "production"
test_mode = true

[pipeline]
poll_interval = "5m"
max_retries = 5

[sources.rss]
url = "https://example.com/feed.xml"

[composer]
target_length = 200
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles returned error: %v", err)
	}

	if config.Environment != "production" {
		t.Errorf("expected environment production, got %q", config.Environment)
	}
	if !config.TestMode {
		t.Error("expected test_mode true")
	}
	if config.Pipeline.PollInterval != "5m" {
		t.Errorf("expected poll interval 5m, got %v", config.Pipeline.PollInterval)
	}
	if config.Pipeline.MaxRetries != 5 {
		t.Errorf("expected max retries 5, got %d", config.Pipeline.MaxRetries)
	}
	if config.Sources.RSS.URL != "https://example.com/feed.xml" {
		t.Errorf("unexpected RSS url %q", config.Sources.RSS.URL)
	}
	if config.Composer.TargetLength != 200 {
		t.Errorf("expected compose target 200, got %d", config.Composer.TargetLength)
	}

	// Untouched settings keep defaults
	if config.Pipeline.RetryBackoff != 5*time.Second {
		t.Errorf("expected default retry backoff preserved, got %v", config.Pipeline.RetryBackoff)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NUNTIUS_LOG_LEVEL", "debug")
	t.Setenv("NUNTIUS_TEST_MODE", "true")
	t.Setenv("NUNTIUS_RSS_URL", "https://env.example.com/rss")
	t.Setenv("NUNTIUS_CLAUDE_API_KEY", "sk-test-env")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles returned error: %v", err)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("expected env log level debug, got %q", config.Logging.Level)
	}
	if !config.TestMode {
		t.Error("expected env test mode true")
	}
	if config.Sources.RSS.URL != "https://env.example.com/rss" {
		t.Errorf("expected env RSS url, got %q", config.Sources.RSS.URL)
	}
	if config.Claude.APIKey != "sk-test-env" {
		t.Errorf("expected env claude key, got %q", config.Claude.APIKey)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "poll interval too short",
			mutate: func(c *Config) {
				c.Pipeline.PollInterval = "1s"
			},
		},
		{
			name: "poll interval not a duration",
			mutate: func(c *Config) {
				c.Pipeline.PollInterval = "every five minutes"
			},
		},
		{
			name: "zero max retries",
			mutate: func(c *Config) {
				c.Pipeline.MaxRetries = 0
			},
		},
		{
			name: "compose target above platform limit",
			mutate: func(c *Config) {
				c.Composer.TargetLength = 500
			},
		},
		{
			name: "bad digest schedule",
			mutate: func(c *Config) {
				c.Pipeline.DigestSchedule = "not a cron expr"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
