package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	TestMode    bool            `toml:"test_mode"`   // Run the full pipeline but suppress real posting
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Sources     SourcesConfig   `toml:"sources"`
	Filter      FilterConfig    `toml:"filter"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Composer    ComposerConfig  `toml:"composer"`
	Publisher   PublisherConfig `toml:"publisher"`
	Charts      ChartsConfig    `toml:"charts"`
	Mailer      MailerConfig    `toml:"mailer"`
	Portfolio   PortfolioConfig `toml:"portfolio"`
	Quotes      QuotesConfig    `toml:"quotes"`
}

// PipelineConfig contains the polling loop settings
type PipelineConfig struct {
	PollInterval       string        `toml:"poll_interval"`        // Interval between poll cycles as duration string (default: "2m")
	MaxRetries         int           `toml:"max_retries"`          // Per-item retry bound before marking failed (default: 3)
	RetryBackoff       time.Duration `toml:"retry_backoff"`        // Initial backoff between in-cycle retries (default: 5s)
	RetryBackoffMax    time.Duration `toml:"retry_backoff_max"`    // Backoff ceiling (default: 60s)
	RateLimitCooldown  time.Duration `toml:"rate_limit_cooldown"`  // Sleep after a publish rate limit before the single retry (default: 60s)
	SourceCooldown     time.Duration `toml:"source_cooldown"`      // Fetch cooldown after repeated source failures (default: 30m)
	SourceFailLimit    int           `toml:"source_fail_limit"`    // Consecutive fetch failures that open a cooldown (default: 3)
	MaxItemsPerCycle   int           `toml:"max_items_per_cycle"`  // Cap on items processed in one cycle (default: 25)
	DigestSchedule     string        `toml:"digest_schedule"`      // Cron schedule for the daily digest (default: "0 0 21 * * *")
	CompactionSchedule string        `toml:"compaction_schedule"`  // Cron schedule for seen-set compaction (default: "0 30 3 * * *")
	SeenRetention      time.Duration `toml:"seen_retention"`       // Age after which non-posted seen entries are compacted (default: 720h)
	ShutdownTimeout    time.Duration `toml:"shutdown_timeout"`     // Grace period for in-flight work on shutdown (default: 30s)
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	GCInterval     string `toml:"gc_interval"`      // Value-log GC interval as duration string (default: "10m")
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// SourcesConfig groups the upstream news adapters
type SourcesConfig struct {
	RSS        RSSConfig        `toml:"rss"`
	Stream     StreamConfig     `toml:"stream"`
	Newsletter NewsletterConfig `toml:"newsletter"`
}

// RSSConfig contains RSS feed polling configuration
type RSSConfig struct {
	Enabled        bool          `toml:"enabled"`
	URL            string        `toml:"url" validate:"omitempty,url"`
	UserAgent      string        `toml:"user_agent"`
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout (default: 30s)
	RateLimit      time.Duration `toml:"rate_limit"`      // Minimum delay between feed requests (default: 5s)
	MaxItems       int           `toml:"max_items"`       // Cap on items taken per fetch (default: 50)
}

// StreamConfig contains the websocket headline stream configuration
type StreamConfig struct {
	Enabled        bool          `toml:"enabled"`
	URL            string        `toml:"url" validate:"omitempty,url"`
	QueueSize      int           `toml:"queue_size"`      // Bounded buffer between stream and poll loop (default: 256)
	ReconnectDelay time.Duration `toml:"reconnect_delay"` // Initial reconnect backoff (default: 5s)
	ReconnectMax   time.Duration `toml:"reconnect_max"`   // Reconnect backoff ceiling (default: 5m)
	PingInterval   time.Duration `toml:"ping_interval"`   // Keepalive ping interval (default: 30s)
}

// NewsletterConfig contains the IMAP newsletter inbox configuration
type NewsletterConfig struct {
	Enabled     bool     `toml:"enabled"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	UseTLS      bool     `toml:"use_tls"`
	Folder      string   `toml:"folder"`       // Mailbox folder to read (default: "INBOX")
	MaxMessages int      `toml:"max_messages"` // Cap on messages per fetch (default: 10)
	SenderAllow []string `toml:"sender_allow"` // Only accept mail from these senders; empty allows all
}

// FilterConfig contains the pre-extraction relevance gate
type FilterConfig struct {
	MarketHoursOnly bool     `toml:"market_hours_only"` // Only post during exchange hours
	Timezone        string   `toml:"timezone"`          // Exchange timezone (default: "America/New_York")
	MinTitleLength  int      `toml:"min_title_length"`  // Headlines shorter than this are dropped (default: 20)
	Keywords        []string `toml:"keywords"`          // When set, at least one must appear in the headline
	Blacklist       []string `toml:"blacklist"`         // Instruments never posted
	MappingFile     string   `toml:"mapping_file"`      // YAML file of instrument aliases and macro proxies
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for extraction (default: "gemini-3-flash-preview")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 300)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "45s")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for extraction (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 300)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "45s")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "claude")
	MaxRetries      int         `toml:"max_retries"`      // Transport retry bound inside the LLM layer (default: 3)
}

// ComposerConfig controls post formatting
type ComposerConfig struct {
	TargetLength int      `toml:"target_length"` // Compose target below the platform cap (default: 240)
	RationaleMax int      `toml:"rationale_max"` // Rationale truncation length (default: 100)
	Hashtags     []string `toml:"hashtags"`      // Appended when space allows
}

// PublisherConfig contains social platform posting configuration
type PublisherConfig struct {
	Twitter TwitterConfig `toml:"twitter"`
}

// TwitterConfig contains X API v2 credentials and limits
type TwitterConfig struct {
	Enabled        bool          `toml:"enabled"`
	BaseURL        string        `toml:"base_url"`     // API base (default: "https://api.twitter.com")
	UploadURL      string        `toml:"upload_url"`   // Media upload base (default: "https://upload.twitter.com")
	ClientID       string        `toml:"client_id"`    // OAuth2 client id
	ClientSecret   string        `toml:"client_secret"`
	AccessToken    string        `toml:"access_token"`  // OAuth2 user-context access token
	RefreshToken   string        `toml:"refresh_token"` // OAuth2 refresh token
	TokenURL       string        `toml:"token_url"`     // OAuth2 token endpoint (default: BaseURL + "/2/oauth2/token")
	RateLimit      time.Duration `toml:"rate_limit"`    // Minimum delay between posts (default: 1s)
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout (default: 30s)
	CharacterLimit int           `toml:"character_limit"` // Platform post cap (default: 280)
}

// ChartsConfig contains chart screenshot configuration
type ChartsConfig struct {
	Enabled        bool          `toml:"enabled"`
	BaseURL        string        `toml:"base_url"`        // Chart site base (default: "https://www.tradingview.com")
	Timeout        time.Duration `toml:"timeout"`         // Per-capture timeout (default: 45s)
	RenderWait     time.Duration `toml:"render_wait"`     // Wait for the chart to paint (default: 5s)
	ViewportWidth  int           `toml:"viewport_width"`  // Browser viewport width (default: 1280)
	ViewportHeight int           `toml:"viewport_height"` // Browser viewport height (default: 800)
	Headless       bool          `toml:"headless"`        // Run Chrome headless (default: true)
	CacheTTL       time.Duration `toml:"cache_ttl"`       // Symbol-resolution cache lifetime (default: 168h)
}

// MailerConfig contains SMTP notification configuration
type MailerConfig struct {
	Enabled   bool     `toml:"enabled"`
	Host      string   `toml:"host"`
	Port      int      `toml:"port"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	From      string   `toml:"from" validate:"omitempty,email"`
	To        []string `toml:"to"`
	UseTLS    bool     `toml:"use_tls"`
	AttachPDF bool     `toml:"attach_pdf"` // Attach a PDF rendering of the daily digest
}

// PortfolioConfig contains the simulated portfolio settings
type PortfolioConfig struct {
	Enabled      bool   `toml:"enabled"`
	InitialCash  string `toml:"initial_cash"`  // Starting cash as a decimal string (default: "10000")
	CashReserve  string `toml:"cash_reserve"`  // Floor never spent below (default: "1000")
	PositionSize string `toml:"position_size"` // Cash allocated per buy signal (default: "500")
}

// QuotesConfig contains the EODHD price feed used to mark simulated trades
type QuotesConfig struct {
	Enabled   bool          `toml:"enabled"`
	BaseURL   string        `toml:"base_url" validate:"omitempty,url"`
	APIKey    string        `toml:"api_key"`
	Exchange  string        `toml:"exchange"`   // Exchange suffix appended to quote symbols (default: "US")
	Timeout   time.Duration `toml:"timeout"`    // HTTP request timeout (default: 15s)
	RateLimit int           `toml:"rate_limit"` // Requests per second (default: 10)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in nuntius.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		TestMode:    false,
		Pipeline: PipelineConfig{
			PollInterval:       "2m",
			MaxRetries:         3,
			RetryBackoff:       5 * time.Second,
			RetryBackoffMax:    60 * time.Second,
			RateLimitCooldown:  60 * time.Second,
			SourceCooldown:     30 * time.Minute,
			SourceFailLimit:    3,
			MaxItemsPerCycle:   25,
			DigestSchedule:     "0 0 21 * * *",  // 21:00 daily
			CompactionSchedule: "0 30 3 * * *",  // 03:30 daily
			SeenRetention:      30 * 24 * time.Hour,
			ShutdownTimeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:       "./data",
				GCInterval: "10m",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Sources: SourcesConfig{
			RSS: RSSConfig{
				Enabled:        true,
				URL:            "https://www.financialjuice.com/feed.ashx?xy=rss",
				UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				RequestTimeout: 30 * time.Second,
				RateLimit:      5 * time.Second,
				MaxItems:       50,
			},
			Stream: StreamConfig{
				Enabled:        false,
				QueueSize:      256,
				ReconnectDelay: 5 * time.Second,
				ReconnectMax:   5 * time.Minute,
				PingInterval:   30 * time.Second,
			},
			Newsletter: NewsletterConfig{
				Enabled:     false,
				Port:        993,
				UseTLS:      true,
				Folder:      "INBOX",
				MaxMessages: 10,
			},
		},
		Filter: FilterConfig{
			MarketHoursOnly: false,
			Timezone:        "America/New_York",
			MinTitleLength:  20,
			Keywords:        []string{},
			Blacklist:       []string{"GOOG", "GOOGL", "META", "TSLA"},
			MappingFile:     "./instruments.yaml",
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			MaxTokens:   300,
			Timeout:     "45s",
			RateLimit:   "4s",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   300,
			Timeout:     "45s",
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			MaxRetries:      3,
		},
		Composer: ComposerConfig{
			TargetLength: 240,
			RationaleMax: 100,
			Hashtags:     []string{"#trading", "#markets"},
		},
		Publisher: PublisherConfig{
			Twitter: TwitterConfig{
				Enabled:        true,
				BaseURL:        "https://api.twitter.com",
				UploadURL:      "https://upload.twitter.com",
				RateLimit:      1 * time.Second,
				RequestTimeout: 30 * time.Second,
				CharacterLimit: 280,
			},
		},
		Charts: ChartsConfig{
			Enabled:        true,
			BaseURL:        "https://www.tradingview.com",
			Timeout:        45 * time.Second,
			RenderWait:     5 * time.Second,
			ViewportWidth:  1280,
			ViewportHeight: 800,
			Headless:       true,
			CacheTTL:       7 * 24 * time.Hour,
		},
		Mailer: MailerConfig{
			Enabled:   false,
			Port:      587,
			UseTLS:    true,
			AttachPDF: false,
		},
		Portfolio: PortfolioConfig{
			Enabled:      true,
			InitialCash:  "10000",
			CashReserve:  "1000",
			PositionSize: "500",
		},
		Quotes: QuotesConfig{
			Enabled:   true,
			Exchange:  "US",
			Timeout:   15 * time.Second,
			RateLimit: 10,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: NUNTIUS_ENV, fallback: GO_ENV)
	if env := os.Getenv("NUNTIUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if testMode := os.Getenv("NUNTIUS_TEST_MODE"); testMode != "" {
		if tm, err := strconv.ParseBool(testMode); err == nil {
			config.TestMode = tm
		}
	}

	// Pipeline configuration
	if pollInterval := os.Getenv("NUNTIUS_POLL_INTERVAL"); pollInterval != "" {
		config.Pipeline.PollInterval = pollInterval
	}
	if maxRetries := os.Getenv("NUNTIUS_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Pipeline.MaxRetries = mr
		}
	}
	if backoff := os.Getenv("NUNTIUS_RETRY_BACKOFF"); backoff != "" {
		if d, err := time.ParseDuration(backoff); err == nil {
			config.Pipeline.RetryBackoff = d
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("NUNTIUS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("NUNTIUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("NUNTIUS_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("NUNTIUS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Source configuration
	if rssURL := os.Getenv("NUNTIUS_RSS_URL"); rssURL != "" {
		config.Sources.RSS.URL = rssURL
	}
	if streamURL := os.Getenv("NUNTIUS_STREAM_URL"); streamURL != "" {
		config.Sources.Stream.URL = streamURL
	}
	if imapHost := os.Getenv("NUNTIUS_IMAP_HOST"); imapHost != "" {
		config.Sources.Newsletter.Host = imapHost
	}
	if imapUser := os.Getenv("NUNTIUS_IMAP_USERNAME"); imapUser != "" {
		config.Sources.Newsletter.Username = imapUser
	}
	if imapPass := os.Getenv("NUNTIUS_IMAP_PASSWORD"); imapPass != "" {
		config.Sources.Newsletter.Password = imapPass
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("NUNTIUS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey // NUNTIUS_ prefix takes priority
	}
	if model := os.Getenv("NUNTIUS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("NUNTIUS_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("NUNTIUS_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("NUNTIUS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // NUNTIUS_ prefix takes priority
	}
	if model := os.Getenv("NUNTIUS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("NUNTIUS_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("NUNTIUS_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	// LLM provider configuration
	if provider := os.Getenv("NUNTIUS_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Publisher configuration
	if clientID := os.Getenv("NUNTIUS_TWITTER_CLIENT_ID"); clientID != "" {
		config.Publisher.Twitter.ClientID = clientID
	}
	if clientSecret := os.Getenv("NUNTIUS_TWITTER_CLIENT_SECRET"); clientSecret != "" {
		config.Publisher.Twitter.ClientSecret = clientSecret
	}
	if accessToken := os.Getenv("NUNTIUS_TWITTER_ACCESS_TOKEN"); accessToken != "" {
		config.Publisher.Twitter.AccessToken = accessToken
	}
	if refreshToken := os.Getenv("NUNTIUS_TWITTER_REFRESH_TOKEN"); refreshToken != "" {
		config.Publisher.Twitter.RefreshToken = refreshToken
	}

	// Mailer configuration
	if smtpHost := os.Getenv("NUNTIUS_SMTP_HOST"); smtpHost != "" {
		config.Mailer.Host = smtpHost
	}
	if smtpUser := os.Getenv("NUNTIUS_SMTP_USERNAME"); smtpUser != "" {
		config.Mailer.Username = smtpUser
	}
	if smtpPass := os.Getenv("NUNTIUS_SMTP_PASSWORD"); smtpPass != "" {
		config.Mailer.Password = smtpPass
	}

	// Quote feed configuration
	if apiKey := os.Getenv("EODHD_API_KEY"); apiKey != "" {
		config.Quotes.APIKey = apiKey
	}
	if apiKey := os.Getenv("NUNTIUS_EODHD_API_KEY"); apiKey != "" {
		config.Quotes.APIKey = apiKey // NUNTIUS_ prefix takes priority
	}
}

// Validate checks structural validity of the configuration. Credentials
// are checked at service construction, not here, so a config without API
// keys still loads for test mode.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	poll, err := time.ParseDuration(c.Pipeline.PollInterval)
	if err != nil {
		return fmt.Errorf("pipeline poll_interval %q is not a valid duration: %w", c.Pipeline.PollInterval, err)
	}
	if poll < 10*time.Second {
		return fmt.Errorf("pipeline poll_interval %v below 10s minimum", poll)
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline max_retries must be at least 1")
	}
	if c.Sources.Stream.Enabled && c.Sources.Stream.QueueSize < 1 {
		return fmt.Errorf("stream queue_size must be positive when the stream source is enabled")
	}
	if c.Composer.TargetLength > c.Publisher.Twitter.CharacterLimit {
		return fmt.Errorf("composer target_length %d exceeds platform character limit %d",
			c.Composer.TargetLength, c.Publisher.Twitter.CharacterLimit)
	}

	for _, schedule := range []string{c.Pipeline.DigestSchedule, c.Pipeline.CompactionSchedule} {
		if schedule == "" {
			continue
		}
		if err := ValidateSchedule(schedule); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSchedule validates a cron schedule expression (6-field, with seconds)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}
