package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Fetcher     FetcherConfig  `toml:"fetcher"`
	Resolver    ResolverConfig `toml:"resolver"`
	Screener    ScreenerConfig `toml:"screener"`
	Cache       CacheConfig    `toml:"cache"`
	Refresh     RefreshConfig  `toml:"refresh"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required_unless=InMemory true"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`                             // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`                                    // Keep everything in memory, nothing survives Close
	SyncWrites     bool   `toml:"sync_writes"`                                  // fsync every company/dataset write
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output []string `toml:"output" validate:"dive,oneof=stdout console file"`
}

// FetcherConfig controls the plain HTTP quote fetcher and the page probes of the resolver
type FetcherConfig struct {
	UserAgent        string   `toml:"user_agent" validate:"required"`
	RequestTimeout   Duration `toml:"request_timeout" validate:"gt=0"`
	RateLimit        float64  `toml:"rate_limit" validate:"gte=0"` // Requests per second across all hosts, 0 disables
	QuoteURLTemplate string   `toml:"quote_url_template" validate:"required,contains=%s"`
}

// ResolverConfig controls company-name discovery
type ResolverConfig struct {
	ProfileURLTemplate string `toml:"profile_url_template" validate:"required,contains=%s"`
}

// ScreenerConfig controls the authenticated browser session
type ScreenerConfig struct {
	Username     string   `toml:"username"`
	Password     string   `toml:"password"`
	BrowserPath  string   `toml:"browser_path"` // Chrome/Chromium binary used by chromedp
	LoginURL     string   `toml:"login_url" validate:"required,url"`
	LoginPath    string   `toml:"login_path" validate:"required"` // Still present in the location after submit means login failed
	Headless     bool     `toml:"headless"`
	WaitTimeout  Duration `toml:"wait_timeout" validate:"gt=0"`
	SettleDelay  Duration `toml:"settle_delay" validate:"gte=0"`
	PollInterval Duration `toml:"poll_interval" validate:"gt=0"`
	DebugDir     string   `toml:"debug_dir"` // Raw page dumps on empty extraction
}

// CacheConfig controls the same-day freshness cache
type CacheConfig struct {
	Timezone string `toml:"timezone"` // IANA zone for the date key, empty = host local
}

// RefreshConfig controls the scheduled quote refresh of the watch command
type RefreshConfig struct {
	Schedule    string   `toml:"schedule"` // Cron expression, e.g. "*/15 9-16 * * 1-5"
	Tickers     []string `toml:"tickers"`
	Concurrency int      `toml:"concurrency" validate:"gte=1"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/tickerfeed",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Fetcher: FetcherConfig{
			UserAgent:        DefaultUserAgent,
			RequestTimeout:   Duration(10 * time.Second),
			RateLimit:        2,
			QuoteURLTemplate: "https://www.kotaksecurities.com/stocks/%s/",
		},
		Resolver: ResolverConfig{
			ProfileURLTemplate: "https://www.screener.in/company/%s/consolidated/",
		},
		Screener: ScreenerConfig{
			LoginURL:     "https://www.screener.in/login/",
			LoginPath:    "/login/",
			Headless:     true,
			WaitTimeout:  Duration(15 * time.Second),
			SettleDelay:  Duration(3 * time.Second),
			PollInterval: Duration(500 * time.Millisecond),
			DebugDir:     "./logs/debug",
		},
		Refresh: RefreshConfig{
			Concurrency: 4,
		},
	}
}

// DefaultUserAgent is sent on every plain HTTP request; the source sites reject default client signatures
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies TICKERFEED_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TICKERFEED_ENV"); env != "" {
		config.Environment = env
	}

	if badgerPath := os.Getenv("TICKERFEED_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("TICKERFEED_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TICKERFEED_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if userAgent := os.Getenv("TICKERFEED_FETCHER_USER_AGENT"); userAgent != "" {
		config.Fetcher.UserAgent = userAgent
	}
	if requestTimeout := os.Getenv("TICKERFEED_FETCHER_REQUEST_TIMEOUT"); requestTimeout != "" {
		if d, err := time.ParseDuration(requestTimeout); err == nil {
			config.Fetcher.RequestTimeout = Duration(d)
		}
	}
	if rateLimit := os.Getenv("TICKERFEED_FETCHER_RATE_LIMIT"); rateLimit != "" {
		if r, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.Fetcher.RateLimit = r
		}
	}

	// Credentials are expected from the environment rather than committed config files
	if username := os.Getenv("TICKERFEED_SCREENER_USERNAME"); username != "" {
		config.Screener.Username = username
	}
	if password := os.Getenv("TICKERFEED_SCREENER_PASSWORD"); password != "" {
		config.Screener.Password = password
	}
	if browserPath := os.Getenv("TICKERFEED_SCREENER_BROWSER_PATH"); browserPath != "" {
		config.Screener.BrowserPath = browserPath
	}
	if headless := os.Getenv("TICKERFEED_SCREENER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Screener.Headless = b
		}
	}
	if debugDir := os.Getenv("TICKERFEED_SCREENER_DEBUG_DIR"); debugDir != "" {
		config.Screener.DebugDir = debugDir
	}

	if tz := os.Getenv("TICKERFEED_CACHE_TIMEZONE"); tz != "" {
		config.Cache.Timezone = tz
	}
}

// Validate checks struct-tag constraints and cross-field rules
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.Timezone != "" {
		if _, err := time.LoadLocation(c.Cache.Timezone); err != nil {
			return fmt.Errorf("invalid cache timezone %q: %w", c.Cache.Timezone, err)
		}
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, logLevel string, headless *bool) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if headless != nil {
		config.Screener.Headless = *headless
	}
}
