package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tradedeck TradedeckConfig `yaml:"tradedeck"`
	Backend   BackendConfig   `yaml:"backend"`
	Poll      PollConfig      `yaml:"poll"`
	Ticker    TickerConfig    `yaml:"ticker"`
	Feed      FeedConfig      `yaml:"feed"`
	Detail    DetailConfig    `yaml:"detail"`
	Chart     ChartConfig     `yaml:"chart"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TradedeckConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type BackendConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type PollConfig struct {
	LeaderboardInterval   time.Duration `yaml:"leaderboard_interval"`
	DetailRefreshInterval time.Duration `yaml:"detail_refresh_interval"`
	TickerInterval        time.Duration `yaml:"ticker_interval"`
	SnapshotLimit         int           `yaml:"snapshot_limit"`
	TradeDisplayLimit     int           `yaml:"trade_display_limit"`
}

type TickerConfig struct {
	Capacity int `yaml:"capacity"`
}

// FeedConfig selects how live trades reach the ticker store: "poll" hits the
// latest-trade endpoint on a cadence, "websocket" subscribes to the backend's
// trade stream.
type FeedConfig struct {
	Mode           string        `yaml:"mode"`
	WSURL          string        `yaml:"ws_url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type DetailConfig struct {
	OrderbookEnabled bool   `yaml:"orderbook_enabled"`
	OrderbookSymbol  string `yaml:"orderbook_symbol"`
}

type ChartConfig struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Padding float64 `yaml:"padding"`
}

type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Directory     string        `yaml:"directory"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	S3            S3Config      `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Region        string `yaml:"region"`
	Namespace     string `yaml:"namespace"`
	DashboardName string `yaml:"dashboard_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// LoadConfig reads, defaults, env-overrides and validates the configuration
// at path. The path itself is resolved against APP_ENV first, so a
// config.production.yml next to the default file wins in production.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Timeout:   10 * time.Second,
			UserAgent: "tradedeck",
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				BurstSize:         40,
			},
		},
		Poll: PollConfig{
			LeaderboardInterval:   5 * time.Second,
			DetailRefreshInterval: 5 * time.Second,
			TickerInterval:        time.Second,
			SnapshotLimit:         144,
			TradeDisplayLimit:     20,
		},
		Ticker: TickerConfig{Capacity: 10},
		Feed: FeedConfig{
			Mode:           "poll",
			ReconnectDelay: 5 * time.Second,
		},
		Detail: DetailConfig{
			OrderbookEnabled: true,
			OrderbookSymbol:  "BTCUSDT",
		},
		Chart: ChartConfig{Width: 800, Height: 200, Padding: 20},
		Recorder: RecorderConfig{
			Directory:     "./data",
			FlushInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func overrideFromEnv(config *Config) {
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		config.Backend.BaseURL = strings.TrimSpace(v)
	}
	if config.Recorder.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Recorder.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Recorder.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Recorder.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Recorder.S3.Bucket = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Tradedeck.Name == "" {
		return fmt.Errorf("tradedeck.name is required")
	}
	if cfg.Tradedeck.Version == "" {
		return fmt.Errorf("tradedeck.version is required")
	}

	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if _, err := url.Parse(cfg.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend.base_url is invalid: %w", err)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be greater than 0")
	}

	if cfg.Poll.LeaderboardInterval <= 0 {
		return fmt.Errorf("poll.leaderboard_interval must be greater than 0")
	}
	if cfg.Poll.DetailRefreshInterval <= 0 {
		return fmt.Errorf("poll.detail_refresh_interval must be greater than 0")
	}
	if cfg.Poll.TickerInterval <= 0 {
		return fmt.Errorf("poll.ticker_interval must be greater than 0")
	}
	if cfg.Poll.SnapshotLimit <= 0 {
		return fmt.Errorf("poll.snapshot_limit must be greater than 0")
	}

	if cfg.Ticker.Capacity <= 0 {
		return fmt.Errorf("ticker.capacity must be greater than 0")
	}

	switch cfg.Feed.Mode {
	case "poll", "websocket":
	default:
		return fmt.Errorf("feed.mode must be \"poll\" or \"websocket\", got %q", cfg.Feed.Mode)
	}

	if cfg.Recorder.Enabled {
		if cfg.Recorder.Directory == "" {
			return fmt.Errorf("recorder.directory is required when the recorder is enabled")
		}
		if cfg.Recorder.FlushInterval <= 0 {
			return fmt.Errorf("recorder.flush_interval must be greater than 0")
		}
	}
	if cfg.Recorder.S3.Enabled {
		if cfg.Recorder.S3.Bucket == "" {
			return fmt.Errorf("recorder.s3.bucket is required when S3 upload is enabled")
		}
		if cfg.Recorder.S3.Region == "" {
			return fmt.Errorf("recorder.s3.region is required when S3 upload is enabled")
		}
		if !isValidS3Bucket(cfg.Recorder.S3.Bucket) {
			return fmt.Errorf("recorder.s3.bucket '%s' is invalid", cfg.Recorder.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
