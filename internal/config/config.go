package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Social    SocialConfig    `yaml:"social"`
	Notify    NotifyConfig    `yaml:"notify"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Lifetime returns the connection max lifetime as a duration
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds Redis settings used for distributed locks.
// An empty Addr disables Redis and locks fall back to PostgreSQL.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AutopilotConfig holds the cycle orchestration settings and the
// reference thresholds used when a rule carries no override.
type AutopilotConfig struct {
	ScheduleEnabled   bool    `yaml:"schedule_enabled"`
	Schedule          string  `yaml:"schedule"`
	RunTimeoutSeconds int     `yaml:"run_timeout_seconds"`
	Concurrency       int     `yaml:"concurrency"`
	CycleWindowMins   int     `yaml:"cycle_window_minutes"`
	LockTTLSeconds    int     `yaml:"lock_ttl_seconds"`
	TrendWindow       int     `yaml:"trend_window"`
	MaxDailyBudget    float64 `yaml:"max_daily_budget"`
	SeedRules         bool    `yaml:"seed_rules"`

	Thresholds ThresholdConfig `yaml:"thresholds"`
}

// RunTimeout returns the wall-clock budget of one cycle
func (c AutopilotConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// CycleWindow returns the idempotency window for actions
func (c AutopilotConfig) CycleWindow() time.Duration {
	return time.Duration(c.CycleWindowMins) * time.Minute
}

// LockTTL returns the TTL of cycle and campaign locks
func (c AutopilotConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ThresholdConfig holds the reference policy. Rule params stored in the
// database override these per rule.
type ThresholdConfig struct {
	PauseROIBelow         float64 `yaml:"pause_roi_below"`
	PauseMinSpend         float64 `yaml:"pause_min_spend"`
	ScaleUpROIAtLeast     float64 `yaml:"scale_up_roi_at_least"`
	ScaleUpMinConversions int64   `yaml:"scale_up_min_conversions"`
	ScaleUpPercent        float64 `yaml:"scale_up_percent"`
	ScaleDownROIBelow     float64 `yaml:"scale_down_roi_below"`
	ScaleDownMinSpend     float64 `yaml:"scale_down_min_spend"`
	ScaleDownPercent      float64 `yaml:"scale_down_percent"`
	PostCTRAbove          float64 `yaml:"post_ctr_above"`
	PostMinImpressions    int64   `yaml:"post_min_impressions"`
}

// SocialConfig holds the cross-post platform settings
type SocialConfig struct {
	Enabled        bool                      `yaml:"enabled"`
	TimeoutSeconds int                       `yaml:"timeout_seconds"`
	MaxRetries     int                       `yaml:"max_retries"`
	Platforms      map[string]PlatformConfig `yaml:"platforms"`
}

// Timeout returns the configured timeout as a duration
func (c SocialConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EnabledPlatforms returns the names of platforms that are switched on
// and carry a token, in a stable order.
func (c SocialConfig) EnabledPlatforms() []string {
	var out []string
	for _, name := range []string{"facebook", "instagram", "twitter", "linkedin"} {
		p, ok := c.Platforms[name]
		if ok && p.Enabled && p.AccessToken != "" {
			out = append(out, name)
		}
	}
	return out
}

// PlatformConfig holds one social platform's API settings
type PlatformConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	AccountID   string `yaml:"account_id"`
	AccessToken string `yaml:"access_token"`
	Template    string `yaml:"template"`
	ImageURL    string `yaml:"image_url"`
}

// NotifyConfig holds SES settings for operator alerts
type NotifyConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	From      string   `yaml:"from"`
	To        []string `yaml:"to"`
}

// ArchiveConfig holds S3 settings for run summary archival
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// PIIRedaction reports whether PII redaction is on (default true).
func (c LoggingConfig) PIIRedaction() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that are only wrong in combination.
func (cfg *Config) Validate() error {
	// Under the advisory lock fallback the cycle lock and every in-flight
	// campaign lock each pin a connection, and each campaign's transaction
	// needs one more. Zero or less means an unbounded pool.
	if n := cfg.Database.MaxOpenConns; n > 0 {
		need := 2*cfg.Autopilot.Concurrency + 1
		if n < need {
			return fmt.Errorf("config: database.max_open_conns %d is too small for autopilot.concurrency %d (need at least %d)",
				n, cfg.Autopilot.Concurrency, need)
		}
	}
	return nil
}

// Default returns a configuration with every default applied. It is used
// when no config file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}

	a := &cfg.Autopilot
	if a.Schedule == "" {
		a.Schedule = "@every 15m"
	}
	if a.RunTimeoutSeconds == 0 {
		a.RunTimeoutSeconds = 300
	}
	if a.Concurrency == 0 {
		a.Concurrency = 4
	}
	if a.CycleWindowMins == 0 {
		a.CycleWindowMins = 60
	}
	if a.LockTTLSeconds == 0 {
		a.LockTTLSeconds = 600
	}
	if a.TrendWindow == 0 {
		a.TrendWindow = 5
	}

	th := &a.Thresholds
	if th.PauseROIBelow == 0 {
		th.PauseROIBelow = 1.0
	}
	if th.PauseMinSpend == 0 {
		th.PauseMinSpend = 50
	}
	if th.ScaleUpROIAtLeast == 0 {
		th.ScaleUpROIAtLeast = 3.0
	}
	if th.ScaleUpMinConversions == 0 {
		th.ScaleUpMinConversions = 10
	}
	if th.ScaleUpPercent == 0 {
		th.ScaleUpPercent = 20
	}
	if th.ScaleDownROIBelow == 0 {
		th.ScaleDownROIBelow = 1.5
	}
	if th.ScaleDownMinSpend == 0 {
		th.ScaleDownMinSpend = 100
	}
	if th.ScaleDownPercent == 0 {
		th.ScaleDownPercent = 20
	}
	if th.PostCTRAbove == 0 {
		th.PostCTRAbove = 0.02
	}
	if th.PostMinImpressions == 0 {
		th.PostMinImpressions = 1000
	}

	if cfg.Social.TimeoutSeconds == 0 {
		cfg.Social.TimeoutSeconds = 15
	}
	if cfg.Social.MaxRetries == 0 {
		cfg.Social.MaxRetries = 3
	}
	if cfg.Notify.Region == "" {
		cfg.Notify.Region = "us-east-1"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "autopilot/runs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
// A missing config file is not an error; defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("AUTOPILOT_SCHEDULE"); v != "" {
		cfg.Autopilot.Schedule = v
	}
	if v := os.Getenv("AUTOPILOT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Autopilot.Concurrency = n
		}
	}
	for name, p := range cfg.Social.Platforms {
		if v := os.Getenv("SOCIAL_" + strings.ToUpper(name) + "_TOKEN"); v != "" {
			p.AccessToken = v
			cfg.Social.Platforms[name] = p
		}
	}

	// AWS credentials shared by notify and archive
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Notify.Region = v
		cfg.Archive.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Notify.AccessKey = v
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Notify.SecretKey = v
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
		cfg.Archive.Enabled = true
	}
	if v := os.Getenv("NOTIFY_TO"); v != "" {
		cfg.Notify.To = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
