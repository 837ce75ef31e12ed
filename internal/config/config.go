package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobletter service.
type Config struct {
	Telegram     TelegramConfig
	DatabasePath string
	Scheduler    SchedulerConfig
	Digest       DigestConfig
	Sources      []SourceConfig // order is ranking priority
	SourcePolicy SourcePolicyConfig
	AI           AIConfig
	Notification NotificationConfig
	Lock         LockConfig
	Admin        AdminConfig
}

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	Token string
}

// SchedulerConfig controls the periodic tick and the defaults offered to new
// users.
type SchedulerConfig struct {
	TickInterval    time.Duration
	MaxConcurrent   int
	CycleTimeout    time.Duration
	DefaultHour     int
	DefaultMinute   int
	DefaultTimezone string
}

// DigestConfig bounds what one cycle fetches and delivers.
type DigestConfig struct {
	Size       int           // postings per digest
	MaxResults int           // per source, per cycle
	MaxAge     time.Duration // older postings are dropped
}

// SourceConfig describes one job source.
type SourceConfig struct {
	Name    string        `yaml:"name"` // adzuna, greenhouse, lever or ashby
	Enabled bool          `yaml:"enabled"`
	AppID   string        `yaml:"app_id"`  // adzuna
	AppKey  string        `yaml:"app_key"` // adzuna
	Country string        `yaml:"country"` // adzuna, e.g. "de"
	Boards  []BoardConfig `yaml:"boards"`  // company boards for greenhouse/lever/ashby
}

// BoardConfig is one company board on a board-style source.
type BoardConfig struct {
	Token   string `yaml:"token"`
	Company string `yaml:"company"`
}

// SourcePolicyConfig bounds every source call.
type SourcePolicyConfig struct {
	Timeout    time.Duration // whole call, retries included
	Retries    int
	RetryDelay time.Duration
	MinDelay   time.Duration // minimum gap between calls to the same source
}

// AIConfig configures the OpenAI-compatible letter writer.
type AIConfig struct {
	Enabled     bool
	BaseURL     string
	Model       string
	APIKey      string // expanded from env var by Load
	MaxTokens   int
	Temperature float64
	Language    string
	Timeout     time.Duration
	Retries     int
}

// NotificationConfig controls where operator alerts go.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// LockConfig selects the per-user single-flight backend.
type LockConfig struct {
	Backend  string // "memory" or "redis"
	RedisURL string
	TTL      time.Duration
}

// AdminConfig configures the admin HTTP API. An empty Addr disables it.
type AdminConfig struct {
	Addr string
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultDatabasePath  = "jobletter.db"
	slackWebhookPrefix   = "https://hooks.slack.com/"
)

// KnownSources lists the source names the service can build.
var KnownSources = []string{"adzuna", "greenhouse", "lever", "ashby"}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Telegram     rawTelegramConfig     `yaml:"telegram"`
	Database     rawDatabaseConfig     `yaml:"database"`
	Scheduler    rawSchedulerConfig    `yaml:"scheduler"`
	Digest       rawDigestConfig       `yaml:"digest"`
	Sources      []SourceConfig        `yaml:"sources"`
	SourcePolicy rawSourcePolicyConfig `yaml:"source_policy"`
	AI           rawAIConfig           `yaml:"ai"`
	Notification NotificationConfig    `yaml:"notification"`
	Lock         rawLockConfig         `yaml:"lock"`
	Admin        AdminConfig           `yaml:"admin"`
}

type rawTelegramConfig struct {
	Token string `yaml:"token"`
}

type rawDatabaseConfig struct {
	Path string `yaml:"path"`
}

type rawSchedulerConfig struct {
	TickInterval    string `yaml:"tick_interval"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
	CycleTimeout    string `yaml:"cycle_timeout"`
	DefaultTime     string `yaml:"default_time"`
	DefaultTimezone string `yaml:"default_timezone"`
}

type rawDigestConfig struct {
	Size       int    `yaml:"size"`
	MaxResults int    `yaml:"max_results"`
	MaxAge     string `yaml:"max_age"`
}

type rawSourcePolicyConfig struct {
	Timeout    string `yaml:"timeout"`
	Retries    *int   `yaml:"retries"`
	RetryDelay string `yaml:"retry_delay"`
	MinDelay   string `yaml:"min_delay"`
}

type rawAIConfig struct {
	Enabled     bool     `yaml:"enabled"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Language    string   `yaml:"language"`
	Timeout     string   `yaml:"timeout"`
	Retries     *int     `yaml:"retries"`
}

type rawLockConfig struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		Telegram:     TelegramConfig{Token: raw.Telegram.Token},
		DatabasePath: orDefault(raw.Database.Path, defaultDatabasePath),
		Sources:      raw.Sources,
		Notification: raw.Notification,
		Admin:        raw.Admin,
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}

	if err := loadScheduler(&cfg.Scheduler, raw.Scheduler); err != nil {
		return nil, err
	}
	if err := loadDigest(&cfg.Digest, raw.Digest); err != nil {
		return nil, err
	}
	if err := loadSourcePolicy(&cfg.SourcePolicy, raw.SourcePolicy); err != nil {
		return nil, err
	}
	if err := loadAI(&cfg.AI, raw.AI); err != nil {
		return nil, err
	}

	cfg.Lock = LockConfig{Backend: orDefault(raw.Lock.Backend, "memory"), RedisURL: raw.Lock.RedisURL}
	if cfg.Lock.TTL, err = parseDuration("lock.ttl", raw.Lock.TTL, 15*time.Minute); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadScheduler(dst *SchedulerConfig, raw rawSchedulerConfig) error {
	var err error
	if dst.TickInterval, err = parseDuration("scheduler.tick_interval", raw.TickInterval, 5*time.Minute); err != nil {
		return err
	}
	if dst.CycleTimeout, err = parseDuration("scheduler.cycle_timeout", raw.CycleTimeout, 5*time.Minute); err != nil {
		return err
	}
	dst.MaxConcurrent = raw.MaxConcurrent
	if dst.MaxConcurrent == 0 {
		dst.MaxConcurrent = 4
	}

	dst.DefaultHour, dst.DefaultMinute = 9, 0
	if raw.DefaultTime != "" {
		t, err := time.Parse("15:04", raw.DefaultTime)
		if err != nil {
			return fmt.Errorf("parse scheduler.default_time %q: want HH:MM", raw.DefaultTime)
		}
		dst.DefaultHour, dst.DefaultMinute = t.Hour(), t.Minute()
	}
	dst.DefaultTimezone = orDefault(raw.DefaultTimezone, "UTC")
	return nil
}

func loadDigest(dst *DigestConfig, raw rawDigestConfig) error {
	dst.Size = raw.Size
	if dst.Size == 0 {
		dst.Size = 10
	}
	dst.MaxResults = raw.MaxResults
	if dst.MaxResults == 0 {
		dst.MaxResults = 20
	}
	var err error
	dst.MaxAge, err = parseDuration("digest.max_age", raw.MaxAge, 48*time.Hour)
	return err
}

func loadSourcePolicy(dst *SourcePolicyConfig, raw rawSourcePolicyConfig) error {
	var err error
	if dst.Timeout, err = parseDuration("source_policy.timeout", raw.Timeout, 30*time.Second); err != nil {
		return err
	}
	if dst.RetryDelay, err = parseDuration("source_policy.retry_delay", raw.RetryDelay, 5*time.Second); err != nil {
		return err
	}
	if dst.MinDelay, err = parseDuration("source_policy.min_delay", raw.MinDelay, 2*time.Second); err != nil {
		return err
	}
	dst.Retries = 1
	if raw.Retries != nil {
		dst.Retries = *raw.Retries
	}
	return nil
}

func loadAI(dst *AIConfig, raw rawAIConfig) error {
	var err error
	if dst.Timeout, err = parseDuration("ai.timeout", raw.Timeout, 60*time.Second); err != nil {
		return err
	}
	dst.Enabled = raw.Enabled
	dst.BaseURL = orDefault(raw.BaseURL, defaultOpenAIBaseURL)
	dst.Model = raw.Model
	dst.APIKey = raw.APIKey
	dst.Language = orDefault(raw.Language, "English")
	dst.MaxTokens = raw.MaxTokens
	if dst.MaxTokens == 0 {
		dst.MaxTokens = 1200
	}
	dst.Temperature = 0.7
	if raw.Temperature != nil {
		dst.Temperature = *raw.Temperature
	}
	dst.Retries = 1
	if raw.Retries != nil {
		dst.Retries = *raw.Retries
	}
	return nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// EnabledSources returns the enabled sources in priority order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler.max_concurrent must be at least 1, got %d", cfg.Scheduler.MaxConcurrent)
	}
	if _, err := time.LoadLocation(cfg.Scheduler.DefaultTimezone); err != nil {
		return fmt.Errorf("scheduler.default_timezone: %w", err)
	}
	if cfg.Digest.Size < 1 || cfg.Digest.Size > 50 {
		return fmt.Errorf("digest.size must be between 1 and 50, got %d", cfg.Digest.Size)
	}
	if cfg.Digest.MaxAge <= 0 {
		return fmt.Errorf("digest.max_age must be positive, got %v", cfg.Digest.MaxAge)
	}
	if cfg.SourcePolicy.Retries < 0 {
		return fmt.Errorf("source_policy.retries must not be negative, got %d", cfg.SourcePolicy.Retries)
	}

	seen := make(map[string]bool)
	enabled := 0
	for _, s := range cfg.Sources {
		if !isKnownSource(s.Name) {
			return fmt.Errorf("sources: unknown source %q (want one of %s)", s.Name, strings.Join(KnownSources, ", "))
		}
		if seen[s.Name] {
			return fmt.Errorf("sources: %q listed twice", s.Name)
		}
		seen[s.Name] = true
		if !s.Enabled {
			continue
		}
		enabled++
		if s.Name == "adzuna" {
			if s.AppID == "" || s.AppKey == "" {
				return fmt.Errorf("sources.adzuna: app_id and app_key are required")
			}
			continue
		}
		if len(s.Boards) == 0 {
			return fmt.Errorf("sources.%s: at least one board is required", s.Name)
		}
		for _, b := range s.Boards {
			if b.Token == "" {
				return fmt.Errorf("sources.%s: board token is required", s.Name)
			}
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}
	if cfg.AI.Retries < 0 {
		return fmt.Errorf("ai.retries must not be negative, got %d", cfg.AI.Retries)
	}

	switch cfg.Lock.Backend {
	case "memory":
	case "redis":
		if cfg.Lock.RedisURL == "" {
			return fmt.Errorf("lock.redis_url is required when lock.backend is \"redis\"")
		}
		if cfg.Lock.TTL < cfg.Scheduler.CycleTimeout {
			return fmt.Errorf("lock.ttl (%v) must cover scheduler.cycle_timeout (%v)", cfg.Lock.TTL, cfg.Scheduler.CycleTimeout)
		}
	default:
		return fmt.Errorf("lock.backend must be \"memory\" or \"redis\", got %q", cfg.Lock.Backend)
	}

	return nil
}

func isKnownSource(name string) bool {
	for _, k := range KnownSources {
		if k == name {
			return true
		}
	}
	return false
}
