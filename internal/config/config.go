package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	defaultTimezone   = "UTC"
	envPrefix         = "HOTLIST_"
	configPathEnv     = "HOTLIST_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"

	maxConfigFileSize = 1024 * 1024
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `koanf:"logging"`
	Database      DatabaseConfig     `koanf:"database"`
	Scheduler     SchedulerConfig    `koanf:"scheduler"`
	Reconcile     ReconcileConfig    `koanf:"reconcile"`
	Collector     CollectorConfig    `koanf:"collector"`
	HTTP          HTTPConfig         `koanf:"http"`
	Metrics       MetricsConfig      `koanf:"metrics"`
	Notifications NotificationConfig `koanf:"notifications"`
	Platforms     []PlatformConfig   `koanf:"platforms"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig describes the store connection; driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// SchedulerConfig defines when collection passes run.
type SchedulerConfig struct {
	CronExpression string         `koanf:"cron_expression"`
	Timezone       string         `koanf:"timezone"`
	RunOnStart     bool           `koanf:"run_on_start"`
	location       *time.Location `koanf:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// ReconcileConfig mirrors the engine tuning knobs.
type ReconcileConfig struct {
	DedupWindow              time.Duration `koanf:"dedup_window"`
	TitleSimilarityThreshold float64       `koanf:"title_similarity_threshold"`
	MaxTitleLength           int           `koanf:"max_title_length"`
	MaxTagsCount             int           `koanf:"max_tags_count"`
}

// CollectorConfig bounds a collection pass.
type CollectorConfig struct {
	MaxParallel  int           `koanf:"max_parallel"`
	CycleTimeout time.Duration `koanf:"cycle_timeout"`
}

// HTTPConfig configures the outbound fetcher shared by HTTP scanners.
type HTTPConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	UserAgent  string        `koanf:"user_agent"`
	RateLimit  float64       `koanf:"rate_limit"`
	Burst      int           `koanf:"burst"`
	MaxRetries uint          `koanf:"max_retries"`
}

// MetricsConfig exposes the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `koanf:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
	APIBase  string `koanf:"api_base"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// PlatformConfig describes a single hot-list platform with its scanner strategy.
type PlatformConfig struct {
	Name       string            `koanf:"name"`
	Scanner    string            `koanf:"scanner"`
	Endpoint   string            `koanf:"endpoint"`
	Disabled   bool              `koanf:"disabled"`
	Categories []CategoryConfig  `koanf:"categories"`
	PageSize   int               `koanf:"page_size"`
	StartPage  int               `koanf:"start_page"`
	MaxPages   int               `koanf:"max_pages"`
	Params     map[string]string `koanf:"params"`
	Options    map[string]string `koanf:"options"`
	Selectors  map[string]string `koanf:"selectors"`
	Fields     FieldConfig       `koanf:"fields"`
}

// CategoryConfig is one list of a platform. URL overrides the platform endpoint.
type CategoryConfig struct {
	Name   string            `koanf:"name"`
	URL    string            `koanf:"url"`
	Params map[string]string `koanf:"params"`
}

// FieldConfig names the raw item keys that feed candidate fields.
type FieldConfig struct {
	Title        string `koanf:"title"`
	Heat         string `koanf:"heat"`
	URL          string `koanf:"url"`
	URLTemplate  string `koanf:"url_template"`
	Tags         string `koanf:"tags"`
	TagSeparator string `koanf:"tag_separator"`
}

// Load reads the YAML file at path (or $HOTLIST_CONFIG), then HOTLIST_* environment
// variables, then the legacy unprefixed variables, and finally fills defaults.
// A missing path means defaults plus environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// HOTLIST_DATABASE_DSN -> database.dsn, HOTLIST_HTTP_RATE_LIMIT -> http.rate_limit
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	applyDefaults(&cfg)
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config %s exceeds %d bytes", path, maxConfigFileSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return raw, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("scheduler timezone %q: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

// EnabledPlatforms returns platforms not marked disabled, in configuration order.
func (c Config) EnabledPlatforms() []PlatformConfig {
	out := make([]PlatformConfig, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// Platform looks up a platform by name.
func (c Config) Platform(name string) (PlatformConfig, bool) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return PlatformConfig{}, false
}

// Validate checks cross-field constraints after defaults are applied.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Reconcile.TitleSimilarityThreshold <= 0 || c.Reconcile.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("reconcile.title_similarity_threshold must be within (0,1]")
	}

	seen := map[string]struct{}{}
	for _, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platform without name")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("platform %s configured twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Scanner == "" {
			return fmt.Errorf("platform %s: scanner is required", p.Name)
		}
		if len(p.Categories) == 0 {
			return fmt.Errorf("platform %s: at least one category is required", p.Name)
		}
		if p.PageSize < 0 || p.MaxPages < 0 {
			return fmt.Errorf("platform %s: page settings must not be negative", p.Name)
		}
	}
	return nil
}
