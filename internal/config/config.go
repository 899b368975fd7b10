// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	DB         DBConfig         `mapstructure:"db"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// AuthConfig holds the scrape-trigger API keys as a comma-separated list.
type AuthConfig struct {
	APIKeys string `mapstructure:"api_keys"`
}

// Keys splits the configured comma-separated key list, dropping empties.
func (a AuthConfig) Keys() []string {
	parts := strings.Split(a.APIKeys, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// GitHubConfig identifies the source repository.
type GitHubConfig struct {
	Owner         string `mapstructure:"owner"`
	Repo          string `mapstructure:"repo"`
	Token         string `mapstructure:"token"`
	PrimaryBranch string `mapstructure:"primary_branch"`
}

// ScraperConfig governs the reconciliation pipeline.
type ScraperConfig struct {
	Concurrency     int `mapstructure:"concurrency"`
	IntervalMinutes int `mapstructure:"interval_minutes"`
	DefaultSeason   int `mapstructure:"default_season"`
}

// ScreenshotConfig configures capture policy and the freshness gate.
type ScreenshotConfig struct {
	Dir            string  `mapstructure:"dir"`
	FreshnessHours int     `mapstructure:"freshness_hours"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Quality        int     `mapstructure:"quality"`
	UserAgent      string  `mapstructure:"user_agent"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// FreshnessWindow converts the configured hours into a duration.
func (s ScreenshotConfig) FreshnessWindow() time.Duration {
	return time.Duration(s.FreshnessHours) * time.Hour
}

// Timeout converts the configured seconds into a duration.
func (s ScreenshotConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOWCASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvKeys(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("github.owner", "sandhikagalih")
	v.SetDefault("github.repo", "project-kalian")
	v.SetDefault("github.primary_branch", "main")
	v.SetDefault("scraper.concurrency", 5)
	v.SetDefault("scraper.interval_minutes", 0)
	v.SetDefault("scraper.default_season", 5)
	v.SetDefault("screenshot.dir", "screenshots")
	v.SetDefault("screenshot.freshness_hours", 24)
	v.SetDefault("screenshot.timeout_seconds", 10)
	v.SetDefault("screenshot.quality", 80)
	v.SetDefault("screenshot.user_agent", defaultUserAgent)
	v.SetDefault("screenshot.domain_qps", 0)
	v.SetDefault("logging.development", true)
}

// bindEnvKeys registers every key with viper so Unmarshal sees environment
// values even for keys without a default. AutomaticEnv alone only resolves
// keys viper already knows about, which silently drops env-only required
// keys like auth.api_keys and db.dsn.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port",
		"server.cors_origins",
		"auth.api_keys",
		"github.owner",
		"github.repo",
		"github.token",
		"github.primary_branch",
		"scraper.concurrency",
		"scraper.interval_minutes",
		"scraper.default_season",
		"screenshot.dir",
		"screenshot.freshness_hours",
		"screenshot.timeout_seconds",
		"screenshot.quality",
		"screenshot.user_agent",
		"screenshot.domain_qps",
		"db.dsn",
		"db.max_conns",
		"db.min_conns",
		"logging.development",
	}
	for _, key := range keys {
		// BindEnv only errors when called with no arguments.
		_ = v.BindEnv(key)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Auth.Keys()) == 0 {
		return fmt.Errorf("auth.api_keys must contain at least one key")
	}
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		return fmt.Errorf("github.owner and github.repo are required")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Screenshot.FreshnessHours <= 0 {
		return fmt.Errorf("screenshot.freshness_hours must be > 0")
	}
	if c.Screenshot.TimeoutSeconds <= 0 {
		return fmt.Errorf("screenshot.timeout_seconds must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	return nil
}
