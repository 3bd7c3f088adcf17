// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration: who we are to the
// portal, how we talk to it, and how we log while doing so.
type Config struct {
	Portal  PortalConfig  `mapstructure:"portal" yaml:"portal"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
}

// PortalConfig identifies the reservation portal and the account used
// against it. BaseURL and the credentials are required for every command.
type PortalConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`

	// DefaultActivity and DefaultCourt are used when a command does not
	// pass --activity or --court.
	DefaultActivity string `mapstructure:"default_activity" yaml:"default_activity"`
	DefaultCourt    string `mapstructure:"default_court" yaml:"default_court"`

	// Engine selects the execution substrate: "http" or "browser".
	Engine string `mapstructure:"engine" yaml:"engine"`
}

// SessionConfig controls the persisted cookie store.
type SessionConfig struct {
	// Path of the cookie file. Supports "~" expansion.
	Path string `mapstructure:"path" yaml:"path"`
	// TTL after which persisted cookies are considered stale and ignored.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// VerifyWindow is how recently a session must have been verified for
	// the driver to skip the lightweight verification fetch.
	VerifyWindow time.Duration `mapstructure:"verify_window" yaml:"verify_window"`
}

// NetworkConfig tunes the HTTP substrate.
type NetworkConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// BrowserConfig tunes the chromedp substrate.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string `mapstructure:"args" yaml:"args"`

	// NavigationTimeout bounds every full page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettlePollInterval and SettleMaxPolls bound the wait for the
	// in-page AJAX queue to drain after a triggered behavior.
	SettlePollInterval time.Duration `mapstructure:"settle_poll_interval" yaml:"settle_poll_interval"`
	SettleMaxPolls     int           `mapstructure:"settle_max_polls" yaml:"settle_max_polls"`
}

// WatchConfig tunes the availability watcher.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// MaxChecksPerMinute caps the polling rate regardless of interval.
	MaxChecksPerMinute float64 `mapstructure:"max_checks_per_minute" yaml:"max_checks_per_minute"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Portal --
	v.SetDefault("portal.engine", "http")
	v.SetDefault("portal.default_activity", "")
	v.SetDefault("portal.default_court", "")

	// -- Session --
	v.SetDefault("session.path", "~/.courtbook/cookies.json")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.verify_window", 5*time.Minute)

	// -- Network --
	v.SetDefault("network.request_timeout", "20s")
	v.SetDefault("network.user_agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("network.ignore_tls_errors", false)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.settle_poll_interval", "250ms")
	v.SetDefault("browser.settle_max_polls", 40)

	// -- Watch --
	v.SetDefault("watch.interval", "60s")
	v.SetDefault("watch.max_checks_per_minute", 4.0)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "courtbook")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The password never belongs in a config file on shared machines; allow
	// supplying it purely through the environment.
	v.BindEnv("portal.password", "COURTBOOK_PORTAL_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Portal.Password == "" {
		cfg.Portal.Password = os.Getenv("COURTBOOK_PORTAL_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Missing portal
// credentials are not validated here; the driver reports them as a
// ConfigurationError so that commands like "version" still work
// unconfigured.
func (c *Config) Validate() error {
	switch c.Portal.Engine {
	case "http", "browser":
	default:
		return fmt.Errorf("portal.engine must be \"http\" or \"browser\", got %q", c.Portal.Engine)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be a positive duration")
	}
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("network.request_timeout must be a positive duration")
	}
	if c.Browser.SettleMaxPolls <= 0 {
		return fmt.Errorf("browser.settle_max_polls must be a positive integer")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be a positive duration")
	}
	return nil
}

// SessionPath returns the cookie-store path with "~" expanded.
func (c *Config) SessionPath() (string, error) {
	p, err := homedir.Expand(c.Session.Path)
	if err != nil {
		return "", fmt.Errorf("failed to expand session path %q: %w", c.Session.Path, err)
	}
	return filepath.Clean(p), nil
}
