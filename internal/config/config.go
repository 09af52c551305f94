package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// Config holds all configuration for MedTrack
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	BadgerPath      string        `mapstructure:"badger_path"`
	GCSchedule      string        `mapstructure:"gc_schedule"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// SecurityConfig holds authentication settings
type SecurityConfig struct {
	JWTSecret         string   `mapstructure:"jwt_secret"`
	TokenTTLHours     int      `mapstructure:"token_ttl_hours"`
	AllowOrigins      []string `mapstructure:"allow_origins"`
	AuthRatePerMinute int      `mapstructure:"auth_rate_per_minute"`
	AuthBurst         int      `mapstructure:"auth_burst"`
	BcryptCost        int      `mapstructure:"bcrypt_cost"`
}

// TrackerConfig holds reminder and scheduling settings
type TrackerConfig struct {
	Timezone             string        `mapstructure:"timezone"`
	NotificationInterval time.Duration `mapstructure:"notification_interval"`
	SnoozeMinutes        int           `mapstructure:"snooze_minutes"`
	UpcomingLimit        int           `mapstructure:"upcoming_limit"`
	CelebrationSeconds   int           `mapstructure:"celebration_seconds"`
	// EnforceWindow rejects dose logs outside every dose window.
	EnforceWindow bool `mapstructure:"enforce_window"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	ApplyAliases()

	v := viper.New()

	setDefaults(v)

	// Environment variables (MEDTRACK_SERVER_PORT, MEDTRACK_SECURITY_JWT_SECRET, etc.)
	v.SetEnvPrefix("MEDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dataDir == "" {
		dataDir = v.GetString("storage.data_dir")
	}
	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "medtrack.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "medtrack.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration rooted at dataDir without
// touching the environment or the filesystem.
func Default(dataDir string) *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "medtrack.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "badger"))

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	// Storage defaults
	v.SetDefault("storage.gc_schedule", "@hourly")
	v.SetDefault("storage.breaker_failures", 5)
	v.SetDefault("storage.breaker_timeout", 30*time.Second)

	// Security defaults
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.token_ttl_hours", 24*7)
	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.auth_rate_per_minute", 10)
	v.SetDefault("security.auth_burst", 5)
	v.SetDefault("security.bcrypt_cost", 10)

	// Tracker defaults
	v.SetDefault("tracker.timezone", "Local")
	v.SetDefault("tracker.notification_interval", 30*time.Second)
	v.SetDefault("tracker.snooze_minutes", 5)
	v.SetDefault("tracker.upcoming_limit", 5)
	v.SetDefault("tracker.celebration_seconds", 3)
	v.SetDefault("tracker.enforce_window", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func getDefaultDataDir() string {
	// Try XDG_DATA_HOME first
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medtrack")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "medtrack")
}

// Validate rejects settings the tracker cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.Wrap(fmt.Errorf(format, args...), apperrors.CodeConfig, "invalid configuration")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	if c.Tracker.NotificationInterval <= 0 {
		return invalid("tracker.notification_interval must be positive")
	}
	if c.Tracker.SnoozeMinutes <= 0 {
		return invalid("tracker.snooze_minutes must be positive")
	}
	if c.Tracker.UpcomingLimit <= 0 {
		return invalid("tracker.upcoming_limit must be positive")
	}
	if c.Security.TokenTTLHours <= 0 {
		return invalid("security.token_ttl_hours must be positive")
	}
	if c.Security.AuthRatePerMinute <= 0 || c.Security.AuthBurst <= 0 {
		return invalid("security auth rate and burst must be positive")
	}
	if _, err := c.Location(); err != nil {
		return invalid("unknown tracker.timezone %q", c.Tracker.Timezone)
	}

	// Generate JWT secret if not provided; sessions then end on restart.
	if c.Security.JWTSecret == "" {
		c.Security.JWTSecret = generateRandomString(32)
	}
	return nil
}

func generateRandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("medtrack-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Location resolves tracker.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Tracker.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Tracker.Timezone)
	}
}

// Snooze is the snooze period as a duration.
func (c *Config) Snooze() time.Duration {
	return time.Duration(c.Tracker.SnoozeMinutes) * time.Minute
}

// TokenTTL is the session lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.TokenTTLHours) * time.Hour
}
