package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/offlinectl/internal/logger"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "OFFLINECTL"

	PresenceModeInterfaces   = "interfaces"
	PresenceModeAssumeOnline = "assume-online"

	BackendFile   = "file"
	BackendTOML   = "toml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	defaultConfigDir = ".config/offlinectl"
	defaultDataDir   = ".local/share/offlinectl"
)

type Config struct {
	Probe    ProbeConfig    `mapstructure:"probe"`
	Presence PresenceConfig `mapstructure:"presence"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
}

type ProbeConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Path        string        `mapstructure:"path"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	HTTP2       bool          `mapstructure:"http2"`
}

type PresenceConfig struct {
	Mode     string        `mapstructure:"mode"`
	Interval time.Duration `mapstructure:"interval"`
}

type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	Fallback string `mapstructure:"fallback"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("probe.base_url", "http://127.0.0.1:8080")
	v.SetDefault("probe.path", "/api/health")
	v.SetDefault("probe.interval", 30*time.Second)
	v.SetDefault("probe.timeout", 5*time.Second)
	v.SetDefault("probe.max_retries", 3)
	v.SetDefault("probe.backoff_base", time.Second)
	v.SetDefault("probe.http2", false)
	v.SetDefault("presence.mode", PresenceModeInterfaces)
	v.SetDefault("presence.interval", 2*time.Second)
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "")
	v.SetDefault("store.fallback", "")
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.level", "warn")
}

// Load reads configuration from path, or from ~/.config/offlinectl/config.toml when
// path is empty, then applies OFFLINECTL_* environment overrides. An explicit path
// must exist; the default file is optional.
func Load(path string) (Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return Config{}, nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config %q: %w", expanded, err)
		}
	} else if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, defaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}

	return cfg, v, nil
}

func (c *Config) normalize() {
	c.Probe.BaseURL = strings.TrimSpace(c.Probe.BaseURL)
	c.Probe.Path = strings.TrimSpace(c.Probe.Path)
	c.Presence.Mode = strings.ToLower(strings.TrimSpace(c.Presence.Mode))
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Store.Path = strings.TrimSpace(c.Store.Path)
	c.Store.Fallback = strings.ToLower(strings.TrimSpace(c.Store.Fallback))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Log.Level = strings.TrimSpace(c.Log.Level)
}

func (c Config) Validate() error {
	parsed, err := url.Parse(c.Probe.BaseURL)
	if c.Probe.BaseURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("probe.base_url must be an absolute URL, got %q", c.Probe.BaseURL)
	}
	if c.Probe.Interval <= 0 {
		return errors.New("probe.interval must be > 0")
	}
	if c.Probe.Timeout <= 0 {
		return errors.New("probe.timeout must be > 0")
	}
	if c.Probe.MaxRetries < 0 {
		return errors.New("probe.max_retries must be >= 0")
	}
	if c.Probe.BackoffBase <= 0 {
		return errors.New("probe.backoff_base must be > 0")
	}

	switch c.Presence.Mode {
	case PresenceModeInterfaces, PresenceModeAssumeOnline:
	default:
		return fmt.Errorf("presence.mode must be %q or %q, got %q", PresenceModeInterfaces, PresenceModeAssumeOnline, c.Presence.Mode)
	}
	if c.Presence.Interval <= 0 {
		return errors.New("presence.interval must be > 0")
	}

	switch c.Store.Backend {
	case BackendFile, BackendTOML, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("store.backend must be one of file, toml, sqlite, memory, got %q", c.Store.Backend)
	}
	switch c.Store.Fallback {
	case "", BackendFile:
	default:
		return fmt.Errorf("store.fallback must be empty or %q, got %q", BackendFile, c.Store.Fallback)
	}
	if c.Store.Fallback == BackendFile && c.Store.Backend == BackendFile {
		return errors.New("store.fallback cannot equal store.backend")
	}

	switch c.Log.Format {
	case logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", logger.FormatText, logger.FormatJSON, c.Log.Format)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// StorePath returns store.path with ~ expanded, or the backend's default location
// under ~/.local/share/offlinectl. The memory backend has no path.
func (c Config) StorePath() (string, error) {
	if c.Store.Backend == BackendMemory {
		return "", nil
	}
	if c.Store.Path != "" {
		return expandPath(c.Store.Path)
	}

	name := "kv"
	switch c.Store.Backend {
	case BackendTOML:
		name = "store.toml"
	case BackendSQLite:
		name = "offline.db"
	}

	return dataPath(name)
}

// FallbackPath is the directory of the file store used when store.fallback is "file".
func (c Config) FallbackPath() (string, error) {
	return dataPath("fallback-kv")
}

func dataPath(name string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(homeDir, defaultDataDir, name), nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(homeDir, strings.TrimPrefix(trimmed, "~"))
	}

	return filepath.Clean(trimmed), nil
}
