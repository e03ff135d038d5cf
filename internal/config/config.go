package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Store backends for the persisted query cache.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the resolved gridwatch configuration.
type Config struct {
	APIBase         string
	Listen          string
	CacheDir        string
	Store           string
	RedisAddr       string
	Compress        bool
	Buster          string
	Retention       time.Duration
	PersistDebounce time.Duration
	PageSize        int
	DelayMS         int // negative leaves the server default
	LogPath         string
	LogLevel        string
	JanitorEvery    time.Duration
}

const (
	DefaultConfigPath = "~/.config/gridwatch/config.toml"

	defaultAPIBase         = "127.0.0.1:7480"
	defaultListen          = "127.0.0.1:7480"
	defaultCacheDir        = "~/.cache/gridwatch"
	defaultRedisAddr       = "127.0.0.1:6379"
	defaultRetention       = 24 * time.Hour
	defaultPersistDebounce = 250 * time.Millisecond
	defaultPageSize        = 5
	defaultLogPath         = "~/.local/state/gridwatch/gridwatch.log"
	defaultLogLevel        = "info"
	defaultJanitorEvery    = 10 * time.Minute
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBase:         defaultAPIBase,
		Listen:          defaultListen,
		CacheDir:        mustExpand(defaultCacheDir),
		Store:           StoreFile,
		RedisAddr:       defaultRedisAddr,
		Compress:        true,
		Retention:       defaultRetention,
		PersistDebounce: defaultPersistDebounce,
		PageSize:        defaultPageSize,
		DelayMS:         -1,
		LogPath:         mustExpand(defaultLogPath),
		LogLevel:        defaultLogLevel,
		JanitorEvery:    defaultJanitorEvery,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBase         string  `toml:"api_base"`
		Listen          string  `toml:"listen"`
		CacheDir        string  `toml:"cache_dir"`
		Store           string  `toml:"store"`
		RedisAddr       string  `toml:"redis_addr"`
		Compress        *bool   `toml:"compress"`
		Buster          string  `toml:"buster"`
		Retention       string  `toml:"retention"`
		PersistDebounce string  `toml:"persist_debounce"`
		PageSize        int     `toml:"page_size"`
		DelayMS         *int    `toml:"delay_ms"`
		LogPath         *string `toml:"log_path"`
		LogLevel        string  `toml:"log_level"`
		JanitorEvery    string  `toml:"janitor_every"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.APIBase, raw.APIBase)
	setString(&cfg.Listen, raw.Listen)
	if dir := strings.TrimSpace(raw.CacheDir); dir != "" {
		cfg.CacheDir = mustExpand(dir)
	}
	setString(&cfg.Store, strings.ToLower(raw.Store))
	setString(&cfg.RedisAddr, raw.RedisAddr)
	if raw.Compress != nil {
		cfg.Compress = *raw.Compress
	}
	cfg.Buster = strings.TrimSpace(raw.Buster)
	if raw.PageSize > 0 {
		cfg.PageSize = raw.PageSize
	}
	if raw.DelayMS != nil {
		cfg.DelayMS = *raw.DelayMS
	}
	// An explicitly empty log_path disables logging.
	if raw.LogPath != nil {
		cfg.LogPath = ""
		if p := strings.TrimSpace(*raw.LogPath); p != "" {
			cfg.LogPath = mustExpand(p)
		}
	}
	setString(&cfg.LogLevel, strings.ToLower(raw.LogLevel))

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"retention", raw.Retention, &cfg.Retention},
		{"persist_debounce", raw.PersistDebounce, &cfg.PersistDebounce},
		{"janitor_every", raw.JanitorEvery, &cfg.JanitorEvery},
	} {
		if err := setDuration(d.dst, d.raw); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want file, memory or redis)", c.Store)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	return nil
}

// PrefsPath returns the preferences file next to the default config file.
func PrefsPath() string {
	return filepath.Join(filepath.Dir(mustExpand(DefaultConfigPath)), "prefs.toml")
}

func setString(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("negative duration %q", v)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
