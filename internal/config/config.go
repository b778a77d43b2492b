// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/xdg"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel  string     `json:"log_level"`
	LogFormat string     `json:"log_format"`
	DB        DBConfig   `json:"db"`
	Lazy      LazyConfig `json:"lazy"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	DSN      string `json:"dsn"`
	Provided bool   `json:"provided"`
}

// LazyConfig holds the windowed-loading settings.
type LazyConfig struct {
	Enabled        bool     `json:"enabled"`
	Threshold      int64    `json:"threshold"`
	ChunkSize      int      `json:"chunk_size"`
	CacheCapacity  int      `json:"cache_capacity"`
	PrefetchAfter  int      `json:"prefetch_after"`
	PrefetchBefore int      `json:"prefetch_before"`
	Workers        int      `json:"workers"`
	ProbeTimeout   Duration `json:"probe_timeout"`
	LoadTimeout    Duration `json:"load_timeout"`
}

// Duration is a time.Duration stored as a string such as "5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Plain numbers are nanoseconds.
		var n int64
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultLazy returns the default windowed-loading settings.
func DefaultLazy() LazyConfig {
	return LazyConfig{
		Enabled:        true,
		Threshold:      100_000,
		ChunkSize:      1000,
		CacheCapacity:  50,
		PrefetchAfter:  2,
		PrefetchBefore: 0,
		Workers:        4,
		ProbeTimeout:   Duration(5 * time.Second),
		LoadTimeout:    Duration(30 * time.Second),
	}
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		DB:        DBConfig{}, // No default DSN - fail-fast if not provided via env/keychain
		Lazy:      DefaultLazy(),
	}
}

// Validate rejects non-positive sizes and timeouts. A zero load timeout means
// window loads are not bounded.
func (l LazyConfig) Validate() error {
	switch {
	case l.Threshold <= 0:
		return xerrors.New(xerrors.InvalidConfiguration, fmt.Sprintf("threshold must be positive, got %d", l.Threshold))
	case l.ChunkSize <= 0:
		return xerrors.New(xerrors.InvalidConfiguration, fmt.Sprintf("chunk_size must be positive, got %d", l.ChunkSize))
	case l.CacheCapacity <= 0:
		return xerrors.New(xerrors.InvalidConfiguration, fmt.Sprintf("cache_capacity must be positive, got %d", l.CacheCapacity))
	case l.Workers <= 0:
		return xerrors.New(xerrors.InvalidConfiguration, fmt.Sprintf("workers must be positive, got %d", l.Workers))
	case l.PrefetchAfter < 0 || l.PrefetchBefore < 0:
		return xerrors.New(xerrors.InvalidConfiguration, "prefetch margins must not be negative")
	case l.ProbeTimeout <= 0:
		return xerrors.New(xerrors.InvalidConfiguration, "probe_timeout must be positive")
	case l.LoadTimeout < 0:
		return xerrors.New(xerrors.InvalidConfiguration, "load_timeout must not be negative")
	}
	return nil
}

// MaxVisibleRows returns the widest row span whose chunks fit in the cache
// together wherever the span starts.
func (l LazyConfig) MaxVisibleRows() int64 {
	return int64(l.CacheCapacity-1)*int64(l.ChunkSize) + 1
}

// CheckSpan rejects a visible span of rows that could pin more chunks than
// the cache holds.
func (l LazyConfig) CheckSpan(rows int64) error {
	if rows <= 0 {
		return xerrors.New(xerrors.InvalidConfiguration, fmt.Sprintf("visible span must be positive, got %d rows", rows))
	}
	if maxRows := l.MaxVisibleRows(); rows > maxRows {
		return xerrors.New(xerrors.InvalidConfiguration, fmt.Sprintf(
			"visible span of %d rows exceeds %d (cache_capacity %d × chunk_size %d)", rows, maxRows, l.CacheCapacity, l.ChunkSize))
	}
	return nil
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
// Fields absent from the file keep their default values.
func Load() (Config, error) {
	c := Default()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{
		"log_level", "log_format",
		"lazy.enabled", "lazy.threshold", "lazy.chunk_size", "lazy.cache_capacity",
		"lazy.prefetch_after", "lazy.prefetch_before", "lazy.workers",
		"lazy.probe_timeout", "lazy.load_timeout",
	}
}

// Get returns the string form of a key.
func (c Config) Get(key string) (string, error) {
	l := c.Lazy
	switch key {
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "lazy.enabled":
		return strconv.FormatBool(l.Enabled), nil
	case "lazy.threshold":
		return strconv.FormatInt(l.Threshold, 10), nil
	case "lazy.chunk_size":
		return strconv.Itoa(l.ChunkSize), nil
	case "lazy.cache_capacity":
		return strconv.Itoa(l.CacheCapacity), nil
	case "lazy.prefetch_after":
		return strconv.Itoa(l.PrefetchAfter), nil
	case "lazy.prefetch_before":
		return strconv.Itoa(l.PrefetchBefore), nil
	case "lazy.workers":
		return strconv.Itoa(l.Workers), nil
	case "lazy.probe_timeout":
		return l.ProbeTimeout.Std().String(), nil
	case "lazy.load_timeout":
		return l.LoadTimeout.Std().String(), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Set parses value into key and validates the result. The receiver is left
// unchanged on error.
func (c *Config) Set(key, value string) error {
	next := *c
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case "log_level":
		next.LogLevel = strings.ToLower(value)
	case "log_format":
		next.LogFormat = strings.ToLower(value)
	case "lazy.enabled":
		next.Lazy.Enabled, err = strconv.ParseBool(value)
	case "lazy.threshold":
		next.Lazy.Threshold, err = strconv.ParseInt(value, 10, 64)
	case "lazy.chunk_size":
		next.Lazy.ChunkSize, err = strconv.Atoi(value)
	case "lazy.cache_capacity":
		next.Lazy.CacheCapacity, err = strconv.Atoi(value)
	case "lazy.prefetch_after":
		next.Lazy.PrefetchAfter, err = strconv.Atoi(value)
	case "lazy.prefetch_before":
		next.Lazy.PrefetchBefore, err = strconv.Atoi(value)
	case "lazy.workers":
		next.Lazy.Workers, err = strconv.Atoi(value)
	case "lazy.probe_timeout", "lazy.load_timeout":
		var d time.Duration
		d, err = time.ParseDuration(value)
		if key == "lazy.probe_timeout" {
			next.Lazy.ProbeTimeout = Duration(d)
		} else {
			next.Lazy.LoadTimeout = Duration(d)
		}
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return xerrors.Wrap(xerrors.InvalidConfiguration, "invalid value for "+key, err)
	}
	if err := next.Lazy.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
