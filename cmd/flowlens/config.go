package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds all flowlens configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr    string `json:"listen_addr"`
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	CacheTTL      string `json:"cache_ttl"`
	RefreshCron   string `json:"refresh_cron"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:  ":4200",
		DBPath:      filepath.Join(flowlensDir(), "flowlens.db"),
		LogLevel:    "info",
		LogFormat:   "text",
		CacheTTL:    "10m",
		RefreshCron: "*/5 * * * *",
	}
}

func flowlensDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowlens"
	}
	return filepath.Join(home, ".flowlens")
}

func settingsPath() string {
	return filepath.Join(flowlensDir(), "settings.json")
}

// loadConfig layers settings.json and FLOWLENS_* env vars over the defaults.
// A missing settings file is not an error. The result is not validated
// until flags are applied.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	strs := map[string]*string{
		"FLOWLENS_LISTEN_ADDR":    &cfg.ListenAddr,
		"FLOWLENS_DB_PATH":        &cfg.DBPath,
		"FLOWLENS_LOG_LEVEL":      &cfg.LogLevel,
		"FLOWLENS_LOG_FORMAT":     &cfg.LogFormat,
		"FLOWLENS_REDIS_ADDR":     &cfg.RedisAddr,
		"FLOWLENS_REDIS_PASSWORD": &cfg.RedisPassword,
		"FLOWLENS_CACHE_TTL":      &cfg.CacheTTL,
		"FLOWLENS_REFRESH_CRON":   &cfg.RefreshCron,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if v := getenv("FLOWLENS_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("FLOWLENS_REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	return cfg, nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func (c *Config) applyFlags(flags *pflag.FlagSet) {
	set := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	set("listen-addr", &c.ListenAddr)
	set("db-path", &c.DBPath)
	set("log-level", &c.LogLevel)
	set("log-format", &c.LogFormat)
	set("redis-addr", &c.RedisAddr)
	set("cache-ttl", &c.CacheTTL)
	set("refresh-cron", &c.RefreshCron)
}

func (c Config) validate() error {
	if _, err := c.cacheTTL(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// cacheTTL parses CacheTTL. Zero keeps entries until restart.
func (c Config) cacheTTL() (time.Duration, error) {
	if c.CacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("cache_ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("cache_ttl must not be negative")
	}
	return d, nil
}
