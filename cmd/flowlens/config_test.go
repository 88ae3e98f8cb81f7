package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"), envMap(nil))
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, ":4200", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshCron)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "flowlens.db", filepath.Base(cfg.DBPath))

	ttl, err := cfg.cacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)
}

func TestLoadConfig_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen_addr": ":9000",
		"log_level": "debug",
		"redis_addr": "localhost:6379",
		"cache_ttl": "1m"
	}`), 0o644))

	cfg, err := loadConfig(path, envMap(map[string]string{
		"FLOWLENS_LOG_LEVEL": "warn",
		"FLOWLENS_REDIS_DB":  "3",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr, "settings override defaults")
	assert.Equal(t, "warn", cfg.LogLevel, "env overrides settings")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "1m", cfg.CacheTTL)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("listen-addr", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))
	cfg.applyFlags(flags)

	assert.Equal(t, "error", cfg.LogLevel, "flags override env")
	assert.Equal(t, ":9000", cfg.ListenAddr, "unset flags keep the loaded value")
}

func TestLoadConfig_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err := loadConfig(path, envMap(nil))
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "none.json"), envMap(map[string]string{
		"FLOWLENS_REDIS_DB": "x",
	}))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.CacheTTL = "soon"
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.CacheTTL = "-1m"
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.CacheTTL = ""
	require.NoError(t, cfg.validate())
	ttl, err := cfg.cacheTTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}
