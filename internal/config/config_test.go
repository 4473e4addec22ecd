package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagreview.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[auth]
secret_key = "test-secret"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "test-secret", cfg.Auth.SecretKey)
	assert.Equal(t, time.Hour, cfg.FAMSyncInterval())
	assert.Equal(t, 15*time.Minute, cfg.IdentityCacheTTL())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9090

[database]
url = "postgres://example/db"

[redis]
url = "redis://localhost:6379/0"

[auth]
secret_key = "s3cret"

[fam]
base_url = "https://fam.example.com"
token = "fam-token"
sync_interval = "30m"

[directory]
base_url = "https://dir.example.com"
token = "dir-token"

[identity]
cache_ttl = "5m"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://example/db", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "https://fam.example.com", cfg.FAM.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.FAMSyncInterval())
	assert.Equal(t, "dir-token", cfg.Directory.Token)
	assert.Equal(t, 5*time.Minute, cfg.IdentityCacheTTL())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[auth]
secret_key = "from-file"
`)

	t.Setenv("TAGREVIEW_SERVER_PORT", "7070")
	t.Setenv("TAGREVIEW_AUTH_SECRET_KEY", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.SecretKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Server.Port = 8080
		cfg.Auth.SecretKey = "secret"
		cfg.FAM.SyncInterval = "1h"
		cfg.Identity.CacheTTL = "15m"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.SecretKey = "" },
			wantErr: "secret_key is required",
		},
		{
			name:    "fam url without token",
			mutate:  func(c *Config) { c.FAM.BaseURL = "https://fam.example.com" },
			wantErr: "fam token is required",
		},
		{
			name: "directory url without token",
			mutate: func(c *Config) {
				c.Directory.BaseURL = "https://dir.example.com"
			},
			wantErr: "directory token is required",
		},
		{
			name:    "bad sync interval",
			mutate:  func(c *Config) { c.FAM.SyncInterval = "often" },
			wantErr: "sync_interval",
		},
		{
			name:    "bad cache ttl",
			mutate:  func(c *Config) { c.Identity.CacheTTL = "sometimes" },
			wantErr: "cache_ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}

	assert.Equal(t, time.Hour, cfg.FAMSyncInterval())
	assert.Equal(t, 15*time.Minute, cfg.IdentityCacheTTL())

	cfg.FAM.SyncInterval = "-5m"
	assert.Equal(t, time.Hour, cfg.FAMSyncInterval())
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagreview.toml")

	require.NoError(t, InitConfig(path))

	// Second init refuses to overwrite
	err := InitConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// The sample must load and validate
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}
