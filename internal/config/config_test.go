package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Suggest.DefaultLimit)
	assert.Equal(t, 200, cfg.Suggest.MaxStatsLimit)
	assert.InDelta(t, 0.9, cfg.Suggest.DueRatio, 0.001)
	assert.InDelta(t, 0.75, cfg.Suggest.UpcomingRatio, 0.001)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LISTKEEPER_PORT", "9090")
	t.Setenv("LISTKEEPER_HOST", "0.0.0.0")
	t.Setenv("LISTKEEPER_DB_DRIVER", "postgres")
	t.Setenv("LISTKEEPER_DB_DSN", "postgres://localhost/listkeeper?sslmode=disable")
	t.Setenv("LISTKEEPER_SUGGEST_DEFAULT_LIMIT", "12")
	t.Setenv("LISTKEEPER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/listkeeper?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, 12, cfg.Suggest.DefaultLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigDatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fallback/app")
	t.Setenv("LISTKEEPER_DB_DRIVER", "postgres")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback/app", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "host cannot be empty",
		},
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "empty dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "DSN cannot be empty",
		},
		{
			name:    "non-positive limit",
			mutate:  func(c *Config) { c.Suggest.DefaultLimit = 0 },
			wantErr: "limit must be positive",
		},
		{
			name:    "upcoming above due",
			mutate:  func(c *Config) { c.Suggest.UpcomingRatio = 1.5 },
			wantErr: "below the due ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
