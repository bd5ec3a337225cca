package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.ClickHouseEnabled)
	assert.Equal(t, "apex", cfg.ClickHouseDB)
	assert.Equal(t, 500*time.Millisecond, cfg.ReplayTick)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "grpc", cfg.OTLPProtocol)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CLICKHOUSE_ENABLED", "true")
	t.Setenv("CLICKHOUSE_HOST", "ch.local")
	t.Setenv("CLICKHOUSE_PORT", "19000")
	t.Setenv("REPLAY_TICK", "250")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("RETRY_MULTIPLIER", "1.5")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("OTLP_PROTOCOL", "http")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.ClickHouseEnabled)
	assert.Equal(t, "ch.local", cfg.ClickHouseHost)
	assert.Equal(t, 19000, cfg.ClickHousePort)
	assert.Equal(t, 250*time.Millisecond, cfg.ReplayTick)
	assert.Equal(t, 9999, cfg.ServerPort)
	assert.Equal(t, 1.5, cfg.RetryMultiplier)
	assert.True(t, cfg.TracingEnabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("REPLAY_TICK", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 500*time.Millisecond, cfg.ReplayTick)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ClickHouseHost:   "localhost",
			ClickHousePort:   9000,
			ClickHouseDB:     "apex",
			LogRetentionDays: 30,
			RetryMaxAttempts: 3,
			RetryMultiplier:  2,
			ReplayTick:       time.Second,
			ServerPort:       8080,
			OTLPProtocol:     "grpc",
		}
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:    "server port out of range",
			modify:  func(c *Config) { c.ServerPort = 70000 },
			wantErr: "SERVER_PORT",
		},
		{
			name:    "zero replay tick",
			modify:  func(c *Config) { c.ReplayTick = 0 },
			wantErr: "REPLAY_TICK",
		},
		{
			name:    "clickhouse without host",
			modify:  func(c *Config) { c.ClickHouseEnabled = true; c.ClickHouseHost = "" },
			wantErr: "CLICKHOUSE_HOST",
		},
		{
			name:   "clickhouse host not needed when disabled",
			modify: func(c *Config) { c.ClickHouseHost = "" },
		},
		{
			name:    "unknown otlp protocol",
			modify:  func(c *Config) { c.TracingEnabled = true; c.OTLPProtocol = "udp" },
			wantErr: "OTLP_PROTOCOL",
		},
		{
			name:    "no retry attempts",
			modify:  func(c *Config) { c.RetryMaxAttempts = 0 },
			wantErr: "RETRY_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
